package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidPhoneNumber(t *testing.T) {
	assert.True(t, ValidPhoneNumber("+254712345678"))
	assert.True(t, ValidPhoneNumber("+123456789012345"))
	assert.False(t, ValidPhoneNumber("0712345678"))
	assert.False(t, ValidPhoneNumber("+12345"))
	assert.False(t, ValidPhoneNumber("+2547123456789012"))
	assert.False(t, ValidPhoneNumber("+25471234567a"))
}

func TestSMSClient_Send_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.Header.Get("apiKey"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "sandbox", r.PostForm.Get("username"))
		assert.Equal(t, "+254712345678", r.PostForm.Get("to"))
		assert.Equal(t, "Warning: storm", r.PostForm.Get("message"))
		assert.Equal(t, "SOLAR", r.PostForm.Get("from"))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"SMSMessageData":{"Message":"Sent to 1/1","Recipients":[
			{"statusCode":101,"number":"+254712345678","status":"Success","messageId":"ATXid_1"}]}}`))
	}))
	defer srv.Close()

	c := NewSMSClient(SMSConfig{Username: "sandbox", APIKey: "secret", SenderID: "SOLAR", BaseURL: srv.URL})
	id, err := c.Send(context.Background(), "+254712345678", "Warning: storm")
	require.NoError(t, err)
	assert.Equal(t, "ATXid_1", id)
}

func TestSMSClient_Send_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"SMSMessageData":{"Message":"Sent to 0/1","Recipients":[
			{"statusCode":406,"number":"+254712345678","status":"UserInBlacklist","messageId":"None"}]}}`))
	}))
	defer srv.Close()

	c := NewSMSClient(SMSConfig{Username: "app", SenderID: "SOLAR", BaseURL: srv.URL})
	_, err := c.Send(context.Background(), "+254712345678", "hi")
	require.ErrorIs(t, err, ErrSMSRejected)
	assert.Contains(t, err.Error(), "UserInBlacklist")
}

func TestSMSClient_Send_ValidatesBeforeCalling(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	defer srv.Close()

	c := NewSMSClient(SMSConfig{SenderID: "SOLAR", BaseURL: srv.URL})
	_, err := c.Send(context.Background(), "0712345678", "hi")
	require.ErrorIs(t, err, ErrInvalidPhoneNumber)

	noSender := NewSMSClient(SMSConfig{BaseURL: srv.URL})
	_, err = noSender.Send(context.Background(), "+254712345678", "hi")
	require.ErrorIs(t, err, ErrSenderIDMissing)

	assert.False(t, called)
}

func TestNewSMSClient_DefaultURL(t *testing.T) {
	sandbox := NewSMSClient(SMSConfig{Username: "sandbox"}).(*africasTalkingClient)
	assert.Equal(t, africasTalkingSandboxURL, sandbox.baseURL)

	prod := NewSMSClient(SMSConfig{Username: "myapp"}).(*africasTalkingClient)
	assert.Equal(t, africasTalkingProductionURL, prod.baseURL)
}

func TestEmailClient_NotConfigured(t *testing.T) {
	err := NewEmailClient(EmailConfig{}).Send(context.Background(), "a@b.c", "s", "b")
	require.ErrorIs(t, err, ErrEmailNotConfigured)
}
