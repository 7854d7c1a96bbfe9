package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	africasTalkingSandboxURL    = "https://api.sandbox.africastalking.com/version1/messaging"
	africasTalkingProductionURL = "https://api.africastalking.com/version1/messaging"
)

var (
	ErrInvalidPhoneNumber = errors.New("invalid phone number")
	ErrSenderIDMissing    = errors.New("sms sender id is not configured")
	ErrSMSRejected        = errors.New("sms rejected by gateway")

	phonePattern = regexp.MustCompile(`^\+\d{10,15}$`)
)

// ValidPhoneNumber reports whether phone is in E.164 form with 10 to 15 digits.
func ValidPhoneNumber(phone string) bool {
	return phonePattern.MatchString(phone)
}

type SMSConfig struct {
	Username      string
	APIKey        string
	SenderID      string
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond int
}

// SMSClient sends a single text message and returns the gateway message id.
type SMSClient interface {
	Send(ctx context.Context, phone, message string) (string, error)
}

type africasTalkingClient struct {
	username string
	apiKey   string
	senderID string
	baseURL  string
	limiter  *rate.Limiter
	client   *http.Client
}

func NewSMSClient(config SMSConfig) SMSClient {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = africasTalkingProductionURL
		if config.Username == "sandbox" {
			baseURL = africasTalkingSandboxURL
		}
	}

	limit := rate.Inf
	if config.RatePerSecond > 0 {
		limit = rate.Limit(config.RatePerSecond)
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &africasTalkingClient{
		username: config.Username,
		apiKey:   config.APIKey,
		senderID: config.SenderID,
		baseURL:  baseURL,
		limiter:  rate.NewLimiter(limit, max(config.RatePerSecond, 1)),
		client:   &http.Client{Timeout: timeout},
	}
}

type atResponse struct {
	SMSMessageData struct {
		Message    string        `json:"Message"`
		Recipients []atRecipient `json:"Recipients"`
	} `json:"SMSMessageData"`
}

type atRecipient struct {
	StatusCode int    `json:"statusCode"`
	Number     string `json:"number"`
	Status     string `json:"status"`
	MessageID  string `json:"messageId"`
}

func (c *africasTalkingClient) Send(ctx context.Context, phone, message string) (string, error) {
	if !ValidPhoneNumber(phone) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhoneNumber, phone)
	}
	if c.senderID == "" {
		return "", ErrSenderIDMissing
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("sms rate limit: %w", err)
	}

	form := url.Values{}
	form.Set("username", c.username)
	form.Set("to", phone)
	form.Set("message", message)
	form.Set("from", c.senderID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apiKey", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", ErrUpstreamStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result atResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(result.SMSMessageData.Recipients) == 0 {
		return "", fmt.Errorf("%w: %s", ErrSMSRejected, result.SMSMessageData.Message)
	}

	r := result.SMSMessageData.Recipients[0]
	// 100 Processed, 101 Sent, 102 Queued
	if r.StatusCode < 100 || r.StatusCode > 102 {
		return "", fmt.Errorf("%w: %s (%d)", ErrSMSRejected, r.Status, r.StatusCode)
	}
	return r.MessageID, nil
}
