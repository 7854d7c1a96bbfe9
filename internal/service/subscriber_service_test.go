package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solaralert/internal/clients"
	"solaralert/internal/models"
	"solaralert/internal/repository"
)

func TestSubscribe_CreatesWithDefaults(t *testing.T) {
	repo := newFakeSubscriberRepo()
	svc := NewSubscriberService(repo, newFakeCache(), discardLogger())

	sub, err := svc.Subscribe(context.Background(), SubscribeRequest{
		PhoneNumber: " +254712345678 ",
		Location:    "Nairobi",
		Role:        "pilot",
		Preferences: map[models.EventType]bool{models.EventSolarFlare: true, "bogus": true},
	})
	require.NoError(t, err)

	assert.Equal(t, "+254712345678", sub.PhoneNumber)
	assert.Equal(t, models.RolePilot, sub.Role)
	assert.True(t, sub.Subscribed)
	assert.Nil(t, sub.Email)

	prefs := sub.DecodePreferences()
	assert.True(t, prefs[models.EventGeomagnetic])
	assert.True(t, prefs[models.EventSolarFlare])
	assert.False(t, prefs[models.EventRadiation])
	assert.NotContains(t, prefs, models.EventType("bogus"))
}

func TestSubscribe_MergesExistingPreferencesAndEmail(t *testing.T) {
	existing := withEmail(subscriber(7, "+254712345678", models.RoleFarmer, "Nakuru",
		models.Preferences{models.EventAuroral: true, models.EventGeomagnetic: false}), "farm@example.com")
	existing.Subscribed = false
	repo := newFakeSubscriberRepo(existing)
	svc := NewSubscriberService(repo, nil, discardLogger())

	sub, err := svc.Subscribe(context.Background(), SubscribeRequest{
		PhoneNumber: "+254712345678",
		Location:    "Eldoret",
		Role:        "unknown-role",
		Preferences: map[models.EventType]bool{models.EventCME: true},
	})
	require.NoError(t, err)

	assert.Equal(t, uint(7), sub.ID)
	assert.Equal(t, "Eldoret", sub.Location)
	assert.Equal(t, models.RoleGeneral, sub.Role)
	assert.True(t, sub.Subscribed)
	require.NotNil(t, sub.Email)
	assert.Equal(t, "farm@example.com", *sub.Email)

	prefs := sub.DecodePreferences()
	assert.True(t, prefs[models.EventAuroral])
	assert.False(t, prefs[models.EventGeomagnetic])
	assert.True(t, prefs[models.EventCME])
}

func TestSubscribe_Validation(t *testing.T) {
	svc := NewSubscriberService(newFakeSubscriberRepo(), nil, discardLogger())

	_, err := svc.Subscribe(context.Background(), SubscribeRequest{PhoneNumber: "0712345678", Location: "Nairobi"})
	assert.ErrorIs(t, err, clients.ErrInvalidPhoneNumber)

	_, err = svc.Subscribe(context.Background(), SubscribeRequest{PhoneNumber: "+254712345678", Location: "  "})
	assert.ErrorIs(t, err, ErrLocationRequired)
}

func TestUnsubscribe(t *testing.T) {
	repo := newFakeSubscriberRepo(subscriber(1, "+254712345678", models.RoleGeneral, "Nairobi", nil))
	svc := NewSubscriberService(repo, nil, discardLogger())

	require.NoError(t, svc.Unsubscribe(context.Background(), "+254712345678"))
	sub, err := repo.FindByPhone(context.Background(), "+254712345678")
	require.NoError(t, err)
	assert.False(t, sub.Subscribed)

	assert.ErrorIs(t, svc.Unsubscribe(context.Background(), "+254700000000"), repository.ErrNotFound)
}

func ussd(svc SubscriberService, text string) string {
	return svc.HandleUSSD(context.Background(), USSDRequest{
		SessionID:   "sess-1",
		ServiceCode: "*384*123#",
		PhoneNumber: "+254712345678",
		Text:        text,
	})
}

func TestHandleUSSD_SubscribeFlow(t *testing.T) {
	repo := newFakeSubscriberRepo()
	cache := newFakeCache()
	svc := NewSubscriberService(repo, cache, discardLogger())

	assert.Equal(t, "CON Welcome to Space Weather Alerts\n1. Subscribe\n2. Unsubscribe\n3. Check Status", ussd(svc, ""))
	assert.Equal(t, "CON Enter your location (e.g., Nairobi):", ussd(svc, "1"))
	assert.Equal(t, "CON Select role:\n1. Pilot\n2. Telecom Operator\n3. Farmer\n4. General", ussd(svc, "1*Nairobi"))
	assert.True(t, cache.has("ussd:session:sess-1"))

	reply := ussd(svc, "1*Nairobi*2")
	assert.Equal(t, "CON Select alert preferences:\n"+
		"1. Geomagnetic (On)\n2. Solar Flares (Off)\n3. Radiation Storms (Off)\n"+
		"4. CMEs (Off)\n5. Radio Blackouts (Off)\n6. Aurora (Off)\n9. Save", reply)

	reply = ussd(svc, "1*Nairobi*2*2")
	assert.Contains(t, reply, "CON Updated preferences.")
	assert.Contains(t, reply, "2. Solar Flares (On)")

	reply = ussd(svc, "1*Nairobi*2*2*7")
	assert.Contains(t, reply, "CON Invalid choice.")

	reply = ussd(svc, "1*Nairobi*2*2*7*9")
	assert.Equal(t, "END Subscribed in Nairobi as telecom. Alerts: geomagnetic, solarflare.", reply)
	assert.False(t, cache.has("ussd:session:sess-1"))

	sub, err := repo.FindByPhone(context.Background(), "+254712345678")
	require.NoError(t, err)
	assert.Equal(t, models.RoleTelecom, sub.Role)
	assert.Equal(t, "Nairobi", sub.Location)
	assert.True(t, sub.PreferenceFor(models.EventSolarFlare))
	assert.False(t, sub.PreferenceFor(models.EventRadiation))
}

func TestHandleUSSD_SessionExpired(t *testing.T) {
	svc := NewSubscriberService(newFakeSubscriberRepo(), newFakeCache(), discardLogger())

	assert.Equal(t, "END Session expired. Dial again to subscribe.", ussd(svc, "1*Nairobi*3"))
	assert.Equal(t, "END Location cannot be empty. Dial again to subscribe.", ussd(svc, "1*"))
}

func TestHandleUSSD_UnsubscribeAndStatus(t *testing.T) {
	repo := newFakeSubscriberRepo(subscriber(1, "+254712345678", models.RoleFarmer, "Nakuru",
		models.Preferences{models.EventAuroral: true}))
	svc := NewSubscriberService(repo, newFakeCache(), discardLogger())

	assert.Equal(t, "END Status: Subscribed, Location: Nakuru, Role: farmer, Alerts: geomagnetic, auroral", ussd(svc, "3"))
	assert.Equal(t, "END You have unsubscribed.", ussd(svc, "2"))
	assert.Contains(t, ussd(svc, "3"), "Status: Unsubscribed")

	other := NewSubscriberService(newFakeSubscriberRepo(), nil, discardLogger())
	assert.Equal(t, "END You are not subscribed.", ussd(other, "2"))
	assert.Equal(t, "END Not registered. Dial again and choose 1 to subscribe.", ussd(other, "3"))
}

func TestHandleUSSD_InvalidAndErrors(t *testing.T) {
	cache := newFakeCache()
	svc := NewSubscriberService(newFakeSubscriberRepo(), cache, discardLogger())

	assert.Equal(t, "END Invalid input. Try again.", ussd(svc, "5"))
	assert.Equal(t, "END Invalid input. Try again.", ussd(svc, "2*1"))

	cache.err = errBoom
	assert.Equal(t, "END An error occurred. Try again later.", ussd(svc, "1*Nairobi"))
}
