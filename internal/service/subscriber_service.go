package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"solaralert/internal/clients"
	"solaralert/internal/models"
	"solaralert/internal/repository"
)

const (
	ussdSessionPrefix = "ussd:session:"
	ussdSessionTTL    = 5 * time.Minute
	ussdSaveOption    = "9"
)

var ErrLocationRequired = errors.New("location is required")

// ussdToggles maps menu digits to the preference they flip.
var ussdToggles = []struct {
	key   string
	label string
	t     models.EventType
}{
	{"1", "Geomagnetic", models.EventGeomagnetic},
	{"2", "Solar Flares", models.EventSolarFlare},
	{"3", "Radiation Storms", models.EventRadiation},
	{"4", "CMEs", models.EventCME},
	{"5", "Radio Blackouts", models.EventRadioBlackout},
	{"6", "Aurora", models.EventAuroral},
}

type SubscribeRequest struct {
	PhoneNumber string                    `json:"phoneNumber" binding:"required"`
	Location    string                    `json:"location"`
	Role        string                    `json:"role"`
	Email       string                    `json:"email"`
	Preferences map[models.EventType]bool `json:"preferences"`
}

// USSDRequest is the gateway callback for one step of a USSD session. Text
// holds every input of the session so far joined by '*'.
type USSDRequest struct {
	SessionID   string `form:"sessionId" json:"sessionId"`
	ServiceCode string `form:"serviceCode" json:"serviceCode"`
	PhoneNumber string `form:"phoneNumber" json:"phoneNumber"`
	Text        string `form:"text" json:"text"`
}

type ussdSession struct {
	Location    string             `json:"location"`
	Role        models.Role        `json:"role"`
	Preferences models.Preferences `json:"preferences"`
}

type SubscriberService interface {
	Subscribe(ctx context.Context, req SubscribeRequest) (*models.Subscriber, error)
	Unsubscribe(ctx context.Context, phone string) error
	HandleUSSD(ctx context.Context, req USSDRequest) string
}

type subscriberService struct {
	repo   repository.SubscriberRepository
	cache  repository.CacheRepository
	logger *slog.Logger
}

func NewSubscriberService(repo repository.SubscriberRepository, cache repository.CacheRepository, logger *slog.Logger) SubscriberService {
	return &subscriberService{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

func (s *subscriberService) Subscribe(ctx context.Context, req SubscribeRequest) (*models.Subscriber, error) {
	phone := strings.TrimSpace(req.PhoneNumber)
	if !clients.ValidPhoneNumber(phone) {
		return nil, fmt.Errorf("%w: %q", clients.ErrInvalidPhoneNumber, phone)
	}
	location := strings.TrimSpace(req.Location)
	if location == "" {
		return nil, ErrLocationRequired
	}

	prefs := models.DefaultPreferences()
	existing, err := s.repo.FindByPhone(ctx, phone)
	switch {
	case err == nil:
		for t, v := range existing.DecodePreferences() {
			prefs[t] = v
		}
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("find subscriber: %w", err)
	}
	for t, v := range req.Preferences {
		if t.Valid() {
			prefs[t] = v
		}
	}

	sub := &models.Subscriber{
		PhoneNumber: phone,
		Location:    location,
		Role:        models.ParseRole(req.Role),
		Subscribed:  true,
	}
	if email := strings.TrimSpace(req.Email); email != "" {
		sub.Email = &email
	} else if existing != nil {
		sub.Email = existing.Email
	}
	if err := sub.SetPreferences(prefs); err != nil {
		return nil, fmt.Errorf("encode preferences: %w", err)
	}

	if err := s.repo.Upsert(ctx, sub); err != nil {
		return nil, fmt.Errorf("upsert subscriber: %w", err)
	}
	s.logger.Info("subscriber subscribed", "phone", phone, "role", sub.Role)
	return sub, nil
}

func (s *subscriberService) Unsubscribe(ctx context.Context, phone string) error {
	if err := s.repo.SetSubscribed(ctx, strings.TrimSpace(phone), false); err != nil {
		return err
	}
	s.logger.Info("subscriber unsubscribed", "phone", phone)
	return nil
}

// HandleUSSD answers one USSD step. Replies start with CON when the session
// continues and END when it is over.
func (s *subscriberService) HandleUSSD(ctx context.Context, req USSDRequest) string {
	reply, err := s.ussdStep(ctx, req)
	if err != nil {
		s.logger.Error("ussd step failed",
			"session_id", req.SessionID,
			"phone", req.PhoneNumber,
			"error", err,
		)
		return "END An error occurred. Try again later."
	}
	return reply
}

func (s *subscriberService) ussdStep(ctx context.Context, req USSDRequest) (string, error) {
	inputs := strings.Split(req.Text, "*")
	step := len(inputs)
	input := strings.TrimSpace(inputs[step-1])

	switch {
	case step == 1 && input == "":
		return "CON Welcome to Space Weather Alerts\n1. Subscribe\n2. Unsubscribe\n3. Check Status", nil
	case step == 1 && input == "1":
		return "CON Enter your location (e.g., Nairobi):", nil
	case step == 1 && input == "2":
		return s.ussdUnsubscribe(ctx, req.PhoneNumber)
	case step == 1 && input == "3":
		return s.ussdStatus(ctx, req.PhoneNumber)
	case step >= 2 && inputs[0] == "1":
		return s.ussdSubscribeFlow(ctx, req, step, input)
	default:
		return "END Invalid input. Try again.", nil
	}
}

func (s *subscriberService) ussdSubscribeFlow(ctx context.Context, req USSDRequest, step int, input string) (string, error) {
	if s.cache == nil {
		return "", errors.New("ussd session store is not configured")
	}
	key := ussdSessionPrefix + req.SessionID

	if step == 2 {
		if input == "" {
			return "END Location cannot be empty. Dial again to subscribe.", nil
		}
		session := ussdSession{Location: input, Role: models.RoleGeneral, Preferences: models.DefaultPreferences()}
		if err := s.cache.SetJSON(ctx, key, session, ussdSessionTTL); err != nil {
			return "", fmt.Errorf("store session: %w", err)
		}
		return "CON Select role:\n1. Pilot\n2. Telecom Operator\n3. Farmer\n4. General", nil
	}

	var session ussdSession
	found, err := s.cache.GetJSON(ctx, key, &session)
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	if !found || session.Location == "" {
		return "END Session expired. Dial again to subscribe.", nil
	}
	if session.Preferences == nil {
		session.Preferences = models.DefaultPreferences()
	}

	if step == 3 {
		session.Role = ussdRole(input)
		if err := s.cache.SetJSON(ctx, key, session, ussdSessionTTL); err != nil {
			return "", fmt.Errorf("store session: %w", err)
		}
		return "CON Select alert preferences:\n" + preferenceMenu(session.Preferences), nil
	}

	if input == ussdSaveOption {
		return s.ussdSave(ctx, req, key, session)
	}

	toggled := false
	for _, opt := range ussdToggles {
		if opt.key == input {
			session.Preferences[opt.t] = !session.Preferences[opt.t]
			toggled = true
			break
		}
	}
	if !toggled {
		return "CON Invalid choice. Select:\n" + preferenceMenu(session.Preferences), nil
	}
	if err := s.cache.SetJSON(ctx, key, session, ussdSessionTTL); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return "CON Updated preferences. Select:\n" + preferenceMenu(session.Preferences), nil
}

func (s *subscriberService) ussdSave(ctx context.Context, req USSDRequest, key string, session ussdSession) (string, error) {
	sub := &models.Subscriber{
		PhoneNumber: req.PhoneNumber,
		Location:    session.Location,
		Role:        session.Role,
		Subscribed:  true,
	}
	if existing, err := s.repo.FindByPhone(ctx, req.PhoneNumber); err == nil {
		sub.Email = existing.Email
	}
	if err := sub.SetPreferences(session.Preferences); err != nil {
		return "", fmt.Errorf("encode preferences: %w", err)
	}
	if err := s.repo.Upsert(ctx, sub); err != nil {
		return "", fmt.Errorf("upsert subscriber: %w", err)
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("ussd session cleanup failed", "session_id", req.SessionID, "error", err)
	}

	s.logger.Info("subscriber subscribed via ussd", "phone", req.PhoneNumber, "role", session.Role)
	return fmt.Sprintf("END Subscribed in %s as %s. Alerts: %s.", session.Location, session.Role, enabledList(session.Preferences)), nil
}

func (s *subscriberService) ussdUnsubscribe(ctx context.Context, phone string) (string, error) {
	err := s.repo.SetSubscribed(ctx, phone, false)
	if errors.Is(err, repository.ErrNotFound) {
		return "END You are not subscribed.", nil
	}
	if err != nil {
		return "", err
	}
	return "END You have unsubscribed.", nil
}

func (s *subscriberService) ussdStatus(ctx context.Context, phone string) (string, error) {
	sub, err := s.repo.FindByPhone(ctx, phone)
	if errors.Is(err, repository.ErrNotFound) {
		return "END Not registered. Dial again and choose 1 to subscribe.", nil
	}
	if err != nil {
		return "", err
	}

	status := "Unsubscribed"
	if sub.Subscribed {
		status = "Subscribed"
	}
	prefs := models.DefaultPreferences()
	for t, v := range sub.DecodePreferences() {
		prefs[t] = v
	}
	return fmt.Sprintf("END Status: %s, Location: %s, Role: %s, Alerts: %s",
		status, sub.Location, sub.EffectiveRole(), enabledList(prefs)), nil
}

func ussdRole(input string) models.Role {
	switch input {
	case "1":
		return models.RolePilot
	case "2":
		return models.RoleTelecom
	case "3":
		return models.RoleFarmer
	default:
		return models.RoleGeneral
	}
}

func preferenceMenu(prefs models.Preferences) string {
	var b strings.Builder
	for _, opt := range ussdToggles {
		state := "Off"
		if prefs[opt.t] {
			state = "On"
		}
		fmt.Fprintf(&b, "%s. %s (%s)\n", opt.key, opt.label, state)
	}
	b.WriteString(ussdSaveOption + ". Save")
	return b.String()
}

func enabledList(prefs models.Preferences) string {
	var enabled []string
	for _, t := range models.EventTypes {
		if prefs[t] {
			enabled = append(enabled, string(t))
		}
	}
	if len(enabled) == 0 {
		return "none"
	}
	return strings.Join(enabled, ", ")
}
