package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"solaralert/internal/clients"
	"solaralert/internal/models"
	"solaralert/internal/repository"
)

var errBoom = errors.New("boom")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- alert ledger ---

type fakeAlertRepo struct {
	mu     sync.Mutex
	alerts []models.Alert
	nextID uint
	err    error
}

func (r *fakeAlertRepo) FindRecentByType(_ context.Context, t models.EventType, since time.Time) (*models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.recentLocked(t, since), nil
}

func (r *fakeAlertRepo) recentLocked(t models.EventType, since time.Time) *models.Alert {
	var found *models.Alert
	for i := range r.alerts {
		a := r.alerts[i]
		if a.Type == t && a.SentAt.After(since) && (found == nil || a.SentAt.After(found.SentAt)) {
			found = &a
		}
	}
	return found
}

func (r *fakeAlertRepo) Create(_ context.Context, alert *models.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.nextID++
	alert.ID = r.nextID
	r.alerts = append(r.alerts, *alert)
	return nil
}

func (r *fakeAlertRepo) CreateUnlessRecent(ctx context.Context, alert *models.Alert, since time.Time) (*models.Alert, bool, error) {
	r.mu.Lock()
	if r.err != nil {
		r.mu.Unlock()
		return nil, false, r.err
	}
	if existing := r.recentLocked(alert.Type, since); existing != nil {
		r.mu.Unlock()
		return existing, false, nil
	}
	r.mu.Unlock()
	if err := r.Create(ctx, alert); err != nil {
		return nil, false, err
	}
	return alert, true, nil
}

func (r *fakeAlertRepo) GetByID(_ context.Context, id uint) (*models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.alerts {
		if r.alerts[i].ID == id {
			a := r.alerts[i]
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeAlertRepo) FindByUser(_ context.Context, userID uint, _ string, limit int) ([]models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Alert
	for _, a := range r.alerts {
		if a.UserID != nil && *a.UserID == userID {
			out = append(out, a)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeAlertRepo) GetByDateRange(_ context.Context, from, to time.Time) ([]models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []models.Alert
	for _, a := range r.alerts {
		if !a.SentAt.Before(from) && !a.SentAt.After(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAlertRepo) FindLatest(_ context.Context, limit int) ([]models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]models.Alert(nil), r.alerts...)
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeAlertRepo) all() []models.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Alert(nil), r.alerts...)
}

// --- deliveries ---

type fakeDeliveryRepo struct {
	mu         sync.Mutex
	deliveries []models.AlertDelivery
	createErr  error
}

func (r *fakeDeliveryRepo) Create(_ context.Context, d *models.AlertDelivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	d.ID = uint(len(r.deliveries) + 1)
	r.deliveries = append(r.deliveries, *d)
	return nil
}

func (r *fakeDeliveryRepo) UpdateStatusByProviderID(_ context.Context, providerID, phone, status, reason string, receivedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	updated := false
	for i := range r.deliveries {
		if r.deliveries[i].ProviderMessageID == providerID && r.deliveries[i].PhoneNumber == phone {
			r.deliveries[i].Status = status
			r.deliveries[i].FailureReason = reason
			at := receivedAt
			r.deliveries[i].ReceivedAt = &at
			updated = true
		}
	}
	if !updated {
		return repository.ErrNotFound
	}
	return nil
}

func (r *fakeDeliveryRepo) FindByAlert(_ context.Context, alertID uint) ([]models.AlertDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.AlertDelivery
	for _, d := range r.deliveries {
		if d.AlertID == alertID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *fakeDeliveryRepo) all() []models.AlertDelivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.AlertDelivery(nil), r.deliveries...)
}

// --- subscribers ---

type fakeSubscriberRepo struct {
	mu     sync.Mutex
	byPh   map[string]models.Subscriber
	nextID uint
	err    error
}

func newFakeSubscriberRepo(subs ...models.Subscriber) *fakeSubscriberRepo {
	r := &fakeSubscriberRepo{byPh: make(map[string]models.Subscriber)}
	for _, s := range subs {
		r.nextID++
		if s.ID == 0 {
			s.ID = r.nextID
		}
		r.byPh[s.PhoneNumber] = s
	}
	return r
}

func (r *fakeSubscriberRepo) FindSubscribed(context.Context) ([]models.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []models.Subscriber
	for _, s := range r.byPh {
		if s.Subscribed {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeSubscriberRepo) FindByPhone(_ context.Context, phone string) (*models.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	s, ok := r.byPh[phone]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (r *fakeSubscriberRepo) Upsert(_ context.Context, sub *models.Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if existing, ok := r.byPh[sub.PhoneNumber]; ok {
		sub.ID = existing.ID
	} else {
		r.nextID++
		sub.ID = r.nextID
	}
	r.byPh[sub.PhoneNumber] = *sub
	return nil
}

func (r *fakeSubscriberRepo) SetSubscribed(_ context.Context, phone string, subscribed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byPh[phone]
	if !ok {
		return repository.ErrNotFound
	}
	s.Subscribed = subscribed
	r.byPh[phone] = s
	return nil
}

func (r *fakeSubscriberRepo) CountSubscribed(ctx context.Context) (int64, error) {
	subs, err := r.FindSubscribed(ctx)
	return int64(len(subs)), err
}

// --- redis cache ---

type fakeCache struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]string)}
}

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	return c.data[key], nil
}

func (c *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.data[key] = toString(value)
	return nil
}

func (c *fakeCache) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if _, ok := c.data[key]; ok {
		return false, nil
	}
	c.data[key] = toString(value)
	return true, nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	delete(c.data, key)
	return nil
}

func (c *fakeCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok, c.err
}

func (c *fakeCache) GetJSON(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	v, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal([]byte(v), dest)
}

func (c *fakeCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = string(data)
	return nil
}

func (c *fakeCache) Ping(context.Context) error { return c.err }

func (c *fakeCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

func toString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		data, _ := json.Marshal(v)
		return string(data)
	}
}

// --- gateways ---

type sentSMS struct {
	phone   string
	message string
}

type fakeSMS struct {
	mu      sync.Mutex
	sent    []sentSMS
	failFor map[string]bool
}

func (f *fakeSMS) Send(_ context.Context, phone, message string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[phone] {
		return "", errBoom
	}
	f.sent = append(f.sent, sentSMS{phone: phone, message: message})
	return "msg-" + strings.TrimPrefix(phone, "+"), nil
}

func (f *fakeSMS) messages() []sentSMS {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentSMS(nil), f.sent...)
}

type sentEmail struct {
	to, subject, body string
}

type fakeEmail struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (f *fakeEmail) Send(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentEmail{to: to, subject: subject, body: body})
	return nil
}

func (f *fakeEmail) emails() []sentEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentEmail(nil), f.sent...)
}

type fakeGeocoder struct {
	mu        sync.Mutex
	latitudes map[string]float64
	errFor    map[string]bool
	calls     map[string]int
}

func (g *fakeGeocoder) ResolveLatitude(_ context.Context, location string) (float64, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.calls == nil {
		g.calls = make(map[string]int)
	}
	g.calls[location]++
	if g.errFor[location] {
		return 0, false, errBoom
	}
	lat, ok := g.latitudes[location]
	return lat, ok, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []models.Alert
	err       error
}

func (p *fakePublisher) PublishAlert(_ context.Context, alert *models.Alert, _ int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, *alert)
	return p.err
}

type fakeFeeds struct {
	observations map[models.FeedKind][]models.Observation
	started      chan struct{}
	release      chan struct{}
}

func (f *fakeFeeds) FetchObservations(context.Context) map[models.FeedKind][]models.Observation {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.observations
}

// --- fixtures ---

func subscriber(id uint, phone string, role models.Role, location string, prefs models.Preferences) models.Subscriber {
	s := models.Subscriber{
		ID:          id,
		PhoneNumber: phone,
		Role:        role,
		Location:    location,
		Subscribed:  true,
	}
	if prefs != nil {
		_ = s.SetPreferences(prefs)
	}
	return s
}

func withEmail(s models.Subscriber, email string) models.Subscriber {
	s.Email = &email
	return s
}

var (
	_ repository.AlertRepository      = (*fakeAlertRepo)(nil)
	_ repository.DeliveryRepository   = (*fakeDeliveryRepo)(nil)
	_ repository.SubscriberRepository = (*fakeSubscriberRepo)(nil)
	_ repository.CacheRepository      = (*fakeCache)(nil)
	_ clients.SMSClient               = (*fakeSMS)(nil)
	_ clients.EmailClient             = (*fakeEmail)(nil)
	_ clients.Geocoder                = (*fakeGeocoder)(nil)
	_ AlertPublisher                  = (*fakePublisher)(nil)
	_ FeedService                     = (*fakeFeeds)(nil)
)
