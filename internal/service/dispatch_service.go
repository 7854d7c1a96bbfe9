package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"solaralert/internal/clients"
	"solaralert/internal/models"
	"solaralert/internal/observability"
	"solaralert/internal/repository"
)

// AlertPublisher forwards persisted alerts to downstream consumers.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, alert *models.Alert, deliveries int) error
}

// DeliveryOutcome is the result of one send on one channel to one recipient.
type DeliveryOutcome struct {
	Subscriber        models.Subscriber
	Channel           models.Channel
	ProviderMessageID string
	Err               error
}

type DispatchResult struct {
	EventID  string            `json:"event_id"`
	Type     models.EventType  `json:"type"`
	Level    models.Level      `json:"level"`
	AlertID  uint              `json:"alert_id"`
	Raced    bool              `json:"raced,omitempty"`
	Sent     int               `json:"sent"`
	Failed   int               `json:"failed"`
	Outcomes []DeliveryOutcome `json:"-"`
}

type Dispatcher struct {
	sms         clients.SMSClient
	email       clients.EmailClient
	alerts      repository.AlertRepository
	deliveries  repository.DeliveryRepository
	publisher   AlertPublisher
	filter      *DuplicateFilter
	concurrency int
	clock       clockwork.Clock
	logger      *slog.Logger
	metrics     *observability.Metrics
}

type DispatcherDeps struct {
	SMS         clients.SMSClient
	Email       clients.EmailClient
	Alerts      repository.AlertRepository
	Deliveries  repository.DeliveryRepository
	Publisher   AlertPublisher
	Filter      *DuplicateFilter
	Concurrency int
	Clock       clockwork.Clock
	Logger      *slog.Logger
	Metrics     *observability.Metrics
}

func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	if deps.Concurrency < 1 {
		deps.Concurrency = 1
	}
	return &Dispatcher{
		sms:         deps.SMS,
		email:       deps.Email,
		alerts:      deps.Alerts,
		deliveries:  deps.Deliveries,
		publisher:   deps.Publisher,
		filter:      deps.Filter,
		concurrency: deps.Concurrency,
		clock:       deps.Clock,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
	}
}

type sendTask struct {
	target  Target
	channel models.Channel
}

// Dispatch sends the event to every target, then records one alert for the
// event and one delivery row per successful send. Send failures are isolated
// per recipient and channel; only a ledger failure is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, event models.SpaceWeatherEvent, targets []Target) (*DispatchResult, error) {
	result := d.fanOut(ctx, event, targets)

	level := recordedLevel(event, targets)
	message := event.Message
	if level != event.Level {
		message = DescribeEvent(event.Type, level, event.Value, event.IssuedAt)
	}
	result.Level = level

	alert := &models.Alert{
		Message: message,
		Level:   level,
		Type:    event.Type,
		SentAt:  d.clock.Now().UTC(),
	}
	stored, created, err := d.alerts.CreateUnlessRecent(ctx, alert, d.filter.Since(alert.SentAt))
	if err != nil {
		return result, fmt.Errorf("%w: record alert for event %s: %w", ErrStoreUnavailable, event.ID, err)
	}
	result.AlertID = stored.ID
	if !created {
		result.Raced = true
		d.logger.Warn("alert of this type recorded concurrently, attaching deliveries",
			"event_id", event.ID,
			"type", event.Type,
			"alert_id", stored.ID,
		)
	}

	d.recordDeliveries(ctx, event, stored.ID, result.Outcomes)

	if d.publisher != nil && created {
		if err := d.publisher.PublishAlert(ctx, stored, result.Sent); err != nil {
			d.logger.Error("alert publish failed", "event_id", event.ID, "alert_id", stored.ID, "error", err)
		}
	}

	return result, nil
}

// recordedLevel is the level an auroral alert is stored under: the highest
// level any recipient was targeted at, or Warning when nobody qualified.
func recordedLevel(event models.SpaceWeatherEvent, targets []Target) models.Level {
	if event.Type != models.EventAuroral {
		return event.Level
	}
	level := models.LevelWarning
	for _, t := range targets {
		if t.Level.Rank() > level.Rank() {
			level = t.Level
		}
	}
	return level
}

// Broadcast sends an operator message to every subscriber over SMS and
// records it as an untyped alert. It bypasses the duplicate filter.
func (d *Dispatcher) Broadcast(ctx context.Context, message string, subscribers []models.Subscriber) (*DispatchResult, error) {
	event := models.SpaceWeatherEvent{
		ID:      "manual-" + d.clock.Now().UTC().Format(time.RFC3339),
		Message: message,
	}

	targets := make([]Target, 0, len(subscribers))
	for _, sub := range subscribers {
		if !sub.Subscribed {
			continue
		}
		targets = append(targets, Target{Subscriber: sub, Message: "Space Weather Alert: " + message})
	}

	result := d.fanOut(ctx, event, targets)

	alert := &models.Alert{Message: message, SentAt: d.clock.Now().UTC()}
	if err := d.alerts.Create(ctx, alert); err != nil {
		return result, fmt.Errorf("%w: record manual alert: %w", ErrStoreUnavailable, err)
	}
	result.AlertID = alert.ID

	d.recordDeliveries(ctx, event, alert.ID, result.Outcomes)
	return result, nil
}

func (d *Dispatcher) fanOut(ctx context.Context, event models.SpaceWeatherEvent, targets []Target) *DispatchResult {
	tasks := make([]sendTask, 0, len(targets))
	for _, target := range targets {
		tasks = append(tasks, sendTask{target: target, channel: models.ChannelSMS})
		if target.Level == models.LevelCritical && target.Subscriber.HasEmail() {
			tasks = append(tasks, sendTask{target: target, channel: models.ChannelEmail})
		}
	}

	outcomes := make([]DeliveryOutcome, len(tasks))

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, task := range tasks {
		g.Go(func() error {
			outcomes[i] = d.send(ctx, event, task)
			return nil
		})
	}
	_ = g.Wait()

	result := &DispatchResult{
		EventID:  event.ID,
		Type:     event.Type,
		Level:    event.Level,
		Outcomes: outcomes,
	}
	for _, o := range outcomes {
		outcome := "sent"
		if o.Err != nil {
			result.Failed++
			outcome = "failed"
		} else {
			result.Sent++
		}
		d.metrics.Deliveries.WithLabelValues(string(o.Channel), outcome).Inc()
	}
	return result
}

func (d *Dispatcher) send(ctx context.Context, event models.SpaceWeatherEvent, task sendTask) DeliveryOutcome {
	sub := task.target.Subscriber
	outcome := DeliveryOutcome{Subscriber: sub, Channel: task.channel}

	var err error
	switch task.channel {
	case models.ChannelSMS:
		outcome.ProviderMessageID, err = d.sms.Send(ctx, sub.PhoneNumber, task.target.Message)
	case models.ChannelEmail:
		subject := "Critical Alert: " + strings.ToUpper(string(event.Type))
		err = d.email.Send(ctx, *sub.Email, subject, task.target.Message)
	}

	if err != nil {
		outcome.Err = fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
		d.logger.Error("delivery failed",
			"event_id", event.ID,
			"phone", sub.PhoneNumber,
			"channel", task.channel,
			"error", err,
		)
	}
	return outcome
}

func (d *Dispatcher) recordDeliveries(ctx context.Context, event models.SpaceWeatherEvent, alertID uint, outcomes []DeliveryOutcome) {
	for _, o := range outcomes {
		if o.Err != nil {
			continue
		}
		status := models.DeliveryStatusSent
		if o.Channel == models.ChannelEmail {
			status = models.DeliveryStatusEmailSent
		}
		delivery := &models.AlertDelivery{
			AlertID:           alertID,
			PhoneNumber:       o.Subscriber.PhoneNumber,
			Channel:           o.Channel,
			Status:            status,
			ProviderMessageID: o.ProviderMessageID,
		}
		if err := d.deliveries.Create(ctx, delivery); err != nil {
			d.logger.Error("delivery record failed",
				"event_id", event.ID,
				"phone", o.Subscriber.PhoneNumber,
				"channel", o.Channel,
				"error", err,
			)
		}
	}
}
