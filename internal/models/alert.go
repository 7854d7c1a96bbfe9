package models

import "time"

// Alert is one row of the append-only alert ledger. It doubles as the
// duplicate-suppression record.
type Alert struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Level     Level     `gorm:"type:varchar(20)" json:"level,omitempty"`
	Type      EventType `gorm:"type:varchar(32);index:idx_alert_type_sent_at,priority:1" json:"type,omitempty"`
	SentAt    time.Time `gorm:"not null;index:idx_alert_type_sent_at,priority:2" json:"sent_at"`
	UserID    *uint     `gorm:"index" json:"user_id,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

const (
	DeliveryStatusSent      = "SENT"
	DeliveryStatusEmailSent = "EMAIL_SENT"
	DeliveryStatusFailed    = "FAILED"
)

// AlertDelivery records a per-channel delivery attempt. Status may be
// corrected later by a gateway delivery report.
type AlertDelivery struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	AlertID           uint       `gorm:"not null;index" json:"alert_id"`
	Alert             *Alert     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	PhoneNumber       string     `gorm:"not null" json:"phone_number"`
	Channel           Channel    `gorm:"type:varchar(10);not null" json:"channel"`
	Status            string     `gorm:"type:varchar(32);not null" json:"status"`
	ProviderMessageID string     `gorm:"type:varchar(128);index" json:"provider_message_id,omitempty"`
	FailureReason     string     `gorm:"type:text" json:"failure_reason,omitempty"`
	ReceivedAt        *time.Time `json:"received_at,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
