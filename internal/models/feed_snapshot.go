package models

import (
	"time"

	"gorm.io/datatypes"
)

// FeedSnapshot keeps the raw payload of a successful feed fetch.
type FeedSnapshot struct {
	ID        uint           `gorm:"primaryKey"`
	Source    FeedKind       `gorm:"type:varchar(32);not null;index"`
	FetchedAt time.Time      `gorm:"not null;default:now()"`
	Entries   int            `gorm:"not null;default:0"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
}
