package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type Subscriber struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	PhoneNumber string         `gorm:"uniqueIndex;not null" json:"phone_number"`
	Location    string         `gorm:"type:text" json:"location"`
	Role        Role           `gorm:"type:varchar(20);not null;default:general" json:"role"`
	Email       *string        `gorm:"type:varchar(255)" json:"email,omitempty"`
	Subscribed  bool           `gorm:"not null;default:true;index" json:"subscribed"`
	Preferences datatypes.JSON `gorm:"type:jsonb" json:"preferences,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// Preferences is the per-type opt-in map stored as JSONB.
type Preferences map[EventType]bool

// DefaultPreferences are the flags a subscriber gets at onboarding.
func DefaultPreferences() Preferences {
	prefs := make(Preferences, len(EventTypes))
	for _, t := range EventTypes {
		prefs[t] = t == EventGeomagnetic
	}
	return prefs
}

// DecodePreferences returns the stored flags. Malformed JSON yields an empty map.
func (s *Subscriber) DecodePreferences() Preferences {
	prefs := Preferences{}
	if len(s.Preferences) == 0 {
		return prefs
	}
	if err := json.Unmarshal(s.Preferences, &prefs); err != nil {
		return Preferences{}
	}
	return prefs
}

func (s *Subscriber) SetPreferences(prefs Preferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	s.Preferences = data
	return nil
}

// PreferenceFor reports whether the subscriber wants alerts of type t.
// An unset flag falls back to the onboarding default.
func (s *Subscriber) PreferenceFor(t EventType) bool {
	if enabled, ok := s.DecodePreferences()[t]; ok {
		return enabled
	}
	return DefaultPreferences()[t]
}

// EffectiveRole treats an empty role as general.
func (s *Subscriber) EffectiveRole() Role {
	if s.Role == "" {
		return RoleGeneral
	}
	return s.Role
}

func (s *Subscriber) HasEmail() bool {
	return s.Email != nil && *s.Email != ""
}
