package models

import "strings"

type EventType string

const (
	EventGeomagnetic   EventType = "geomagnetic"
	EventSolarFlare    EventType = "solarflare"
	EventRadiation     EventType = "radiation"
	EventCME           EventType = "cme"
	EventRadioBlackout EventType = "radioblackout"
	EventAuroral       EventType = "auroral"
)

// EventTypes lists every supported event type in a stable order.
var EventTypes = []EventType{
	EventGeomagnetic,
	EventSolarFlare,
	EventRadiation,
	EventCME,
	EventRadioBlackout,
	EventAuroral,
}

func (t EventType) Valid() bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

type Level string

const (
	LevelWatch    Level = "Watch"
	LevelWarning  Level = "Warning"
	LevelCritical Level = "Critical"
)

// Rank orders levels Watch < Warning < Critical. Unknown levels rank 0.
func (l Level) Rank() int {
	switch l {
	case LevelWatch:
		return 1
	case LevelWarning:
		return 2
	case LevelCritical:
		return 3
	default:
		return 0
	}
}

type Role string

const (
	RolePilot   Role = "pilot"
	RoleTelecom Role = "telecom"
	RoleFarmer  Role = "farmer"
	RoleGeneral Role = "general"
)

// ParseRole normalises free text to a known role, falling back to general.
func ParseRole(s string) Role {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RolePilot, RoleTelecom, RoleFarmer, RoleGeneral:
		return r
	default:
		return RoleGeneral
	}
}

type FeedKind string

const (
	FeedKpIndex     FeedKind = "kp_index"
	FeedRadioFlux   FeedKind = "radio_flux"
	FeedXRayFlux    FeedKind = "xray_flux"
	FeedCMEAnalysis FeedKind = "cme_analysis"
	FeedProtonFlux  FeedKind = "proton_flux"
)

var FeedKinds = []FeedKind{
	FeedKpIndex,
	FeedRadioFlux,
	FeedXRayFlux,
	FeedCMEAnalysis,
	FeedProtonFlux,
}

// Observation is a single parsed entry of an upstream feed.
type Observation struct {
	Feed    FeedKind `json:"feed"`
	Value   float64  `json:"value"`
	TimeTag string   `json:"time_tag"`
}

// SpaceWeatherEvent is a threshold-crossing observation ready for dispatch.
// It lives for one poll cycle only.
type SpaceWeatherEvent struct {
	ID              string    `json:"id"`
	Type            EventType `json:"type"`
	Level           Level     `json:"level"`
	Message         string    `json:"message"`
	IssuedAt        string    `json:"issued_at"`
	Value           float64   `json:"value"`
	RelevantToRoles []Role    `json:"relevant_to_roles"`
}

func (e SpaceWeatherEvent) RelevantTo(role Role) bool {
	for _, r := range e.RelevantToRoles {
		if r == role {
			return true
		}
	}
	return false
}
