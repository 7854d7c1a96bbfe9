package service

import (
	"fmt"
	"math"
	"strconv"

	"solaralert/internal/models"
)

// Thresholds. Lower bounds of Watch and Warning for Kp are inclusive, the
// flux, speed and radio thresholds are strict.
const (
	kpWatch    = 4.0
	kpWarning  = 5.0
	kpCritical = 7.0

	radioFluxWarning  = 150.0
	radioFluxCritical = 200.0

	xrayWarning  = 1e-5
	xrayCritical = 1e-4

	cmeSpeedWarning  = 500.0
	cmeSpeedCritical = 1000.0

	protonWarning  = 10.0
	protonCritical = 100.0

	auroralHighLatitude = 50.0
	auroralMidLatitude  = 30.0
)

var allRoles = []models.Role{models.RolePilot, models.RoleTelecom, models.RoleFarmer, models.RoleGeneral}

// RelevantRoles returns the fixed role set an event type is addressed to.
func RelevantRoles(t models.EventType) []models.Role {
	switch t {
	case models.EventGeomagnetic, models.EventCME:
		return append([]models.Role(nil), allRoles...)
	case models.EventSolarFlare, models.EventRadioBlackout, models.EventRadiation:
		return []models.Role{models.RoleTelecom, models.RolePilot, models.RoleGeneral}
	case models.EventAuroral:
		return []models.Role{models.RoleFarmer, models.RoleGeneral}
	default:
		return nil
	}
}

// Classify turns feed observations into events, one per observation that
// crosses a threshold. Every Kp observation of 5 or more also yields an
// auroral candidate whose final level depends on the recipient's latitude.
func Classify(observations map[models.FeedKind][]models.Observation) []models.SpaceWeatherEvent {
	var events []models.SpaceWeatherEvent

	for _, feed := range models.FeedKinds {
		for _, obs := range observations[feed] {
			t, level, ok := classifyObservation(feed, obs.Value)
			if !ok {
				continue
			}
			events = append(events, newEvent(obs.TimeTag, t, level, obs))

			if feed == models.FeedKpIndex && obs.Value >= kpWarning {
				events = append(events, newEvent("auroral-"+obs.TimeTag, models.EventAuroral, bestAuroralLevel(obs.Value), obs))
			}
		}
	}
	return events
}

func newEvent(id string, t models.EventType, level models.Level, obs models.Observation) models.SpaceWeatherEvent {
	return models.SpaceWeatherEvent{
		ID:              id,
		Type:            t,
		Level:           level,
		Message:         DescribeEvent(t, level, obs.Value, obs.TimeTag),
		IssuedAt:        obs.TimeTag,
		Value:           obs.Value,
		RelevantToRoles: RelevantRoles(t),
	}
}

func classifyObservation(feed models.FeedKind, v float64) (models.EventType, models.Level, bool) {
	switch feed {
	case models.FeedKpIndex:
		level, ok := ClassifyKp(v)
		return models.EventGeomagnetic, level, ok
	case models.FeedRadioFlux:
		level, ok := twoTier(v, radioFluxWarning, radioFluxCritical)
		return models.EventSolarFlare, level, ok
	case models.FeedXRayFlux:
		level, ok := twoTier(v, xrayWarning, xrayCritical)
		return models.EventRadioBlackout, level, ok
	case models.FeedCMEAnalysis:
		level, ok := twoTier(v, cmeSpeedWarning, cmeSpeedCritical)
		return models.EventCME, level, ok
	case models.FeedProtonFlux:
		level, ok := twoTier(v, protonWarning, protonCritical)
		return models.EventRadiation, level, ok
	default:
		return "", "", false
	}
}

func ClassifyKp(kp float64) (models.Level, bool) {
	switch {
	case kp >= kpCritical:
		return models.LevelCritical, true
	case kp >= kpWarning:
		return models.LevelWarning, true
	case kp >= kpWatch:
		return models.LevelWatch, true
	default:
		return "", false
	}
}

// twoTier classifies metrics with only Warning and Critical bands:
// warning < v <= critical is Warning, v > critical is Critical.
func twoTier(v, warning, critical float64) (models.Level, bool) {
	switch {
	case v > critical:
		return models.LevelCritical, true
	case v > warning:
		return models.LevelWarning, true
	default:
		return "", false
	}
}

// ClassifyAuroral decides the auroral level for a Kp value at a latitude.
func ClassifyAuroral(kp, latitude float64) (models.Level, bool) {
	lat := math.Abs(latitude)
	switch {
	case lat > auroralHighLatitude && kp >= kpCritical:
		return models.LevelCritical, true
	case lat > auroralHighLatitude && kp >= kpWarning:
		return models.LevelWarning, true
	case lat > auroralMidLatitude && lat <= auroralHighLatitude && kp >= kpCritical:
		return models.LevelWarning, true
	default:
		return "", false
	}
}

func bestAuroralLevel(kp float64) models.Level {
	if kp >= kpCritical {
		return models.LevelCritical
	}
	return models.LevelWarning
}

// DescribeEvent renders the human-readable event text.
func DescribeEvent(t models.EventType, level models.Level, value float64, issuedAt string) string {
	v := formatValue(value)
	critical := level == models.LevelCritical

	switch t {
	case models.EventGeomagnetic:
		severity, impact := "Possible", "minor disruptions"
		switch level {
		case models.LevelCritical:
			severity, impact = "Severe", "widespread outages"
		case models.LevelWarning:
			severity, impact = "Moderate to Strong", "grid fluctuations"
		}
		return fmt.Sprintf("%s Alert: %s geomagnetic storm with Kp %s. Impacts: %s. Issued at %s.", level, severity, v, impact, issuedAt)
	case models.EventSolarFlare:
		return fmt.Sprintf("%s Alert: Significant solar flare detected with radio flux %s. Impacts: %s. Issued at %s.",
			level, v, pick(critical, "severe radio blackouts", "moderate disruptions"), issuedAt)
	case models.EventRadioBlackout:
		return fmt.Sprintf("%s Alert: Radio blackout risk with X-ray flux %s W/m2. Impacts: %s. Issued at %s.",
			level, v, pick(critical, "HF radio loss on the sunlit side", "degraded HF radio"), issuedAt)
	case models.EventCME:
		return fmt.Sprintf("%s Alert: Coronal mass ejection travelling at %s km/s. Impacts: %s. Issued at %s.",
			level, v, pick(critical, "strong geomagnetic storm likely on arrival", "geomagnetic disturbance possible"), issuedAt)
	case models.EventRadiation:
		return fmt.Sprintf("%s Alert: Radiation storm detected with proton flux %s. Impacts: %s. Issued at %s.",
			level, v, pick(critical, "severe radiation hazards", "moderate risks"), issuedAt)
	case models.EventAuroral:
		return fmt.Sprintf("%s Alert: Auroral activity expected with Kp %s. Impacts: %s. Issued at %s.",
			level, v, pick(critical, "aurora overhead and power line disturbances", "aurora visible on the horizon"), issuedAt)
	default:
		return fmt.Sprintf("%s Alert: %s value %s. Issued at %s.", level, t, v, issuedAt)
	}
}

// ImpactClause is the role-specific sentence appended to a targeted message.
func ImpactClause(t models.EventType, role models.Role) string {
	switch role {
	case models.RolePilot:
		if t == models.EventRadiation {
			return "Pilots: Review polar routes and altitudes."
		}
		return "Pilots: Check flight plans."
	case models.RoleTelecom:
		if t == models.EventRadioBlackout || t == models.EventSolarFlare {
			return "Telecom: Expect HF outages, monitor lines."
		}
		return "Telecom: Monitor lines."
	case models.RoleFarmer:
		if t == models.EventAuroral {
			return "Farmers: GPS guidance may drift, prepare for power issues."
		}
		return "Farmers: Prepare for power issues."
	default:
		return "Stay informed."
	}
}

// TargetedMessage is the text delivered to one recipient.
func TargetedMessage(event models.SpaceWeatherEvent, level models.Level, role models.Role) string {
	message := event.Message
	if level != event.Level {
		message = DescribeEvent(event.Type, level, event.Value, event.IssuedAt)
	}
	return fmt.Sprintf("%s: %s %s", level, message, ImpactClause(event.Type, role))
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func pick(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}
