package service

import "errors"

var (
	// ErrFeedUnavailable marks a feed that could not be fetched this cycle.
	ErrFeedUnavailable = errors.New("feed unavailable")
	// ErrMalformedObservation marks a feed entry that could not be parsed.
	ErrMalformedObservation = errors.New("malformed observation")
	// ErrGeocodingFailed marks a location whose latitude could not be resolved.
	ErrGeocodingFailed = errors.New("geocoding failed")
	// ErrDeliveryFailed marks a single channel send to a single recipient.
	ErrDeliveryFailed = errors.New("delivery failed")
	// ErrStoreUnavailable aborts the remaining work of a poll cycle.
	ErrStoreUnavailable = errors.New("store unavailable")

	ErrPollInProgress  = errors.New("poll cycle already in progress")
	ErrEmptyMessage    = errors.New("message must not be empty")
	ErrUnknownDelivery = errors.New("unknown delivery report id")
	ErrInvalidReport   = errors.New("delivery report id and phone number must not be blank")
	ErrNoData          = errors.New("no data found for the specified range")
	ErrUnsupported     = errors.New("unsupported format")
)
