package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"solaralert/internal/models"
)

const userAgent = "SolarAlert/1.0"

// ErrUpstreamStatus is returned when a feed answers with a non-200 status.
var ErrUpstreamStatus = errors.New("upstream returned unexpected status")

type FeedConfig struct {
	KpIndexURL        string
	RadioFluxURL      string
	XRayURL           string
	ProtonURL         string
	DONKIURL          string
	NASAAPIKey        string
	Timeout           time.Duration
	DONKILookbackDays int
}

// FeedPayload is the parsed result of one feed fetch together with the raw
// body it was parsed from.
type FeedPayload struct {
	Feed         models.FeedKind
	Raw          json.RawMessage
	Observations []models.Observation
	Skipped      int
}

type record map[string]json.RawMessage

// fieldSpec describes how to read one feed's array of records.
type fieldSpec struct {
	valueFields []string
	timeField   string
	energy      string
	// latestOnly keeps just the newest entry of a feed that carries its whole
	// history.
	latestOnly bool
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:    10,
			IdleConnTimeout: 30 * time.Second,
		},
	}
}

func getJSON(ctx context.Context, client *http.Client, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %d: %s", ErrUpstreamStatus, resp.StatusCode, bytes.TrimSpace(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// parseFeed decodes a JSON array of records into observations. Entries that
// lack a usable value or timestamp are counted in Skipped, never returned.
func parseFeed(kind models.FeedKind, body []byte, spec fieldSpec) (*FeedPayload, error) {
	var records []record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}

	payload := &FeedPayload{
		Feed:         kind,
		Raw:          json.RawMessage(body),
		Observations: make([]models.Observation, 0, len(records)),
	}

	for _, rec := range records {
		if spec.energy != "" && readString(rec["energy"]) != spec.energy {
			continue
		}

		timeTag := readString(rec[spec.timeField])
		if timeTag == "" {
			payload.Skipped++
			continue
		}

		value, ok := firstNumber(rec, spec.valueFields)
		if !ok || value < 0 {
			payload.Skipped++
			continue
		}

		payload.Observations = append(payload.Observations, models.Observation{
			Feed:    kind,
			Value:   value,
			TimeTag: timeTag,
		})
	}

	if spec.latestOnly && len(payload.Observations) > 1 {
		payload.Observations = []models.Observation{newest(payload.Observations)}
	}
	return payload, nil
}

// newest compares time tags as strings; every feed uses a big-endian
// date layout (YYYY-MM, RFC 3339).
func newest(observations []models.Observation) models.Observation {
	latest := observations[0]
	for _, obs := range observations[1:] {
		if obs.TimeTag > latest.TimeTag {
			latest = obs
		}
	}
	return latest
}

func firstNumber(rec record, fields []string) (float64, bool) {
	for _, f := range fields {
		if v, ok := readNumber(rec[f]); ok {
			return v, true
		}
	}
	return 0, false
}

// readNumber accepts JSON numbers and numeric strings.
func readNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func readString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
