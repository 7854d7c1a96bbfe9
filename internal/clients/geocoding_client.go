package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrGeocoderNotConfigured = errors.New("mapbox token is not configured")

// Geocoder resolves a free-text location to a latitude. ok is false when
// the location is unknown to the provider.
type Geocoder interface {
	ResolveLatitude(ctx context.Context, location string) (float64, bool, error)
}

// MapboxClient implements Geocoder using the Mapbox Geocoding API.
type MapboxClient struct {
	token      string
	httpClient *http.Client
	baseURL    string
}

func NewMapboxClient(token string, timeout time.Duration) *MapboxClient {
	return &MapboxClient{
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    "https://api.mapbox.com/geocoding/v5/mapbox.places",
	}
}

func (c *MapboxClient) ResolveLatitude(ctx context.Context, location string) (float64, bool, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return 0, false, nil
	}
	if c.token == "" {
		return 0, false, ErrGeocoderNotConfigured
	}

	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(location))
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {"place,locality,region,country"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+params.Encode(), nil)
	if err != nil {
		return 0, false, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, false, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, false, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp mapboxResponse
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return 0, false, fmt.Errorf("decode response: %w", err)
	}

	if len(mapboxResp.Features) == 0 || len(mapboxResp.Features[0].Center) != 2 {
		return 0, false, nil
	}
	// Mapbox uses lon,lat order.
	return mapboxResp.Features[0].Center[1], true, nil
}

type mapboxResponse struct {
	Features []mapboxFeature `json:"features"`
}

type mapboxFeature struct {
	Center    []float64 `json:"center"`
	PlaceName string    `json:"place_name"`
	Relevance float64   `json:"relevance"`
}
