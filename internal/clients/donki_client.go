package clients

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jonboulle/clockwork"

	"solaralert/internal/models"
)

// DONKIClient reads the NASA DONKI coronal mass ejection analyses.
type DONKIClient interface {
	FetchCMEAnalysis(ctx context.Context) (*FeedPayload, error)
}

type donkiClient struct {
	baseURL      string
	apiKey       string
	lookbackDays int
	clock        clockwork.Clock
	client       *http.Client
}

var cmeSpec = fieldSpec{valueFields: []string{"speed"}, timeField: "time21_5"}

func NewDONKIClient(config FeedConfig, clock clockwork.Clock) DONKIClient {
	days := config.DONKILookbackDays
	if days < 1 || days > 30 {
		days = 2
	}
	return &donkiClient{
		baseURL:      config.DONKIURL,
		apiKey:       config.NASAAPIKey,
		lookbackDays: days,
		clock:        clock,
		client:       newHTTPClient(config.Timeout),
	}
}

func (c *donkiClient) FetchCMEAnalysis(ctx context.Context) (*FeedPayload, error) {
	now := c.clock.Now().UTC()

	params := url.Values{}
	params.Add("startDate", now.AddDate(0, 0, -c.lookbackDays).Format("2006-01-02"))
	params.Add("endDate", now.Format("2006-01-02"))
	params.Add("mostAccurateOnly", "true")
	params.Add("catalog", "ALL")
	if c.apiKey != "" {
		params.Add("api_key", c.apiKey)
	}

	reqURL := fmt.Sprintf("%s/CMEAnalysis?%s", c.baseURL, params.Encode())

	body, err := getJSON(ctx, c.client, reqURL)
	if err != nil {
		return nil, err
	}
	// DONKI answers an empty window with an empty body instead of [].
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("[]")
	}
	return parseFeed(models.FeedCMEAnalysis, body, cmeSpec)
}
