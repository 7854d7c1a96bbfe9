package clients

import (
	"context"
	"net/http"

	"solaralert/internal/models"
)

// SWPCClient reads the NOAA Space Weather Prediction Center JSON products.
type SWPCClient interface {
	FetchKpIndex(ctx context.Context) (*FeedPayload, error)
	FetchRadioFlux(ctx context.Context) (*FeedPayload, error)
	FetchXRayFlux(ctx context.Context) (*FeedPayload, error)
	FetchProtonFlux(ctx context.Context) (*FeedPayload, error)
}

type swpcClient struct {
	kpURL        string
	radioFluxURL string
	xrayURL      string
	protonURL    string
	client       *http.Client
}

var (
	kpSpec        = fieldSpec{valueFields: []string{"kp_index", "estimated_kp"}, timeField: "time_tag"}
	radioFluxSpec = fieldSpec{valueFields: []string{"f10.7"}, timeField: "time-tag", latestOnly: true}
	xraySpec      = fieldSpec{valueFields: []string{"flux"}, timeField: "time_tag", energy: "0.1-0.8nm"}
	protonSpec    = fieldSpec{valueFields: []string{"flux"}, timeField: "time_tag", energy: ">=10 MeV"}
)

func NewSWPCClient(config FeedConfig) SWPCClient {
	return &swpcClient{
		kpURL:        config.KpIndexURL,
		radioFluxURL: config.RadioFluxURL,
		xrayURL:      config.XRayURL,
		protonURL:    config.ProtonURL,
		client:       newHTTPClient(config.Timeout),
	}
}

func (c *swpcClient) FetchKpIndex(ctx context.Context) (*FeedPayload, error) {
	return c.fetch(ctx, models.FeedKpIndex, c.kpURL, kpSpec)
}

func (c *swpcClient) FetchRadioFlux(ctx context.Context) (*FeedPayload, error) {
	return c.fetch(ctx, models.FeedRadioFlux, c.radioFluxURL, radioFluxSpec)
}

func (c *swpcClient) FetchXRayFlux(ctx context.Context) (*FeedPayload, error) {
	return c.fetch(ctx, models.FeedXRayFlux, c.xrayURL, xraySpec)
}

func (c *swpcClient) FetchProtonFlux(ctx context.Context) (*FeedPayload, error) {
	return c.fetch(ctx, models.FeedProtonFlux, c.protonURL, protonSpec)
}

func (c *swpcClient) fetch(ctx context.Context, kind models.FeedKind, reqURL string, spec fieldSpec) (*FeedPayload, error) {
	body, err := getJSON(ctx, c.client, reqURL)
	if err != nil {
		return nil, err
	}
	return parseFeed(kind, body, spec)
}
