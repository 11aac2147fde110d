// Package geocode provides optional reverse geocoding of report
// coordinates via the Mapbox Geocoding API. Addresses are enrichment
// only; a nil or failing client never blocks report submission.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Reverser resolves coordinates to a human-readable address.
type Reverser interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// Client implements Reverser against the Mapbox Geocoding API.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

// NewClient creates a Mapbox geocoding client. Returns nil when no token
// is configured so callers can treat geocoding as disabled.
func NewClient(token string, timeout time.Duration, logger *zap.SugaredLogger) *Client {
	if token == "" {
		return nil
	}
	return &Client{
		token:      token,
		baseURL:    "https://api.mapbox.com/geocoding/v5/mapbox.places",
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// ReverseGeocode returns the place name of the first feature for the
// coordinates, or an empty string when Mapbox has nothing.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	// Mapbox uses lng,lat order.
	coord := fmt.Sprintf("%.6f,%.6f", lng, lat)
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
	}
	fullURL := fmt.Sprintf("%s/%s.json?%s", c.baseURL, coord, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var decoded response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(decoded.Features) == 0 {
		return "", nil
	}
	return decoded.Features[0].PlaceName, nil
}

// Enrich fills in an address for the coordinates, swallowing failures.
// A nil client is a no-op.
func Enrich(ctx context.Context, c Reverser, lat, lng float64, logger *zap.SugaredLogger) string {
	if c == nil {
		return ""
	}
	address, err := c.ReverseGeocode(ctx, lat, lng)
	if err != nil {
		logger.Warnw("Reverse geocoding failed", "lat", lat, "lng", lng, "error", err)
		return ""
	}
	return address
}

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	PlaceName string `json:"place_name"`
	Text      string `json:"text"`
}
