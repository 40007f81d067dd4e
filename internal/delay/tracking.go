package delay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/parametric-rail/railpledge/internal/domain"
)

// ErrTracking marks any transport or non-success failure of the
// train-tracking service.
var ErrTracking = errors.New("tracking service failure")

// TrackingClient fetches observed arrival data for a scheduled
// journey.
type TrackingClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewTrackingClient creates a tracking client with a bounded timeout.
func NewTrackingClient(cfg domain.TrackingConfig) *TrackingClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &TrackingClient{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ObservedJourney posts the scheduled journey to the tracking service
// and returns the journey with observed times filled in. The response
// mirrors the request shape, leg for leg.
func (c *TrackingClient) ObservedJourney(ctx context.Context, j *domain.Journey) (*domain.Journey, error) {
	if j.Empty() {
		return nil, domain.ErrNoLegs
	}

	body, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTracking, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrTracking, resp.StatusCode)
	}

	var observed domain.Journey
	if err := json.NewDecoder(resp.Body).Decode(&observed); err != nil {
		return nil, fmt.Errorf("%w: invalid response: %v", ErrTracking, err)
	}
	if len(observed.Legs) != len(j.Legs) {
		return nil, fmt.Errorf("%w: leg count mismatch: sent %d, got %d", ErrTracking, len(j.Legs), len(observed.Legs))
	}
	return &observed, nil
}
