// Package predict obtains delay-probability estimates from the
// external prediction service and memoizes them per journey
// fingerprint.
package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/parametric-rail/railpledge/internal/domain"
)

// ErrUpstream marks any transport or non-success failure of the
// prediction service. The pipeline maps it to a generic error status
// and never retries internally.
var ErrUpstream = errors.New("prediction service failure")

// departureDateLayout is ISO-8601 with the numeric UTC offset. The
// offset comes from the instant's location, so DST transitions are
// reflected rather than assuming a fixed zone.
const departureDateLayout = "2006-01-02T15:04:05-07:00"

// Client calls the delay-prediction service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a prediction client with a bounded timeout.
func NewClient(cfg domain.PredictorConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type predictRequest struct {
	Departure     string `json:"departure"`
	Arrival       string `json:"arrival"`
	DepartureDate string `json:"departureDate"`
}

type predictResponse struct {
	DelayProbability float64 `json:"delayProbability"`
}

// RequestProbability fetches the delay probability for a journey and
// normalizes it to a percentage rounded to 2 decimal places. The
// request carries the first leg's departure stop, the last leg's
// arrival stop, and the departure instant with its UTC offset.
func (c *Client) RequestProbability(ctx context.Context, j *domain.Journey) (float64, error) {
	first, err := j.FirstLeg()
	if err != nil {
		return 0, err
	}
	last, err := j.LastLeg()
	if err != nil {
		return 0, err
	}
	dep, err := j.DepartureInstant()
	if err != nil {
		return 0, err
	}

	body, err := json.Marshal(predictRequest{
		Departure:     first.StartStop,
		Arrival:       last.ArrivalStop,
		DepartureDate: dep.Format(departureDateLayout),
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/predict", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("%w: unexpected status %d", ErrUpstream, resp.StatusCode)
	}

	var pr predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return 0, fmt.Errorf("%w: invalid response: %v", ErrUpstream, err)
	}

	// Fractional [0,1] -> percentage with 2 decimal places.
	return math.Round(pr.DelayProbability*100*100) / 100, nil
}
