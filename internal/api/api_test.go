package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/parametric-rail/railpledge/internal/delay"
	"github.com/parametric-rail/railpledge/internal/domain"
	"github.com/parametric-rail/railpledge/internal/payout"
	"github.com/parametric-rail/railpledge/internal/pipeline"
	"github.com/parametric-rail/railpledge/internal/policy"
	"github.com/parametric-rail/railpledge/internal/repository"
	"github.com/parametric-rail/railpledge/internal/rules"
	"github.com/parametric-rail/railpledge/internal/validate"
)

var testNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.Local)

const encodedJourney = "ICE 123;Berlin Hbf;10:30;2026-09-05;Hamburg Hbf;12:15;2026-09-05"

type stubProber struct {
	mu  sync.Mutex
	pct float64
	err error
}

func (s *stubProber) Probability(ctx context.Context, j *domain.Journey) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pct, s.err
}

func (s *stubProber) set(pct float64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pct = pct
	s.err = err
}

type stubTracker struct {
	arrivalTime string
}

func (s *stubTracker) ObservedJourney(ctx context.Context, j *domain.Journey) (*domain.Journey, error) {
	legs := append([]domain.Leg(nil), j.Legs...)
	if s.arrivalTime != "" {
		legs[len(legs)-1].ArrivalTime = s.arrivalTime
	}
	return domain.NewJourney(legs...), nil
}

type memRepo struct {
	mu        sync.Mutex
	decisions map[string]*domain.Decision
}

func newMemRepo() *memRepo {
	return &memRepo{decisions: make(map[string]*domain.Decision)}
}

func (m *memRepo) SaveDecision(ctx context.Context, d *domain.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions[d.ID] = d
	return nil
}

func (m *memRepo) GetDecision(ctx context.Context, id string) (*domain.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.decisions[id]; ok {
		return d, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memRepo) ListDecisions(ctx context.Context, limit int) ([]*domain.Decision, error) {
	return nil, nil
}
func (m *memRepo) Ping(ctx context.Context) error { return nil }
func (m *memRepo) Close() error                   { return nil }

func createTestServer(t *testing.T, prober *stubProber) (*Server, *memRepo) {
	t.Helper()

	validator, err := validate.New()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	matrix, err := payout.LoadMatrix("")
	if err != nil {
		t.Fatalf("matrix: %v", err)
	}
	exclusions, err := rules.NewEngine()
	if err != nil {
		t.Fatalf("exclusions: %v", err)
	}
	gate := policy.NewGate(domain.PolicyConfig{MinLeadDays: 1, MaxLeadDays: 10}).
		WithClock(func() time.Time { return testNow })

	repo := newMemRepo()
	p := pipeline.New(
		validator,
		gate,
		exclusions,
		prober,
		payout.NewResolver(matrix, 40),
		&stubTracker{arrivalTime: "12:45"},
		delay.NewCalculator(4*time.Hour),
		repo,
		nil,
	)

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}
	return NewServer(cfg, p, repo, nil, nil, "test-v1"), repo
}

func postJSON(t *testing.T, server *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

func TestPayoutsEndpoint(t *testing.T) {
	prober := &stubProber{pct: 25}
	server, _ := createTestServer(t, prober)

	t.Run("EncodedJourneyAccepted", func(t *testing.T) {
		rr := postJSON(t, server, "/payouts", map[string]string{
			"journey": encodedJourney,
			"type":    "small",
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp PayoutResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("bad response: %v", err)
		}
		if resp.Status != int(domain.StatusOK) {
			t.Errorf("expected status 0, got %d", resp.Status)
		}
		amount, ok := resp.Payout.(float64)
		if !ok || amount <= 0 {
			t.Errorf("expected positive payout, got %v", resp.Payout)
		}
		if resp.DecisionID == "" {
			t.Error("expected decision ID")
		}
	})

	t.Run("StructuredJourneyAccepted", func(t *testing.T) {
		rr := postJSON(t, server, "/payouts", map[string]any{
			"type": "medium",
			"leg_1": map[string]string{
				"train":        "ICE 123",
				"start_stop":   "Berlin Hbf",
				"start_time":   "10:30",
				"start_date":   "2026-09-05",
				"arrival_stop": "Hamburg Hbf",
				"arrival_time": "12:15",
				"arrival_date": "2026-09-05",
			},
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp PayoutResponse
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Status != int(domain.StatusOK) {
			t.Errorf("expected status 0, got %d: %s", resp.Status, rr.Body.String())
		}
	})

	t.Run("AllTiersReturnsObject", func(t *testing.T) {
		rr := postJSON(t, server, "/payouts", map[string]string{
			"journey": encodedJourney,
			"type":    "all",
		})

		var resp PayoutResponse
		json.Unmarshal(rr.Body.Bytes(), &resp)
		payouts, ok := resp.Payout.(map[string]any)
		if !ok {
			t.Fatalf("expected payout object, got %T", resp.Payout)
		}
		if len(payouts) != 3 {
			t.Errorf("expected 3 tiers, got %d", len(payouts))
		}
	})

	t.Run("RailReplacementRejected", func(t *testing.T) {
		rr := postJSON(t, server, "/payouts", map[string]string{
			"journey": "SEV Bus 44;Berlin Hbf;10:30;2026-09-05;Hamburg Hbf;12:15;2026-09-05",
			"type":    "small",
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("rejections must stay 200, got %d", rr.Code)
		}

		var resp PayoutResponse
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Status != int(domain.StatusRailReplacement) {
			t.Errorf("expected status 10, got %d", resp.Status)
		}
	})

	t.Run("OutOfTimeframeRejected", func(t *testing.T) {
		rr := postJSON(t, server, "/payouts", map[string]string{
			"journey": "ICE 123;Berlin Hbf;18:00;2026-09-01;Hamburg Hbf;20:00;2026-09-01",
			"type":    "small",
		})

		var resp PayoutResponse
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Status != int(domain.StatusOutOfTimeframe) {
			t.Errorf("expected status 20, got %d", resp.Status)
		}
	})

	t.Run("ProbabilityCapRejected", func(t *testing.T) {
		prober.set(40.01, nil)
		defer prober.set(25, nil)

		rr := postJSON(t, server, "/payouts", map[string]string{
			"journey": encodedJourney,
			"type":    "small",
		})

		var resp PayoutResponse
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Status != int(domain.StatusProbabilityCap) {
			t.Errorf("expected status 30, got %d", resp.Status)
		}
	})

	t.Run("MalformedJourneyString", func(t *testing.T) {
		// Six fields: not a multiple of the leg width, decodes empty.
		rr := postJSON(t, server, "/payouts", map[string]string{
			"journey": "ICE 123;Berlin Hbf;10:30;2026-09-05;Hamburg Hbf;12:15",
			"type":    "small",
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}

		var resp PayoutResponse
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Status != int(domain.StatusError) {
			t.Errorf("expected status 100, got %d", resp.Status)
		}
	})

	t.Run("MissingTier", func(t *testing.T) {
		rr := postJSON(t, server, "/payouts", map[string]string{
			"journey": encodedJourney,
		})

		var resp PayoutResponse
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Status != int(domain.StatusError) {
			t.Errorf("expected status 100, got %d", resp.Status)
		}
	})

	t.Run("InvalidJSONBody", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/payouts", bytes.NewReader([]byte("{not json")))
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for unreadable body, got %d", rr.Code)
		}
	})
}

func TestDelayEndpoint(t *testing.T) {
	server, _ := createTestServer(t, &stubProber{pct: 25})

	rr := postJSON(t, server, "/delay", map[string]string{
		"journey": encodedJourney,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp DelayResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if resp.Status != int(domain.StatusOK) {
		t.Errorf("expected status 0, got %d", resp.Status)
	}
	if resp.Delay != 30 {
		t.Errorf("expected 30 minutes, got %d", resp.Delay)
	}
}

func TestGetDecisionEndpoint(t *testing.T) {
	server, repo := createTestServer(t, &stubProber{pct: 25})

	t.Run("Found", func(t *testing.T) {
		d := &domain.Decision{
			ID:     "dec-123",
			Kind:   domain.KindPayout,
			Status: domain.StatusOK,
		}
		repo.SaveDecision(context.Background(), d)

		req := httptest.NewRequest(http.MethodGet, "/decisions/dec-123", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		var got domain.Decision
		if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
			t.Fatalf("bad response: %v", err)
		}
		if got.ID != "dec-123" {
			t.Errorf("expected dec-123, got %s", got.ID)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/decisions/no-such", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rr.Code)
		}
	})
}

func TestHealthEndpoints(t *testing.T) {
	server, _ := createTestServer(t, &stubProber{pct: 25})

	t.Run("Health", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		var resp map[string]string
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp["status"] != "healthy" {
			t.Errorf("expected healthy, got %s", resp["status"])
		}
		if resp["version"] != "test-v1" {
			t.Errorf("expected version test-v1, got %s", resp["version"])
		}
	})

	t.Run("Ready", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
	})
}

func TestDecisionAudited(t *testing.T) {
	server, repo := createTestServer(t, &stubProber{pct: 25})

	rr := postJSON(t, server, "/payouts", map[string]string{
		"journey": encodedJourney,
		"type":    "small",
	})

	var resp PayoutResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}

	d, err := repo.GetDecision(context.Background(), resp.DecisionID)
	if err != nil {
		t.Fatalf("decision not audited: %v", err)
	}
	if d.Status != domain.StatusOK {
		t.Errorf("expected audited status 0, got %d", d.Status)
	}
}
