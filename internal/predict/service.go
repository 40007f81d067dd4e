package predict

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/parametric-rail/railpledge/internal/domain"
)

// Prober fetches a probability from the upstream prediction service.
type Prober interface {
	RequestProbability(ctx context.Context, j *domain.Journey) (float64, error)
}

// Service memoizes delay probabilities per journey fingerprint and
// de-duplicates concurrent misses: at most one upstream fetch is in
// flight per fingerprint, with concurrent requesters sharing its
// result.
type Service struct {
	client Prober
	cache  domain.Cache
	ttl    time.Duration

	mu       sync.Mutex
	inflight map[string]*fetch
}

type fetch struct {
	done chan struct{}
	pct  float64
	err  error
}

// NewService creates a memoizing probability service.
func NewService(client Prober, cache domain.Cache, ttl time.Duration) *Service {
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	return &Service{
		client:   client,
		cache:    cache,
		ttl:      ttl,
		inflight: make(map[string]*fetch),
	}
}

// Probability returns the memoized probability for the journey's
// fingerprint, fetching from upstream on a miss. Failed fetches are
// not cached.
func (s *Service) Probability(ctx context.Context, j *domain.Journey) (float64, error) {
	fingerprint := j.Fingerprint()

	if pct, ok, err := s.cache.GetProbability(ctx, fingerprint); err == nil && ok {
		return pct, nil
	} else if err != nil {
		slog.Warn("probability cache read failed", "error", err)
	}

	s.mu.Lock()
	if f, ok := s.inflight[fingerprint]; ok {
		// Another request is already fetching this fingerprint; wait
		// for its result instead of issuing a duplicate upstream call.
		s.mu.Unlock()
		select {
		case <-f.done:
			return f.pct, f.err
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	f := &fetch{done: make(chan struct{})}
	s.inflight[fingerprint] = f
	s.mu.Unlock()

	f.pct, f.err = s.client.RequestProbability(ctx, j)
	if f.err == nil {
		if err := s.cache.SetProbability(ctx, fingerprint, f.pct, s.ttl); err != nil {
			slog.Warn("probability cache write failed", "error", err)
		}
	}

	s.mu.Lock()
	delete(s.inflight, fingerprint)
	s.mu.Unlock()
	close(f.done)

	return f.pct, f.err
}
