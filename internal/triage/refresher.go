package triage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chani337/selfstar/internal/core/domain"
	"github.com/chani337/selfstar/internal/core/ports"
)

// Refresher holds the current overview snapshot and replaces it wholesale on
// every successful fetch. A failed fetch keeps the previous snapshot so the
// operator still sees stale-but-available data.
type Refresher struct {
	source  ports.OverviewSource
	timeout time.Duration
	log     *zap.Logger

	mu          sync.RWMutex
	filters     ports.OverviewFilters
	current     []domain.PersonaOverview
	lastUpdated time.Time
}

func NewRefresher(source ports.OverviewSource, filters ports.OverviewFilters, timeout time.Duration, log *zap.Logger) *Refresher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Refresher{
		source:  source,
		timeout: timeout,
		log:     log,
		filters: filters,
	}
}

// Refresh fetches a new snapshot with a bounded wait. A timeout is a network
// error, not "no data": the held snapshot stays as it was.
func (r *Refresher) Refresh(ctx context.Context) ([]domain.PersonaOverview, error) {
	r.mu.RLock()
	filters := r.filters
	r.mu.RUnlock()

	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	personas, err := r.source.FetchOverview(cctx, filters)
	if err != nil {
		r.log.Warn("overview fetch failed", zap.Error(err))
		return nil, err
	}

	r.mu.Lock()
	r.current = personas
	r.lastUpdated = time.Now()
	r.mu.Unlock()

	return personas, nil
}

// Current returns the held snapshot; nil before the first successful fetch.
func (r *Refresher) Current() []domain.PersonaOverview {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

func (r *Refresher) LastUpdated() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastUpdated
}

// SetExcludeSeen flips the acknowledged-comments filter for future fetches.
func (r *Refresher) SetExcludeSeen(exclude bool) {
	r.mu.Lock()
	r.filters.ExcludeSeen = exclude
	r.mu.Unlock()
}
