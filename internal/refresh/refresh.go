// Package refresh keeps the latest parsed schedule feed in memory and
// refetches it on a cron schedule.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"coursecal/internal/ics"
	appLog "coursecal/internal/log"
	"coursecal/internal/metrics"
	"coursecal/internal/model"
)

// ErrNoFeed is returned when no feed URL is configured.
var ErrNoFeed = errors.New("no schedule feed configured")

// Fetcher is the subset of *ics.Fetcher used here.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (ics.FetchResult, error)
}

// Snapshot is one successfully parsed feed.
type Snapshot struct {
	Events    []model.Event
	UpdatedAt time.Time
	FromCache bool
}

// Store holds the most recent Snapshot.
type Store struct {
	mu   sync.RWMutex
	snap *Snapshot
}

// Get returns the current snapshot, or false if nothing was loaded yet.
func (s *Store) Get() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return Snapshot{}, false
	}
	return *s.snap, true
}

// Set replaces the current snapshot.
func (s *Store) Set(snap Snapshot) {
	s.mu.Lock()
	s.snap = &snap
	s.mu.Unlock()
}

// Refresher fetches and parses the feed into a Store.
type Refresher struct {
	url     string
	fetcher Fetcher
	store   *Store
	metrics *metrics.Metrics
	now     func() time.Time

	// serializes refreshes so concurrent stale requests fetch once
	refreshMu sync.Mutex
}

// New returns a Refresher for url. m may be nil.
func New(url string, f Fetcher, store *Store, m *metrics.Metrics) *Refresher {
	if store == nil {
		store = &Store{}
	}
	return &Refresher{
		url:     url,
		fetcher: f,
		store:   store,
		metrics: m,
		now:     time.Now,
	}
}

// Store exposes the underlying store.
func (r *Refresher) Store() *Store {
	return r.store
}

// Refresh fetches and parses the feed once and stores the result. On error
// the previous snapshot is left in place and the error is returned.
func (r *Refresher) Refresh(ctx context.Context) (Snapshot, error) {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()
	return r.refreshLocked(ctx)
}

func (r *Refresher) refreshLocked(ctx context.Context) (Snapshot, error) {
	if r.url == "" {
		return Snapshot{}, ErrNoFeed
	}

	res, err := r.fetcher.Fetch(ctx, r.url)
	if err != nil {
		r.countFetch(metrics.StatusError)
		return Snapshot{}, err
	}
	r.countFetch(metrics.StatusSuccess)

	snap := Snapshot{
		Events:    ics.Parse(string(res.Body)),
		UpdatedAt: r.now(),
		FromCache: res.FromCache,
	}
	r.store.Set(snap)

	if r.metrics != nil {
		r.metrics.FeedEvents.Set(float64(len(snap.Events)))
		r.metrics.FeedLastUpdate.Set(float64(snap.UpdatedAt.Unix()))
	}
	appLog.Info("schedule refreshed", "url", ics.RedactURL(r.url), "events", len(snap.Events), "from_cache", snap.FromCache)
	return snap, nil
}

// Events returns the stored snapshot if it is younger than maxAge, otherwise
// refreshes first. maxAge <= 0 always refreshes.
func (r *Refresher) Events(ctx context.Context, maxAge time.Duration) (Snapshot, error) {
	if snap, ok := r.fresh(maxAge); ok {
		return snap, nil
	}

	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	// Another caller may have refreshed while we waited.
	if snap, ok := r.fresh(maxAge); ok {
		return snap, nil
	}
	return r.refreshLocked(ctx)
}

func (r *Refresher) fresh(maxAge time.Duration) (Snapshot, bool) {
	if maxAge <= 0 {
		return Snapshot{}, false
	}
	snap, ok := r.store.Get()
	if !ok || r.now().Sub(snap.UpdatedAt) >= maxAge {
		return Snapshot{}, false
	}
	return snap, true
}

// Start schedules Refresh according to the cron spec and runs one refresh
// immediately. The scheduler stops when ctx is done.
func (r *Refresher) Start(ctx context.Context, spec string) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, err := r.Refresh(ctx); err != nil {
			appLog.Error("scheduled refresh failed", err, "url", ics.RedactURL(r.url))
		}
	})
	if err != nil {
		return fmt.Errorf("refresh schedule %q: %w", spec, err)
	}

	if _, err := r.Refresh(ctx); err != nil {
		appLog.Error("initial refresh failed", err, "url", ics.RedactURL(r.url))
	}

	c.Start()
	appLog.Info("refresh scheduler started", "cron", spec)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		appLog.Info("refresh scheduler stopped")
	}()
	return nil
}

func (r *Refresher) countFetch(status string) {
	if r.metrics != nil {
		r.metrics.FeedFetches.WithLabelValues(status).Inc()
	}
}
