// Package janitor keeps session state bounded.
//
// On each cycle it evicts conversations that have been idle in memory
// too long (they reload from the transcript store on next use) and
// deletes stored transcripts past the retention window.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Evictor drops idle in-memory sessions and returns their ids.
type Evictor interface {
	Evict(idle time.Duration) []string
}

// Pruner deletes stored sessions last updated before cutoff.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}

// Report holds the results of one cycle.
type Report struct {
	Cycle     int       `json:"cycle"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
	Evicted   int       `json:"evicted"`
	Pruned    int       `json:"pruned"`
	Errors    []string  `json:"errors,omitempty"`
}

// Config holds janitor settings. Zero values take the defaults.
type Config struct {
	Interval   time.Duration // default 10m
	IdleAfter  time.Duration // evict after this long without activity, default 30m
	RetainFor  time.Duration // prune stored transcripts older than this, default 30 days
	StartDelay time.Duration // wait before the first cycle
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{
		Interval:  10 * time.Minute,
		IdleAfter: 30 * time.Minute,
		RetainFor: 30 * 24 * time.Hour,
	}
}

// Worker runs janitor cycles in the background.
type Worker struct {
	sessions Evictor
	store    Pruner
	cfg      Config
	now      func() time.Time

	mu         sync.RWMutex
	lastReport *Report
	cycles     int
}

// NewWorker returns a worker. store may be nil when transcripts are not
// persisted.
func NewWorker(sessions Evictor, store Pruner, cfg Config) *Worker {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.IdleAfter <= 0 {
		cfg.IdleAfter = def.IdleAfter
	}
	if cfg.RetainFor <= 0 {
		cfg.RetainFor = def.RetainFor
	}
	return &Worker{sessions: sessions, store: store, cfg: cfg, now: time.Now}
}

// Run starts the loop. Blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	slog.Info("janitor started",
		"interval", w.cfg.Interval,
		"idle_after", w.cfg.IdleAfter,
		"retain_for", w.cfg.RetainFor,
	)

	if w.cfg.StartDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.cfg.StartDelay):
		}
	}
	w.logReport(w.RunOnce(ctx))

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("janitor stopping")
			return
		case <-ticker.C:
			w.logReport(w.RunOnce(ctx))
		}
	}
}

// RunOnce runs a single cycle and returns its report.
func (w *Worker) RunOnce(ctx context.Context) *Report {
	w.mu.Lock()
	w.cycles++
	cycle := w.cycles
	w.mu.Unlock()

	start := w.now()
	report := &Report{Cycle: cycle, StartedAt: start}

	if w.sessions != nil {
		report.Evicted = len(w.sessions.Evict(w.cfg.IdleAfter))
	}
	if w.store != nil {
		n, err := w.store.Prune(ctx, start.Add(-w.cfg.RetainFor))
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("prune transcripts: %v", err))
			slog.Warn("janitor: prune failed", "error", err)
		}
		report.Pruned = n
	}
	report.Duration = w.now().Sub(start).Round(time.Millisecond).String()

	w.mu.Lock()
	w.lastReport = report
	w.mu.Unlock()
	return report
}

// LastReport returns the most recent report, or nil before the first cycle.
func (w *Worker) LastReport() *Report {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastReport
}

func (w *Worker) logReport(r *Report) {
	if r.Evicted == 0 && r.Pruned == 0 && len(r.Errors) == 0 {
		slog.Debug("janitor: cycle complete, nothing to do", "cycle", r.Cycle)
		return
	}
	slog.Info("janitor: cycle complete",
		"cycle", r.Cycle,
		"duration", r.Duration,
		"evicted", r.Evicted,
		"pruned", r.Pruned,
		"errors", len(r.Errors),
	)
}
