package publish

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of notes a sweep publishes at once.
const DefaultConcurrency = 4

// SweepItem is the outcome for one due note.
type SweepItem struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Success bool   `json:"success"`
	Path    string `json:"path,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SweepReport aggregates a scheduled-publish run.
type SweepReport struct {
	RanAt     time.Time   `json:"ranAt"`
	Processed int         `json:"processed"`
	Published int         `json:"published"`
	Failed    int         `json:"failed"`
	Results   []SweepItem `json:"results"`
}

// Sweep publishes every scheduled note due at now. Each note is processed
// independently; a failure is recorded and does not stop the others.
func (e *Engine) Sweep(ctx context.Context, now time.Time, concurrency int) (*SweepReport, error) {
	due, err := e.notes.ListDueScheduled(ctx, now)
	if err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]SweepItem, len(due))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, n := range due {
		g.Go(func() error {
			item := SweepItem{ID: n.ID, Title: n.Title}
			res, err := e.Publish(ctx, n.ID)
			if err != nil {
				item.Error = err.Error()
				e.logger.Warn("sweep: publish failed", slog.String("id", n.ID), slog.String("error", err.Error()))
			} else {
				item.Success = true
				item.Path = res.Path
			}
			results[i] = item
			return nil
		})
	}
	_ = g.Wait()

	report := &SweepReport{RanAt: now, Processed: len(results), Results: results}
	for _, r := range results {
		if r.Success {
			report.Published++
		} else {
			report.Failed++
		}
	}
	if report.Processed > 0 {
		e.logger.Info("sweep finished",
			slog.Int("processed", report.Processed),
			slog.Int("published", report.Published),
			slog.Int("failed", report.Failed))
	}
	return report, nil
}

// RunScheduler sweeps every interval until ctx is cancelled.
func (e *Engine) RunScheduler(ctx context.Context, interval time.Duration, concurrency int) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	e.logger.Info("scheduler: started", slog.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("scheduler: stopped")
			return nil
		case <-ticker.C:
			if _, err := e.Sweep(ctx, e.notes.Now(), concurrency); err != nil && ctx.Err() == nil {
				e.logger.Error("scheduler: sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}
