package watcher

import (
	"context"
	"log/slog"
)

// BatchFunc handles the names of files that arrived in one batch.
type BatchFunc func(ctx context.Context, arrived []string) error

// Drain calls fn for every batch from w that contains at least one arrival,
// until ctx is done or w stops. Errors from fn and from the watcher are
// logged and do not stop the loop.
func Drain(ctx context.Context, w *InboxWatcher, fn BatchFunc) error {
	events := w.Events()
	errs := w.Errors()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Warn("inbox_watch_error", slog.String("error", err.Error()))
		case batch, ok := <-events:
			if !ok {
				return nil
			}
			arrived := Arrivals(batch)
			if len(arrived) == 0 {
				continue
			}
			slog.Info("inbox_files_arrived", slog.Int("count", len(arrived)))
			if err := fn(ctx, arrived); err != nil {
				slog.Warn("inbox_batch_failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Arrivals returns the names of files in batch ready for ingestion.
func Arrivals(batch []FileEvent) []string {
	var names []string
	for _, e := range batch {
		if e.Arrived() {
			names = append(names, e.Name)
		}
	}
	return names
}
