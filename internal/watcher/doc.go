// Package watcher notices files arriving in the knowledge inbox.
//
// An InboxWatcher uses fsnotify on the inbox directory and falls back to
// polling where fsnotify is unavailable (network mounts, some container
// volumes). Events are debounced so an editor saving a file several times,
// or a large copy, produces a single batch.
//
// Usage:
//
//	w, err := watcher.NewInboxWatcher(inboxDir, watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go func() { _ = w.Start(ctx) }()
//	err = watcher.Drain(ctx, w, func(ctx context.Context, names []string) error {
//	    _, _, err := svc.IngestInboxBatch(ctx, len(names))
//	    return err
//	})
package watcher
