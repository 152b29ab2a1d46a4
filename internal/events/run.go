package events

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Run starts the snapshot and pruning tickers and blocks until ctx is
// cancelled, at which point it takes one final snapshot so the most
// recent state survives shutdown (spec §4.4: snapshot "on SIGINT and on
// SIGTERM"). Intended to be launched inside the process's supervising
// errgroup.Group from cmd/proxyd/main.go.
func (r *Recorder) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				r.Snapshot(ctx)
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				r.Prune()
			}
		}
	})

	<-ctx.Done()
	_ = g.Wait()

	final := context.Background()
	r.Snapshot(final)
	return nil
}
