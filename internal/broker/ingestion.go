package broker

import (
	"context"

	"github.com/sevenwolf/svr/internal/logger"
)

// IngestionTask produces frames for a server source for as long as ctx
// stays live, feeding them to rec.BroadcastData the same way a client
// Source's Data messages do (spec.md §3 "A server source additionally
// owns an ingestion task"; §4.I "Server sources additionally spawn an
// ingestion task whose lifetime is bounded by the SourceRecord's").
type IngestionTask interface {
	Run(ctx context.Context, rec *SourceRecord)
}

// nullIngestionTask is the default task bound to a server source: it does
// nothing but block until its SourceRecord closes. It stands in for a real
// capture device (e.g. an RTSP puller, a v4l2 capture loop) until one is
// wired in by descriptor name; it exists so the lifetime contract — start
// on open, stop on close, never outlive the SourceRecord — is real code,
// not a TODO.
type nullIngestionTask struct{}

func (nullIngestionTask) Run(ctx context.Context, rec *SourceRecord) {
	<-ctx.Done()
}

// startIngestion launches task bound to s's lifetime. Only server sources
// call this (see Registry.Open); client sources push frames themselves via
// Data messages and never own an ingestion task.
func (s *SourceRecord) startIngestion(task IngestionTask) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.lock.Lock()
	s.ingestCancel = cancel
	s.ingestDone = done
	s.lock.Unlock()

	go func() {
		defer close(done)
		task.Run(ctx, s)
	}()
	logger.WithSource(logger.Logger(), s.Name).Info("ingestion task started")
}

// stopIngestion cancels s's ingestion task, if any, and blocks until it has
// exited. Safe to call on a client source (a no-op, since it never started
// one).
func (s *SourceRecord) stopIngestion() {
	s.lock.Lock()
	cancel, done := s.ingestCancel, s.ingestDone
	s.ingestCancel, s.ingestDone = nil, nil
	s.lock.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	logger.WithSource(logger.Logger(), s.Name).Info("ingestion task stopped")
}
