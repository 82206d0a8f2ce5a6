// Package shutdown coordinates the cooperative shutdown of Luminis's two
// top-level tasks, Crawler and Worker, around a single cancellation signal.
package shutdown

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Supervisor runs a fixed set of subsystems to completion, cancelling all
// of them as soon as one returns (normally or fatally) or the process
// receives an external shutdown request.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	fatalOnce sync.Once
	fatalErr  error
}

// New returns a Supervisor whose subsystems observe cancellation of a
// context derived from parent.
func New(parent context.Context) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	group, ctx := errgroup.WithContext(ctx)
	return &Supervisor{ctx: ctx, cancel: cancel, group: group}
}

// Go starts fn as a supervised subsystem. fn must return promptly once
// s.Context() is cancelled.
func (s *Supervisor) Go(fn func(ctx context.Context) error) {
	s.group.Go(func() error {
		defer s.cancel()
		return fn(s.ctx)
	})
}

// Context is the shared cancellation context every subsystem must observe
// at its suspension points.
func (s *Supervisor) Context() context.Context {
	return s.ctx
}

// Fatal requests a process-wide shutdown due to an unrecoverable error,
// e.g. both crawl sources exhausted. The first Fatal call wins and is
// logged; later calls are no-ops.
func (s *Supervisor) Fatal(err error) {
	s.fatalOnce.Do(func() {
		s.fatalErr = err
		slog.Error("fatal error, shutting down", slog.Any("error", err))
		s.cancel()
	})
}

// Shutdown requests a normal, non-fatal shutdown (e.g. an OS signal).
func (s *Supervisor) Shutdown() {
	s.cancel()
}

// Wait blocks until every subsystem started with Go has returned, then
// returns the first non-nil error: the fatal error if Fatal was called,
// else the first subsystem error, else nil.
func (s *Supervisor) Wait() error {
	err := s.group.Wait()
	if s.fatalErr != nil {
		return s.fatalErr
	}
	return err
}
