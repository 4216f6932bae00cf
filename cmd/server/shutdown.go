package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type closer struct {
	name string
	fn   func(context.Context) error
}

// shutdownStack releases resources in reverse acquisition order. Every
// closer runs even when an earlier one fails.
type shutdownStack struct {
	log     zerolog.Logger
	timeout time.Duration
	closers []closer
}

func newShutdownStack(log zerolog.Logger, timeout time.Duration) *shutdownStack {
	return &shutdownStack{log: log, timeout: timeout}
}

func (s *shutdownStack) push(name string, fn func(context.Context) error) {
	s.closers = append(s.closers, closer{name: name, fn: fn})
}

// close runs the closers under one shared deadline
func (s *shutdownStack) close() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	for i := len(s.closers) - 1; i >= 0; i-- {
		c := s.closers[i]
		if err := c.fn(ctx); err != nil {
			s.log.Error().Err(err).Str("resource", c.name).Msg("shutdown failed")
		}
	}
	s.closers = nil
}
