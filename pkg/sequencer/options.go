// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package sequencer

import (
	"log/slog"
	"time"
)

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithParallelism bounds how many independent operations may run at once.
// Values below 2 keep the run strictly sequential.
func WithParallelism(n int) Option {
	return func(s *Sequencer) {
		s.parallelism = n
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sequencer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTeardownTimeout bounds the whole teardown phase. Zero means no limit.
// Teardown never inherits cancellation from the run context.
func WithTeardownTimeout(d time.Duration) Option {
	return func(s *Sequencer) {
		s.teardownTimeout = d
	}
}
