// Package utils holds small helpers shared by jobs and handlers.
package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// DefaultSlowThreshold is the duration above which a Timer warns
const DefaultSlowThreshold = 30 * time.Second

// Timer measures an operation and logs its duration when stopped
type Timer struct {
	start time.Time
	name  string
	log   zerolog.Logger
	slow  time.Duration
	now   func() time.Time
}

// NewTimer creates a new timer with the given name
func NewTimer(name string, log zerolog.Logger) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
		log:   log,
		slow:  DefaultSlowThreshold,
		now:   time.Now,
	}
}

// WithSlowThreshold overrides the duration that triggers a warning
func (t *Timer) WithSlowThreshold(d time.Duration) *Timer {
	t.slow = d
	return t
}

// Stop logs the elapsed time and returns it
func (t *Timer) Stop() time.Duration {
	duration := t.now().Sub(t.start)

	if t.slow > 0 && duration > t.slow {
		t.log.Warn().
			Str("operation", t.name).
			Dur("duration", duration).
			Dur("threshold", t.slow).
			Msg("Slow operation detected")
		return duration
	}

	t.log.Debug().
		Str("operation", t.name).
		Dur("duration_ms", duration).
		Msg("Operation completed")
	return duration
}

// OperationTimer provides a defer-friendly way to measure operation duration
//
// Usage:
//
//	func (j *Job) Run() error {
//	    defer utils.OperationTimer("job", log)()
//	}
func OperationTimer(operation string, log zerolog.Logger) func() {
	t := NewTimer(operation, log)
	return func() { t.Stop() }
}
