// Package saga runs multi-step writes that cannot share one transaction and
// undoes the completed steps when a later one fails.
package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bitboard/internal/middleware"
	"bitboard/internal/observability"
)

// Step is one forward action and its optional compensation.
type Step struct {
	Name       string
	Do         func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Saga is a named, ordered list of steps.
type Saga struct {
	name  string
	steps []Step
}

// New creates an empty saga.
func New(name string) *Saga {
	return &Saga{name: name}
}

// Then appends a step and returns s for chaining.
func (s *Saga) Then(name string, do, compensate func(ctx context.Context) error) *Saga {
	s.steps = append(s.steps, Step{Name: name, Do: do, Compensate: compensate})
	return s
}

// StepError reports which step failed and whether rollback completed.
type StepError struct {
	Saga string
	Step string
	Err  error
	// CompensationErr is non-nil when at least one compensation also failed.
	CompensationErr error
}

func (e *StepError) Error() string {
	if e.CompensationErr != nil {
		return fmt.Sprintf("saga %s: step %s: %v (compensation: %v)", e.Saga, e.Step, e.Err, e.CompensationErr)
	}
	return fmt.Sprintf("saga %s: step %s: %v", e.Saga, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Run executes the steps in order. When one fails, the compensations of the
// steps that completed run in reverse order on a context detached from ctx's
// cancellation, and a *StepError wrapping the failure is returned.
func (s *Saga) Run(ctx context.Context) error {
	done := make([]Step, 0, len(s.steps))
	for _, st := range s.steps {
		if err := ctx.Err(); err != nil {
			return s.rollback(ctx, done, st.Name, err)
		}
		if err := st.Do(ctx); err != nil {
			return s.rollback(ctx, done, st.Name, err)
		}
		done = append(done, st)
	}
	observability.SagaOutcomes.WithLabelValues(s.name, "committed").Inc()
	return nil
}

func (s *Saga) rollback(ctx context.Context, done []Step, failed string, cause error) error {
	cctx := context.WithoutCancel(ctx)
	var errs []error
	for i := len(done) - 1; i >= 0; i-- {
		st := done[i]
		if st.Compensate == nil {
			continue
		}
		if err := st.Compensate(cctx); err != nil {
			middleware.Logger.ErrorContext(ctx, "saga compensation failed",
				slog.String("saga", s.name),
				slog.String("step", st.Name),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", st.Name, err))
		}
	}

	stepErr := &StepError{Saga: s.name, Step: failed, Err: cause}
	if len(errs) > 0 {
		stepErr.CompensationErr = errors.Join(errs...)
		observability.SagaOutcomes.WithLabelValues(s.name, "compensation_failed").Inc()
	} else {
		observability.SagaOutcomes.WithLabelValues(s.name, "compensated").Inc()
	}
	middleware.Logger.WarnContext(ctx, "saga rolled back",
		slog.String("saga", s.name),
		slog.String("step", failed),
		slog.String("error", cause.Error()),
	)
	return stepErr
}
