package accounts

import (
	"context"
	"fmt"
	"time"
)

// sagaStep is one committed write in a multi-store operation. undo, when set,
// reverts the write if a later step fails.
type sagaStep struct {
	name string
	do   func(ctx context.Context) error
	undo func(ctx context.Context) error
}

type compensation struct {
	step string
	err  error
}

// sagaFailure describes which step failed and how compensation went.
type sagaFailure struct {
	step          string
	err           error
	compensations []compensation
}

// compensated reports whether every declared undo succeeded.
func (f *sagaFailure) compensated() bool {
	for _, c := range f.compensations {
		if c.err != nil {
			return false
		}
	}
	return true
}

func (f *sagaFailure) failedCompensations() []compensation {
	var failed []compensation
	for _, c := range f.compensations {
		if c.err != nil {
			failed = append(failed, c)
		}
	}
	return failed
}

// saga runs steps in order and, on failure, undoes completed steps in
// reverse order. Undo runs detached from the caller's cancellation, bounded by
// timeout, so an aborted request still cleans up.
type saga struct {
	steps   []sagaStep
	timeout time.Duration
}

func newSaga(timeout time.Duration, steps ...sagaStep) *saga {
	return &saga{
		steps:   steps,
		timeout: timeout,
	}
}

func (s *saga) run(ctx context.Context) *sagaFailure {
	completed := make([]sagaStep, 0, len(s.steps))

	for _, step := range s.steps {
		if err := guard(ctx, step.do); err != nil {
			return &sagaFailure{
				step:          step.name,
				err:           err,
				compensations: s.compensate(ctx, completed),
			}
		}
		completed = append(completed, step)
	}

	return nil
}

func (s *saga) compensate(ctx context.Context, completed []sagaStep) []compensation {
	if len(completed) == 0 {
		return nil
	}

	undoCtx := context.WithoutCancel(ctx)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		undoCtx, cancel = context.WithTimeout(undoCtx, s.timeout)
		defer cancel()
	}

	results := make([]compensation, 0, len(completed))
	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.undo == nil {
			continue
		}
		results = append(results, compensation{
			step: step.name,
			err:  guard(undoCtx, step.undo),
		})
	}

	return results
}

// guard runs fn and turns a panic into an error so that completed steps are
// still compensated.
func guard(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
