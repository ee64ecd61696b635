package executor

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/optiinfra/iacengine/internal/engine"
)

const maxRetries = 3

// newBackoff builds the deterministic 1s/2s/4s schedule spec.md §4.1
// requires (`1000 × 2^k` ms between attempt k and k+1), using
// cenkalti/backoff/v5 purely as the delay calculator: the retry loop and
// its success/failure/throw classification stay hand-written control flow,
// per spec.md §9's dynamic-dispatch design note.
func newBackoff() *backoff.ExponentialBackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     time.Second,
		Multiplier:          2,
		RandomizationFactor: 0,
		MaxInterval:         time.Minute,
	}
}

// executeWithRetry runs fn up to maxRetries+1 times, sleeping the
// exponential schedule between attempts, and classifies the outcome per
// spec.md §4.1's retry policy.
func (e *Executor) executeWithRetry(ctx context.Context, step *engine.Step, executionID string, fn actionFunc) *engine.ExecutionResult {
	bo := newBackoff()
	startedAt := e.clock.Now()

	var lastOutcome actionOutcome
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		outcome, err := fn(ctx, step, executionID)
		if err == nil {
			return e.successResult(step, executionID, startedAt, outcome)
		}

		lastOutcome, lastErr = outcome, err

		if nre, ok := err.(*NonRetryableError); ok {
			return e.failureResult(step, executionID, startedAt, engine.ErrNonRetryable, nre.Error())
		}

		if attempt == maxRetries {
			break
		}

		if e.metrics != nil {
			e.metrics.RecordStepRetry(string(step.Action))
		}
		delay := bo.NextBackOff()
		e.clock.Sleep(delay)
	}

	_ = lastOutcome
	if lastErr != nil {
		return e.failureResult(step, executionID, startedAt, engine.ErrRetryExhausted, lastErr.Error())
	}
	return e.failureResult(step, executionID, startedAt, engine.ErrRetryExhausted, "retries exhausted")
}

func (e *Executor) successResult(step *engine.Step, executionID string, startedAt time.Time, outcome actionOutcome) *engine.ExecutionResult {
	completedAt := e.clock.Now()
	e.recordStep(step.Action, engine.ResultStatusSuccess, completedAt.Sub(startedAt).Seconds())
	return &engine.ExecutionResult{
		ID:          uuid.New().String(),
		StepID:      step.ID,
		Status:      engine.ResultStatusSuccess,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(startedAt),
		Outputs:     outcome.Outputs,
		Artifacts:   outcome.Artifacts,
	}
}

func (e *Executor) failureResult(step *engine.Step, executionID string, startedAt time.Time, code engine.ErrorCode, message string) *engine.ExecutionResult {
	completedAt := e.clock.Now()
	e.recordStep(step.Action, engine.ResultStatusFailure, completedAt.Sub(startedAt).Seconds())
	return &engine.ExecutionResult{
		ID:          uuid.New().String(),
		StepID:      step.ID,
		Status:      engine.ResultStatusFailure,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(startedAt),
		Error: &engine.StepError{
			Code:    code,
			Message: message,
		},
	}
}
