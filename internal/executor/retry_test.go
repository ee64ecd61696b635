package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optiinfra/iacengine/internal/engine"
)

// fakeClock advances its Now() by every Sleep() call instead of actually
// blocking, and records the requested delays so tests can assert on the
// exact backoff schedule.
type fakeClock struct {
	now    time.Time
	delays []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.delays = append(c.delays, d)
	c.now = c.now.Add(d)
}

func newTestExecutor() (*Executor, *fakeClock) {
	e := New(nil, Adapters{}, nil, nil, nil)
	fc := newFakeClock()
	e.clock = fc
	return e, fc
}

func TestExecuteWithRetry_SucceedsFirstAttempt(t *testing.T) {
	e, fc := newTestExecutor()
	step := &engine.Step{ID: "s1", Action: engine.ActionValidateRequirements}

	calls := 0
	fn := func(ctx context.Context, step *engine.Step, executionID string) (actionOutcome, error) {
		calls++
		return actionOutcome{Outputs: map[string]interface{}{"ok": true}}, nil
	}

	result := e.executeWithRetry(context.Background(), step, "exec-1", fn)
	require.NotNil(t, result)
	assert.Equal(t, engine.ResultStatusSuccess, result.Status)
	assert.Equal(t, 1, calls)
	assert.Empty(t, fc.delays)
}

func TestExecuteWithRetry_RetriesThenSucceeds(t *testing.T) {
	e, fc := newTestExecutor()
	step := &engine.Step{ID: "s1", Action: engine.ActionValidateRequirements}

	calls := 0
	fn := func(ctx context.Context, step *engine.Step, executionID string) (actionOutcome, error) {
		calls++
		if calls < 3 {
			return actionOutcome{}, errors.New("transient")
		}
		return actionOutcome{}, nil
	}

	result := e.executeWithRetry(context.Background(), step, "exec-1", fn)
	require.NotNil(t, result)
	assert.Equal(t, engine.ResultStatusSuccess, result.Status)
	assert.Equal(t, 3, calls)
	require.Len(t, fc.delays, 2)
	assert.Equal(t, time.Second, fc.delays[0])
	assert.Equal(t, 2*time.Second, fc.delays[1])
}

func TestExecuteWithRetry_ExhaustsRetries(t *testing.T) {
	e, fc := newTestExecutor()
	step := &engine.Step{ID: "s1", Action: engine.ActionValidateRequirements}

	calls := 0
	fn := func(ctx context.Context, step *engine.Step, executionID string) (actionOutcome, error) {
		calls++
		return actionOutcome{}, errors.New("permanent")
	}

	result := e.executeWithRetry(context.Background(), step, "exec-1", fn)
	require.NotNil(t, result)
	assert.Equal(t, engine.ResultStatusFailure, result.Status)
	assert.Equal(t, engine.ErrRetryExhausted, result.Error.Code)
	assert.Equal(t, maxRetries+1, calls)
	require.Len(t, fc.delays, maxRetries)
	assert.Equal(t, time.Second, fc.delays[0])
	assert.Equal(t, 2*time.Second, fc.delays[1])
	assert.Equal(t, 4*time.Second, fc.delays[2])
}

func TestExecuteWithRetry_NonRetryableFailsImmediately(t *testing.T) {
	e, fc := newTestExecutor()
	step := &engine.Step{ID: "s1", Action: engine.ActionValidateRequirements}

	calls := 0
	fn := func(ctx context.Context, step *engine.Step, executionID string) (actionOutcome, error) {
		calls++
		return actionOutcome{}, newNonRetryableError("unsupported provider: %q", "bogus")
	}

	result := e.executeWithRetry(context.Background(), step, "exec-1", fn)
	require.NotNil(t, result)
	assert.Equal(t, engine.ResultStatusFailure, result.Status)
	assert.Equal(t, engine.ErrNonRetryable, result.Error.Code)
	assert.Equal(t, 1, calls)
	assert.Empty(t, fc.delays)
}
