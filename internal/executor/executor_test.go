package executor

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optiinfra/iacengine/internal/checkpoint"
	"github.com/optiinfra/iacengine/internal/engine"
	"github.com/optiinfra/iacengine/internal/logger"
	"github.com/optiinfra/iacengine/internal/safety"
)

// stubSafetyCheck is a minimal safety.Check for exercising engine wiring
// from outside the safety package, where funcCheck is unexported.
type stubSafetyCheck struct {
	id    string
	phase engine.SafetyPhase
	pass  bool
}

func (s *stubSafetyCheck) ID() string                      { return s.id }
func (s *stubSafetyCheck) Phase() engine.SafetyPhase       { return s.phase }
func (s *stubSafetyCheck) Category() string                { return "test" }
func (s *stubSafetyCheck) Name() string                    { return s.id }
func (s *stubSafetyCheck) Severity() engine.SafetySeverity  { return engine.SeverityHigh }
func (s *stubSafetyCheck) Evaluate(ctx safety.Context) engine.SafetyCheckResult {
	return engine.SafetyCheckResult{CheckID: s.id, Passed: s.pass, CanProceed: s.pass}
}

func newTestStoreAndExecutor(t *testing.T) *Executor {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := checkpoint.NewStore(client)
	return New(store, Adapters{}, nil, logger.NewLogger(), nil)
}

func validatePlan(id string) *engine.Plan {
	return &engine.Plan{
		ID: id,
		Steps: []*engine.Step{
			{ID: "validate", Ordinal: 0, Action: engine.ActionValidateRequirements, Parameters: map[string]interface{}{"provider": "aws"}},
			{ID: "generate-docs", Ordinal: 1, Action: engine.ActionGenerateDocumentation, DependsOn: []string{"validate"}},
		},
	}
}

func TestExecutePlan_RunsStepsInDependencyOrder(t *testing.T) {
	exec := newTestStoreAndExecutor(t)
	plan := validatePlan("plan-ok")

	results, err := exec.ExecutePlan(context.Background(), plan, safety.Context{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "validate", results[0].StepID)
	assert.Equal(t, "generate-docs", results[1].StepID)
	for _, r := range results {
		assert.Equal(t, engine.ResultStatusSuccess, r.Status)
	}

	cp, err := exec.checkpoints.GetLatestCheckpoint(plan.ID)
	require.NoError(t, err)
	assert.Nil(t, cp, "checkpoints should be deleted after a successful plan")
}

func TestExecutePlan_HaltsOnStepFailure(t *testing.T) {
	exec := newTestStoreAndExecutor(t)
	plan := &engine.Plan{
		ID: "plan-fail",
		Steps: []*engine.Step{
			{ID: "validate", Ordinal: 0, Action: engine.ActionValidateRequirements, Parameters: map[string]interface{}{"provider": "bogus"}},
			{ID: "generate-docs", Ordinal: 1, Action: engine.ActionGenerateDocumentation, DependsOn: []string{"validate"}},
		},
	}

	results, err := exec.ExecutePlan(context.Background(), plan, safety.Context{})
	require.NoError(t, err)
	require.Len(t, results, 1, "plan should halt after the first failure, never reaching generate-docs")
	assert.Equal(t, engine.ResultStatusFailure, results[0].Status)
	assert.Equal(t, engine.ErrNonRetryable, results[0].Error.Code)
}

func TestExecutePlan_RejectsCyclicPlan(t *testing.T) {
	exec := newTestStoreAndExecutor(t)
	plan := &engine.Plan{
		ID: "plan-cycle",
		Steps: []*engine.Step{
			{ID: "a", Action: engine.ActionValidateRequirements, DependsOn: []string{"b"}},
			{ID: "b", Action: engine.ActionValidateRequirements, DependsOn: []string{"a"}},
		},
	}

	_, err := exec.ExecutePlan(context.Background(), plan, safety.Context{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed dependency validation")
}

func TestExecutePlan_ResumesFromCheckpoint(t *testing.T) {
	exec := newTestStoreAndExecutor(t)
	plan := validatePlan("plan-resume")

	seeded := &engine.ExecutionResult{StepID: "validate", Status: engine.ResultStatusSuccess}
	require.NoError(t, exec.checkpoints.SaveCheckpoint(&engine.Checkpoint{
		ID:          "ckpt_plan-resume_0",
		OperationID: plan.ID,
		StepOrdinal: 0,
		State: engine.CheckpointState{
			CompletedStepIDs: []string{"validate"},
			Results:          []*engine.ExecutionResult{seeded},
		},
	}))

	results, err := exec.ResumePlan(context.Background(), plan, safety.Context{})
	require.NoError(t, err)
	require.Len(t, results, 2, "resumed plan should seed the checkpointed result and only execute the remaining step")
	assert.Equal(t, "validate", results[0].StepID)
	assert.Equal(t, "generate-docs", results[1].StepID)
}

func TestExecutePlan_DeadlockOnUnknownDependencyIsCaughtByValidation(t *testing.T) {
	exec := newTestStoreAndExecutor(t)
	plan := &engine.Plan{
		ID: "plan-deadlock",
		Steps: []*engine.Step{
			{ID: "a", Action: engine.ActionValidateRequirements, DependsOn: []string{"ghost"}},
		},
	}

	_, err := exec.ExecutePlan(context.Background(), plan, safety.Context{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown step")
}

func TestDispatchWave_UnknownActionRetriesToExhaustion(t *testing.T) {
	e, fc := newTestExecutor()
	step := &engine.Step{ID: "s1", Ordinal: 0, Action: engine.Action("no_such_action")}

	outcomes := e.dispatchWave(context.Background(), "plan-unknown-action", []*engine.Step{step})
	require.Len(t, outcomes, 1)
	result := outcomes[0]
	assert.Equal(t, engine.ResultStatusFailure, result.Status)
	assert.Equal(t, engine.ErrRetryExhausted, result.Error.Code)

	require.Len(t, fc.delays, maxRetries)
	var elapsed time.Duration
	for _, d := range fc.delays {
		elapsed += d
	}
	assert.GreaterOrEqual(t, elapsed, 7*time.Second, "unknown action must exhaust the full 1s/2s/4s retry schedule before landing on a terminal code")
}

func TestDispatchWave_PanicRecoversToExecutionError(t *testing.T) {
	e, _ := newTestExecutor()
	step := &engine.Step{ID: "s1", Ordinal: 0, Action: engine.ActionValidateRequirements}
	e.actions[engine.ActionValidateRequirements] = func(ctx context.Context, step *engine.Step, executionID string) (actionOutcome, error) {
		panic("adapter blew up")
	}

	outcomes := e.dispatchWave(context.Background(), "plan-panic", []*engine.Step{step})
	require.Len(t, outcomes, 1)
	result := outcomes[0]
	assert.Equal(t, engine.ResultStatusFailure, result.Status)
	assert.Equal(t, engine.ErrExecutionError, result.Error.Code)
	assert.Contains(t, result.Error.Message, "adapter blew up")
}

func TestRollbackStep_FailureTaggedAsRollbackError(t *testing.T) {
	e, _ := newTestExecutor()
	step := &engine.Step{ID: "s1", Action: engine.ActionValidateRequirements, RollbackAction: string(engine.ActionValidateRequirements)}

	result, err := e.RollbackStep(context.Background(), step, "exec-1")
	require.NoError(t, err)
	require.Equal(t, engine.ResultStatusFailure, result.Status)
	assert.Equal(t, engine.ErrRollback, result.Error.Code)
}

func TestExecutePlan_DuringExecutionSafetyCheckHalts(t *testing.T) {
	exec := newTestStoreAndExecutor(t)
	safetyEngine := safety.NewEngine(nil)
	safetyEngine.Register(&stubSafetyCheck{id: "always-block", phase: engine.SafetyPhaseDuring, pass: false})
	exec.safetyEngine = safetyEngine

	plan := validatePlan("plan-during-check")

	results, err := exec.ExecutePlan(context.Background(), plan, safety.Context{})
	require.NoError(t, err)
	require.Len(t, results, 1, "plan should halt after the during-execution check fails on the first step")
	assert.Equal(t, engine.ResultStatusSuccess, results[0].Status)
}

func TestExecutePlan_PostExecutionChecksRunOnSuccess(t *testing.T) {
	exec := newTestStoreAndExecutor(t)
	safetyEngine := safety.NewEngine(nil)
	ran := false
	safetyEngine.Register(&observingPostCheck{id: "post-observer", ran: &ran})
	exec.safetyEngine = safetyEngine

	plan := validatePlan("plan-post-check")

	results, err := exec.ExecutePlan(context.Background(), plan, safety.Context{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, ran, "post-execution checks must run after a plan completes successfully")
}

// observingPostCheck records whether Evaluate was ever called, to confirm
// RunPostExecutionChecks is actually wired into ExecutePlan's control flow.
type observingPostCheck struct {
	id  string
	ran *bool
}

func (c *observingPostCheck) ID() string                { return c.id }
func (c *observingPostCheck) Phase() engine.SafetyPhase  { return engine.SafetyPhasePost }
func (c *observingPostCheck) Category() string           { return "test" }
func (c *observingPostCheck) Name() string                { return c.id }
func (c *observingPostCheck) Severity() engine.SafetySeverity { return engine.SeverityLow }
func (c *observingPostCheck) Evaluate(ctx safety.Context) engine.SafetyCheckResult {
	*c.ran = true
	return engine.SafetyCheckResult{CheckID: c.id, Passed: true, CanProceed: true}
}
