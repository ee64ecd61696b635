// Package executor implements the Plan Executor: a dependency-ordered
// scheduler with bounded parallelism, per-step retry, checkpointing after
// each completed step, and resume-from-checkpoint semantics.
package executor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/optiinfra/iacengine/internal/checkpoint"
	"github.com/optiinfra/iacengine/internal/engine"
	"github.com/optiinfra/iacengine/internal/logger"
	"github.com/optiinfra/iacengine/internal/metrics"
	"github.com/optiinfra/iacengine/internal/safety"
)

// Executor runs Plans to completion, tracking per-execution logs and
// artifacts in memory.
type Executor struct {
	checkpoints  *checkpoint.Store
	actions      map[engine.Action]actionFunc
	clock        Clock
	safetyEngine *safety.Engine
	log          *logger.Logger
	metrics      *metrics.Metrics

	mu        sync.RWMutex
	logs      map[string][]engine.LogEntry
	artifacts map[string][]engine.Artifact
}

// New builds a Plan Executor wired to a checkpoint store, a set of tool
// adapters, and the Safety Policy Engine it consults for during- and
// post-execution observation. safetyEngine may be nil in tests that don't
// care about safety checks; m may be nil in tests that don't care about
// metrics.
func New(store *checkpoint.Store, adapters Adapters, safetyEngine *safety.Engine, log *logger.Logger, m *metrics.Metrics) *Executor {
	return &Executor{
		checkpoints:  store,
		actions:      buildActionTable(adapters),
		clock:        SystemClock,
		safetyEngine: safetyEngine,
		log:          log,
		metrics:      m,
		logs:         make(map[string][]engine.LogEntry),
		artifacts:    make(map[string][]engine.Artifact),
	}
}

func (e *Executor) recordStep(action engine.Action, status engine.ResultStatus, seconds float64) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordStepExecuted(string(action), string(status))
	e.metrics.RecordStepDuration(string(action), seconds)
}

func (e *Executor) recordCheckpointWrite(outcome string) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordCheckpointWrite(outcome)
}

// ExecutePlan runs the plan to completion or first fatal failure,
// returning every terminal result in chronological completion order.
// safetyCtx supplies the environment/deadline/cost context the Safety
// Engine's during- and post-execution checks observe as the plan runs;
// it is consulted only when the Executor was built with a safetyEngine.
func (e *Executor) ExecutePlan(ctx context.Context, plan *engine.Plan, safetyCtx safety.Context) ([]*engine.ExecutionResult, error) {
	if err := validateDAG(plan); err != nil {
		return nil, fmt.Errorf("plan %s failed dependency validation: %w", plan.ID, err)
	}

	executed := make(map[string]bool)
	results := make([]*engine.ExecutionResult, 0, len(plan.Steps))

	e.seedFromCheckpoint(plan, executed, &results)

	safetyCtx.Plan = plan
	if safetyCtx.StartedAt.IsZero() {
		safetyCtx.StartedAt = e.clock.Now()
	}

	var deadlockErr error
	halted := false

loop:
	for {
		ready := readySet(plan, executed)
		if len(ready) == 0 {
			if len(executed) < len(plan.Steps) {
				deadlockErr = fmt.Errorf("dependency deadlock in plan %s: %d of %d steps unreachable", plan.ID, len(plan.Steps)-len(executed), len(plan.Steps))
			}
			break
		}

		sort.Slice(ready, func(i, j int) bool { return ready[i].Ordinal < ready[j].Ordinal })

		outcomes := e.dispatchWave(ctx, plan.ID, ready)

		for i, step := range ready {
			result := outcomes[i]
			result.PlanID = plan.ID
			step.Status = engine.StepStatusRunning
			results = append(results, result)
			executed[step.ID] = true

			if result.Status == engine.ResultStatusSuccess {
				step.Status = engine.StepStatusCompleted
			} else {
				step.Status = engine.StepStatusFailed
			}

			e.appendLog(plan.ID+":"+step.ID, result, step)
			e.saveCheckpoint(plan.ID, step.Ordinal, executed, results)

			if result.Status == engine.ResultStatusFailure {
				e.log.Warnw("plan halted on step failure", "plan_id", plan.ID, "step_id", step.ID, "error_code", result.Error.Code)
				halted = true
				break loop
			}

			if e.safetyEngine != nil {
				stepCtx := safetyCtx
				stepCtx.Step = step
				if report := e.safetyEngine.RunDuringExecutionChecks(stepCtx); !report.Passed {
					e.log.Warnw("plan halted by during-execution safety check", "plan_id", plan.ID, "step_id", step.ID)
					halted = true
					break loop
				}
			}
		}
	}

	if e.safetyEngine != nil {
		if report := e.safetyEngine.RunPostExecutionChecks(safetyCtx); !report.Passed {
			e.log.Warnw("post-execution safety checks reported findings", "plan_id", plan.ID)
		}
	}

	if deadlockErr != nil {
		return results, deadlockErr
	}
	if halted {
		return results, nil
	}

	if err := e.checkpoints.DeleteCheckpoints(plan.ID); err != nil {
		e.log.Warnw("failed to delete checkpoints after plan success", "plan_id", plan.ID, "error", err)
	}

	return results, nil
}

// ResumePlan requires a checkpoint to exist for planId; it reconstructs
// the seeded executor state and continues the scheduling loop.
func (e *Executor) ResumePlan(ctx context.Context, plan *engine.Plan, safetyCtx safety.Context) ([]*engine.ExecutionResult, error) {
	cp, err := e.checkpoints.GetLatestCheckpoint(plan.ID)
	if err != nil {
		e.log.Warnw("checkpoint fetch failed on resume, starting fresh", "plan_id", plan.ID, "error", err)
		return e.ExecutePlan(ctx, plan, safetyCtx)
	}
	if cp == nil {
		return nil, fmt.Errorf("no checkpoint found for plan %s", plan.ID)
	}
	return e.ExecutePlan(ctx, plan, safetyCtx)
}

// RollbackStep requires step.RollbackAction to be set.
func (e *Executor) RollbackStep(ctx context.Context, step *engine.Step, executionID string) (*engine.ExecutionResult, error) {
	if step.RollbackAction == "" {
		return nil, fmt.Errorf("step %s has no rollback action", step.ID)
	}
	fn, ok := e.actions[engine.Action(step.RollbackAction)]
	if !ok {
		return nil, fmt.Errorf("unknown rollback action %q for step %s", step.RollbackAction, step.ID)
	}
	result := e.runStep(ctx, step, executionID, fn)
	if result.Status == engine.ResultStatusFailure {
		result.Error.Code = engine.ErrRollback
	}
	return result, nil
}

// GetLogs returns every log entry recorded for an execution id.
func (e *Executor) GetLogs(executionID string) []engine.LogEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]engine.LogEntry(nil), e.logs[executionID]...)
}

// GetArtifacts returns every artifact recorded for an execution id.
func (e *Executor) GetArtifacts(executionID string) []engine.Artifact {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]engine.Artifact(nil), e.artifacts[executionID]...)
}

// dispatchWave runs every step in a ready batch concurrently and waits for
// all to settle, per spec.md §4.1 step 3. Outcomes are returned in the
// same order as the input slice (ordinal order), not completion order. An
// unresolvable step.Action is not a shortcut to a synthetic result: it's
// turned into a plain error so it goes through the same retry loop as any
// other action failure, landing on RETRY_EXHAUSTED once retries are spent
// (spec.md §4.1, §8 invariant 5).
func (e *Executor) dispatchWave(ctx context.Context, planID string, ready []*engine.Step) []*engine.ExecutionResult {
	outcomes := make([]*engine.ExecutionResult, len(ready))
	var wg sync.WaitGroup
	for i, step := range ready {
		wg.Add(1)
		go func(i int, step *engine.Step) {
			defer wg.Done()
			executionID := planID + ":" + step.ID
			fn, ok := e.actions[step.Action]
			if !ok {
				action := step.Action
				fn = func(ctx context.Context, step *engine.Step, executionID string) (actionOutcome, error) {
					return actionOutcome{}, fmt.Errorf("unknown action %q", action)
				}
			}
			outcomes[i] = e.runStep(ctx, step, executionID, fn)
		}(i, step)
	}
	wg.Wait()
	return outcomes
}

// runStep drives a step through the retry loop and recovers a panicking
// action function into a terminal EXECUTION_ERROR result rather than
// crashing the wave's goroutine.
func (e *Executor) runStep(ctx context.Context, step *engine.Step, executionID string, fn actionFunc) (result *engine.ExecutionResult) {
	startedAt := e.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			result = e.failureResult(step, executionID, startedAt, engine.ErrExecutionError, fmt.Sprintf("panic in action %q: %v", step.Action, r))
		}
	}()
	return e.executeWithRetry(ctx, step, executionID, fn)
}

// seedFromCheckpoint marks previously completed steps as executed and
// seeds the returned results from the persisted checkpoint, validating
// that every completedStepId still exists in the current plan — guarding
// against the renamed-step pitfall spec.md §9 calls out rather than
// reproducing it.
func (e *Executor) seedFromCheckpoint(plan *engine.Plan, executed map[string]bool, results *[]*engine.ExecutionResult) {
	cp, err := e.checkpoints.GetLatestCheckpoint(plan.ID)
	if err != nil {
		e.log.Warnw("checkpoint fetch failed, starting fresh", "plan_id", plan.ID, "error", err)
		return
	}
	if cp == nil {
		return
	}

	byID := make(map[string]*engine.Step, len(plan.Steps))
	for _, s := range plan.Steps {
		byID[s.ID] = s
	}
	for _, id := range cp.State.CompletedStepIDs {
		if _, ok := byID[id]; !ok {
			e.log.Warnw("checkpoint references unknown step, starting fresh", "plan_id", plan.ID, "step_id", id)
			*results = (*results)[:0]
			for k := range executed {
				delete(executed, k)
			}
			return
		}
	}

	for _, id := range cp.State.CompletedStepIDs {
		executed[id] = true
		byID[id].Status = engine.StepStatusCompleted
	}
	*results = append(*results, cp.State.Results...)
}

// saveCheckpoint persists progress after a settled step. Failures are
// logged at warn and never halt execution, per spec.md §4.1.
func (e *Executor) saveCheckpoint(planID string, ordinal int, executed map[string]bool, results []*engine.ExecutionResult) {
	completedIDs := make([]string, 0, len(executed))
	for id := range executed {
		completedIDs = append(completedIDs, id)
	}
	sort.Strings(completedIDs)

	cp := &engine.Checkpoint{
		ID:          fmt.Sprintf("ckpt_%s_%d", planID, ordinal),
		OperationID: planID,
		StepOrdinal: ordinal,
		CreatedAt:   e.clock.Now(),
		State: engine.CheckpointState{
			CompletedStepIDs:  completedIDs,
			Results:           append([]*engine.ExecutionResult(nil), results...),
			LastCompletedStep: ordinal,
		},
	}

	if err := e.checkpoints.SaveCheckpoint(cp); err != nil {
		e.log.Warnw("checkpoint write failed, continuing", "plan_id", planID, "ordinal", ordinal, "error", err)
		e.recordCheckpointWrite("failure")
		return
	}
	e.recordCheckpointWrite("success")
}

func (e *Executor) appendLog(executionID string, result *engine.ExecutionResult, step *engine.Step) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry := engine.LogEntry{
		Timestamp: e.clock.Now(),
		Level:     "info",
		Message:   fmt.Sprintf("step %s completed with status %s", step.ID, result.Status),
	}
	if result.Status == engine.ResultStatusFailure {
		entry.Level = "error"
	}
	e.logs[executionID] = append(e.logs[executionID], entry)
	e.artifacts[executionID] = append(e.artifacts[executionID], result.Artifacts...)
}
