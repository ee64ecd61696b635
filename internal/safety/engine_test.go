package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optiinfra/iacengine/internal/engine"
)

func minimalPassingPlan() *engine.Plan {
	return &engine.Plan{
		ID:        "plan-1",
		RiskLevel: engine.RiskLevelLow,
		Steps: []*engine.Step{
			{ID: "s1", Type: engine.StepTypeValidate, Action: engine.ActionApplyBestPractices},
			{ID: "s2", Type: engine.StepTypeValidate, Action: engine.ActionPlanDeployment},
			{ID: "s3", Type: engine.StepTypeDeploy, Action: engine.ActionApplyDeployment, DependsOn: []string{"s2"}, RollbackAction: "destroy_deployment"},
		},
	}
}

func TestRunPreExecutionChecks_PassesCleanPlan(t *testing.T) {
	e := NewEngine(nil)
	ctx := Context{Plan: minimalPassingPlan(), Environment: "staging"}

	report := e.RunPreExecutionChecks(ctx)
	assert.True(t, report.Passed, "blockers: %+v", report.Blockers)
	assert.Empty(t, report.Blockers)
}

func TestRunPreExecutionChecks_BlocksUnapprovedProduction(t *testing.T) {
	e := NewEngine(nil)
	plan := minimalPassingPlan()
	plan.RequiresApproval = false
	ctx := Context{Plan: plan, Environment: "production"}

	report := e.RunPreExecutionChecks(ctx)
	assert.False(t, report.Passed)
	require.NotEmpty(t, report.Blockers)
	found := false
	for _, b := range report.Blockers {
		if b.CheckID == "production-requires-approval" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRunPreExecutionChecks_AllowsApprovedProduction(t *testing.T) {
	e := NewEngine(nil)
	plan := minimalPassingPlan()
	plan.RequiresApproval = true
	plan.Approver = "ops-lead"
	ctx := Context{Plan: plan, Environment: "production"}

	report := e.RunPreExecutionChecks(ctx)
	assert.True(t, report.Passed, "blockers: %+v", report.Blockers)
}

func TestRunPreExecutionChecks_BlocksOverCostLimit(t *testing.T) {
	e := NewEngine(nil)
	plan := minimalPassingPlan()
	plan.EstimatedCost = 10000
	ctx := Context{Plan: plan, Environment: "staging"}

	report := e.RunPreExecutionChecks(ctx)
	assert.False(t, report.Passed)
	assert.Contains(t, checkIDs(report.Blockers), "cost-limit")
}

func TestRunPreExecutionChecks_BlocksMissingBestPracticesStep(t *testing.T) {
	e := NewEngine(nil)
	plan := &engine.Plan{Steps: []*engine.Step{
		{ID: "s1", Type: engine.StepTypeDeploy, Action: engine.ActionApplyDeployment, RollbackAction: "destroy_deployment"},
	}}
	ctx := Context{Plan: plan, Environment: "staging"}

	report := e.RunPreExecutionChecks(ctx)
	assert.False(t, report.Passed)
	assert.Contains(t, checkIDs(report.Blockers), "security-best-practices-present")
}

func TestRunPreExecutionChecks_BlocksDeployWithoutRollback(t *testing.T) {
	e := NewEngine(nil)
	plan := minimalPassingPlan()
	plan.Steps[2].RollbackAction = ""
	ctx := Context{Plan: plan, Environment: "staging"}

	report := e.RunPreExecutionChecks(ctx)
	assert.False(t, report.Passed)
	assert.Contains(t, checkIDs(report.Blockers), "destructive-ops-require-rollback")
}

func TestRunDuringExecutionChecks_BlocksUnbackedUpProductionDelete(t *testing.T) {
	e := NewEngine(nil)
	plan := minimalPassingPlan()
	step := &engine.Step{ID: "destroy-it", Action: "destroy_deployment"}
	ctx := Context{Plan: plan, Step: step, Environment: "production"}

	report := e.RunDuringExecutionChecks(ctx)
	assert.False(t, report.Passed)
}

func TestRunPostExecutionChecks_WarnsWithoutBlocking(t *testing.T) {
	e := NewEngine(nil)
	plan := &engine.Plan{Steps: []*engine.Step{
		{ID: "s1", Action: engine.ActionApplyDeployment},
	}}
	ctx := Context{Plan: plan, Environment: "staging"}

	report := e.RunPostExecutionChecks(ctx)
	assert.False(t, report.Passed, "a failed post check marks the report as not passed")
	found := false
	for _, r := range report.Results {
		if r.CheckID == "post-deployment-verify" && !r.Passed && r.CanProceed {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRunPreExecutionChecks_PanicIsContainedAsBlocker(t *testing.T) {
	e := NewEngine(nil)
	e.Register(&funcCheck{
		id:       "always-panics",
		phase:    engine.SafetyPhasePre,
		category: "test",
		name:     "always panics",
		severity: engine.SeverityHigh,
		eval: func(ctx Context) engine.SafetyCheckResult {
			panic("boom")
		},
	})

	report := e.RunPreExecutionChecks(Context{Plan: minimalPassingPlan(), Environment: "staging"})
	assert.False(t, report.Passed)
	assert.Contains(t, checkIDs(report.Blockers), "always-panics")
}

func TestUnregister_RemovesCheck(t *testing.T) {
	e := NewEngine(nil)
	e.Unregister("cost-limit")

	plan := minimalPassingPlan()
	plan.EstimatedCost = 999999
	report := e.RunPreExecutionChecks(Context{Plan: plan, Environment: "staging"})
	assert.NotContains(t, checkIDs(report.Results), "cost-limit")
}

func checkIDs(results []engine.SafetyCheckResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.CheckID
	}
	return ids
}
