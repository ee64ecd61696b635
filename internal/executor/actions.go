package executor

import (
	"context"
	"fmt"

	"github.com/optiinfra/iacengine/internal/adapter"
	"github.com/optiinfra/iacengine/internal/engine"
)

// actionOutcome is what an action function returns on success.
type actionOutcome struct {
	Outputs   map[string]interface{}
	Artifacts []engine.Artifact
}

// actionFunc is the handler signature resolved by the action table. An
// auxiliary actionFunc falls back to a mock result itself when its adapter
// is absent; only a primary one returns an adapterUnavailableError, which
// the retry loop retries like any other error.
type actionFunc func(ctx context.Context, step *engine.Step, executionID string) (actionOutcome, error)

var validProviders = map[string]bool{
	"aws": true, "azure": true, "gcp": true, "kubernetes": true,
}

// Adapters bundles every Tool Adapter Client the action table dispatches
// to. All are optional: a nil adapter is treated the same as one that
// returns adapterUnavailableError, so the table can be exercised with a
// partial adapter set in tests.
type Adapters struct {
	Terraform *adapter.TerraformAdapter
	Generator *adapter.GeneratorAdapter
	FS        *adapter.FSAdapter
	State     *adapter.StateAdapter
}

// buildActionTable returns the Executor's switch over step.action,
// mirroring spec.md §4.1's eight-action dispatch table. For an action key
// not present here the caller fails each attempt with a plain error, so the
// step is retried and ends as RETRY_EXHAUSTED.
func buildActionTable(ad Adapters) map[engine.Action]actionFunc {
	return map[engine.Action]actionFunc{
		engine.ActionValidateRequirements: func(ctx context.Context, step *engine.Step, executionID string) (actionOutcome, error) {
			provider, _ := step.Parameters["provider"].(string)
			if provider == "" || !validProviders[provider] {
				return actionOutcome{}, newNonRetryableError("unsupported provider: %q", provider)
			}
			return actionOutcome{Outputs: map[string]interface{}{"provider": provider, "validated": true}}, nil
		},

		engine.ActionGenerateComponent: func(ctx context.Context, step *engine.Step, executionID string) (actionOutcome, error) {
			componentType, _ := step.Parameters["component_type"].(string)
			if ad.Generator == nil {
				return mockAuxiliary("generate_component"), nil
			}
			resp, err := ad.Generator.Generate(ctx, adapter.GenerateRequest{
				ComponentType: componentType,
				Parameters:    step.Parameters,
			})
			if err != nil {
				return mockAuxiliary("generate_component"), nil
			}
			return actionOutcome{Outputs: map[string]interface{}{"files": resp.Files}}, nil
		},

		engine.ActionValidateGeneratedCode: func(ctx context.Context, step *engine.Step, executionID string) (actionOutcome, error) {
			path, _ := step.Parameters["path"].(string)
			if ad.FS == nil {
				return mockAuxiliary("validate_generated_code"), nil
			}
			resp, err := ad.FS.Validate(ctx, adapter.FSRequest{Path: path})
			if err != nil {
				return mockAuxiliary("validate_generated_code"), nil
			}
			return actionOutcome{Outputs: map[string]interface{}{"valid": resp.Valid, "errors": resp.Errors}}, nil
		},

		engine.ActionApplyBestPractices: func(ctx context.Context, step *engine.Step, executionID string) (actionOutcome, error) {
			componentType, _ := step.Parameters["component_type"].(string)
			if ad.Generator == nil {
				return mockAuxiliary("apply_best_practices"), nil
			}
			resp, err := ad.Generator.ApplyBestPractices(ctx, adapter.GenerateRequest{
				ComponentType: componentType,
				Parameters:    step.Parameters,
			})
			if err != nil {
				return mockAuxiliary("apply_best_practices"), nil
			}
			return actionOutcome{Outputs: map[string]interface{}{"files": resp.Files}}, nil
		},

		engine.ActionPlanDeployment: func(ctx context.Context, step *engine.Step, executionID string) (actionOutcome, error) {
			workDir, _ := step.Parameters["work_dir"].(string)
			if ad.Terraform == nil {
				return actionOutcome{}, &adapterUnavailableError{Op: "plan_deployment", Err: fmt.Errorf("terraform adapter not configured")}
			}
			resp, err := ad.Terraform.Plan(ctx, adapter.PlanRequest{WorkDir: workDir, Variables: step.Parameters})
			if err != nil {
				return actionOutcome{}, &adapterUnavailableError{Op: "plan_deployment", Err: err}
			}
			return actionOutcome{Outputs: map[string]interface{}{
				"plan_id":      resp.PlanID,
				"change_count": resp.ChangeCount,
				"resources":    resp.Resources,
			}}, nil
		},

		engine.ActionApplyDeployment: func(ctx context.Context, step *engine.Step, executionID string) (actionOutcome, error) {
			workDir, _ := step.Parameters["work_dir"].(string)
			planID, _ := step.Parameters["plan_id"].(string)
			if ad.Terraform == nil {
				return actionOutcome{}, &adapterUnavailableError{Op: "apply_deployment", Err: fmt.Errorf("terraform adapter not configured")}
			}
			resp, err := ad.Terraform.Apply(ctx, adapter.ApplyRequest{WorkDir: workDir, PlanID: planID, Variables: step.Parameters})
			if err != nil {
				return actionOutcome{}, &adapterUnavailableError{Op: "apply_deployment", Err: err}
			}
			if !resp.Success {
				return actionOutcome{}, fmt.Errorf("apply reported failure for work dir %s", workDir)
			}
			return actionOutcome{Outputs: resp.Outputs}, nil
		},

		engine.ActionVerifyDeployment: func(ctx context.Context, step *engine.Step, executionID string) (actionOutcome, error) {
			workDir, _ := step.Parameters["work_dir"].(string)
			if ad.State == nil {
				return mockAuxiliary("verify_deployment"), nil
			}
			resp, err := ad.State.Actual(ctx, adapter.StateRequest{WorkDir: workDir})
			if err != nil {
				return mockAuxiliary("verify_deployment"), nil
			}
			return actionOutcome{Outputs: map[string]interface{}{"resources": resp.Resources}}, nil
		},

		engine.ActionGenerateDocumentation: func(ctx context.Context, step *engine.Step, executionID string) (actionOutcome, error) {
			componentType, _ := step.Parameters["component_type"].(string)
			if ad.Generator == nil {
				return mockAuxiliary("generate_documentation"), nil
			}
			resp, err := ad.Generator.Generate(ctx, adapter.GenerateRequest{
				ComponentType: "documentation:" + componentType,
				Parameters:    step.Parameters,
			})
			if err != nil {
				return mockAuxiliary("generate_documentation"), nil
			}
			return actionOutcome{Outputs: map[string]interface{}{"files": resp.Files}}, nil
		},
	}
}

// mockAuxiliary synthesizes a deterministic fallback result for an
// auxiliary action whose backing adapter is unavailable, per spec.md
// §4.1's "adapter-service unavailability for auxiliary operations falls
// back to a deterministic synthesized result marked as mock" rule.
func mockAuxiliary(op string) actionOutcome {
	return actionOutcome{Outputs: map[string]interface{}{"mock": true, "op": op}}
}
