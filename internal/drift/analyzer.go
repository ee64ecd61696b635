package drift

import (
	"context"
	"time"

	"github.com/optiinfra/iacengine/internal/adapter"
	"github.com/optiinfra/iacengine/internal/engine"
	"github.com/optiinfra/iacengine/internal/metrics"
)

// Analyzer turns a DriftReport into a bounded RemediationPlan and can
// execute that plan against the provider adapters, grounded on
// other_examples' terraform remediation planner's bucket-and-execute
// structure (generateActions / createImportAction / createUpdateAction).
type Analyzer struct {
	terraform *adapter.TerraformAdapter
	metrics   *metrics.Metrics
}

// NewAnalyzer builds a Drift Analyzer over the terraform adapter it needs
// to execute import/update/destroy remediation actions. m may be nil in
// tests that don't care about metrics.
func NewAnalyzer(terraform *adapter.TerraformAdapter, m *metrics.Metrics) *Analyzer {
	return &Analyzer{terraform: terraform, metrics: m}
}

// CreateRemediationPlan buckets every drift item by the action needed to
// reconcile it, per spec.md §4.4's bucket rule, deduplicating within each
// bucket by resource address.
func (a *Analyzer) CreateRemediationPlan(report *engine.DriftReport) RemediationPlan {
	plan := RemediationPlan{Warnings: []string{}}

	seenUpdate := map[string]bool{}
	seenCreate := map[string]bool{}
	seenDestroy := map[string]bool{}
	seenManual := map[string]bool{}

	anyCritical := false
	anyDestroy := false
	highCount := 0
	updateCount := 0

	for _, resource := range report.Resources {
		for _, item := range resource.Drifts {
			if item.Severity == engine.SeverityCritical {
				anyCritical = true
			}
			if item.Severity == engine.SeverityHigh {
				highCount++
			}

			switch item.DriftType {
			case engine.DriftModified:
				if item.AutoFixable {
					if !seenUpdate[resource.Address] {
						plan.Update = append(plan.Update, item)
						seenUpdate[resource.Address] = true
						updateCount++
					}
				} else {
					if !seenManual[resource.Address] {
						plan.Manual = append(plan.Manual, item)
						seenManual[resource.Address] = true
					}
					plan.Warnings = append(plan.Warnings, resource.Address+" requires manual remediation")
				}
			case engine.DriftAdded:
				if !seenCreate[resource.Address] {
					plan.Create = append(plan.Create, item)
					seenCreate[resource.Address] = true
				}
			case engine.DriftRemoved:
				anyDestroy = true
				if !seenDestroy[resource.Address] {
					plan.Destroy = append(plan.Destroy, item)
					seenDestroy[resource.Address] = true
				}
				plan.Warnings = append(plan.Warnings, resource.Address+" is missing and will be destroyed from declared state")
			}
		}
	}

	switch {
	case anyCritical || anyDestroy:
		plan.Impact = engine.SeverityCritical
	case highCount > 3:
		plan.Impact = engine.SeverityHigh
	case highCount > 0 || updateCount > 5:
		plan.Impact = engine.SeverityMedium
	default:
		plan.Impact = engine.SeverityLow
	}

	return plan
}

// Remediate executes a RemediationPlan against the relevant provider
// adapter, calling import for unmanaged additions, apply for updates, and
// remove-from-state for removed resources.
func (a *Analyzer) Remediate(ctx context.Context, plan RemediationPlan, opts RemediateOptions) RemediateResult {
	startedAt := time.Now()
	result := RemediateResult{Success: true, Actions: []string{}}

	if opts.Provider != engine.ProviderTerraform || a.terraform == nil {
		result.Skipped = len(plan.Update) + len(plan.Create) + len(plan.Destroy)
		result.Actions = append(result.Actions, "remediation skipped: unsupported provider or adapter unavailable")
		result.Duration = time.Since(startedAt).Milliseconds()
		return result
	}

	for _, item := range plan.Create {
		a.runAction(ctx, &result, opts, "import", item.ResourceID, func() error {
			return a.terraform.Import(ctx, adapter.DestroyRequest{WorkDir: opts.WorkDir, ResourceAddr: item.ResourceID})
		})
	}
	for _, item := range plan.Update {
		a.runAction(ctx, &result, opts, "update", item.ResourceID, func() error {
			_, err := a.terraform.Apply(ctx, adapter.ApplyRequest{WorkDir: opts.WorkDir})
			return err
		})
	}
	for _, item := range plan.Destroy {
		a.runAction(ctx, &result, opts, "destroy", item.ResourceID, func() error {
			return a.terraform.RemoveFromState(ctx, adapter.DestroyRequest{WorkDir: opts.WorkDir, ResourceAddr: item.ResourceID})
		})
	}

	result.Duration = time.Since(startedAt).Milliseconds()
	result.Success = result.Failed == 0
	return result
}

func (a *Analyzer) runAction(ctx context.Context, result *RemediateResult, opts RemediateOptions, verb, resource string, fn func() error) {
	if opts.DryRun {
		result.Skipped++
		result.Actions = append(result.Actions, "would "+verb+" "+resource)
		a.recordRemediationAction(verb, "skipped")
		return
	}
	if err := fn(); err != nil {
		result.Failed++
		result.Actions = append(result.Actions, verb+" "+resource+" failed: "+err.Error())
		a.recordRemediationAction(verb, "failed")
		return
	}
	result.Fixed++
	result.Actions = append(result.Actions, verb+" "+resource+" succeeded")
	a.recordRemediationAction(verb, "succeeded")
}

func (a *Analyzer) recordRemediationAction(verb, outcome string) {
	if a.metrics == nil {
		return
	}
	a.metrics.RecordRemediationAction(verb, outcome)
}
