// Package drift implements the Drift Detector and Analyzer: comparison of
// declared state against actual state, severity classification, and
// generation of a bounded remediation plan.
package drift

import "github.com/optiinfra/iacengine/internal/engine"

// DetectOptions configures one DetectDrift invocation.
type DetectOptions struct {
	WorkDir     string          `json:"work_dir"`
	Provider    engine.Provider `json:"provider"`
	Namespace   string          `json:"namespace,omitempty"`
	Context     string          `json:"context,omitempty"`
	Refresh     bool            `json:"refresh"`
	Targets     []string        `json:"targets,omitempty"`
	VarFile     []byte          `json:"var_file,omitempty"` // raw YAML, parsed with gopkg.in/yaml.v3
	Environment string          `json:"environment,omitempty"`
}

// RemediationPlan buckets drift items by the action needed to reconcile
// them, per spec.md §4.4's createRemediationPlan contract.
type RemediationPlan struct {
	Update   []engine.DriftItem `json:"update"`
	Create   []engine.DriftItem `json:"create"`
	Destroy  []engine.DriftItem `json:"destroy"`
	Manual   []engine.DriftItem `json:"manual"`
	Impact   engine.SafetySeverity `json:"impact"`
	Warnings []string           `json:"warnings"`
}

// RemediateOptions configures a remediation execution.
type RemediateOptions struct {
	WorkDir  string          `json:"work_dir"`
	Provider engine.Provider `json:"provider"`
	DryRun   bool            `json:"dry_run"`
}

// RemediateResult is the outcome of executing a RemediationPlan.
type RemediateResult struct {
	Success bool
	Fixed   int
	Failed  int
	Skipped int
	Actions []string
	Duration int64 // milliseconds
}
