// Package rollback implements the Rollback Manager: durable capture of
// execution state and best-effort, provider-specific reversal across
// terraform, kubernetes, and helm.
package rollback

import (
	"fmt"
	"time"

	"github.com/optiinfra/iacengine/internal/engine"
)

// ExecutionState is the rollback record saved during apply and consumed
// during rollback. Provider-specific fields are modeled as a tagged union
// over three variants rather than a bag of optional fields, so "helm
// requires releaseName" is enforced at construction time — per spec.md
// §9's tagged-union design note.
type ExecutionState struct {
	ExecutionID string          `json:"execution_id"`
	Provider    engine.Provider `json:"provider"`
	WorkDir     string          `json:"work_dir"`
	ExecutedAt  time.Time       `json:"executed_at"`

	Terraform  *TerraformState  `json:"terraform,omitempty"`
	Kubernetes *KubernetesState `json:"kubernetes,omitempty"`
	Helm       *HelmState       `json:"helm,omitempty"`
}

// TerraformState carries the fields the three-tier terraform rollback
// fallback needs, in descending priority order.
type TerraformState struct {
	PreviousState     string   `json:"previous_state,omitempty"`
	BackupPath        string   `json:"backup_path,omitempty"`
	DeployedResources []string `json:"deployed_resources,omitempty"`
}

// KubernetesState carries the per-resource deployed list the Kubernetes
// rollback strategy deletes from.
type KubernetesState struct {
	Namespace         string   `json:"namespace"`
	DeployedResources []string `json:"deployed_resources"`
}

// HelmState carries the release identity the Helm rollback strategy needs.
// ReleaseName is required and enforced by NewHelmState.
type HelmState struct {
	ReleaseName      string `json:"release_name"`
	Namespace        string `json:"namespace"`
	PreviousRevision int    `json:"previous_revision"`
}

// NewTerraformState builds a terraform ExecutionState variant.
func NewTerraformState(executionID, workDir string, st TerraformState) *ExecutionState {
	return &ExecutionState{
		ExecutionID: executionID,
		Provider:    engine.ProviderTerraform,
		WorkDir:     workDir,
		ExecutedAt:  time.Now(),
		Terraform:   &st,
	}
}

// NewKubernetesState builds a kubernetes ExecutionState variant.
func NewKubernetesState(executionID, workDir string, st KubernetesState) *ExecutionState {
	return &ExecutionState{
		ExecutionID: executionID,
		Provider:    engine.ProviderKubernetes,
		WorkDir:     workDir,
		ExecutedAt:  time.Now(),
		Kubernetes:  &st,
	}
}

// NewHelmState builds a helm ExecutionState variant. Returns an error if
// ReleaseName is empty, catching the "missing required field" failure at
// construction time rather than at rollback time.
func NewHelmState(executionID, workDir string, st HelmState) (*ExecutionState, error) {
	if st.ReleaseName == "" {
		return nil, fmt.Errorf("helm execution state requires a release name")
	}
	return &ExecutionState{
		ExecutionID: executionID,
		Provider:    engine.ProviderHelm,
		WorkDir:     workDir,
		ExecutedAt:  time.Now(),
		Helm:        &st,
	}, nil
}

// RollbackOptions configures a rollback invocation.
type RollbackOptions struct {
	ExecutionID string        `json:"execution_id" binding:"required"`
	DryRun      bool          `json:"dry_run"`
	Targets     []string      `json:"targets,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
}

// RollbackAction is one reversal step taken (or synthesized, in dry-run)
// during a rollback.
type RollbackAction struct {
	Type     string `json:"type"` // restore | destroy | delete | skip | revert
	Resource string `json:"resource"`
	Success  bool   `json:"success"`
	Output   string `json:"output,omitempty"`
	Error    string `json:"error,omitempty"`
}

// RollbackStatus is the terminal status of a rollback invocation.
type RollbackStatus string

const (
	RollbackStatusCompleted RollbackStatus = "completed"
	RollbackStatusFailed    RollbackStatus = "failed"
)

// RollbackResult is the outcome of a rollback invocation.
type RollbackResult struct {
	Success           bool             `json:"success"`
	Status            RollbackStatus   `json:"status"`
	ExecutionID       string           `json:"execution_id"`
	ResourcesAffected int              `json:"resources_affected"`
	Output            string           `json:"output,omitempty"`
	Error             string           `json:"error,omitempty"`
	Duration          time.Duration    `json:"duration_ms"`
	Actions           []RollbackAction `json:"actions"`
}

// CanRollbackResult is the outcome of canRollback.
type CanRollbackResult struct {
	Available bool
	Reason    string
	State     *ExecutionState
}

// stateMetadata is the on-disk, one-file-per-execution-id JSON shape;
// ExecutedAt round-trips through an ISO-8601 string per spec.md §6.
type stateMetadata struct {
	ExecutionID string          `json:"execution_id"`
	Provider    engine.Provider `json:"provider"`
	WorkDir     string          `json:"work_dir"`
	ExecutedAt  string          `json:"executedAt"`

	Terraform  *TerraformState  `json:"terraform,omitempty"`
	Kubernetes *KubernetesState `json:"kubernetes,omitempty"`
	Helm       *HelmState       `json:"helm,omitempty"`
}

func toMetadata(s *ExecutionState) stateMetadata {
	return stateMetadata{
		ExecutionID: s.ExecutionID,
		Provider:    s.Provider,
		WorkDir:     s.WorkDir,
		ExecutedAt:  s.ExecutedAt.Format(time.RFC3339),
		Terraform:   s.Terraform,
		Kubernetes:  s.Kubernetes,
		Helm:        s.Helm,
	}
}

func fromMetadata(m stateMetadata) (*ExecutionState, error) {
	executedAt, err := time.Parse(time.RFC3339, m.ExecutedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse executedAt: %w", err)
	}
	return &ExecutionState{
		ExecutionID: m.ExecutionID,
		Provider:    m.Provider,
		WorkDir:     m.WorkDir,
		ExecutedAt:  executedAt,
		Terraform:   m.Terraform,
		Kubernetes:  m.Kubernetes,
		Helm:        m.Helm,
	}, nil
}
