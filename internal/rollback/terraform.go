package rollback

import (
	"context"
	"fmt"

	"github.com/optiinfra/iacengine/internal/adapter"
)

// rollbackTerraform implements a three-tier fallback: when a backup exists
// it runs terraform apply in the working directory (the backed-up state is
// not uploaded to the adapter first; only Apply is called), targeted
// destroy when a deployed-resources list exists, else a full destroy.
func (m *Manager) rollbackTerraform(ctx context.Context, state *ExecutionState, opts RollbackOptions) ([]RollbackAction, error) {
	tf := state.Terraform

	switch {
	case tf.PreviousState != "" && tf.BackupPath != "":
		return []RollbackAction{m.restoreTerraformState(ctx, state, opts)}, nil

	case len(tf.DeployedResources) > 0:
		actions := make([]RollbackAction, 0, len(tf.DeployedResources))
		for _, addr := range tf.DeployedResources {
			actions = append(actions, m.destroyTerraformResource(ctx, state, addr, opts))
		}
		return actions, nil

	default:
		return []RollbackAction{m.destroyTerraformResource(ctx, state, "all", opts)}, nil
	}
}

func (m *Manager) restoreTerraformState(ctx context.Context, state *ExecutionState, opts RollbackOptions) RollbackAction {
	if opts.DryRun {
		return RollbackAction{Type: "restore", Resource: state.Terraform.BackupPath, Success: true, Output: fmt.Sprintf("Would restore state from %s and apply", state.Terraform.BackupPath)}
	}
	if m.terraform == nil {
		return RollbackAction{Type: "restore", Resource: state.Terraform.BackupPath, Success: false, Error: "terraform adapter not configured"}
	}

	resp, err := m.terraform.Apply(ctx, adapter.ApplyRequest{WorkDir: state.WorkDir})
	if err != nil {
		return RollbackAction{Type: "restore", Resource: state.Terraform.BackupPath, Success: false, Error: err.Error()}
	}
	return RollbackAction{Type: "restore", Resource: state.Terraform.BackupPath, Success: resp.Success, Output: resp.RawOutput}
}

func (m *Manager) destroyTerraformResource(ctx context.Context, state *ExecutionState, addr string, opts RollbackOptions) RollbackAction {
	if opts.DryRun {
		return RollbackAction{Type: "destroy", Resource: addr, Success: true, Output: fmt.Sprintf("Would destroy %s", addr)}
	}
	if m.terraform == nil {
		return RollbackAction{Type: "destroy", Resource: addr, Success: false, Error: "terraform adapter not configured"}
	}

	resourceAddr := addr
	if addr == "all" {
		resourceAddr = ""
	}
	resp, err := m.terraform.Destroy(ctx, adapter.DestroyRequest{WorkDir: state.WorkDir, ResourceAddr: resourceAddr})
	if err != nil {
		return RollbackAction{Type: "destroy", Resource: addr, Success: false, Error: err.Error()}
	}
	return RollbackAction{Type: "destroy", Resource: addr, Success: resp.Success, Output: resp.RawOutput}
}
