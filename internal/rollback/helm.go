package rollback

import (
	"context"
	"fmt"

	"github.com/optiinfra/iacengine/internal/adapter"
)

// rollbackHelm reverts a release to previousRevision (default 0). Helm's
// ReleaseName is guaranteed non-empty by NewHelmState, so no missing-field
// check is needed here.
func (m *Manager) rollbackHelm(ctx context.Context, state *ExecutionState, opts RollbackOptions) ([]RollbackAction, error) {
	helm := state.Helm

	if opts.DryRun {
		return []RollbackAction{{
			Type:     "revert",
			Resource: helm.ReleaseName,
			Success:  true,
			Output:   fmt.Sprintf("Would revert release %s to revision %d", helm.ReleaseName, helm.PreviousRevision),
		}}, nil
	}

	if m.helm == nil {
		return []RollbackAction{{Type: "revert", Resource: helm.ReleaseName, Success: false, Error: "helm adapter not configured"}}, nil
	}

	resp, err := m.helm.Rollback(ctx, adapter.ApplyRequest{
		WorkDir:     state.WorkDir,
		ReleaseName: helm.ReleaseName,
		Variables: map[string]interface{}{
			"namespace":         helm.Namespace,
			"previous_revision": helm.PreviousRevision,
		},
	})
	if err != nil {
		return []RollbackAction{{Type: "revert", Resource: helm.ReleaseName, Success: false, Error: err.Error()}}, nil
	}
	return []RollbackAction{{Type: "revert", Resource: helm.ReleaseName, Success: resp.Success, Output: resp.RawOutput}}, nil
}
