package rollback

import (
	"context"
	"fmt"

	"github.com/optiinfra/iacengine/internal/adapter"
)

// rollbackKubernetes deletes each deployed resource, skipping entries not
// named in opts.Targets when that optional allow-list is present. A
// per-resource failure is recorded in-situ; the overall rollback still
// reports success=(failedActionCount==0) per spec.md §4.3.
func (m *Manager) rollbackKubernetes(ctx context.Context, state *ExecutionState, opts RollbackOptions) ([]RollbackAction, error) {
	k8s := state.Kubernetes
	targets := toSet(opts.Targets)

	actions := make([]RollbackAction, 0, len(k8s.DeployedResources))
	for _, resource := range k8s.DeployedResources {
		if len(targets) > 0 && !targets[resource] {
			actions = append(actions, RollbackAction{Type: "skip", Resource: resource, Success: true})
			continue
		}
		actions = append(actions, m.deleteKubernetesResource(ctx, state, resource, opts))
	}
	return actions, nil
}

func (m *Manager) deleteKubernetesResource(ctx context.Context, state *ExecutionState, resource string, opts RollbackOptions) RollbackAction {
	if opts.DryRun {
		return RollbackAction{Type: "delete", Resource: resource, Success: true, Output: fmt.Sprintf("Would delete %s", resource)}
	}
	if m.kubernetes == nil {
		return RollbackAction{Type: "delete", Resource: resource, Success: false, Error: "kubernetes adapter not configured"}
	}

	resp, err := m.kubernetes.Delete(ctx, adapter.DestroyRequest{
		WorkDir:   state.WorkDir,
		Namespace: state.Kubernetes.Namespace,
		Name:      resource,
	})
	if err != nil {
		return RollbackAction{Type: "delete", Resource: resource, Success: false, Error: err.Error()}
	}
	return RollbackAction{Type: "delete", Resource: resource, Success: resp.Success, Output: resp.RawOutput}
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, i := range items {
		set[i] = true
	}
	return set
}
