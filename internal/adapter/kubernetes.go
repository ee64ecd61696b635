package adapter

import "context"

// KubernetesAdapter delegates apply/delete/state calls to the kubernetes
// tool service. It never shells out to kubectl itself.
type KubernetesAdapter struct {
	*Client
}

// NewKubernetesAdapter builds a Kubernetes adapter over baseURL.
func NewKubernetesAdapter(baseURL string) *KubernetesAdapter {
	return &KubernetesAdapter{Client: NewClient("kubernetes", baseURL)}
}

func (a *KubernetesAdapter) Apply(ctx context.Context, req ApplyRequest) (*ApplyResponse, error) {
	var resp ApplyResponse
	if err := a.doJSON(ctx, "/apply", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Delete removes a single namespaced resource. A not-found response is
// returned as an error like any other failed call; the Rollback Manager
// records it as a failed action.
func (a *KubernetesAdapter) Delete(ctx context.Context, req DestroyRequest) (*ApplyResponse, error) {
	var resp ApplyResponse
	if err := a.doJSON(ctx, "/delete", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *KubernetesAdapter) State(ctx context.Context, req StateRequest) (*StateResponse, error) {
	var resp StateResponse
	if err := a.doJSON(ctx, "/state", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
