package adapter

import "context"

// StateAdapter delegates declared-vs-actual state reads to the state tool
// service, used by the Drift Detector to pull both sides of a comparison
// without reading terraform.tfstate or talking to the cluster directly.
type StateAdapter struct {
	*Client
}

// NewStateAdapter builds a State adapter over baseURL.
func NewStateAdapter(baseURL string) *StateAdapter {
	return &StateAdapter{Client: NewClient("state", baseURL)}
}

// Declared returns the resources as declared in source (terraform config,
// kubernetes manifests, or a helm chart's rendered templates).
func (a *StateAdapter) Declared(ctx context.Context, req StateRequest) (*StateResponse, error) {
	var resp StateResponse
	if err := a.doJSON(ctx, "/declared", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Actual returns the resources as they currently exist in the target
// environment (terraform refresh, cluster read, or helm release status).
func (a *StateAdapter) Actual(ctx context.Context, req StateRequest) (*StateResponse, error) {
	var resp StateResponse
	if err := a.doJSON(ctx, "/actual", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
