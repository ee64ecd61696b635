package adapter

import "context"

// TerraformAdapter delegates plan/apply/destroy/state calls to the
// terraform tool service. It never invokes the terraform binary itself.
type TerraformAdapter struct {
	*Client
}

// NewTerraformAdapter builds a Terraform adapter over baseURL.
func NewTerraformAdapter(baseURL string) *TerraformAdapter {
	return &TerraformAdapter{Client: NewClient("terraform", baseURL)}
}

func (a *TerraformAdapter) Plan(ctx context.Context, req PlanRequest) (*PlanResponse, error) {
	var resp PlanResponse
	if err := a.doJSON(ctx, "/plan", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *TerraformAdapter) Apply(ctx context.Context, req ApplyRequest) (*ApplyResponse, error) {
	var resp ApplyResponse
	if err := a.doJSON(ctx, "/apply", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *TerraformAdapter) Destroy(ctx context.Context, req DestroyRequest) (*ApplyResponse, error) {
	var resp ApplyResponse
	if err := a.doJSON(ctx, "/destroy", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Taint marks a single resource address for forced replacement on next
// apply.
func (a *TerraformAdapter) Taint(ctx context.Context, req DestroyRequest) error {
	return a.doJSON(ctx, "/taint", req, nil)
}

func (a *TerraformAdapter) State(ctx context.Context, req StateRequest) (*StateResponse, error) {
	var resp StateResponse
	if err := a.doJSON(ctx, "/state", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Import brings an existing unmanaged resource under state management,
// used by the Drift Analyzer's "resource unmanaged" remediation action.
func (a *TerraformAdapter) Import(ctx context.Context, req DestroyRequest) error {
	return a.doJSON(ctx, "/import", req, nil)
}

// RemoveFromState drops a resource from state without destroying it,
// used by the Drift Analyzer's "resource orphaned" remediation action.
func (a *TerraformAdapter) RemoveFromState(ctx context.Context, req DestroyRequest) error {
	return a.doJSON(ctx, "/state/rm", req, nil)
}
