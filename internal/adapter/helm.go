package adapter

import "context"

// HelmAdapter delegates install/upgrade/rollback/uninstall calls to the
// helm tool service. It never invokes the helm binary itself.
type HelmAdapter struct {
	*Client
}

// NewHelmAdapter builds a Helm adapter over baseURL.
func NewHelmAdapter(baseURL string) *HelmAdapter {
	return &HelmAdapter{Client: NewClient("helm", baseURL)}
}

func (a *HelmAdapter) Install(ctx context.Context, req ApplyRequest) (*ApplyResponse, error) {
	var resp ApplyResponse
	if err := a.doJSON(ctx, "/install", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *HelmAdapter) Upgrade(ctx context.Context, req ApplyRequest) (*ApplyResponse, error) {
	var resp ApplyResponse
	if err := a.doJSON(ctx, "/upgrade", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Rollback reverts a release to its previous revision. ReleaseName is
// required; the Rollback Manager's HelmState construction enforces this
// before the call is ever attempted.
func (a *HelmAdapter) Rollback(ctx context.Context, req ApplyRequest) (*ApplyResponse, error) {
	var resp ApplyResponse
	if err := a.doJSON(ctx, "/rollback", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *HelmAdapter) Uninstall(ctx context.Context, req DestroyRequest) (*ApplyResponse, error) {
	var resp ApplyResponse
	if err := a.doJSON(ctx, "/uninstall", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
