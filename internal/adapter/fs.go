package adapter

import "context"

// FSAdapter delegates file read/validate calls to the filesystem tool
// service, giving the engine a view of generated/working directories
// without local filesystem access of its own.
type FSAdapter struct {
	*Client
}

// NewFSAdapter builds an FS adapter over baseURL.
func NewFSAdapter(baseURL string) *FSAdapter {
	return &FSAdapter{Client: NewClient("fs", baseURL)}
}

func (a *FSAdapter) Read(ctx context.Context, req FSRequest) (*FSResponse, error) {
	var resp FSResponse
	if err := a.doJSON(ctx, "/read", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *FSAdapter) Validate(ctx context.Context, req FSRequest) (*FSResponse, error) {
	var resp FSResponse
	if err := a.doJSON(ctx, "/validate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
