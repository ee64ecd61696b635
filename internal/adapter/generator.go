package adapter

import "context"

// GeneratorAdapter delegates IaC source generation to the generator tool
// service, used by the executor's generate_component and
// apply_best_practices actions.
type GeneratorAdapter struct {
	*Client
}

// NewGeneratorAdapter builds a Generator adapter over baseURL.
func NewGeneratorAdapter(baseURL string) *GeneratorAdapter {
	return &GeneratorAdapter{Client: NewClient("generator", baseURL)}
}

func (a *GeneratorAdapter) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	var resp GenerateResponse
	if err := a.doJSON(ctx, "/generate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ApplyBestPractices runs a generated component back through the
// generator's lint/fixup pass.
func (a *GeneratorAdapter) ApplyBestPractices(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	var resp GenerateResponse
	if err := a.doJSON(ctx, "/best-practices", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
