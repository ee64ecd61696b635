package adapter

// PlanRequest is the body sent to a provider's /plan endpoint.
type PlanRequest struct {
	WorkDir   string                 `json:"work_dir"`
	VarFile   map[string]interface{} `json:"var_file,omitempty"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// PlanResponse is a provider's response describing a proposed change set.
type PlanResponse struct {
	PlanID      string                   `json:"plan_id"`
	ChangeCount int                      `json:"change_count"`
	Resources   []map[string]interface{} `json:"resources"`
	RawOutput   string                   `json:"raw_output,omitempty"`
}

// ApplyRequest is the body sent to a provider's /apply endpoint.
type ApplyRequest struct {
	WorkDir     string                 `json:"work_dir"`
	PlanID      string                 `json:"plan_id,omitempty"`
	ReleaseName string                 `json:"release_name,omitempty"`
	Variables   map[string]interface{} `json:"variables,omitempty"`
}

// ApplyResponse is a provider's response to an apply/deploy request.
type ApplyResponse struct {
	Success   bool                   `json:"success"`
	Outputs   map[string]interface{} `json:"outputs,omitempty"`
	RawOutput string                 `json:"raw_output,omitempty"`
}

// StateRequest asks the State adapter to read or write a state blob.
type StateRequest struct {
	WorkDir string `json:"work_dir"`
}

// StateResponse carries the current declared/actual state for a work dir.
type StateResponse struct {
	Resources []map[string]interface{} `json:"resources"`
	RawState  string                   `json:"raw_state,omitempty"`
}

// GenerateRequest asks the Generator adapter to produce IaC source.
type GenerateRequest struct {
	ComponentType string                 `json:"component_type"`
	Parameters    map[string]interface{} `json:"parameters"`
}

// GenerateResponse carries generated file contents.
type GenerateResponse struct {
	Files map[string]string `json:"files"`
}

// FSRequest asks the FS adapter to read or validate files on the remote.
type FSRequest struct {
	Path string `json:"path"`
}

// FSResponse carries file contents or validation results.
type FSResponse struct {
	Exists  bool   `json:"exists"`
	Content string `json:"content,omitempty"`
	Valid   bool   `json:"valid"`
	Errors  []string `json:"errors,omitempty"`
}

// DestroyRequest asks a provider to tear down a single resource.
type DestroyRequest struct {
	WorkDir      string `json:"work_dir"`
	ResourceAddr string `json:"resource_addr,omitempty"`
	ReleaseName  string `json:"release_name,omitempty"`
	Namespace    string `json:"namespace,omitempty"`
	Kind         string `json:"kind,omitempty"`
	Name         string `json:"name,omitempty"`
}
