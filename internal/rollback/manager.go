package rollback

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/optiinfra/iacengine/internal/adapter"
	"github.com/optiinfra/iacengine/internal/engine"
	"github.com/optiinfra/iacengine/internal/logger"
	"github.com/optiinfra/iacengine/internal/metrics"
)

// Manager captures pre-execution state and performs best-effort,
// provider-specific reversal. Matches the teacher's registry.Registry
// shape: an in-memory map guarded by a RWMutex backed by durable storage —
// here, one JSON file per execution id on disk instead of Redis, per
// spec.md §4.3's "persisted as both an in-memory map and one file per
// execution-id" contract.
type Manager struct {
	mu         sync.RWMutex
	stateStore map[string]*ExecutionState

	backupDir string
	log       *logger.Logger
	metrics   *metrics.Metrics

	terraform  *adapter.TerraformAdapter
	kubernetes *adapter.KubernetesAdapter
	helm       *adapter.HelmAdapter
}

// NewManager builds a Rollback Manager persisting metadata under backupDir.
// m may be nil in tests that don't care about metrics.
func NewManager(backupDir string, terraform *adapter.TerraformAdapter, kubernetes *adapter.KubernetesAdapter, helm *adapter.HelmAdapter, log *logger.Logger, m *metrics.Metrics) *Manager {
	return &Manager{
		stateStore: make(map[string]*ExecutionState),
		backupDir:  backupDir,
		log:        log,
		metrics:    m,
		terraform:  terraform,
		kubernetes: kubernetes,
		helm:       helm,
	}
}

func (m *Manager) recordRollback(provider engine.Provider, success bool, seconds float64) {
	if m.metrics == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.metrics.RecordRollback(string(provider), outcome, seconds)
}

// SaveExecutionState persists state to memory and to the one-file-per-
// execution-id store. For provider=terraform it writes a caller-supplied
// PreviousState to a backup file and sets BackupPath. The current state
// file is not fetched here: with an empty PreviousState no backup is made
// and BackupPath stays empty. A failed backup write is logged as a warning
// and the save still succeeds.
func (m *Manager) SaveExecutionState(ctx context.Context, state *ExecutionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state.Provider == engine.ProviderTerraform && state.Terraform != nil {
		if err := m.backupTerraformState(ctx, state); err != nil {
			m.log.Warnw("failed to back up terraform state", "execution_id", state.ExecutionID, "error", err)
		}
	}

	m.stateStore[state.ExecutionID] = state

	if err := m.writeMetadata(state); err != nil {
		return fmt.Errorf("failed to persist execution state %s: %w", state.ExecutionID, err)
	}
	return nil
}

// GetExecutionState looks up memory first, falling back to on-disk
// metadata and re-hydrating timestamps.
func (m *Manager) GetExecutionState(executionID string) (*ExecutionState, error) {
	m.mu.RLock()
	if s, ok := m.stateStore[executionID]; ok {
		m.mu.RUnlock()
		return s, nil
	}
	m.mu.RUnlock()

	state, err := m.readMetadata(executionID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.stateStore[executionID] = state
	m.mu.Unlock()
	return state, nil
}

// CanRollback reports whether a rollback is available for an execution id.
func (m *Manager) CanRollback(executionID string) CanRollbackResult {
	state, err := m.GetExecutionState(executionID)
	if err != nil {
		return CanRollbackResult{Available: false, Reason: err.Error()}
	}
	return CanRollbackResult{Available: true, State: state}
}

// Rollback executes a reversal for an execution id, dispatching to the
// provider-specific strategy.
func (m *Manager) Rollback(ctx context.Context, opts RollbackOptions) *RollbackResult {
	startedAt := time.Now()
	state, err := m.GetExecutionState(opts.ExecutionID)
	if err != nil {
		return &RollbackResult{
			Success: false, Status: RollbackStatusFailed,
			ExecutionID: opts.ExecutionID, Error: err.Error(),
			Duration: time.Since(startedAt),
		}
	}

	var actions []RollbackAction
	switch {
	case state.Terraform != nil:
		actions, err = m.rollbackTerraform(ctx, state, opts)
	case state.Kubernetes != nil:
		actions, err = m.rollbackKubernetes(ctx, state, opts)
	case state.Helm != nil:
		actions, err = m.rollbackHelm(ctx, state, opts)
	default:
		err = fmt.Errorf("unsupported provider: %s", state.Provider)
	}

	if err != nil {
		m.recordRollback(state.Provider, false, time.Since(startedAt).Seconds())
		return &RollbackResult{
			Success: false, Status: RollbackStatusFailed,
			ExecutionID: opts.ExecutionID, Error: err.Error(),
			Duration: time.Since(startedAt), Actions: actions,
		}
	}

	failedCount := 0
	affected := 0
	for _, a := range actions {
		if !a.Success {
			failedCount++
		}
		if a.Type != "skip" {
			affected++
		}
	}

	m.recordRollback(state.Provider, failedCount == 0, time.Since(startedAt).Seconds())

	return &RollbackResult{
		Success:           failedCount == 0,
		Status:            statusFor(failedCount == 0),
		ExecutionID:       opts.ExecutionID,
		ResourcesAffected: affected,
		Duration:          time.Since(startedAt),
		Actions:           actions,
	}
}

func statusFor(success bool) RollbackStatus {
	if success {
		return RollbackStatusCompleted
	}
	return RollbackStatusFailed
}

// ListRollbackStates returns every known state sorted by executed-at
// descending.
func (m *Manager) ListRollbackStates() []*ExecutionState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make([]*ExecutionState, 0, len(m.stateStore))
	for _, s := range m.stateStore {
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].ExecutedAt.After(states[j].ExecutedAt) })
	return states
}

// CleanupOldStates deletes metadata and backup files older than maxAge,
// returning the count removed.
func (m *Manager) CleanupOldStates(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, s := range m.stateStore {
		if s.ExecutedAt.Before(cutoff) {
			delete(m.stateStore, id)
			os.Remove(m.metadataPath(id))
			os.Remove(m.backupPath(id))
			removed++
		}
	}
	return removed
}

func (m *Manager) writeMetadata(state *ExecutionState) error {
	if err := os.MkdirAll(m.backupDir, 0o755); err != nil {
		return fmt.Errorf("failed to create backup dir: %w", err)
	}
	data, err := json.Marshal(toMetadata(state))
	if err != nil {
		return fmt.Errorf("failed to marshal execution state: %w", err)
	}
	return os.WriteFile(m.metadataPath(state.ExecutionID), data, 0o644)
}

func (m *Manager) readMetadata(executionID string) (*ExecutionState, error) {
	data, err := os.ReadFile(m.metadataPath(executionID))
	if err != nil {
		return nil, fmt.Errorf("execution state not found: %s", executionID)
	}
	var meta stateMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution state: %w", err)
	}
	return fromMetadata(meta)
}

func (m *Manager) metadataPath(executionID string) string {
	return filepath.Join(m.backupDir, executionID+".json")
}

func (m *Manager) backupPath(executionID string) string {
	return filepath.Join(m.backupDir, executionID+".tfstate")
}

func (m *Manager) backupTerraformState(ctx context.Context, state *ExecutionState) error {
	if state.Terraform.PreviousState == "" {
		return nil
	}
	if err := os.MkdirAll(m.backupDir, 0o755); err != nil {
		return err
	}
	path := m.backupPath(state.ExecutionID)
	if err := os.WriteFile(path, []byte(state.Terraform.PreviousState), 0o644); err != nil {
		return err
	}
	state.Terraform.BackupPath = path
	return nil
}
