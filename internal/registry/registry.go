// Package registry tracks the health of the Tool Adapter Clients:
// periodic probing of each adapter's /health endpoint, with results
// persisted to Redis with a TTL so a stopped engine process doesn't leave
// stale "healthy" entries behind. Adapted from the teacher's agent
// registry (internal/registry/registry.go), which tracked remediation
// agent heartbeats the same way.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/optiinfra/iacengine/internal/logger"
)

const (
	adapterKeyPrefix     = "adapter:"
	activeAdaptersSetKey = "adapters:active"

	adapterTTL          = 60 * time.Second
	healthCheckInterval = 30 * time.Second
)

// Prober is the subset of adapter.Client every Tool Adapter Client
// exposes via embedding.
type Prober interface {
	Probe(ctx context.Context) error
}

// Registry polls a fixed set of tool adapters and persists their health.
type Registry struct {
	redis *redis.Client
	ctx   context.Context
	log   *logger.Logger

	mu      sync.RWMutex
	probers map[string]Prober
	stopCh  chan struct{}
}

// NewRegistry creates an adapter health registry.
func NewRegistry(redisClient *redis.Client, log *logger.Logger) *Registry {
	return &Registry{
		redis:   redisClient,
		ctx:     context.Background(),
		log:     log,
		probers: make(map[string]Prober),
		stopCh:  make(chan struct{}),
	}
}

// RegisterAdapter adds an adapter to the set that gets health-checked.
func (r *Registry) RegisterAdapter(name string, p Prober) error {
	r.mu.Lock()
	r.probers[name] = p
	r.mu.Unlock()

	if err := r.redis.SAdd(r.ctx, activeAdaptersSetKey, name).Err(); err != nil {
		return fmt.Errorf("failed to register adapter %s: %w", name, err)
	}
	r.storeHealth(name, AdapterHealth{Name: name, Status: AdapterStatusUnknown, LastChecked: time.Now()})
	return nil
}

// Start begins the periodic health-check goroutine.
func (r *Registry) Start() {
	go r.healthMonitor()
	r.log.Info("adapter health registry started")
}

// Stop stops the health-check goroutine.
func (r *Registry) Stop() {
	close(r.stopCh)
	r.log.Info("adapter health registry stopped")
}

// GetHealth retrieves the last known health of a single adapter.
func (r *Registry) GetHealth(name string) (*AdapterHealth, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getHealth(name)
}

// GetAllHealth retrieves the last known health of every registered adapter.
func (r *Registry) GetAllHealth() ([]*AdapterHealth, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names, err := r.redis.SMembers(r.ctx, activeAdaptersSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list active adapters: %w", err)
	}

	all := make([]*AdapterHealth, 0, len(names))
	for _, name := range names {
		h, err := r.getHealth(name)
		if err != nil {
			r.log.Warnw("failed to read adapter health", "adapter", name, "error", err)
			continue
		}
		all = append(all, h)
	}
	return all, nil
}

func (r *Registry) storeHealth(name string, h AdapterHealth) {
	data, err := json.Marshal(h)
	if err != nil {
		r.log.Warnw("failed to marshal adapter health", "adapter", name, "error", err)
		return
	}
	if err := r.redis.Set(r.ctx, adapterKey(name), data, adapterTTL).Err(); err != nil {
		r.log.Warnw("failed to persist adapter health", "adapter", name, "error", err)
	}
}

func (r *Registry) getHealth(name string) (*AdapterHealth, error) {
	data, err := r.redis.Get(r.ctx, adapterKey(name)).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("adapter %s health not found", name)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read adapter health: %w", err)
	}

	var h AdapterHealth
	if err := json.Unmarshal([]byte(data), &h); err != nil {
		return nil, fmt.Errorf("failed to unmarshal adapter health: %w", err)
	}
	return &h, nil
}

func adapterKey(name string) string {
	return adapterKeyPrefix + name
}

func (r *Registry) healthMonitor() {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	r.checkAll()
	for {
		select {
		case <-ticker.C:
			r.checkAll()
		case <-r.stopCh:
			return
		}
	}
}

func (r *Registry) checkAll() {
	r.mu.RLock()
	snapshot := make(map[string]Prober, len(r.probers))
	for name, p := range r.probers {
		snapshot[name] = p
	}
	r.mu.RUnlock()

	for name, p := range snapshot {
		h := AdapterHealth{Name: name, LastChecked: time.Now(), Status: AdapterStatusHealthy}
		if err := p.Probe(r.ctx); err != nil {
			h.Status = AdapterStatusUnreachable
			h.LastError = err.Error()
			r.log.Warnw("adapter probe failed", "adapter", name, "error", err)
		}
		r.storeHealth(name, h)
	}
}
