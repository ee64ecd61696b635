package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optiinfra/iacengine/internal/logger"
)

type fakeProber struct {
	err error
}

func (f *fakeProber) Probe(ctx context.Context) error { return f.err }

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRegistry(client, logger.NewLogger())
}

func TestRegisterAdapter_SeedsUnknownStatus(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.RegisterAdapter("terraform", &fakeProber{}))

	h, err := r.GetHealth("terraform")
	require.NoError(t, err)
	assert.Equal(t, AdapterStatusUnknown, h.Status)
}

func TestCheckAll_MarksHealthyAndUnreachable(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.RegisterAdapter("terraform", &fakeProber{}))
	require.NoError(t, r.RegisterAdapter("kubernetes", &fakeProber{err: errors.New("connection refused")}))

	r.checkAll()

	healthy, err := r.GetHealth("terraform")
	require.NoError(t, err)
	assert.Equal(t, AdapterStatusHealthy, healthy.Status)
	assert.Empty(t, healthy.LastError)

	unreachable, err := r.GetHealth("kubernetes")
	require.NoError(t, err)
	assert.Equal(t, AdapterStatusUnreachable, unreachable.Status)
	assert.Equal(t, "connection refused", unreachable.LastError)
}

func TestGetAllHealth_ListsEveryRegisteredAdapter(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.RegisterAdapter("terraform", &fakeProber{}))
	require.NoError(t, r.RegisterAdapter("helm", &fakeProber{}))
	r.checkAll()

	all, err := r.GetAllHealth()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGetHealth_UnknownAdapterErrors(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.GetHealth("never-registered")
	assert.Error(t, err)
}
