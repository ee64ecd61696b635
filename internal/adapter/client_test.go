package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbe_HealthyServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient("test", srv.URL)
	assert.NoError(t, c.Probe(context.Background()))
}

func TestProbe_UnhealthyServerReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient("test", srv.URL)
	assert.Error(t, c.Probe(context.Background()))
}

func TestTerraformAdapter_Plan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/plan", r.URL.Path)
		var req PlanRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "/tmp/work", req.WorkDir)

		json.NewEncoder(w).Encode(PlanResponse{PlanID: "plan-123", ChangeCount: 2})
	}))
	defer srv.Close()

	a := NewTerraformAdapter(srv.URL)
	resp, err := a.Plan(context.Background(), PlanRequest{WorkDir: "/tmp/work"})
	require.NoError(t, err)
	assert.Equal(t, "plan-123", resp.PlanID)
	assert.Equal(t, 2, resp.ChangeCount)
}

func TestTerraformAdapter_ApplyFailureStatusPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	a := NewTerraformAdapter(srv.URL)
	_, err := a.Apply(context.Background(), ApplyRequest{WorkDir: "/tmp/work"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestKubernetesAdapter_Delete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/delete", r.URL.Path)
		json.NewEncoder(w).Encode(ApplyResponse{Success: true})
	}))
	defer srv.Close()

	a := NewKubernetesAdapter(srv.URL)
	resp, err := a.Delete(context.Background(), DestroyRequest{Namespace: "default", Kind: "Deployment", Name: "web"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestHelmAdapter_Rollback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rollback", r.URL.Path)
		json.NewEncoder(w).Encode(ApplyResponse{Success: true})
	}))
	defer srv.Close()

	a := NewHelmAdapter(srv.URL)
	resp, err := a.Rollback(context.Background(), ApplyRequest{ReleaseName: "myapp"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestGeneratorAdapter_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/generate", r.URL.Path)
		json.NewEncoder(w).Encode(GenerateResponse{Files: map[string]string{"main.tf": "resource ..."}})
	}))
	defer srv.Close()

	a := NewGeneratorAdapter(srv.URL)
	resp, err := a.Generate(context.Background(), GenerateRequest{ComponentType: "vpc"})
	require.NoError(t, err)
	assert.Equal(t, "resource ...", resp.Files["main.tf"])
}

func TestStateAdapter_DeclaredAndActual(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/declared", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(StateResponse{Resources: []map[string]interface{}{{"id": "a"}}})
	})
	mux.HandleFunc("/actual", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(StateResponse{Resources: []map[string]interface{}{{"id": "a"}, {"id": "b"}}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := NewStateAdapter(srv.URL)
	declared, err := a.Declared(context.Background(), StateRequest{WorkDir: "/tmp"})
	require.NoError(t, err)
	assert.Len(t, declared.Resources, 1)

	actual, err := a.Actual(context.Background(), StateRequest{WorkDir: "/tmp"})
	require.NoError(t, err)
	assert.Len(t, actual.Resources, 2)
}

func TestFSAdapter_Validate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/validate", r.URL.Path)
		json.NewEncoder(w).Encode(FSResponse{Valid: false, Errors: []string{"missing required field"}})
	}))
	defer srv.Close()

	a := NewFSAdapter(srv.URL)
	resp, err := a.Validate(context.Background(), FSRequest{Path: "main.tf"})
	require.NoError(t, err)
	assert.False(t, resp.Valid)
	assert.Contains(t, resp.Errors, "missing required field")
}
