package registry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, r *Registry) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(r).RegisterRoutes(router)
	return router
}

func TestListAdapters_ReturnsCountAndEntries(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, reg.RegisterAdapter("terraform", &fakeProber{}))
	reg.checkAll()

	router := newTestRouter(t, reg)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/adapters", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)
}

func TestGetAdapter_UnknownReturns404(t *testing.T) {
	reg := newTestRegistry(t)
	router := newTestRouter(t, reg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/adapters/bogus", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetAdapter_FoundReturnsHealth(t *testing.T) {
	reg := newTestRegistry(t)
	require.NoError(t, reg.RegisterAdapter("terraform", &fakeProber{}))
	reg.checkAll()
	router := newTestRouter(t, reg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/adapters/terraform", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}
