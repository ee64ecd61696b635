package registry

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP handlers for adapter health.
type Handler struct {
	registry *Registry
}

// NewHandler creates a new registry handler.
func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// RegisterRoutes registers all adapter health routes.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	adapters := router.Group("/adapters")
	{
		adapters.GET("", h.List)
		adapters.GET("/:name", h.Get)
	}
}

// List returns the health of every registered adapter.
func (h *Handler) List(c *gin.Context) {
	health, err := h.registry.GetAllHealth()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, AdapterHealthListResponse{
		Adapters: convertToHealthSlice(health),
		Count:    len(health),
	})
}

// Get returns the health of a single adapter.
func (h *Handler) Get(c *gin.Context) {
	name := c.Param("name")

	health, err := h.registry.GetHealth(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "adapter not found"})
		return
	}

	c.JSON(http.StatusOK, health)
}

func convertToHealthSlice(health []*AdapterHealth) []AdapterHealth {
	result := make([]AdapterHealth, len(health))
	for i, h := range health {
		result[i] = *h
	}
	return result
}
