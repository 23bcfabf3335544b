package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/dspconsole/internal/domain/pipeline"
	"github.com/GriffinCanCode/dspconsole/internal/domain/registry"
	"github.com/GriffinCanCode/dspconsole/internal/shared/types"
)

const (
	serviceName = "dspconsole"
	version     = "0.1.0"
)

// Handlers contains the read-only status handlers
type Handlers struct {
	console *pipeline.Console
	driver  *pipeline.Driver
}

// NewHandlers creates a new handler set. driver may be nil in headless tests.
func NewHandlers(console *pipeline.Console, driver *pipeline.Driver) *Handlers {
	return &Handlers{
		console: console,
		driver:  driver,
	}
}

// Root identifies the service
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": serviceName,
		"version": version,
	})
}

// Health reports driver state and component counts
func (h *Handlers) Health(c *gin.Context) {
	state := pipeline.StateStopped
	if h.driver != nil {
		state = h.driver.State()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"driver":   state.String(),
		"source":   h.console.Source.Name(),
		"buffer":   h.console.Ring.Stats(),
		"registry": h.console.Registry.Stats(),
	})
}

// Status returns the full console status
func (h *Handlers) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.console.Status())
}

// ListRegistry lists registered components, optionally of one kind
func (h *Handlers) ListRegistry(c *gin.Context) {
	kinds := registry.Kinds
	if raw := c.Query("kind"); raw != "" {
		kind, err := registry.ParseKind(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		kinds = []registry.Kind{kind}
	}

	entries := make([]registry.Entry, 0, h.console.Registry.Len())
	for _, kind := range kinds {
		entries = append(entries, h.console.Registry.Entries(kind)...)
	}
	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"stats":   h.console.Registry.Stats(),
	})
}

// ListFilters lists the chain in application order and the available kinds
func (h *Handlers) ListFilters(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"filters": h.console.Chain.List(),
		"kinds":   h.console.Chain.Factory().Kinds(),
	})
}

// ListDisplays lists attached displays with their feeds and views
func (h *Handlers) ListDisplays(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"displays": h.console.Displays.List(),
		"policy":   h.console.Displays.Policy(),
	})
}

// GetPlot returns the last plot rendered by a display
func (h *Handlers) GetPlot(c *gin.Context) {
	name := c.Param("name")
	d, handle, err := h.console.Displays.Find(name)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, types.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	plot := d.Snapshot()
	plot.Handle = handle.String()
	c.JSON(http.StatusOK, plot)
}
