package health

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nfrund/profilecard/internal/module"
	"github.com/nfrund/profilecard/internal/modules/profilecard"
	"github.com/nfrund/profilecard/internal/registry"
)

// ViewerCounter reports live viewer connections.
type ViewerCounter interface {
	ViewerCount() int
}

// Status is the body of GET /health.
type Status struct {
	Status        string `json:"status"`
	ProfileLoaded bool   `json:"profile_loaded"`
	Presence      bool   `json:"presence_received"`
	Viewers       int    `json:"viewers"`
}

// Module exposes a liveness endpoint.
type Module struct {
	module.BaseModule
	viewers ViewerCounter
}

// New creates the module. viewers may be nil.
func New(viewers ViewerCounter) *Module {
	return &Module{viewers: viewers}
}

func (m *Module) Name() string {
	return "health"
}

// Boot mounts GET /health. The card fields are filled only when the card
// module registered its state.
func (m *Module) Boot(ctx context.Context, g *echo.Group, reg *registry.Registry) error {
	g.GET("/health", func(c echo.Context) error {
		status := Status{Status: "ok"}
		if state, ok := registry.Get(reg, profilecard.KeyState); ok {
			status.ProfileLoaded = state.Loaded()
			status.Presence = state.HasSnapshot()
		}
		if m.viewers != nil {
			status.Viewers = m.viewers.ViewerCount()
		}
		return c.JSON(http.StatusOK, status)
	})
	return nil
}
