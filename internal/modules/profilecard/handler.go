package profilecard

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/nfrund/profilecard/internal/card"
	"github.com/nfrund/profilecard/internal/rendering"
	"github.com/nfrund/profilecard/internal/view"
)

// Handler serves the card page and its JSON views.
type Handler struct {
	state    *card.State
	renderer rendering.Renderer
	userID   string
	now      func() time.Time
}

// NewHandler creates a new Handler.
func NewHandler(state *card.State, renderer rendering.Renderer, userID string) *Handler {
	return &Handler{
		state:    state,
		renderer: renderer,
		userID:   userID,
		now:      time.Now,
	}
}

// Page renders the full card.
func (h *Handler) Page(c echo.Context) error {
	return h.renderer.RenderPage(c, http.StatusOK, view.Page(h.state.View(h.now())))
}

// Card returns the whole card as JSON.
func (h *Handler) Card(c echo.Context) error {
	return c.JSON(http.StatusOK, h.state.View(h.now()))
}

// Profile returns the formatted profile, or 503 while it is unavailable.
func (h *Handler) Profile(c echo.Context) error {
	p, ok := h.state.Profile()
	if !ok {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"loaded": false,
			"error":  "profile not loaded",
		})
	}
	return c.JSON(http.StatusOK, p)
}

// Presence returns the derived presence with elapsed texts as of now.
func (h *Handler) Presence(c echo.Context) error {
	return c.JSON(http.StatusOK, h.state.Presence(h.now()))
}

// Message redirects to the owner's Discord profile where a DM can be opened.
func (h *Handler) Message(c echo.Context) error {
	return c.Redirect(http.StatusFound, card.MessageURL(h.userID))
}
