package assets

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nfrund/profilecard/internal/domain"
	"github.com/nfrund/profilecard/internal/middleware"
)

// Handler serves assets from a Store.
type Handler struct {
	store *Store
}

// NewHandler creates a new Handler.
func NewHandler(s *Store) *Handler {
	return &Handler{store: s}
}

// Serve streams the asset named by the wildcard path parameter.
func (h *Handler) Serve(c echo.Context) error {
	ctx := c.Request().Context()
	name := c.Param("*")

	f, info, err := h.store.Get(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "asset not found")
		}
		middleware.FromContext(ctx).Error("Failed to open asset", "path", name, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to open asset")
	}
	defer f.Close()

	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=86400")
	http.ServeContent(c.Response(), c.Request(), info.Name(), info.ModTime(), f)
	return nil
}
