package server

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/nfrund/profilecard/internal/assets"
	"github.com/nfrund/profilecard/internal/config"
	"github.com/nfrund/profilecard/internal/middleware"
	"github.com/nfrund/profilecard/internal/module"
	"github.com/nfrund/profilecard/internal/registry"
	"github.com/nfrund/profilecard/internal/rendering"
	ws "github.com/nfrund/profilecard/internal/websocket"
)

// Dependencies holds everything the server wires together.
type Dependencies struct {
	Config   *config.Config
	Renderer *rendering.UniversalRenderer
	Bridge   *ws.Bridge
	Assets   *assets.Handler
	Modules  []module.Module
}

// Server holds the HTTP server and the modules mounted on it.
type Server struct {
	E        *echo.Echo
	Cfg      *config.Config
	Registry *registry.Registry

	bridge  *ws.Bridge
	assets  *assets.Handler
	modules []module.Module
	booted  []module.Module
	logger  *slog.Logger
}

// New creates a Server with the middleware chain installed.
func New(deps Dependencies) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.RequestID())
	e.Use(middleware.Logger)
	e.Use(requestLogger())
	e.Use(echomw.Recover())

	if deps.Renderer != nil {
		e.Renderer = deps.Renderer
	}
	setupErrorHandling(e)

	return &Server{
		E:        e,
		Cfg:      deps.Config,
		Registry: registry.New(deps.Config),
		bridge:   deps.Bridge,
		assets:   deps.Assets,
		modules:  deps.Modules,
		logger:   slog.Default().With("component", "server"),
	}
}

// requestLogger logs one line per request through the request-scoped logger.
func requestLogger() echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			logger := middleware.FromContext(c.Request().Context())
			if v.Error != nil {
				logger.Warn("Request failed", "status", v.Status, "latency", v.Latency, "remote_ip", v.RemoteIP, "error", v.Error)
				return nil
			}
			logger.Info("Request", "status", v.Status, "latency", v.Latency, "remote_ip", v.RemoteIP)
			return nil
		},
	})
}
