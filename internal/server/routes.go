package server

import (
	"context"
	"fmt"

	ws "github.com/nfrund/profilecard/internal/websocket"
)

// RegisterRoutes mounts the framework routes and then registers and boots
// every module in order. ctx bounds the modules' background work.
func (s *Server) RegisterRoutes(ctx context.Context) error {
	if s.assets != nil {
		s.E.GET("/assets/*", s.assets.Serve)
	}
	if s.bridge != nil {
		s.E.GET("/ws", s.bridge.Handler(ws.ConnectionTypeHTML))
		s.E.GET("/ws/data", s.bridge.Handler(ws.ConnectionTypeData))
	}

	for _, m := range s.modules {
		if err := m.Register(s.Registry); err != nil {
			return fmt.Errorf("register module %s: %w", m.Name(), err)
		}
	}

	root := s.E.Group("")
	for _, m := range s.modules {
		s.logger.Info("Booting module", "module", m.Name())
		if err := m.Boot(ctx, root, s.Registry); err != nil {
			return fmt.Errorf("boot module %s: %w", m.Name(), err)
		}
		s.booted = append(s.booted, m)
	}
	return nil
}
