package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/nfrund/profilecard/internal/config"
	"github.com/nfrund/profilecard/internal/pubsub"
	"github.com/nfrund/profilecard/internal/server"
)

// Run wires the service from cfg and serves until ctx is canceled.
func Run(ctx context.Context, cfg *config.Config) error {
	i := NewInjector(cfg)

	srv, err := do.Invoke[*server.Server](i)
	if err != nil {
		return fmt.Errorf("wire server: %w", err)
	}
	defer closeAll(i)

	if err := srv.RegisterRoutes(ctx); err != nil {
		return err
	}
	return srv.Start(ctx)
}

// closeAll releases the bus and flushes traces.
func closeAll(i do.Injector) {
	if bus, err := do.Invoke[*pubsub.WatermillBridge](i); err == nil {
		if err := bus.Close(); err != nil {
			slog.Error("Failed to close message bus", "error", err)
		}
	}
	if tracing, err := do.Invoke[*Tracing](i); err == nil {
		tracing.Shutdown(context.Background())
	}
}
