package app

import (
	"context"

	"github.com/samber/do/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/nfrund/profilecard/internal/assets"
	"github.com/nfrund/profilecard/internal/config"
	"github.com/nfrund/profilecard/internal/discordapi"
	"github.com/nfrund/profilecard/internal/lanyard"
	"github.com/nfrund/profilecard/internal/module"
	"github.com/nfrund/profilecard/internal/modules/health"
	"github.com/nfrund/profilecard/internal/modules/profilecard"
	"github.com/nfrund/profilecard/internal/pubsub"
	"github.com/nfrund/profilecard/internal/rendering"
	"github.com/nfrund/profilecard/internal/server"
	ws "github.com/nfrund/profilecard/internal/websocket"
	"github.com/nfrund/profilecard/web"
)

// Tracing is the tracer used for bus spans and its exporter shutdown.
type Tracing struct {
	Tracer   trace.Tracer
	Shutdown func(context.Context)
}

// NewInjector registers every service provider. Services are built lazily
// on first invocation.
func NewInjector(cfg *config.Config) do.Injector {
	i := do.New()

	do.ProvideValue(i, cfg)
	do.Provide(i, provideTracing)
	do.Provide(i, provideBus)
	do.Provide(i, provideRenderer)
	do.Provide(i, provideBridge)
	do.Provide(i, provideAssets)
	do.Provide(i, provideProfileClient)
	do.Provide(i, providePresenceClient)
	do.Provide(i, provideModules)
	do.Provide(i, provideServer)

	return i
}

func provideTracing(i do.Injector) (*Tracing, error) {
	cfg := do.MustInvoke[*config.Config](i)
	tracer, shutdown, err := pubsub.SetupOTel(context.Background(), pubsub.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		ZipkinURL:   cfg.Tracing.ZipkinURL,
	})
	if err != nil {
		return nil, err
	}
	return &Tracing{Tracer: tracer, Shutdown: shutdown}, nil
}

func provideBus(i do.Injector) (*pubsub.WatermillBridge, error) {
	tracing := do.MustInvoke[*Tracing](i)
	return pubsub.NewWatermillBridge(pubsub.WithTracer(tracing.Tracer)), nil
}

func provideRenderer(i do.Injector) (*rendering.UniversalRenderer, error) {
	return rendering.NewUniversalRenderer(), nil
}

func provideBridge(i do.Injector) (*ws.Bridge, error) {
	cfg := do.MustInvoke[*config.Config](i)
	bus := do.MustInvoke[*pubsub.WatermillBridge](i)
	return ws.NewBridge(bus, ws.WithOriginPatterns(cfg.AllowedOrigins...)), nil
}

func provideAssets(i do.Injector) (*assets.Handler, error) {
	cfg := do.MustInvoke[*config.Config](i)
	if cfg.StaticDir != "" {
		return assets.NewHandler(assets.NewDirStore(cfg.StaticDir)), nil
	}
	store, err := assets.NewEmbeddedStore(web.FS, "static")
	if err != nil {
		return nil, err
	}
	return assets.NewHandler(store), nil
}

func provideProfileClient(i do.Injector) (*discordapi.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return discordapi.NewClient(cfg.ProfileAPIURL), nil
}

func providePresenceClient(i do.Injector) (*lanyard.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return lanyard.NewClient(cfg.DiscordUserID,
		lanyard.WithSocketURL(cfg.LanyardSocketURL),
		lanyard.WithAPIURL(cfg.LanyardAPIURL),
	), nil
}

func provideModules(i do.Injector) ([]module.Module, error) {
	bus := do.MustInvoke[*pubsub.WatermillBridge](i)
	bridge := do.MustInvoke[*ws.Bridge](i)

	return []module.Module{
		profilecard.New(profilecard.Dependencies{
			Publisher:  bus,
			Subscriber: bus,
			Renderer:   do.MustInvoke[*rendering.UniversalRenderer](i),
			Bridge:     bridge,
			Fetcher:    do.MustInvoke[*discordapi.Client](i),
			Feed:       do.MustInvoke[*lanyard.Client](i),
		}),
		health.New(bridge),
	}, nil
}

func provideServer(i do.Injector) (*server.Server, error) {
	return server.New(server.Dependencies{
		Config:   do.MustInvoke[*config.Config](i),
		Renderer: do.MustInvoke[*rendering.UniversalRenderer](i),
		Bridge:   do.MustInvoke[*ws.Bridge](i),
		Assets:   do.MustInvoke[*assets.Handler](i),
		Modules:  do.MustInvoke[[]module.Module](i),
	}), nil
}
