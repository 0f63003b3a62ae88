package fx

import (
	"context"
	"database/sql"
	"net/http"

	"matchcore/internal/api"
	"matchcore/internal/bus"
	"matchcore/internal/config"
	"matchcore/internal/database"
	"matchcore/internal/events"
	"matchcore/internal/logger"
	"matchcore/internal/metrics"
	"matchcore/internal/outbox"
	"matchcore/internal/repository"
	"matchcore/internal/server"
	"matchcore/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// Core is shared by every component: store, bus, outbox relay and metrics.
var Core = fx.Options(
	logger.Module,
	config.Module,
	fx.Provide(database.New),
	fx.Provide(repository.ProvideQueries),
	// repos
	fx.Provide(repository.NewPlayerRepository),
	fx.Provide(repository.NewQueueRepository),
	fx.Provide(repository.NewMatchRepository),
	fx.Provide(repository.NewServerRepository),
	fx.Provide(repository.NewWalletRepository),
	fx.Provide(repository.NewAnomalyRepository),
	fx.Provide(repository.NewSettlementRepository),
	fx.Provide(repository.NewOutboxRepository),
	// transport
	fx.Provide(metrics.New),
	fx.Provide(bus.New),
	fx.Provide(newRelay),
	fx.Invoke(registerStore, registerBus, registerRelay),
)

var Matchmaker = fx.Options(
	fx.Provide(service.NewMatchmaker),
	fx.Provide(service.NewQueueService),
	fx.Provide(asRoutes(server.NewQueueRoutes)),
	fx.Invoke(registerMatchmaker),
)

var Provisioner = fx.Options(
	fx.Provide(fx.Annotate(api.NewComputeClient, fx.As(new(service.ComputeProvider)))),
	fx.Provide(service.NewCoordinator),
	fx.Provide(asRoutes(server.NewProvisioningRoutes)),
	fx.Invoke(registerCoordinator),
)

var Settlement = fx.Options(
	fx.Provide(service.NewPipeline),
	fx.Provide(service.NewReporter),
	fx.Provide(service.NewPlayerService),
	fx.Provide(asRoutes(server.NewSettlementRoutes)),
	fx.Invoke(registerPipeline),
)

var AntiCheat = fx.Options(
	fx.Provide(service.NewAntiCheat),
	fx.Provide(asRoutes(server.NewAntiCheatRoutes)),
)

// HTTP must come after the component modules so it stops first.
var HTTP = fx.Options(
	fx.Provide(newRouter),
	fx.Provide(server.NewHTTPServer),
	fx.Invoke(registerHTTP),
)

func asRoutes(f any) any {
	return fx.Annotate(f, fx.As(new(server.Routes)), fx.ResultTags(`group:"routes"`))
}

type routerParams struct {
	fx.In

	Config  *config.Config
	DB      *sql.DB
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
	Routes  []server.Routes `group:"routes"`
}

func newRouter(p routerParams) http.Handler {
	ping := func(ctx context.Context) error { return database.Ping(ctx, p.DB) }
	return server.NewRouter(p.Config.ServiceName, ping, p.Metrics, p.Logger, p.Routes)
}

func newRelay(cfg *config.Config, repo *repository.OutboxRepository, b bus.Bus, m *metrics.Metrics, logger zerolog.Logger) *outbox.Relay {
	return outbox.NewRelay(repo, b, m, cfg.OutboxInterval, logger)
}

func registerStore(lc fx.Lifecycle, db *sql.DB, logger zerolog.Logger) {
	lc.Append(fx.StopHook(func() {
		if err := db.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing database connection")
		}
	}))
}

func registerBus(lc fx.Lifecycle, b bus.Bus) {
	lc.Append(fx.Hook{
		OnStart: b.Start,
		OnStop: func(context.Context) error {
			b.Stop()
			return nil
		},
	})
}

func registerRelay(lc fx.Lifecycle, r *outbox.Relay) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			r.Start(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			r.Stop()
			return nil
		},
	})
}

func registerMatchmaker(lc fx.Lifecycle, mm *service.Matchmaker) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			mm.Start(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			mm.Stop()
			return nil
		},
	})
}

// registerCoordinator subscribes the coordinator before the bus starts and
// runs its timeout sweeper.
func registerCoordinator(lc fx.Lifecycle, b bus.Bus, c *service.Coordinator) error {
	h := bus.VisitorHandler(c)
	for _, t := range []events.Type{events.TypeSpawnRequested, events.TypeServerSpawned} {
		if err := b.Subscribe(t, h); err != nil {
			return err
		}
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			c.Start(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			c.Stop()
			return nil
		},
	})
	return nil
}

func registerPipeline(b bus.Bus, p *service.Pipeline) error {
	h := bus.VisitorHandler(p)
	for _, t := range []events.Type{events.TypeMatchCompleted, events.TypeUserLogin} {
		if err := b.Subscribe(t, h); err != nil {
			return err
		}
	}
	return nil
}

func registerHTTP(lc fx.Lifecycle, srv *server.HTTPServer) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			srv.Start()
			return nil
		},
		OnStop: srv.Stop,
	})
}
