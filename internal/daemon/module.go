package daemon

import (
	"context"

	"github.com/matheus3301/clinicsync/internal/api"
	"github.com/matheus3301/clinicsync/internal/bus"
	"github.com/matheus3301/clinicsync/internal/config"
	"github.com/matheus3301/clinicsync/internal/gateway"
	"github.com/matheus3301/clinicsync/internal/lock"
	"github.com/matheus3301/clinicsync/internal/logging"
	"github.com/matheus3301/clinicsync/internal/metrics"
	"github.com/matheus3301/clinicsync/internal/outbox"
	"github.com/matheus3301/clinicsync/internal/session"
	"github.com/matheus3301/clinicsync/internal/state"
	"github.com/matheus3301/clinicsync/internal/status"
	"github.com/matheus3301/clinicsync/internal/store"
	intsync "github.com/matheus3301/clinicsync/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string // optional override for testing; empty = use default
	ConfigPath  string // optional override; empty = ~/.clinicsync/config.toml
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideMetrics,
			provideLock,
			provideStore,
			provideGateway,
			provideReconciler,
			provideQueue,
			provideRunner,
			provideState,
			provideScheduler,
			NewController,
			provideControlService,
			provideMetricsServer,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = session.ConfigPath()
	}
	return config.LoadOrDefault(path)
}

func provideLogger(p Params) (*zap.Logger, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideMetrics() *metrics.Metrics {
	return metrics.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName), p.SessionName)
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideStore takes the lock so the database is only opened by its owner.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath(p.SessionName)
	db, result, err := store.OpenMigrated(dbPath)
	if err != nil {
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideGateway(cfg *config.Config, db *store.DB, machine *status.Machine, logger *zap.Logger) (*gateway.Client, error) {
	gw, err := gateway.New(cfg.Server.BaseURL, cfg.Server.RequestTimeout.Duration, db, logger)
	if err != nil {
		return nil, err
	}
	gw.OnReachability(machine.MarkReachable)
	return gw, nil
}

func provideReconciler(db *store.DB, logger *zap.Logger) *intsync.Reconciler {
	return intsync.NewReconciler(db, logger)
}

func provideQueue(cfg *config.Config, db *store.DB, gw *gateway.Client, machine *status.Machine, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *outbox.Queue {
	return outbox.NewQueue(db, gw, machine, b, m, logger, cfg.Sync.OutboxRetryInterval.Duration)
}

func provideRunner(q *outbox.Queue, logger *zap.Logger) *outbox.Runner {
	return outbox.NewRunner(q, logger)
}

func provideState(runner *outbox.Runner, gw *gateway.Client, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *state.Store {
	st := state.NewStore(state.NewReducer(), runner, b, m, logger)
	st.OnScopeChange(gw.SetScope)
	return st
}

func provideScheduler(cfg *config.Config, gw *gateway.Client, st *state.Store, recon *intsync.Reconciler, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *intsync.Scheduler {
	return intsync.New(gw, st, recon, b, m, logger, intsync.Config{
		GeneralInterval: cfg.Sync.GeneralInterval.Duration,
		ChatInterval:    cfg.Sync.ChatInterval.Duration,
		PullTimeout:     cfg.Server.RequestTimeout.Duration,
	})
}

func provideControlService(p Params, machine *status.Machine, st *state.Store, q *outbox.Queue, sched *intsync.Scheduler, recon *intsync.Reconciler, ctrl *Controller) *api.ControlService {
	return api.NewControlService(p.SessionName, machine, st, q, sched, recon, ctrl)
}

// provideMetricsServer returns nil when the endpoint is disabled.
func provideMetricsServer(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (*metrics.Server, error) {
	if cfg.Metrics.Listen == "" {
		return nil, nil
	}
	return metrics.Listen(cfg.Metrics.Listen, m, logger)
}

type lifecycleParams struct {
	fx.In

	Server     *Server
	Lock       *lock.Lock
	DB         *store.DB
	Queue      *outbox.Queue
	Runner     *outbox.Runner
	Controller *Controller
	Metrics    *metrics.Server
	Logger     *zap.Logger
}

func registerLifecycle(lc fx.Lifecycle, lp lifecycleParams) {
	logger := lp.Logger
	// Canceled on stop; the fx start context only bounds OnStart itself.
	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			lp.Runner.Start(runCtx)
			lp.Queue.Start(runCtx)

			go func() {
				if err := lp.Server.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()
			if lp.Metrics != nil {
				go lp.Metrics.Serve()
			}

			return lp.Controller.Resume()
		},
		OnStop: func(ctx context.Context) error {
			lp.Server.Stop(ctx)
			err := lp.Controller.Stop()
			// Persists effects not yet handed to the queue.
			lp.Runner.Stop()
			lp.Queue.Stop()
			cancel()
			if lp.Metrics != nil {
				err = multierr.Append(err, lp.Metrics.Shutdown(ctx))
			}
			err = multierr.Append(err, lp.DB.Close())
			err = multierr.Append(err, lp.Lock.Release())
			if err != nil {
				logger.Warn("errors during shutdown", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return err
		},
	})
}
