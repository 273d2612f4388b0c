package daemon

import (
	"context"

	"github.com/matheus3301/wgram/internal/api"
	"github.com/matheus3301/wgram/internal/auth"
	"github.com/matheus3301/wgram/internal/backend"
	"github.com/matheus3301/wgram/internal/bus"
	"github.com/matheus3301/wgram/internal/chats"
	"github.com/matheus3301/wgram/internal/config"
	"github.com/matheus3301/wgram/internal/history"
	"github.com/matheus3301/wgram/internal/lock"
	"github.com/matheus3301/wgram/internal/logging"
	"github.com/matheus3301/wgram/internal/notify"
	"github.com/matheus3301/wgram/internal/session"
	"github.com/matheus3301/wgram/internal/store"
	"github.com/matheus3301/wgram/internal/users"
	"github.com/matheus3301/wgram/internal/wa"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string // optional override for testing; empty = use default
	Config      *config.Config
}

func (p Params) config() *config.Config {
	if p.Config == nil {
		return config.Default()
	}
	return p.Config
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideAdapter,
			provideBackend,
			provideEngine,
			provideChats,
			provideHistory,
			provideUsers,
			provideNotify,
			provideAuthenticator,
			provideService,
			provideRelay,
			NewWarmup,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName, p.config().LogLevel)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName), p.config().Backend)
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideStore depends on the lock so two daemons never migrate the same file.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.StoreDBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
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

// provideAdapter returns nil for the loopback backend.
func provideAdapter(p Params, _ *lock.Lock, b *bus.Bus, logger *zap.Logger) (*wa.Adapter, error) {
	if p.config().Backend == config.BackendLoopback {
		return nil, nil
	}
	return wa.NewAdapter(context.Background(), session.DeviceDBPath(p.SessionName), b, logger.Named("wa"))
}

func provideBackend(db *store.DB, adapter *wa.Adapter, logger *zap.Logger) *backend.Local {
	if adapter == nil {
		return backend.New(db, nil, nil, logger.Named("backend"))
	}
	return backend.New(db, adapter, adapter, logger.Named("backend"))
}

func provideEngine(l *backend.Local, b *bus.Bus, logger *zap.Logger) *backend.Engine {
	return backend.NewEngine(l, b, logger.Named("engine"))
}

func provideChats(l *backend.Local, logger *zap.Logger) *chats.Projection {
	return chats.New(l, logger.Named("chats"))
}

func provideHistory(p Params, l *backend.Local, logger *zap.Logger) *history.Cache {
	return history.New(l, logger.Named("history"), p.config().History.PageSize)
}

func provideUsers(l *backend.Local) *users.Directory {
	return users.New(l)
}

func provideNotify(l *backend.Local, proj *chats.Projection, dir *users.Directory, b *bus.Bus, logger *zap.Logger) *notify.Aggregator {
	return notify.New(l, proj, dir, notify.NewBusPresenter(b, logger.Named("notify")), logger.Named("notify"))
}

func provideAuthenticator(l *backend.Local, b *bus.Bus, logger *zap.Logger) *auth.Authenticator {
	return auth.NewAuthenticator(l, auth.NewMachine(b), logger.Named("auth"))
}

func provideService(
	p Params,
	l *backend.Local,
	proj *chats.Projection,
	hist *history.Cache,
	agg *notify.Aggregator,
	authn *auth.Authenticator,
	dir *users.Directory,
	adapter *wa.Adapter,
	b *bus.Bus,
	logger *zap.Logger,
) *api.Service {
	c := api.Components{
		Client:  l,
		Chats:   proj,
		History: hist,
		Notify:  agg,
		Auth:    authn,
		Users:   dir,
	}
	if adapter != nil {
		c.PhoneNumber = adapter.PhoneNumber
	}
	return api.NewService(p.SessionName, p.config().Backend, c, b, logger.Named("api"))
}

func provideRelay(proj *chats.Projection, hist *history.Cache, b *bus.Bus) *api.Relay {
	return api.NewRelay(proj, hist, b)
}

// components groups everything the lifecycle hook starts and stops.
type components struct {
	fx.In

	Server  *Server
	Lock    *lock.Lock
	DB      *store.DB
	Adapter *wa.Adapter
	Backend *backend.Local
	Engine  *backend.Engine
	Chats   *chats.Projection
	History *history.Cache
	Users   *users.Directory
	Notify  *notify.Aggregator
	Auth    *auth.Authenticator
	Relay   *api.Relay
	Warmup  *Warmup
	Params  Params
	Logger  *zap.Logger
}

func registerLifecycle(lc fx.Lifecycle, c components) {
	ctx, cancel := context.WithCancel(context.Background())
	logger := c.Logger
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Projections subscribe before the backend announces its state.
			c.Chats.Start(ctx)
			c.History.Start(ctx)
			c.Users.Start(ctx)
			c.Notify.Start(ctx)
			if err := c.Backend.Start(ctx); err != nil {
				return err
			}
			c.Auth.Start(ctx)
			c.Engine.Start(ctx)
			c.Relay.Start(ctx)

			if n := c.Params.config().Notifications.GroupCountMax; n > 0 {
				if err := c.Notify.Configure(ctx, n); err != nil {
					logger.Warn("failed to configure notifications", zap.Error(err))
				}
			}
			c.Warmup.Start(ctx)

			// Start gRPC server in background.
			go func() {
				if err := c.Server.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			if c.Adapter != nil && c.Adapter.IsLoggedIn() {
				go func() {
					if err := c.Adapter.Connect(); err != nil {
						logger.Error("auto-connect failed", zap.Error(err))
					}
				}()
			} else if c.Adapter != nil {
				logger.Info("no credentials found, auth required")
			}
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			c.Server.Stop(stopCtx)
			c.Warmup.Stop()
			c.Relay.Stop()
			c.Engine.Stop()
			if c.Adapter != nil {
				c.Adapter.Disconnect()
			}
			c.Auth.Stop()
			c.Backend.Stop()
			c.Notify.Stop()
			c.Users.Stop()
			c.History.Stop()
			c.Chats.Stop()
			cancel()
			if err := c.DB.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := c.Lock.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
