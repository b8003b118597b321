// Package app owns every long-lived object of a smartbill process: stores,
// the offline queue, the connectivity monitor and the services built on them.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sangkips/smartbill/internal/application/service"
	"github.com/sangkips/smartbill/internal/config"
	"github.com/sangkips/smartbill/internal/domain/repository"
	"github.com/sangkips/smartbill/internal/infrastructure/database"
	"github.com/sangkips/smartbill/internal/infrastructure/local"
	"github.com/sangkips/smartbill/internal/infrastructure/remote"
	infraRepo "github.com/sangkips/smartbill/internal/infrastructure/repository"
	"github.com/sangkips/smartbill/internal/presentation/http/handler"
	"github.com/sangkips/smartbill/internal/presentation/http/middleware"
	"github.com/sangkips/smartbill/internal/presentation/http/routes"
	"github.com/sangkips/smartbill/pkg/printer"
	"github.com/sangkips/smartbill/pkg/utils"
	"github.com/sirupsen/logrus"
)

const (
	redisConnectAttempts = 5
	drainLockKey         = "smartbill:drain"
	shutdownTimeout      = 15 * time.Second
)

// App is the process-wide context object
type App struct {
	Config   *config.Config
	Log      *logrus.Logger
	Location *time.Location

	KV          repository.KVStore
	Remote      repository.RemoteBillStore
	Idempotency repository.IdempotencyRepository

	Queue     *service.OfflineQueue
	Monitor   *service.ConnectivityMonitor
	Sync      *service.SyncService
	Billing   *service.BillingService
	Live      *service.LiveBillService
	Mirror    *service.BillMirror
	Dashboard *service.DashboardService
	Reports   *service.ReportService
	Printer   *service.PrinterService
	Sessions  *service.SessionService

	rateLimiter *middleware.RateLimiter
	closers     []func() error
	closeOnce   sync.Once
}

// New wires the configured drivers and services. The offline queue starts
// from whatever the local store persisted; no session exists yet.
func New(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log, Location: cfg.App.Location()}

	var rdb *redis.Client
	var locker *redislock.Client
	if cfg.Redis.Enabled() {
		var err error
		rdb, locker, err = database.ConnectRedis(ctx, &cfg.Redis, redisConnectAttempts, log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
	}

	kv, err := newLocalStore(&cfg.Local, rdb)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.KV = kv
	a.closers = append(a.closers, kv.Close)

	store, err := newRemoteStore(ctx, cfg, rdb, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Remote = store
	a.closers = append(a.closers, store.Close)

	var lock service.DrainLock
	if locker != nil {
		lock = local.NewRedisDrainLock(locker, drainLockKey+":"+cfg.Billing.DeviceID, cfg.Sync.LockTTL)
	}

	a.Queue = service.NewOfflineQueue(kv, cfg.Local.QueueKey)
	a.Monitor = service.NewConnectivityMonitor(store, cfg.Sync.ProbeInterval, log)
	a.Sync = service.NewSyncService(a.Queue, store, a.Monitor, lock, cfg.Sync.WriteTimeout, cfg.Sync.HeartbeatInterval, log)
	a.Billing = service.NewBillingService(a.Queue, store, a.Monitor, cfg.Billing, cfg.Sync.WriteTimeout, log)
	a.Live = service.NewLiveBillService(store, a.Queue, log)
	a.Mirror = service.NewBillMirror(a.Live, a.Queue, log)
	a.Dashboard = service.NewDashboardService(a.Mirror, a.Location)
	a.Reports = service.NewReportService(a.Mirror, a.Location)

	p, err := printer.New(printer.Kind(cfg.Printer.Type), printerTarget(&cfg.Printer))
	if err != nil {
		config.LogError(log, "app", "New", "printer unavailable, receipts will not print", cfg.Printer.Type, err)
		p = printer.NewNullPrinter()
	}
	a.closers = append(a.closers, p.Close)
	a.Printer = service.NewPrinterService(p, cfg.Billing, cfg.Printer.Width, a.Location, log)

	jwtManager := utils.NewJWTManager(cfg.JWT.Secret, cfg.JWT.ExpiryHours)
	a.Sessions = service.NewSessionService(kv, jwtManager, log)
	if err := a.Sessions.Seed(ctx, cfg.Owner); err != nil {
		config.LogError(log, "app", "New", "seed auth setup", nil, err)
	}
	a.Idempotency = infraRepo.NewIdempotencyRepository(kv)

	a.Monitor.OnTransition(a.Sync.HandleConnectivity)
	a.Monitor.OnTransition(func(ctx context.Context, online bool) {
		if online {
			// re-subscribes when the previous stream degraded
			_ = a.Mirror.Start(ctx)
		}
	})
	a.Sync.OnProgress(func(p service.SyncProgress) {
		log.WithFields(logrus.Fields{"module": "sync", "completed": p.Completed, "total": p.Total}).Debug("sync progress")
	})

	return a, nil
}

func newLocalStore(cfg *config.LocalConfig, rdb *redis.Client) (repository.KVStore, error) {
	switch cfg.Driver {
	case "memory":
		return local.NewMemoryStore(), nil
	case "redis":
		if rdb == nil {
			return nil, errors.New("local driver redis requires REDIS_ADDRESS")
		}
		return local.NewRedisStore(rdb, "smartbill:kv:"), nil
	case "sqlite", "":
		db, err := database.NewSQLiteDB(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		store, err := local.NewSQLiteStore(db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown local driver %q", cfg.Driver)
}

func newRemoteStore(ctx context.Context, cfg *config.Config, rdb *redis.Client, log logrus.FieldLogger) (repository.RemoteBillStore, error) {
	switch cfg.Remote.Driver {
	case "memory", "":
		return remote.NewMemoryBillStore(), nil
	case "postgres":
		db, err := database.NewPostgresDB(&cfg.Database, cfg.App.Debug, log)
		if err != nil {
			return nil, err
		}
		if err := database.AutoMigrate(db); err != nil {
			return nil, err
		}
		var notifier remote.ChangeNotifier = remote.NewLocalNotifier()
		if rdb != nil {
			notifier = remote.NewRedisNotifier(rdb, cfg.Redis.Channel, log)
		}
		return remote.NewPostgresBillStore(db, notifier, cfg.Remote.PollInterval), nil
	case "firestore":
		return remote.NewFirestoreBillStore(ctx, &cfg.Firestore, log)
	}
	return nil, fmt.Errorf("unknown remote driver %q", cfg.Remote.Driver)
}

func printerTarget(cfg *config.PrinterConfig) string {
	if printer.Kind(cfg.Type) == printer.KindUSB {
		return cfg.USBPath
	}
	return cfg.Address
}

// Router builds the HTTP API over the app's services
func (a *App) Router() *gin.Engine {
	if a.rateLimiter == nil {
		a.rateLimiter = routes.NewRateLimiter(a.Config.RateLimit)
		a.closers = append(a.closers, func() error {
			a.rateLimiter.Stop()
			return nil
		})
	}
	handlers := &routes.Handlers{
		Session:   handler.NewSessionHandler(a.Sessions),
		Bill:      handler.NewBillHandler(a.Billing, a.Printer, a.Mirror, a.Location),
		Sync:      handler.NewSyncHandler(a.Sync, a.Monitor),
		Dashboard: handler.NewDashboardHandler(a.Dashboard),
		Analytics: handler.NewAnalyticsHandler(a.Reports),
		Printer:   handler.NewPrinterHandler(a.Printer),
	}
	return routes.Setup(handlers, &routes.Deps{
		Auth:            a.Sessions,
		Cfg:             a.Config,
		Log:             a.Log,
		IdempotencyRepo: a.Idempotency,
		RateLimiter:     a.rateLimiter,
	})
}

// Start runs the background loops until ctx is done: connectivity probing,
// the sync heartbeat and the live bill mirror.
func (a *App) Start(ctx context.Context) {
	if err := a.Mirror.Start(ctx); err != nil {
		config.LogError(a.Log, "app", "Start", "live bill stream degraded", nil, err)
	}
	go a.Monitor.Run(ctx)
	go a.Sync.Run(ctx)
}

// Serve starts the background loops and the HTTP server, and shuts both
// down when ctx is done.
func (a *App) Serve(ctx context.Context) error {
	a.Start(ctx)

	srv := &http.Server{
		Addr:              ":" + a.Config.App.Port,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()
	a.Log.WithFields(logrus.Fields{"module": "app", "port": a.Config.App.Port, "env": a.Config.App.Env}).
		Info("starting " + a.Config.App.Name + " server")

	select {
	case <-ctx.Done():
		// SSE streams only end once the mirror closes its listeners
		a.Mirror.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-serverErrCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Close releases every client in reverse order of creation
func (a *App) Close() {
	a.closeOnce.Do(func() {
		if a.Mirror != nil {
			a.Mirror.Stop()
		}
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				a.Log.WithField("module", "app").WithError(err).Warn("close failed")
			}
		}
	})
}
