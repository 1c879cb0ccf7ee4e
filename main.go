package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/middleware"

	"github.com/hurrypos/floor/internal/floor"
	"github.com/hurrypos/floor/internal/mongo"
	"github.com/hurrypos/floor/pkg"
)

const (
	appNamespace = "FLOOR"
	appName      = "floor"
	appVersion   = "0.1.0"
)

func main() {
	config, err := aqm.LoadConfig(appNamespace, os.Args[1:])
	if err != nil {
		log.Fatalf("%s(%s) cannot setup: %v", appName, appVersion, err)
	}

	logLevel, _ := config.GetString("log.level")
	logger := aqm.NewLogger(logLevel)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	tenantID := config.GetStringOrDef("tenant.id", "default")

	// Durable cache: mongo when configured, in-memory otherwise.
	var cache floor.TenantScopedCache
	var baseRepo *mongo.BaseRepo
	if mongoURL, _ := config.GetString("db.mongo.url"); mongoURL != "" {
		baseRepo = mongo.NewBaseRepo(config, logger)
		if err := baseRepo.Start(ctx); err != nil {
			log.Fatalf("%s(%s) cannot start base repository: %v", appName, appVersion, err)
		}
		if baseRepo.GetDatabase() == nil {
			log.Fatalf("%s(%s) cannot initialize repository database: %v", appName, appVersion, errors.New("repository database is nil"))
		}
		cache = mongo.NewSnapshotRepo(baseRepo)
	} else {
		logger.Info("no mongo configured, using in-memory cache")
		cache = floor.NewMemoryCache()
	}

	ordersURL, _ := config.GetString("services.orders.url")
	if ordersURL == "" {
		log.Fatalf("%s(%s) cannot setup: services.orders.url is required", appName, appVersion)
	}
	ordersClient := aqm.NewServiceClient(ordersURL)
	ordersDA := floor.NewOrderDataAccess(ordersClient)
	productsDA := floor.NewProductDataAccess(ordersClient)

	tablesURL := config.GetStringOrDef("services.tables.url", ordersURL)
	tablesClient := aqm.NewServiceClient(tablesURL)
	tablesDA := floor.NewTableDataAccess(tablesClient)

	broadcaster := floor.NewBroadcaster(logger)
	store := floor.NewStore(floor.StoreOptions{
		Data:   ordersDA,
		Cache:  cache,
		Tenant: tenantID,
		Logger: logger,
		OnChange: func(snap floor.Snapshot) {
			broadcaster.Publish(floor.TableChangeEvent{
				Event:      "tables_changed",
				Generation: snap.Generation,
				Hydrated:   snap.Hydrated,
				TableCount: len(snap.Orders),
			})
		},
	})

	scheduler := floor.NewRunLoopScheduler()
	prep := floor.NewPrepTracker(nil)

	natsURL := config.GetStringOrDef("nats.url", "nats://localhost:4222")
	sub, err := pkg.NewNATSSubscriber(natsURL)
	if err != nil {
		log.Fatalf("%s(%s) cannot connect to NATS subscriber: %v", appName, appVersion, err)
	}

	reconciler := floor.NewPatchReconciler(floor.PatchReconcilerOptions{
		Store:      store,
		Subscriber: sub,
		Scheduler:  scheduler,
		Logger:     logger,
	})

	handler := floor.NewHandler(floor.HandlerOptions{
		Store:       store,
		Builder:     floor.NewModelBuilder(nil),
		Grid:        floor.NewGridLayout(0, 1),
		Prep:        prep,
		Broadcaster: broadcaster,
		Scheduler:   scheduler,
		Orders:      ordersDA,
		Tables:      tablesDA,
		Logger:      logger,
	})

	refreshInterval := 30 * time.Second
	if raw := config.GetStringOrDef("refresh.interval", ""); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			refreshInterval = parsed
		}
	}

	var cancelTick, cancelRefresh func()
	bootLifecycle := aqm.LifecycleHooks{
		OnStart: func(ctx context.Context) error {
			store.Prime(ctx)
			if err := reconciler.Start(ctx); err != nil {
				return err
			}
			go func() {
				if err := store.Refresh(ctx, floor.RefreshOptions{}); err != nil {
					logger.Error("initial refresh failed", "error", err)
				}
				if prepTimes, err := productsDA.ListProductPrepTimes(ctx); err != nil {
					logger.Error("cannot load product prep times", "error", err)
				} else {
					prep.SetProductPrepTimes(prepTimes)
				}
			}()
			// Display tick: moves clocks only, never fetches.
			cancelTick = scheduler.ScheduleInterval(time.Second, func(context.Context) {
				prep.Tick(store.Snapshot())
			})
			cancelRefresh = scheduler.ScheduleInterval(refreshInterval, func(ctx context.Context) {
				if err := store.Refresh(ctx, floor.RefreshOptions{}); err != nil {
					logger.Error("periodic refresh failed", "error", err)
				}
			})
			return nil
		},
		OnStop: func(context.Context) error {
			if cancelTick != nil {
				cancelTick()
			}
			if cancelRefresh != nil {
				cancelRefresh()
			}
			scheduler.Stop()
			return sub.Close()
		},
	}

	lifecycles := []interface{}{bootLifecycle}
	if baseRepo != nil {
		lifecycles = append(lifecycles, aqm.LifecycleHooks{OnStop: baseRepo.Stop})
	}

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      logger,
		DisableCORS: false,
	})

	options := []aqm.Option{
		aqm.WithConfig(config),
		aqm.WithLogger(logger),
		aqm.WithHTTPMiddleware(stack...),
		aqm.WithHTTPServerModules("web.port", handler),
		aqm.WithLifecycle(lifecycles...),
		aqm.WithHealthChecks(appName),
	}

	ms := aqm.NewMicro(options...)
	logger.Infof("Starting %s(%s)", appName, appVersion)

	if err := ms.Run(ctx); err != nil {
		if baseRepo != nil {
			_ = baseRepo.Stop(context.Background())
		}
		log.Fatalf("%s(%s) stopped: %v", appName, appVersion, err)
	}

	logger.Infof("%s(%s) stopped", appName, appVersion)
}
