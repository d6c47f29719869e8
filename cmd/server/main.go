package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/valeevte/OfferBooth/internal/config"
	"github.com/valeevte/OfferBooth/internal/database"
	"github.com/valeevte/OfferBooth/internal/history"
	"github.com/valeevte/OfferBooth/internal/logger"
	"github.com/valeevte/OfferBooth/internal/offers"
	"github.com/valeevte/OfferBooth/internal/offersapi"
	"github.com/valeevte/OfferBooth/internal/products"
	"github.com/valeevte/OfferBooth/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "./config/config.yaml", "path to config.yaml (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	for _, w := range cfg.Warnings {
		log.Warn("config", zap.String("warning", w))
	}

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (products.Store, func(), error) {
	switch cfg.Database.Driver {
	case database.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg.DB(), log)
		if err != nil {
			return nil, nil, err
		}
		return products.NewSQLiteRepository(db, log), func() { db.Close() }, nil
	default:
		pool, err := database.Connect(ctx, cfg.DB(), log)
		if err != nil {
			return nil, nil, err
		}
		return products.NewRepository(pool, log), pool.Close, nil
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	// graceful shutdown coordination
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer closeStore()

	doer, err := offersapi.BuildTransport(offersapi.TransportOptions{
		HTTPClient:        offersapi.NewHTTPClient(cfg.OffersTimeout()),
		RequestsPerSecond: cfg.Offers.RequestsPerSecond,
	})
	if err != nil {
		return fmt.Errorf("build transport: %w", err)
	}
	client := offersapi.NewClient(doer, cfg.Offers.BaseURL, log)
	session := offersapi.NewSession(client, cfg.Offers.RefreshToken, cfg.Offers.AccessToken, log)
	remote := offersapi.NewService(client, session)

	sched := scheduler.New(scheduler.Config{
		SyncIntervalSeconds:    cfg.Scheduler.SyncIntervalSeconds,
		HistoryIntervalSeconds: cfg.Scheduler.HistoryIntervalSeconds,
	},
		offers.NewReconciler(store, remote, log),
		history.NewAggregator(store, cfg.Scheduler.MaxPriceRecords, log),
		log,
	)

	wg := &sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Run(ctx)
	}()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), logger.GinMiddleware(log))
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	h := products.NewHandler(products.NewService(store, remote, log), log)
	h.Routes(r.Group("/api"))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err = <-errCh:
		stop()
	}

	// stop accepting new requests, allow 15s to finish
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Error("server shutdown", zap.Error(serr))
	}

	// wait for the scheduler to finish its current cycle
	wg.Wait()

	log.Info("graceful shutdown complete")
	return err
}
