package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	nativecommon "github.com/sunidhiii/mando-lending-borrowing-sub000/native/common"
	"github.com/sunidhiii/mando-lending-borrowing-sub000/native/fees"
	"github.com/sunidhiii/mando-lending-borrowing-sub000/native/lending"
	"github.com/sunidhiii/mando-lending-borrowing-sub000/native/oracle"
	"github.com/sunidhiii/mando-lending-borrowing-sub000/native/registry"
	"github.com/sunidhiii/mando-lending-borrowing-sub000/native/token"
	"github.com/sunidhiii/mando-lending-borrowing-sub000/observability/logging"
	"github.com/sunidhiii/mando-lending-borrowing-sub000/observability/metrics"
	"github.com/sunidhiii/mando-lending-borrowing-sub000/schedule"
	"github.com/sunidhiii/mando-lending-borrowing-sub000/services/lendingd/config"
	"github.com/sunidhiii/mando-lending-borrowing-sub000/services/lendingd/server"
	"github.com/sunidhiii/mando-lending-borrowing-sub000/storage"
)

// tokenSource resolves receipt tokens by reserve identifier.
type tokenSource map[string]*token.Token

func (ts tokenSource) ReserveToken(reserveID string) (lending.ScaledBalanceToken, error) {
	receipt, ok := ts[reserveID]
	if !ok {
		return nil, fmt.Errorf("no receipt token for reserve %q", reserveID)
	}
	return receipt, nil
}

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/lendingd/config.yaml", "path to lendingd config")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.Setup(logging.Options{
		Service:    "lendingd",
		Env:        cfg.Environment,
		FilePath:   cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	owner, err := cfg.OwnerAddress()
	if err != nil {
		log.Fatalf("owner address: %v", err)
	}
	pool, err := cfg.PoolAddress()
	if err != nil {
		log.Fatalf("pool address: %v", err)
	}

	var db storage.Database
	switch cfg.Storage.Backend {
	case "memory":
		db = storage.NewMemDB()
	default:
		db, err = storage.NewLevelDB(cfg.Storage.DataDir)
		if err != nil {
			log.Fatalf("open leveldb at %s: %v", cfg.Storage.DataDir, err)
		}
	}
	defer db.Close()

	store, err := storage.NewStateStore(db)
	if err != nil {
		log.Fatalf("open state store: %v", err)
	}

	scheduler := schedule.New(logger)
	defer scheduler.Stop()

	pauses := nativecommon.NewPauses()
	feeProvider := fees.NewProvider(owner)
	priceOracle := oracle.New(owner, scheduler, logger)

	reg := registry.New(owner)
	if err := reg.Set(owner, registry.RoleLendingPool, pool); err != nil {
		log.Fatalf("register lending pool: %v", err)
	}
	if err := reg.Set(owner, registry.RoleCore, owner); err != nil {
		log.Fatalf("register core: %v", err)
	}
	if err := reg.Set(owner, registry.RoleFeeProvider, owner); err != nil {
		log.Fatalf("register fee provider: %v", err)
	}

	engine := lending.NewEngine(owner, pool)
	engine.SetState(store)
	engine.SetPauses(pauses)
	engine.SetFeeProvider(feeProvider)
	engine.SetOracle(priceOracle)
	engine.SetRegistry(reg)
	engine.SetTimestamp(uint64(time.Now().Unix()))

	reserves, err := config.LoadReserves(cfg.ReserveParams)
	if err != nil {
		log.Fatalf("load reserve params: %v", err)
	}

	tokens := make(tokenSource, len(reserves))
	for _, rc := range reserves {
		tokens[rc.ID] = token.New(rc.ID, rc.TokenAddress, engine)
	}
	engine.SetTokenSource(tokens)

	for _, rc := range reserves {
		registered, err := store.HasReserve(rc.ID)
		if err != nil {
			log.Fatalf("check reserve %s: %v", rc.ID, err)
		}
		if !registered {
			if err := engine.InitReserve(owner, rc); err != nil {
				log.Fatalf("init reserve %s: %v", rc.ID, err)
			}
			logger.Info("reserve registered", "reserve", rc.ID)
		}
		metrics.Lending().InitReserve(rc.ID)
	}

	limiter := server.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
	api := server.New(engine, tokens, priceOracle, feeProvider, pauses, limiter, logger)
	api.SetAccountStore(store)

	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.Mount("/", api.Router())

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("lendingd listening", "component", "http", "listen", cfg.ListenAddress)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("forcing server stop", "error", err.Error())
			_ = httpServer.Close()
		}
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve http: %v", err)
		}
	}
}
