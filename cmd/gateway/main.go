package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"lnurl-gateway/config"
	"lnurl-gateway/internal/auth"
	"lnurl-gateway/internal/backoff"
	"lnurl-gateway/internal/database"
	"lnurl-gateway/internal/discovery"
	"lnurl-gateway/internal/fleet"
	"lnurl-gateway/internal/httpapi"
	"lnurl-gateway/internal/invoice"
	"lnurl-gateway/internal/lnurlproto"
	"lnurl-gateway/internal/metrics"
	"lnurl-gateway/internal/offer"
	"lnurl-gateway/internal/pool"
	"lnurl-gateway/internal/pool/cln"
	"lnurl-gateway/internal/pool/lnd"
	"lnurl-gateway/internal/pool/remotehttp"
	"lnurl-gateway/internal/selection"
	"lnurl-gateway/pkg/cache"
	"lnurl-gateway/pkg/logger"
	streams "lnurl-gateway/pkg/queue"

	"github.com/jinzhu/copier"
	"go.uber.org/zap"
)

var Cfg config.GatewayConfig

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := logger.Init(logger.GetEnv()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	_, filename, _, _ := runtime.Caller(0)
	root := filepath.Dir(filepath.Dir(filepath.Dir(filename)))
	configPath := config.Path(root).Join("config.toml")

	if err := config.Load(configPath, &Cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("Starting lnurl-gateway...")

	var redisCfg cache.Config
	if err := copier.Copy(&redisCfg, &Cfg.Redis); err != nil {
		return fmt.Errorf("failed to copy cache config: %w", err)
	}
	if err := cache.Init(redisCfg); err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer cache.Close()
	events := streams.NewStreamQueue(cache.Client)

	var dbCfg database.Config
	if err := copier.Copy(&dbCfg, &Cfg.Database); err != nil {
		return fmt.Errorf("failed to copy database config: %w", err)
	}
	db, err := database.NewDB(dbCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database connection: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	masterKey, err := os.ReadFile(Cfg.Crypto.MasterKeyPath)
	if err != nil {
		return fmt.Errorf("failed to read master key: %w", err)
	}

	discoveryStore := discovery.NewPostgresStore(db.Pool())
	offerStore := offer.NewPostgresStore(db.Pool())
	offerProvider := offer.NewDBProvider(offerStore, offerStore, lnurlproto.MetadataEncoder{})

	nodePool := pool.New(masterKey, cln.Dial, lnd.Dial, remotehttp.Dial)
	theFleet := fleet.New()
	adapter := fleet.NewAdapter(theFleet, discoveryStore, nodePool, Cfg.Fleet.Partitions, logger.Component("fleet"))

	metricsCache := metrics.New(nodePool, theFleet, logger.Component("metrics"))

	policy, err := buildPolicy(Cfg.Selection.Policy, Cfg.Selection.ConsistentHashMaxIterations)
	if err != nil {
		return fmt.Errorf("failed to build selection policy: %w", err)
	}
	engine := selection.New(policy, metricsCache)

	bo := backoff.Exponential(backoff.ExponentialConfig{
		InitialInterval:     time.Duration(Cfg.Backoff.InitialIntervalMillis) * time.Millisecond,
		MaxInterval:         time.Duration(Cfg.Backoff.MaxIntervalSeconds) * time.Second,
		Multiplier:          Cfg.Backoff.Multiplier,
		RandomizationFactor: Cfg.Backoff.RandomizationFactor,
		MaxElapsedTime:      time.Duration(Cfg.Backoff.MaxElapsedSeconds) * time.Second,
	})

	orch := invoice.New(theFleet, engine, nodePool, bo, offerProvider, events, Cfg.Selection.CapacityBiasPercent, logger.Component("invoice"))
	orch.SetRefreshHooks(adapter.Reconcile, func(refreshCtx context.Context) { metricsCache.Refresh(refreshCtx) })
	orch.SetPartitions(Cfg.Fleet.Partitions)

	verifier, err := buildVerifier(Cfg.Auth.Algorithm, Cfg.Auth.PublicKeyPath)
	if err != nil {
		return fmt.Errorf("failed to build auth verifier: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pollInterval := time.Duration(Cfg.Fleet.DiscoveryPollIntervalSeconds) * time.Second
	if err := adapter.Reconcile(ctx); err != nil {
		logger.Warn("initial discovery reconcile failed", zap.Error(err))
	}
	go adapter.Run(ctx, pollInterval)

	metricsInterval := time.Duration(Cfg.Fleet.MetricsRefreshIntervalSeconds) * time.Second
	metricsCache.Refresh(ctx)
	go metricsCache.Run(ctx, metricsInterval)

	publicMux := http.NewServeMux()
	lnurlHandler := httpapi.NewLNURLHandler(offerProvider, orch, engine, theFleet, Cfg.HTTP.MaxCommentLength, Cfg.Fleet.Partitions, logger.Component("lnurl"))
	lnurlHandler.Register(publicMux)
	publicServer := &http.Server{Addr: Cfg.HTTP.BindAddress, Handler: publicMux}

	rateLimited := chainMiddleware(
		httpapi.RateLimit(cacheRateCounter{}, Cfg.RateLimit.MaxRequests, time.Duration(Cfg.RateLimit.WindowSeconds)*time.Second, logger.Component("admin-ratelimit")),
		verifier.Middleware,
	)

	adminMux := http.NewServeMux()
	discoveryHandler := httpapi.NewDiscoveryHandler(discoveryStore, masterKey, logger.Component("discovery-admin"))
	discoveryHandler.Register(adminMux, rateLimited)
	offerHandler := httpapi.NewOfferAdminHandler(offerStore, offerStore, logger.Component("offer-admin"))
	offerHandler.Register(adminMux, rateLimited)
	adminServer := &http.Server{Addr: Cfg.HTTP.AdminBindAddress, Handler: adminMux}

	go func() {
		logger.Info("public LNURL-Pay server listening", zap.String("address", Cfg.HTTP.BindAddress))
		if err := publicServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("public server failed", zap.Error(err))
		}
	}()
	go func() {
		logger.Info("admin server listening", zap.String("address", Cfg.HTTP.AdminBindAddress))
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := publicServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("public server shutdown error", zap.Error(err))
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("admin server shutdown error", zap.Error(err))
	}

	logger.Info("lnurl-gateway shut down gracefully")
	return nil
}

// cacheRateCounter adapts pkg/cache's package-level Redis primitives to
// httpapi.RateCounter.
type cacheRateCounter struct{}

func (cacheRateCounter) Incr(ctx context.Context, key string) (int64, error) {
	return cache.Incr(ctx, key)
}

func (cacheRateCounter) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return cache.Expire(ctx, key, expiration)
}

// chainMiddleware composes middleware outside-in: the first argument runs
// first and wraps everything after it.
func chainMiddleware(mws ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

func buildPolicy(policyName string, consistentHashMaxIterations int) (selection.Policy, error) {
	switch policyName {
	case "round_robin":
		return selection.NewRoundRobin(), nil
	case "weighted_random":
		return selection.NewRandom(), nil
	case "consistent_hash":
		return selection.NewConsistentHash(consistentHashMaxIterations), nil
	default:
		return nil, fmt.Errorf("unknown selection policy %q", policyName)
	}
}

func buildVerifier(algorithm, publicKeyPath string) (*auth.Verifier, error) {
	raw, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading auth public key: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %s", publicKeyPath)
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing auth public key: %w", err)
	}

	switch algorithm {
	case "es256":
		ecKey, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("public key at %s is not an ECDSA key", publicKeyPath)
		}
		return auth.NewES256Verifier(ecKey), nil
	case "eddsa":
		edKey, ok := pub.(ed25519.PublicKey)
		if !ok {
			return nil, fmt.Errorf("public key at %s is not an Ed25519 key", publicKeyPath)
		}
		return auth.NewEdDSAVerifier(edKey), nil
	default:
		return nil, fmt.Errorf("unknown auth algorithm %q", algorithm)
	}
}
