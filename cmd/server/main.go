// main wires the engine's collaborators from configuration and runs the HTTP
// server. Business logic lives in the internal packages; this file only
// constructs, connects and shuts down.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"memberhub/internal/domaingraph"
	domaingraphmetrics "memberhub/internal/domaingraph/metrics"
	"memberhub/internal/engine"
	enginemetrics "memberhub/internal/engine/metrics"
	"memberhub/internal/identity"
	identitymetrics "memberhub/internal/identity/metrics"
	"memberhub/internal/metasync"
	metasyncmetrics "memberhub/internal/metasync/metrics"
	"memberhub/internal/platform/config"
	"memberhub/internal/platform/httpserver"
	"memberhub/internal/platform/logger"
	platformredis "memberhub/internal/platform/redis"
	"memberhub/internal/profile"
	"memberhub/internal/provider"
	"memberhub/internal/recordstore"
	"memberhub/internal/token"
	tokenmetrics "memberhub/internal/token/metrics"
	httptransport "memberhub/internal/transport/http"
	"memberhub/pkg/platform/audit"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(logger.ParseLevel(cfg.LogLevel))

	ctx := context.Background()

	providerClient := provider.NewHTTPClient(cfg.Provider, &http.Client{Timeout: 10 * time.Second})

	tokens, err := token.New(providerClient,
		token.WithLogger(log),
		token.WithMetrics(tokenmetrics.New()),
	)
	if err != nil {
		log.Error("token cache init failed", "error", err)
		os.Exit(1)
	}

	var publisher audit.Publisher = audit.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		sampler := audit.NewSampler(1.0)
		sampler.SetRate(audit.ActionProfileViewed, 0.1)
		kafkaPublisher, err := audit.NewKafkaPublisher(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic,
			audit.WithLogger(log),
			audit.WithMetrics(audit.NewMetrics()),
			audit.WithSampler(sampler),
		)
		if err != nil {
			log.Error("audit publisher init failed", "error", err)
			os.Exit(1)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := kafkaPublisher.Close(flushCtx); err != nil {
				log.Warn("audit publisher flush failed", "error", err)
			}
		}()
		publisher = kafkaPublisher
	}

	lookup, err := identity.New(providerClient, tokens,
		identity.WithLogger(log),
		identity.WithMetrics(identitymetrics.New()),
		identity.WithAuditPublisher(publisher),
	)
	if err != nil {
		log.Error("identity lookup init failed", "error", err)
		os.Exit(1)
	}

	var store recordstore.Store
	var health httptransport.HealthChecker
	if cfg.PostgresDSN != "" {
		pg, err := recordstore.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("record store init failed", "error", err)
			os.Exit(1)
		}
		store = pg
		health = func(ctx context.Context) error {
			return pg.DB().PingContext(ctx)
		}
	} else {
		log.Warn("no postgres DSN configured, using in-memory record store")
		store = recordstore.NewInMemoryStore()
	}

	resolverOpts := []domaingraph.Option{
		domaingraph.WithLogger(log),
		domaingraph.WithMetrics(domaingraphmetrics.New()),
		domaingraph.WithMajorAlias(cfg.Engine.MajorInstitutionAlias),
	}
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		resolverOpts = append(resolverOpts, domaingraph.WithInstitutionCache(domaingraph.NewInstitutionCache(redisClient)))
	}
	resolver, err := domaingraph.New(store, resolverOpts...)
	if err != nil {
		log.Error("domain graph resolver init failed", "error", err)
		os.Exit(1)
	}

	syncer, err := metasync.New(providerClient, tokens, metasync.NewFallbackCache(),
		metasync.WithLogger(log),
		metasync.WithMetrics(metasyncmetrics.New()),
	)
	if err != nil {
		log.Error("metadata synchronizer init failed", "error", err)
		os.Exit(1)
	}

	eng, err := engine.New(lookup, resolver, profile.NewAggregator(cfg.Engine.MajorInstitutionAlias), syncer, store,
		engine.WithLogger(log),
		engine.WithMetrics(enginemetrics.New()),
		engine.WithAuditPublisher(publisher),
		engine.WithTimeouts(cfg.Engine.MinimalTimeout, cfg.Engine.FullTimeout),
	)
	if err != nil {
		log.Error("engine init failed", "error", err)
		os.Exit(1)
	}

	handler := httptransport.New(eng, []byte(cfg.SessionSecret), log)
	router := httptransport.NewRouter(handler, health, log)
	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting memberhub engine", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
