package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	partyhub "github.com/hivegate/partyhub"
	"github.com/hivegate/partyhub/directory"
	"github.com/hivegate/partyhub/log"
	"github.com/hivegate/partyhub/metrics"
	"github.com/hivegate/partyhub/notify"
	sxnats "github.com/hivegate/partyhub/stackexchange/nats"
	sxredis "github.com/hivegate/partyhub/stackexchange/redis"
)

func main() {
	cfg, err := partyhub.LoadConfig()
	if err != nil {
		mainLogger := log.New("main")
		mainLogger.Fatal().Err(err).Msg("bad configuration")
	}
	log.SetLevel(cfg.LogLevel)
	logger := log.New("partyhub")

	registry := metrics.Registry()
	hub := partyhub.NewHub(log.New("hub"))

	var redisClient redis.UniversalClient
	if cfg.RedisAddr != "" {
		redisClient = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{cfg.RedisAddr},
		})
	}

	var store notify.Store = notify.NewMemoryStore()
	if redisClient != nil {
		redisStore, err := notify.NewRedisStore(redisClient)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis notification store unavailable")
		}
		store = redisStore
	}
	notifier := notify.NewNotifier(notify.NotifierCfgs{
		Store:     store,
		Publisher: hub,
		InviteTTL: cfg.InviteTTL,
		Logger:    log.New("notify"),
	})
	defer notifier.Close()

	var resolver directory.Resolver = directory.NewStatic()
	if redisClient != nil {
		cached, err := directory.NewCached(redisClient, resolver, directory.DefaultCacheTTL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis user cache unavailable")
		}
		resolver = cached
	}

	clients := partyhub.NewClientDirectory()
	parties := partyhub.NewPartyService(partyhub.PartyServiceCfgs{
		Clients:      clients,
		Publisher:    hub,
		Notifier:     notifier,
		Users:        resolver,
		Messages:     partyhub.NewChatProcessor(resolver, cfg.MaxChatLength),
		MaxPartySize: cfg.MaxPartySize,
		Logger:       log.New("party"),
	})

	switch cfg.Exchange {
	case "redis":
		exc, err := sxredis.NewStackExchange(sxredis.StackExchangeCfgs{
			RedisConfig: sxredis.Config{Addrs: []string{cfg.RedisAddr}},
			Channel:     cfg.ChannelPrefix,
			Logger:      log.New("sx-redis"),
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("redis stack exchange unavailable")
		}
		defer exc.Close()
		hub.UseStackExchange(exc)
	case "nats":
		exc, err := sxnats.NewStackExchange(sxnats.StackExchangeCfgs{
			URL:           cfg.NATSURL,
			SubjectPrefix: cfg.ChannelPrefix,
			Logger:        log.New("sx-nats"),
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("nats stack exchange unavailable")
		}
		defer exc.Close()
		hub.UseStackExchange(exc)
	}

	server := partyhub.NewServer(partyhub.ServerCfgs{
		Clients: clients,
		Hub:     hub,
		Parties: parties,
		Logger:  log.New("server"),
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", server)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Str("exchange", cfg.Exchange).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown incomplete")
	}
}
