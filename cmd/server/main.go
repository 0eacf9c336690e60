package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"treechat-backend/internal/api"
	"treechat-backend/internal/config"
	"treechat-backend/internal/events"
	"treechat-backend/internal/gramps"
	"treechat-backend/internal/handlers"
	"treechat-backend/internal/services"
	"treechat-backend/internal/store/badgerkv"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("LOG_PRETTY") != "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	log.Info().Msg("starting treechat backend")

	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// 2. Open the local dismissed-discoveries store
	kv, err := badgerkv.Open(cfg.DismissedDBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DismissedDBPath).Msg("failed to open key-value store")
	}
	defer kv.Close()
	log.Info().Str("path", cfg.DismissedDBPath).Msg("key-value store opened")

	// 3. Initialize Dependencies (Client, Services, Handlers)
	grampsClient := gramps.NewClient(cfg.GrampsAPIURL, cfg.GrampsAPIToken)

	bus := events.NewBus()
	bus.Subscribe(func(evt events.Event) {
		log.Debug().Str("kind", string(evt.Kind)).Str("conversation_id", evt.ConversationID).Msg("session event")
	})

	chatService := services.NewChatService(grampsClient, cfg.ChatRequestTimeout, services.PollOptions{
		Interval: cfg.TaskPollInterval,
		Deadline: cfg.TaskPollDeadline,
	})
	sessionService := services.NewSessionService(grampsClient, chatService, bus)
	discoveryService := services.NewDiscoveryService(grampsClient, kv)

	chatHandler := handlers.NewChatHandlers(sessionService)
	discoveryHandler := handlers.NewDiscoveryHandlers(discoveryService)

	// 4. Setup Router & Inject Dependencies
	router := api.NewRouter(api.RouterDependencies{
		ChatHandler:      chatHandler,
		DiscoveryHandler: discoveryHandler,
		Config:           cfg,
	})

	// 5. Configure and Start HTTP Server
	server := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     router,
		ReadTimeout: 5 * time.Second,
		// Prompt requests may wait out a full task poll before responding.
		WriteTimeout: cfg.TaskPollDeadline + time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-stopChan
	log.Info().Msg("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server shutdown complete")
}
