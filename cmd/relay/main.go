package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/redis/go-redis/v9"

	"chat-relay/auth"
	"chat-relay/httpapi"
	redisinfra "chat-relay/infrastructure/redis"
	"chat-relay/internal"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"chat-relay/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for HTTP and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Databases (BadgerDB & Redis)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	//  Defer will be executed before run() returned anything to main()
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	redisOpts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() {
		log.Info("Closing Redis...")
		_ = redisClient.Close()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unreachable: %w", err)
	}

	// 3. Engine assembly
	presence := redisinfra.NewPresenceStore(redisClient, config.PresenceTTL, log)
	registry := redisinfra.NewTopicRegistry(redisClient, log)
	messageRepository := repositories.NewMessageRepository(db, log, config.LimitMessages)
	membershipRepository := repositories.NewMembershipRepository(db, log)
	gateway := services.NewGatewayService(messageRepository, membershipRepository,
		presence, config.ReactionList(), log)
	router := runtime.NewRouter(gateway, log)
	sinks := runtime.NewLocalSinks()
	publisher := runtime.NewFanoutPublisher(registry, presence, sinks, config.SinkTimeout, log)
	authenticator := auth.NewAuthenticator(config.JWTSecret)
	chatService := services.NewChatService(authenticator, presence, registry,
		gateway, router, sinks, config.ConnectionBufferSize, log)

	// 4. Supervision
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		workers.NewFanoutRelay(registry, publisher, log),
		workers.NewPresenceSweeper(presence, registry, config.SweepInterval, log),
		workers.NewHealthMonitor(log, sinks, config.HealthInterval),
	)
	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		sup.Run(ctx)
	}()

	// 5. HTTP Server Setup
	wsServer := ws.NewServer(chatService, log)
	mux := httpapi.NewRouter(chatService, authenticator, messageRepository, wsServer, log)
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: mux}

	// Use an error channel to capture ListenAndServe() issues
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 6. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 7. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")

	return nil
}
