// Command api serves the HTTP surface spec.md §6.1 requires: creating and
// inspecting runs, streaming their events, and driving cancel/retry,
// grounded on cmd/tarsy/main.go's flag + godotenv + gin bootstrap idiom.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/researchops/runcore/internal/api"
	"github.com/researchops/runcore/internal/config"
	"github.com/researchops/runcore/internal/database"
	"github.com/researchops/runcore/internal/runstate"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configFile := flag.String("config", getEnv("CONFIG_FILE", "./config/runcore.yaml"), "Path to configuration YAML file")
	ginMode := flag.String("gin-mode", getEnv("GIN_MODE", "release"), "Gin mode: debug, release, test")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	gin.SetMode(*ginMode)

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := database.NewClient(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer dbClient.Close()

	sink := runstate.NewPoolEventSink(dbClient.Pool)
	server := api.NewServer(dbClient.Pool, sink)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.Router(),
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
