package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roomcast/roomcast/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	fmt.Println("Starting Roomcast server...")

	config, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	server.SetConfig(config)

	server.StartHub()

	mux := server.SetupRoutes()
	httpServer := server.CreateServer(config.Port, mux)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := server.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		if err := server.ShutdownServer(httpServer, shutdownTimeout); err != nil {
			return err
		}
		return server.GetHub().Shutdown(shutdownTimeout)
	})

	if err := group.Wait(); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
	log.Println("Server stopped")
}

// loadConfig picks the YAML file named by CONFIG_FILE when set, otherwise
// falls back to environment variables.
func loadConfig() (*server.Config, error) {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		return server.LoadConfigFile(path)
	}
	return server.NewConfigFromEnv(), nil
}
