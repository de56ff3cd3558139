package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"monitoring_station/internal/config"
	"monitoring_station/internal/events"
	"monitoring_station/internal/handlers"
	"monitoring_station/internal/logger"
	"monitoring_station/internal/mqtt"
	"monitoring_station/internal/realtime"
	"monitoring_station/internal/repository"
	"monitoring_station/internal/server"
	"monitoring_station/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// load config.yml first so the logger gets its level
	cfg, err := config.Load()
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(cfg.LogLevel)

	// wire dependencies
	repos := repository.NewRepository()
	hub := events.NewHub(log.Named("events"))
	services := service.NewService(repos, hub, cfg, log)
	apiHandler := handlers.NewHandler(services, hub, log.Named("http"))

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// upstream feeds
	go mqtt.NewClient(cfg, services.Alerts, services.Connectivity, log.Named("mqtt")).Run(ctx)
	go realtime.NewClient(cfg, services.Refrigerators, services.Connectivity, log.Named("realtime")).Run(ctx)

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, cfg.HTTPPort, apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, services, log)
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, services *service.Service, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// leave the line low no matter what state the blinker was in
	services.Buzzer.SetState(false)

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
