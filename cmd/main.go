package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"restaurant-orders/internal/auth"
	"restaurant-orders/internal/config"
	"restaurant-orders/internal/database"
	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/messaging"
	"restaurant-orders/internal/server"
	"restaurant-orders/internal/services/billing"
	"restaurant-orders/internal/services/kitchen"
	"restaurant-orders/internal/services/notification"
	"restaurant-orders/internal/services/order"
	"restaurant-orders/internal/services/sequence"
	"restaurant-orders/internal/services/tracking"
	"restaurant-orders/internal/tracing"
	"restaurant-orders/migrations"
)

func main() {
	var (
		mode       = flag.String("mode", "", "Service mode (order-service, notification-subscriber)")
		configPath = flag.String("config", "config.yaml", "Path to the configuration file")
		port       = flag.Int("port", 0, "HTTP port, overrides server.port")
		prefetch   = flag.Int("prefetch", 10, "RabbitMQ prefetch count")
	)
	flag.Parse()

	if *mode == "" {
		fmt.Fprintf(os.Stderr, "Error: --mode flag is required\n")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	log := logger.New(*mode)
	log.SetLevel(cfg.Logging.Level)
	requestID := logger.GenerateRequestID()

	log.Info("service_started", fmt.Sprintf("Starting %s", *mode), requestID, map[string]interface{}{
		"mode": *mode,
		"port": cfg.Server.Port,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "order-service":
		err = runOrderService(ctx, cfg, log)
	case "notification-subscriber":
		err = runNotificationSubscriber(ctx, cfg, log, *prefetch)
	default:
		log.Error("validation_failed", fmt.Sprintf("Unknown mode: %s", *mode), requestID, nil, nil)
		os.Exit(1)
	}
	if err != nil {
		log.Error("service_failed", fmt.Sprintf("%s failed", *mode), requestID, err, nil)
		os.Exit(1)
	}

	log.Info("service_stopped", "Service stopped gracefully", requestID, nil)
}

// runOrderService serves every HTTP route until ctx is cancelled
func runOrderService(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	requestID := logger.GenerateRequestID()

	tp, err := tracing.Setup(cfg.Tracing, "order-service", os.Stdout, log)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	db, err := database.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	log.Info("db_connected", "Connected to PostgreSQL database", requestID, nil)

	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	conn, err := messaging.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}
	defer conn.Close()

	log.Info("rabbitmq_connected", "Connected to RabbitMQ", requestID, map[string]interface{}{
		"exchange": conn.Exchange(),
	})

	publisher := messaging.NewPublisher(conn, log)
	namer := sequence.NewNamer(db, cfg.Location())

	mux := http.NewServeMux()
	order.NewHandler(order.NewService(db, namer, publisher, log), log).RegisterRoutes(mux)
	kitchen.NewHandler(kitchen.NewTracker(db, publisher, log), log).RegisterRoutes(mux)
	billing.NewHandler(billing.NewService(db, cfg.Restaurant.TaxRate, publisher, log), log).RegisterRoutes(mux)
	tracking.NewHandler(tracking.NewService(db, log), log).RegisterRoutes(mux)

	handler := server.Chain(mux,
		server.Recovery(log),
		server.RequestLogging(log),
		auth.Middleware(auth.HeaderAuthenticator{}, func(w http.ResponseWriter, r *http.Request, err error) {
			server.WriteError(w, r, log, err)
		}),
	)

	srv := server.New(server.Config{
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}, handler, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Join(srv.Shutdown(shutdownCtx), tp.Shutdown(shutdownCtx))
	})
	return g.Wait()
}

// runNotificationSubscriber prints every broadcast event until ctx is cancelled
func runNotificationSubscriber(ctx context.Context, cfg *config.Config, log *logger.Logger, prefetch int) error {
	conn, err := messaging.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}

	consumer := messaging.NewConsumer(conn, log, "notification-subscriber", prefetch)
	err = notification.NewSubscriber(consumer, os.Stdout, log).Start(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
