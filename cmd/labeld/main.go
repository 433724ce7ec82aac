package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Vovanwotkd/labels-britannika/internal/api"
	"github.com/Vovanwotkd/labels-britannika/internal/api/handlers"
	"github.com/Vovanwotkd/labels-britannika/internal/api/middleware"
	"github.com/Vovanwotkd/labels-britannika/internal/archive"
	"github.com/Vovanwotkd/labels-britannika/internal/config"
	"github.com/Vovanwotkd/labels-britannika/internal/core"
	"github.com/Vovanwotkd/labels-britannika/internal/db"
	"github.com/Vovanwotkd/labels-britannika/internal/dish"
	"github.com/Vovanwotkd/labels-britannika/internal/label"
	"github.com/Vovanwotkd/labels-britannika/internal/webhook"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatalf("[labeld] %v", err)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	conn, err := db.Open(db.Config{Path: cfg.Database.Path})
	if err != nil {
		return err
	}
	defer conn.Close()

	dishes, err := dish.OpenStore(cfg.Database.DishesPath)
	if err != nil {
		return fmt.Errorf("failed to open dish database: %w", err)
	}
	defer dishes.Close()

	jobStore := core.NewSQLStore(conn)
	templateStore := db.NewTemplateStore(conn)
	webhookStore := db.NewWebhookStore(conn)
	settingsStore := db.NewSettingsStore(conn)

	transport, err := buildTransport(cfg.Printer)
	if err != nil {
		return err
	}

	sender := webhook.NewSender(conn, cfg.Webhooks)
	sender.Start()
	defer sender.Stop()

	compositor := &label.Compositor{
		PayloadCapBytes: cfg.Label.PayloadCapBytes,
		RasterWidthHint: cfg.Label.RasterWidthHint,
	}

	worker := core.NewWorker(jobStore, transport, templateStore, sender, compositor, cfg.Queue)
	if err := worker.Start(); err != nil {
		return fmt.Errorf("failed to start print worker: %w", err)
	}
	defer worker.Stop()

	archiver, err := archive.NewArchiver(conn, settingsStore, archive.Config{
		Path:          cfg.Archive.Path,
		RetentionDays: cfg.Archive.RetentionDays,
		Enabled:       cfg.Archive.Enabled,
		SweepInterval: cfg.Archive.SweepInterval,
	})
	if err != nil {
		return err
	}
	archiver.Start()
	defer archiver.Stop()

	auth, err := middleware.NewAuthMiddleware(settingsStore)
	if err != nil {
		return fmt.Errorf("failed to initialize auth: %w", err)
	}

	service := core.NewPrintService(jobStore, dishes, cfg.Queue.MaxRetries)

	router := api.NewRouter(api.Handlers{
		Auth:      auth,
		Jobs:      handlers.NewJobHandler(jobStore, service),
		Templates: handlers.NewTemplateHandler(templateStore),
		Printer:   handlers.NewPrinterHandler(transport),
		Webhooks:  handlers.NewWebhookHandler(webhookStore),
		Settings:  handlers.NewSettingsHandler(settingsStore, cfg),
		Archive:   handlers.NewArchiveHandler(archiver),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[labeld] listening on :%d (printer mode %s)", cfg.Server.Port, cfg.Printer.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Printf("[labeld] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func buildTransport(cfg config.PrinterConfig) (core.Transport, error) {
	switch cfg.Mode {
	case "raw":
		return core.NewRawSocketTransport(cfg.IPAddress, cfg.Port, cfg.SendTimeout), nil
	case "spooler":
		return core.NewSpoolerTransport(cfg.SpoolerName, cfg.SendTimeout), nil
	default:
		return nil, fmt.Errorf("unsupported printer mode: %s", cfg.Mode)
	}
}
