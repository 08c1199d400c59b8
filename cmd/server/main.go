package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ambrosio03/TFG/internal/config"
	"github.com/Ambrosio03/TFG/internal/infra"
	"github.com/Ambrosio03/TFG/internal/realtime"
	"github.com/Ambrosio03/TFG/internal/repository"
	"github.com/Ambrosio03/TFG/internal/router"
	"github.com/Ambrosio03/TFG/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: pretty in dev, JSON in prod
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	if err := os.MkdirAll(cfg.ImageStoragePath, 0o755); err != nil {
		log.Fatal().Err(err).Str("path", cfg.ImageStoragePath).Msg("failed to create image directory")
	}
	images := infra.NewImageStore(cfg.ImageStoragePath, cfg.PlaceholderImage)

	// Worker pool for receipts and emails. Handlers are wired here (composition
	// root) so the pool has access to every infrastructure dependency.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mailer := infra.NewMailer(cfg, infra.NewCircuitBreaker(infra.DefaultMailerCBConfig()))
	if !mailer.Enabled() {
		log.Warn().Msg("SMTP_HOST not set, emails will be skipped")
	}
	dispatcher := worker.NewDispatcher(rdb)
	pool := worker.NewPool(rdb, cfg.WorkerPoolSize)
	pool.Register(worker.JobComprobante,
		worker.NewComprobanteWorker(repository.NewPedidoRepository(db), dispatcher, cfg.PDFStoragePath).Process)
	pool.Register(worker.JobEmail, worker.NewEmailWorker(mailer).Process)
	pool.Start(ctx)

	hub := realtime.NewHub(cfg.AllowedOrigins())

	r := router.New(cfg, router.Deps{
		DB:          db,
		Redis:       rdb,
		Hub:         hub,
		Images:      images,
		Notificador: dispatcher,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("tienda backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	hub.Close()
	cancel()
	pool.Wait()
	_ = rdb.Close()
	log.Info().Msg("server exited")
}
