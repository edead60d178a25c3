package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gavel/internal/auditlog"
	"gavel/internal/commands"
	"gavel/internal/config"
	"gavel/internal/confirm"
	"gavel/internal/database/boltstore"
	"gavel/internal/database/sqlitestore"
	"gavel/internal/discord"
	"gavel/internal/metrics"
	"gavel/internal/middleware"
	"gavel/internal/moderation"
	"gavel/internal/purge"
	"gavel/internal/tracing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const (
	collectorInterval = 30 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logging isn't configured yet; the default logger still writes to stderr
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	configureLogging(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("gavel exited with error")
	}
}

// configureLogging sets the global zerolog level and output format
func configureLogging(level, format string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if format == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Msg("Starting gavel")

	if cfg.OTelEnabled {
		tp, err := tracing.Init(ctx, cfg.OTelEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("Failed to flush traces")
			}
		}()
		log.Info().Str("endpoint", cfg.OTelEndpoint).Msg("Tracing enabled")
	}

	records, err := sqlitestore.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer records.Close()
	log.Info().Str("path", cfg.DBPath).Msg("Record store opened")

	bolt, err := boltstore.Open(boltstore.Options{Path: cfg.BoltPath})
	if err != nil {
		return err
	}
	defer bolt.Close()
	log.Info().Str("path", cfg.BoltPath).Msg("Audit store opened")

	staff, err := moderation.NewService(cfg.StaffConfig)
	if err != nil {
		return err
	}

	client, err := discord.NewClient(cfg.DiscordToken)
	if err != nil {
		return err
	}

	engine := purge.NewEngine(client.Platform(),
		purge.WithWorkers(cfg.PurgeWorkers),
		purge.WithLimiter(rate.NewLimiter(rate.Limit(cfg.PurgeRatePerSecond), 1)),
	)
	prompt := confirm.NewPrompt(confirm.WithTimeout(cfg.ConfirmTimeout))
	router := auditlog.NewRouter(bolt.LogChannelStore(), client.Sender())

	handler := commands.NewHandler(client.Platform(), prompt, engine)
	handler.SetRecords(records.RecordStore(), bolt.AuditStore())
	handler.SetActivityLog(router, bolt.LogChannelStore())
	handler.SetStaff(staff)

	client.SetHandler(handler)
	client.SetActivityLog(router)

	if err := client.Open(); err != nil {
		return err
	}
	defer client.Close()

	// Staff roles can grant access to members without the platform
	// permission, so commands stay visible to everyone in that mode
	if err := client.RegisterCommands(ctx, !staff.IsEnabled()); err != nil {
		return err
	}

	stats := client.Stats()
	stats.RecordCounts = func() (int, int, error) {
		return records.RecordStore().CountRecords(ctx)
	}
	stats.AuditReadTxs = func() int {
		return bolt.Stats().OpenTxN
	}
	metrics.StartCollector(ctx, stats, collectorInterval)
	go reloadOnHangup(ctx, staff)

	srv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           opsHandler(client.Connected),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("address", cfg.MetricsAddr).Msg("Starting ops server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Ops server failed")
			stop()
		}
	}()

	log.Info().Bool("staff_roles", staff.IsEnabled()).Msg("gavel is running")
	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Ops server shutdown")
	}
	return nil
}

// opsHandler serves /metrics and a /healthz that fails while the gateway
// is disconnected.
func opsHandler(connected func() bool) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if !connected() {
			http.Error(w, "gateway disconnected", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})

	var h http.Handler = middleware.LoggingMiddleware(log.Logger)(mux)
	return otelhttp.NewHandler(h, "ops")
}

// reloadOnHangup reloads the staff configuration on SIGHUP
func reloadOnHangup(ctx context.Context, staff *moderation.Service) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := staff.Reload(); err != nil {
				log.Error().Err(err).Msg("Failed to reload staff config")
				continue
			}
			log.Info().Msg("Staff config reloaded")
		}
	}
}
