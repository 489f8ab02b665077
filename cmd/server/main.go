package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tablebook/internal/api"
	"tablebook/internal/config"
	"tablebook/internal/database"
	"tablebook/internal/domain"
	"tablebook/internal/events"
	"tablebook/internal/export"
	"tablebook/internal/google"
	"tablebook/internal/logging"
	"tablebook/internal/metrics"
	"tablebook/internal/models"
	"tablebook/internal/notify"
	"tablebook/internal/payments"
	"tablebook/internal/repository"
	"tablebook/internal/service"
	"tablebook/internal/settings"
	"tablebook/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	cache := initSettingsCache(redisClient, &logger)
	settingsSvc := service.NewSettingsService(db, cache, cfg.Booking.FlatSeatBound, &logger)

	if err := seedSettings(context.Background(), db, settingsSvc, &logger); err != nil {
		return err
	}

	eventBus := events.NewEventBus()
	initTelegramNotifier(cfg, eventBus, &logger)

	sheetsService := initGoogleSheets(cfg, &logger)
	excelWriter := export.NewExcelWriter(&logger)

	syncWorker := initSyncWorker(cfg, db, sheetsService, excelWriter, redisClient, &logger)

	reservationSvc := service.NewReservationService(
		db,
		settingsSvc,
		payments.NewMockProvider(),
		eventBus,
		syncWorker,
		cfg.Booking.WindowDays,
		int64(cfg.Booking.NoShowFeeCents),
		&logger,
	)

	httpServer := api.NewHTTPServer(cfg.API, reservationSvc, settingsSvc, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go syncWorker.Start(ctx)
	go database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger).Start(ctx)
	go runBackgroundSheetSync(ctx, cfg, db, sheetsService, &logger)
	startMetrics(ctx, cfg, &logger)

	return serveHTTP(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := logging.Component(baseLogger, "server-main")

	return cfg, logger, closer, nil
}

// seedSettings loads the optional settings seed file and stores each section
// that has no stored value yet. Admin edits are never overwritten on restart.
func seedSettings(ctx context.Context, db *database.DB, svc domain.SettingsService, logger *zerolog.Logger) error {
	seedPath := os.Getenv("SEED_SETTINGS_PATH")
	if seedPath == "" {
		seedPath = "configs/settings.yaml"
	}

	data, err := os.ReadFile(seedPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info().Str("seed_path", seedPath).Msg("no settings seed file, skipping")
			return nil
		}
		logger.Error().Err(err).Str("seed_path", seedPath).Msg("read settings seed")
		return err
	}

	var seed struct {
		Closure      *settings.ClosureSettings      `yaml:"closure"`
		Availability *settings.AvailabilitySettings `yaml:"availability"`
		Capacity     *settings.CapacityModel        `yaml:"capacity"`
		Confirmation *settings.ConfirmationSettings `yaml:"confirmation"`
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		logger.Error().Err(err).Str("seed_path", seedPath).Msg("parse settings seed")
		return err
	}

	apply := func(key string, present bool, update func() error) error {
		if !present {
			return nil
		}
		if _, err := db.GetSettings(ctx, key); err == nil {
			return nil
		} else if !errors.Is(err, database.ErrNotFound) {
			return err
		}
		if err := update(); err != nil {
			return fmt.Errorf("seed %s: %w", key, err)
		}
		logger.Info().Str("key", key).Msg("settings seeded")
		return nil
	}

	if err := apply(settings.KeyClosure, seed.Closure != nil, func() error {
		return svc.UpdateClosureSettings(ctx, *seed.Closure)
	}); err != nil {
		return err
	}
	if err := apply(settings.KeyAvailability, seed.Availability != nil, func() error {
		return svc.UpdateAvailabilitySettings(ctx, *seed.Availability)
	}); err != nil {
		return err
	}
	if err := apply(settings.KeyCapacity, seed.Capacity != nil, func() error {
		return svc.UpdateCapacityModel(ctx, *seed.Capacity)
	}); err != nil {
		return err
	}
	return apply(settings.KeyConfirmation, seed.Confirmation != nil, func() error {
		return svc.UpdateConfirmationSettings(ctx, *seed.Confirmation)
	})
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initSettingsCache fronts redis with an in-process fallback so settings
// reads survive a redis outage.
func initSettingsCache(redisClient *redis.Client, logger *zerolog.Logger) domain.SettingsCache {
	ttl := time.Duration(models.DefaultSnapshotTTL) * time.Second
	memory := repository.NewMemorySettingsCache(ttl)
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverSettingsCache(repository.NewRedisSettingsCache(redisClient, ttl), memory, logger)
}

func initTelegramNotifier(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) {
	if !cfg.Notifications.Telegram.Enabled {
		return
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Notifications.Telegram.BotToken)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return
	}
	bot.Debug = cfg.Notifications.Telegram.Debug

	notify.NewTelegramNotifier(bot, cfg.Notifications.Telegram.ChatID, logger).SubscribeAll(bus)
	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifications enabled")
}

func initGoogleSheets(cfg *config.Config, logger *zerolog.Logger) *google.SheetsService {
	if cfg.Google.CredentialsFile == "" || cfg.Google.BookingSpreadSheetID == "" {
		return nil
	}

	sheetsService, err := google.NewSheetsService(
		context.Background(),
		cfg.Google.CredentialsFile,
		cfg.Google.BookingSpreadSheetID,
		cfg.Google.BookingSheetName,
	)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}

	logger.Info().Msg("google sheets connected")
	return sheetsService
}

func initSyncWorker(
	cfg *config.Config,
	db *database.DB,
	sheetsService *google.SheetsService,
	excelWriter *export.ExcelWriter,
	redisClient *redis.Client,
	logger *zerolog.Logger,
) *worker.SyncWorker {
	var sheets domain.SheetsWriter
	if sheetsService != nil {
		sheets = sheetsService
	}
	return worker.NewSyncWorker(db, sheets, excelWriter, redisClient, worker.RetryPolicy{}, cfg.Exports.Path, logger)
}

// runBackgroundSheetSync mirrors the full booking horizon into the
// spreadsheet on an interval, replacing the sheet contents wholesale.
func runBackgroundSheetSync(ctx context.Context, cfg *config.Config, db *database.DB, sheetsService *google.SheetsService, logger *zerolog.Logger) {
	if sheetsService == nil || cfg.Google.DisableBackgroundSync || !cfg.Google.ReplaceOnFullSync {
		return
	}

	interval := time.Duration(cfg.Google.SyncIntervalMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info().Dur("interval", interval).Msg("background sheet sync started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now().AddDate(0, -1, 0)
			end := time.Now().AddDate(0, 0, cfg.Booking.WindowDays)
			bookings, err := db.GetBookingsByDateRange(ctx, start, end)
			if err != nil {
				logger.Error().Err(err).Msg("full sheet sync: load bookings")
				continue
			}
			if err := sheetsService.ReplaceBookings(ctx, bookings); err != nil {
				logger.Error().Err(err).Msg("full sheet sync: replace")
				continue
			}
			logger.Info().Int("bookings", len(bookings)).Msg("full sheet sync completed")
		}
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func serveHTTP(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
