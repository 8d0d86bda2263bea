package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kurort/internal/api"
	"kurort/internal/config"
	"kurort/internal/database"
	"kurort/internal/domain"
	"kurort/internal/events"
	"kurort/internal/export"
	"kurort/internal/google"
	"kurort/internal/logging"
	"kurort/internal/metrics"
	"kurort/internal/models"
	"kurort/internal/notify"
	"kurort/internal/repository"
	"kurort/internal/service"
	"kurort/internal/sweeper"
	"kurort/internal/worker"

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
		defer closer.Close()
	}

	rooms, err := loadRooms(cfg, &logger)
	if err != nil {
		return err
	}

	db, err := initDatabase(cfg, rooms, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	stateRepo := initStateRepository(cfg, redisClient, &logger)

	eventBus := events.NewEventBus()

	sheetsService := initGoogleSheets(cfg, &logger)

	var syncWorker *worker.SyncWorker
	if sheetsService != nil {
		syncWorker = worker.NewSyncWorker(db, sheetsService, redisClient, worker.RetryPolicy{}, &logger)
	}

	if cfg.Telegram.BotToken != "" && len(cfg.Telegram.ManagerChatIDs) > 0 {
		notifier, err := notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ManagerChatIDs, &logger)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		} else {
			notifier.Register(eventBus)
			logger.Info().Int("managers", len(cfg.Telegram.ManagerChatIDs)).Msg("telegram notifications enabled")
		}
	}

	// domain.SyncWorker is an interface; a typed nil must stay nil
	var syncIface domain.SyncWorker
	if syncWorker != nil {
		syncIface = syncWorker
	}

	bookingService := service.NewBookingService(
		db,
		eventBus,
		syncIface,
		cfg.Booking.HoldDuration(),
		cfg.Booking.MaxAdvanceDays,
		cfg.Booking.StoreRetries,
		&logger,
	)

	holdSweeper := sweeper.NewSweeper(db, eventBus, syncIface, cfg.Booking.SweeperInterval(), cfg.Booking.SweeperBatch, &logger)

	exporter := export.NewExporter(db, cfg.Exports.Path, &logger)

	httpServer := api.NewHTTPServer(cfg.API, bookingService, db, exporter, &logger)
	if stateRepo != nil {
		httpServer.SetStateRepository(stateRepo)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startMetrics(ctx, cfg, &logger)

	go holdSweeper.Start(ctx)
	if syncWorker != nil {
		go syncWorker.Start(ctx)
	}

	return startServer(ctx, httpServer, cfg, &logger)
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
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// loadRooms читает номерной фонд из rooms.yaml; встроенный список из config.yaml
// служит резервом.
func loadRooms(cfg *config.Config, logger *zerolog.Logger) ([]models.Room, error) {
	roomsPath := os.Getenv("ROOMS_PATH")
	if roomsPath == "" {
		roomsPath = "configs/rooms.yaml"
	}

	roomsData, err := os.ReadFile(roomsPath)
	if err != nil {
		if os.IsNotExist(err) && len(cfg.Rooms) > 0 {
			logger.Info().Str("rooms_path", roomsPath).Msg("rooms file missing, using rooms from config")
			return cfg.Rooms, nil
		}
		logger.Error().Err(err).Str("rooms_path", roomsPath).Msg("read rooms")
		return nil, err
	}

	var roomsConfig struct {
		Rooms []models.Room `yaml:"rooms"`
	}
	if err := yaml.Unmarshal(roomsData, &roomsConfig); err != nil {
		logger.Error().Err(err).Str("rooms_path", roomsPath).Msg("parse rooms")
		return nil, err
	}

	if err := config.ValidateRooms(roomsConfig.Rooms); err != nil {
		return nil, err
	}

	return roomsConfig.Rooms, nil
}

func initDatabase(cfg *config.Config, rooms []models.Room, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	roomPointers := make([]*models.Room, len(rooms))
	for i := range rooms {
		roomPointers[i] = &rooms[i]
	}
	if err := db.SetRooms(context.Background(), roomPointers); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
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

func initStateRepository(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.StateRepository {
	memory := repository.NewMemoryStateRepository()
	if redisClient == nil {
		return memory
	}

	primary := repository.NewRedisStateRepository(redisClient, models.DefaultRedisTTL*time.Second)
	return repository.NewFailoverStateRepository(primary, memory, logger)
}

func initGoogleSheets(cfg *config.Config, logger *zerolog.Logger) *google.SheetsService {
	if cfg.Google.GoogleCredentialsFile == "" || cfg.Google.ReservationsSpreadSheetID == "" {
		return nil
	}

	sheetsService, err := google.NewSheetsService(
		cfg.Google.GoogleCredentialsFile,
		cfg.Google.ReservationsSpreadSheetID,
	)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}

	logger.Info().Msg("google sheets connected")
	return sheetsService
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

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("Reservation API started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("Reservation API stopped")
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
