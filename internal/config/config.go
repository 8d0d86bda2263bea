package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"kurort/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Booking    BookingConfig    `yaml:"booking"`
	API        APIConfig        `yaml:"api"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Exports    ExportConfig     `yaml:"exports"`
	Google     GoogleConfig     `yaml:"google"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Rooms      []models.Room    `yaml:"rooms"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// BookingConfig governs the hold lifecycle. Seconds in YAML, durations in code.
type BookingConfig struct {
	HoldDurationSeconds    int `yaml:"hold_duration_seconds"`
	SweeperIntervalSeconds int `yaml:"sweeper_interval_seconds"`
	SweeperBatch           int `yaml:"sweeper_batch"`
	MaxAdvanceDays         int `yaml:"max_advance_days"`
	StoreRetries           int `yaml:"store_retries"`
}

func (b BookingConfig) HoldDuration() time.Duration {
	return time.Duration(b.HoldDurationSeconds) * time.Second
}

func (b BookingConfig) SweeperInterval() time.Duration {
	return time.Duration(b.SweeperIntervalSeconds) * time.Second
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled       bool           `yaml:"enabled"`
	HeaderAPIKey  string         `yaml:"header_api_key"`
	HeaderExtra   string         `yaml:"header_extra"`
	HeaderGuestID string         `yaml:"header_guest_id"`
	APIKeys       []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type GoogleConfig struct {
	GoogleCredentialsFile     string `yaml:"credentials_file"`
	ReservationsSpreadSheetID string `yaml:"reservations_spreadsheet_id"`
}

type TelegramConfig struct {
	BotToken       string  `yaml:"bot_token"`
	ManagerChatIDs []int64 `yaml:"manager_chat_ids"`
}

func Load(configPath string) (*Config, error) {
	// .env необязателен; переменные из него подставляются в YAML ниже
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Booking.HoldDurationSeconds <= 0 {
		return errors.New("booking hold duration must be positive")
	}
	if c.Booking.SweeperIntervalSeconds <= 0 {
		return errors.New("sweeper interval must be positive")
	}
	// Свипер должен успевать: просроченная бронь не живёт дольше одного интервала
	if c.Booking.SweeperInterval() > c.Booking.HoldDuration() {
		return errors.New("sweeper interval must not exceed hold duration")
	}

	return ValidateRooms(c.Rooms)
}

func ValidateRooms(rooms []models.Room) error {
	roomIDs := make(map[int64]bool)
	for _, room := range rooms {
		if room.ID == 0 {
			return fmt.Errorf("room '%s' has invalid ID 0", room.Name)
		}
		if roomIDs[room.ID] {
			return fmt.Errorf("duplicate room ID found: %d", room.ID)
		}
		if room.Capacity <= 0 {
			return fmt.Errorf("room %d has invalid capacity %d", room.ID, room.Capacity)
		}
		roomIDs[room.ID] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	// auth enabled by default when API is enabled
	if !c.API.Auth.Enabled {
		c.API.Auth.Enabled = true
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.API.Auth.HeaderGuestID == "" {
		c.API.Auth.HeaderGuestID = "x-guest-id"
	}

	// Booking defaults
	if c.Booking.HoldDurationSeconds == 0 {
		c.Booking.HoldDurationSeconds = int(models.DefaultHoldDuration / time.Second)
	}
	if c.Booking.SweeperIntervalSeconds == 0 {
		c.Booking.SweeperIntervalSeconds = int(models.DefaultSweeperInterval / time.Second)
	}
	if c.Booking.SweeperBatch == 0 {
		c.Booking.SweeperBatch = models.DefaultSweeperBatch
	}
	if c.Booking.MaxAdvanceDays == 0 {
		c.Booking.MaxAdvanceDays = models.MaxAdvanceDays
	}
	if c.Booking.StoreRetries == 0 {
		c.Booking.StoreRetries = models.DefaultStoreRetries
	}
}
