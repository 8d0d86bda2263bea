package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"kurort/internal/config"

	"github.com/rs/zerolog"
)

// New собирает корневой zerolog-логгер сервиса бронирований. Поля app/env/version
// присутствуют в каждой записи, чтобы логи разных инстансов можно было различать.
// Возвращаемый closer ненулевой только при выводе в файл.
func New(cfg config.LoggingConfig, app config.AppConfig) (*zerolog.Logger, io.Closer, error) {
	output, closer, err := resolveOutput(cfg)
	if err != nil {
		return nil, nil, err
	}

	if normalize(cfg.Format) == "console" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	logger := zerolog.New(output).
		Level(resolveLevel(cfg.Level)).
		With().
		Timestamp().
		Str("app", app.Name).
		Str("env", app.Environment).
		Str("version", app.Version).
		Logger()

	return &logger, closer, nil
}

// resolveLevel falls back to info on unknown values rather than failing startup.
func resolveLevel(raw string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(normalize(raw))
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}

func resolveOutput(cfg config.LoggingConfig) (io.Writer, io.Closer, error) {
	switch normalize(cfg.Output) {
	case "stderr":
		return os.Stderr, nil, nil
	case "file":
		if cfg.FilePath == "" {
			return nil, nil, errors.New("file_path is required when logging to file")
		}
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %s: %w", cfg.FilePath, err)
		}
		return file, file, nil
	default:
		return os.Stdout, nil, nil
	}
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
