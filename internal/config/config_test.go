package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"kurort/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: kurort
  environment: test
database:
  path: /tmp/kurort-test.db
rooms:
  - id: 1
    hotel_id: 10
    name: "Standard"
    price_cents: 10000
    capacity: 2
    is_active: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.API.HTTP.Port)
	assert.Equal(t, "x-api-key", cfg.API.Auth.HeaderAPIKey)
	assert.Equal(t, "x-guest-id", cfg.API.Auth.HeaderGuestID)
	assert.Equal(t, 15*time.Minute, cfg.Booking.HoldDuration())
	assert.Equal(t, 30*time.Second, cfg.Booking.SweeperInterval())
	assert.Equal(t, models.DefaultSweeperBatch, cfg.Booking.SweeperBatch)
	assert.Equal(t, models.MaxAdvanceDays, cfg.Booking.MaxAdvanceDays)
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("KURORT_DB_PATH", "/tmp/expanded.db")
	path := writeConfig(t, `
database:
  path: ${KURORT_DB_PATH}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/expanded.db", cfg.Database.Path)
}

func TestValidateRejectsMissingDatabasePath(t *testing.T) {
	path := writeConfig(t, `
app:
  name: kurort
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRejectsSweeperSlowerThanHold(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/kurort-test.db
booking:
  hold_duration_seconds: 60
  sweeper_interval_seconds: 120
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sweeper interval")
}

func TestValidateRooms(t *testing.T) {
	err := ValidateRooms([]models.Room{
		{ID: 1, Name: "A", Capacity: 2},
		{ID: 1, Name: "B", Capacity: 2},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate room ID")

	err = ValidateRooms([]models.Room{{ID: 0, Name: "Zero", Capacity: 2}})
	assert.Error(t, err)

	err = ValidateRooms([]models.Room{{ID: 3, Name: "NoCap", Capacity: 0}})
	assert.Error(t, err)

	assert.NoError(t, ValidateRooms([]models.Room{{ID: 1, Name: "OK", Capacity: 2}}))
}
