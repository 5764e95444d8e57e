package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "exclusive", cfg.Composer.OverlapPolicy)
	assert.True(t, cfg.Composer.AutoAddFreeItems)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.DraftTTL())
	assert.True(t, cfg.Composer.DefaultTaxRate.IsZero())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CACHE_TTL", "60")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("BACKEND_URL", "https://backend.example")
	t.Setenv("BACKEND_TIMEOUT", "5s")
	t.Setenv("COMPOSER_OVERLAP_POLICY", "independent")
	t.Setenv("COMPOSER_AUTO_ADD_FREE_ITEMS", "false")
	t.Setenv("COMPOSER_DEFAULT_TAX_RATE", "7.5")
	t.Setenv("COMPOSER_TAX_ENABLED", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, time.Minute, cfg.CatalogTTL())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "https://backend.example", cfg.Backend.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "independent", cfg.Composer.OverlapPolicy)
	assert.False(t, cfg.Composer.AutoAddFreeItems)
	assert.Equal(t, "7.5", cfg.Composer.DefaultTaxRate.String())
	assert.True(t, cfg.Composer.TaxEnabled)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("CACHE_TTL", "soon")
	_, err := Load()
	assert.Error(t, err)
}

func TestLogError(t *testing.T) {
	logger := NewLogger(Log{Level: "nonsense", Format: "json"})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	LogError(logger, "services", "Submit", "post order", map[string]string{"draft": "d1"}, errors.New("boom"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "boom", entry["msg"])
	assert.Equal(t, "services", entry["module"])
	assert.Equal(t, "Submit", entry["funcName"])
	assert.NotNil(t, entry["data"])
}
