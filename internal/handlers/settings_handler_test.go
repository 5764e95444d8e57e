package handlers

import (
	"io"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"order_composer/internal/database"
	"order_composer/internal/models"
	"order_composer/internal/repository"
)

func newSettingsServer(t *testing.T) (*testServer, repository.SettingsRepository, repository.PreferenceRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))

	log := logrus.New()
	log.SetOutput(io.Discard)

	settings := repository.NewSettingsRepository(db)
	prefs := repository.NewPreferenceRepository(db)
	ts := &testServer{router: gin.New()}
	NewSettingsHandler(settings, prefs, log).RegisterRoutes(ts.router.Group("/api/composer"))
	return ts, settings, prefs
}

func TestUpdateTaxRate(t *testing.T) {
	ts, settings, _ := newSettingsServer(t)

	w := ts.do(http.MethodPut, "/api/composer/settings/tax_rate", `{"percentage_value":"150"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPut, "/api/composer/settings/tax_rate", `{"percentage_value":"11"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(http.MethodPut, "/api/composer/settings/tax_rate", `{"percentage_value":"12.5"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	rate, err := settings.GetSettings(models.SettingTaxRate)
	require.NoError(t, err)
	assert.True(t, rate.PercentageValue.Equal(decimal.RequireFromString("12.5")))

	w = ts.do(http.MethodGet, "/api/composer/settings", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeJSON(t, w)["settings"], 1)
}

func TestUpdateTextSettings(t *testing.T) {
	ts, settings, _ := newSettingsServer(t)

	w := ts.do(http.MethodPut, "/api/composer/settings/tax_enabled", `{"text_value":"yes"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPut, "/api/composer/settings/tax_enabled", `{"text_value":"1"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	enabled, err := settings.GetSettings(models.SettingTaxEnabled)
	require.NoError(t, err)
	assert.Equal(t, "true", enabled.TextValue)

	w = ts.do(http.MethodPut, "/api/composer/settings/default_currency", `{"text_value":"EURO"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPut, "/api/composer/settings/default_currency", `{"text_value":"EUR","is_active":false}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, err = settings.GetSettings(models.SettingDefaultCurrency)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	w = ts.do(http.MethodPut, "/api/composer/settings/marketing_rate", `{"percentage_value":"5"}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStockPolicyPreference(t *testing.T) {
	ts, _, prefs := newSettingsServer(t)
	headers := map[string]string{OperatorHeader: "ana"}

	w := ts.do(http.MethodGet, "/api/composer/preferences/stock-policy", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodGet, "/api/composer/preferences/stock-policy", "", headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", decodeJSON(t, w)["stockPolicy"])

	require.NoError(t, prefs.Set("ana", models.PreferenceStockPolicy, "always"))
	w = ts.do(http.MethodGet, "/api/composer/preferences/stock-policy", "", headers)
	assert.Equal(t, "always", decodeJSON(t, w)["stockPolicy"])

	w = ts.do(http.MethodDelete, "/api/composer/preferences/stock-policy", "", headers)
	assert.Equal(t, http.StatusNoContent, w.Code)
	_, err := prefs.Get("ana", models.PreferenceStockPolicy)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
