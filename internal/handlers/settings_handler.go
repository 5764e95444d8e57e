package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"order_composer/internal/models"
	"order_composer/internal/repository"
)

var hundred = decimal.NewFromInt(100)

// SettingsHandler manages composer settings and the preferences an operator
// asked the composer to remember.
type SettingsHandler struct {
	settingsRepo   repository.SettingsRepository
	preferenceRepo repository.PreferenceRepository
	logger         logrus.FieldLogger
}

func NewSettingsHandler(settingsRepo repository.SettingsRepository, preferenceRepo repository.PreferenceRepository, logger logrus.FieldLogger) *SettingsHandler {
	useJSONFieldNames()
	return &SettingsHandler{settingsRepo: settingsRepo, preferenceRepo: preferenceRepo, logger: logger}
}

func (h *SettingsHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/settings", h.ListSettings)
	r.PUT("/settings/:name", h.UpdateSetting)
	r.GET("/preferences/stock-policy", h.GetStockPolicy)
	r.DELETE("/preferences/stock-policy", h.ResetStockPolicy)
}

type UpdateSettingRequest struct {
	PercentageValue *decimal.Decimal `json:"percentage_value"`
	TextValue       *string          `json:"text_value" binding:"omitempty,max=255"`
	IsActive        *bool            `json:"is_active"`
}

func (h *SettingsHandler) ListSettings(c *gin.Context) {
	settings, err := h.settingsRepo.GetAllSettings()
	if err != nil {
		respondError(c, h.logger, "ListSettings", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (h *SettingsHandler) UpdateSetting(c *gin.Context) {
	name := c.Param("name")
	var req UpdateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	setting := models.ComposerSetting{SettingName: name, IsActive: true}
	if req.IsActive != nil {
		setting.IsActive = *req.IsActive
	}

	switch name {
	case models.SettingTaxRate:
		if req.PercentageValue == nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"percentage_value": "is required"}})
			return
		}
		if req.PercentageValue.IsNegative() || req.PercentageValue.GreaterThan(hundred) {
			c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"percentage_value": "must be between 0 and 100"}})
			return
		}
		setting.PercentageValue = *req.PercentageValue
		setting.IsPercentage = true
	case models.SettingTaxEnabled:
		if req.TextValue == nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"text_value": "is required"}})
			return
		}
		enabled, err := strconv.ParseBool(*req.TextValue)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"text_value": "must be true or false"}})
			return
		}
		setting.TextValue = strconv.FormatBool(enabled)
	case models.SettingDefaultCurrency:
		if req.TextValue == nil || len(*req.TextValue) != 3 {
			c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"text_value": "must be exactly 3 characters"}})
			return
		}
		setting.TextValue = *req.TextValue
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown setting"})
		return
	}

	if err := h.settingsRepo.UpsertSettings(&setting); err != nil {
		respondError(c, h.logger, "UpdateSetting", err)
		return
	}
	h.logger.WithField("setting", name).Info("composer setting updated")
	c.JSON(http.StatusOK, setting)
}

func (h *SettingsHandler) GetStockPolicy(c *gin.Context) {
	op := operator(c)
	if op == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": OperatorHeader + " header is required"})
		return
	}
	value, err := h.preferenceRepo.Get(op, models.PreferenceStockPolicy)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		respondError(c, h.logger, "GetStockPolicy", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"operator": op, "stockPolicy": value})
}

func (h *SettingsHandler) ResetStockPolicy(c *gin.Context) {
	op := operator(c)
	if op == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": OperatorHeader + " header is required"})
		return
	}
	if err := h.preferenceRepo.Delete(op, models.PreferenceStockPolicy); err != nil {
		respondError(c, h.logger, "ResetStockPolicy", err)
		return
	}
	c.Status(http.StatusNoContent)
}
