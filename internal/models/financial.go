package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SettingTaxRate         = "tax_rate"
	SettingTaxEnabled      = "tax_enabled"
	SettingDefaultCurrency = "default_currency"

	PreferenceStockPolicy = "stock_policy"
)

type ComposerSetting struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	SettingName     string          `json:"setting_name" gorm:"uniqueIndex;not null"` // tax_rate, tax_enabled, default_currency
	PercentageValue decimal.Decimal `json:"percentage_value" gorm:"type:decimal(10,4);default:0"`
	FixedAmount     decimal.Decimal `json:"fixed_amount" gorm:"type:decimal(20,4);default:0"`
	TextValue       string          `json:"text_value"`
	IsPercentage    bool            `json:"is_percentage"`
	IsActive        bool            `json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OperatorPreference keeps choices an operator asked the composer to remember,
// e.g. "always allow" for stock conflicts.
type OperatorPreference struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Operator  string    `json:"operator" gorm:"uniqueIndex:uniq_operator_pref;size:100;not null"`
	Key       string    `json:"key" gorm:"uniqueIndex:uniq_operator_pref;size:100;not null"`
	Value     string    `json:"value" gorm:"size:255"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
