package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type SubmissionStatus string

const (
	SubmissionStarted   SubmissionStatus = "STARTED"
	SubmissionSucceeded SubmissionStatus = "SUCCEEDED"
	SubmissionFailed    SubmissionStatus = "FAILED"
)

// OrderSubmission records one submission token so a retried submit never
// posts the same draft twice. Totals are the advisory client values kept for audit.
type OrderSubmission struct {
	ID                 uint             `json:"id" gorm:"primaryKey"`
	Token              string           `json:"token" gorm:"size:64;uniqueIndex;not null"`
	DraftID            string           `json:"draft_id" gorm:"size:64;index;not null"`
	Operator           string           `json:"operator" gorm:"size:100"`
	Status             SubmissionStatus `json:"status" gorm:"size:20;index;not null"`
	Fingerprint        string           `json:"fingerprint" gorm:"size:128"`
	RemoteOrderID      string           `json:"remote_order_id" gorm:"size:64"`
	CreatedCustomerID  string           `json:"created_customer_id" gorm:"size:64"`
	Attempts           int              `json:"attempts" gorm:"default:0"`
	Subtotal           decimal.Decimal  `json:"subtotal" gorm:"type:decimal(20,4);default:0"`
	DiscountAmount     decimal.Decimal  `json:"discount_amount" gorm:"type:decimal(20,4);default:0"`
	TaxAmount          decimal.Decimal  `json:"tax_amount" gorm:"type:decimal(20,4);default:0"`
	ShippingCost       decimal.Decimal  `json:"shipping_cost" gorm:"type:decimal(20,4);default:0"`
	Adjustment         decimal.Decimal  `json:"adjustment" gorm:"type:decimal(20,4);default:0"`
	StoreCreditApplied decimal.Decimal  `json:"store_credit_applied" gorm:"type:decimal(20,4);default:0"`
	GrandTotal         decimal.Decimal  `json:"grand_total" gorm:"type:decimal(20,4);default:0"`
	LastError          *string          `json:"last_error" gorm:"type:text"`
	// OutcomeUnknown is set when the last order call got no backend answer.
	OutcomeUnknown     bool             `json:"outcome_unknown"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}
