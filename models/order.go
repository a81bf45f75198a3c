package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment status order. Hanya boleh maju: Pending -> Paid atau Pending -> Failed.
const (
	PaymentStatusPending = "Pending"
	PaymentStatusPaid    = "Paid"
	PaymentStatusFailed  = "Failed"
)

// Status tampilan untuk papan kasir
const (
	DisplayStatusPendingPayment = "pending_payment"
	DisplayStatusInProgress     = "in_progress"
	DisplayStatusReady          = "ready"
	DisplayStatusCompleted      = "completed"
	DisplayStatusFailed         = "failed"
)

type Order struct {
	ID                  uint            `gorm:"primaryKey" json:"id"`
	OrderUUID           string          `gorm:"type:varchar(36);uniqueIndex;not null" json:"order_uuid"`
	OrderNumber         string          `gorm:"type:varchar(32);uniqueIndex;not null" json:"order_number"`
	CustomerID          uint            `gorm:"not null;index" json:"-"`
	Customer            *Customer       `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	TableID             uint            `gorm:"not null;index" json:"table_id"`
	Table               *Table          `gorm:"foreignKey:TableID" json:"table,omitempty"`
	Subtotal            decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	ServiceChargeRate   decimal.Decimal `gorm:"type:decimal(5,4);not null" json:"service_charge_rate"`
	ServiceChargeAmount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"service_charge_amount"`
	TaxRate             decimal.Decimal `gorm:"type:decimal(5,4);not null" json:"tax_rate"`
	TaxAmount           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"tax_amount"`
	TotalAmount         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	PaymentStatus       string          `gorm:"type:varchar(20);not null;default:'Pending';index" json:"payment_status"`
	PaymentReference    *string         `gorm:"type:varchar(100)" json:"payment_reference,omitempty"`
	Notes               string          `gorm:"type:text" json:"notes,omitempty"`
	PaidAt              *time.Time      `json:"paid_at,omitempty"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty"`
	SessionExpiresAt    time.Time       `gorm:"not null;index" json:"session_expires_at"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	Items               []OrderItem     `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

func (o *Order) IsPaid() bool {
	return o.PaymentStatus == PaymentStatusPaid
}

func (o *Order) IsCompleted() bool {
	return o.CompletedAt != nil
}

// AllItemsDone -> butuh Items sudah di-preload
func (o *Order) AllItemsDone() bool {
	if len(o.Items) == 0 {
		return false
	}
	for _, item := range o.Items {
		if item.Status != ItemStatusDone {
			return false
		}
	}
	return true
}

// DisplayStatus -> status gabungan yang ditampilkan di papan kasir
func (o *Order) DisplayStatus() string {
	switch {
	case o.PaymentStatus == PaymentStatusFailed:
		return DisplayStatusFailed
	case o.PaymentStatus == PaymentStatusPending:
		return DisplayStatusPendingPayment
	case o.CompletedAt != nil:
		return DisplayStatusCompleted
	case o.AllItemsDone():
		return DisplayStatusReady
	default:
		return DisplayStatusInProgress
	}
}
