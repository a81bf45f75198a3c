package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	PaymentLogPending = "Pending"
	PaymentLogSuccess = "Success"
	PaymentLogFailed  = "Failed"
)

// PaymentLog adalah jejak audit per transaksi gateway (atau kas) untuk satu order
type PaymentLog struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	OrderID       uint            `gorm:"not null;uniqueIndex:idx_payment_log_order_tx" json:"order_id"`
	Order         *Order          `gorm:"foreignKey:OrderID" json:"-"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	TransactionID string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_payment_log_order_tx" json:"transaction_id"`
	Status        string          `gorm:"type:varchar(20);not null;default:'Pending'" json:"status"`
	ResponseData  datatypes.JSON  `json:"response_data,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// PaymentReconciliation menyimpan state terakhir notifikasi gateway, satu baris per order
type PaymentReconciliation struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	OrderID           uint           `gorm:"not null;uniqueIndex" json:"order_id"`
	GatewayOrderID    string         `gorm:"type:varchar(64);not null" json:"gateway_order_id"`
	TransactionID     string         `gorm:"type:varchar(100)" json:"transaction_id"`
	TransactionStatus string         `gorm:"type:varchar(30)" json:"transaction_status"`
	FraudStatus       string         `gorm:"type:varchar(30)" json:"fraud_status"`
	AppliedStatus     string         `gorm:"type:varchar(20)" json:"applied_status"`
	NotificationCount int            `gorm:"not null;default:0" json:"notification_count"`
	LastPayload       datatypes.JSON `json:"last_payload,omitempty"`
	LastNotifiedAt    time.Time      `json:"last_notified_at"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}
