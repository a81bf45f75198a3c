package models

import (
	"time"
)

const (
	NotificationOrderConfirmation = "order_confirmation"
	NotificationPaymentReceipt    = "payment_receipt"
)

// Notification mencatat setiap percobaan kirim email ke customer
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   uint      `gorm:"not null;index" json:"order_id"`
	EventType string    `gorm:"type:varchar(50);not null" json:"event_type"`
	Recipient string    `gorm:"type:varchar(255)" json:"recipient"`
	Sent      bool      `gorm:"not null" json:"sent"`
	Error     string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
