package models

import "time"

const (
	StationOrderPending = "pending"
	StationOrderDone    = "done"
)

// StationOrder menghubungkan satu order item ke satu station setelah order dibayar
type StationOrder struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	OrderID     uint       `gorm:"not null;index" json:"order_id"`
	OrderItemID uint       `gorm:"not null;uniqueIndex" json:"order_item_id"`
	OrderItem   *OrderItem `gorm:"foreignKey:OrderItemID" json:"order_item,omitempty"`
	Station     Station    `gorm:"type:varchar(20);not null;index" json:"station"`
	Status      string     `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	StartedAt   time.Time  `gorm:"not null" json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// OrderSequence -> counter harian untuk nomor order ORD-YYYYMMDD-NNN
type OrderSequence struct {
	Day       string `gorm:"type:varchar(8);primaryKey"`
	LastValue int    `gorm:"not null;default:0"`
}
