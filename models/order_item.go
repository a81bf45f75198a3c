package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ItemStatusPending = "Pending"
	ItemStatusDone    = "Done"
)

type OrderItem struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	OrderID uint `gorm:"not null;index" json:"order_id"`
	// Omitting Order field from JSON to avoid recursive nesting
	Order        *Order          `gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	MenuID       uint            `gorm:"not null;index" json:"menu_id"`
	Menu         *Menu           `gorm:"foreignKey:MenuID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"menu,omitempty"`
	Quantity     int             `gorm:"not null" json:"quantity"`
	Price        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Subtotal     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	SpecialNotes string          `gorm:"type:text" json:"special_notes,omitempty"`
	Status       string          `gorm:"type:varchar(20);not null;default:'Pending';index" json:"status"`
	DoneAt       *time.Time      `json:"done_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
