package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Menu struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	CategoryID      uint            `gorm:"not null;index" json:"category_id"`
	Category        *MenuCategory   `gorm:"foreignKey:CategoryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"category,omitempty"`
	Name            string          `gorm:"type:varchar(255);not null" json:"name"`
	Description     string          `gorm:"type:text" json:"description"`
	Price           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	StockQuantity   int             `gorm:"not null;default:0" json:"stock_quantity"`
	MinimumStock    int             `gorm:"not null;default:0" json:"minimum_stock"`
	IsAvailable     bool            `gorm:"not null;default:true" json:"is_available"`
	PreparationTime int             `gorm:"not null;default:0" json:"preparation_time"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// IsLowStock -> hanya untuk tampilan, tidak dipakai sebagai aturan pemesanan
func (m *Menu) IsLowStock() bool {
	return m.StockQuantity <= m.MinimumStock
}
