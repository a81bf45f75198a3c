package models

import (
	"fmt"
	"time"
)

const (
	TableStatusFree     = "Free"
	TableStatusOccupied = "Occupied"
)

type Table struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	TableNumber   string     `gorm:"type:varchar(50);uniqueIndex;not null" json:"table_number"`
	QRCode        string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"qr_code"`
	Status        string     `gorm:"type:varchar(20);not null;default:'Free'" json:"status"`
	QRGeneratedAt *time.Time `json:"qr_generated_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableQRCode -> nilai QR yang dicetak di meja: QR_{tableNumber}_{unix}
func TableQRCode(tableNumber string, generatedAt time.Time) string {
	return fmt.Sprintf("QR_%s_%d", tableNumber, generatedAt.Unix())
}
