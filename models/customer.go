package models

import (
	"time"

	"gorm.io/gorm"
)

// Customer adalah identitas anonim per perangkat. Dihapus (soft delete) setelah tidak aktif.
type Customer struct {
	ID               uint           `gorm:"primaryKey" json:"-"`
	UUID             string         `gorm:"type:varchar(36);uniqueIndex;not null" json:"customer_uuid"`
	DeviceID         *string        `gorm:"type:varchar(255);uniqueIndex" json:"-"`
	SessionToken     *string        `gorm:"type:varchar(64);uniqueIndex" json:"-"`
	Email            string         `gorm:"type:varchar(255)" json:"email,omitempty"`
	UserAgent        string         `gorm:"type:varchar(512)" json:"-"`
	IPAddress        string         `gorm:"type:varchar(64)" json:"-"`
	TableID          *uint          `gorm:"index" json:"table_id,omitempty"`
	Table            *Table         `gorm:"foreignKey:TableID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
	LastActivity     time.Time      `gorm:"not null;index" json:"last_activity"`
	SessionExpiresAt *time.Time     `json:"session_expires_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

// HasValidSession -> token masih berlaku pada waktu now
func (c *Customer) HasValidSession(now time.Time) bool {
	return c.SessionToken != nil && c.SessionExpiresAt != nil && c.SessionExpiresAt.After(now)
}
