package models

import "time"

const (
	SettingServiceChargeRate = "service_charge_rate"
	SettingTaxRate           = "tax_rate"
)

const (
	SettingTypeDecimal = "decimal"
	SettingTypeInteger = "integer"
	SettingTypeString  = "string"
	SettingTypeBoolean = "boolean"
)

type Setting struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Key         string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"key"`
	Value       string    `gorm:"type:varchar(255);not null" json:"value"`
	Type        string    `gorm:"type:varchar(20);not null;default:'string'" json:"type"`
	Description string    `gorm:"type:varchar(255)" json:"description"`
	IsEditable  bool      `gorm:"not null;default:true" json:"is_editable"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type SettingHistory struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SettingID uint      `gorm:"not null;index" json:"setting_id"`
	OldValue  string    `gorm:"type:varchar(255)" json:"old_value"`
	NewValue  string    `gorm:"type:varchar(255);not null" json:"new_value"`
	ChangedBy *uint     `json:"changed_by,omitempty"`
	ChangedAt time.Time `gorm:"not null" json:"changed_at"`
}
