package models

import (
	"strings"
	"time"
)

// Station adalah papan kerja yang menerima item (dapur, bar, pastry)
type Station string

const (
	StationKitchen Station = "kitchen"
	StationBar     Station = "bar"
	StationPastry  Station = "pastry"
)

// AllStations -> urutan tetap untuk iterasi papan station
var AllStations = []Station{StationKitchen, StationBar, StationPastry}

// ParseStation menerima "kitchen", "Kitchen", dst.
func ParseStation(s string) (Station, bool) {
	switch Station(strings.ToLower(strings.TrimSpace(s))) {
	case StationKitchen:
		return StationKitchen, true
	case StationBar:
		return StationBar, true
	case StationPastry:
		return StationPastry, true
	}
	return "", false
}

type MenuCategory struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	Station   Station   `gorm:"type:varchar(20)" json:"station"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
