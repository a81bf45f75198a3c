package database

import (
	"fmt"

	"github.com/youngalip/savor-backend/models"
	"github.com/youngalip/savor-backend/utils"
	"gorm.io/gorm"
)

// AllModels -> urutan migrasi mengikuti dependensi foreign key
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Table{},
		&models.Customer{},
		&models.MenuCategory{},
		&models.Menu{},
		&models.Order{},
		&models.OrderItem{},
		&models.StationOrder{},
		&models.OrderSequence{},
		&models.PaymentLog{},
		&models.PaymentReconciliation{},
		&models.Notification{},
		&models.Setting{},
		&models.SettingHistory{},
	}
}

// Migrate menjalankan AutoMigrate untuk semua tabel
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	utils.InfoLogger.Info("AutoMigrate completed.")
	return nil
}
