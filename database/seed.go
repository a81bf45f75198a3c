package database

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/youngalip/savor-backend/models"
	"github.com/youngalip/savor-backend/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultSettings -> nilai awal tabel settings
var DefaultSettings = []models.Setting{
	{Key: models.SettingServiceChargeRate, Value: "0.07", Type: models.SettingTypeDecimal, Description: "Service charge rate (7%)", IsEditable: true},
	{Key: models.SettingTaxRate, Value: "0.10", Type: models.SettingTypeDecimal, Description: "Restaurant tax rate (10%)", IsEditable: true},
	{Key: "business_name", Value: "Savor Bakery Cafe", Type: models.SettingTypeString, Description: "Nama bisnis", IsEditable: true},
	{Key: "session_duration_hours", Value: "2", Type: models.SettingTypeInteger, Description: "Durasi session (jam)", IsEditable: false},
}

// DefaultCategories -> satu kategori per station
var DefaultCategories = []models.MenuCategory{
	{Name: "Mains", Station: models.StationKitchen, IsActive: true},
	{Name: "Drinks", Station: models.StationBar, IsActive: true},
	{Name: "Pastry", Station: models.StationPastry, IsActive: true},
}

// SeedDefaults mengisi settings dan kategori station. Aman dipanggil berulang.
func SeedDefaults(db *gorm.DB) error {
	for _, s := range DefaultSettings {
		setting := s
		res := db.Where(models.Setting{Key: setting.Key}).FirstOrCreate(&setting)
		if res.Error != nil {
			return fmt.Errorf("seed setting %s: %w", setting.Key, res.Error)
		}
		// false adalah zero value, jadi default:true kolom yang terpakai saat insert
		if res.RowsAffected == 1 && !s.IsEditable {
			if err := db.Model(&setting).Update("is_editable", false).Error; err != nil {
				return fmt.Errorf("seed setting %s: %w", setting.Key, err)
			}
		}
	}
	for _, c := range DefaultCategories {
		category := c
		if err := db.Where(models.MenuCategory{Name: category.Name}).FirstOrCreate(&category).Error; err != nil {
			return fmt.Errorf("seed category %s: %w", category.Name, err)
		}
	}
	return nil
}

// SeedTables membuat meja T01..Tn beserta kode QR-nya bila belum ada
func SeedTables(db *gorm.DB, count int) error {
	now := time.Now()
	for i := 1; i <= count; i++ {
		number := fmt.Sprintf("T%02d", i)
		table := models.Table{
			TableNumber:   number,
			QRCode:        models.TableQRCode(number, now),
			Status:        models.TableStatusFree,
			QRGeneratedAt: &now,
		}
		if err := db.Where(models.Table{TableNumber: number}).FirstOrCreate(&table).Error; err != nil {
			return fmt.Errorf("seed table %s: %w", number, err)
		}
	}
	return nil
}

// SeedDemoMenus -> beberapa menu contoh per kategori
func SeedDemoMenus(db *gorm.DB) error {
	demo := map[string][]models.Menu{
		"Mains": {
			{Name: "Beef Rendang", Price: decimal.NewFromInt(38000), StockQuantity: 20, MinimumStock: 5, PreparationTime: 8},
			{Name: "Chicken Satay", Price: decimal.NewFromInt(32000), StockQuantity: 25, MinimumStock: 5, PreparationTime: 15},
		},
		"Drinks": {
			{Name: "Americano", Price: decimal.NewFromInt(18000), StockQuantity: 100, MinimumStock: 20, PreparationTime: 5},
			{Name: "Cold Brew Milk", Price: decimal.NewFromInt(28000), StockQuantity: 60, MinimumStock: 10, PreparationTime: 3},
		},
		"Pastry": {
			{Name: "Red Velvet Cake", Price: decimal.NewFromInt(35000), StockQuantity: 10, MinimumStock: 2, PreparationTime: 5},
			{Name: "Chocolate Chip Cookies", Price: decimal.NewFromInt(18000), StockQuantity: 40, MinimumStock: 10, PreparationTime: 2},
		},
	}

	for categoryName, menus := range demo {
		var category models.MenuCategory
		if err := db.Where("name = ?", categoryName).First(&category).Error; err != nil {
			return fmt.Errorf("category %s: %w", categoryName, err)
		}
		for _, m := range menus {
			menu := m
			menu.CategoryID = category.ID
			menu.IsAvailable = true
			if err := db.Where(models.Menu{Name: menu.Name}).FirstOrCreate(&menu).Error; err != nil {
				return fmt.Errorf("seed menu %s: %w", menu.Name, err)
			}
		}
	}
	return nil
}

// SeedStaff membuat akun staff default bila tabel users masih kosong
func SeedStaff(db *gorm.DB, password string) error {
	if password == "" {
		return nil
	}

	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	staff := []models.User{
		{Name: "Chef", Email: "kitchen@savor.local", Role: utils.RoleKitchen},
		{Name: "Barista", Email: "bar@savor.local", Role: utils.RoleBar},
		{Name: "Baker", Email: "pastry@savor.local", Role: utils.RolePastry},
		{Name: "Kasir", Email: "kasir@savor.local", Role: utils.RoleCashier},
		{Name: "Owner", Email: "owner@savor.local", Role: utils.RoleAdmin},
	}
	for i := range staff {
		staff[i].Password = string(hash)
		staff[i].IsActive = true
	}
	if err := db.Create(&staff).Error; err != nil {
		return fmt.Errorf("seed staff: %w", err)
	}
	utils.InfoLogger.WithField("count", len(staff)).Info("staff accounts seeded")
	return nil
}
