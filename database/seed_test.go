package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/youngalip/savor-backend/models"
	"github.com/youngalip/savor-backend/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	utils.InitLogger()
	os.Exit(m.Run())
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "seed.db")), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	require.NoError(t, Migrate(db))
	return db
}

func TestSeedDefaultsIsIdempotent(t *testing.T) {
	db := openDB(t)
	require.NoError(t, SeedDefaults(db))
	require.NoError(t, SeedDefaults(db))

	var settings []models.Setting
	require.NoError(t, db.Order("id").Find(&settings).Error)
	require.Len(t, settings, len(DefaultSettings))

	byKey := make(map[string]models.Setting)
	for _, s := range settings {
		byKey[s.Key] = s
	}
	assert.Equal(t, "0.07", byKey[models.SettingServiceChargeRate].Value)
	assert.Equal(t, "0.10", byKey[models.SettingTaxRate].Value)
	assert.True(t, byKey[models.SettingTaxRate].IsEditable)
	assert.False(t, byKey["session_duration_hours"].IsEditable)

	var categories []models.MenuCategory
	require.NoError(t, db.Find(&categories).Error)
	require.Len(t, categories, 3)
	stations := make(map[string]models.Station)
	for _, c := range categories {
		stations[c.Name] = c.Station
	}
	assert.Equal(t, models.StationKitchen, stations["Mains"])
	assert.Equal(t, models.StationBar, stations["Drinks"])
	assert.Equal(t, models.StationPastry, stations["Pastry"])
}

func TestSeedTablesAndMenus(t *testing.T) {
	db := openDB(t)
	require.NoError(t, SeedDefaults(db))
	require.NoError(t, SeedTables(db, 3))
	require.NoError(t, SeedTables(db, 3))
	require.NoError(t, SeedDemoMenus(db))

	var tables []models.Table
	require.NoError(t, db.Order("table_number").Find(&tables).Error)
	require.Len(t, tables, 3)
	assert.Equal(t, "T01", tables[0].TableNumber)
	assert.Regexp(t, `^QR_T03_\d+$`, tables[2].QRCode)
	assert.Equal(t, models.TableStatusFree, tables[2].Status)

	var menuCount int64
	require.NoError(t, db.Model(&models.Menu{}).Count(&menuCount).Error)
	assert.EqualValues(t, 6, menuCount)
}

func TestSeedStaff(t *testing.T) {
	db := openDB(t)
	require.NoError(t, SeedStaff(db, ""))

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)

	require.NoError(t, SeedStaff(db, "secret123"))
	require.NoError(t, SeedStaff(db, "another"))
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.EqualValues(t, 5, count)

	var owner models.User
	require.NoError(t, db.Where("email = ?", "owner@savor.local").First(&owner).Error)
	assert.Equal(t, utils.RoleAdmin, owner.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(owner.Password), []byte("secret123")))
}
