package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/youngalip/savor-backend/models"
	"github.com/youngalip/savor-backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var pricingKeys = []string{models.SettingServiceChargeRate, models.SettingTaxRate}

// SettingsService adalah sumber tarif harga. Cache hanya dibersihkan lewat Invalidate/Reload.
type SettingsService struct {
	db       *gorm.DB
	cache    RateCache
	ttl      time.Duration
	defaults map[string]decimal.Decimal
}

func NewSettingsService(db *gorm.DB, cache RateCache, ttl time.Duration, defaults PricingRates) *SettingsService {
	if cache == nil {
		cache = NewMemoryRateCache()
	}
	return &SettingsService{
		db:    db,
		cache: cache,
		ttl:   ttl,
		defaults: map[string]decimal.Decimal{
			models.SettingServiceChargeRate: defaults.ServiceChargeRate,
			models.SettingTaxRate:           defaults.TaxRate,
		},
	}
}

// GetRate -> nilai decimal sebuah setting, default bila belum ada di tabel
func (s *SettingsService) GetRate(ctx context.Context, key string) (decimal.Decimal, error) {
	if cached, ok, err := s.cache.Get(ctx, key); err != nil {
		// cache mati tidak boleh menghentikan order
		utils.ErrorLogger.WithError(err).WithField("key", key).Warn("rate cache read failed")
	} else if ok {
		if rate, err := decimal.NewFromString(cached); err == nil {
			return rate, nil
		}
	}

	rate, err := s.loadRate(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}

	if err := s.cache.Set(ctx, key, rate.String(), s.ttl); err != nil {
		utils.ErrorLogger.WithError(err).WithField("key", key).Warn("rate cache write failed")
	}
	return rate, nil
}

func (s *SettingsService) loadRate(ctx context.Context, key string) (decimal.Decimal, error) {
	var setting models.Setting
	err := s.db.WithContext(ctx).Where(&models.Setting{Key: key}).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		def, ok := s.defaults[key]
		if !ok {
			return decimal.Zero, invalidRequest("unknown setting %q", key)
		}
		return def, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("load setting %s: %w", key, err)
	}

	rate, err := decimal.NewFromString(setting.Value)
	if err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{"key": key, "value": setting.Value}).
			Warn("setting is not a decimal, falling back to default")
		if def, ok := s.defaults[key]; ok {
			return def, nil
		}
		return decimal.Zero, fmt.Errorf("setting %s is not a decimal", key)
	}
	return rate, nil
}

// PricingRates -> service charge dan pajak sekaligus
func (s *SettingsService) PricingRates(ctx context.Context) (PricingRates, error) {
	sc, err := s.GetRate(ctx, models.SettingServiceChargeRate)
	if err != nil {
		return PricingRates{}, err
	}
	tax, err := s.GetRate(ctx, models.SettingTaxRate)
	if err != nil {
		return PricingRates{}, err
	}
	return PricingRates{ServiceChargeRate: sc, TaxRate: tax}, nil
}

// SetRate mengubah tarif, mencatat history, lalu membersihkan cache key tersebut
func (s *SettingsService) SetRate(ctx context.Context, key string, value decimal.Decimal, changedBy *uint) error {
	if _, ok := s.defaults[key]; !ok {
		return invalidRequest("unknown rate %q", key)
	}
	if value.IsNegative() || value.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return invalidRequest("%s must be between 0 and 1", key)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var setting models.Setting
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where(&models.Setting{Key: key}).First(&setting).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			setting = models.Setting{Key: key, Value: value.String(), Type: models.SettingTypeDecimal, IsEditable: true}
			if err := tx.Create(&setting).Error; err != nil {
				return err
			}
			return tx.Create(&models.SettingHistory{
				SettingID: setting.ID,
				NewValue:  setting.Value,
				ChangedBy: changedBy,
				ChangedAt: time.Now(),
			}).Error
		}
		if err != nil {
			return err
		}
		if !setting.IsEditable {
			return ErrNotEditable
		}

		oldValue := setting.Value
		if err := tx.Model(&setting).Update("value", value.String()).Error; err != nil {
			return err
		}
		return tx.Create(&models.SettingHistory{
			SettingID: setting.ID,
			OldValue:  oldValue,
			NewValue:  value.String(),
			ChangedBy: changedBy,
			ChangedAt: time.Now(),
		}).Error
	})
	if err != nil {
		return err
	}

	utils.InfoLogger.WithFields(logrus.Fields{"key": key, "value": value.String()}).Info("pricing rate updated")
	return s.Invalidate(ctx, key)
}

// Invalidate membuang key dari cache. Tanpa argumen: semua key tarif.
func (s *SettingsService) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		keys = pricingKeys
	}
	return s.cache.Delete(ctx, keys...)
}

// Reload -> invalidate lalu isi ulang cache dari database
func (s *SettingsService) Reload(ctx context.Context) (PricingRates, error) {
	if err := s.Invalidate(ctx); err != nil {
		return PricingRates{}, err
	}
	return s.PricingRates(ctx)
}
