package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/youngalip/savor-backend/models"
	"github.com/youngalip/savor-backend/utils"
	"gorm.io/gorm"
)

// SweepResult -> ringkasan satu kali sweep
type SweepResult struct {
	ExpiredOrders   int         `json:"expired_orders"`
	FreedTables     int         `json:"freed_tables"`
	PurgedCustomers int         `json:"purged_customers"`
	Monitor         *MonitorRun `json:"monitor,omitempty"`
}

// SessionSweeper menggagalkan order Pending yang sesinya habis, mengosongkan meja,
// dan menghapus customer yang lama tidak aktif
type SessionSweeper struct {
	db        *gorm.DB
	monitor   *PaymentMonitor
	events    EventPublisher
	retention time.Duration
	interval  time.Duration
	now       func() time.Time

	mu      sync.Mutex
	stop    chan struct{}
	stopped chan struct{}
}

func NewSessionSweeper(db *gorm.DB, monitor *PaymentMonitor, events EventPublisher, retention, interval time.Duration) *SessionSweeper {
	if events == nil {
		events = nopPublisher{}
	}
	return &SessionSweeper{
		db:        db,
		monitor:   monitor,
		events:    events,
		retention: retention,
		interval:  interval,
		now:       time.Now,
	}
}

// Sweep dijalankan periodik dan bisa dipicu admin. Setiap order diproses di transaksinya
// sendiri, pembayaran yang masuk bersamaan selalu menang.
func (s *SessionSweeper) Sweep(ctx context.Context) (*SweepResult, error) {
	now := s.now()
	db := s.db.WithContext(ctx)
	result := &SweepResult{}

	var candidates []models.Order
	if err := db.Select("id", "order_uuid", "order_number", "table_id").
		Where("session_expires_at < ? AND payment_status = ?", now, models.PaymentStatusPending).
		Order("id").Find(&candidates).Error; err != nil {
		return nil, err
	}

	freedTables := make(map[uint]bool)
	for _, candidate := range candidates {
		var failed, freed bool
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			failed, err = failPendingOrder(tx, candidate.ID)
			if err != nil || !failed {
				return err
			}
			freed, err = releaseTableIfIdle(tx, candidate.TableID, now)
			return err
		})
		if err != nil {
			utils.ErrorLogger.WithError(err).WithField("order_uuid", candidate.OrderUUID).Error("expire order failed")
			continue
		}
		if !failed {
			continue
		}
		result.ExpiredOrders++
		s.events.Publish(EventOrderFailed, nil, map[string]interface{}{
			"order_uuid":     candidate.OrderUUID,
			"order_number":   candidate.OrderNumber,
			"payment_status": models.PaymentStatusFailed,
			"reason":         "session_expired",
		})
		if freed {
			freedTables[candidate.TableID] = true
		}
	}

	idle, err := s.releaseIdleTables(ctx, now)
	if err != nil {
		return nil, err
	}
	for _, id := range idle {
		freedTables[id] = true
	}
	for id := range freedTables {
		s.events.Publish(EventTableUpdate, nil, map[string]interface{}{"table_id": id, "status": models.TableStatusFree})
	}
	result.FreedTables = len(freedTables)

	purged, err := s.purgeCustomers(ctx, now)
	if err != nil {
		return nil, err
	}
	result.PurgedCustomers = purged

	if s.monitor != nil {
		run := s.monitor.ProcessOnce(ctx)
		result.Monitor = &run
	}

	if result.ExpiredOrders > 0 || result.FreedTables > 0 || result.PurgedCustomers > 0 {
		utils.InfoLogger.WithFields(logrus.Fields{
			"expired_orders":   result.ExpiredOrders,
			"freed_tables":     result.FreedTables,
			"purged_customers": result.PurgedCustomers,
		}).Info("session sweep finished")
	}
	return result, nil
}

// releaseIdleTables -> meja Occupied yang tidak lagi dipegang order maupun sesi customer
func (s *SessionSweeper) releaseIdleTables(ctx context.Context, now time.Time) ([]uint, error) {
	var tableIDs []uint
	err := s.db.WithContext(ctx).Model(&models.Table{}).
		Where("status = ?", models.TableStatusOccupied).
		Where("NOT EXISTS (SELECT 1 FROM customers WHERE customers.table_id = tables.id AND customers.deleted_at IS NULL AND customers.session_expires_at > ?)", now).
		Pluck("id", &tableIDs).Error
	if err != nil {
		return nil, err
	}

	var freed []uint
	for _, id := range tableIDs {
		var ok bool
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			ok, err = releaseTableIfIdle(tx, id, now)
			return err
		})
		if err != nil {
			return nil, err
		}
		if ok {
			freed = append(freed, id)
		}
	}
	return freed, nil
}

// purgeCustomers melepas identitas (device id, token) lalu soft delete customer
// yang tidak aktif melebihi retensi
func (s *SessionSweeper) purgeCustomers(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.retention)
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.Customer{}).
		Where("last_activity < ?", cutoff).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Customer{}).Where("id IN ?", ids).
			Updates(map[string]interface{}{"device_id": nil, "session_token": nil, "session_expires_at": nil}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&models.Customer{}).Error
	})
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Start menjalankan sweep pada interval tetap sampai Stop dipanggil
func (s *SessionSweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.stopped = make(chan struct{})

	go func(stop <-chan struct{}, stopped chan<- struct{}) {
		defer close(stopped)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), s.interval)
				if _, err := s.Sweep(ctx); err != nil {
					utils.ErrorLogger.WithError(err).Error("session sweep failed")
				}
				cancel()
			}
		}
	}(s.stop, s.stopped)

	utils.InfoLogger.WithField("interval", s.interval.String()).Info("session sweeper started")
}

// Stop menunggu putaran yang sedang berjalan selesai
func (s *SessionSweeper) Stop() {
	s.mu.Lock()
	stop, stopped := s.stop, s.stopped
	s.stop, s.stopped = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-stopped
	utils.InfoLogger.Info("session sweeper stopped")
}
