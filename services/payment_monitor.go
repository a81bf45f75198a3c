package services

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/youngalip/savor-backend/models"
	"github.com/youngalip/savor-backend/utils"
	"gorm.io/gorm"
)

// PaymentMetrics menyimpan metrik kerja monitor
type PaymentMetrics struct {
	AssignmentRetries  int64 `json:"assignment_retries"`
	AssignmentFailures int64 `json:"assignment_failures"`
	GatewayPolls       int64 `json:"gateway_polls"`
	GatewayPollErrors  int64 `json:"gateway_poll_errors"`
	PaymentsApplied    int64 `json:"payments_applied"`
}

// MonitorRun -> hasil satu putaran ProcessOnce
type MonitorRun struct {
	Assigned int `json:"assigned"`
	Requeued int `json:"requeued"`
	Polled   int `json:"polled"`
	Applied  int `json:"applied"`
}

// PaymentMonitor menangani retry pembagian station yang gagal setelah pembayaran, dan
// menanyakan status ke gateway untuk order Pending yang notifikasinya belum datang.
type PaymentMonitor struct {
	db        *gorm.DB
	assigner  *StationAssigner
	payments  *PaymentService
	metrics   PaymentMetrics
	retry     []uint
	pollAfter time.Duration
	pollLimit int
	mutex     sync.Mutex
	now       func() time.Time
}

// NewPaymentMonitor membuat instance baru PaymentMonitor
func NewPaymentMonitor(db *gorm.DB, assigner *StationAssigner, payments *PaymentService) *PaymentMonitor {
	return &PaymentMonitor{
		db:        db,
		assigner:  assigner,
		payments:  payments,
		retry:     make([]uint, 0),
		pollAfter: 2 * time.Minute,
		pollLimit: 50,
		now:       time.Now,
	}
}

// QueueAssignment menambahkan order ke antrian retry, tanpa duplikat
func (pm *PaymentMonitor) QueueAssignment(orderID uint) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	for _, id := range pm.retry {
		if id == orderID {
			return
		}
	}
	pm.retry = append(pm.retry, orderID)
	utils.InfoLogger.WithField("order_id", orderID).Info("order queued for station assignment retry")
}

// Pending -> jumlah order di antrian retry
func (pm *PaymentMonitor) Pending() int {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()
	return len(pm.retry)
}

// ProcessOnce menjalankan satu putaran: retry assignment lalu polling gateway
func (pm *PaymentMonitor) ProcessOnce(ctx context.Context) MonitorRun {
	var run MonitorRun

	pm.mutex.Lock()
	queue := pm.retry
	pm.retry = make([]uint, 0)
	pm.mutex.Unlock()

	for _, orderID := range queue {
		pm.bump(func(m *PaymentMetrics) { m.AssignmentRetries++ })
		policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(100*time.Millisecond), 2), ctx)
		err := backoff.Retry(func() error {
			_, err := pm.assigner.Assign(ctx, orderID)
			return err
		}, policy)
		if err != nil {
			utils.ErrorLogger.WithError(err).WithField("order_id", orderID).Warn("station assignment retry failed")
			pm.bump(func(m *PaymentMetrics) { m.AssignmentFailures++ })
			pm.QueueAssignment(orderID)
			run.Requeued++
			continue
		}
		run.Assigned++
	}

	if pm.payments == nil || !pm.payments.HasGateway() {
		return run
	}

	now := pm.now()
	var uuids []string
	err := pm.db.WithContext(ctx).Model(&models.Order{}).
		Where("orders.payment_status = ? AND orders.created_at < ? AND orders.session_expires_at > ?",
			models.PaymentStatusPending, now.Add(-pm.pollAfter), now).
		Where("EXISTS (SELECT 1 FROM payment_logs WHERE payment_logs.order_id = orders.id AND payment_logs.status = ?)",
			models.PaymentLogPending).
		Order("orders.created_at").
		Limit(pm.pollLimit).
		Pluck("orders.order_uuid", &uuids).Error
	if err != nil {
		utils.ErrorLogger.WithError(err).Error("load pending orders for polling failed")
		return run
	}

	for _, id := range uuids {
		if ctx.Err() != nil {
			break
		}
		pm.bump(func(m *PaymentMetrics) { m.GatewayPolls++ })
		run.Polled++
		res, err := pm.payments.PollGateway(ctx, id)
		if err != nil {
			pm.bump(func(m *PaymentMetrics) { m.GatewayPollErrors++ })
			utils.ErrorLogger.WithError(err).WithField("order_uuid", id).Debug("gateway status poll failed")
			continue
		}
		if res.Applied {
			run.Applied++
			pm.bump(func(m *PaymentMetrics) { m.PaymentsApplied++ })
		}
	}

	if run != (MonitorRun{}) {
		utils.InfoLogger.WithFields(logrus.Fields{
			"assigned": run.Assigned,
			"requeued": run.Requeued,
			"polled":   run.Polled,
			"applied":  run.Applied,
		}).Info("payment monitor run")
	}
	return run
}

func (pm *PaymentMonitor) bump(f func(*PaymentMetrics)) {
	pm.mutex.Lock()
	f(&pm.metrics)
	pm.mutex.Unlock()
}

// GetMetrics mengembalikan metrik saat ini
func (pm *PaymentMonitor) GetMetrics() PaymentMetrics {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()
	return pm.metrics
}
