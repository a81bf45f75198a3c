package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/youngalip/savor-backend/models"
	"github.com/youngalip/savor-backend/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssignmentRetrier menampung order yang gagal dibagi ke station untuk dicoba lagi
type AssignmentRetrier interface {
	QueueAssignment(orderID uint)
}

// PostPaymentHandler menjalankan efek samping setelah order menjadi Paid, baik dari
// gateway maupun kasir. Tidak ada langkah di sini yang membatalkan pembayaran.
type PostPaymentHandler struct {
	db       *gorm.DB
	assigner *StationAssigner
	notifier Notifier
	events   EventPublisher
	retry    AssignmentRetrier
}

func NewPostPaymentHandler(db *gorm.DB, assigner *StationAssigner, notifier Notifier, events EventPublisher) *PostPaymentHandler {
	if events == nil {
		events = nopPublisher{}
	}
	return &PostPaymentHandler{db: db, assigner: assigner, notifier: notifier, events: events}
}

// UseRetryQueue dipasang setelah PaymentMonitor dibuat
func (h *PostPaymentHandler) UseRetryQueue(retry AssignmentRetrier) {
	h.retry = retry
}

func (h *PostPaymentHandler) Handle(ctx context.Context, orderID uint) {
	var order models.Order
	err := h.db.WithContext(ctx).Preload("Items.Menu").Preload("Table").Preload("Customer").First(&order, orderID).Error
	if err != nil {
		utils.ErrorLogger.WithError(err).WithField("order_id", orderID).Error("reload paid order failed")
		return
	}

	var stations []models.Station
	if h.assigner != nil {
		stations, err = h.assigner.Assign(ctx, order.ID)
		if err != nil {
			utils.ErrorLogger.WithError(err).WithField("order_uuid", order.OrderUUID).Error("station assignment failed, queued for retry")
			if h.retry != nil {
				h.retry.QueueAssignment(order.ID)
			}
		}
	}

	if h.notifier != nil && order.Customer != nil && order.Customer.Email != "" {
		if err := h.notifier.Send(ctx, models.NotificationPaymentReceipt, &order); err != nil {
			utils.ErrorLogger.WithError(err).WithField("order_uuid", order.OrderUUID).Warn("payment receipt email failed")
		}
	}

	h.events.Publish(EventPaymentUpdate, nil, summarizeOrders([]models.Order{order})[0])
	if len(stations) > 0 {
		h.events.Publish(EventStationUpdate, stations, map[string]interface{}{
			"order_id":     order.ID,
			"order_number": order.OrderNumber,
		})
	}
}

// markPaid -> Pending ke Paid, false bila order sudah tidak Pending
func markPaid(tx *gorm.DB, orderID uint, reference string, now time.Time) (bool, error) {
	result := tx.Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", orderID, models.PaymentStatusPending).
		Updates(map[string]interface{}{
			"payment_status":    models.PaymentStatusPaid,
			"paid_at":           now,
			"payment_reference": reference,
		})
	if result.Error != nil {
		return false, fmt.Errorf("mark order %d paid: %w", orderID, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// failPendingOrder -> Pending ke Failed, false bila pembayaran lebih dulu menang
func failPendingOrder(tx *gorm.DB, orderID uint) (bool, error) {
	result := tx.Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", orderID, models.PaymentStatusPending).
		Update("payment_status", models.PaymentStatusFailed)
	if result.Error != nil {
		return false, fmt.Errorf("fail order %d: %w", orderID, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// releaseTableIfIdle mengosongkan meja bila tidak ada order lain yang masih menahannya
func releaseTableIfIdle(tx *gorm.DB, tableID uint, now time.Time) (bool, error) {
	var holding int64
	err := tx.Model(&models.Order{}).
		Where("table_id = ? AND session_expires_at > ?", tableID, now).
		Where("payment_status = ? OR (payment_status = ? AND completed_at IS NULL)",
			models.PaymentStatusPending, models.PaymentStatusPaid).
		Count(&holding).Error
	if err != nil {
		return false, err
	}
	if holding > 0 {
		return false, nil
	}
	result := tx.Model(&models.Table{}).
		Where("id = ? AND status <> ?", tableID, models.TableStatusFree).
		Update("status", models.TableStatusFree)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func lockOrder(tx *gorm.DB, query string, args ...interface{}) (*models.Order, error) {
	var order models.Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where(query, args...).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// recordPaymentLog -> hasil pembayaran menimpa log transaksi yang sama, atau log terbuka
// (Pending/Failed) terakhir milik order, sehingga checkout tidak meninggalkan baris Pending basi
func recordPaymentLog(tx *gorm.DB, entry models.PaymentLog) error {
	var open models.PaymentLog
	err := tx.Where("order_id = ? AND transaction_id = ?", entry.OrderID, entry.TransactionID).First(&open).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = tx.Where("order_id = ? AND status IN ?", entry.OrderID, []string{models.PaymentLogPending, models.PaymentLogFailed}).
			Order("id DESC").First(&open).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tx.Create(&entry).Error
	}
	if err != nil {
		return err
	}
	return tx.Model(&open).Updates(map[string]interface{}{
		"transaction_id": entry.TransactionID,
		"status":         entry.Status,
		"amount":         entry.Amount,
		"response_data":  entry.ResponseData,
	}).Error
}

func jsonPayload(v interface{}) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

// ValidateCashPayment -> kasir menerima uang tunai untuk order Pending
func (s *OrderService) ValidateCashPayment(ctx context.Context, orderID uint) (*models.Order, error) {
	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, "id = ?", orderID)
		if err != nil {
			return err
		}
		switch order.PaymentStatus {
		case models.PaymentStatusPaid:
			return ErrAlreadyPaid
		case models.PaymentStatusFailed:
			return invalidTransition(order.PaymentStatus, "order %s has failed and cannot be paid", order.OrderNumber)
		}

		reference := "CASH-" + order.OrderNumber
		ok, err := markPaid(tx, order.ID, reference, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyPaid
		}
		return recordPaymentLog(tx, models.PaymentLog{
			OrderID:       order.ID,
			Amount:        order.TotalAmount,
			TransactionID: reference,
			Status:        models.PaymentLogSuccess,
			ResponseData:  jsonPayload(map[string]interface{}{"method": "cash", "validated_at": now}),
		})
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithField("order_id", orderID).Info("cash payment validated")
	if s.paid != nil {
		s.paid.Handle(ctx, orderID)
	}
	return s.GetOrderByID(ctx, orderID)
}

// CancelCashOrder -> kasir membatalkan order yang belum dibayar
func (s *OrderService) CancelCashOrder(ctx context.Context, orderID uint) (*models.Order, error) {
	now := s.now()
	var tableID uint
	var freed bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, "id = ?", orderID)
		if err != nil {
			return err
		}
		switch order.PaymentStatus {
		case models.PaymentStatusPaid:
			return ErrAlreadyPaid
		case models.PaymentStatusFailed:
			return invalidTransition(order.PaymentStatus, "order %s is already cancelled", order.OrderNumber)
		}
		ok, err := failPendingOrder(tx, order.ID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyPaid
		}
		tableID = order.TableID
		freed, err = releaseTableIfIdle(tx, order.TableID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	order, err := s.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	utils.InfoLogger.WithField("order_number", order.OrderNumber).Info("order cancelled by cashier")
	s.events.Publish(EventOrderFailed, nil, summarizeOrders([]models.Order{*order})[0])
	if freed {
		s.events.Publish(EventTableUpdate, nil, map[string]interface{}{"table_id": tableID, "status": models.TableStatusFree})
	}
	return order, nil
}

// ItemDoneResult -> hasil menandai satu item selesai
type ItemDoneResult struct {
	Item           models.OrderItem `json:"item"`
	Order          *models.Order    `json:"order"`
	OrderCompleted bool             `json:"order_completed"`
	Station        models.Station   `json:"station,omitempty"`
}

// MarkItemDone menandai item selesai. Baris order dikunci agar dua station yang menyelesaikan
// item terakhir bersamaan hanya menghasilkan satu penyelesaian order.
// station nil berarti dipanggil oleh kasir/admin tanpa batasan station.
func (s *OrderService) MarkItemDone(ctx context.Context, itemID uint, station *models.Station) (*ItemDoneResult, error) {
	now := s.now()
	result := &ItemDoneResult{}
	var tableFreed bool
	var tableID uint

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.OrderItem
		err := tx.First(&item, itemID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrItemNotFound
		}
		if err != nil {
			return err
		}

		order, err := lockOrder(tx, "id = ?", item.OrderID)
		if err != nil {
			return err
		}
		if order.PaymentStatus != models.PaymentStatusPaid {
			return ErrNotYetPaid
		}

		var so models.StationOrder
		err = tx.Where("order_item_id = ?", item.ID).First(&so).Error
		switch {
		case err == nil:
			result.Station = so.Station
			if station != nil && so.Station != *station {
				return ErrItemNotFound
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		case station != nil:
			// belum ada penugasan, station dicocokkan lewat kategori menu
			var menu models.Menu
			if err := tx.Select("id", "category_id").First(&menu, item.MenuID).Error; err != nil {
				return err
			}
			owner, ok := s.stations.StationFor(menu.CategoryID)
			if !ok || owner != *station {
				return ErrItemNotFound
			}
			result.Station = owner
		}

		updated := tx.Model(&models.OrderItem{}).
			Where("id = ? AND status = ?", item.ID, models.ItemStatusPending).
			Updates(map[string]interface{}{"status": models.ItemStatusDone, "done_at": now})
		if updated.Error != nil {
			return updated.Error
		}
		if updated.RowsAffected == 0 {
			return ErrAlreadyDone
		}

		if err := tx.Model(&models.StationOrder{}).
			Where("order_item_id = ? AND status = ?", item.ID, models.StationOrderPending).
			Updates(map[string]interface{}{"status": models.StationOrderDone, "completed_at": now}).Error; err != nil {
			return err
		}

		var remaining int64
		if err := tx.Model(&models.OrderItem{}).
			Where("order_id = ? AND status = ?", order.ID, models.ItemStatusPending).
			Count(&remaining).Error; err != nil {
			return err
		}
		if remaining == 0 {
			completed := tx.Model(&models.Order{}).
				Where("id = ? AND completed_at IS NULL", order.ID).
				Update("completed_at", now)
			if completed.Error != nil {
				return completed.Error
			}
			result.OrderCompleted = completed.RowsAffected == 1
			if result.OrderCompleted {
				tableID = order.TableID
				if tableFreed, err = releaseTableIfIdle(tx, order.TableID, now); err != nil {
					return err
				}
			}
		}

		return tx.Preload("Menu").First(&result.Item, item.ID).Error
	})
	if err != nil {
		return nil, err
	}

	order, err := s.GetOrderByID(ctx, result.Item.OrderID)
	if err != nil {
		return nil, err
	}
	result.Order = order

	utils.InfoLogger.WithFields(logrus.Fields{
		"order_number": order.OrderNumber,
		"item_id":      itemID,
		"completed":    result.OrderCompleted,
	}).Info("order item done")

	var targets []models.Station
	if result.Station != "" {
		targets = []models.Station{result.Station}
	}
	s.events.Publish(EventItemDone, targets, map[string]interface{}{
		"order_id":      order.ID,
		"order_number":  order.OrderNumber,
		"order_item_id": itemID,
	})
	if result.OrderCompleted {
		s.events.Publish(EventOrderCompleted, nil, summarizeOrders([]models.Order{*order})[0])
	}
	if tableFreed {
		s.events.Publish(EventTableUpdate, nil, map[string]interface{}{"table_id": tableID, "status": models.TableStatusFree})
	}
	return result, nil
}

// ItemDoneOutcome -> hasil per item pada update batch
type ItemDoneOutcome struct {
	ItemID uint            `json:"item_id"`
	Result *ItemDoneResult `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Kind   Kind            `json:"kind,omitempty"`
}

// MarkItemsDone menjalankan MarkItemDone untuk setiap item. Kegagalan satu item tidak
// menghentikan item lain.
func (s *OrderService) MarkItemsDone(ctx context.Context, itemIDs []uint, station *models.Station) ([]ItemDoneOutcome, error) {
	if len(itemIDs) == 0 {
		return nil, invalidRequest("item_ids must not be empty")
	}
	out := make([]ItemDoneOutcome, 0, len(itemIDs))
	for _, id := range itemIDs {
		res, err := s.MarkItemDone(ctx, id, station)
		outcome := ItemDoneOutcome{ItemID: id, Result: res}
		if err != nil {
			if _, ok := AsError(err); !ok {
				return nil, err
			}
			outcome.Error = err.Error()
			outcome.Kind = KindOf(err)
		}
		out = append(out, outcome)
	}
	return out, nil
}

// CompleteOrder -> kasir menutup order yang seluruh itemnya sudah selesai
func (s *OrderService) CompleteOrder(ctx context.Context, orderID uint) (*models.Order, error) {
	now := s.now()
	var freed bool
	var tableID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, "id = ?", orderID)
		if err != nil {
			return err
		}
		if order.CompletedAt != nil {
			return ErrAlreadyCompleted
		}
		if order.PaymentStatus != models.PaymentStatusPaid {
			return ErrNotYetPaid
		}

		var pending []uint
		if err := tx.Model(&models.OrderItem{}).
			Where("order_id = ? AND status = ?", order.ID, models.ItemStatusPending).
			Order("id").Pluck("id", &pending).Error; err != nil {
			return err
		}
		if len(pending) > 0 {
			return &Error{
				Kind:           KindItemsNotAllDone,
				Message:        ErrItemsNotAllDone.Message,
				PendingItemIDs: pending,
			}
		}

		done := tx.Model(&models.Order{}).
			Where("id = ? AND completed_at IS NULL", order.ID).
			Update("completed_at", now)
		if done.Error != nil {
			return done.Error
		}
		if done.RowsAffected == 0 {
			return ErrAlreadyCompleted
		}
		tableID = order.TableID
		freed, err = releaseTableIfIdle(tx, order.TableID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	order, err := s.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	utils.InfoLogger.WithField("order_number", order.OrderNumber).Info("order completed")
	s.events.Publish(EventOrderCompleted, nil, summarizeOrders([]models.Order{*order})[0])
	if freed {
		s.events.Publish(EventTableUpdate, nil, map[string]interface{}{"table_id": tableID, "status": models.TableStatusFree})
	}
	return order, nil
}
