package services

import (
	"context"

	"github.com/youngalip/savor-backend/models"
)

// Nama event realtime yang dikirim ke papan station dan kasir
const (
	EventOrderCreated   = "order_created"
	EventPaymentUpdate  = "payment_update"
	EventStationUpdate  = "station_update"
	EventItemDone       = "item_done"
	EventOrderCompleted = "order_completed"
	EventOrderFailed    = "order_failed"
	EventTableUpdate    = "table_update"
	EventStockUpdate    = "stock_update"
)

// EventPublisher mengirim event ke papan realtime. stations kosong berarti semua papan.
type EventPublisher interface {
	Publish(event string, stations []models.Station, data interface{})
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, []models.Station, interface{}) {}

// Notifier mengirim email ke customer. Kegagalan tidak pernah membatalkan operasi utama.
type Notifier interface {
	Send(ctx context.Context, eventType string, order *models.Order) error
}
