package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/youngalip/savor-backend/models"
	"github.com/youngalip/savor-backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StationRouter memetakan kategori menu ke station. Dibangun sekali saat startup dari
// tabel kategori, Refresh dipanggil setelah admin mengubah kategori.
type StationRouter struct {
	db     *gorm.DB
	mu     sync.RWMutex
	routes map[uint]models.Station
}

func NewStationRouter(ctx context.Context, db *gorm.DB) (*StationRouter, error) {
	r := &StationRouter{db: db, routes: make(map[uint]models.Station)}
	if err := r.Refresh(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Refresh membaca ulang kategori. Kategori tanpa kolom station dicoba dari namanya.
func (r *StationRouter) Refresh(ctx context.Context) error {
	var categories []models.MenuCategory
	if err := r.db.WithContext(ctx).Find(&categories).Error; err != nil {
		return fmt.Errorf("load categories: %w", err)
	}

	routes := make(map[uint]models.Station, len(categories))
	for _, c := range categories {
		station, ok := models.ParseStation(string(c.Station))
		if !ok {
			station, ok = models.ParseStation(c.Name)
		}
		if !ok {
			utils.ErrorLogger.WithFields(logrus.Fields{
				"category_id": c.ID,
				"category":    c.Name,
			}).Warn("category has no station, its items will not be routed")
			continue
		}
		routes[c.ID] = station
	}

	r.mu.Lock()
	r.routes = routes
	r.mu.Unlock()
	return nil
}

// StationFor -> station untuk sebuah kategori
func (r *StationRouter) StationFor(categoryID uint) (models.Station, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.routes[categoryID]
	return s, ok
}

// CategoriesFor -> semua kategori yang diarahkan ke station
func (r *StationRouter) CategoriesFor(station models.Station) []uint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []uint
	for id, s := range r.routes {
		if s == station {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// StationAssigner membagi item order yang sudah dibayar ke papan station
type StationAssigner struct {
	db     *gorm.DB
	router *StationRouter
	now    func() time.Time
}

func NewStationAssigner(db *gorm.DB, router *StationRouter) *StationAssigner {
	return &StationAssigner{db: db, router: router, now: time.Now}
}

// Assign membuat satu StationOrder per item. Aman dipanggil berulang untuk order yang sama.
func (a *StationAssigner) Assign(ctx context.Context, orderID uint) ([]models.Station, error) {
	var items []models.OrderItem
	if err := a.db.WithContext(ctx).Preload("Menu").Where("order_id = ?", orderID).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}

	now := a.now()
	touched := make(map[models.Station]bool)
	var rows []models.StationOrder
	for _, item := range items {
		if item.Menu == nil {
			continue
		}
		station, ok := a.router.StationFor(item.Menu.CategoryID)
		if !ok {
			utils.ErrorLogger.WithFields(logrus.Fields{
				"order_id":      orderID,
				"order_item_id": item.ID,
				"menu":          item.Menu.Name,
			}).Warn("no station for item, left unassigned")
			continue
		}
		status := models.StationOrderPending
		var completedAt *time.Time
		if item.Status == models.ItemStatusDone {
			status = models.StationOrderDone
			completedAt = item.DoneAt
		}
		rows = append(rows, models.StationOrder{
			OrderID:     orderID,
			OrderItemID: item.ID,
			Station:     station,
			Status:      status,
			StartedAt:   now,
			CompletedAt: completedAt,
		})
		touched[station] = true
	}
	if len(rows) == 0 {
		return nil, nil
	}

	err := a.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_item_id"}},
		DoNothing: true,
	}).Create(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("create station orders: %w", err)
	}

	stations := make([]models.Station, 0, len(touched))
	for _, s := range models.AllStations {
		if touched[s] {
			stations = append(stations, s)
		}
	}
	utils.InfoLogger.WithFields(logrus.Fields{
		"order_id": orderID,
		"stations": stations,
	}).Info("order assigned to stations")
	return stations, nil
}

// StationQueueItem -> satu item yang menunggu dikerjakan station
type StationQueueItem struct {
	OrderItemID  uint      `json:"order_item_id"`
	MenuID       uint      `json:"menu_id"`
	MenuName     string    `json:"menu_name"`
	Quantity     int       `json:"quantity"`
	SpecialNotes string    `json:"special_notes,omitempty"`
	Status       string    `json:"status"`
	StartedAt    time.Time `json:"started_at"`
}

// StationQueueOrder -> item pending satu order, dikelompokkan per meja
type StationQueueOrder struct {
	OrderID     uint               `json:"order_id"`
	OrderUUID   string             `json:"order_uuid"`
	OrderNumber string             `json:"order_number"`
	TableNumber string             `json:"table_number"`
	PaidAt      *time.Time         `json:"paid_at,omitempty"`
	Notes       string             `json:"notes,omitempty"`
	Items       []StationQueueItem `json:"items"`
}

// StationQueueTable -> antrean station untuk satu meja
type StationQueueTable struct {
	TableNumber string              `json:"table_number"`
	Orders      []StationQueueOrder `json:"orders"`
}

// StationStats -> hitungan harian untuk satu station
type StationStats struct {
	Station      models.Station `json:"station"`
	PendingItems int64          `json:"pending_items"`
	DoneToday    int64          `json:"done_today"`
	LowStock     int64          `json:"low_stock_menus"`
}

// StationService membaca papan station
type StationService struct {
	db     *gorm.DB
	router *StationRouter
	now    func() time.Time
}

func NewStationService(db *gorm.DB, router *StationRouter) *StationService {
	return &StationService{db: db, router: router, now: time.Now}
}

// Queue -> item pending untuk order Paid yang belum selesai, urut waktu bayar
func (s *StationService) Queue(ctx context.Context, station models.Station) ([]StationQueueTable, error) {
	var rows []models.StationOrder
	err := s.db.WithContext(ctx).
		Preload("OrderItem.Menu").
		Preload("OrderItem.Order.Table").
		Joins("JOIN orders ON orders.id = station_orders.order_id").
		Where("station_orders.station = ? AND station_orders.status = ?", station, models.StationOrderPending).
		Where("orders.payment_status = ? AND orders.completed_at IS NULL", models.PaymentStatusPaid).
		Order("orders.paid_at, station_orders.id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	tables := []StationQueueTable{}
	tableIdx := make(map[string]int)
	orderIdx := make(map[uint][2]int)
	for _, row := range rows {
		item := row.OrderItem
		if item == nil || item.Order == nil {
			continue
		}
		order := item.Order
		tableNumber := ""
		if order.Table != nil {
			tableNumber = order.Table.TableNumber
		}

		ti, ok := tableIdx[tableNumber]
		if !ok {
			tables = append(tables, StationQueueTable{TableNumber: tableNumber})
			ti = len(tables) - 1
			tableIdx[tableNumber] = ti
		}
		pos, ok := orderIdx[order.ID]
		if !ok {
			tables[ti].Orders = append(tables[ti].Orders, StationQueueOrder{
				OrderID:     order.ID,
				OrderUUID:   order.OrderUUID,
				OrderNumber: order.OrderNumber,
				TableNumber: tableNumber,
				PaidAt:      order.PaidAt,
				Notes:       order.Notes,
			})
			pos = [2]int{ti, len(tables[ti].Orders) - 1}
			orderIdx[order.ID] = pos
		}

		line := StationQueueItem{
			OrderItemID:  item.ID,
			MenuID:       item.MenuID,
			Quantity:     item.Quantity,
			SpecialNotes: item.SpecialNotes,
			Status:       row.Status,
			StartedAt:    row.StartedAt,
		}
		if item.Menu != nil {
			line.MenuName = item.Menu.Name
		}
		o := &tables[pos[0]].Orders[pos[1]]
		o.Items = append(o.Items, line)
	}
	return tables, nil
}

// Stats -> jumlah item pending, selesai hari ini, dan menu stok rendah untuk station
func (s *StationService) Stats(ctx context.Context, station models.Station) (*StationStats, error) {
	db := s.db.WithContext(ctx)
	stats := &StationStats{Station: station}

	err := db.Model(&models.StationOrder{}).
		Joins("JOIN orders ON orders.id = station_orders.order_id").
		Where("station_orders.station = ? AND station_orders.status = ?", station, models.StationOrderPending).
		Where("orders.completed_at IS NULL").
		Count(&stats.PendingItems).Error
	if err != nil {
		return nil, err
	}

	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	err = db.Model(&models.StationOrder{}).
		Where("station = ? AND status = ? AND completed_at >= ?", station, models.StationOrderDone, startOfDay).
		Count(&stats.DoneToday).Error
	if err != nil {
		return nil, err
	}

	if categories := s.router.CategoriesFor(station); len(categories) > 0 {
		err = db.Model(&models.Menu{}).
			Where("category_id IN ? AND stock_quantity <= minimum_stock", categories).
			Count(&stats.LowStock).Error
		if err != nil {
			return nil, err
		}
	}
	return stats, nil
}

// Menus -> menu milik station, untuk koreksi stok
func (s *StationService) Menus(ctx context.Context, station models.Station) ([]models.Menu, error) {
	categories := s.router.CategoriesFor(station)
	menus := []models.Menu{}
	if len(categories) == 0 {
		return menus, nil
	}
	err := s.db.WithContext(ctx).Preload("Category").
		Where("category_id IN ?", categories).
		Order("name").Find(&menus).Error
	return menus, err
}

// OwnsMenu -> apakah menu termasuk station tersebut
func (s *StationService) OwnsMenu(ctx context.Context, station models.Station, menuID uint) (bool, error) {
	var menu models.Menu
	if err := s.db.WithContext(ctx).Select("id", "category_id").First(&menu, menuID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	got, ok := s.router.StationFor(menu.CategoryID)
	return ok && got == station, nil
}
