package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/youngalip/savor-backend/models"
	"github.com/youngalip/savor-backend/utils"
	"gorm.io/gorm"
)

// ItemRequest -> satu baris pesanan dari customer
type ItemRequest struct {
	MenuID       uint   `json:"menu_id" binding:"required"`
	Quantity     int    `json:"quantity" binding:"required"`
	SpecialNotes string `json:"special_notes"`
}

// StockLedger menjaga stok menu agar tidak pernah terjual melebihi jumlahnya
type StockLedger struct {
	db *gorm.DB
}

func NewStockLedger(db *gorm.DB) *StockLedger {
	return &StockLedger{db: db}
}

// Check memvalidasi seluruh permintaan terhadap stok saat ini di dalam tx.
// Semua kekurangan dilaporkan sekaligus beserta stok item yang lolos.
func (l *StockLedger) Check(tx *gorm.DB, items []ItemRequest) (map[uint]models.Menu, error) {
	if len(items) == 0 {
		return nil, invalidRequest("items must not be empty")
	}

	// menu yang sama bisa muncul lebih dari sekali, cek total permintaannya
	requested := make(map[uint]int)
	order := make([]uint, 0, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, invalidRequest("quantity for menu %d must be at least 1", item.MenuID)
		}
		if _, seen := requested[item.MenuID]; !seen {
			order = append(order, item.MenuID)
		}
		requested[item.MenuID] += item.Quantity
	}

	var menus []models.Menu
	if err := tx.Where("id IN ?", order).Find(&menus).Error; err != nil {
		return nil, fmt.Errorf("load menus: %w", err)
	}
	byID := make(map[uint]models.Menu, len(menus))
	for _, m := range menus {
		byID[m.ID] = m
	}

	var shortages []StockShortage
	var passing []StockSnapshot
	for _, id := range order {
		menu, ok := byID[id]
		if !ok {
			return nil, invalidRequest("menu %d not found", id)
		}
		available := menu.StockQuantity
		if !menu.IsAvailable {
			available = 0
		}
		if available < requested[id] {
			shortages = append(shortages, StockShortage{
				MenuID:    menu.ID,
				MenuName:  menu.Name,
				Requested: requested[id],
				Available: available,
			})
			continue
		}
		passing = append(passing, StockSnapshot{
			MenuID:         menu.ID,
			MenuName:       menu.Name,
			AvailableStock: available,
		})
	}

	if len(shortages) > 0 {
		return nil, &Error{
			Kind:           KindStockInsufficient,
			Message:        ErrStockInsufficient.Message,
			StockErrors:    shortages,
			AvailableItems: passing,
		}
	}
	return byID, nil
}

// Decrement mengurangi stok secara kondisional. Bila baris tidak berubah, stok sudah
// diambil order lain sejak Check dan seluruh transaksi harus dibatalkan.
func (l *StockLedger) Decrement(tx *gorm.DB, menuID uint, qty int) error {
	result := tx.Model(&models.Menu{}).
		Where("id = ? AND stock_quantity >= ?", menuID, qty).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", qty))
	if result.Error != nil {
		return fmt.Errorf("decrement stock for menu %d: %w", menuID, result.Error)
	}
	if result.RowsAffected == 1 {
		return nil
	}

	var menu models.Menu
	if err := tx.Select("id", "name", "stock_quantity").First(&menu, menuID).Error; err != nil {
		return fmt.Errorf("reload menu %d: %w", menuID, err)
	}
	return &Error{
		Kind:    KindStockInsufficient,
		Message: ErrStockInsufficient.Message,
		StockErrors: []StockShortage{{
			MenuID:    menu.ID,
			MenuName:  menu.Name,
			Requested: qty,
			Available: menu.StockQuantity,
		}},
	}
}

// DecrementAll -> urutan menu id tetap supaya dua transaksi tidak saling menunggu terbalik
func (l *StockLedger) DecrementAll(tx *gorm.DB, items []ItemRequest) error {
	totals := make(map[uint]int)
	for _, item := range items {
		totals[item.MenuID] += item.Quantity
	}
	ids := make([]uint, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if err := l.Decrement(tx, id, totals[id]); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot -> stok terkini untuk sekumpulan menu (tanpa lock)
func (l *StockLedger) Snapshot(ctx context.Context, menuIDs []uint) ([]StockSnapshot, error) {
	var menus []models.Menu
	if err := l.db.WithContext(ctx).Where("id IN ?", menuIDs).Order("id").Find(&menus).Error; err != nil {
		return nil, err
	}
	out := make([]StockSnapshot, 0, len(menus))
	for _, m := range menus {
		out = append(out, StockSnapshot{MenuID: m.ID, MenuName: m.Name, AvailableStock: m.StockQuantity})
	}
	return out, nil
}

// SetStock dipakai staff station untuk koreksi stok manual
func (l *StockLedger) SetStock(ctx context.Context, menuID uint, quantity int) (*models.Menu, error) {
	if quantity < 0 {
		return nil, invalidRequest("stock quantity must not be negative")
	}

	var menu models.Menu
	err := l.db.WithContext(ctx).First(&menu, menuID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, invalidRequest("menu %d not found", menuID)
	}
	if err != nil {
		return nil, err
	}

	previous := menu.StockQuantity
	if err := l.db.WithContext(ctx).Model(&menu).UpdateColumn("stock_quantity", quantity).Error; err != nil {
		return nil, err
	}
	menu.StockQuantity = quantity

	utils.InfoLogger.WithFields(logrus.Fields{
		"menu_id":  menuID,
		"previous": previous,
		"current":  quantity,
	}).Info("stock updated")
	return &menu, nil
}
