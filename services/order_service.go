package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/youngalip/savor-backend/models"
	"github.com/youngalip/savor-backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxCreateAttempts = 5

// CheckoutCreator membuat token pembayaran gateway untuk order yang baru dibuat
type CheckoutCreator interface {
	CreateCheckout(ctx context.Context, order *models.Order) (*CheckoutResult, error)
}

type CreateOrderRequest struct {
	SessionToken string
	Email        string
	Notes        string
	Items        []ItemRequest
}

type CreateOrderResult struct {
	Order            *models.Order    `json:"-"`
	OrderUUID        string           `json:"order_uuid"`
	OrderNumber      string           `json:"order_number"`
	Breakdown        PricingBreakdown `json:"breakdown"`
	ItemsCount       int              `json:"items_count"`
	TableNumber      string           `json:"table_number"`
	EmailSent        bool             `json:"email_sent"`
	PaymentStatus    string           `json:"payment_status"`
	SessionExpiresAt time.Time        `json:"session_expires_at"`
	Payment          *CheckoutResult  `json:"payment,omitempty"`
	PaymentError     string           `json:"payment_error,omitempty"`
}

// OrderSummary -> ringkasan order untuk riwayat dan hasil scan
type OrderSummary struct {
	OrderUUID        string          `json:"order_uuid"`
	OrderNumber      string          `json:"order_number"`
	PaymentStatus    string          `json:"payment_status"`
	Status           string          `json:"status"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	ItemsCount       int             `json:"items_count"`
	CreatedAt        time.Time       `json:"created_at"`
	SessionExpiresAt time.Time       `json:"session_expires_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
}

func summarizeOrders(orders []models.Order) []OrderSummary {
	out := make([]OrderSummary, 0, len(orders))
	for i := range orders {
		o := &orders[i]
		out = append(out, OrderSummary{
			OrderUUID:        o.OrderUUID,
			OrderNumber:      o.OrderNumber,
			PaymentStatus:    o.PaymentStatus,
			Status:           o.DisplayStatus(),
			TotalAmount:      o.TotalAmount,
			ItemsCount:       len(o.Items),
			CreatedAt:        o.CreatedAt,
			SessionExpiresAt: o.SessionExpiresAt,
			CompletedAt:      o.CompletedAt,
		})
	}
	return out
}

// OrderHistory -> order sesi sekarang dipisah dari riwayat lama
type OrderHistory struct {
	CustomerUUID   string         `json:"customer_uuid"`
	CurrentSession []models.Order `json:"current_session"`
	History        []models.Order `json:"history"`
	Summary        struct {
		TotalOrders int             `json:"total_orders"`
		TotalSpent  decimal.Decimal `json:"total_spent"`
	} `json:"summary"`
}

// OrderService memegang siklus hidup order: dibuat, dibayar, dikerjakan station, selesai atau gagal
type OrderService struct {
	db       *gorm.DB
	rates    RateProvider
	stock    *StockLedger
	checkout CheckoutCreator
	paid     *PostPaymentHandler
	stations *StationRouter
	notifier Notifier
	events   EventPublisher
	window   time.Duration
	now      func() time.Time
}

func NewOrderService(
	db *gorm.DB,
	rates RateProvider,
	stock *StockLedger,
	checkout CheckoutCreator,
	paid *PostPaymentHandler,
	stations *StationRouter,
	notifier Notifier,
	events EventPublisher,
	window time.Duration,
) *OrderService {
	if events == nil {
		events = nopPublisher{}
	}
	return &OrderService{
		db:       db,
		rates:    rates,
		stock:    stock,
		checkout: checkout,
		paid:     paid,
		stations: stations,
		notifier: notifier,
		events:   events,
		window:   window,
		now:      time.Now,
	}
}

func validateCreateRequest(req CreateOrderRequest) error {
	if strings.TrimSpace(req.SessionToken) == "" {
		return ErrSessionNotFound
	}
	if len(req.Items) == 0 {
		return invalidRequest("items must not be empty")
	}
	for _, item := range req.Items {
		if item.MenuID == 0 {
			return invalidRequest("menu_id is required")
		}
		if item.Quantity < 1 {
			return invalidRequest("quantity for menu %d must be at least 1", item.MenuID)
		}
		if len(item.SpecialNotes) > 500 {
			return invalidRequest("special notes for menu %d are too long", item.MenuID)
		}
	}
	if req.Email != "" {
		if _, err := mail.ParseAddress(req.Email); err != nil {
			return invalidRequest("invalid email address")
		}
	}
	return nil
}

// CreateOrder memvalidasi sesi dan stok, menghitung harga, lalu menyimpan order beserta item
// dalam satu transaksi. Email dan token pembayaran dikerjakan setelah commit.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if err := validateCreateRequest(req); err != nil {
		return nil, err
	}

	rates, err := s.rates.PricingRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pricing rates: %w", err)
	}

	var order *models.Order
	attempt := 0
	op := func() error {
		attempt++
		created, err := s.createOnce(ctx, req, rates)
		if err == nil {
			order = created
			return nil
		}
		if isContention(err) {
			utils.ErrorLogger.WithError(err).WithField("attempt", attempt).Warn("order creation contention, retrying")
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 20 * time.Millisecond
	policy.MaxInterval = 500 * time.Millisecond
	err = backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, maxCreateAttempts-1), ctx))
	if err != nil {
		return nil, unwrapContention(err)
	}

	result := &CreateOrderResult{
		Order:            order,
		OrderUUID:        order.OrderUUID,
		OrderNumber:      order.OrderNumber,
		Breakdown:        BreakdownFromOrder(order),
		ItemsCount:       len(order.Items),
		PaymentStatus:    order.PaymentStatus,
		SessionExpiresAt: order.SessionExpiresAt,
	}
	if order.Table != nil {
		result.TableNumber = order.Table.TableNumber
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"order_uuid":   order.OrderUUID,
		"order_number": order.OrderNumber,
		"total":        order.TotalAmount.String(),
	}).Info("order created")

	// efek samping: gagal di sini tidak membatalkan order
	if order.Customer != nil && order.Customer.Email != "" && s.notifier != nil {
		if err := s.notifier.Send(ctx, models.NotificationOrderConfirmation, order); err != nil {
			utils.ErrorLogger.WithError(err).WithField("order_uuid", order.OrderUUID).Warn("order confirmation email failed")
		} else {
			result.EmailSent = true
		}
	}
	if s.checkout != nil {
		checkout, err := s.checkout.CreateCheckout(ctx, order)
		if err != nil {
			utils.ErrorLogger.WithError(err).WithField("order_uuid", order.OrderUUID).Warn("payment checkout failed")
			result.PaymentError = err.Error()
		} else {
			result.Payment = checkout
		}
	}
	s.events.Publish(EventOrderCreated, nil, summarizeOrders([]models.Order{*order})[0])

	return result, nil
}

func (s *OrderService) createOnce(ctx context.Context, req CreateOrderRequest, rates PricingRates) (*models.Order, error) {
	now := s.now()
	var orderID uint

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := validSession(tx, req.SessionToken, now)
		if err != nil {
			return err
		}
		if customer.TableID == nil {
			return ErrTableNotFound
		}
		var table models.Table
		if err := tx.First(&table, *customer.TableID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTableNotFound
			}
			return err
		}

		updates := map[string]interface{}{"last_activity": now}
		if req.Email != "" {
			updates["email"] = req.Email
		}
		if err := tx.Model(customer).Updates(updates).Error; err != nil {
			return err
		}

		menus, err := s.stock.Check(tx, req.Items)
		if err != nil {
			return err
		}
		if err := s.stock.DecrementAll(tx, req.Items); err != nil {
			if KindOf(err) == KindStockInsufficient {
				// stok diambil transaksi lain setelah Check
				return &contentionError{err: err}
			}
			return err
		}

		subtotal := decimal.Zero
		items := make([]models.OrderItem, 0, len(req.Items))
		for _, item := range req.Items {
			menu := menus[item.MenuID]
			lineTotal := menu.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			subtotal = subtotal.Add(lineTotal)
			items = append(items, models.OrderItem{
				MenuID:       menu.ID,
				Quantity:     item.Quantity,
				Price:        menu.Price,
				Subtotal:     lineTotal,
				SpecialNotes: strings.TrimSpace(item.SpecialNotes),
				Status:       models.ItemStatusPending,
			})
		}

		number, err := nextOrderNumber(tx, now)
		if err != nil {
			return err
		}

		order := models.Order{
			OrderUUID:        uuid.NewString(),
			OrderNumber:      number,
			CustomerID:       customer.ID,
			TableID:          table.ID,
			PaymentStatus:    models.PaymentStatusPending,
			Notes:            strings.TrimSpace(req.Notes),
			SessionExpiresAt: now.Add(s.window),
			Items:            items,
		}
		CalculatePricing(subtotal, rates.ServiceChargeRate, rates.TaxRate).Apply(&order)

		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		orderID = order.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.loadOrder(ctx, s.db.WithContext(ctx).Where("id = ?", orderID))
}

// nextOrderNumber menaikkan counter harian secara atomik di dalam tx pemanggil.
// Bila tx batal, counter ikut batal sehingga nomor tidak bolong.
func nextOrderNumber(tx *gorm.DB, now time.Time) (string, error) {
	day := now.Format("20060102")
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "day"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_value": gorm.Expr("order_sequences.last_value + 1"),
		}),
	}).Create(&models.OrderSequence{Day: day, LastValue: 1}).Error
	if err != nil {
		return "", fmt.Errorf("increment order sequence: %w", err)
	}

	var seq models.OrderSequence
	if err := tx.Where(&models.OrderSequence{Day: day}).First(&seq).Error; err != nil {
		return "", fmt.Errorf("read order sequence: %w", err)
	}
	return fmt.Sprintf("ORD-%s-%03d", day, seq.LastValue), nil
}

func (s *OrderService) loadOrder(ctx context.Context, query *gorm.DB) (*models.Order, error) {
	var order models.Order
	err := query.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Items.Menu").
		Preload("Table").
		Preload("Customer").
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByUUID -> detail order untuk customer
func (s *OrderService) GetOrderByUUID(ctx context.Context, orderUUID string) (*models.Order, error) {
	return s.loadOrder(ctx, s.db.WithContext(ctx).Where("order_uuid = ?", orderUUID))
}

// GetOrderByID -> detail order untuk kasir
func (s *OrderService) GetOrderByID(ctx context.Context, id uint) (*models.Order, error) {
	return s.loadOrder(ctx, s.db.WithContext(ctx).Where("id = ?", id))
}

// OrderHistory -> order milik pemegang token, sesi sekarang dipisah dari yang lama
func (s *OrderService) OrderHistory(ctx context.Context, token string) (*OrderHistory, error) {
	customer, err := customerByToken(s.db.WithContext(ctx), token)
	if err != nil {
		return nil, err
	}
	return s.historyFor(ctx, customer)
}

// DeviceHistory -> sama seperti OrderHistory tapi dicari lewat device id
func (s *OrderService) DeviceHistory(ctx context.Context, deviceID string) (*OrderHistory, error) {
	if strings.TrimSpace(deviceID) == "" {
		return nil, invalidRequest("device_id is required")
	}
	var customer models.Customer
	err := s.db.WithContext(ctx).Where("device_id = ?", deviceID).First(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.historyFor(ctx, &customer)
}

func (s *OrderService) historyFor(ctx context.Context, customer *models.Customer) (*OrderHistory, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).
		Preload("Items.Menu").
		Preload("Table").
		Where("customer_id = ?", customer.ID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}

	now := s.now()
	history := &OrderHistory{
		CustomerUUID:   customer.UUID,
		CurrentSession: []models.Order{},
		History:        []models.Order{},
	}
	history.Summary.TotalSpent = decimal.Zero
	for _, o := range orders {
		if o.SessionExpiresAt.After(now) && o.PaymentStatus != models.PaymentStatusFailed {
			history.CurrentSession = append(history.CurrentSession, o)
		} else {
			history.History = append(history.History, o)
		}
		if o.PaymentStatus == models.PaymentStatusPaid {
			history.Summary.TotalSpent = history.Summary.TotalSpent.Add(o.TotalAmount)
		}
	}
	history.Summary.TotalOrders = len(orders)
	return history, nil
}

// OrderFilter -> filter papan kasir
type OrderFilter struct {
	PaymentStatus    string
	DisplayStatus    string
	TableID          uint
	DateFrom         *time.Time
	DateTo           *time.Time
	ExcludeCompleted bool
}

// ListOrders -> order untuk papan kasir, terbaru dulu. Order Failed tidak ditampilkan.
func (s *OrderService) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	query := s.db.WithContext(ctx).
		Preload("Items.Menu").
		Preload("Table").
		Where("payment_status <> ?", models.PaymentStatusFailed)

	if filter.PaymentStatus != "" {
		query = query.Where("payment_status = ?", filter.PaymentStatus)
	}
	if filter.TableID != 0 {
		query = query.Where("table_id = ?", filter.TableID)
	}
	if filter.DateFrom != nil {
		query = query.Where("created_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("created_at < ?", *filter.DateTo)
	}
	if filter.ExcludeCompleted {
		query = query.Where("completed_at IS NULL")
	}

	var orders []models.Order
	if err := query.Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, err
	}

	if filter.DisplayStatus == "" {
		return orders, nil
	}
	filtered := orders[:0]
	for _, o := range orders {
		if o.DisplayStatus() == filter.DisplayStatus {
			filtered = append(filtered, o)
		}
	}
	return filtered, nil
}

// CashierStatistics -> ringkasan pendapatan order yang sudah selesai
type CashierStatistics struct {
	TotalOrders  int64           `json:"total_orders"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	AverageOrder decimal.Decimal `json:"average_order"`
}

func (s *OrderService) Statistics(ctx context.Context, from, to *time.Time) (*CashierStatistics, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("payment_status = ? AND completed_at IS NOT NULL", models.PaymentStatusPaid)
	if from != nil {
		query = query.Where("completed_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("completed_at < ?", *to)
	}

	var totals []decimal.Decimal
	if err := query.Pluck("total_amount", &totals).Error; err != nil {
		return nil, err
	}

	stats := &CashierStatistics{TotalRevenue: decimal.Zero, AverageOrder: decimal.Zero}
	for _, t := range totals {
		stats.TotalRevenue = stats.TotalRevenue.Add(t)
	}
	stats.TotalOrders = int64(len(totals))
	if stats.TotalOrders > 0 {
		stats.AverageOrder = stats.TotalRevenue.Div(decimal.NewFromInt(stats.TotalOrders)).Round(2)
	}
	return stats, nil
}

// contentionError menandai kegagalan akibat transaksi lain (bukan kesalahan pemanggil)
type contentionError struct {
	err error
}

func (e *contentionError) Error() string { return e.err.Error() }
func (e *contentionError) Unwrap() error { return e.err }

func isContention(err error) bool {
	var ce *contentionError
	if errors.As(err, &ce) {
		return true
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if _, ok := AsError(err); ok {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"unique constraint failed",
		"duplicate entry",
		"duplicate key value",
		"database is locked",
		"database table is locked",
		"deadlock",
		"could not serialize",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func unwrapContention(err error) error {
	var ce *contentionError
	if errors.As(err, &ce) {
		return ce.err
	}
	return err
}
