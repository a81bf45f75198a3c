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

// PaymentOutcome -> status order hasil pemetaan status gateway
type PaymentOutcome struct {
	Status  string
	Anomaly bool
}

// MapTransactionStatus memetakan transaction_status + fraud_status gateway ke status order.
// Status yang tidak dikenal dianggap Pending dan ditandai anomali.
func MapTransactionStatus(status, fraud string) PaymentOutcome {
	switch status {
	case "capture":
		if fraud == "" || fraud == "accept" {
			return PaymentOutcome{Status: models.PaymentStatusPaid}
		}
		return PaymentOutcome{Status: models.PaymentStatusPending}
	case "settlement":
		return PaymentOutcome{Status: models.PaymentStatusPaid}
	case "pending":
		return PaymentOutcome{Status: models.PaymentStatusPending}
	case "deny", "expire", "cancel":
		return PaymentOutcome{Status: models.PaymentStatusFailed}
	default:
		return PaymentOutcome{Status: models.PaymentStatusPending, Anomaly: true}
	}
}

// Notification -> payload HTTP notification dari gateway
type Notification struct {
	OrderID           string                 `json:"order_id"`
	TransactionStatus string                 `json:"transaction_status"`
	FraudStatus       string                 `json:"fraud_status"`
	TransactionID     string                 `json:"transaction_id"`
	StatusCode        string                 `json:"status_code"`
	GrossAmount       string                 `json:"gross_amount"`
	SignatureKey      string                 `json:"signature_key"`
	PaymentType       string                 `json:"payment_type"`
	Raw               map[string]interface{} `json:"-"`
}

// NotificationResult -> apa yang terjadi pada order setelah notifikasi diproses
type NotificationResult struct {
	OrderUUID      string `json:"order_uuid"`
	PreviousStatus string `json:"previous_status"`
	PaymentStatus  string `json:"payment_status"`
	Applied        bool   `json:"applied"`
	Anomaly        bool   `json:"anomaly"`
}

// CheckoutLine -> satu baris item_details, nilai rupiah bulat
type CheckoutLine struct {
	ID       string
	Name     string
	Price    int64
	Quantity int32
}

// CheckoutRequest -> data yang dikirim gateway untuk membuat token pembayaran
type CheckoutRequest struct {
	OrderID       string
	GrossAmount   int64
	CustomerName  string
	CustomerEmail string
	Lines         []CheckoutLine
	FinishURL     string
}

// CheckoutResult -> token dan URL redirect dari gateway
type CheckoutResult struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

// PaymentGateway adalah gateway pembayaran online. MidtransService adalah implementasinya.
type PaymentGateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
	CheckTransactionStatus(ctx context.Context, orderID string) (*Notification, error)
}

// SignatureVerifier memeriksa signature_key notifikasi
type SignatureVerifier interface {
	ValidateSignature(orderID, statusCode, grossAmount, signature string) bool
}

// PaymentService merekonsiliasi status order dengan gateway pembayaran
type PaymentService struct {
	db          *gorm.DB
	gateway     PaymentGateway
	verifier    SignatureVerifier
	paid        *PostPaymentHandler
	events      EventPublisher
	frontendURL string
	now         func() time.Time
}

func NewPaymentService(db *gorm.DB, gateway PaymentGateway, verifier SignatureVerifier, paid *PostPaymentHandler, events EventPublisher, frontendURL string) *PaymentService {
	if events == nil {
		events = nopPublisher{}
	}
	return &PaymentService{
		db:          db,
		gateway:     gateway,
		verifier:    verifier,
		paid:        paid,
		events:      events,
		frontendURL: frontendURL,
		now:         time.Now,
	}
}

// HandleNotification memproses notifikasi gateway secara idempoten. Notifikasi ganda atau
// yang datang terlambat (mundur status) hanya dicatat.
func (s *PaymentService) HandleNotification(ctx context.Context, n Notification) (*NotificationResult, error) {
	if n.OrderID == "" {
		return nil, invalidRequest("order_id is required")
	}
	if s.verifier != nil && !s.verifier.ValidateSignature(n.OrderID, n.StatusCode, n.GrossAmount, n.SignatureKey) {
		utils.ErrorLogger.WithField("order_uuid", n.OrderID).Warn("notification signature mismatch")
		return nil, ErrInvalidSignature
	}
	return s.reconcile(ctx, n)
}

func (s *PaymentService) reconcile(ctx context.Context, n Notification) (*NotificationResult, error) {
	outcome := MapTransactionStatus(n.TransactionStatus, n.FraudStatus)
	if outcome.Anomaly {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"order_uuid":         n.OrderID,
			"transaction_status": n.TransactionStatus,
			"fraud_status":       n.FraudStatus,
		}).Warn("unknown gateway transaction status, treating as pending")
	}

	now := s.now()
	result := &NotificationResult{OrderUUID: n.OrderID, Anomaly: outcome.Anomaly}
	var orderID, tableID uint
	var tableFreed bool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, "order_uuid = ?", n.OrderID)
		if err != nil {
			return err
		}
		orderID = order.ID
		tableID = order.TableID
		result.PreviousStatus = order.PaymentStatus
		result.PaymentStatus = order.PaymentStatus

		payload := n.Raw
		if payload == nil {
			payload = map[string]interface{}{
				"order_id":           n.OrderID,
				"transaction_status": n.TransactionStatus,
				"fraud_status":       n.FraudStatus,
				"transaction_id":     n.TransactionID,
				"status_code":        n.StatusCode,
				"gross_amount":       n.GrossAmount,
				"payment_type":       n.PaymentType,
			}
		}
		rawJSON := jsonPayload(payload)

		err = tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"transaction_id":     n.TransactionID,
				"transaction_status": n.TransactionStatus,
				"fraud_status":       n.FraudStatus,
				"notification_count": gorm.Expr("payment_reconciliations.notification_count + 1"),
				"last_payload":       rawJSON,
				"last_notified_at":   now,
				"updated_at":         now,
			}),
		}).Create(&models.PaymentReconciliation{
			OrderID:           order.ID,
			GatewayOrderID:    n.OrderID,
			TransactionID:     n.TransactionID,
			TransactionStatus: n.TransactionStatus,
			FraudStatus:       n.FraudStatus,
			NotificationCount: 1,
			LastPayload:       rawJSON,
			LastNotifiedAt:    now,
		}).Error
		if err != nil {
			return fmt.Errorf("upsert reconciliation: %w", err)
		}

		if order.PaymentStatus == models.PaymentStatusPending && outcome.Status != models.PaymentStatusPending {
			switch outcome.Status {
			case models.PaymentStatusPaid:
				reference := n.TransactionID
				if reference == "" {
					reference = n.OrderID
				}
				result.Applied, err = markPaid(tx, order.ID, reference, now)
			case models.PaymentStatusFailed:
				result.Applied, err = failPendingOrder(tx, order.ID)
				if err == nil && result.Applied {
					tableFreed, err = releaseTableIfIdle(tx, order.TableID, now)
				}
			}
			if err != nil {
				return err
			}
			if result.Applied {
				result.PaymentStatus = outcome.Status
			}
		} else if order.PaymentStatus != outcome.Status {
			utils.ErrorLogger.WithFields(logrus.Fields{
				"order_uuid": n.OrderID,
				"current":    order.PaymentStatus,
				"incoming":   outcome.Status,
			}).Warn("ignoring regressive payment notification")
		}

		if err := tx.Model(&models.PaymentReconciliation{}).Where("order_id = ?", order.ID).
			Update("applied_status", result.PaymentStatus).Error; err != nil {
			return err
		}

		txID := n.TransactionID
		if txID == "" {
			txID = n.OrderID
		}
		return recordPaymentLog(tx, models.PaymentLog{
			OrderID:       order.ID,
			Amount:        paymentLogAmount(n.GrossAmount, order.TotalAmount),
			TransactionID: txID,
			Status:        paymentLogStatus(result.PaymentStatus),
			ResponseData:  rawJSON,
		})
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"order_uuid":         n.OrderID,
		"transaction_status": n.TransactionStatus,
		"payment_status":     result.PaymentStatus,
		"applied":            result.Applied,
	}).Info("payment notification processed")

	if result.Applied {
		switch result.PaymentStatus {
		case models.PaymentStatusPaid:
			if s.paid != nil {
				s.paid.Handle(ctx, orderID)
			}
		case models.PaymentStatusFailed:
			s.events.Publish(EventOrderFailed, nil, result)
			if tableFreed {
				s.events.Publish(EventTableUpdate, nil, map[string]interface{}{"table_id": tableID, "status": models.TableStatusFree})
			}
		}
	}
	return result, nil
}

func paymentLogStatus(orderStatus string) string {
	switch orderStatus {
	case models.PaymentStatusPaid:
		return models.PaymentLogSuccess
	case models.PaymentStatusFailed:
		return models.PaymentLogFailed
	default:
		return models.PaymentLogPending
	}
}

func paymentLogAmount(gross string, fallback decimal.Decimal) decimal.Decimal {
	if gross == "" {
		return fallback
	}
	amount, err := decimal.NewFromString(gross)
	if err != nil {
		return fallback
	}
	return amount
}

// BuildCheckoutRequest menyusun item_details dalam rupiah bulat. Bila pembulatan membuat
// jumlah baris berbeda dari gross amount, ditambahkan baris penyesuaian.
func BuildCheckoutRequest(order *models.Order, frontendURL string) CheckoutRequest {
	req := CheckoutRequest{
		OrderID:     order.OrderUUID,
		GrossAmount: order.TotalAmount.Round(0).IntPart(),
		FinishURL:   fmt.Sprintf("%s/payment-success?order_id=%s", frontendURL, order.OrderUUID),
	}
	if order.Customer != nil {
		req.CustomerEmail = order.Customer.Email
	}
	req.CustomerName = "Customer"
	if order.Table != nil {
		req.CustomerName = "Table " + order.Table.TableNumber
	}

	var sum int64
	for _, item := range order.Items {
		name := fmt.Sprintf("Menu %d", item.MenuID)
		if item.Menu != nil {
			name = item.Menu.Name
		}
		line := CheckoutLine{
			ID:       fmt.Sprintf("MENU-%d", item.MenuID),
			Name:     truncate(name, 50),
			Price:    item.Price.Round(0).IntPart(),
			Quantity: int32(item.Quantity),
		}
		sum += line.Price * int64(line.Quantity)
		req.Lines = append(req.Lines, line)
	}
	if sc := order.ServiceChargeAmount.Round(0).IntPart(); sc > 0 {
		req.Lines = append(req.Lines, CheckoutLine{ID: "SERVICE-CHARGE", Name: "Service Charge", Price: sc, Quantity: 1})
		sum += sc
	}
	if tax := order.TaxAmount.Round(0).IntPart(); tax > 0 {
		req.Lines = append(req.Lines, CheckoutLine{ID: "TAX", Name: "Tax", Price: tax, Quantity: 1})
		sum += tax
	}
	if diff := req.GrossAmount - sum; diff != 0 {
		req.Lines = append(req.Lines, CheckoutLine{ID: "ROUNDING", Name: "Rounding", Price: diff, Quantity: 1})
	}
	return req
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// CreateCheckout meminta token pembayaran untuk order Pending dan mencatat log Pending
func (s *PaymentService) CreateCheckout(ctx context.Context, order *models.Order) (*CheckoutResult, error) {
	if s.gateway == nil {
		return nil, errors.New("payment gateway is not configured")
	}
	if order.PaymentStatus != models.PaymentStatusPending {
		return nil, invalidTransition(order.PaymentStatus, "order %s is not awaiting payment", order.OrderNumber)
	}

	req := BuildCheckoutRequest(order, s.frontendURL)
	checkout, err := s.gateway.CreateCheckout(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create checkout: %w", err)
	}

	err = recordPaymentLog(s.db.WithContext(ctx), models.PaymentLog{
		OrderID:       order.ID,
		Amount:        order.TotalAmount,
		TransactionID: order.OrderUUID,
		Status:        models.PaymentLogPending,
		ResponseData:  jsonPayload(checkout),
	})
	if err != nil {
		utils.ErrorLogger.WithError(err).WithField("order_uuid", order.OrderUUID).Warn("write checkout payment log failed")
	}
	return checkout, nil
}

// ProcessPayment -> buat ulang token pembayaran untuk order yang masih Pending
func (s *PaymentService) ProcessPayment(ctx context.Context, orderUUID string) (*CheckoutResult, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("Items.Menu").Preload("Table").Preload("Customer").
		Where("order_uuid = ?", orderUUID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == models.PaymentStatusPaid {
		return nil, ErrAlreadyPaid
	}
	return s.CreateCheckout(ctx, &order)
}

// PaymentStatus -> status pembayaran order beserta log transaksinya
type PaymentStatus struct {
	OrderUUID     string              `json:"order_uuid"`
	OrderNumber   string              `json:"order_number"`
	PaymentStatus string              `json:"payment_status"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	Logs          []models.PaymentLog `json:"logs"`
}

func (s *PaymentService) Status(ctx context.Context, orderUUID string) (*PaymentStatus, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Where("order_uuid = ?", orderUUID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	status := &PaymentStatus{
		OrderUUID:     order.OrderUUID,
		OrderNumber:   order.OrderNumber,
		PaymentStatus: order.PaymentStatus,
		PaidAt:        order.PaidAt,
		TotalAmount:   order.TotalAmount,
		Logs:          []models.PaymentLog{},
	}
	if err := s.db.WithContext(ctx).Where("order_id = ?", order.ID).Order("created_at").Find(&status.Logs).Error; err != nil {
		return nil, err
	}
	return status, nil
}

// PollGateway menanyakan status transaksi ke gateway lalu memprosesnya seperti notifikasi
func (s *PaymentService) PollGateway(ctx context.Context, orderUUID string) (*NotificationResult, error) {
	if s.gateway == nil {
		return nil, errors.New("payment gateway is not configured")
	}
	n, err := s.gateway.CheckTransactionStatus(ctx, orderUUID)
	if err != nil {
		return nil, err
	}
	if n.OrderID == "" {
		n.OrderID = orderUUID
	}
	return s.reconcile(ctx, *n)
}

// HasGateway -> false bila MIDTRANS_SERVER_KEY kosong
func (s *PaymentService) HasGateway() bool {
	return s.gateway != nil
}
