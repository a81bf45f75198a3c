package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/youngalip/savor-backend/models"
	"github.com/youngalip/savor-backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var qrPattern = regexp.MustCompile(`^QR_([A-Za-z0-9-]+)_([0-9]{1,12})$`)

// ParseTableQR memecah nilai QR_{tableNumber}_{unix} secara ketat
func ParseTableQR(value string) (string, time.Time, error) {
	m := qrPattern.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return "", time.Time{}, invalidRequest("invalid QR code format")
	}
	ts, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return "", time.Time{}, invalidRequest("invalid QR code timestamp")
	}
	return m[1], time.Unix(ts, 0), nil
}

// DeviceInfo -> sumber identitas perangkat dari request scan
type DeviceInfo struct {
	HeaderID     string
	BodyID       string
	UserAgent    string
	IPAddress    string
	ScreenWidth  int
	ScreenHeight int
	Timezone     string
}

// ResolveDeviceID memakai id dari client (header lalu body), fallback ke hash fingerprint
func ResolveDeviceID(info DeviceInfo) string {
	if id := strings.TrimSpace(info.HeaderID); id != "" {
		return id
	}
	if id := strings.TrimSpace(info.BodyID); id != "" {
		return id
	}
	raw := fmt.Sprintf("%s|%s|%d|%d|%s", info.UserAgent, info.IPAddress, info.ScreenWidth, info.ScreenHeight, info.Timezone)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func newSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// TableSummary -> data meja yang dikembalikan ke customer
type TableSummary struct {
	ID          uint   `json:"id"`
	TableNumber string `json:"table_number"`
	Status      string `json:"status"`
}

type ScanRequest struct {
	QRCode string
	Device DeviceInfo
}

type ScanResult struct {
	CustomerUUID        string         `json:"customer_uuid"`
	SessionToken        string         `json:"session_token"`
	Table               TableSummary   `json:"table"`
	SessionExpiresAt    time.Time      `json:"session_expires_at"`
	IsReturningCustomer bool           `json:"is_returning_customer"`
	ExistingOrders      []OrderSummary `json:"existing_orders"`
}

// SessionInfo -> status sesi untuk endpoint GET/validate
type SessionInfo struct {
	CustomerUUID     string         `json:"customer_uuid"`
	Email            string         `json:"email,omitempty"`
	Table            *TableSummary  `json:"table,omitempty"`
	LastActivity     time.Time      `json:"last_activity"`
	SessionExpiresAt *time.Time     `json:"session_expires_at"`
	IsValid          bool           `json:"is_valid"`
	ActiveOrders     []OrderSummary `json:"active_orders"`
}

// SessionService mengikat scan QR + perangkat ke customer dan meja
type SessionService struct {
	db     *gorm.DB
	events EventPublisher
	window time.Duration
	now    func() time.Time
}

func NewSessionService(db *gorm.DB, events EventPublisher, window time.Duration) *SessionService {
	if events == nil {
		events = nopPublisher{}
	}
	return &SessionService{db: db, events: events, window: window, now: time.Now}
}

// Scan -> resolve meja, upsert customer berdasarkan device id, rotasi token.
// Customer yang masih punya order aktif di meja yang sama diperpanjang sesinya.
func (s *SessionService) Scan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	tableNumber, _, err := ParseTableQR(req.QRCode)
	if err != nil {
		return nil, err
	}
	deviceID := ResolveDeviceID(req.Device)
	now := s.now()
	expiresAt := now.Add(s.window)

	result := &ScanResult{}
	var table models.Table
	var tableChanged bool

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("table_number = ? AND qr_code = ?", tableNumber, strings.TrimSpace(req.QRCode)).First(&table).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTableNotFound
		}
		if err != nil {
			return err
		}

		customer, err := s.upsertCustomer(tx, deviceID, req.Device, now)
		if err != nil {
			return err
		}

		var active []models.Order
		err = tx.Where("customer_id = ? AND table_id = ? AND session_expires_at > ? AND payment_status <> ?",
			customer.ID, table.ID, now, models.PaymentStatusFailed).
			Order("created_at").Find(&active).Error
		if err != nil {
			return err
		}

		if len(active) > 0 {
			result.IsReturningCustomer = true
			ids := make([]uint, len(active))
			for i, o := range active {
				ids[i] = o.ID
				active[i].SessionExpiresAt = expiresAt
			}
			if err := tx.Model(&models.Order{}).Where("id IN ?", ids).
				Update("session_expires_at", expiresAt).Error; err != nil {
				return err
			}
		}

		token, err := newSessionToken()
		if err != nil {
			return err
		}
		tableID := table.ID
		if err := tx.Model(customer).Updates(map[string]interface{}{
			"session_token":      token,
			"last_activity":      now,
			"session_expires_at": expiresAt,
			"table_id":           tableID,
			"user_agent":         req.Device.UserAgent,
			"ip_address":         req.Device.IPAddress,
		}).Error; err != nil {
			return err
		}

		// status meja hanya informasi, bukan lock
		if table.Status != models.TableStatusOccupied {
			if err := tx.Model(&table).Update("status", models.TableStatusOccupied).Error; err != nil {
				return err
			}
			table.Status = models.TableStatusOccupied
			tableChanged = true
		}

		result.CustomerUUID = customer.UUID
		result.SessionToken = token
		result.SessionExpiresAt = expiresAt
		result.ExistingOrders = summarizeOrders(active)
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Table = TableSummary{ID: table.ID, TableNumber: table.TableNumber, Status: table.Status}
	if tableChanged {
		s.events.Publish(EventTableUpdate, nil, result.Table)
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"table":     table.TableNumber,
		"customer":  result.CustomerUUID,
		"returning": result.IsReturningCustomer,
	}).Info("qr scanned")
	return result, nil
}

// upsertCustomer -> satu device id selalu satu customer, aman terhadap scan bersamaan
func (s *SessionService) upsertCustomer(tx *gorm.DB, deviceID string, device DeviceInfo, now time.Time) (*models.Customer, error) {
	candidate := models.Customer{
		UUID:         uuid.NewString(),
		DeviceID:     &deviceID,
		UserAgent:    device.UserAgent,
		IPAddress:    device.IPAddress,
		LastActivity: now,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}},
		DoNothing: true,
	}).Create(&candidate).Error
	if err != nil {
		return nil, fmt.Errorf("upsert customer: %w", err)
	}

	var customer models.Customer
	if err := tx.Where("device_id = ?", deviceID).First(&customer).Error; err != nil {
		return nil, fmt.Errorf("reload customer: %w", err)
	}
	return &customer, nil
}

// customerByToken mencari customer pemilik token, tanpa memeriksa masa berlaku
func customerByToken(tx *gorm.DB, token string) (*models.Customer, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrSessionNotFound
	}
	var customer models.Customer
	err := tx.Where("session_token = ?", token).First(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// validSession -> SessionNotFound atau SessionExpired, selain itu customer yang valid
func validSession(tx *gorm.DB, token string, now time.Time) (*models.Customer, error) {
	customer, err := customerByToken(tx, token)
	if err != nil {
		return nil, err
	}
	if !customer.HasValidSession(now) {
		return nil, ErrSessionExpired
	}
	return customer, nil
}

// ValidateSession memastikan token masih berlaku dan memperbarui last_activity
func (s *SessionService) ValidateSession(ctx context.Context, token string) (*models.Customer, error) {
	now := s.now()
	db := s.db.WithContext(ctx)

	customer, err := validSession(db, token, now)
	if err != nil {
		return nil, err
	}
	if err := db.Model(customer).Update("last_activity", now).Error; err != nil {
		return nil, err
	}
	customer.LastActivity = now
	return customer, nil
}

// GetSession -> info sesi termasuk order yang masih aktif. Token kedaluwarsa tetap dijawab dengan IsValid=false.
func (s *SessionService) GetSession(ctx context.Context, token string) (*SessionInfo, error) {
	now := s.now()
	db := s.db.WithContext(ctx)

	customer, err := customerByToken(db, token)
	if err != nil {
		return nil, err
	}

	info := &SessionInfo{
		CustomerUUID:     customer.UUID,
		Email:            customer.Email,
		LastActivity:     customer.LastActivity,
		SessionExpiresAt: customer.SessionExpiresAt,
		IsValid:          customer.HasValidSession(now),
	}

	if customer.TableID != nil {
		var table models.Table
		if err := db.First(&table, *customer.TableID).Error; err == nil {
			info.Table = &TableSummary{ID: table.ID, TableNumber: table.TableNumber, Status: table.Status}
		}
	}

	var active []models.Order
	if err := db.Preload("Items").
		Where("customer_id = ? AND session_expires_at > ? AND payment_status <> ?", customer.ID, now, models.PaymentStatusFailed).
		Order("created_at").Find(&active).Error; err != nil {
		return nil, err
	}
	info.ActiveOrders = summarizeOrders(active)

	if info.IsValid {
		if err := db.Model(customer).Update("last_activity", now).Error; err != nil {
			return nil, err
		}
		info.LastActivity = now
	}
	return info, nil
}

// ExtendSession memperpanjang sesi yang masih berlaku beserta order aktifnya
func (s *SessionService) ExtendSession(ctx context.Context, token string) (time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.window)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := validSession(tx, token, now)
		if err != nil {
			return err
		}
		if err := tx.Model(customer).Updates(map[string]interface{}{
			"session_expires_at": expiresAt,
			"last_activity":      now,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Order{}).
			Where("customer_id = ? AND session_expires_at > ? AND payment_status <> ?", customer.ID, now, models.PaymentStatusFailed).
			Update("session_expires_at", expiresAt).Error
	})
	if err != nil {
		return time.Time{}, err
	}
	return expiresAt, nil
}
