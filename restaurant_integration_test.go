package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/youngalip/savor-backend/database"
	"github.com/youngalip/savor-backend/kds"
	"github.com/youngalip/savor-backend/models"
	"github.com/youngalip/savor-backend/router"
	"github.com/youngalip/savor-backend/services"
	"github.com/youngalip/savor-backend/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testServerKey     = "SB-Mid-server-integration"
	testStaffPassword = "secret123"
)

func TestMain(m *testing.M) {
	utils.InitLogger()
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// stubGateway -> gateway tanpa jaringan
type stubGateway struct{}

func (stubGateway) CreateCheckout(_ context.Context, req services.CheckoutRequest) (*services.CheckoutResult, error) {
	return &services.CheckoutResult{
		Token:       "snap-" + req.OrderID,
		RedirectURL: "https://app.sandbox.midtrans.com/snap/v2/vtweb/snap-" + req.OrderID,
		OrderID:     req.OrderID,
		GrossAmount: req.GrossAmount,
	}, nil
}

func (stubGateway) CheckTransactionStatus(_ context.Context, orderID string) (*services.Notification, error) {
	return nil, fmt.Errorf("transaction %s not found", orderID)
}

type testApp struct {
	t      *testing.T
	db     *gorm.DB
	engine *gin.Engine
}

// setupApp -> router lengkap di atas sqlite sementara, seed meja T01, menu demo, dan staff
func setupApp(t *testing.T) *testApp {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "savor.db") + "?_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.SeedDefaults(db))
	require.NoError(t, database.SeedTables(db, 1))
	require.NoError(t, database.SeedDemoMenus(db))
	require.NoError(t, database.SeedStaff(db, testStaffPassword))

	ctx := context.Background()
	hub := kds.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	settings := services.NewSettingsService(db, services.NewMemoryRateCache(), time.Hour, services.PricingRates{
		ServiceChargeRate: decimal.RequireFromString("0.07"),
		TaxRate:           decimal.RequireFromString("0.10"),
	})
	stationRouter, err := services.NewStationRouter(ctx, db)
	require.NoError(t, err)
	assigner := services.NewStationAssigner(db, stationRouter)
	stock := services.NewStockLedger(db)
	notifier := services.NewLogNotifier(db)
	paid := services.NewPostPaymentHandler(db, assigner, notifier, hub)

	midtrans := services.NewMidtransService(&services.MidtransConfig{ServerKey: testServerKey, ClientKey: "SB-Mid-client-integration"})
	payments := services.NewPaymentService(db, stubGateway{}, midtrans, paid, hub, "https://savor.test")
	monitor := services.NewPaymentMonitor(db, assigner, payments)
	paid.UseRetryQueue(monitor)

	orders := services.NewOrderService(db, settings, stock, payments, paid, stationRouter, notifier, hub, 2*time.Hour)
	sessions := services.NewSessionService(db, hub, 2*time.Hour)
	sweeper := services.NewSessionSweeper(db, monitor, hub, 24*time.Hour, time.Minute)
	jwtManager := utils.NewJWTManager("integration-secret", time.Hour)

	engine := router.SetupRouter(router.Deps{
		DB:        db,
		JWT:       jwtManager,
		Hub:       hub,
		Sessions:  sessions,
		Orders:    orders,
		Pricing:   services.NewPricingService(db, settings),
		Payments:  payments,
		Stations:  services.NewStationService(db, stationRouter),
		Router:    stationRouter,
		Stock:     stock,
		Settings:  settings,
		Sweeper:   sweeper,
		Monitor:   monitor,
		Auth:      services.NewAuthService(db, jwtManager),
		ClientKey: midtrans.ClientKey(),
	})
	return &testApp{t: t, db: db, engine: engine}
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// call -> kirim request JSON, kembalikan status code dan envelope respons
func (a *testApp) call(method, path, token string, body interface{}) (int, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var resp envelope
	require.NoErrorf(a.t, json.Unmarshal(w.Body.Bytes(), &resp), "body=%s", w.Body.String())
	return w.Code, resp
}

func decode(t *testing.T, resp envelope, v interface{}) {
	t.Helper()
	require.NoErrorf(t, json.Unmarshal(resp.Data, v), "data=%s", string(resp.Data))
}

func (a *testApp) login(email string) string {
	a.t.Helper()
	code, resp := a.call(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": testStaffPassword,
	})
	require.Equalf(a.t, http.StatusOK, code, "login %s: %s", email, resp.Message)

	var data struct {
		Token string `json:"token"`
	}
	decode(a.t, resp, &data)
	require.NotEmpty(a.t, data.Token)
	return data.Token
}

func (a *testApp) menuID(name string) uint {
	a.t.Helper()
	var menu models.Menu
	require.NoError(a.t, a.db.Where("name = ?", name).First(&menu).Error)
	return menu.ID
}

func (a *testApp) tableQR() string {
	a.t.Helper()
	var table models.Table
	require.NoError(a.t, a.db.Where("table_number = ?", "T01").First(&table).Error)
	return table.QRCode
}

func (a *testApp) scan(deviceID string) string {
	a.t.Helper()
	code, resp := a.call(http.MethodPost, "/api/v1/qr/scan", "", map[string]string{
		"qr_code":   a.tableQR(),
		"device_id": deviceID,
	})
	require.Equalf(a.t, http.StatusOK, code, "scan: %s", resp.Message)

	var data struct {
		SessionToken string `json:"session_token"`
		Table        struct {
			TableNumber string `json:"table_number"`
		} `json:"table"`
	}
	decode(a.t, resp, &data)
	assert.Equal(a.t, "T01", data.Table.TableNumber)
	return data.SessionToken
}

type createdOrder struct {
	OrderUUID   string `json:"order_uuid"`
	OrderNumber string `json:"order_number"`
	Breakdown   struct {
		Subtotal      decimal.Decimal `json:"subtotal"`
		ServiceCharge struct {
			Amount decimal.Decimal `json:"amount"`
		} `json:"service_charge"`
		Tax struct {
			Amount decimal.Decimal `json:"amount"`
		} `json:"tax"`
		Total decimal.Decimal `json:"total"`
	} `json:"breakdown"`
	Payment *struct {
		Token string `json:"token"`
	} `json:"payment"`
}

func (a *testApp) createOrder(token string, items ...map[string]interface{}) createdOrder {
	a.t.Helper()
	code, resp := a.call(http.MethodPost, "/api/v1/orders", "", map[string]interface{}{
		"session_token": token,
		"items":         items,
	})
	require.Equalf(a.t, http.StatusCreated, code, "create order: %s", resp.Message)
	var order createdOrder
	decode(a.t, resp, &order)
	return order
}

func item(menuID uint, qty int) map[string]interface{} {
	return map[string]interface{}{"menu_id": menuID, "quantity": qty}
}

type orderDetail struct {
	Order struct {
		ID            uint   `json:"id"`
		PaymentStatus string `json:"payment_status"`
		Items         []struct {
			ID     uint   `json:"id"`
			MenuID uint   `json:"menu_id"`
			Status string `json:"status"`
		} `json:"items"`
	} `json:"order"`
	Status string `json:"status"`
}

func (a *testApp) orderDetail(orderUUID string) orderDetail {
	a.t.Helper()
	code, resp := a.call(http.MethodGet, "/api/v1/orders/"+orderUUID, "", nil)
	require.Equal(a.t, http.StatusOK, code)
	var detail orderDetail
	decode(a.t, resp, &detail)
	return detail
}

func (d orderDetail) itemID(menuID uint) uint {
	for _, it := range d.Order.Items {
		if it.MenuID == menuID {
			return it.ID
		}
	}
	return 0
}

func settlement(orderUUID, grossAmount, serverKey string) map[string]string {
	n := map[string]string{
		"order_id":           orderUUID,
		"transaction_status": "settlement",
		"transaction_id":     "tx-" + orderUUID,
		"status_code":        "200",
		"gross_amount":       grossAmount,
		"payment_type":       "qris",
	}
	n["signature_key"] = services.MidtransSignature(serverKey, orderUUID, "200", grossAmount)
	return n
}

// TestOnlinePaymentFlow -> scan, pesan, bayar lewat gateway, station menyelesaikan item, meja kosong
func TestOnlinePaymentFlow(t *testing.T) {
	app := setupApp(t)
	rendang := app.menuID("Beef Rendang")
	americano := app.menuID("Americano")

	token := app.scan("device-online")

	code, resp := app.call(http.MethodPost, "/api/v1/orders/calculate", "", map[string]interface{}{
		"items": []map[string]interface{}{item(rendang, 1), item(americano, 1)},
	})
	require.Equal(t, http.StatusOK, code, resp.Message)

	order := app.createOrder(token, item(rendang, 1), item(americano, 1))
	assert.Regexp(t, `^ORD-\d{8}-001$`, order.OrderNumber)
	assert.True(t, decimal.NewFromInt(56000).Equal(order.Breakdown.Subtotal))
	assert.True(t, decimal.NewFromInt(3920).Equal(order.Breakdown.ServiceCharge.Amount))
	assert.True(t, decimal.NewFromInt(5992).Equal(order.Breakdown.Tax.Amount))
	assert.True(t, decimal.NewFromInt(65912).Equal(order.Breakdown.Total))
	require.NotNil(t, order.Payment)
	assert.Equal(t, "snap-"+order.OrderUUID, order.Payment.Token)

	// signature palsu ditolak
	code, _ = app.call(http.MethodPost, "/api/v1/payment/notification", "", settlement(order.OrderUUID, "65912.00", "wrong-key"))
	assert.Equal(t, http.StatusForbidden, code)

	code, resp = app.call(http.MethodPost, "/api/v1/payment/notification", "", settlement(order.OrderUUID, "65912.00", testServerKey))
	require.Equal(t, http.StatusOK, code, resp.Message)
	assert.Equal(t, "Notification processed", resp.Message)

	code, resp = app.call(http.MethodPost, "/api/v1/payment/notification", "", settlement(order.OrderUUID, "65912.00", testServerKey))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Notification acknowledged", resp.Message)

	code, resp = app.call(http.MethodGet, "/api/v1/payment/status/"+order.OrderUUID, "", nil)
	require.Equal(t, http.StatusOK, code)
	var status struct {
		PaymentStatus string `json:"payment_status"`
	}
	decode(t, resp, &status)
	assert.Equal(t, models.PaymentStatusPaid, status.PaymentStatus)

	detail := app.orderDetail(order.OrderUUID)
	assert.Equal(t, models.DisplayStatusInProgress, detail.Status)

	kitchen := app.login("kitchen@savor.local")
	bar := app.login("bar@savor.local")

	code, resp = app.call(http.MethodGet, "/api/v1/stations/kitchen/queue", kitchen, nil)
	require.Equal(t, http.StatusOK, code)
	var queue []struct {
		TableNumber string `json:"table_number"`
		Orders      []struct {
			OrderNumber string `json:"order_number"`
			Items       []struct {
				OrderItemID uint   `json:"order_item_id"`
				MenuName    string `json:"menu_name"`
			} `json:"items"`
		} `json:"orders"`
	}
	decode(t, resp, &queue)
	require.Len(t, queue, 1)
	require.Len(t, queue[0].Orders, 1)
	require.Len(t, queue[0].Orders[0].Items, 1)
	assert.Equal(t, "Beef Rendang", queue[0].Orders[0].Items[0].MenuName)

	code, _ = app.call(http.MethodGet, "/api/v1/stations/bar/queue", kitchen, nil)
	assert.Equal(t, http.StatusForbidden, code)

	// dapur tidak bisa menutup item bar
	americanoItem := detail.itemID(americano)
	code, resp = app.call(http.MethodPost, fmt.Sprintf("/api/v1/stations/items/%d/done", americanoItem), kitchen, nil)
	assert.Equal(t, http.StatusNotFound, code, resp.Message)

	code, resp = app.call(http.MethodPost, fmt.Sprintf("/api/v1/stations/items/%d/done", detail.itemID(rendang)), kitchen, nil)
	require.Equal(t, http.StatusOK, code, resp.Message)

	code, resp = app.call(http.MethodPost, fmt.Sprintf("/api/v1/stations/items/%d/done", americanoItem), bar, nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	var done struct {
		OrderCompleted bool `json:"order_completed"`
	}
	decode(t, resp, &done)
	assert.True(t, done.OrderCompleted)

	assert.Equal(t, models.DisplayStatusCompleted, app.orderDetail(order.OrderUUID).Status)

	var table models.Table
	require.NoError(t, app.db.Where("table_number = ?", "T01").First(&table).Error)
	assert.Equal(t, models.TableStatusFree, table.Status)
}

// TestCashierFlow -> bayar tunai di kasir, konflik state dijawab 409 dengan kind
func TestCashierFlow(t *testing.T) {
	app := setupApp(t)
	cake := app.menuID("Red Velvet Cake")
	token := app.scan("device-cash")
	order := app.createOrder(token, item(cake, 2))
	detail := app.orderDetail(order.OrderUUID)
	orderPath := fmt.Sprintf("/api/v1/cashier/orders/%d", detail.Order.ID)

	code, _ := app.call(http.MethodGet, "/api/v1/cashier/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	kitchen := app.login("kitchen@savor.local")
	code, _ = app.call(http.MethodGet, "/api/v1/cashier/orders", kitchen, nil)
	assert.Equal(t, http.StatusForbidden, code)

	cashier := app.login("kasir@savor.local")
	code, resp := app.call(http.MethodGet, "/api/v1/cashier/orders?status=pending_payment", cashier, nil)
	require.Equal(t, http.StatusOK, code)
	var listed []map[string]interface{}
	decode(t, resp, &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, order.OrderNumber, listed[0]["order_number"])

	code, resp = app.call(http.MethodPost, orderPath+"/complete", cashier, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, string(resp.Data), `"NotYetPaid"`)

	code, resp = app.call(http.MethodPost, orderPath+"/validate-payment", cashier, nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	var view map[string]interface{}
	decode(t, resp, &view)
	assert.Equal(t, "Cash", view["payment_method"])
	assert.Equal(t, models.DisplayStatusInProgress, view["status"])

	code, resp = app.call(http.MethodPost, orderPath+"/validate-payment", cashier, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, string(resp.Data), `"AlreadyPaid"`)

	code, resp = app.call(http.MethodPost, orderPath+"/complete", cashier, nil)
	assert.Equal(t, http.StatusConflict, code)
	var pending struct {
		Kind           string `json:"kind"`
		PendingItemIDs []uint `json:"pending_item_ids"`
	}
	decode(t, resp, &pending)
	assert.Equal(t, "ItemsNotAllDone", pending.Kind)
	assert.Equal(t, []uint{detail.itemID(cake)}, pending.PendingItemIDs)

	code, resp = app.call(http.MethodPost, fmt.Sprintf("/api/v1/cashier/items/%d/done", detail.itemID(cake)), cashier, nil)
	require.Equal(t, http.StatusOK, code, resp.Message)

	code, resp = app.call(http.MethodPost, orderPath+"/complete", cashier, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, string(resp.Data), `"AlreadyCompleted"`)

	code, resp = app.call(http.MethodGet, "/api/v1/cashier/statistics", cashier, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(resp.Data), `"total_orders":1`)

	code, _ = app.call(http.MethodPost, "/api/v1/cashier/orders/abc/cancel", cashier, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestOrderRejections(t *testing.T) {
	app := setupApp(t)
	cake := app.menuID("Red Velvet Cake")
	cookies := app.menuID("Chocolate Chip Cookies")
	token := app.scan("device-reject")

	code, resp := app.call(http.MethodPost, "/api/v1/orders", "", map[string]interface{}{
		"session_token": token,
		"items":         []map[string]interface{}{item(cake, 11), item(cookies, 1)},
	})
	assert.Equal(t, http.StatusConflict, code)
	var shortage struct {
		Kind        string `json:"kind"`
		StockErrors []struct {
			MenuName  string `json:"menu_name"`
			Available int    `json:"available"`
		} `json:"stock_errors"`
		AvailableItems []struct {
			MenuName string `json:"menu_name"`
		} `json:"available_items"`
	}
	decode(t, resp, &shortage)
	assert.Equal(t, "StockInsufficient", shortage.Kind)
	require.Len(t, shortage.StockErrors, 1)
	assert.Equal(t, "Red Velvet Cake", shortage.StockErrors[0].MenuName)
	assert.Equal(t, 10, shortage.StockErrors[0].Available)
	require.Len(t, shortage.AvailableItems, 1)

	code, _ = app.call(http.MethodPost, "/api/v1/orders", "", map[string]interface{}{
		"session_token": "unknown-token",
		"items":         []map[string]interface{}{item(cake, 1)},
	})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = app.call(http.MethodPost, "/api/v1/orders", "", map[string]interface{}{
		"session_token": token,
		"items":         []map[string]interface{}{},
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = app.call(http.MethodPost, "/api/v1/qr/scan", "", map[string]string{"qr_code": "QR_T99_1700000000"})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = app.call(http.MethodGet, "/api/v1/orders/00000000-0000-0000-0000-000000000000", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

// TestAdminPricingUpdate -> tarif baru berlaku untuk order berikutnya, order lama tetap
func TestAdminPricingUpdate(t *testing.T) {
	app := setupApp(t)
	americano := app.menuID("Americano")
	token := app.scan("device-admin")
	before := app.createOrder(token, item(americano, 1))

	admin := app.login("owner@savor.local")
	code, resp := app.call(http.MethodPut, "/api/v1/admin/settings/pricing", admin, map[string]string{"tax_rate": "0.11"})
	require.Equal(t, http.StatusOK, code, resp.Message)

	code, _ = app.call(http.MethodPut, "/api/v1/admin/settings/pricing", admin, map[string]string{"tax_rate": "1.5"})
	assert.Equal(t, http.StatusBadRequest, code)

	after := app.createOrder(token, item(americano, 1))
	// 18000 + 1260 = 19260, pajak 10% = 1926 lalu 11% = 2118.60
	assert.True(t, decimal.NewFromInt(21186).Equal(before.Breakdown.Total))
	assert.True(t, decimal.RequireFromString("21378.60").Equal(after.Breakdown.Total))

	code, resp = app.call(http.MethodGet, "/api/v1/orders/"+before.OrderUUID, "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(resp.Data), `"tax_rate":"0.1"`)

	code, _ = app.call(http.MethodPost, "/api/v1/admin/sessions/cleanup", admin, nil)
	assert.Equal(t, http.StatusOK, code)

	cashier := app.login("kasir@savor.local")
	code, _ = app.call(http.MethodGet, "/api/v1/admin/settings/pricing", cashier, nil)
	assert.Equal(t, http.StatusForbidden, code)
}
