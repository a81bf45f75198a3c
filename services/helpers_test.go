package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/youngalip/savor-backend/database"
	"github.com/youngalip/savor-backend/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB -> sqlite di file sementara. _txlock=immediate membuat transaksi yang
// berjalan bersamaan benar-benar saling menunggu.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "savor.db") +
		"?_busy_timeout=5000&_txlock=immediate&_journal_mode=WAL&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.SeedDefaults(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Now().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type publishedEvent struct {
	Name     string
	Stations []models.Station
	Data     interface{}
}

// recordingPublisher menyimpan semua event yang dikirim service
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(event string, stations []models.Station, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Name: event, Stations: stations, Data: data})
}

func (p *recordingPublisher) count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

func (p *recordingPublisher) last(name string) (publishedEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].Name == name {
			return p.events[i], true
		}
	}
	return publishedEvent{}, false
}

type sentMail struct {
	EventType string
	OrderID   uint
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *fakeNotifier) Send(_ context.Context, eventType string, order *models.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMail{EventType: eventType, OrderID: order.ID})
	return nil
}

func (n *fakeNotifier) count(eventType string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s.EventType == eventType {
			c++
		}
	}
	return c
}

// fakeGateway -> gateway tanpa jaringan, status transaksi diatur per order uuid
type fakeGateway struct {
	mu        sync.Mutex
	checkouts []CheckoutRequest
	statuses  map[string]*Notification
	err       error
}

func (g *fakeGateway) CreateCheckout(_ context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.checkouts = append(g.checkouts, req)
	return &CheckoutResult{
		Token:       "snap-" + req.OrderID,
		RedirectURL: "https://app.sandbox.midtrans.com/snap/v2/vtweb/snap-" + req.OrderID,
		OrderID:     req.OrderID,
		GrossAmount: req.GrossAmount,
	}, nil
}

func (g *fakeGateway) CheckTransactionStatus(_ context.Context, orderID string) (*Notification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.statuses[orderID]
	if !ok {
		return nil, fmt.Errorf("transaction %s not found", orderID)
	}
	copied := *n
	return &copied, nil
}

func (g *fakeGateway) setStatus(orderID, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.statuses == nil {
		g.statuses = make(map[string]*Notification)
	}
	g.statuses[orderID] = &Notification{
		OrderID:           orderID,
		TransactionStatus: status,
		TransactionID:     "tx-" + orderID,
		StatusCode:        "200",
	}
}

// fixture -> semua service terhubung ke satu database test
type fixture struct {
	t        *testing.T
	ctx      context.Context
	db       *gorm.DB
	clock    *testClock
	events   *recordingPublisher
	notifier *fakeNotifier
	gateway  *fakeGateway

	settings *SettingsService
	router   *StationRouter
	assigner *StationAssigner
	stock    *StockLedger
	paid     *PostPaymentHandler
	payments *PaymentService
	monitor  *PaymentMonitor
	orders   *OrderService
	sessions *SessionService
	stations *StationService
	sweeper  *SessionSweeper

	table models.Table
	menus map[string]models.Menu
}

const testWindow = 2 * time.Hour

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		db:       setupTestDB(t),
		clock:    newTestClock(),
		events:   &recordingPublisher{},
		notifier: &fakeNotifier{},
		gateway:  &fakeGateway{},
		menus:    make(map[string]models.Menu),
	}

	f.table = f.createTable("T01")
	f.createMenu("Pizza", "Mains", "20000", 10)
	f.createMenu("Juice", "Drinks", "8000", 10)
	f.createMenu("Croissant", "Pastry", "15000", 3)

	var err error
	f.router, err = NewStationRouter(f.ctx, f.db)
	require.NoError(t, err)

	f.settings = NewSettingsService(f.db, NewMemoryRateCache(), time.Hour, PricingRates{
		ServiceChargeRate: decimal.RequireFromString("0.07"),
		TaxRate:           decimal.RequireFromString("0.10"),
	})
	f.assigner = NewStationAssigner(f.db, f.router)
	f.assigner.now = f.clock.Now
	f.stock = NewStockLedger(f.db)
	f.paid = NewPostPaymentHandler(f.db, f.assigner, f.notifier, f.events)
	f.payments = NewPaymentService(f.db, f.gateway, nil, f.paid, f.events, "https://savor.test")
	f.payments.now = f.clock.Now
	f.monitor = NewPaymentMonitor(f.db, f.assigner, f.payments)
	f.monitor.now = f.clock.Now
	f.paid.UseRetryQueue(f.monitor)
	f.orders = NewOrderService(f.db, f.settings, f.stock, f.payments, f.paid, f.router, f.notifier, f.events, testWindow)
	f.orders.now = f.clock.Now
	f.sessions = NewSessionService(f.db, f.events, testWindow)
	f.sessions.now = f.clock.Now
	f.stations = NewStationService(f.db, f.router)
	f.stations.now = f.clock.Now
	f.sweeper = NewSessionSweeper(f.db, f.monitor, f.events, 24*time.Hour, time.Minute)
	f.sweeper.now = f.clock.Now
	return f
}

func (f *fixture) createTable(number string) models.Table {
	f.t.Helper()
	now := time.Now()
	table := models.Table{
		TableNumber:   number,
		QRCode:        models.TableQRCode(number, now),
		Status:        models.TableStatusFree,
		QRGeneratedAt: &now,
	}
	require.NoError(f.t, f.db.Create(&table).Error)
	return table
}

func (f *fixture) createMenu(name, category, price string, stock int) models.Menu {
	f.t.Helper()
	var cat models.MenuCategory
	require.NoError(f.t, f.db.Where("name = ?", category).First(&cat).Error)
	menu := models.Menu{
		CategoryID:    cat.ID,
		Name:          name,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		MinimumStock:  1,
		IsAvailable:   true,
	}
	require.NoError(f.t, f.db.Create(&menu).Error)
	f.menus[name] = menu
	return menu
}

func (f *fixture) menuID(name string) uint {
	return f.menus[name].ID
}

func (f *fixture) stockOf(name string) int {
	f.t.Helper()
	var menu models.Menu
	require.NoError(f.t, f.db.First(&menu, f.menuID(name)).Error)
	return menu.StockQuantity
}

// scan -> token sesi baru untuk perangkat di meja fixture
func (f *fixture) scan(deviceID string) *ScanResult {
	f.t.Helper()
	res, err := f.sessions.Scan(f.ctx, ScanRequest{
		QRCode: f.table.QRCode,
		Device: DeviceInfo{HeaderID: deviceID, UserAgent: "test-agent", IPAddress: "127.0.0.1"},
	})
	require.NoError(f.t, err)
	return res
}

func (f *fixture) placeOrder(token string, items ...ItemRequest) *CreateOrderResult {
	f.t.Helper()
	res, err := f.orders.CreateOrder(f.ctx, CreateOrderRequest{SessionToken: token, Items: items})
	require.NoError(f.t, err)
	return res
}

// examplePaidOrder -> pizza + juice, sudah dibayar tunai
func (f *fixture) examplePaidOrder() *models.Order {
	f.t.Helper()
	session := f.scan("device-paid")
	created := f.placeOrder(session.SessionToken,
		ItemRequest{MenuID: f.menuID("Pizza"), Quantity: 1},
		ItemRequest{MenuID: f.menuID("Juice"), Quantity: 1},
	)
	order, err := f.orders.ValidateCashPayment(f.ctx, created.Order.ID)
	require.NoError(f.t, err)
	return order
}

func (f *fixture) reloadOrder(id uint) models.Order {
	f.t.Helper()
	var order models.Order
	require.NoError(f.t, f.db.Preload("Items").First(&order, id).Error)
	return order
}

func (f *fixture) reloadTable() models.Table {
	f.t.Helper()
	var table models.Table
	require.NoError(f.t, f.db.First(&table, f.table.ID).Error)
	return table
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.RequireFromString(expected).Equal(actual), "expected %s, got %s", expected, actual.String())
}
