package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/youngalip/savor-backend/controllers"
	"github.com/youngalip/savor-backend/kds"
	"github.com/youngalip/savor-backend/middlewares"
	"github.com/youngalip/savor-backend/services"
	"github.com/youngalip/savor-backend/utils"
	"gorm.io/gorm"
)

// Deps -> semua service yang dibutuhkan controller
type Deps struct {
	DB         *gorm.DB
	JWT        *utils.JWTManager
	Hub        *kds.Hub
	Sessions   *services.SessionService
	Orders     *services.OrderService
	Pricing    *services.PricingService
	Payments   *services.PaymentService
	Stations   *services.StationService
	Router     *services.StationRouter
	Stock      *services.StockLedger
	Settings   *services.SettingsService
	Sweeper    *services.SessionSweeper
	Monitor    *services.PaymentMonitor
	Auth       *services.AuthService
	ClientKey  string
	CORSOrigin string
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// Apply security middlewares
	r.Use(middlewares.SecurityHeaders(d.CORSOrigin))
	r.Use(middlewares.CORSMiddlewares(d.CORSOrigin))
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.NewRateLimiter(20*time.Millisecond, 50).RateLimit())

	// Inisialisasi controller
	customerCtrl := controllers.NewCustomerController(d.Sessions)
	orderCtrl := controllers.NewOrderController(d.Orders, d.Pricing)
	paymentCtrl := controllers.NewPaymentController(d.Payments, d.ClientKey)
	cashierCtrl := controllers.NewCashierController(d.Orders)
	stationCtrl := controllers.NewStationController(d.Orders, d.Stations, d.Stock, d.Hub)
	adminCtrl := controllers.NewAdminController(d.Settings, d.Sweeper, d.Monitor)
	userCtrl := controllers.NewUserController(d.Auth)
	menuCtrl := controllers.NewMenuController(d.DB)
	categoryCtrl := controllers.NewMenuCategoryController(d.DB, d.Router)
	tableCtrl := controllers.NewTableController(d.DB)
	notificationCtrl := controllers.NewNotificationController(d.DB)
	kdsCtrl := controllers.NewKDSController(d.Hub, d.CORSOrigin)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	api := r.Group("/api/v1")

	// -- CUSTOMER (Tanpa Auth) --
	api.POST("/qr/scan", customerCtrl.ScanQR)
	api.GET("/sessions/:token", customerCtrl.GetSession)
	api.POST("/sessions/validate", customerCtrl.ValidateSession)
	api.POST("/sessions/:token/extend", customerCtrl.ExtendSession)

	api.GET("/menus", menuCtrl.GetMenus)

	api.POST("/orders/calculate", orderCtrl.CalculateOrder)
	api.POST("/orders", orderCtrl.CreateOrder)
	api.GET("/orders/:uuid", orderCtrl.GetOrder)
	api.GET("/orders/history/device", orderCtrl.DeviceHistory)
	api.GET("/orders/history/:token", orderCtrl.OrderHistory)

	payment := api.Group("/payment")
	payment.Use(middlewares.PaymentSecurityHeaders(), middlewares.LogPaymentRequest())
	{
		// dipanggil server Midtrans, keaslian dicek lewat signature_key
		payment.POST("/notification", paymentCtrl.HandleNotification)
		payment.POST("/process/:uuid", paymentCtrl.ProcessPayment)
		payment.GET("/status/:uuid", paymentCtrl.GetPaymentStatus)
	}

	// Rate limiter untuk login
	auth := api.Group("/auth")
	auth.Use(middlewares.NewStrictRateLimiter())
	{
		auth.POST("/login", userCtrl.Login)
	}

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	staff := api.Group("/")
	staff.Use(middlewares.AuthMiddleware(d.JWT))
	staff.GET("/auth/me", userCtrl.Me)

	cashier := staff.Group("/cashier")
	cashier.Use(middlewares.RoleCheck(utils.RoleCashier))
	{
		cashier.GET("/orders", cashierCtrl.GetOrders)
		cashier.GET("/orders/:id", cashierCtrl.GetOrder)
		cashier.POST("/orders/:id/validate-payment", cashierCtrl.ValidatePayment)
		cashier.POST("/orders/:id/cancel", cashierCtrl.CancelOrder)
		cashier.POST("/orders/:id/complete", cashierCtrl.CompleteOrder)
		cashier.POST("/items/:id/done", cashierCtrl.MarkItemDone)
		cashier.GET("/statistics", cashierCtrl.GetStatistics)
	}

	stations := staff.Group("/stations")
	stations.Use(middlewares.RoleCheck(utils.RoleCashier, utils.RoleKitchen, utils.RoleBar, utils.RolePastry))
	{
		stations.POST("/items/:id/done", stationCtrl.MarkItemDone)
		stations.POST("/items/batch-done", stationCtrl.MarkItemsDone)
		stations.PUT("/menus/:id/stock", stationCtrl.UpdateStock)

		board := stations.Group("/:station")
		board.Use(middlewares.StationAccess())
		board.GET("/queue", stationCtrl.GetQueue)
		board.GET("/stats", stationCtrl.GetStats)
		board.GET("/menus", stationCtrl.GetMenus)
	}

	admin := staff.Group("/admin")
	admin.Use(middlewares.RoleCheck(utils.RoleAdmin))
	{
		admin.GET("/settings/pricing", adminCtrl.GetPricing)
		admin.PUT("/settings/pricing", adminCtrl.UpdatePricing)
		admin.POST("/settings/reload", adminCtrl.ReloadSettings)
		admin.POST("/sessions/cleanup", adminCtrl.CleanupSessions)
		admin.GET("/payment-monitor", adminCtrl.GetPaymentMonitor)

		admin.GET("/tables", tableCtrl.GetAllTables)
		admin.POST("/tables", tableCtrl.CreateTable)
		admin.POST("/tables/:id/regenerate-qr", tableCtrl.RegenerateQR)

		admin.GET("/categories", categoryCtrl.GetAllCategories)
		admin.PUT("/categories/:id/station", categoryCtrl.UpdateCategoryStation)

		admin.GET("/notifications", notificationCtrl.GetAllNotifications)
	}

	// WebSocket KDS, token lewat ?token= karena browser tidak bisa set header
	ws := r.Group("/kds")
	ws.Use(middlewares.AuthMiddleware(d.JWT), middlewares.RoleCheck(utils.RoleCashier, utils.RoleKitchen, utils.RoleBar, utils.RolePastry))
	{
		ws.GET("/ws", kdsCtrl.KDSHandler)
	}

	return r
}
