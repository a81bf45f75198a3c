package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/youngalip/savor-backend/config"
	"github.com/youngalip/savor-backend/database"
	"github.com/youngalip/savor-backend/kds"
	"github.com/youngalip/savor-backend/router"
	"github.com/youngalip/savor-backend/services"
	"github.com/youngalip/savor-backend/utils"
	"gorm.io/gorm"
)

func main() {
	utils.InitLogger()
	cfg := config.Load()

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.JWTSecret == "" {
		utils.ErrorLogger.Fatal("JWT_SECRET is required")
	}

	// Initialize DB
	db, err := config.InitDB(cfg)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}
	seed(db, cfg)

	ctx := context.Background()

	// Tarif dibaca lewat cache, Redis bila tersedia
	var cache services.RateCache = services.NewMemoryRateCache()
	if cfg.RedisAddr != "" {
		client := services.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := client.Ping(ctx).Err(); err != nil {
			utils.ErrorLogger.WithError(err).Warn("redis unreachable, falling back to in-memory rate cache")
		} else {
			cache = services.NewRedisRateCache(client)
		}
	}
	settings := services.NewSettingsService(db, cache, cfg.RateCacheTTL, services.PricingRates{
		ServiceChargeRate: cfg.DefaultServiceChargeRate,
		TaxRate:           cfg.DefaultTaxRate,
	})

	hub := kds.NewHub()
	go hub.Run()

	stationRouter, err := services.NewStationRouter(ctx, db)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to load station routing: %v", err)
	}
	assigner := services.NewStationAssigner(db, stationRouter)
	stock := services.NewStockLedger(db)

	var notifier services.Notifier = services.NewLogNotifier(db)
	if cfg.SMTPHost != "" {
		notifier = services.NewEmailService(db, services.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	}
	paid := services.NewPostPaymentHandler(db, assigner, notifier, hub)

	// Gateway opsional: tanpa server key hanya pembayaran cash yang tersedia
	var (
		gateway   services.PaymentGateway
		verifier  services.SignatureVerifier
		clientKey string
	)
	if cfg.MidtransServerKey != "" {
		midtrans := services.NewMidtransService(&services.MidtransConfig{
			ServerKey:    cfg.MidtransServerKey,
			ClientKey:    cfg.MidtransClientKey,
			IsProduction: cfg.IsProductionGateway(),
		})
		if err := midtrans.ValidateConfig(); err != nil {
			utils.ErrorLogger.Fatalf("Invalid Midtrans config: %v", err)
		}
		gateway, verifier, clientKey = midtrans, midtrans, midtrans.ClientKey()
	} else {
		utils.InfoLogger.Warn("MIDTRANS_SERVER_KEY not set, online payment disabled")
	}

	payments := services.NewPaymentService(db, gateway, verifier, paid, hub, cfg.FrontendURL)
	monitor := services.NewPaymentMonitor(db, assigner, payments)
	paid.UseRetryQueue(monitor)

	var checkout services.CheckoutCreator
	if payments.HasGateway() {
		checkout = payments
	}
	orders := services.NewOrderService(db, settings, stock, checkout, paid, stationRouter, notifier, hub, cfg.SessionWindow)
	sessions := services.NewSessionService(db, hub, cfg.SessionWindow)

	sweeper := services.NewSessionSweeper(db, monitor, hub, cfg.CustomerRetention, cfg.SweepInterval)
	sweeper.Start()

	jwtManager := utils.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)

	// Setup router
	r := router.SetupRouter(router.Deps{
		DB:         db,
		JWT:        jwtManager,
		Hub:        hub,
		Sessions:   sessions,
		Orders:     orders,
		Pricing:    services.NewPricingService(db, settings),
		Payments:   payments,
		Stations:   services.NewStationService(db, stationRouter),
		Router:     stationRouter,
		Stock:      stock,
		Settings:   settings,
		Sweeper:    sweeper,
		Monitor:    monitor,
		Auth:       services.NewAuthService(db, jwtManager),
		ClientKey:  clientKey,
		CORSOrigin: cfg.CORSOrigin,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.InfoLogger.Infof("Listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrorLogger.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	utils.InfoLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.ErrorLogger.WithError(err).Error("server shutdown failed")
	}
	sweeper.Stop()
	hub.Stop()
}

func seed(db *gorm.DB, cfg *config.Config) {
	if err := database.SeedDefaults(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to seed defaults: %v", err)
	}
	if !cfg.SeedDemo {
		return
	}
	if err := database.SeedTables(db, cfg.SeedTableCount); err != nil {
		utils.ErrorLogger.WithError(err).Error("seed tables failed")
	}
	if err := database.SeedDemoMenus(db); err != nil {
		utils.ErrorLogger.WithError(err).Error("seed menus failed")
	}
	if cfg.SeedStaffPassword != "" {
		if err := database.SeedStaff(db, cfg.SeedStaffPassword); err != nil {
			utils.ErrorLogger.WithError(err).Error("seed staff failed")
		}
	}
}
