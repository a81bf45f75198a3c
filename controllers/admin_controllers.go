package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/youngalip/savor-backend/middlewares"
	"github.com/youngalip/savor-backend/models"
	"github.com/youngalip/savor-backend/services"
	"github.com/youngalip/savor-backend/utils"
)

type AdminController struct {
	Settings *services.SettingsService
	Sweeper  *services.SessionSweeper
	Monitor  *services.PaymentMonitor
}

func NewAdminController(settings *services.SettingsService, sweeper *services.SessionSweeper, monitor *services.PaymentMonitor) *AdminController {
	return &AdminController{Settings: settings, Sweeper: sweeper, Monitor: monitor}
}

// GetPricing -> tarif yang sedang berlaku
func (ac *AdminController) GetPricing(c *gin.Context) {
	rates, err := ac.Settings.PricingRates(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Pricing rates", rates)
}

// UpdatePricing -> ubah service charge dan/atau pajak, cache langsung dibersihkan
func (ac *AdminController) UpdatePricing(c *gin.Context) {
	var body struct {
		ServiceChargeRate *decimal.Decimal `json:"service_charge_rate"`
		TaxRate           *decimal.Decimal `json:"tax_rate"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var changedBy *uint
	if id := c.GetUint(middlewares.ContextUserID); id != 0 {
		changedBy = &id
	}

	ctx := c.Request.Context()
	if body.ServiceChargeRate != nil {
		if err := ac.Settings.SetRate(ctx, models.SettingServiceChargeRate, *body.ServiceChargeRate, changedBy); err != nil {
			respondServiceError(c, err)
			return
		}
	}
	if body.TaxRate != nil {
		if err := ac.Settings.SetRate(ctx, models.SettingTaxRate, *body.TaxRate, changedBy); err != nil {
			respondServiceError(c, err)
			return
		}
	}

	rates, err := ac.Settings.PricingRates(ctx)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Pricing updated", rates)
}

// ReloadSettings -> buang cache tarif lalu baca ulang dari database
func (ac *AdminController) ReloadSettings(c *gin.Context) {
	rates, err := ac.Settings.Reload(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Settings reloaded", rates)
}

// CleanupSessions -> jalankan sweep sekarang
func (ac *AdminController) CleanupSessions(c *gin.Context) {
	result, err := ac.Sweeper.Sweep(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Sweep finished", result)
}

func (ac *AdminController) GetPaymentMonitor(c *gin.Context) {
	utils.RespondJSON(c, http.StatusOK, "Payment monitor", gin.H{
		"metrics":             ac.Monitor.GetMetrics(),
		"pending_assignments": ac.Monitor.Pending(),
	})
}
