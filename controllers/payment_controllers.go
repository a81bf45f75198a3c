package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/youngalip/savor-backend/services"
	"github.com/youngalip/savor-backend/utils"
)

type PaymentController struct {
	Payments  *services.PaymentService
	ClientKey string
}

func NewPaymentController(payments *services.PaymentService, clientKey string) *PaymentController {
	return &PaymentController{Payments: payments, ClientKey: clientKey}
}

// HandleNotification -> HTTP notification dari Midtrans. Notifikasi ganda tetap dijawab 200.
func (pc *PaymentController) HandleNotification(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var n services.Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid notification payload"))
		return
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err == nil {
		n.Raw = payload
	}

	result, err := pc.Payments.HandleNotification(c.Request.Context(), n)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	message := "Notification processed"
	if !result.Applied {
		message = "Notification acknowledged"
	}
	utils.RespondJSON(c, http.StatusOK, message, result)
}

// ProcessPayment -> token Snap baru untuk order Pending
func (pc *PaymentController) ProcessPayment(c *gin.Context) {
	if !pc.Payments.HasGateway() {
		utils.RespondError(c, http.StatusServiceUnavailable, errors.New("online payment is not available, please pay at the cashier"))
		return
	}
	checkout, err := pc.Payments.ProcessPayment(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Payment token created", gin.H{
		"payment":    checkout,
		"client_key": pc.ClientKey,
	})
}

func (pc *PaymentController) GetPaymentStatus(c *gin.Context) {
	status, err := pc.Payments.Status(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Payment status", status)
}
