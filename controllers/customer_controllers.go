package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/youngalip/savor-backend/services"
	"github.com/youngalip/savor-backend/utils"
)

type CustomerController struct {
	Sessions *services.SessionService
}

func NewCustomerController(sessions *services.SessionService) *CustomerController {
	return &CustomerController{Sessions: sessions}
}

// ScanQR -> customer scan QR meja, dapat session token
func (cc *CustomerController) ScanQR(c *gin.Context) {
	var body struct {
		QRCode       string `json:"qr_code" binding:"required"`
		DeviceID     string `json:"device_id"`
		ScreenWidth  int    `json:"screen_width"`
		ScreenHeight int    `json:"screen_height"`
		Timezone     string `json:"timezone"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	result, err := cc.Sessions.Scan(c.Request.Context(), services.ScanRequest{
		QRCode: body.QRCode,
		Device: services.DeviceInfo{
			HeaderID:     c.GetHeader("X-Device-ID"),
			BodyID:       body.DeviceID,
			UserAgent:    c.Request.UserAgent(),
			IPAddress:    c.ClientIP(),
			ScreenWidth:  body.ScreenWidth,
			ScreenHeight: body.ScreenHeight,
			Timezone:     body.Timezone,
		},
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	message := "Session created"
	if result.IsReturningCustomer {
		message = "Welcome back, session extended"
	}
	utils.RespondJSON(c, http.StatusOK, message, result)
}

// GetSession -> info sesi, token kedaluwarsa tetap dijawab dengan is_valid=false
func (cc *CustomerController) GetSession(c *gin.Context) {
	info, err := cc.Sessions.GetSession(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Session info", info)
}

// ValidateSession -> token dari body atau header X-Session-Token
func (cc *CustomerController) ValidateSession(c *gin.Context) {
	var body struct {
		SessionToken string `json:"session_token"`
	}
	_ = c.ShouldBindJSON(&body)
	token := body.SessionToken
	if token == "" {
		token = c.GetHeader("X-Session-Token")
	}
	if token == "" {
		utils.RespondError(c, http.StatusBadRequest, errors.New("session_token is required"))
		return
	}

	customer, err := cc.Sessions.ValidateSession(c.Request.Context(), token)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Session is valid", gin.H{
		"customer_uuid":      customer.UUID,
		"table_id":           customer.TableID,
		"session_expires_at": customer.SessionExpiresAt,
		"is_valid":           true,
	})
}

func (cc *CustomerController) ExtendSession(c *gin.Context) {
	expiresAt, err := cc.Sessions.ExtendSession(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Session extended", gin.H{"session_expires_at": expiresAt})
}
