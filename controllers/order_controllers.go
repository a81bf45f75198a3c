package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/youngalip/savor-backend/services"
	"github.com/youngalip/savor-backend/utils"
)

type OrderController struct {
	Orders  *services.OrderService
	Pricing *services.PricingService
}

func NewOrderController(orders *services.OrderService, pricing *services.PricingService) *OrderController {
	return &OrderController{Orders: orders, Pricing: pricing}
}

// CalculateOrder -> preview harga keranjang, tidak menyimpan apa pun
func (oc *OrderController) CalculateOrder(c *gin.Context) {
	var body struct {
		Items []services.ItemRequest `json:"items" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	preview, err := oc.Pricing.Preview(c.Request.Context(), body.Items)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order calculated", preview)
}

// CreateOrder -> order baru berstatus Pending, stok langsung dipotong
func (oc *OrderController) CreateOrder(c *gin.Context) {
	var body struct {
		SessionToken string                 `json:"session_token"`
		Email        string                 `json:"email"`
		Notes        string                 `json:"notes"`
		Items        []services.ItemRequest `json:"items" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if body.SessionToken == "" {
		body.SessionToken = c.GetHeader("X-Session-Token")
	}

	result, err := oc.Orders.CreateOrder(c.Request.Context(), services.CreateOrderRequest{
		SessionToken: body.SessionToken,
		Email:        body.Email,
		Notes:        body.Notes,
		Items:        body.Items,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Order created", result)
}

// GetOrder -> detail order untuk halaman status customer
func (oc *OrderController) GetOrder(c *gin.Context) {
	order, err := oc.Orders.GetOrderByUUID(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order detail", gin.H{
		"order":     order,
		"status":    order.DisplayStatus(),
		"breakdown": services.BreakdownFromOrder(order),
	})
}

func (oc *OrderController) OrderHistory(c *gin.Context) {
	history, err := oc.Orders.OrderHistory(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order history", history)
}

func (oc *OrderController) DeviceHistory(c *gin.Context) {
	deviceID := c.Query("device_id")
	if deviceID == "" {
		deviceID = c.GetHeader("X-Device-ID")
	}
	if deviceID == "" {
		utils.RespondError(c, http.StatusBadRequest, errors.New("device_id is required"))
		return
	}
	history, err := oc.Orders.DeviceHistory(c.Request.Context(), deviceID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order history", history)
}
