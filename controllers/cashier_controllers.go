package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/youngalip/savor-backend/models"
	"github.com/youngalip/savor-backend/services"
	"github.com/youngalip/savor-backend/utils"
)

type CashierController struct {
	Orders *services.OrderService
}

func NewCashierController(orders *services.OrderService) *CashierController {
	return &CashierController{Orders: orders}
}

// paymentMethod -> metode dibaca dari prefix payment_reference
func paymentMethod(order *models.Order) string {
	if order.PaymentReference == nil {
		return ""
	}
	if strings.HasPrefix(*order.PaymentReference, "CASH-") {
		return "Cash"
	}
	return "Online Payment"
}

func cashierView(order *models.Order) gin.H {
	tableNumber := ""
	if order.Table != nil {
		tableNumber = order.Table.TableNumber
	}
	return gin.H{
		"id":                order.ID,
		"order_uuid":        order.OrderUUID,
		"order_number":      order.OrderNumber,
		"table_number":      tableNumber,
		"status":            order.DisplayStatus(),
		"payment_status":    order.PaymentStatus,
		"payment_method":    paymentMethod(order),
		"payment_reference": order.PaymentReference,
		"breakdown":         services.BreakdownFromOrder(order),
		"total_display":     utils.FormatCurrencyIDR(order.TotalAmount),
		"items":             order.Items,
		"notes":             order.Notes,
		"created_at":        order.CreatedAt,
		"paid_at":           order.PaidAt,
		"completed_at":      order.CompletedAt,
	}
}

func parseDay(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return &t, nil
}

// dateRange -> date_from inklusif, date_to inklusif sampai akhir hari
func dateRange(c *gin.Context) (*time.Time, *time.Time, error) {
	from, err := parseDay(c.Query("date_from"))
	if err != nil {
		return nil, nil, err
	}
	to, err := parseDay(c.Query("date_to"))
	if err != nil {
		return nil, nil, err
	}
	if to != nil {
		end := to.AddDate(0, 0, 1)
		to = &end
	}
	return from, to, nil
}

// GetOrders -> papan kasir dengan filter
func (cc *CashierController) GetOrders(c *gin.Context) {
	from, to, err := dateRange(c)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	filter := services.OrderFilter{
		PaymentStatus:    c.Query("payment_status"),
		DisplayStatus:    c.Query("status"),
		DateFrom:         from,
		DateTo:           to,
		ExcludeCompleted: c.Query("exclude_completed") == "true",
	}
	if raw := c.Query("table_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid table_id"))
			return
		}
		filter.TableID = uint(id)
	}

	orders, err := cc.Orders.ListOrders(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	views := make([]gin.H, 0, len(orders))
	for i := range orders {
		views = append(views, cashierView(&orders[i]))
	}
	utils.RespondJSON(c, http.StatusOK, "Orders", views)
}

func (cc *CashierController) GetOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	order, err := cc.Orders.GetOrderByID(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order detail", cashierView(order))
}

// ValidatePayment -> pembayaran tunai diterima kasir
func (cc *CashierController) ValidatePayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	order, err := cc.Orders.ValidateCashPayment(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Payment validated", cashierView(order))
}

func (cc *CashierController) CancelOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	order, err := cc.Orders.CancelCashOrder(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order cancelled", cashierView(order))
}

func (cc *CashierController) CompleteOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	order, err := cc.Orders.CompleteOrder(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order completed", cashierView(order))
}

// MarkItemDone -> kasir/admin boleh menandai item dari station mana pun
func (cc *CashierController) MarkItemDone(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	result, err := cc.Orders.MarkItemDone(c.Request.Context(), id, nil)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Item marked as done", result)
}

func (cc *CashierController) GetStatistics(c *gin.Context) {
	from, to, err := dateRange(c)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	stats, err := cc.Orders.Statistics(c.Request.Context(), from, to)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Statistics", gin.H{
		"total_orders":          stats.TotalOrders,
		"total_revenue":         stats.TotalRevenue,
		"average_order":         stats.AverageOrder,
		"total_revenue_display": utils.FormatCurrencyIDR(stats.TotalRevenue),
	})
}
