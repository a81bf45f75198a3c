package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/youngalip/savor-backend/middlewares"
	"github.com/youngalip/savor-backend/models"
	"github.com/youngalip/savor-backend/services"
	"github.com/youngalip/savor-backend/utils"
)

type StationController struct {
	Orders   *services.OrderService
	Stations *services.StationService
	Stock    *services.StockLedger
	Events   services.EventPublisher
}

func NewStationController(orders *services.OrderService, stations *services.StationService, stock *services.StockLedger, events services.EventPublisher) *StationController {
	return &StationController{Orders: orders, Stations: stations, Stock: stock, Events: events}
}

// station param sudah divalidasi StationAccess
func stationParam(c *gin.Context) models.Station {
	s, _ := models.ParseStation(c.Param("station"))
	return s
}

// GetQueue -> item pending station, dikelompokkan per meja
func (sc *StationController) GetQueue(c *gin.Context) {
	queue, err := sc.Stations.Queue(c.Request.Context(), stationParam(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Station queue", queue)
}

func (sc *StationController) GetStats(c *gin.Context) {
	stats, err := sc.Stations.Stats(c.Request.Context(), stationParam(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Station stats", stats)
}

func (sc *StationController) GetMenus(c *gin.Context) {
	menus, err := sc.Stations.Menus(c.Request.Context(), stationParam(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Station menus", menus)
}

func (sc *StationController) MarkItemDone(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	result, err := sc.Orders.MarkItemDone(c.Request.Context(), id, middlewares.StationFromRole(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	message := "Item marked as done"
	if result.OrderCompleted {
		message = "Item marked as done, order completed"
	}
	utils.RespondJSON(c, http.StatusOK, message, result)
}

func (sc *StationController) MarkItemsDone(c *gin.Context) {
	var body struct {
		ItemIDs []uint `json:"item_ids" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	outcomes, err := sc.Orders.MarkItemsDone(c.Request.Context(), body.ItemIDs, middlewares.StationFromRole(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Items processed", outcomes)
}

// UpdateStock -> koreksi stok manual oleh station pemilik menu
func (sc *StationController) UpdateStock(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var body struct {
		StockQuantity *int `json:"stock_quantity" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if station := middlewares.StationFromRole(c); station != nil {
		owns, err := sc.Stations.OwnsMenu(c.Request.Context(), *station, id)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		if !owns {
			utils.RespondError(c, http.StatusForbidden, errors.New("menu belongs to another station"))
			return
		}
	}

	menu, err := sc.Stock.SetStock(c.Request.Context(), id, *body.StockQuantity)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if sc.Events != nil {
		sc.Events.Publish(services.EventStockUpdate, nil, gin.H{
			"menu_id":        menu.ID,
			"stock_quantity": menu.StockQuantity,
			"low_stock":      menu.IsLowStock(),
		})
	}
	utils.RespondJSON(c, http.StatusOK, "Stock updated", menu)
}
