package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/youngalip/savor-backend/services"
	"github.com/youngalip/savor-backend/utils"
)

var kindStatus = map[services.Kind]int{
	services.KindInvalidRequest:    http.StatusBadRequest,
	services.KindSessionNotFound:   http.StatusNotFound,
	services.KindSessionExpired:    http.StatusUnauthorized,
	services.KindTableNotFound:     http.StatusNotFound,
	services.KindStockInsufficient: http.StatusConflict,
	services.KindOrderNotFound:     http.StatusNotFound,
	services.KindItemNotFound:      http.StatusNotFound,
	services.KindAlreadyPaid:       http.StatusConflict,
	services.KindNotYetPaid:        http.StatusConflict,
	services.KindAlreadyDone:       http.StatusConflict,
	services.KindItemsNotAllDone:   http.StatusConflict,
	services.KindAlreadyCompleted:  http.StatusConflict,
	services.KindInvalidTransition: http.StatusConflict,
	services.KindInvalidSignature:  http.StatusForbidden,
	services.KindNotEditable:       http.StatusForbidden,
	services.KindUnauthorized:      http.StatusUnauthorized,
}

// respondServiceError -> satu-satunya tempat Kind dipetakan ke HTTP status
func respondServiceError(c *gin.Context, err error) {
	e, ok := services.AsError(err)
	if !ok {
		utils.ErrorLogger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		utils.RespondError(c, http.StatusInternalServerError, errors.New("internal server error"))
		return
	}

	status, known := kindStatus[e.Kind]
	if !known {
		status = http.StatusBadRequest
	}

	data := gin.H{"kind": e.Kind}
	if len(e.StockErrors) > 0 {
		data["stock_errors"] = e.StockErrors
		data["available_items"] = e.AvailableItems
	}
	if len(e.PendingItemIDs) > 0 {
		data["pending_item_ids"] = e.PendingItemIDs
	}
	if e.CurrentStatus != "" {
		data["current_status"] = e.CurrentStatus
	}
	utils.RespondErrorWithData(c, status, e, data)
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid "+name))
		return 0, false
	}
	return uint(id), true
}
