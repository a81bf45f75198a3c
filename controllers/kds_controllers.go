package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/youngalip/savor-backend/kds"
	"github.com/youngalip/savor-backend/middlewares"
	"github.com/youngalip/savor-backend/models"
	"github.com/youngalip/savor-backend/utils"
)

type KDSController struct {
	Hub           *kds.Hub
	AllowedOrigin string
}

func NewKDSController(hub *kds.Hub, allowedOrigin string) *KDSController {
	return &KDSController{Hub: hub, AllowedOrigin: allowedOrigin}
}

func (kc *KDSController) checkOrigin(r *http.Request) bool {
	if kc.AllowedOrigin == "" || kc.AllowedOrigin == "*" {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || strings.EqualFold(origin, kc.AllowedOrigin)
}

// KDSHandler -> endpoint WebSocket. ?station=kitchen untuk papan station, tanpa param = semua event.
func (kc *KDSController) KDSHandler(c *gin.Context) {
	role := c.GetString(middlewares.ContextRole)

	room := kds.RoomAll
	if raw := c.Query("station"); raw != "" && raw != kds.RoomAll {
		station, ok := models.ParseStation(raw)
		if !ok {
			utils.RespondError(c, http.StatusBadRequest, errors.New("unknown station"))
			return
		}
		room = string(station)
	}

	// staff station hanya boleh mendengar stationnya sendiri
	if own, ok := models.ParseStation(role); ok && room != string(own) {
		utils.RespondError(c, http.StatusForbidden, errors.New("station access denied"))
		return
	}

	if err := kc.Hub.Serve(c.Writer, c.Request, room, kc.checkOrigin); err != nil {
		utils.ErrorLogger.WithError(err).Warn("kds websocket upgrade failed")
	}
}
