package middlewares

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/youngalip/savor-backend/models"
	"github.com/youngalip/savor-backend/utils"
)

// RoleCheck -> hanya role yang disebut (admin selalu lolos)
func RoleCheck(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ContextRole)
		if role == "" {
			utils.RespondError(c, http.StatusUnauthorized, fmt.Errorf("unauthorized"))
			c.Abort()
			return
		}
		if role == utils.RoleAdmin {
			c.Next()
			return
		}
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		utils.RespondError(c, http.StatusForbidden, fmt.Errorf("%s access required", strings.Join(roles, " or ")))
		c.Abort()
	}
}

// StationAccess -> staff station hanya boleh membuka papan stationnya sendiri
func StationAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		station, ok := models.ParseStation(c.Param("station"))
		if !ok {
			utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("unknown station %q", c.Param("station")))
			c.Abort()
			return
		}
		role := c.GetString(ContextRole)
		if role != utils.RoleAdmin && role != utils.RoleCashier && role != string(station) {
			utils.RespondError(c, http.StatusForbidden, fmt.Errorf("%s station access required", station))
			c.Abort()
			return
		}
		c.Next()
	}
}

// StationFromRole -> station milik staff, nil untuk admin/kasir
func StationFromRole(c *gin.Context) *models.Station {
	if station, ok := models.ParseStation(c.GetString(ContextRole)); ok {
		return &station
	}
	return nil
}
