package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/youngalip/savor-backend/models"
	"github.com/youngalip/savor-backend/utils"
	"gorm.io/gorm"
)

type NotificationController struct {
	DB *gorm.DB
}

func NewNotificationController(db *gorm.DB) *NotificationController {
	return &NotificationController{DB: db}
}

// GetAllNotifications -> riwayat email, ?order_id= dan ?failed=true untuk filter
func (nc *NotificationController) GetAllNotifications(c *gin.Context) {
	query := nc.DB.WithContext(c.Request.Context()).Order("created_at DESC").Limit(200)
	if orderID := c.Query("order_id"); orderID != "" {
		query = query.Where("order_id = ?", orderID)
	}
	if c.Query("failed") == "true" {
		query = query.Where("sent = ?", false)
	}

	var notifs []models.Notification
	if err := query.Find(&notifs).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "All notifications", notifs)
}
