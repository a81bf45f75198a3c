package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/youngalip/savor-backend/models"
	"github.com/youngalip/savor-backend/utils"
	"gorm.io/gorm"
)

type MenuController struct {
	DB *gorm.DB
}

func NewMenuController(db *gorm.DB) *MenuController {
	return &MenuController{DB: db}
}

// GetMenus -> menu aktif untuk customer, bisa difilter ?category_id=
func (mc *MenuController) GetMenus(c *gin.Context) {
	query := mc.DB.WithContext(c.Request.Context()).
		Preload("Category").
		Joins("JOIN menu_categories ON menu_categories.id = menus.category_id AND menu_categories.is_active = ?", true).
		Where("menus.is_available = ?", true)
	if categoryID := c.Query("category_id"); categoryID != "" {
		query = query.Where("menus.category_id = ?", categoryID)
	}

	var menus []models.Menu
	if err := query.Order("menus.name").Find(&menus).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	out := make([]gin.H, 0, len(menus))
	for _, m := range menus {
		out = append(out, gin.H{
			"id":               m.ID,
			"name":             m.Name,
			"description":      m.Description,
			"price":            m.Price,
			"price_display":    utils.FormatCurrencyIDR(m.Price),
			"category":         m.Category,
			"stock_quantity":   m.StockQuantity,
			"in_stock":         m.StockQuantity > 0,
			"preparation_time": m.PreparationTime,
		})
	}
	utils.RespondJSON(c, http.StatusOK, "Menus", out)
}
