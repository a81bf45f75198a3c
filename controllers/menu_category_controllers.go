package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/youngalip/savor-backend/models"
	"github.com/youngalip/savor-backend/services"
	"github.com/youngalip/savor-backend/utils"
	"gorm.io/gorm"
)

type MenuCategoryController struct {
	DB     *gorm.DB
	Router *services.StationRouter
}

func NewMenuCategoryController(db *gorm.DB, router *services.StationRouter) *MenuCategoryController {
	return &MenuCategoryController{DB: db, Router: router}
}

// GetAllCategories
func (mcc *MenuCategoryController) GetAllCategories(c *gin.Context) {
	var categories []models.MenuCategory
	if err := mcc.DB.Order("name").Find(&categories).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "All menu categories", categories)
}

// UpdateCategoryStation -> pindahkan kategori ke station lain, routing langsung diperbarui
func (mcc *MenuCategoryController) UpdateCategoryStation(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Station string `json:"station" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	station, ok := models.ParseStation(body.Station)
	if !ok {
		utils.RespondError(c, http.StatusBadRequest, errors.New("station must be kitchen, bar or pastry"))
		return
	}

	var category models.MenuCategory
	if err := mcc.DB.First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(c, http.StatusNotFound, errors.New("category not found"))
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if err := mcc.DB.Model(&category).Update("station", station).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if err := mcc.Router.Refresh(c.Request.Context()); err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.WithField("category", category.Name).WithField("station", station).Info("category station updated")
	utils.RespondJSON(c, http.StatusOK, "Category updated", category)
}
