package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/youngalip/savor-backend/models"
	"github.com/youngalip/savor-backend/utils"
	"gorm.io/gorm"
)

type TableController struct {
	DB *gorm.DB
}

func NewTableController(db *gorm.DB) *TableController {
	return &TableController{DB: db}
}

func (tc *TableController) GetAllTables(c *gin.Context) {
	var tables []models.Table
	if err := tc.DB.Order("table_number").Find(&tables).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "All tables", tables)
}

// CreateTable -> meja baru langsung mendapat QR code
func (tc *TableController) CreateTable(c *gin.Context) {
	var req struct {
		TableNumber string `json:"table_number" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	number := strings.TrimSpace(req.TableNumber)
	if strings.ContainsAny(number, "_ ") {
		utils.RespondError(c, http.StatusBadRequest, errors.New("table number must not contain spaces or underscores"))
		return
	}

	now := time.Now()
	table := models.Table{
		TableNumber:   number,
		QRCode:        models.TableQRCode(number, now),
		Status:        models.TableStatusFree,
		QRGeneratedAt: &now,
	}
	if err := tc.DB.Create(&table).Error; err != nil {
		utils.RespondError(c, http.StatusConflict, errors.New("table number already exists"))
		return
	}

	utils.InfoLogger.WithField("table", table.TableNumber).Info("table created")
	utils.RespondJSON(c, http.StatusCreated, "Table created successfully", table)
}

// RegenerateQR -> QR lama langsung tidak berlaku
func (tc *TableController) RegenerateQR(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var table models.Table
	if err := tc.DB.First(&table, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(c, http.StatusNotFound, errors.New("table not found"))
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	now := time.Now()
	qr := models.TableQRCode(table.TableNumber, now)
	if err := tc.DB.Model(&table).Updates(map[string]interface{}{"qr_code": qr, "qr_generated_at": now}).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	table.QRCode = qr
	table.QRGeneratedAt = &now

	utils.InfoLogger.WithField("table", table.TableNumber).Info("table qr regenerated")
	utils.RespondJSON(c, http.StatusOK, "QR code regenerated", table)
}
