package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/youngalip/savor-backend/models"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

// RateLine -> satu komponen biaya (service charge atau pajak)
type RateLine struct {
	Rate       decimal.Decimal `json:"rate"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage string          `json:"percentage"`
}

// PricingBreakdown adalah hasil perhitungan harga yang dibekukan ke Order
type PricingBreakdown struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	ServiceCharge RateLine        `json:"service_charge"`
	Tax           RateLine        `json:"tax"`
	Total         decimal.Decimal `json:"total"`
}

// PricingRates -> tarif service charge dan pajak yang berlaku
type PricingRates struct {
	ServiceChargeRate decimal.Decimal `json:"service_charge_rate"`
	TaxRate           decimal.Decimal `json:"tax_rate"`
}

// RateProvider memberi tarif yang sedang berlaku
type RateProvider interface {
	PricingRates(ctx context.Context) (PricingRates, error)
}

// CalculatePricing menghitung breakdown. Pembulatan 2 desimal dilakukan di setiap langkah:
// service charge dulu, lalu pajak atas (subtotal + service charge).
func CalculatePricing(subtotal, serviceChargeRate, taxRate decimal.Decimal) PricingBreakdown {
	serviceCharge := subtotal.Mul(serviceChargeRate).Round(2)
	tax := subtotal.Add(serviceCharge).Mul(taxRate).Round(2)

	return PricingBreakdown{
		Subtotal: subtotal,
		ServiceCharge: RateLine{
			Rate:       serviceChargeRate,
			Amount:     serviceCharge,
			Percentage: percentage(serviceChargeRate),
		},
		Tax: RateLine{
			Rate:       taxRate,
			Amount:     tax,
			Percentage: percentage(taxRate),
		},
		Total: subtotal.Add(serviceCharge).Add(tax),
	}
}

// BreakdownFromOrder membaca ulang breakdown yang sudah tersimpan, tanpa menghitung ulang
func BreakdownFromOrder(order *models.Order) PricingBreakdown {
	return PricingBreakdown{
		Subtotal: order.Subtotal,
		ServiceCharge: RateLine{
			Rate:       order.ServiceChargeRate,
			Amount:     order.ServiceChargeAmount,
			Percentage: percentage(order.ServiceChargeRate),
		},
		Tax: RateLine{
			Rate:       order.TaxRate,
			Amount:     order.TaxAmount,
			Percentage: percentage(order.TaxRate),
		},
		Total: order.TotalAmount,
	}
}

// Apply membekukan breakdown ke field harga order
func (b PricingBreakdown) Apply(order *models.Order) {
	order.Subtotal = b.Subtotal
	order.ServiceChargeRate = b.ServiceCharge.Rate
	order.ServiceChargeAmount = b.ServiceCharge.Amount
	order.TaxRate = b.Tax.Rate
	order.TaxAmount = b.Tax.Amount
	order.TotalAmount = b.Total
}

func percentage(rate decimal.Decimal) string {
	return rate.Mul(hundred).Round(2).String() + "%"
}

// PreviewLine -> satu baris pada preview harga
type PreviewLine struct {
	MenuID         uint            `json:"menu_id"`
	MenuName       string          `json:"menu_name"`
	Quantity       int             `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	AvailableStock int             `json:"available_stock"`
	InStock        bool            `json:"in_stock"`
}

// PricingPreview -> hasil kalkulasi sebelum order dibuat
type PricingPreview struct {
	Items     []PreviewLine    `json:"items"`
	Breakdown PricingBreakdown `json:"breakdown"`
}

// PricingService menghitung preview harga untuk keranjang customer
type PricingService struct {
	db    *gorm.DB
	rates RateProvider
}

func NewPricingService(db *gorm.DB, rates RateProvider) *PricingService {
	return &PricingService{db: db, rates: rates}
}

// Preview -> tidak menulis apa pun ke database
func (s *PricingService) Preview(ctx context.Context, items []ItemRequest) (*PricingPreview, error) {
	if len(items) == 0 {
		return nil, invalidRequest("items must not be empty")
	}

	ids := make([]uint, 0, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, invalidRequest("quantity for menu %d must be at least 1", item.MenuID)
		}
		ids = append(ids, item.MenuID)
	}

	var menus []models.Menu
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&menus).Error; err != nil {
		return nil, fmt.Errorf("load menus: %w", err)
	}
	byID := make(map[uint]models.Menu, len(menus))
	for _, m := range menus {
		byID[m.ID] = m
	}

	preview := &PricingPreview{Items: make([]PreviewLine, 0, len(items))}
	subtotal := decimal.Zero
	for _, item := range items {
		menu, ok := byID[item.MenuID]
		if !ok {
			return nil, invalidRequest("menu %d not found", item.MenuID)
		}
		lineTotal := menu.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(lineTotal)
		preview.Items = append(preview.Items, PreviewLine{
			MenuID:         menu.ID,
			MenuName:       menu.Name,
			Quantity:       item.Quantity,
			Price:          menu.Price,
			Subtotal:       lineTotal,
			AvailableStock: menu.StockQuantity,
			InStock:        menu.IsAvailable && menu.StockQuantity >= item.Quantity,
		})
	}

	rates, err := s.rates.PricingRates(ctx)
	if err != nil {
		return nil, err
	}
	preview.Breakdown = CalculatePricing(subtotal, rates.ServiceChargeRate, rates.TaxRate)
	return preview, nil
}

// Breakdown -> breakdown untuk subtotal yang sudah diketahui, memakai tarif saat ini
func (s *PricingService) Breakdown(ctx context.Context, subtotal decimal.Decimal) (PricingBreakdown, error) {
	if subtotal.IsNegative() {
		return PricingBreakdown{}, invalidRequest("subtotal must not be negative")
	}
	rates, err := s.rates.PricingRates(ctx)
	if err != nil {
		return PricingBreakdown{}, err
	}
	return CalculatePricing(subtotal, rates.ServiceChargeRate, rates.TaxRate), nil
}
