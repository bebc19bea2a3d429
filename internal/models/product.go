package models

import (
	"time"

	"github.com/diewo77/billing-core/internal/money"
	"github.com/shopspring/decimal"
)

// ProductService is a sellable catalog entry. TaxPercentage is expressed in percent (5.00 for 5%).
type ProductService struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	UserID        uint            `gorm:"not null;index" json:"user_id"` // owner
	Name          string          `gorm:"size:200;not null;index" json:"name"`
	Description   string          `gorm:"type:text" json:"description,omitempty"`
	Price         decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	TaxPercentage decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"tax_percentage"`
	CreatedAt     time.Time       `json:"created_at"`
}

// PriceWithTax returns the tax-inclusive unit price from the current price and rate.
func (p *ProductService) PriceWithTax() decimal.Decimal {
	multiplier := decimal.NewFromInt(1).Add(p.TaxPercentage.Div(money.Hundred))
	return money.Round2(p.Price.Mul(multiplier))
}

// TaxPerUnit returns the tax owed on one unit at the current rate.
func (p *ProductService) TaxPerUnit() decimal.Decimal {
	return money.Round2(p.Price.Mul(p.TaxPercentage.Div(money.Hundred)))
}
