package models

import (
	"time"

	"github.com/diewo77/billing-core/internal/money"
	"github.com/shopspring/decimal"
)

// Bill is an invoice issued to a client. TotalAmount caches the sum of its item totals
// and is only written by the billing service's recalculation step.
type Bill struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      uint            `gorm:"not null;index" json:"user_id"` // owner
	ClientID    uint            `gorm:"not null;index" json:"client_id"`
	Client      *Client         `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	BillDate    time.Time       `gorm:"type:date;not null;index" json:"bill_date"`
	DueDate     time.Time       `gorm:"type:date;not null" json:"due_date"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total_amount"`
	IsPaid      bool            `gorm:"not null;default:false" json:"is_paid"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	Items []BillItem `gorm:"foreignKey:BillID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// ItemsTotal sums the frozen item totals. After any settled mutation it equals TotalAmount.
func (b *Bill) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range b.Items {
		total = total.Add(it.ItemTotal)
	}
	return money.Round2(total)
}

// SubtotalBeforeAllTaxes sums base price * quantity using the products' current prices.
// Items must have ProductService loaded.
func (b *Bill) SubtotalBeforeAllTaxes() decimal.Decimal {
	total := decimal.Zero
	for _, it := range b.Items {
		if it.ProductService == nil {
			continue
		}
		total = total.Add(it.ProductService.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return money.Round2(total)
}

// TotalTaxOnItems sums the per-item tax at current rates. It can diverge from
// TotalAmount - SubtotalBeforeAllTaxes once products are edited after the bill was saved.
func (b *Bill) TotalTaxOnItems() decimal.Decimal {
	total := decimal.Zero
	for _, it := range b.Items {
		total = total.Add(it.TaxAmountPerItem())
	}
	return money.Round2(total)
}

// BillItem is a quantity of one product on one bill. UnitPrice and ItemTotal are
// snapshots taken when the item was last saved.
type BillItem struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	BillID           uint            `gorm:"not null;index" json:"bill_id"`
	ProductServiceID uint            `gorm:"not null;index" json:"product_service_id"`
	ProductService   *ProductService `gorm:"foreignKey:ProductServiceID;constraint:OnDelete:CASCADE" json:"product_service,omitempty"`
	Quantity         int             `gorm:"not null;default:1" json:"quantity"`
	UnitPrice        decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	ItemTotal        decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"item_total"`
}

// TaxAmountPerItem is the tax on this line at the product's current rate.
// Returns zero when the product is not loaded.
func (it *BillItem) TaxAmountPerItem() decimal.Decimal {
	if it.ProductService == nil {
		return decimal.Zero
	}
	return money.Round2(it.ProductService.TaxPerUnit().Mul(decimal.NewFromInt(int64(it.Quantity))))
}
