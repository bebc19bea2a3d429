package reports

import (
	"github.com/diewo77/billing-core/internal/models"
	"github.com/shopspring/decimal"
)

// Invoice is everything a PDF renderer needs for one bill.
type Invoice struct {
	Number   uint
	BillDate string
	DueDate  string
	IsPaid   bool
	Client   InvoiceClient
	Lines    []InvoiceLine
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

type InvoiceClient struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// InvoiceLine carries the frozen unit price and item total of a bill item.
type InvoiceLine struct {
	Description   string
	Quantity      int
	TaxPercentage decimal.Decimal
	UnitPrice     decimal.Decimal
	ItemTotal     decimal.Decimal
}

// NewInvoice builds invoice data from a bill loaded with client and items.
func NewInvoice(b *models.Bill) Invoice {
	inv := Invoice{
		Number:   b.ID,
		BillDate: b.BillDate.Format(DateLayout),
		DueDate:  b.DueDate.Format(DateLayout),
		IsPaid:   b.IsPaid,
		Subtotal: b.SubtotalBeforeAllTaxes(),
		Tax:      b.TotalTaxOnItems(),
		Total:    b.TotalAmount,
		Lines:    make([]InvoiceLine, 0, len(b.Items)),
	}
	if b.Client != nil {
		inv.Client = InvoiceClient{
			Name:    b.Client.Name,
			Email:   b.Client.Email,
			Phone:   b.Client.Phone,
			Address: b.Client.Address,
		}
	}
	for _, it := range b.Items {
		line := InvoiceLine{
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			ItemTotal: it.ItemTotal,
		}
		if it.ProductService != nil {
			line.Description = it.ProductService.Name
			line.TaxPercentage = it.ProductService.TaxPercentage
		}
		inv.Lines = append(inv.Lines, line)
	}
	return inv
}
