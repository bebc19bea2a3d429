package handlers

import (
	"time"

	"github.com/diewo77/billing-core/internal/models"
	"github.com/diewo77/billing-core/internal/money"
	"github.com/diewo77/billing-core/internal/reports"
)

// Amounts are rendered as two-decimal strings, dates as YYYY-MM-DD.

type clientResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func newClientResponse(c *models.Client) clientResponse {
	return clientResponse{ID: c.ID, Name: c.Name, Email: c.Email, Phone: c.Phone, Address: c.Address, CreatedAt: c.CreatedAt}
}

type productResponse struct {
	ID            uint      `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Price         string    `json:"price"`
	TaxPercentage string    `json:"tax_percentage"`
	PriceWithTax  string    `json:"price_with_tax"`
	CreatedAt     time.Time `json:"created_at"`
}

func newProductResponse(p *models.ProductService) productResponse {
	return productResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         money.Format(p.Price),
		TaxPercentage: money.Format(p.TaxPercentage),
		PriceWithTax:  money.Format(p.PriceWithTax()),
		CreatedAt:     p.CreatedAt,
	}
}

type itemResponse struct {
	ID               uint   `json:"id"`
	ProductServiceID uint   `json:"product_service_id"`
	ProductName      string `json:"product_name,omitempty"`
	Quantity         int    `json:"quantity"`
	UnitPrice        string `json:"unit_price"`
	ItemTotal        string `json:"item_total"`
	TaxAmount        string `json:"tax_amount"`
}

func newItemResponse(it *models.BillItem) itemResponse {
	out := itemResponse{
		ID:               it.ID,
		ProductServiceID: it.ProductServiceID,
		Quantity:         it.Quantity,
		UnitPrice:        money.Format(it.UnitPrice),
		ItemTotal:        money.Format(it.ItemTotal),
		TaxAmount:        money.Format(it.TaxAmountPerItem()),
	}
	if it.ProductService != nil {
		out.ProductName = it.ProductService.Name
	}
	return out
}

type billResponse struct {
	ID          uint           `json:"id"`
	ClientID    uint           `json:"client_id"`
	ClientName  string         `json:"client_name,omitempty"`
	BillDate    string         `json:"bill_date"`
	DueDate     string         `json:"due_date"`
	IsPaid      bool           `json:"is_paid"`
	Subtotal    string         `json:"subtotal"`
	Tax         string         `json:"tax"`
	TotalAmount string         `json:"total_amount"`
	Items       []itemResponse `json:"items"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func newBillResponse(b *models.Bill) billResponse {
	out := billResponse{
		ID:          b.ID,
		ClientID:    b.ClientID,
		BillDate:    b.BillDate.Format(reports.DateLayout),
		DueDate:     b.DueDate.Format(reports.DateLayout),
		IsPaid:      b.IsPaid,
		Subtotal:    money.Format(b.SubtotalBeforeAllTaxes()),
		Tax:         money.Format(b.TotalTaxOnItems()),
		TotalAmount: money.Format(b.TotalAmount),
		Items:       make([]itemResponse, 0, len(b.Items)),
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
	if b.Client != nil {
		out.ClientName = b.Client.Name
	}
	for i := range b.Items {
		out.Items = append(out.Items, newItemResponse(&b.Items[i]))
	}
	return out
}

type invoiceLineResponse struct {
	Description   string `json:"description"`
	Quantity      int    `json:"quantity"`
	TaxPercentage string `json:"tax_percentage"`
	UnitPrice     string `json:"unit_price"`
	ItemTotal     string `json:"item_total"`
}

type invoiceResponse struct {
	Number   uint                  `json:"number"`
	BillDate string                `json:"bill_date"`
	DueDate  string                `json:"due_date"`
	IsPaid   bool                  `json:"is_paid"`
	Client   reports.InvoiceClient `json:"client"`
	Lines    []invoiceLineResponse `json:"lines"`
	Subtotal string                `json:"subtotal"`
	Tax      string                `json:"tax"`
	Total    string                `json:"total"`
}

func newInvoiceResponse(inv *reports.Invoice) invoiceResponse {
	out := invoiceResponse{
		Number:   inv.Number,
		BillDate: inv.BillDate,
		DueDate:  inv.DueDate,
		IsPaid:   inv.IsPaid,
		Client:   inv.Client,
		Lines:    make([]invoiceLineResponse, 0, len(inv.Lines)),
		Subtotal: money.Format(inv.Subtotal),
		Tax:      money.Format(inv.Tax),
		Total:    money.Format(inv.Total),
	}
	for _, l := range inv.Lines {
		out.Lines = append(out.Lines, invoiceLineResponse{
			Description:   l.Description,
			Quantity:      l.Quantity,
			TaxPercentage: money.Format(l.TaxPercentage),
			UnitPrice:     money.Format(l.UnitPrice),
			ItemTotal:     money.Format(l.ItemTotal),
		})
	}
	return out
}
