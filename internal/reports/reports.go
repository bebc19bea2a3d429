// Package reports derives report rows and invoice data from loaded bills. Subtotal and tax
// use the products' current rates while totals use the frozen item snapshots.
package reports

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/diewo77/billing-core/internal/models"
	"github.com/diewo77/billing-core/internal/money"
	"github.com/shopspring/decimal"
)

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// Header is the CSV header row.
var Header = []string{
	"Bill ID", "Client Name", "Bill Date", "Due Date", "Subtotal",
	"Tax %", "Tax Amount", "Total", "Is Paid", "Created At",
}

// Row is one bill in the financial report.
type Row struct {
	BillID     uint
	ClientName string
	BillDate   time.Time
	DueDate    time.Time
	Subtotal   decimal.Decimal
	TaxRate    decimal.Decimal
	TaxAmount  decimal.Decimal
	Total      decimal.Decimal
	IsPaid     bool
	CreatedAt  time.Time
}

// EffectiveTaxRate is tax/subtotal as a percentage, 0.00 when the subtotal is zero.
func EffectiveTaxRate(subtotal, tax decimal.Decimal) decimal.Decimal {
	return money.Percent(tax, subtotal)
}

// NewRow builds the report row of b. Items, their products and the client must be loaded.
func NewRow(b *models.Bill) Row {
	subtotal := b.SubtotalBeforeAllTaxes()
	tax := b.TotalTaxOnItems()
	row := Row{
		BillID:    b.ID,
		BillDate:  b.BillDate,
		DueDate:   b.DueDate,
		Subtotal:  subtotal,
		TaxRate:   EffectiveTaxRate(subtotal, tax),
		TaxAmount: tax,
		Total:     money.Round2(b.TotalAmount),
		IsPaid:    b.IsPaid,
		CreatedAt: b.CreatedAt,
	}
	if b.Client != nil {
		row.ClientName = b.Client.Name
	}
	return row
}

// Record renders r as CSV fields in Header order.
func (r Row) Record() []string {
	due := ""
	if !r.DueDate.IsZero() {
		due = r.DueDate.Format(DateLayout)
	}
	return []string{
		strconv.FormatUint(uint64(r.BillID), 10),
		r.ClientName,
		r.BillDate.Format(DateLayout),
		due,
		money.Format(r.Subtotal),
		money.Format(r.TaxRate),
		money.Format(r.TaxAmount),
		money.Format(r.Total),
		yesNo(r.IsPaid),
		r.CreatedAt.Format(DateTimeLayout),
	}
}

// WriteCSV writes the header and one record per row.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.Record()); err != nil {
			return fmt.Errorf("write csv row for bill %d: %w", r.BillID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
