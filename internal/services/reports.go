package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/diewo77/billing-core/internal/models"
	"github.com/diewo77/billing-core/internal/reports"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReportService feeds the CSV export, invoice rendering and dashboard.
type ReportService struct {
	db *gorm.DB
}

func NewReportService(db *gorm.DB) *ReportService { return &ReportService{db: db} }

// BillRows returns one report row per bill, most recent bill date first.
func (s *ReportService) BillRows(ctx context.Context, ownerID uint) ([]reports.Row, error) {
	bills, err := listBills(s.db.WithContext(ctx), ownerID)
	if err != nil {
		return nil, err
	}
	rows := make([]reports.Row, 0, len(bills))
	for i := range bills {
		rows = append(rows, reports.NewRow(&bills[i]))
	}
	return rows, nil
}

// ExportBillsCSV writes the owner's bill report to w.
func (s *ReportService) ExportBillsCSV(ctx context.Context, ownerID uint, w io.Writer) error {
	rows, err := s.BillRows(ctx, ownerID)
	if err != nil {
		return err
	}
	return reports.WriteCSV(w, rows)
}

// Invoice returns the invoice data of one bill.
func (s *ReportService) Invoice(ctx context.Context, ownerID, billID uint) (*reports.Invoice, error) {
	var bill models.Bill
	err := s.db.WithContext(ctx).Scopes(withBillDetails).
		Where("id = ? AND user_id = ?", billID, ownerID).
		First(&bill).Error
	if err != nil {
		return nil, notFound(err, "bill", billID)
	}
	inv := reports.NewInvoice(&bill)
	return &inv, nil
}

// MonthlyIncome is the paid total of one calendar month.
type MonthlyIncome struct {
	Month  string          `json:"month"` // 2024-03
	Label  string          `json:"label"` // Mar 2024
	Income decimal.Decimal `json:"income"`
}

// Dashboard summarises the owner's activity.
type Dashboard struct {
	TotalClients  int64           `json:"total_clients"`
	TotalProducts int64           `json:"total_products"`
	TotalBills    int64           `json:"total_bills"`
	UnpaidBills   int64           `json:"unpaid_bills"`
	MonthlyIncome []MonthlyIncome `json:"monthly_income"`
}

// Dashboard counts the owner's records and groups paid bill totals by bill month, oldest first.
func (s *ReportService) Dashboard(ctx context.Context, ownerID uint) (*Dashboard, error) {
	db := s.db.WithContext(ctx)
	d := &Dashboard{MonthlyIncome: []MonthlyIncome{}}
	counts := []struct {
		model any
		where string
		args  []any
		dst   *int64
	}{
		{&models.Client{}, "user_id = ?", []any{ownerID}, &d.TotalClients},
		{&models.ProductService{}, "user_id = ?", []any{ownerID}, &d.TotalProducts},
		{&models.Bill{}, "user_id = ?", []any{ownerID}, &d.TotalBills},
		{&models.Bill{}, "user_id = ? AND is_paid = ?", []any{ownerID, false}, &d.UnpaidBills},
	}
	for _, c := range counts {
		if err := db.Model(c.model).Where(c.where, c.args...).Count(c.dst).Error; err != nil {
			return nil, fmt.Errorf("dashboard count: %w", err)
		}
	}

	var paid []models.Bill
	if err := db.Select("id", "bill_date", "total_amount").Where("user_id = ? AND is_paid = ?", ownerID, true).Find(&paid).Error; err != nil {
		return nil, fmt.Errorf("dashboard income: %w", err)
	}
	byMonth := map[string]decimal.Decimal{}
	for _, b := range paid {
		key := b.BillDate.Format("2006-01")
		byMonth[key] = byMonth[key].Add(b.TotalAmount)
	}
	months := make([]string, 0, len(byMonth))
	for k := range byMonth {
		months = append(months, k)
	}
	sort.Strings(months)
	for _, m := range months {
		t, _ := time.Parse("2006-01", m)
		d.MonthlyIncome = append(d.MonthlyIncome, MonthlyIncome{Month: m, Label: t.Format("Jan 2006"), Income: byMonth[m]})
	}
	return d, nil
}
