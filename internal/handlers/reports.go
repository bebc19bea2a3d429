package handlers

import (
	"bytes"
	"net/http"

	"github.com/diewo77/billing-core/internal/httpx"
	"github.com/diewo77/billing-core/internal/money"
	"github.com/diewo77/billing-core/internal/services"
)

type ReportHandler struct {
	svc *services.ReportService
}

func NewReportHandler(svc *services.ReportService) *ReportHandler {
	return &ReportHandler{svc: svc}
}

// BillsCSV: GET /reports/bills.csv
func (h *ReportHandler) BillsCSV(w http.ResponseWriter, r *http.Request) {
	// Buffered so a failure can still become a JSON error.
	var buf bytes.Buffer
	if err := h.svc.ExportBillsCSV(r.Context(), owner(r), &buf); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="bills_report.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

type monthlyIncomeResponse struct {
	Month  string `json:"month"`
	Label  string `json:"label"`
	Income string `json:"income"`
}

// Dashboard: GET /dashboard
func (h *ReportHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Dashboard(r.Context(), owner(r))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	income := make([]monthlyIncomeResponse, 0, len(d.MonthlyIncome))
	for _, m := range d.MonthlyIncome {
		income = append(income, monthlyIncomeResponse{Month: m.Month, Label: m.Label, Income: money.Format(m.Income)})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"total_clients":  d.TotalClients,
		"total_products": d.TotalProducts,
		"total_bills":    d.TotalBills,
		"unpaid_bills":   d.UnpaidBills,
		"monthly_income": income,
	})
}
