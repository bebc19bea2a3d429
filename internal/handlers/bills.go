package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/billing-core/internal/httpx"
	"github.com/diewo77/billing-core/internal/reports"
	"github.com/diewo77/billing-core/internal/services"
	"github.com/diewo77/billing-core/internal/validation"
)

type BillHandler struct {
	bills   *services.BillService
	reports *services.ReportService
}

func NewBillHandler(bills *services.BillService, rep *services.ReportService) *BillHandler {
	return &BillHandler{bills: bills, reports: rep}
}

// itemRequest is one submitted line: id=0 adds it, delete=true removes an existing one.
type itemRequest struct {
	ID        uint        `json:"id"`
	ProductID uint        `json:"product_id"`
	Quantity  json.Number `json:"quantity"`
	Delete    bool        `json:"delete"`
}

type billRequest struct {
	ClientID uint          `json:"client_id"`
	BillDate string        `json:"bill_date"`
	DueDate  string        `json:"due_date"`
	IsPaid   bool          `json:"is_paid"`
	Items    []itemRequest `json:"items"`
}

func (req itemRequest) input(field string, v validation.Violations) services.ItemInput {
	qty, ok := parseInt(req.Quantity)
	if !ok {
		v[field] = "invalid"
	}
	return services.ItemInput{ID: req.ID, ProductID: req.ProductID, Quantity: qty, Delete: req.Delete}
}

func (req billRequest) input(id uint) (services.BillInput, validation.Violations) {
	v := validation.Violations{}
	in := services.BillInput{ID: id, ClientID: req.ClientID, IsPaid: req.IsPaid}
	in.BillDate = parseDate("bill_date", req.BillDate, v)
	in.DueDate = parseDate("due_date", req.DueDate, v)
	in.Items = make([]services.ItemInput, 0, len(req.Items))
	for i, it := range req.Items {
		in.Items = append(in.Items, it.input("items["+strconv.Itoa(i)+"].quantity", v))
	}
	return in, v
}

// parseDate leaves blanks as the zero time; the service reports them as required.
func parseDate(field, value string, v validation.Violations) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(reports.DateLayout, value)
	if err != nil {
		v[field] = "invalid_date"
	}
	return t
}

// List: GET /bills
func (h *BillHandler) List(w http.ResponseWriter, r *http.Request) {
	bills, err := h.bills.ListBills(r.Context(), owner(r))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	out := make([]billResponse, 0, len(bills))
	for i := range bills {
		out = append(out, newBillResponse(&bills[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": out, "total": len(out)})
}

// Create: POST /bills with header and lines.
func (h *BillHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, 0, http.StatusCreated)
}

// Update: PUT /bills/{id}. Lines not listed are kept as they are.
func (h *BillHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	h.save(w, r, id, http.StatusOK)
}

func (h *BillHandler) save(w http.ResponseWriter, r *http.Request, id uint, status int) {
	var req billRequest
	if !decode(w, r, &req) {
		return
	}
	in, v := req.input(id)
	if !v.Empty() {
		invalidRequest(w, r, v)
		return
	}
	bill, err := h.bills.SaveBill(r.Context(), owner(r), in)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSON(w, status, newBillResponse(bill))
}

// Get: GET /bills/{id}
func (h *BillHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	bill, err := h.bills.GetBill(r.Context(), owner(r), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newBillResponse(bill))
}

// Delete: DELETE /bills/{id}
func (h *BillHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.bills.DeleteBill(r.Context(), owner(r), id); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SaveItem: POST /bills/{id}/items adds a line, or updates one when the body carries its id.
func (h *BillHandler) SaveItem(w http.ResponseWriter, r *http.Request) {
	billID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req itemRequest
	if !decode(w, r, &req) {
		return
	}
	v := validation.Violations{}
	in := req.input("quantity", v)
	if !v.Empty() {
		invalidRequest(w, r, v)
		return
	}
	status := http.StatusOK
	if in.ID == 0 {
		status = http.StatusCreated
	}
	if _, err := h.bills.SaveItem(r.Context(), owner(r), billID, in); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	bill, err := h.bills.GetBill(r.Context(), owner(r), billID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSON(w, status, newBillResponse(bill))
}

// DeleteItem: DELETE /bill-items/{id} returns the bill with its recalculated total.
func (h *BillHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	bill, err := h.bills.DeleteBillItem(r.Context(), owner(r), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newBillResponse(bill))
}

// Invoice: GET /bills/{id}/invoice returns the data a PDF renderer lays out.
func (h *BillHandler) Invoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	inv, err := h.reports.Invoice(r.Context(), owner(r), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newInvoiceResponse(inv))
}
