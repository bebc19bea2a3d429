package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/diewo77/billing-core/internal/httpx"
	"github.com/diewo77/billing-core/internal/money"
	"github.com/diewo77/billing-core/internal/services"
	"github.com/diewo77/billing-core/internal/validation"
)

type ProductHandler struct {
	svc *services.CatalogService
}

func NewProductHandler(svc *services.CatalogService) *ProductHandler {
	return &ProductHandler{svc: svc}
}

// Amounts are accepted as JSON numbers or numeric strings.
type productRequest struct {
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	Price         json.Number `json:"price"`
	TaxPercentage json.Number `json:"tax_percentage"`
}

func (req productRequest) input() (services.ProductInput, validation.Violations) {
	v := validation.Violations{}
	in := services.ProductInput{Name: req.Name, Description: req.Description}
	price, err := money.Parse(req.Price.String())
	switch {
	case errors.Is(err, money.ErrEmpty):
		v["price"] = "required"
	case err != nil:
		v["price"] = "invalid"
	}
	in.Price = price
	if req.TaxPercentage != "" {
		tax, err := money.Parse(req.TaxPercentage.String())
		if err != nil {
			v["tax_percentage"] = "invalid"
		}
		in.TaxPercentage = tax
	}
	return in, v
}

// List: GET /products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.ListProducts(r.Context(), owner(r))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	out := make([]productResponse, 0, len(products))
	for i := range products {
		out = append(out, newProductResponse(&products[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": out, "total": len(out)})
}

// Create: POST /products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decode(w, r, &req) {
		return
	}
	in, v := req.input()
	if !v.Empty() {
		invalidRequest(w, r, v)
		return
	}
	p, err := h.svc.CreateProduct(r.Context(), owner(r), in)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newProductResponse(p))
}

// Get: GET /products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.svc.GetProduct(r.Context(), owner(r), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newProductResponse(p))
}

// Update: PUT /products/{id}. Saved bill items keep their prices.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req productRequest
	if !decode(w, r, &req) {
		return
	}
	in, v := req.input()
	if !v.Empty() {
		invalidRequest(w, r, v)
		return
	}
	p, err := h.svc.UpdateProduct(r.Context(), owner(r), id, in)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newProductResponse(p))
}

// Delete: DELETE /products/{id}
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteProduct(r.Context(), owner(r), id); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type productMatchResponse struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

// Autocomplete: GET /products/autocomplete?term=
func (h *ProductHandler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	matches, err := h.svc.SearchProducts(r.Context(), owner(r), r.URL.Query().Get("term"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	out := make([]productMatchResponse, 0, len(matches))
	for _, m := range matches {
		out = append(out, productMatchResponse{ID: m.ID, Name: m.Name, Price: money.Format(m.Price)})
	}
	httpx.JSON(w, http.StatusOK, out)
}
