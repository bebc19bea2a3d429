package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/diewo77/billing-core/internal/models"
	"github.com/diewo77/billing-core/internal/money"
	"github.com/diewo77/billing-core/internal/validation"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CatalogService manages products/services. Editing a product never rewrites bill items
// already saved with it.
type CatalogService struct {
	db    *gorm.DB
	bills *BillService
}

func NewCatalogService(db *gorm.DB, bills *BillService) *CatalogService {
	return &CatalogService{db: db, bills: bills}
}

type ProductInput struct {
	Name          string          `json:"name" validate:"required,max=200"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price" validate:"gte=0,lte=99999999.99"`
	TaxPercentage decimal.Decimal `json:"tax_percentage" validate:"gte=0,lte=100"`
}

func (in ProductInput) validate() validation.Violations {
	v := validation.Violations{}
	validation.Struct(in, v)
	if _, ok := v["price"]; !ok && !in.Price.Equal(money.Round2(in.Price)) {
		v["price"] = "too_many_decimals"
	}
	if _, ok := v["tax_percentage"]; !ok && !in.TaxPercentage.Equal(money.Round2(in.TaxPercentage)) {
		v["tax_percentage"] = "too_many_decimals"
	}
	return v
}

// ProductMatch is an autocomplete suggestion.
type ProductMatch struct {
	ID    uint            `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

func (c *CatalogService) CreateProduct(ctx context.Context, ownerID uint, in ProductInput) (*models.ProductService, error) {
	if v := in.validate(); !v.Empty() {
		return nil, invalid(v)
	}
	p := models.ProductService{
		UserID:        ownerID,
		Name:          strings.TrimSpace(in.Name),
		Description:   in.Description,
		Price:         in.Price,
		TaxPercentage: in.TaxPercentage,
	}
	if err := c.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return &p, nil
}

func (c *CatalogService) UpdateProduct(ctx context.Context, ownerID, id uint, in ProductInput) (*models.ProductService, error) {
	if v := in.validate(); !v.Empty() {
		return nil, invalid(v)
	}
	p, err := c.GetProduct(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	err = c.db.WithContext(ctx).Model(p).Updates(map[string]any{
		"name":           strings.TrimSpace(in.Name),
		"description":    in.Description,
		"price":          in.Price,
		"tax_percentage": in.TaxPercentage,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("update product %d: %w", id, err)
	}
	return c.GetProduct(ctx, ownerID, id)
}

func (c *CatalogService) GetProduct(ctx context.Context, ownerID, id uint) (*models.ProductService, error) {
	var p models.ProductService
	if err := c.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).First(&p).Error; err != nil {
		return nil, notFound(err, "product", id)
	}
	return &p, nil
}

func (c *CatalogService) ListProducts(ctx context.Context, ownerID uint) ([]models.ProductService, error) {
	var products []models.ProductService
	if err := c.db.WithContext(ctx).Where("user_id = ?", ownerID).Order("name ASC, id ASC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// DeleteProduct removes a product together with the bill items that reference it and
// recalculates the affected bills in the same transaction.
func (c *CatalogService) DeleteProduct(ctx context.Context, ownerID, id uint) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.ProductService
		if err := tx.Select("id").Where("id = ? AND user_id = ?", id, ownerID).First(&p).Error; err != nil {
			return notFound(err, "product", id)
		}
		var billIDs []uint
		err := tx.Model(&models.BillItem{}).Where("product_service_id = ?", p.ID).
			Distinct().Order("bill_id").Pluck("bill_id", &billIDs).Error
		if err != nil {
			return fmt.Errorf("find bills using product %d: %w", p.ID, err)
		}
		if err := tx.Where("product_service_id = ?", p.ID).Delete(&models.BillItem{}).Error; err != nil {
			return fmt.Errorf("delete items of product %d: %w", p.ID, err)
		}
		for _, billID := range billIDs {
			if _, err := c.bills.recalculate(tx, billID); err != nil {
				return err
			}
		}
		if err := tx.Delete(&models.ProductService{}, p.ID).Error; err != nil {
			return fmt.Errorf("delete product %d: %w", p.ID, err)
		}
		return nil
	})
}

// SearchProducts matches names case-insensitively on a substring. An empty term matches nothing.
func (c *CatalogService) SearchProducts(ctx context.Context, ownerID uint, term string) ([]ProductMatch, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []ProductMatch{}, nil
	}
	q := c.db.WithContext(ctx).
		Select("id", "name", "price").
		Where("user_id = ?", ownerID).
		Order("name ASC, id ASC")
	// SQLite's lower() folds ASCII only, so names are matched in Go there.
	folded := c.db.Dialector.Name() == "sqlite"
	if !folded {
		q = q.Where("lower(name) LIKE ? ESCAPE '\\'", likePattern(term))
	}
	var products []models.ProductService
	if err := q.Find(&products).Error; err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	needle := strings.ToLower(term)
	out := make([]ProductMatch, 0, len(products))
	for _, p := range products {
		if folded && !strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		out = append(out, ProductMatch{ID: p.ID, Name: p.Name, Price: p.Price})
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
}
