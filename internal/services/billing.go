package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/diewo77/billing-core/internal/models"
	"github.com/diewo77/billing-core/internal/money"
	"github.com/diewo77/billing-core/internal/obs"
	"github.com/diewo77/billing-core/internal/validation"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BillService owns every write to bills and bill items. Item pricing snapshots and the
// cached bill total are only ever set here.
type BillService struct {
	db      *gorm.DB
	log     zerolog.Logger
	metrics *obs.Metrics
}

func NewBillService(db *gorm.DB, log zerolog.Logger, metrics *obs.Metrics) *BillService {
	return &BillService{db: db, log: log, metrics: metrics}
}

// ItemInput is one submitted line. ID=0 adds a line; Delete removes an existing one.
// ProductID=0 on an existing line keeps its current product.
type ItemInput struct {
	ID        uint
	ProductID uint
	Quantity  int
	Delete    bool
}

// BillInput is a bill header plus the submitted lines. ID=0 creates a bill.
// Existing lines that are not submitted are left untouched.
type BillInput struct {
	ID       uint
	ClientID uint
	BillDate time.Time
	DueDate  time.Time
	IsPaid   bool
	Items    []ItemInput
}

func validateBillInput(in BillInput) validation.Violations {
	v := validation.Violations{}
	validation.RequiredID("client_id", in.ClientID, v)
	if in.BillDate.IsZero() {
		v["bill_date"] = "required"
	}
	if in.DueDate.IsZero() {
		v["due_date"] = "required"
	}
	// Each existing line may appear once.
	seen := map[uint]bool{}
	for i, row := range in.Items {
		prefix := "items[" + strconv.Itoa(i) + "]"
		if row.ID != 0 {
			if seen[row.ID] {
				v[prefix+".id"] = "duplicate"
			}
			seen[row.ID] = true
		}
		if row.Delete || (row.ID == 0 && row.ProductID == 0) {
			continue
		}
		validation.PositiveInt(prefix+".quantity", row.Quantity, v)
	}
	return v
}

// SaveBill creates or updates a bill and its lines in one transaction. The resulting set
// of lines must not be empty; on any error nothing is persisted.
func (s *BillService) SaveBill(ctx context.Context, ownerID uint, in BillInput) (*models.Bill, error) {
	if v := validateBillInput(in); !v.Empty() {
		s.metrics.BillSaved("invalid")
		return nil, invalid(v)
	}

	var billID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var client models.Client
		if err := tx.Where("id = ? AND user_id = ?", in.ClientID, ownerID).First(&client).Error; err != nil {
			return notFound(err, "client", in.ClientID)
		}

		var bill models.Bill
		existing := map[uint]*models.BillItem{}
		if in.ID != 0 {
			if err := tx.Where("id = ? AND user_id = ?", in.ID, ownerID).First(&bill).Error; err != nil {
				return notFound(err, "bill", in.ID)
			}
			var items []models.BillItem
			if err := tx.Where("bill_id = ?", bill.ID).Find(&items).Error; err != nil {
				return fmt.Errorf("load items of bill %d: %w", bill.ID, err)
			}
			for i := range items {
				existing[items[i].ID] = &items[i]
			}
		}

		// Effective set: existing lines - deletions + new lines with a product.
		remaining := len(existing)
		productIDs := make([]uint, 0, len(in.Items))
		for _, row := range in.Items {
			if row.ID != 0 {
				item, ok := existing[row.ID]
				if !ok {
					return fmt.Errorf("bill item %d: %w", row.ID, ErrNotFound)
				}
				if row.Delete {
					remaining--
					continue
				}
				if row.ProductID == 0 {
					productIDs = append(productIDs, item.ProductServiceID)
				} else {
					productIDs = append(productIDs, row.ProductID)
				}
				continue
			}
			if !row.Delete && row.ProductID != 0 {
				remaining++
				productIDs = append(productIDs, row.ProductID)
			}
		}
		if remaining <= 0 {
			return &ValidationError{Message: MsgEmptyBill, Fields: validation.Violations{"items": "at_least_one_required"}}
		}

		products, err := loadProducts(tx, ownerID, productIDs)
		if err != nil {
			return err
		}

		if in.ID == 0 {
			bill = models.Bill{
				UserID:      ownerID,
				ClientID:    client.ID,
				BillDate:    in.BillDate,
				DueDate:     in.DueDate,
				IsPaid:      in.IsPaid,
				TotalAmount: money.Zero,
			}
			if err := tx.Omit(clause.Associations).Create(&bill).Error; err != nil {
				return fmt.Errorf("create bill: %w", err)
			}
		} else {
			err := tx.Model(&bill).Omit(clause.Associations).Updates(map[string]any{
				"client_id": client.ID,
				"bill_date": in.BillDate,
				"due_date":  in.DueDate,
				"is_paid":   in.IsPaid,
			}).Error
			if err != nil {
				return fmt.Errorf("update bill %d: %w", bill.ID, err)
			}
		}

		for _, row := range in.Items {
			switch {
			case row.ID != 0 && row.Delete:
				if err := s.deleteItem(tx, existing[row.ID]); err != nil {
					return err
				}
			case row.ID != 0:
				item := existing[row.ID]
				productID := row.ProductID
				if productID == 0 {
					productID = item.ProductServiceID
				}
				// Unchanged lines keep their historical snapshot.
				if productID == item.ProductServiceID && row.Quantity == item.Quantity {
					continue
				}
				item.Quantity = row.Quantity
				if err := s.saveItem(tx, item, products[productID]); err != nil {
					return err
				}
			case row.Delete || row.ProductID == 0:
				continue
			default:
				item := &models.BillItem{BillID: bill.ID, Quantity: row.Quantity}
				if err := s.saveItem(tx, item, products[row.ProductID]); err != nil {
					return err
				}
			}
		}

		if _, err := s.recalculate(tx, bill.ID); err != nil {
			return err
		}
		billID = bill.ID
		return nil
	})
	if err != nil {
		if IsValidation(err) {
			s.metrics.BillSaved("invalid")
		} else {
			s.metrics.BillSaved("error")
		}
		return nil, err
	}
	s.metrics.BillSaved("ok")

	bill, err := s.GetBill(ctx, ownerID, billID)
	if err != nil {
		return nil, err
	}
	s.log.Info().Uint("user_id", ownerID).Uint("bill_id", bill.ID).
		Int("items", len(bill.Items)).Str("total_amount", money.Format(bill.TotalAmount)).
		Msg("bill saved")
	return bill, nil
}

// SaveItem adds (ID=0) or updates a single line of a bill and recalculates the bill.
func (s *BillService) SaveItem(ctx context.Context, ownerID, billID uint, in ItemInput) (*models.BillItem, error) {
	v := validation.Violations{}
	validation.PositiveInt("quantity", in.Quantity, v)
	if in.ID == 0 {
		validation.RequiredID("product_id", in.ProductID, v)
	}
	if !v.Empty() {
		return nil, invalid(v)
	}

	var item models.BillItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bill models.Bill
		if err := tx.Select("id").Where("id = ? AND user_id = ?", billID, ownerID).First(&bill).Error; err != nil {
			return notFound(err, "bill", billID)
		}
		if in.ID != 0 {
			if err := tx.Where("id = ? AND bill_id = ?", in.ID, bill.ID).First(&item).Error; err != nil {
				return notFound(err, "bill item", in.ID)
			}
		} else {
			item.BillID = bill.ID
		}
		productID := in.ProductID
		if productID == 0 {
			productID = item.ProductServiceID
		}
		products, err := loadProducts(tx, ownerID, []uint{productID})
		if err != nil {
			return err
		}
		item.Quantity = in.Quantity
		if err := s.saveItem(tx, &item, products[productID]); err != nil {
			return err
		}
		_, err = s.recalculate(tx, bill.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteBillItem removes one line and recalculates its bill. The bill is returned as it
// stands afterwards; it may be left without items.
func (s *BillService) DeleteBillItem(ctx context.Context, ownerID, itemID uint) (*models.Bill, error) {
	var billID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.BillItem
		err := tx.Joins("JOIN bills ON bills.id = bill_items.bill_id").
			Where("bill_items.id = ? AND bills.user_id = ?", itemID, ownerID).
			First(&item).Error
		if err != nil {
			return notFound(err, "bill item", itemID)
		}
		if err := s.deleteItem(tx, &item); err != nil {
			return err
		}
		billID = item.BillID
		_, err = s.recalculate(tx, item.BillID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.GetBill(ctx, ownerID, billID)
}

// DeleteBill removes a bill and its items.
func (s *BillService) DeleteBill(ctx context.Context, ownerID, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bill models.Bill
		if err := tx.Select("id").Where("id = ? AND user_id = ?", id, ownerID).First(&bill).Error; err != nil {
			return notFound(err, "bill", id)
		}
		return deleteBills(tx, []uint{bill.ID})
	})
}

// GetBill loads a bill with its client and items (with products), items in insertion order.
func (s *BillService) GetBill(ctx context.Context, ownerID, id uint) (*models.Bill, error) {
	var bill models.Bill
	err := s.db.WithContext(ctx).Scopes(withBillDetails).
		Where("id = ? AND user_id = ?", id, ownerID).
		First(&bill).Error
	if err != nil {
		return nil, notFound(err, "bill", id)
	}
	return &bill, nil
}

// ListBills returns the owner's bills, most recent bill date first.
func (s *BillService) ListBills(ctx context.Context, ownerID uint) ([]models.Bill, error) {
	return listBills(s.db.WithContext(ctx), ownerID)
}

// Recalculate recomputes the cached total of a bill. It reports whether a write happened;
// calling it again without item changes is a no-op.
func (s *BillService) Recalculate(ctx context.Context, billID uint) (bool, error) {
	var changed bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		changed, err = s.recalculate(tx, billID)
		return err
	})
	return changed, err
}

// RecalculateAll repairs every bill whose cached total drifted from its items and returns
// how many were rewritten.
func (s *BillService) RecalculateAll(ctx context.Context) (int, error) {
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.Bill{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("list bills: %w", err)
	}
	repaired := 0
	for _, id := range ids {
		changed, err := s.Recalculate(ctx, id)
		if err != nil {
			return repaired, err
		}
		if changed {
			repaired++
		}
	}
	return repaired, nil
}

// saveItem is the single path writing UnitPrice and ItemTotal. The caller recalculates
// the owning bill in the same transaction.
func (s *BillService) saveItem(tx *gorm.DB, item *models.BillItem, product *models.ProductService) error {
	if item.Quantity <= 0 {
		return invalid(validation.Violations{"quantity": "must_be_positive"})
	}
	if product == nil {
		return fmt.Errorf("product for bill item: %w", ErrNotFound)
	}
	op := "update"
	if item.ID == 0 {
		op = "create"
	}
	item.ProductServiceID = product.ID
	item.UnitPrice = product.PriceWithTax()
	item.ItemTotal = money.Round2(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	if item.ItemTotal.GreaterThan(money.Max) {
		return invalid(validation.Violations{"quantity": "out_of_range"})
	}
	if err := tx.Omit(clause.Associations).Save(item).Error; err != nil {
		return fmt.Errorf("save bill item: %w", err)
	}
	item.ProductService = product
	s.metrics.ItemWritten(op)
	return nil
}

func (s *BillService) deleteItem(tx *gorm.DB, item *models.BillItem) error {
	if err := tx.Delete(&models.BillItem{}, item.ID).Error; err != nil {
		return fmt.Errorf("delete bill item %d: %w", item.ID, err)
	}
	s.metrics.ItemWritten("delete")
	return nil
}

// recalculate writes total_amount only when it differs from the sum of item totals,
// so repeated calls issue no further writes.
func (s *BillService) recalculate(tx *gorm.DB, billID uint) (bool, error) {
	var bill models.Bill
	if err := tx.Select("id", "total_amount").First(&bill, billID).Error; err != nil {
		return false, notFound(err, "bill", billID)
	}
	var items []models.BillItem
	if err := tx.Select("id", "item_total").Where("bill_id = ?", billID).Find(&items).Error; err != nil {
		return false, fmt.Errorf("load items of bill %d: %w", billID, err)
	}
	totals := make([]decimal.Decimal, 0, len(items))
	for _, it := range items {
		totals = append(totals, it.ItemTotal)
	}
	total := money.Sum(totals...)
	if total.GreaterThan(money.Max) {
		return false, invalid(validation.Violations{"items": "total_out_of_range"})
	}

	if total.Equal(bill.TotalAmount) {
		s.metrics.Recalculated(false)
		return false, nil
	}
	if err := tx.Model(&models.Bill{}).Where("id = ?", billID).UpdateColumn("total_amount", total).Error; err != nil {
		return false, fmt.Errorf("update total of bill %d: %w", billID, err)
	}
	s.metrics.Recalculated(true)
	s.log.Debug().Uint("bill_id", billID).
		Str("old_total", money.Format(bill.TotalAmount)).Str("new_total", money.Format(total)).
		Msg("bill total recalculated")
	return true, nil
}

func loadProducts(tx *gorm.DB, ownerID uint, ids []uint) (map[uint]*models.ProductService, error) {
	out := make(map[uint]*models.ProductService, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var products []models.ProductService
	if err := tx.Where("id IN ? AND user_id = ?", ids, ownerID).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	for i := range products {
		out[products[i].ID] = &products[i]
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
		}
	}
	return out, nil
}

// deleteBills removes bills and their items inside tx.
func deleteBills(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("bill_id IN ?", ids).Delete(&models.BillItem{}).Error; err != nil {
		return fmt.Errorf("delete bill items: %w", err)
	}
	if err := tx.Where("id IN ?", ids).Delete(&models.Bill{}).Error; err != nil {
		return fmt.Errorf("delete bills: %w", err)
	}
	return nil
}

func withBillDetails(db *gorm.DB) *gorm.DB {
	return db.Preload("Client").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("bill_items.id ASC") }).
		Preload("Items.ProductService")
}

func listBills(db *gorm.DB, ownerID uint) ([]models.Bill, error) {
	var bills []models.Bill
	err := db.Scopes(withBillDetails).
		Where("user_id = ?", ownerID).
		Order("bill_date DESC, created_at DESC, id DESC").
		Find(&bills).Error
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	return bills, nil
}
