package services

import (
	"testing"

	"github.com/diewo77/billing-core/internal/models"
	"github.com/diewo77/billing-core/internal/money"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestSaveBill_TwoItems(t *testing.T) {
	f := newFixture(t)
	p1 := f.product(t, "Widget", "50.00", "0")
	p2 := f.product(t, "Support", "30.00", "10.00")

	bill, err := f.bills.SaveBill(f.ctx, f.owner, f.billInput(
		ItemInput{ProductID: p1.ID, Quantity: 2},
		ItemInput{ProductID: p2.ID, Quantity: 1},
	))
	require.NoError(t, err)

	require.Equal(t, []string{"100.00", "33.00"}, itemTotals(bill))
	require.Equal(t, "50.00", money.Format(bill.Items[0].UnitPrice))
	require.Equal(t, "33.00", money.Format(bill.Items[1].UnitPrice))
	require.Equal(t, "133.00", money.Format(bill.TotalAmount))
	require.Equal(t, "133.00", f.storedTotal(t, bill.ID))
	require.Equal(t, "130.00", money.Format(bill.SubtotalBeforeAllTaxes()))
	require.Equal(t, "3.00", money.Format(bill.TotalTaxOnItems()))
	require.Equal(t, f.owner, bill.UserID)
	require.NotNil(t, bill.Client)
	require.Equal(t, "ACME", bill.Client.Name)
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BillSaves.WithLabelValues("ok")))
	require.Equal(t, 2.0, testutil.ToFloat64(f.metrics.BillItemWrites.WithLabelValues("create")))
}

func TestSaveBill_HistoricalPricing(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Consulting", "100.00", "10.00")

	bill, err := f.bills.SaveBill(f.ctx, f.owner, f.billInput(ItemInput{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)
	itemID := bill.Items[0].ID
	require.Equal(t, "110.00", money.Format(bill.Items[0].UnitPrice))

	_, err = f.catalog.UpdateProduct(f.ctx, f.owner, p.ID, ProductInput{
		Name:          "Consulting",
		Price:         money.MustParse("200.00"),
		TaxPercentage: money.MustParse("10.00"),
	})
	require.NoError(t, err)

	bill, err = f.bills.GetBill(f.ctx, f.owner, bill.ID)
	require.NoError(t, err)
	require.Equal(t, "110.00", money.Format(bill.Items[0].UnitPrice))
	require.Equal(t, "110.00", money.Format(bill.Items[0].ItemTotal))
	require.Equal(t, "110.00", money.Format(bill.TotalAmount))

	// Resubmitting the unchanged line keeps the snapshot.
	in := f.billInput(ItemInput{ID: itemID, ProductID: p.ID, Quantity: 1})
	in.ID = bill.ID
	bill, err = f.bills.SaveBill(f.ctx, f.owner, in)
	require.NoError(t, err)
	require.Equal(t, "110.00", money.Format(bill.Items[0].UnitPrice))

	// Changing the quantity re-saves the line at the current price.
	in.Items[0].Quantity = 2
	bill, err = f.bills.SaveBill(f.ctx, f.owner, in)
	require.NoError(t, err)
	require.Equal(t, "220.00", money.Format(bill.Items[0].UnitPrice))
	require.Equal(t, "440.00", money.Format(bill.TotalAmount))
}

func TestSaveBill_RejectsEmptyItemSet(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Widget", "10.00", "0")

	cases := map[string][]ItemInput{
		"no items":           nil,
		"blank rows only":    {{}, {}},
		"new rows discarded": {{ProductID: p.ID, Quantity: 1, Delete: true}},
	}
	for name, items := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.bills.SaveBill(f.ctx, f.owner, f.billInput(items...))
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			require.Equal(t, MsgEmptyBill, ve.Message)
			require.Zero(t, f.count(t, &models.Bill{}))
			require.Zero(t, f.count(t, &models.BillItem{}))
		})
	}
}

func TestSaveBill_RejectsDeletingEveryItem(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Widget", "10.00", "0")
	bill, err := f.bills.SaveBill(f.ctx, f.owner, f.billInput(ItemInput{ProductID: p.ID, Quantity: 3}))
	require.NoError(t, err)

	in := f.billInput(ItemInput{ID: bill.Items[0].ID, Delete: true})
	in.ID = bill.ID
	in.IsPaid = true
	_, err = f.bills.SaveBill(f.ctx, f.owner, in)
	require.True(t, IsValidation(err))

	after, err := f.bills.GetBill(f.ctx, f.owner, bill.ID)
	require.NoError(t, err)
	require.False(t, after.IsPaid)
	require.Len(t, after.Items, 1)
	require.Equal(t, "30.00", money.Format(after.TotalAmount))
}

func TestSaveBill_Validation(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Widget", "10.00", "0")

	_, err := f.bills.SaveBill(f.ctx, f.owner, BillInput{Items: []ItemInput{{ProductID: p.ID, Quantity: 1}}})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "required", ve.Fields["client_id"])
	require.Equal(t, "required", ve.Fields["bill_date"])
	require.Equal(t, "required", ve.Fields["due_date"])

	_, err = f.bills.SaveBill(f.ctx, f.owner, f.billInput(
		ItemInput{ProductID: p.ID, Quantity: 1},
		ItemInput{ProductID: p.ID, Quantity: 0},
	))
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "must_be_positive", ve.Fields["items[1].quantity"])
	require.Zero(t, f.count(t, &models.Bill{}))
	require.Equal(t, 2.0, testutil.ToFloat64(f.metrics.BillSaves.WithLabelValues("invalid")))
}

func TestSaveBill_AmountsBeyondColumnRange(t *testing.T) {
	f := newFixture(t)
	big := f.product(t, "Plant", "60000000.00", "0")

	_, err := f.bills.SaveBill(f.ctx, f.owner, f.billInput(ItemInput{ProductID: big.ID, Quantity: 2}))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "out_of_range", ve.Fields["quantity"])

	_, err = f.bills.SaveBill(f.ctx, f.owner, f.billInput(
		ItemInput{ProductID: big.ID, Quantity: 1},
		ItemInput{ProductID: big.ID, Quantity: 1},
	))
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "total_out_of_range", ve.Fields["items"])
	require.Zero(t, f.count(t, &models.Bill{}))
	require.Zero(t, f.count(t, &models.BillItem{}))
}

func TestSaveBill_NotFound(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Widget", "10.00", "0")

	in := f.billInput(ItemInput{ProductID: p.ID, Quantity: 1})
	in.ClientID = 999
	_, err := f.bills.SaveBill(f.ctx, f.owner, in)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.bills.SaveBill(f.ctx, f.owner, f.billInput(ItemInput{ProductID: 999, Quantity: 1}))
	require.ErrorIs(t, err, ErrNotFound)

	// Another owner cannot bill this owner's products or clients.
	_, err = f.bills.SaveBill(f.ctx, f.owner+1, f.billInput(ItemInput{ProductID: p.ID, Quantity: 1}))
	require.ErrorIs(t, err, ErrNotFound)

	in = f.billInput(ItemInput{ProductID: p.ID, Quantity: 1})
	in.ID = 4242
	_, err = f.bills.SaveBill(f.ctx, f.owner, in)
	require.ErrorIs(t, err, ErrNotFound)

	require.Zero(t, f.count(t, &models.Bill{}))
	require.Zero(t, f.count(t, &models.BillItem{}))
}

func TestSaveBill_UpdateAppliesDeletesChangesAndAdditions(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "A", "10.00", "0")
	b := f.product(t, "B", "20.00", "5.00")
	c := f.product(t, "C", "1.99", "20.00")

	bill, err := f.bills.SaveBill(f.ctx, f.owner, f.billInput(
		ItemInput{ProductID: a.ID, Quantity: 1},
		ItemInput{ProductID: b.ID, Quantity: 2},
	))
	require.NoError(t, err)
	require.Equal(t, "52.00", money.Format(bill.TotalAmount))

	in := f.billInput(
		ItemInput{ID: bill.Items[0].ID, Delete: true},
		ItemInput{ID: bill.Items[1].ID, Quantity: 3},
		ItemInput{ProductID: c.ID, Quantity: 4},
		ItemInput{},
	)
	in.ID = bill.ID
	in.IsPaid = true
	in.DueDate = date(2024, 4, 30)
	bill, err = f.bills.SaveBill(f.ctx, f.owner, in)
	require.NoError(t, err)

	// B: 21.00 * 3 = 63.00; C: 2.39 * 4 = 9.56
	require.Equal(t, []string{"63.00", "9.56"}, itemTotals(bill))
	require.Equal(t, "72.56", money.Format(bill.TotalAmount))
	require.Equal(t, "72.56", f.storedTotal(t, bill.ID))
	require.True(t, bill.IsPaid)
	require.True(t, date(2024, 4, 30).Equal(bill.DueDate), "due date %s", bill.DueDate)
	require.Equal(t, int64(2), f.count(t, &models.BillItem{}))
}

func TestSaveBill_UnknownItemRowRollsBack(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Widget", "10.00", "0")
	bill, err := f.bills.SaveBill(f.ctx, f.owner, f.billInput(ItemInput{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)

	other, err := f.bills.SaveBill(f.ctx, f.owner, f.billInput(ItemInput{ProductID: p.ID, Quantity: 5}))
	require.NoError(t, err)

	// An item of another bill cannot be edited through this one.
	in := f.billInput(ItemInput{ID: other.Items[0].ID, Quantity: 1})
	in.ID = bill.ID
	_, err = f.bills.SaveBill(f.ctx, f.owner, in)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, "50.00", f.storedTotal(t, other.ID))
}

func TestSaveBill_RejectsRepeatedItemRows(t *testing.T) {
	f := newFixture(t)
	a := f.product(t, "Widget", "10.00", "0")
	b := f.product(t, "Support", "20.00", "0")
	bill, err := f.bills.SaveBill(f.ctx, f.owner, f.billInput(
		ItemInput{ProductID: a.ID, Quantity: 1},
		ItemInput{ProductID: b.ID, Quantity: 1},
	))
	require.NoError(t, err)
	itemA := bill.Items[0].ID

	for name, rows := range map[string][]ItemInput{
		"delete then update": {{ID: itemA, Delete: true}, {ID: itemA, Quantity: 5}},
		"update then delete": {{ID: itemA, Quantity: 7}, {ID: itemA, Delete: true}},
	} {
		t.Run(name, func(t *testing.T) {
			in := f.billInput(rows...)
			in.ID = bill.ID
			_, err := f.bills.SaveBill(f.ctx, f.owner, in)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			require.Equal(t, "duplicate", ve.Fields["items[1].id"])

			got, err := f.bills.GetBill(f.ctx, f.owner, bill.ID)
			require.NoError(t, err)
			require.Equal(t, []string{"10.00", "20.00"}, itemTotals(got))
			require.Equal(t, "30.00", f.storedTotal(t, bill.ID))
		})
	}
}

func TestSaveItem(t *testing.T) {
	f := newFixture(t)
	p1 := f.product(t, "Widget", "50.00", "0")
	p2 := f.product(t, "Support", "30.00", "10.00")
	bill, err := f.bills.SaveBill(f.ctx, f.owner, f.billInput(ItemInput{ProductID: p1.ID, Quantity: 2}))
	require.NoError(t, err)

	item, err := f.bills.SaveItem(f.ctx, f.owner, bill.ID, ItemInput{ProductID: p2.ID, Quantity: 1})
	require.NoError(t, err)
	require.NotZero(t, item.ID)
	require.Equal(t, "33.00", money.Format(item.ItemTotal))
	require.Equal(t, "133.00", f.storedTotal(t, bill.ID))

	item, err = f.bills.SaveItem(f.ctx, f.owner, bill.ID, ItemInput{ID: item.ID, Quantity: 3})
	require.NoError(t, err)
	require.Equal(t, p2.ID, item.ProductServiceID)
	require.Equal(t, "99.00", money.Format(item.ItemTotal))
	require.Equal(t, "199.00", f.storedTotal(t, bill.ID))

	_, err = f.bills.SaveItem(f.ctx, f.owner, bill.ID, ItemInput{ID: item.ID, Quantity: 0})
	require.True(t, IsValidation(err))
	_, err = f.bills.SaveItem(f.ctx, f.owner, bill.ID, ItemInput{Quantity: 1})
	require.True(t, IsValidation(err))
	_, err = f.bills.SaveItem(f.ctx, f.owner+1, bill.ID, ItemInput{ProductID: p1.ID, Quantity: 1})
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, "199.00", f.storedTotal(t, bill.ID))
}

func TestDeleteBillItem(t *testing.T) {
	f := newFixture(t)
	p1 := f.product(t, "Widget", "50.00", "0")
	p2 := f.product(t, "Support", "30.00", "10.00")
	bill, err := f.bills.SaveBill(f.ctx, f.owner, f.billInput(
		ItemInput{ProductID: p1.ID, Quantity: 2},
		ItemInput{ProductID: p2.ID, Quantity: 1},
	))
	require.NoError(t, err)

	after, err := f.bills.DeleteBillItem(f.ctx, f.owner, bill.Items[0].ID)
	require.NoError(t, err)
	require.Len(t, after.Items, 1)
	require.Equal(t, "33.00", money.Format(after.TotalAmount))

	_, err = f.bills.DeleteBillItem(f.ctx, f.owner+1, after.Items[0].ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.bills.DeleteBillItem(f.ctx, f.owner, 9999)
	require.ErrorIs(t, err, ErrNotFound)

	// Removing the last line leaves a zero total, not an error.
	after, err = f.bills.DeleteBillItem(f.ctx, f.owner, after.Items[0].ID)
	require.NoError(t, err)
	require.Empty(t, after.Items)
	require.Equal(t, "0.00", money.Format(after.TotalAmount))
	require.Equal(t, "0.00", f.storedTotal(t, bill.ID))
}

func TestRecalculate_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	p1 := f.product(t, "Widget", "50.00", "0")
	p2 := f.product(t, "Support", "30.00", "10.00")
	bill, err := f.bills.SaveBill(f.ctx, f.owner, f.billInput(
		ItemInput{ProductID: p1.ID, Quantity: 2},
		ItemInput{ProductID: p2.ID, Quantity: 1},
	))
	require.NoError(t, err)

	var billWrites int
	require.NoError(t, f.db.Callback().Update().After("gorm:update").Register("test:count_bill_writes", func(tx *gorm.DB) {
		if tx.Statement.Table == "bills" {
			billWrites++
		}
	}))

	changed, err := f.bills.Recalculate(f.ctx, bill.ID)
	require.NoError(t, err)
	require.False(t, changed)
	require.Zero(t, billWrites)

	// Simulate drift, then repair it once.
	require.NoError(t, f.db.Model(&models.Bill{}).Where("id = ?", bill.ID).UpdateColumn("total_amount", money.MustParse("999.99")).Error)
	billWrites = 0

	changed, err = f.bills.Recalculate(f.ctx, bill.ID)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, 1, billWrites)
	require.Equal(t, "133.00", f.storedTotal(t, bill.ID))

	changed, err = f.bills.Recalculate(f.ctx, bill.ID)
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, 1, billWrites)

	_, err = f.bills.Recalculate(f.ctx, 9999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRecalculateAll(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Widget", "10.00", "0")
	b1, err := f.bills.SaveBill(f.ctx, f.owner, f.billInput(ItemInput{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)
	b2, err := f.bills.SaveBill(f.ctx, f.owner, f.billInput(ItemInput{ProductID: p.ID, Quantity: 2}))
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&models.Bill{}).Where("id = ?", b2.ID).UpdateColumn("total_amount", money.Zero).Error)

	repaired, err := f.bills.RecalculateAll(f.ctx)
	require.NoError(t, err)
	require.Equal(t, 1, repaired)
	require.Equal(t, "10.00", f.storedTotal(t, b1.ID))
	require.Equal(t, "20.00", f.storedTotal(t, b2.ID))
}

func TestDeleteBill(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Widget", "10.00", "0")
	bill, err := f.bills.SaveBill(f.ctx, f.owner, f.billInput(ItemInput{ProductID: p.ID, Quantity: 1}, ItemInput{ProductID: p.ID, Quantity: 2}))
	require.NoError(t, err)

	require.ErrorIs(t, f.bills.DeleteBill(f.ctx, f.owner+1, bill.ID), ErrNotFound)
	require.NoError(t, f.bills.DeleteBill(f.ctx, f.owner, bill.ID))
	require.Zero(t, f.count(t, &models.Bill{}))
	require.Zero(t, f.count(t, &models.BillItem{}))

	_, err = f.bills.GetBill(f.ctx, f.owner, bill.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListBills_Order(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Widget", "10.00", "0")
	older := f.billInput(ItemInput{ProductID: p.ID, Quantity: 1})
	older.BillDate = date(2024, 1, 1)
	newer := f.billInput(ItemInput{ProductID: p.ID, Quantity: 1})
	newer.BillDate = date(2024, 6, 1)

	b1, err := f.bills.SaveBill(f.ctx, f.owner, older)
	require.NoError(t, err)
	b2, err := f.bills.SaveBill(f.ctx, f.owner, newer)
	require.NoError(t, err)

	bills, err := f.bills.ListBills(f.ctx, f.owner)
	require.NoError(t, err)
	require.Len(t, bills, 2)
	require.Equal(t, b2.ID, bills[0].ID)
	require.Equal(t, b1.ID, bills[1].ID)

	bills, err = f.bills.ListBills(f.ctx, f.owner+1)
	require.NoError(t, err)
	require.Empty(t, bills)
}
