package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/billing-core/internal/models"
	"github.com/diewo77/billing-core/internal/money"
	"github.com/diewo77/billing-core/internal/obs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

type fixture struct {
	ctx     context.Context
	db      *gorm.DB
	metrics *obs.Metrics
	bills   *BillService
	catalog *CatalogService
	clients *ClientService
	reports *ReportService
	owner   uint
	client  *models.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	m := obs.NewMetrics("test", prometheus.NewRegistry())
	bills := NewBillService(db, zerolog.Nop(), m)
	f := &fixture{
		ctx:     context.Background(),
		db:      db,
		metrics: m,
		bills:   bills,
		catalog: NewCatalogService(db, bills),
		clients: NewClientService(db),
		reports: NewReportService(db),
		owner:   1,
	}
	c, err := f.clients.CreateClient(f.ctx, f.owner, ClientInput{Name: "ACME", Email: "billing@acme.test"})
	require.NoError(t, err)
	f.client = c
	return f
}

func (f *fixture) product(t *testing.T, name, price, tax string) *models.ProductService {
	t.Helper()
	p, err := f.catalog.CreateProduct(f.ctx, f.owner, ProductInput{
		Name:          name,
		Price:         money.MustParse(price),
		TaxPercentage: money.MustParse(tax),
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) billInput(items ...ItemInput) BillInput {
	return BillInput{
		ClientID: f.client.ID,
		BillDate: date(2024, 3, 1),
		DueDate:  date(2024, 3, 31),
		Items:    items,
	}
}

// storedTotal reads total_amount straight from the table.
func (f *fixture) storedTotal(t *testing.T, billID uint) string {
	t.Helper()
	var b models.Bill
	require.NoError(t, f.db.Select("id", "total_amount").First(&b, billID).Error)
	return money.Format(b.TotalAmount)
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func itemTotals(b *models.Bill) []string {
	out := make([]string, 0, len(b.Items))
	for _, it := range b.Items {
		out = append(out, money.Format(it.ItemTotal))
	}
	return out
}
