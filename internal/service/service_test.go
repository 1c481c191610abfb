package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Khalettt/POSMS/internal/cache"
	"github.com/Khalettt/POSMS/internal/domain"
	"github.com/Khalettt/POSMS/internal/store"
	"github.com/Khalettt/POSMS/internal/store/memory"
)

func newTestService() (*Service, *memory.Store) {
	repo := memory.New()
	return New(repo, cache.NoopStatsCache{}, 10), repo
}

func managerCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{ID: "user-mgr", Name: "Manager", Role: domain.RoleManager})
}

func cashierCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{ID: "user-cash", Name: "Cashier", Role: domain.RoleCashier})
}

func createProduct(t *testing.T, svc *Service, name string, priceCents int64, stock int) *domain.Product {
	t.Helper()
	created, err := svc.CreateProduct(managerCtx(), domain.ProductCreateRequest{
		Name:          name,
		PriceCents:    priceCents,
		StockQuantity: stock,
	})
	if err != nil {
		t.Fatalf("create product %s: %v", name, err)
	}
	return created
}

func TestSubmitSaleComputesTotalsAndDecrementsStock(t *testing.T) {
	svc, _ := newTestService()
	product := createProduct(t, svc, "Drip Coffee", 8500, 5)

	receipt, err := svc.SubmitSale(cashierCtx(), domain.SubmitSaleRequest{
		Cart: []domain.CartLine{{ProductID: product.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("submit sale: %v", err)
	}

	if receipt.SubtotalCents != 17000 {
		t.Fatalf("expected subtotal 17000, got %d", receipt.SubtotalCents)
	}
	if receipt.TaxCents != 1700 {
		t.Fatalf("expected tax 1700, got %d", receipt.TaxCents)
	}
	if receipt.TotalCents != 18700 {
		t.Fatalf("expected total 18700, got %d", receipt.TotalCents)
	}
	if receipt.InvoiceNumber == "" {
		t.Fatalf("expected an invoice number")
	}

	after, err := svc.GetProduct(cashierCtx(), product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.StockQuantity != 3 {
		t.Fatalf("expected stock 3 after sale, got %d", after.StockQuantity)
	}

	logs, err := svc.ListInventoryLogs(cashierCtx(), 10)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	entry := logs[0]
	if entry.ChangeType != domain.ChangeTypeSale || entry.QuantityChange != -2 ||
		entry.PreviousQuantity != 5 || entry.NewQuantity != 3 {
		t.Fatalf("unexpected sale log entry: %+v", entry)
	}
}

func TestSubmitSaleFailureLeavesNothingBehind(t *testing.T) {
	svc, _ := newTestService()
	coffee := createProduct(t, svc, "Drip Coffee", 8500, 10)
	tea := createProduct(t, svc, "Green Tea", 4200, 1)

	// Second line exceeds stock; the first line must not be applied either.
	_, err := svc.SubmitSale(cashierCtx(), domain.SubmitSaleRequest{
		Cart: []domain.CartLine{
			{ProductID: coffee.ID, Quantity: 2},
			{ProductID: tea.ID, Quantity: 5},
		},
	})
	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.Available != 1 || stockErr.Requested != 5 {
		t.Fatalf("unexpected shortfall detail: %+v", stockErr)
	}

	coffeeAfter, _ := svc.GetProduct(cashierCtx(), coffee.ID)
	if coffeeAfter.StockQuantity != 10 {
		t.Fatalf("expected coffee stock untouched at 10, got %d", coffeeAfter.StockQuantity)
	}

	sales, err := svc.ListSales(cashierCtx(), 10)
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 0 {
		t.Fatalf("expected no sale rows after failed submit, got %d", len(sales))
	}

	logs, err := svc.ListInventoryLogs(cashierCtx(), 100)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	for _, entry := range logs {
		if entry.ChangeType == domain.ChangeTypeSale {
			t.Fatalf("expected no sale log entries after failed submit, got %+v", entry)
		}
	}
}

func TestSubmitSaleRaceForLastUnit(t *testing.T) {
	svc, _ := newTestService()
	product := createProduct(t, svc, "Last Unit", 5000, 1)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SubmitSale(cashierCtx(), domain.SubmitSaleRequest{
				Cart: []domain.CartLine{{ProductID: product.ID, Quantity: 1}},
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins, losses := 0, 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		var stockErr *domain.InsufficientStockError
		if !errors.As(err, &stockErr) {
			t.Fatalf("loser got unexpected error: %v", err)
		}
		losses++
	}
	if wins != 1 || losses != 1 {
		t.Fatalf("expected exactly one winner and one loser, got wins=%d losses=%d", wins, losses)
	}

	after, _ := svc.GetProduct(cashierCtx(), product.ID)
	if after.StockQuantity != 0 {
		t.Fatalf("expected stock 0 after the race, got %d", after.StockQuantity)
	}
}

func TestSubmitSaleDuplicateCartLinesCannotOversell(t *testing.T) {
	svc, _ := newTestService()
	product := createProduct(t, svc, "Repeated Line", 3000, 3)

	// Each line alone fits within stock 3, together they do not.
	_, err := svc.SubmitSale(cashierCtx(), domain.SubmitSaleRequest{
		Cart: []domain.CartLine{
			{ProductID: product.ID, Quantity: 2},
			{ProductID: product.ID, Quantity: 2},
		},
	})
	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.Available != 3 || stockErr.Requested != 4 {
		t.Fatalf("unexpected stock detail: %+v", stockErr)
	}

	after, _ := svc.GetProduct(cashierCtx(), product.ID)
	if after.StockQuantity != 3 {
		t.Fatalf("expected stock unchanged at 3, got %d", after.StockQuantity)
	}
	sales, _ := svc.ListSales(cashierCtx(), 10)
	if len(sales) != 0 {
		t.Fatalf("expected no sale recorded, got %d", len(sales))
	}

	// The same cart against sufficient stock still goes through.
	receipt, err := svc.SubmitSale(cashierCtx(), domain.SubmitSaleRequest{
		Cart: []domain.CartLine{
			{ProductID: product.ID, Quantity: 2},
			{ProductID: product.ID, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("submit sale: %v", err)
	}
	if receipt.SubtotalCents != 9000 {
		t.Fatalf("expected subtotal 9000, got %d", receipt.SubtotalCents)
	}
	after, _ = svc.GetProduct(cashierCtx(), product.ID)
	if after.StockQuantity != 0 {
		t.Fatalf("expected stock 0, got %d", after.StockQuantity)
	}
}

func TestSaleItemsSnapshotPriceAndName(t *testing.T) {
	svc, _ := newTestService()
	product := createProduct(t, svc, "Original Name", 8500, 10)

	receipt, err := svc.SubmitSale(cashierCtx(), domain.SubmitSaleRequest{
		Cart: []domain.CartLine{{ProductID: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("submit sale: %v", err)
	}

	newName := "Renamed Product"
	newPrice := int64(9999)
	if _, err := svc.UpdateProduct(managerCtx(), product.ID, domain.ProductUpdateRequest{
		Name:       &newName,
		PriceCents: &newPrice,
	}); err != nil {
		t.Fatalf("update product: %v", err)
	}

	sale, err := svc.GetSale(cashierCtx(), receipt.SaleID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if len(sale.Items) != 1 {
		t.Fatalf("expected 1 sale item, got %d", len(sale.Items))
	}
	item := sale.Items[0]
	if item.ProductName != "Original Name" {
		t.Fatalf("expected snapshot name, got %q", item.ProductName)
	}
	if item.UnitPriceCents != 8500 {
		t.Fatalf("expected snapshot price 8500, got %d", item.UnitPriceCents)
	}
}

func TestSubmitSaleIgnoresClientPriceHint(t *testing.T) {
	svc, _ := newTestService()
	product := createProduct(t, svc, "Priced Server Side", 8500, 10)

	receipt, err := svc.SubmitSale(cashierCtx(), domain.SubmitSaleRequest{
		Cart: []domain.CartLine{{ProductID: product.ID, Quantity: 1, UnitPriceHintCents: 1}},
	})
	if err != nil {
		t.Fatalf("submit sale: %v", err)
	}
	if receipt.SubtotalCents != 8500 {
		t.Fatalf("expected server-derived subtotal 8500, got %d", receipt.SubtotalCents)
	}
}

func TestInventoryLogChainStaysConsistent(t *testing.T) {
	svc, _ := newTestService()
	product := createProduct(t, svc, "Chained", 2000, 20)

	ops := []struct {
		change     int
		changeType string
	}{
		{+5, domain.ChangeTypeIn},
		{-3, domain.ChangeTypeOut},
		{-2, domain.ChangeTypeAdjustment},
	}
	for _, op := range ops {
		if _, err := svc.AdjustStock(managerCtx(), domain.AdjustStockRequest{
			ProductID:      product.ID,
			QuantityChange: op.change,
			ChangeType:     op.changeType,
		}); err != nil {
			t.Fatalf("adjust %+d: %v", op.change, err)
		}
	}
	if _, err := svc.SubmitSale(cashierCtx(), domain.SubmitSaleRequest{
		Cart: []domain.CartLine{{ProductID: product.ID, Quantity: 4}},
	}); err != nil {
		t.Fatalf("submit sale: %v", err)
	}

	logs, err := svc.ListInventoryLogs(managerCtx(), 100)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}

	// Newest first: every entry must chain previous+change=new, and adjacent
	// entries for the same product must agree on the intermediate quantity.
	var prev *domain.InventoryLogEntry
	for i := range logs {
		entry := logs[i]
		if entry.ProductID != product.ID {
			continue
		}
		if entry.PreviousQuantity+entry.QuantityChange != entry.NewQuantity {
			t.Fatalf("log entry does not chain: %+v", entry)
		}
		if prev != nil && prev.PreviousQuantity != entry.NewQuantity {
			t.Fatalf("adjacent entries disagree: newer starts at %d, older ends at %d",
				prev.PreviousQuantity, entry.NewQuantity)
		}
		prev = &logs[i]
	}

	after, _ := svc.GetProduct(managerCtx(), product.ID)
	if logs[0].NewQuantity != after.StockQuantity {
		t.Fatalf("latest log quantity %d does not match product stock %d",
			logs[0].NewQuantity, after.StockQuantity)
	}
	if after.StockQuantity != 16 {
		t.Fatalf("expected final stock 16, got %d", after.StockQuantity)
	}
}

func TestAdjustStockRejectsResultBelowZero(t *testing.T) {
	svc, _ := newTestService()
	product := createProduct(t, svc, "Thin Stock", 1000, 3)

	_, err := svc.AdjustStock(managerCtx(), domain.AdjustStockRequest{
		ProductID:      product.ID,
		QuantityChange: -5,
		ChangeType:     domain.ChangeTypeOut,
	})
	var adjustErr *domain.InvalidAdjustmentError
	if !errors.As(err, &adjustErr) {
		t.Fatalf("expected InvalidAdjustmentError, got %v", err)
	}
	if adjustErr.Current != 3 || adjustErr.Change != -5 {
		t.Fatalf("unexpected adjustment detail: %+v", adjustErr)
	}

	after, _ := svc.GetProduct(managerCtx(), product.ID)
	if after.StockQuantity != 3 {
		t.Fatalf("expected stock unchanged at 3, got %d", after.StockQuantity)
	}
	logs, _ := svc.ListInventoryLogs(managerCtx(), 10)
	if len(logs) != 1 {
		t.Fatalf("expected only the initial stock entry, got %d", len(logs))
	}
}

func TestAdjustStockRejectsUnknownChangeType(t *testing.T) {
	svc, _ := newTestService()
	product := createProduct(t, svc, "Typed", 1000, 3)

	_, err := svc.AdjustStock(managerCtx(), domain.AdjustStockRequest{
		ProductID:      product.ID,
		QuantityChange: 1,
		ChangeType:     "restock",
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown change type, got %v", err)
	}
}

func TestDeleteSaleRestocksAndLogs(t *testing.T) {
	svc, _ := newTestService()
	product := createProduct(t, svc, "Voidable", 3000, 8)

	receipt, err := svc.SubmitSale(cashierCtx(), domain.SubmitSaleRequest{
		Cart: []domain.CartLine{{ProductID: product.ID, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("submit sale: %v", err)
	}

	if err := svc.DeleteSale(cashierCtx(), receipt.SaleID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected cashier delete to be forbidden, got %v", err)
	}

	if err := svc.DeleteSale(managerCtx(), receipt.SaleID); err != nil {
		t.Fatalf("manager delete sale: %v", err)
	}

	after, _ := svc.GetProduct(managerCtx(), product.ID)
	if after.StockQuantity != 8 {
		t.Fatalf("expected stock restored to 8, got %d", after.StockQuantity)
	}

	if _, err := svc.GetSale(managerCtx(), receipt.SaleID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected deleted sale to be gone, got %v", err)
	}

	logs, _ := svc.ListInventoryLogs(managerCtx(), 10)
	if len(logs) == 0 || logs[0].ChangeType != domain.ChangeTypeIn || logs[0].QuantityChange != 3 {
		t.Fatalf("expected a compensating in-entry of +3, got %+v", logs)
	}
}

func TestSubmitSaleRequiresActor(t *testing.T) {
	svc, _ := newTestService()
	product := createProduct(t, svc, "Gated", 1000, 5)

	_, err := svc.SubmitSale(context.Background(), domain.SubmitSaleRequest{
		Cart: []domain.CartLine{{ProductID: product.ID, Quantity: 1}},
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden without an actor, got %v", err)
	}
}

func TestSubmitSaleValidatesCart(t *testing.T) {
	svc, _ := newTestService()
	product := createProduct(t, svc, "Cart Rules", 1000, 5)

	cases := []domain.SubmitSaleRequest{
		{},
		{Cart: []domain.CartLine{{ProductID: product.ID, Quantity: 0}}},
		{Cart: []domain.CartLine{{ProductID: "", Quantity: 1}}},
		{Cart: []domain.CartLine{{ProductID: product.ID, Quantity: -2}}},
	}
	for i, req := range cases {
		if _, err := svc.SubmitSale(cashierCtx(), req); !errors.Is(err, store.ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestSubmitSaleUnknownProduct(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.SubmitSale(cashierCtx(), domain.SubmitSaleRequest{
		Cart: []domain.CartLine{{ProductID: "prod-missing", Quantity: 1}},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInvoiceNumbersUniqueAcrossManySales(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 10k-sale invoice uniqueness check in short mode")
	}

	svc, _ := newTestService()
	product := createProduct(t, svc, "Bulk", 100, 20000)

	ctx := cashierCtx()
	seen := make(map[string]bool, 10000)
	for i := 0; i < 10000; i++ {
		receipt, err := svc.SubmitSale(ctx, domain.SubmitSaleRequest{
			Cart: []domain.CartLine{{ProductID: product.ID, Quantity: 1}},
		})
		if err != nil {
			t.Fatalf("sale %d: %v", i, err)
		}
		if seen[receipt.InvoiceNumber] {
			t.Fatalf("duplicate invoice number %s at sale %d", receipt.InvoiceNumber, i)
		}
		seen[receipt.InvoiceNumber] = true
	}
}

func TestCreateProductLogsInitialStock(t *testing.T) {
	svc, _ := newTestService()
	product := createProduct(t, svc, "Fresh", 1500, 12)

	logs, err := svc.ListInventoryLogs(managerCtx(), 10)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected exactly one initial log entry, got %d", len(logs))
	}
	entry := logs[0]
	if entry.ProductID != product.ID || entry.ChangeType != domain.ChangeTypeIn ||
		entry.PreviousQuantity != 0 || entry.NewQuantity != 12 {
		t.Fatalf("unexpected initial stock entry: %+v", entry)
	}
}

func TestSupplierDeleteBlockedWhileReferenced(t *testing.T) {
	svc, _ := newTestService()

	supplier, err := svc.CreateSupplier(managerCtx(), domain.SupplierCreateRequest{Name: "Acme Wholesale"})
	if err != nil {
		t.Fatalf("create supplier: %v", err)
	}
	if _, err := svc.CreateProduct(managerCtx(), domain.ProductCreateRequest{
		Name:       "Supplied",
		PriceCents: 700,
		SupplierID: supplier.ID,
	}); err != nil {
		t.Fatalf("create product: %v", err)
	}

	if err := svc.DeleteSupplier(managerCtx(), supplier.ID); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict while referenced, got %v", err)
	}
}

func TestAuditTrailRecordsSaleAndAdjustment(t *testing.T) {
	svc, _ := newTestService()
	product := createProduct(t, svc, "Audited", 2500, 10)

	if _, err := svc.SubmitSale(cashierCtx(), domain.SubmitSaleRequest{
		Cart: []domain.CartLine{{ProductID: product.ID, Quantity: 1}},
	}); err != nil {
		t.Fatalf("submit sale: %v", err)
	}
	if _, err := svc.AdjustStock(managerCtx(), domain.AdjustStockRequest{
		ProductID:      product.ID,
		QuantityChange: 2,
		ChangeType:     domain.ChangeTypeIn,
	}); err != nil {
		t.Fatalf("adjust stock: %v", err)
	}
	svc.Wait()

	logs, err := svc.ListAuditLogs(managerCtx(), 50)
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}

	actions := make(map[string]int)
	for _, entry := range logs {
		actions[entry.Action]++
	}
	if actions["SUBMIT_SALE"] != 1 {
		t.Fatalf("expected one SUBMIT_SALE audit entry, got %d", actions["SUBMIT_SALE"])
	}
	if actions["ADJUST_STOCK"] != 1 {
		t.Fatalf("expected one ADJUST_STOCK audit entry, got %d", actions["ADJUST_STOCK"])
	}
	if actions["CREATE_PRODUCT"] != 1 {
		t.Fatalf("expected one CREATE_PRODUCT audit entry, got %d", actions["CREATE_PRODUCT"])
	}
}

func TestDashboardStatsReflectSalesAndExpenses(t *testing.T) {
	svc, _ := newTestService()
	product := createProduct(t, svc, "Dash", 10000, 10)

	if _, err := svc.SubmitSale(cashierCtx(), domain.SubmitSaleRequest{
		Cart: []domain.CartLine{{ProductID: product.ID, Quantity: 2}},
	}); err != nil {
		t.Fatalf("submit sale: %v", err)
	}
	if _, err := svc.CreateExpense(managerCtx(), domain.ExpenseCreateRequest{
		Title:       "Rent",
		AmountCents: 5000,
	}); err != nil {
		t.Fatalf("create expense: %v", err)
	}

	stats, err := svc.DashboardStats(cashierCtx())
	if err != nil {
		t.Fatalf("dashboard stats: %v", err)
	}
	if stats.TotalRevenueCents != 22000 {
		t.Fatalf("expected revenue 22000 (incl. tax), got %d", stats.TotalRevenueCents)
	}
	if stats.TotalExpenseCents != 5000 {
		t.Fatalf("expected expenses 5000, got %d", stats.TotalExpenseCents)
	}
	if stats.TodaySalesCents != 22000 {
		t.Fatalf("expected today's sales 22000, got %d", stats.TodaySalesCents)
	}
}

type countingCache struct {
	mu   sync.Mutex
	data map[string]*domain.DashboardStats
	gets int
	sets int
}

func newCountingCache() *countingCache {
	return &countingCache{data: make(map[string]*domain.DashboardStats)}
}

func (c *countingCache) Get(_ context.Context, key string) (*domain.DashboardStats, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	stats, ok := c.data[key]
	return stats, ok, nil
}

func (c *countingCache) Set(_ context.Context, key string, value *domain.DashboardStats, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.data[key] = value
	return nil
}

func (c *countingCache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func TestDashboardStatsServedFromCacheUntilInvalidated(t *testing.T) {
	statsCache := newCountingCache()
	svc := New(memory.New(), statsCache, 10)
	product := createProduct(t, svc, "Cached", 1000, 10)

	if _, err := svc.DashboardStats(cashierCtx()); err != nil {
		t.Fatalf("first stats call: %v", err)
	}
	if _, err := svc.DashboardStats(cashierCtx()); err != nil {
		t.Fatalf("second stats call: %v", err)
	}
	if statsCache.sets != 1 {
		t.Fatalf("expected one cache fill across repeated reads, got %d", statsCache.sets)
	}

	if _, err := svc.SubmitSale(cashierCtx(), domain.SubmitSaleRequest{
		Cart: []domain.CartLine{{ProductID: product.ID, Quantity: 1}},
	}); err != nil {
		t.Fatalf("submit sale: %v", err)
	}

	stats, err := svc.DashboardStats(cashierCtx())
	if err != nil {
		t.Fatalf("stats after sale: %v", err)
	}
	if statsCache.sets != 2 {
		t.Fatalf("expected a recompute after invalidation, sets=%d", statsCache.sets)
	}
	if stats.TotalRevenueCents == 0 {
		t.Fatalf("expected recomputed stats to include the sale")
	}
}

func TestReportSummaryManagerOnly(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.ReportSummary(cashierCtx()); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected cashier report access to be forbidden, got %v", err)
	}
	if _, err := svc.ReportSummary(managerCtx()); err != nil {
		t.Fatalf("manager report access failed: %v", err)
	}
}

func TestSettingsDefaultsAndManagerUpsert(t *testing.T) {
	svc, _ := newTestService()

	settings, err := svc.Settings(context.Background())
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if settings.Currency != "$" || settings.StoreName != "" {
		t.Fatalf("unexpected defaults: %+v", settings)
	}

	if _, err := svc.UpdateSettings(cashierCtx(), domain.SettingsUpdateRequest{StoreName: "Corner Mart"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected cashier settings write to be forbidden, got %v", err)
	}

	saved, err := svc.UpdateSettings(managerCtx(), domain.SettingsUpdateRequest{
		StoreName:     "Corner Mart",
		Address:       "12 Main St",
		Currency:      "KSh",
		VATPercent:    16,
		ReceiptFooter: "Thank you, come again",
	})
	if err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if saved.VATPercent != 16 || saved.Currency != "KSh" {
		t.Fatalf("unexpected saved settings: %+v", saved)
	}

	// Reads stay open to unauthenticated callers.
	settings, err = svc.Settings(context.Background())
	if err != nil {
		t.Fatalf("settings after save: %v", err)
	}
	if settings.StoreName != "Corner Mart" || settings.ReceiptFooter != "Thank you, come again" {
		t.Fatalf("saved profile not returned: %+v", settings)
	}
}

func TestUpdateSettingsValidation(t *testing.T) {
	svc, _ := newTestService()

	cases := []domain.SettingsUpdateRequest{
		{StoreName: "  ", VATPercent: 10},
		{StoreName: "Shop", VATPercent: -1},
		{StoreName: "Shop", VATPercent: 250},
	}
	for _, req := range cases {
		if _, err := svc.UpdateSettings(managerCtx(), req); !errors.Is(err, store.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", req, err)
		}
	}
}

func TestAuditEntriesCarryActorIP(t *testing.T) {
	svc, _ := newTestService()
	ctx := WithActor(context.Background(), domain.Actor{
		ID: "user-mgr", Name: "Manager", Role: domain.RoleManager, IPAddress: "203.0.113.9",
	})

	if _, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{
		Name: "Traced", PriceCents: 1000,
	}); err != nil {
		t.Fatalf("create product: %v", err)
	}
	svc.Wait()

	logs, err := svc.ListAuditLogs(managerCtx(), 10)
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	if len(logs) == 0 {
		t.Fatal("expected an audit entry")
	}
	if logs[0].IPAddress != "203.0.113.9" {
		t.Fatalf("expected actor IP on audit entry, got %q", logs[0].IPAddress)
	}
}

type failingAdjustRepo struct {
	*memory.Store
}

func (r *failingAdjustRepo) AdjustStock(_ context.Context, _ string, _ int, _ string, _ string, _ string) (*domain.InventoryLogEntry, error) {
	return nil, errors.New("storage offline")
}

func TestCreateProductRemovedWhenInitialStockFails(t *testing.T) {
	svc := New(&failingAdjustRepo{Store: memory.New()}, cache.NoopStatsCache{}, 10)

	_, err := svc.CreateProduct(managerCtx(), domain.ProductCreateRequest{
		Name:          "Doomed",
		PriceCents:    1000,
		StockQuantity: 5,
	})
	if err == nil {
		t.Fatal("expected initial stock failure to surface")
	}

	products, listErr := svc.ListProducts(managerCtx())
	if listErr != nil {
		t.Fatalf("list products: %v", listErr)
	}
	if len(products) != 0 {
		t.Fatalf("expected no product left behind, got %d", len(products))
	}
}
