// Package memory holds an in-memory Repository with the same observable
// semantics as the postgres store. It backs tests and the zero-config dev
// server; a single mutex stands in for row locks, which keeps the guarded
// decrement behaviour identical under concurrent checkouts.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Khalettt/POSMS/internal/domain"
	"github.com/Khalettt/POSMS/internal/store"
	"github.com/Khalettt/POSMS/internal/xid"
)

type Store struct {
	mu sync.Mutex

	products   map[string]domain.Product
	categories map[string]domain.Category
	customers  map[string]domain.Customer
	suppliers  map[string]domain.Supplier
	sales      map[string]domain.Sale
	invoices   map[string]string // invoice number -> sale id
	saleItems  map[string][]domain.SaleItem
	logs       []domain.InventoryLogEntry
	payments   []domain.Payment
	expenses   map[string]domain.Expense
	auditLogs  []domain.AuditLog
	users      map[string]domain.UserAccount
	settings   *domain.StoreSettings
}

func New() *Store {
	return &Store{
		products:   make(map[string]domain.Product),
		categories: make(map[string]domain.Category),
		customers:  make(map[string]domain.Customer),
		suppliers:  make(map[string]domain.Supplier),
		sales:      make(map[string]domain.Sale),
		invoices:   make(map[string]string),
		saleItems:  make(map[string][]domain.SaleItem),
		expenses:   make(map[string]domain.Expense),
		users:      make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store preloaded with a small catalog, enough to click
// through the API without a database.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	beverages := domain.Category{ID: "cat-beverages", Name: "Beverages", CreatedAt: now}
	snacks := domain.Category{ID: "cat-snacks", Name: "Snacks", CreatedAt: now}
	s.categories[beverages.ID] = beverages
	s.categories[snacks.ID] = snacks

	seed := []domain.Product{
		{ID: "prod-coffee", Name: "Drip Coffee 250g", SKU: "BEV-001", CategoryID: beverages.ID, PriceCents: 8500, CostCents: 5200, StockQuantity: 40, LowStockThreshold: 10},
		{ID: "prod-tea", Name: "Green Tea 20pk", SKU: "BEV-002", CategoryID: beverages.ID, PriceCents: 4200, CostCents: 2500, StockQuantity: 25, LowStockThreshold: 8},
		{ID: "prod-chips", Name: "Corn Chips 150g", SKU: "SNK-001", CategoryID: snacks.ID, PriceCents: 2300, CostCents: 1400, StockQuantity: 60, LowStockThreshold: 15},
	}
	for _, p := range seed {
		p.Active = true
		p.CreatedAt = now
		s.products[p.ID] = p
	}
	return s
}

// --- products ---

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		p.CategoryName = s.categories[p.CategoryID].Name
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
	return products, nil
}

func (s *Store) ListLowStockProducts(_ context.Context, limit int) ([]domain.Product, error) {
	if limit < 1 {
		limit = 6
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	low := make([]domain.Product, 0, limit)
	for _, p := range s.products {
		if p.Active && p.StockQuantity <= p.LowStockThreshold {
			p.CategoryName = s.categories[p.CategoryID].Name
			low = append(low, p)
		}
	}
	sort.Slice(low, func(i, j int) bool {
		return low[i].StockQuantity < low[j].StockQuantity
	})
	if len(low) > limit {
		low = low[:limit]
	}
	return low, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	p.CategoryName = s.categories[p.CategoryID].Name
	return &p, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.PriceCents < 0 || product.StockQuantity < 0 {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if product.LowStockThreshold < 1 {
		product.LowStockThreshold = 10
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.Active = true

	if product.SKU != "" {
		for _, existing := range s.products {
			if existing.SKU == product.SKU {
				return nil, store.ErrConflict
			}
		}
	}
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.PriceCents < 0 {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	existing.Name = product.Name
	existing.Description = product.Description
	existing.CategoryID = product.CategoryID
	existing.PriceCents = product.PriceCents
	existing.CostCents = product.CostCents
	existing.LowStockThreshold = product.LowStockThreshold
	existing.Active = product.Active
	s.products[product.ID] = existing

	existing.CategoryName = s.categories[existing.CategoryID].Name
	return &existing, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

// --- categories ---

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	categories := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		count := 0
		for _, p := range s.products {
			if p.CategoryID == c.ID {
				count++
			}
		}
		c.ProductCount = count
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool {
		return categories[i].Name < categories[j].Name
	})
	return categories, nil
}

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	if strings.TrimSpace(category.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.categories {
		if strings.EqualFold(existing.Name, category.Name) {
			return nil, store.ErrConflict
		}
	}
	if category.ID == "" {
		category.ID = xid.New("cat")
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}
	s.categories[category.ID] = category
	created := category
	return &created, nil
}

func (s *Store) UpdateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	if category.ID == "" || strings.TrimSpace(category.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.categories[category.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	existing.Name = category.Name
	existing.Description = category.Description
	s.categories[category.ID] = existing
	return &existing, nil
}

func (s *Store) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.categories, id)
	for pid, p := range s.products {
		if p.CategoryID == id {
			p.CategoryID = ""
			s.products[pid] = p
		}
	}
	return nil
}

// --- customers ---

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customers := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, c)
	}
	sort.Slice(customers, func(i, j int) bool {
		return customers[i].Name < customers[j].Name
	})
	return customers, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	s.customers[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.customers, id)
	return nil
}

// --- suppliers ---

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliers))
	for _, sup := range s.suppliers {
		suppliers = append(suppliers, sup)
	}
	sort.Slice(suppliers, func(i, j int) bool {
		return suppliers[i].Name < suppliers[j].Name
	})
	return suppliers, nil
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if strings.TrimSpace(supplier.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}
	s.suppliers[supplier.ID] = supplier
	created := supplier
	return &created, nil
}

func (s *Store) DeleteSupplier(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.suppliers[id]; !ok {
		return store.ErrNotFound
	}
	for _, p := range s.products {
		if p.SupplierID == id {
			return store.ErrConflict
		}
	}
	delete(s.suppliers, id)
	return nil
}

// --- sales ---

func (s *Store) CreateSale(_ context.Context, sale domain.Sale, cart []domain.CartLine, taxRatePercent float64) (*domain.Sale, error) {
	if len(cart) == 0 {
		return nil, store.ErrInvalidInput
	}
	for _, line := range cart {
		if line.ProductID == "" || line.Quantity < 1 {
			return nil, store.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.invoices[sale.InvoiceNumber]; taken {
		return nil, store.ErrDuplicateInvoice
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.SaleDate.IsZero() {
		sale.SaleDate = time.Now().UTC()
	}
	if sale.Status == "" {
		sale.Status = domain.SaleStatusCompleted
	}

	// Validate every line before touching stock so a failure mid-cart
	// leaves nothing half-applied. Quantities are summed per product so
	// a cart that repeats a product cannot pass line by line and then
	// drive the stock negative.
	requested := make(map[string]int, len(cart))
	for _, line := range cart {
		p, ok := s.products[line.ProductID]
		if !ok || !p.Active {
			return nil, fmt.Errorf("product %s: %w", line.ProductID, store.ErrNotFound)
		}
		requested[line.ProductID] += line.Quantity
		if p.StockQuantity < requested[line.ProductID] {
			return nil, &domain.InsufficientStockError{
				ProductID:   line.ProductID,
				ProductName: p.Name,
				Available:   p.StockQuantity,
				Requested:   requested[line.ProductID],
			}
		}
	}

	subtotal := int64(0)
	items := make([]domain.SaleItem, 0, len(cart))
	for _, line := range cart {
		p := s.products[line.ProductID]
		items = append(items, domain.SaleItem{
			SaleID:         sale.ID,
			ProductID:      line.ProductID,
			ProductName:    p.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: p.PriceCents,
			SubtotalCents:  p.PriceCents * int64(line.Quantity),
		})
		s.logs = append(s.logs, domain.InventoryLogEntry{
			ID:               xid.New("invlog"),
			ProductID:        line.ProductID,
			ProductName:      p.Name,
			ChangeType:       domain.ChangeTypeSale,
			QuantityChange:   -line.Quantity,
			PreviousQuantity: p.StockQuantity,
			NewQuantity:      p.StockQuantity - line.Quantity,
			OperatedBy:       sale.CreatedBy,
			Notes:            "sale " + sale.InvoiceNumber,
			CreatedAt:        sale.SaleDate,
		})
		p.StockQuantity -= line.Quantity
		s.products[line.ProductID] = p
		subtotal += p.PriceCents * int64(line.Quantity)
	}

	sale.SubtotalCents = subtotal
	sale.TaxCents = taxCentsFor(subtotal, taxRatePercent)
	sale.TotalCents = subtotal + sale.TaxCents
	sale.Items = items

	s.sales[sale.ID] = sale
	s.invoices[sale.InvoiceNumber] = sale.ID
	s.saleItems[sale.ID] = items

	created := sale
	return &created, nil
}

func (s *Store) ListSales(_ context.Context, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 500
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sales := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		sale.CustomerName = s.customers[sale.CustomerID].Name
		sale.SellerName = s.users[sale.CreatedBy].FullName
		sale.Items = nil
		sales = append(sales, sale)
	}
	sort.Slice(sales, func(i, j int) bool {
		return sales[i].SaleDate.After(sales[j].SaleDate)
	})
	if len(sales) > limit {
		sales = sales[:limit]
	}
	return sales, nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	sale.CustomerName = s.customers[sale.CustomerID].Name
	sale.SellerName = s.users[sale.CreatedBy].FullName
	sale.Items = append([]domain.SaleItem(nil), s.saleItems[id]...)
	return &sale, nil
}

func (s *Store) DeleteSale(_ context.Context, id string, operatedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.sales[id]
	if !ok {
		return store.ErrNotFound
	}

	now := time.Now().UTC()
	for _, item := range s.saleItems[id] {
		p, ok := s.products[item.ProductID]
		if !ok {
			continue
		}
		s.logs = append(s.logs, domain.InventoryLogEntry{
			ID:               xid.New("invlog"),
			ProductID:        item.ProductID,
			ProductName:      p.Name,
			ChangeType:       domain.ChangeTypeIn,
			QuantityChange:   item.Quantity,
			PreviousQuantity: p.StockQuantity,
			NewQuantity:      p.StockQuantity + item.Quantity,
			OperatedBy:       operatedBy,
			Notes:            "restock from deleted sale " + sale.InvoiceNumber,
			CreatedAt:        now,
		})
		p.StockQuantity += item.Quantity
		s.products[item.ProductID] = p
	}

	delete(s.sales, id)
	delete(s.saleItems, id)
	delete(s.invoices, sale.InvoiceNumber)
	return nil
}

// --- inventory ---

func (s *Store) AdjustStock(_ context.Context, productID string, change int, changeType string, operatedBy string, notes string) (*domain.InventoryLogEntry, error) {
	if productID == "" || change == 0 {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return nil, store.ErrNotFound
	}
	newQuantity := p.StockQuantity + change
	if newQuantity < 0 {
		return nil, &domain.InvalidAdjustmentError{
			ProductID:   productID,
			ProductName: p.Name,
			Current:     p.StockQuantity,
			Change:      change,
		}
	}

	entry := domain.InventoryLogEntry{
		ID:               xid.New("invlog"),
		ProductID:        productID,
		ProductName:      p.Name,
		ChangeType:       changeType,
		QuantityChange:   change,
		PreviousQuantity: p.StockQuantity,
		NewQuantity:      newQuantity,
		OperatedBy:       operatedBy,
		Notes:            notes,
		CreatedAt:        time.Now().UTC(),
	}
	s.logs = append(s.logs, entry)

	p.StockQuantity = newQuantity
	s.products[productID] = p
	return &entry, nil
}

func (s *Store) ListInventoryLogs(_ context.Context, limit int) ([]domain.InventoryLogEntry, error) {
	if limit < 1 {
		limit = 500
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]domain.InventoryLogEntry, 0, len(s.logs))
	for i := len(s.logs) - 1; i >= 0 && len(entries) < limit; i-- {
		entry := s.logs[i]
		if p, ok := s.products[entry.ProductID]; ok {
			entry.ProductName = p.Name
		}
		entry.OperatorName = s.users[entry.OperatedBy].FullName
		entries = append(entries, entry)
	}
	return entries, nil
}

// --- settings ---

func (s *Store) GetSettings(_ context.Context) (domain.StoreSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.settings == nil {
		return domain.StoreSettings{Currency: "$"}, nil
	}
	return *s.settings, nil
}

func (s *Store) UpsertSettings(_ context.Context, settings domain.StoreSettings) (domain.StoreSettings, error) {
	settings.UpdatedAt = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = &settings
	return settings, nil
}

// --- payments ---

func (s *Store) CreatePayment(_ context.Context, payment domain.Payment) (*domain.Payment, error) {
	if payment.SaleID == "" || payment.AmountCents < 1 {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sales[payment.SaleID]; !ok {
		return nil, store.ErrNotFound
	}
	if payment.ID == "" {
		payment.ID = xid.New("pay")
	}
	if payment.Method == "" {
		payment.Method = "cash"
	}
	if payment.PaymentDate.IsZero() {
		payment.PaymentDate = time.Now().UTC()
	}
	s.payments = append(s.payments, payment)
	created := payment
	return &created, nil
}

func (s *Store) ListPayments(_ context.Context, limit int) ([]domain.Payment, error) {
	if limit < 1 {
		limit = 1000
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	payments := make([]domain.Payment, 0, len(s.payments))
	for i := len(s.payments) - 1; i >= 0 && len(payments) < limit; i-- {
		p := s.payments[i]
		p.InvoiceNumber = s.sales[p.SaleID].InvoiceNumber
		payments = append(payments, p)
	}
	return payments, nil
}

// --- expenses ---

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	if strings.TrimSpace(expense.Title) == "" || expense.AmountCents < 1 {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.Category == "" {
		expense.Category = "Other"
	}
	if expense.ExpenseDate.IsZero() {
		expense.ExpenseDate = time.Now().UTC()
	}
	s.expenses[expense.ID] = expense
	created := expense
	return &created, nil
}

func (s *Store) ListExpenses(_ context.Context) ([]domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expenses := make([]domain.Expense, 0, len(s.expenses))
	for _, e := range s.expenses {
		e.AuthorName = s.users[e.CreatedBy].FullName
		expenses = append(expenses, e)
	}
	sort.Slice(expenses, func(i, j int) bool {
		return expenses[i].ExpenseDate.After(expenses[j].ExpenseDate)
	})
	return expenses, nil
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.expenses[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.expenses, id)
	return nil
}

// --- audit logs ---

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 500
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	logs := make([]domain.AuditLog, 0, len(s.auditLogs))
	for i := len(s.auditLogs) - 1; i >= 0 && len(logs) < limit; i-- {
		entry := s.auditLogs[i]
		if u, ok := s.users[entry.UserID]; ok {
			entry.UserName = u.FullName
			entry.UserRole = u.Role
		}
		logs = append(logs, entry)
	}
	return logs, nil
}

// --- dashboard & reports ---

func (s *Store) GetDashboardStats(ctx context.Context, now time.Time) (domain.DashboardStats, error) {
	var stats domain.DashboardStats
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	s.mu.Lock()
	perDay := make(map[string]int64)
	for _, sale := range s.sales {
		if sale.Status != domain.SaleStatusCompleted {
			continue
		}
		stats.TotalRevenueCents += sale.TotalCents
		if !sale.SaleDate.Before(dayStart) && sale.SaleDate.Before(dayStart.Add(24*time.Hour)) {
			stats.TodaySalesCents += sale.TotalCents
		}
		if sale.SaleDate.After(now.Add(-7 * 24 * time.Hour)) {
			perDay[sale.SaleDate.UTC().Format("02 Jan")] += sale.TotalCents
		}
	}
	for _, e := range s.expenses {
		stats.TotalExpenseCents += e.AmountCents
	}
	for _, p := range s.products {
		if p.Active {
			stats.TotalProducts++
		}
	}
	stats.TotalCustomers = len(s.customers)
	s.mu.Unlock()

	low, err := s.ListLowStockProducts(ctx, 6)
	if err != nil {
		return stats, err
	}
	stats.LowStockProducts = low
	stats.LowStockCount = len(low)

	recent, err := s.ListSales(ctx, 5)
	if err != nil {
		return stats, err
	}
	stats.RecentSales = recent

	days := make([]string, 0, len(perDay))
	for day := range perDay {
		days = append(days, day)
	}
	sort.Strings(days)
	stats.SalesChart = make([]domain.ChartSlot, 0, len(days))
	for _, day := range days {
		stats.SalesChart = append(stats.SalesChart, domain.ChartSlot{Date: day, AmountCents: perDay[day]})
	}
	return stats, nil
}

func (s *Store) GetReportSummary(_ context.Context, now time.Time) (domain.ReportSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var summary domain.ReportSummary
	monthly := make(map[time.Month]int64)
	for _, sale := range s.sales {
		summary.RevenueCents += sale.TotalCents
		summary.TaxCents += sale.TaxCents
		if sale.SaleDate.After(now.AddDate(-1, 0, 0)) {
			monthly[sale.SaleDate.Month()] += sale.TotalCents
		}
	}
	for _, e := range s.expenses {
		summary.ExpenseCents += e.AmountCents
	}
	summary.ProfitCents = summary.RevenueCents - summary.ExpenseCents

	summary.MonthlyData = make([]domain.MonthlySales, 0, len(monthly))
	for m := time.January; m <= time.December; m++ {
		if cents, ok := monthly[m]; ok {
			summary.MonthlyData = append(summary.MonthlyData, domain.MonthlySales{
				Month:       m.String()[:3],
				AmountCents: cents,
			})
		}
	}

	qtyByName := make(map[string]int)
	for _, items := range s.saleItems {
		for _, item := range items {
			qtyByName[item.ProductName] += item.Quantity
		}
	}
	top := make([]domain.TopProduct, 0, len(qtyByName))
	for name, qty := range qtyByName {
		top = append(top, domain.TopProduct{Name: name, TotalQty: qty})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].TotalQty != top[j].TotalQty {
			return top[i].TotalQty > top[j].TotalQty
		}
		return top[i].Name < top[j].Name
	})
	if len(top) > 5 {
		top = top[:5]
	}
	summary.TopProducts = top
	return summary, nil
}

// --- users ---

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	if user.Email == "" || user.Password == "" || user.FullName == "" {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return nil, store.ErrConflict
		}
	}
	if user.ID == "" {
		user.ID = xid.New("user")
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.users[user.ID] = user
	created := user
	return &created, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			u := user
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]domain.UserAccount, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *Store) CountUsersByRole(_ context.Context, role string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, u := range s.users {
		if u.Role == role {
			count++
		}
	}
	return count, nil
}

func taxCentsFor(subtotalCents int64, ratePercent float64) int64 {
	if ratePercent <= 0 {
		return 0
	}
	return int64(float64(subtotalCents)*ratePercent/100 + 0.5)
}
