package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/Khalettt/POSMS/internal/cache"
	"github.com/Khalettt/POSMS/internal/domain"
	"github.com/Khalettt/POSMS/internal/invoice"
	"github.com/Khalettt/POSMS/internal/store"
	"github.com/Khalettt/POSMS/internal/xid"
)

var (
	ErrForbidden = errors.New("manager role required")
	// ErrInvoiceGeneration means every attempted invoice number collided
	// with an existing sale. With a 16.7M suffix space this only happens
	// when something else is badly wrong.
	ErrInvoiceGeneration = errors.New("could not generate a unique invoice number")
)

const (
	maxInvoiceAttempts = 5

	dashboardCacheKey = "dashboard:stats"
	dashboardCacheTTL = 30 * time.Second
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo           store.Repository
	stats          cache.StatsCache
	taxRatePercent float64

	auditWG sync.WaitGroup
}

func New(repo store.Repository, stats cache.StatsCache, taxRatePercent float64) *Service {
	if stats == nil {
		stats = cache.NoopStatsCache{}
	}
	if taxRatePercent < 0 || taxRatePercent > 100 {
		taxRatePercent = 0
	}

	return &Service{
		repo:           repo,
		stats:          stats,
		taxRatePercent: taxRatePercent,
	}
}

// Wait blocks until in-flight audit writes finish. Called on shutdown and
// from tests that assert on the audit trail.
func (s *Service) Wait() {
	s.auditWG.Wait()
}

// --- sales ---

// SubmitSale commits a cart as one sale. Pricing is re-derived server side,
// the stock decrement and the log entries ride in the same transaction as the
// sale rows, and an invoice collision retries the whole attempt with a fresh
// number.
func (s *Service) SubmitSale(ctx context.Context, req domain.SubmitSaleRequest) (domain.SaleReceipt, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.SaleReceipt{}, ErrForbidden
	}
	if len(req.Cart) == 0 {
		return domain.SaleReceipt{}, store.ErrInvalidInput
	}
	for _, line := range req.Cart {
		if line.ProductID == "" || line.Quantity < 1 {
			return domain.SaleReceipt{}, store.ErrInvalidInput
		}
	}

	now := time.Now().UTC()
	sale := domain.Sale{
		CustomerID: strings.TrimSpace(req.CustomerID),
		Notes:      strings.TrimSpace(req.Notes),
		CreatedBy:  actor.ID,
		Status:     domain.SaleStatusCompleted,
		SaleDate:   now,
	}

	var created *domain.Sale
	for attempt := 0; attempt < maxInvoiceAttempts; attempt++ {
		sale.ID = xid.New("sale")
		sale.InvoiceNumber = invoice.Number(now)

		saved, err := s.repo.CreateSale(ctx, sale, req.Cart, s.taxRatePercent)
		if err != nil {
			if errors.Is(err, store.ErrDuplicateInvoice) {
				continue
			}
			return domain.SaleReceipt{}, err
		}
		created = saved
		break
	}
	if created == nil {
		return domain.SaleReceipt{}, ErrInvoiceGeneration
	}

	s.invalidateStats(ctx)
	s.logAudit(ctx, "SUBMIT_SALE", "sales", created.ID,
		fmt.Sprintf("invoice=%s,items=%d,total=%d", created.InvoiceNumber, len(created.Items), created.TotalCents))

	return domain.SaleReceipt{
		SaleID:        created.ID,
		InvoiceNumber: created.InvoiceNumber,
		SubtotalCents: created.SubtotalCents,
		TaxCents:      created.TaxCents,
		TotalCents:    created.TotalCents,
	}, nil
}

func (s *Service) ListSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx, limit)
}

func (s *Service) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	if strings.TrimSpace(id) == "" {
		return nil, store.ErrInvalidInput
	}
	return s.repo.GetSaleByID(ctx, id)
}

func (s *Service) DeleteSale(ctx context.Context, id string) error {
	actor, err := s.requireManager(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return store.ErrInvalidInput
	}

	if err := s.repo.DeleteSale(ctx, id, actor.ID); err != nil {
		return err
	}

	s.invalidateStats(ctx)
	s.logAudit(ctx, "DELETE_SALE", "sales", id, "sale voided and stock restored")
	return nil
}

// --- inventory ---

func (s *Service) AdjustStock(ctx context.Context, req domain.AdjustStockRequest) (domain.AdjustStockResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.AdjustStockResponse{}, ErrForbidden
	}

	req.ChangeType = strings.ToLower(strings.TrimSpace(req.ChangeType))
	switch req.ChangeType {
	case domain.ChangeTypeIn, domain.ChangeTypeOut, domain.ChangeTypeAdjustment:
	default:
		return domain.AdjustStockResponse{}, store.ErrInvalidInput
	}
	if req.ProductID == "" || req.QuantityChange == 0 {
		return domain.AdjustStockResponse{}, store.ErrInvalidInput
	}

	entry, err := s.repo.AdjustStock(ctx, req.ProductID, req.QuantityChange, req.ChangeType, actor.ID, strings.TrimSpace(req.Notes))
	if err != nil {
		return domain.AdjustStockResponse{}, err
	}

	s.invalidateStats(ctx)
	s.logAudit(ctx, "ADJUST_STOCK", "inventory_logs", entry.ID,
		fmt.Sprintf("product=%s,change=%+d,type=%s", req.ProductID, req.QuantityChange, req.ChangeType))

	return domain.AdjustStockResponse{
		ProductID:   req.ProductID,
		NewQuantity: entry.NewQuantity,
	}, nil
}

func (s *Service) ListInventoryLogs(ctx context.Context, limit int) ([]domain.InventoryLogEntry, error) {
	return s.repo.ListInventoryLogs(ctx, limit)
}

// --- products ---

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) ListLowStockProducts(ctx context.Context, limit int) ([]domain.Product, error) {
	return s.repo.ListLowStockProducts(ctx, limit)
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	if strings.TrimSpace(id) == "" {
		return nil, store.ErrInvalidInput
	}
	return s.repo.GetProductByID(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (*domain.Product, error) {
	actor, err := s.requireManager(ctx)
	if err != nil {
		return nil, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	if req.Name == "" || req.PriceCents < 1 || req.StockQuantity < 0 {
		return nil, store.ErrInvalidInput
	}

	// Initial stock enters through the adjustment path so the very first
	// inventory log entry already matches the product row.
	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:              req.Name,
		Description:       strings.TrimSpace(req.Description),
		SKU:               req.SKU,
		CategoryID:        strings.TrimSpace(req.CategoryID),
		SupplierID:        strings.TrimSpace(req.SupplierID),
		PriceCents:        req.PriceCents,
		CostCents:         req.CostCents,
		StockQuantity:     0,
		LowStockThreshold: req.LowStockThreshold,
		CreatedBy:         actor.ID,
	})
	if err != nil {
		return nil, err
	}

	if req.StockQuantity > 0 {
		if _, err := s.repo.AdjustStock(ctx, created.ID, req.StockQuantity, domain.ChangeTypeIn, actor.ID, "initial stock"); err != nil {
			// The product row is already committed; remove it instead of
			// leaving a half-created product at zero stock.
			if delErr := s.repo.DeleteProduct(ctx, created.ID); delErr != nil {
				log.Printf("WARN could not remove product %s after failed initial stock: %v", created.ID, delErr)
			}
			return nil, err
		}
		created.StockQuantity = req.StockQuantity
	}

	s.invalidateStats(ctx)
	s.logAudit(ctx, "CREATE_PRODUCT", "products", created.ID,
		fmt.Sprintf("name=%s,price=%d,stock=%d", created.Name, created.PriceCents, created.StockQuantity))
	return created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (*domain.Product, error) {
	if _, err := s.requireManager(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, store.ErrInvalidInput
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		existing.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		existing.Description = strings.TrimSpace(*req.Description)
	}
	if req.CategoryID != nil {
		existing.CategoryID = strings.TrimSpace(*req.CategoryID)
	}
	if req.PriceCents != nil {
		existing.PriceCents = *req.PriceCents
	}
	if req.CostCents != nil {
		existing.CostCents = *req.CostCents
	}
	if req.LowStockThreshold != nil {
		existing.LowStockThreshold = *req.LowStockThreshold
	}
	if req.Active != nil {
		existing.Active = *req.Active
	}
	if existing.Name == "" || existing.PriceCents < 1 {
		return nil, store.ErrInvalidInput
	}

	saved, err := s.repo.UpdateProduct(ctx, *existing)
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx)
	s.logAudit(ctx, "UPDATE_PRODUCT", "products", saved.ID,
		fmt.Sprintf("name=%s,price=%d,active=%t", saved.Name, saved.PriceCents, saved.Active))
	return saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if _, err := s.requireManager(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return store.ErrInvalidInput
	}

	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}

	s.invalidateStats(ctx)
	s.logAudit(ctx, "DELETE_PRODUCT", "products", id, "")
	return nil
}

// --- categories ---

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryRequest) (*domain.Category, error) {
	if _, err := s.requireManager(ctx); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, store.ErrInvalidInput
	}

	created, err := s.repo.CreateCategory(ctx, domain.Category{
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "CREATE_CATEGORY", "categories", created.ID, "name="+created.Name)
	return created, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id string, req domain.CategoryRequest) (*domain.Category, error) {
	if _, err := s.requireManager(ctx); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if strings.TrimSpace(id) == "" || req.Name == "" {
		return nil, store.ErrInvalidInput
	}

	saved, err := s.repo.UpdateCategory(ctx, domain.Category{
		ID:          id,
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "UPDATE_CATEGORY", "categories", saved.ID, "name="+saved.Name)
	return saved, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	if _, err := s.requireManager(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return store.ErrInvalidInput
	}
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "DELETE_CATEGORY", "categories", id, "")
	return nil
}

// --- customers ---

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (*domain.Customer, error) {
	if _, ok := ActorFromContext(ctx); !ok {
		return nil, ErrForbidden
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, store.ErrInvalidInput
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Name:    req.Name,
		Email:   strings.TrimSpace(req.Email),
		Phone:   strings.TrimSpace(req.Phone),
		Address: strings.TrimSpace(req.Address),
		Notes:   strings.TrimSpace(req.Notes),
	})
	if err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)
	s.logAudit(ctx, "CREATE_CUSTOMER", "customers", created.ID, "name="+created.Name)
	return created, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	if _, err := s.requireManager(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return store.ErrInvalidInput
	}
	if err := s.repo.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	s.invalidateStats(ctx)
	s.logAudit(ctx, "DELETE_CUSTOMER", "customers", id, "")
	return nil
}

// --- suppliers ---

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (*domain.Supplier, error) {
	if _, err := s.requireManager(ctx); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, store.ErrInvalidInput
	}

	created, err := s.repo.CreateSupplier(ctx, domain.Supplier{
		Name:          req.Name,
		ContactPerson: strings.TrimSpace(req.ContactPerson),
		Email:         strings.TrimSpace(req.Email),
		Phone:         strings.TrimSpace(req.Phone),
		Address:       strings.TrimSpace(req.Address),
		Notes:         strings.TrimSpace(req.Notes),
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "CREATE_SUPPLIER", "suppliers", created.ID, "name="+created.Name)
	return created, nil
}

func (s *Service) DeleteSupplier(ctx context.Context, id string) error {
	if _, err := s.requireManager(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return store.ErrInvalidInput
	}
	if err := s.repo.DeleteSupplier(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "DELETE_SUPPLIER", "suppliers", id, "")
	return nil
}

// --- payments ---

func (s *Service) CreatePayment(ctx context.Context, req domain.PaymentCreateRequest) (*domain.Payment, error) {
	if _, ok := ActorFromContext(ctx); !ok {
		return nil, ErrForbidden
	}
	if req.SaleID == "" || req.AmountCents < 1 {
		return nil, store.ErrInvalidInput
	}

	created, err := s.repo.CreatePayment(ctx, domain.Payment{
		SaleID:          req.SaleID,
		AmountCents:     req.AmountCents,
		Method:          strings.TrimSpace(req.Method),
		ReferenceNumber: strings.TrimSpace(req.ReferenceNumber),
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "CREATE_PAYMENT", "payments", created.ID,
		fmt.Sprintf("sale=%s,amount=%d,method=%s", created.SaleID, created.AmountCents, created.Method))
	return created, nil
}

func (s *Service) ListPayments(ctx context.Context, limit int) ([]domain.Payment, error) {
	return s.repo.ListPayments(ctx, limit)
}

// --- expenses ---

func (s *Service) CreateExpense(ctx context.Context, req domain.ExpenseCreateRequest) (*domain.Expense, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return nil, ErrForbidden
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || req.AmountCents < 1 {
		return nil, store.ErrInvalidInput
	}

	expenseDate := parseDate(req.ExpenseDate)
	created, err := s.repo.CreateExpense(ctx, domain.Expense{
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		AmountCents: req.AmountCents,
		Category:    strings.TrimSpace(req.Category),
		ExpenseDate: expenseDate,
		CreatedBy:   actor.ID,
	})
	if err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)
	s.logAudit(ctx, "CREATE_EXPENSE", "expenses", created.ID,
		fmt.Sprintf("title=%s,amount=%d", created.Title, created.AmountCents))
	return created, nil
}

func (s *Service) ListExpenses(ctx context.Context) ([]domain.Expense, error) {
	return s.repo.ListExpenses(ctx)
}

func (s *Service) DeleteExpense(ctx context.Context, id string) error {
	if _, err := s.requireManager(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return store.ErrInvalidInput
	}
	if err := s.repo.DeleteExpense(ctx, id); err != nil {
		return err
	}
	s.invalidateStats(ctx)
	s.logAudit(ctx, "DELETE_EXPENSE", "expenses", id, "")
	return nil
}

// --- settings ---

// Settings has no role gate: the terminal and receipt templates read the
// store profile before anyone signs in.
func (s *Service) Settings(ctx context.Context) (domain.StoreSettings, error) {
	return s.repo.GetSettings(ctx)
}

func (s *Service) UpdateSettings(ctx context.Context, req domain.SettingsUpdateRequest) (domain.StoreSettings, error) {
	if _, err := s.requireManager(ctx); err != nil {
		return domain.StoreSettings{}, err
	}

	req.StoreName = strings.TrimSpace(req.StoreName)
	if req.StoreName == "" {
		return domain.StoreSettings{}, store.ErrInvalidInput
	}
	if req.VATPercent < 0 || req.VATPercent > 100 {
		return domain.StoreSettings{}, store.ErrInvalidInput
	}
	currency := strings.TrimSpace(req.Currency)
	if currency == "" {
		currency = "$"
	}

	saved, err := s.repo.UpsertSettings(ctx, domain.StoreSettings{
		StoreName:     req.StoreName,
		Address:       strings.TrimSpace(req.Address),
		Phone:         strings.TrimSpace(req.Phone),
		Email:         strings.TrimSpace(req.Email),
		Currency:      currency,
		VATPercent:    req.VATPercent,
		ReceiptFooter: strings.TrimSpace(req.ReceiptFooter),
	})
	if err != nil {
		return domain.StoreSettings{}, err
	}

	s.logAudit(ctx, "UPDATE_SETTINGS", "settings", "1",
		fmt.Sprintf("store_name=%s,vat=%g", saved.StoreName, saved.VATPercent))
	return saved, nil
}

// --- audit, dashboard, reports ---

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if _, err := s.requireManager(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListAuditLogs(ctx, limit)
}

func (s *Service) DashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	if cached, ok, err := s.stats.Get(ctx, dashboardCacheKey); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: dashboard cache read failed: %v", err)
	}

	stats, err := s.repo.GetDashboardStats(ctx, time.Now().UTC())
	if err != nil {
		return domain.DashboardStats{}, err
	}

	if err := s.stats.Set(ctx, dashboardCacheKey, &stats, dashboardCacheTTL); err != nil {
		log.Printf("[service] WARN: dashboard cache write failed: %v", err)
	}
	return stats, nil
}

func (s *Service) ReportSummary(ctx context.Context) (domain.ReportSummary, error) {
	if _, err := s.requireManager(ctx); err != nil {
		return domain.ReportSummary{}, err
	}
	return s.repo.GetReportSummary(ctx, time.Now().UTC())
}

// --- helpers ---

func (s *Service) requireManager(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleManager {
		return domain.Actor{}, ErrForbidden
	}
	return actor, nil
}

func (s *Service) invalidateStats(ctx context.Context) {
	if err := s.stats.Invalidate(ctx, dashboardCacheKey); err != nil {
		log.Printf("[service] WARN: dashboard cache invalidation failed: %v", err)
	}
}

// logAudit records an audit entry off the request path. Failures are logged
// and never fail the operation that triggered them.
func (s *Service) logAudit(ctx context.Context, action string, targetTable string, targetID string, details string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{ID: "system", Role: "system"}
	}

	entry := domain.AuditLog{
		ID:          xid.New("audit"),
		UserID:      actor.ID,
		Action:      action,
		TargetTable: targetTable,
		TargetID:    targetID,
		Details:     details,
		IPAddress:   actor.IPAddress,
		CreatedAt:   time.Now().UTC(),
	}

	s.auditWG.Add(1)
	go func() {
		defer s.auditWG.Done()
		writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.repo.CreateAuditLog(writeCtx, entry); err != nil {
			log.Printf("[service] WARN: audit log write failed action=%s: %v", action, err)
		}
	}()
}

func parseDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now().UTC()
	}
	if parsed, err := time.Parse("2006-01-02", raw); err == nil {
		return parsed.UTC()
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed.UTC()
	}
	return time.Now().UTC()
}
