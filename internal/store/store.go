package store

import (
	"context"
	"errors"
	"time"

	"github.com/Khalettt/POSMS/internal/domain"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicateInvoice = errors.New("duplicate invoice number")
	ErrConflict         = errors.New("conflict")
)

// Repository is the persistence boundary. CreateSale, DeleteSale and
// AdjustStock are the only multi-step operations: each implementation must
// run them as one atomic unit so a failure leaves no partial rows and stock
// never observably goes negative.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListLowStockProducts(ctx context.Context, limit int) ([]domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error

	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	DeleteSupplier(ctx context.Context, id string) error

	// CreateSale commits the sale header, one snapshot item per cart line,
	// the conditional stock decrements and the inventory log entries as one
	// transaction. Unit prices are re-derived from the product rows inside
	// that transaction; the returned sale carries the computed totals.
	CreateSale(ctx context.Context, sale domain.Sale, cart []domain.CartLine, taxRatePercent float64) (*domain.Sale, error)
	ListSales(ctx context.Context, limit int) ([]domain.Sale, error)
	GetSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	// DeleteSale is a compensating transaction: it restocks every line,
	// appends matching inventory log entries and removes the sale rows.
	DeleteSale(ctx context.Context, id string, operatedBy string) error

	AdjustStock(ctx context.Context, productID string, change int, changeType string, operatedBy string, notes string) (*domain.InventoryLogEntry, error)
	ListInventoryLogs(ctx context.Context, limit int) ([]domain.InventoryLogEntry, error)

	CreatePayment(ctx context.Context, payment domain.Payment) (*domain.Payment, error)
	ListPayments(ctx context.Context, limit int) ([]domain.Payment, error)

	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	ListExpenses(ctx context.Context) ([]domain.Expense, error)
	DeleteExpense(ctx context.Context, id string) error

	// GetSettings returns defaults when the store profile was never saved.
	GetSettings(ctx context.Context) (domain.StoreSettings, error)
	UpsertSettings(ctx context.Context, settings domain.StoreSettings) (domain.StoreSettings, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)

	GetDashboardStats(ctx context.Context, now time.Time) (domain.DashboardStats, error)
	GetReportSummary(ctx context.Context, now time.Time) (domain.ReportSummary, error)

	CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	DeleteUser(ctx context.Context, id string) error
	CountUsersByRole(ctx context.Context, role string) (int, error)
}
