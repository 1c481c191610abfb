package domain

import "time"

const (
	RoleManager = "manager"
	RoleCashier = "cashier"
)

const (
	SaleStatusCompleted = "completed"
)

// Inventory log change types. "sale" entries are written by the sale engine,
// the rest by manual adjustments.
const (
	ChangeTypeIn         = "in"
	ChangeTypeOut        = "out"
	ChangeTypeSale       = "sale"
	ChangeTypeAdjustment = "adjustment"
)

type Product struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description,omitempty"`
	SKU               string    `json:"sku,omitempty"`
	CategoryID        string    `json:"category_id,omitempty"`
	CategoryName      string    `json:"category_name,omitempty"`
	SupplierID        string    `json:"supplier_id,omitempty"`
	PriceCents        int64     `json:"price_cents"`
	CostCents         int64     `json:"cost_cents,omitempty"`
	StockQuantity     int       `json:"stock_quantity"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	Active            bool      `json:"is_active"`
	CreatedBy         string    `json:"created_by,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

type ProductCreateRequest struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	SKU               string `json:"sku"`
	CategoryID        string `json:"category_id"`
	SupplierID        string `json:"supplier_id"`
	PriceCents        int64  `json:"price_cents"`
	CostCents         int64  `json:"cost_cents"`
	StockQuantity     int    `json:"stock_quantity"`
	LowStockThreshold int    `json:"low_stock_threshold"`
}

type ProductUpdateRequest struct {
	Name              *string `json:"name,omitempty"`
	Description       *string `json:"description,omitempty"`
	CategoryID        *string `json:"category_id,omitempty"`
	PriceCents        *int64  `json:"price_cents,omitempty"`
	CostCents         *int64  `json:"cost_cents,omitempty"`
	LowStockThreshold *int    `json:"low_stock_threshold,omitempty"`
	Active            *bool   `json:"is_active,omitempty"`
}

type Category struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	ProductCount int       `json:"product_count"`
	CreatedAt    time.Time `json:"created_at"`
}

type CategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CustomerCreateRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Notes   string `json:"notes"`
}

type Supplier struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	ContactPerson string    `json:"contact_person,omitempty"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Address       string    `json:"address,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type SupplierCreateRequest struct {
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	Notes         string `json:"notes"`
}

// CartLine is one proposed line of a sale. UnitPriceHintCents is what the
// client displayed; the engine ignores it for pricing and re-derives the
// authoritative price from the product row inside the transaction.
type CartLine struct {
	ProductID          string `json:"product_id"`
	Quantity           int    `json:"quantity"`
	UnitPriceHintCents int64  `json:"unit_price_cents,omitempty"`
}

type SubmitSaleRequest struct {
	Cart       []CartLine `json:"items"`
	CustomerID string     `json:"customer_id,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

type SaleReceipt struct {
	SaleID        string `json:"id"`
	InvoiceNumber string `json:"invoice_number"`
	SubtotalCents int64  `json:"subtotal_cents"`
	TaxCents      int64  `json:"tax_cents"`
	TotalCents    int64  `json:"total_cents"`
}

type SaleItem struct {
	SaleID         string `json:"sale_id"`
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

type Sale struct {
	ID            string     `json:"id"`
	InvoiceNumber string     `json:"invoice_number"`
	CustomerID    string     `json:"customer_id,omitempty"`
	CustomerName  string     `json:"customer_name,omitempty"`
	SubtotalCents int64      `json:"subtotal_cents"`
	TaxCents      int64      `json:"tax_cents"`
	TotalCents    int64      `json:"total_cents"`
	Notes         string     `json:"notes,omitempty"`
	CreatedBy     string     `json:"created_by"`
	SellerName    string     `json:"seller_name,omitempty"`
	Status        string     `json:"status"`
	SaleDate      time.Time  `json:"sale_date"`
	Items         []SaleItem `json:"items,omitempty"`
}

type AdjustStockRequest struct {
	ProductID      string `json:"product_id"`
	QuantityChange int    `json:"quantity_change"`
	ChangeType     string `json:"change_type"`
	Notes          string `json:"notes"`
}

type AdjustStockResponse struct {
	ProductID   string `json:"product_id"`
	NewQuantity int    `json:"new_quantity"`
}

// InventoryLogEntry is permanent history: entries are appended inside the
// same transaction as the stock write they describe and never mutated.
type InventoryLogEntry struct {
	ID               string    `json:"id"`
	ProductID        string    `json:"product_id"`
	ProductName      string    `json:"product_name,omitempty"`
	ChangeType       string    `json:"change_type"`
	QuantityChange   int       `json:"quantity_change"`
	PreviousQuantity int       `json:"previous_quantity"`
	NewQuantity      int       `json:"new_quantity"`
	OperatedBy       string    `json:"operated_by"`
	OperatorName     string    `json:"operator_name,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type Payment struct {
	ID              string    `json:"id"`
	SaleID          string    `json:"sale_id"`
	InvoiceNumber   string    `json:"invoice_number,omitempty"`
	AmountCents     int64     `json:"amount_cents"`
	Method          string    `json:"payment_method"`
	ReferenceNumber string    `json:"reference_number,omitempty"`
	PaymentDate     time.Time `json:"payment_date"`
}

type PaymentCreateRequest struct {
	SaleID          string `json:"sale_id"`
	AmountCents     int64  `json:"amount_cents"`
	Method          string `json:"payment_method"`
	ReferenceNumber string `json:"reference_number"`
}

type Expense struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	AmountCents int64     `json:"amount_cents"`
	Category    string    `json:"category"`
	ExpenseDate time.Time `json:"expense_date"`
	CreatedBy   string    `json:"created_by"`
	AuthorName  string    `json:"author_name,omitempty"`
}

type ExpenseCreateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents"`
	Category    string `json:"category"`
	ExpenseDate string `json:"expense_date"`
}

type AuditLog struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name,omitempty"`
	UserRole    string    `json:"user_role,omitempty"`
	Action      string    `json:"action"`
	TargetTable string    `json:"target_table"`
	TargetID    string    `json:"target_id"`
	Details     string    `json:"details,omitempty"`
	IPAddress   string    `json:"ip_address,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type SignupRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SigninResponse struct {
	AccessToken string    `json:"access_token"`
	User        StaffUser `json:"user"`
	ExpiresAt   string    `json:"expires_at"`
}

type StaffUser struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Phone     string    `json:"phone,omitempty"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type StaffCreateRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Phone    string `json:"phone"`
}

// UserAccount is the internal persistence model for staff credentials.
type UserAccount struct {
	ID        string
	FullName  string
	Email     string
	Password  string
	Role      string
	Phone     string
	Active    bool
	CreatedAt time.Time
}

// Actor is the authenticated identity attached to a request context.
// IPAddress is filled in by the HTTP layer and flows into audit entries.
type Actor struct {
	ID        string
	Name      string
	Role      string
	IPAddress string
}

// StoreSettings is the single store profile shown on receipts and the
// terminal header. Reads are public; writes are manager-only.
type StoreSettings struct {
	StoreName     string    `json:"store_name"`
	Address       string    `json:"address,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Email         string    `json:"email,omitempty"`
	Currency      string    `json:"currency"`
	VATPercent    float64   `json:"vat_percent"`
	ReceiptFooter string    `json:"receipt_footer,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type SettingsUpdateRequest struct {
	StoreName     string  `json:"store_name"`
	Address       string  `json:"address"`
	Phone         string  `json:"phone"`
	Email         string  `json:"email"`
	Currency      string  `json:"currency"`
	VATPercent    float64 `json:"vat_percent"`
	ReceiptFooter string  `json:"receipt_footer"`
}

type DashboardStats struct {
	TodaySalesCents   int64       `json:"today_sales_cents"`
	TotalRevenueCents int64       `json:"total_revenue_cents"`
	TotalExpenseCents int64       `json:"total_expenses_cents"`
	TotalProducts     int         `json:"total_products"`
	TotalCustomers    int         `json:"total_customers"`
	LowStockCount     int         `json:"low_stock_count"`
	LowStockProducts  []Product   `json:"low_stock_products"`
	RecentSales       []Sale      `json:"recent_sales"`
	SalesChart        []ChartSlot `json:"sales_chart"`
}

type ChartSlot struct {
	Date        string `json:"date"`
	AmountCents int64  `json:"amount_cents"`
}

type MonthlySales struct {
	Month       string `json:"month"`
	AmountCents int64  `json:"amount_cents"`
}

type TopProduct struct {
	Name     string `json:"name"`
	TotalQty int    `json:"total_qty"`
}

type ReportSummary struct {
	RevenueCents int64          `json:"revenue_cents"`
	ExpenseCents int64          `json:"expense_cents"`
	TaxCents     int64          `json:"tax_cents"`
	ProfitCents  int64          `json:"profit_cents"`
	MonthlyData  []MonthlySales `json:"monthly_data"`
	TopProducts  []TopProduct   `json:"top_products"`
}
