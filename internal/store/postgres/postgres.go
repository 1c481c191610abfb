package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Khalettt/POSMS/internal/domain"
	"github.com/Khalettt/POSMS/internal/store"
	"github.com/Khalettt/POSMS/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// --- products ---

const productColumns = `
	p.id, p.name, COALESCE(p.description,''), COALESCE(p.sku,''),
	COALESCE(p.category_id,''), COALESCE(c.name,''), COALESCE(p.supplier_id,''),
	p.price_cents, COALESCE(p.cost_cents,0), p.stock_quantity,
	p.low_stock_threshold, p.is_active, COALESCE(p.created_by,''), p.created_at`

func scanProduct(row interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.SKU, &p.CategoryID, &p.CategoryName,
		&p.SupplierID, &p.PriceCents, &p.CostCents, &p.StockQuantity, &p.LowStockThreshold,
		&p.Active, &p.CreatedBy, &p.CreatedAt)
	if err != nil {
		return domain.Product{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		ORDER BY p.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) ListLowStockProducts(ctx context.Context, limit int) ([]domain.Product, error) {
	if limit < 1 {
		limit = 6
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.is_active = true AND p.stock_quantity <= p.low_stock_threshold
		ORDER BY p.stock_quantity ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1
	`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.PriceCents < 0 || product.StockQuantity < 0 {
		return nil, store.ErrInvalidInput
	}
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (
			id, name, description, sku, category_id, supplier_id, price_cents,
			cost_cents, stock_quantity, low_stock_threshold, is_active, created_by, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, product.ID, product.Name, nullIfEmpty(product.Description), nullIfEmpty(product.SKU),
		nullIfEmpty(product.CategoryID), nullIfEmpty(product.SupplierID), product.PriceCents,
		product.CostCents, product.StockQuantity, product.LowStockThreshold, product.Active,
		nullIfEmpty(product.CreatedBy), product.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.PriceCents < 0 {
		return nil, store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, description = $3, category_id = $4, price_cents = $5,
			cost_cents = $6, low_stock_threshold = $7, is_active = $8
		WHERE id = $1
	`, product.ID, product.Name, nullIfEmpty(product.Description), nullIfEmpty(product.CategoryID),
		product.PriceCents, product.CostCents, product.LowStockThreshold, product.Active)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetProductByID(ctx, product.ID)
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- categories ---

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, COALESCE(c.description,''), COUNT(p.id)::int, c.created_at
		FROM categories c
		LEFT JOIN products p ON p.category_id = c.id
		GROUP BY c.id
		ORDER BY c.name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, 32)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.ProductCount, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	if strings.TrimSpace(category.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if category.ID == "" {
		category.ID = xid.New("cat")
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, description, created_at)
		VALUES ($1,$2,$3,$4)
	`, category.ID, category.Name, nullIfEmpty(category.Description), category.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := category
	return &created, nil
}

func (s *Store) UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	if category.ID == "" || strings.TrimSpace(category.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE categories SET name = $2, description = $3 WHERE id = $1
	`, category.ID, category.Name, nullIfEmpty(category.Description))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := category
	return &updated, nil
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- customers ---

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(email,''), COALESCE(phone,''), COALESCE(address,''),
			COALESCE(notes,''), created_at
		FROM customers
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.Notes, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, email, phone, address, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, customer.ID, customer.Name, nullIfEmpty(customer.Email), nullIfEmpty(customer.Phone),
		nullIfEmpty(customer.Address), nullIfEmpty(customer.Notes), customer.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := customer
	return &created, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- suppliers ---

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(contact_person,''), COALESCE(email,''), COALESCE(phone,''),
			COALESCE(address,''), COALESCE(notes,''), created_at
		FROM suppliers
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 32)
	for rows.Next() {
		var sup domain.Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.ContactPerson, &sup.Email, &sup.Phone, &sup.Address, &sup.Notes, &sup.CreatedAt); err != nil {
			return nil, err
		}
		sup.CreatedAt = sup.CreatedAt.UTC()
		suppliers = append(suppliers, sup)
	}
	return suppliers, rows.Err()
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if strings.TrimSpace(supplier.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, contact_person, email, phone, address, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, supplier.ID, supplier.Name, nullIfEmpty(supplier.ContactPerson), nullIfEmpty(supplier.Email),
		nullIfEmpty(supplier.Phone), nullIfEmpty(supplier.Address), nullIfEmpty(supplier.Notes), supplier.CreatedAt)
	if err != nil {
		return nil, err
	}
	created := supplier
	return &created, nil
}

func (s *Store) DeleteSupplier(ctx context.Context, id string) error {
	var referencing string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM products WHERE supplier_id = $1 LIMIT 1`, id).Scan(&referencing)
	if err == nil {
		return store.ErrConflict
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM suppliers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- sales ---

// CreateSale runs the whole sale as one serializable transaction. Per cart
// line, in input order: lock the product row, verify availability, snapshot
// name/price into the sale item, apply the guarded decrement and append the
// inventory log entry. The guard ("stock_quantity >= qty") is what serializes
// two checkouts racing for the last unit; whichever commits second sees zero
// matched rows and the whole transaction is discarded.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale, cart []domain.CartLine, taxRatePercent float64) (*domain.Sale, error) {
	if len(cart) == 0 {
		return nil, store.ErrInvalidInput
	}
	for _, line := range cart {
		if line.ProductID == "" || line.Quantity < 1 {
			return nil, store.ErrInvalidInput
		}
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

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	subtotal := int64(0)
	items := make([]domain.SaleItem, 0, len(cart))
	logs := make([]domain.InventoryLogEntry, 0, len(cart))

	for _, line := range cart {
		var name string
		var priceCents int64
		var stock int
		err := tx.QueryRowContext(ctx, `
			SELECT name, price_cents, stock_quantity
			FROM products
			WHERE id = $1 AND is_active = true
			FOR UPDATE
		`, line.ProductID).Scan(&name, &priceCents, &stock)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("product %s: %w", line.ProductID, store.ErrNotFound)
			}
			return nil, err
		}

		if stock < line.Quantity {
			return nil, &domain.InsufficientStockError{
				ProductID:   line.ProductID,
				ProductName: name,
				Available:   stock,
				Requested:   line.Quantity,
			}
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock_quantity = stock_quantity - $1
			WHERE id = $2 AND stock_quantity >= $1
		`, line.Quantity, line.ProductID)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, &domain.InsufficientStockError{
				ProductID:   line.ProductID,
				ProductName: name,
				Available:   stock,
				Requested:   line.Quantity,
			}
		}

		items = append(items, domain.SaleItem{
			SaleID:         sale.ID,
			ProductID:      line.ProductID,
			ProductName:    name,
			Quantity:       line.Quantity,
			UnitPriceCents: priceCents,
			SubtotalCents:  priceCents * int64(line.Quantity),
		})
		logs = append(logs, domain.InventoryLogEntry{
			ID:               xid.New("invlog"),
			ProductID:        line.ProductID,
			ChangeType:       domain.ChangeTypeSale,
			QuantityChange:   -line.Quantity,
			PreviousQuantity: stock,
			NewQuantity:      stock - line.Quantity,
			OperatedBy:       sale.CreatedBy,
			Notes:            "sale " + sale.InvoiceNumber,
			CreatedAt:        sale.SaleDate,
		})
		subtotal += priceCents * int64(line.Quantity)
	}

	sale.SubtotalCents = subtotal
	sale.TaxCents = taxCentsFor(subtotal, taxRatePercent)
	sale.TotalCents = subtotal + sale.TaxCents
	sale.Items = items

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (
			id, invoice_number, customer_id, subtotal_cents, tax_cents, total_cents,
			notes, created_by, status, sale_date
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, sale.ID, sale.InvoiceNumber, nullIfEmpty(sale.CustomerID), sale.SubtotalCents,
		sale.TaxCents, sale.TotalCents, nullIfEmpty(sale.Notes), sale.CreatedBy,
		sale.Status, sale.SaleDate)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateInvoice
		}
		return nil, err
	}

	for _, item := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, product_name, quantity, unit_price_cents, subtotal_cents)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, item.SaleID, item.ProductID, item.ProductName, item.Quantity, item.UnitPriceCents, item.SubtotalCents)
		if err != nil {
			return nil, err
		}
	}

	for _, entry := range logs {
		if err := insertInventoryLog(ctx, tx, entry); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := sale
	return &created, nil
}

func (s *Store) ListSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.invoice_number, COALESCE(s.customer_id,''), COALESCE(c.name,''),
			s.subtotal_cents, s.tax_cents, s.total_cents, COALESCE(s.notes,''),
			s.created_by, COALESCE(u.full_name,''), s.status, s.sale_date
		FROM sales s
		LEFT JOIN customers c ON c.id = s.customer_id
		LEFT JOIN users u ON u.id = s.created_by
		ORDER BY s.sale_date DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, limit)
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.InvoiceNumber, &sale.CustomerID, &sale.CustomerName,
			&sale.SubtotalCents, &sale.TaxCents, &sale.TotalCents, &sale.Notes,
			&sale.CreatedBy, &sale.SellerName, &sale.Status, &sale.SaleDate); err != nil {
			return nil, err
		}
		sale.SaleDate = sale.SaleDate.UTC()
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	var sale domain.Sale
	err := s.db.QueryRowContext(ctx, `
		SELECT s.id, s.invoice_number, COALESCE(s.customer_id,''), COALESCE(c.name,''),
			s.subtotal_cents, s.tax_cents, s.total_cents, COALESCE(s.notes,''),
			s.created_by, COALESCE(u.full_name,''), s.status, s.sale_date
		FROM sales s
		LEFT JOIN customers c ON c.id = s.customer_id
		LEFT JOIN users u ON u.id = s.created_by
		WHERE s.id = $1
	`, id).Scan(&sale.ID, &sale.InvoiceNumber, &sale.CustomerID, &sale.CustomerName,
		&sale.SubtotalCents, &sale.TaxCents, &sale.TotalCents, &sale.Notes,
		&sale.CreatedBy, &sale.SellerName, &sale.Status, &sale.SaleDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sale.SaleDate = sale.SaleDate.UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, product_id, product_name, quantity, unit_price_cents, subtotal_cents
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SaleItem, 0, 8)
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.SaleID, &item.ProductID, &item.ProductName, &item.Quantity, &item.UnitPriceCents, &item.SubtotalCents); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sale.Items = items

	return &sale, nil
}

// DeleteSale restocks every line and appends compensating inventory log
// entries before removing the sale rows, all in one transaction, so the
// catalog and the log stay consistent after a manager voids an invoice.
func (s *Store) DeleteSale(ctx context.Context, id string, operatedBy string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var invoiceNumber string
	err = tx.QueryRowContext(ctx, `
		SELECT invoice_number FROM sales WHERE id = $1 FOR UPDATE
	`, id).Scan(&invoiceNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}

	itemRows, err := tx.QueryContext(ctx, `
		SELECT product_id, quantity FROM sale_items WHERE sale_id = $1 ORDER BY id ASC
	`, id)
	if err != nil {
		return err
	}
	type lineQty struct {
		productID string
		qty       int
	}
	lines := make([]lineQty, 0, 8)
	for itemRows.Next() {
		var line lineQty
		if err := itemRows.Scan(&line.productID, &line.qty); err != nil {
			_ = itemRows.Close()
			return err
		}
		lines = append(lines, line)
	}
	if err := itemRows.Err(); err != nil {
		_ = itemRows.Close()
		return err
	}
	_ = itemRows.Close()

	now := time.Now().UTC()
	for _, line := range lines {
		var stock int
		err := tx.QueryRowContext(ctx, `
			SELECT stock_quantity FROM products WHERE id = $1 FOR UPDATE
		`, line.productID).Scan(&stock)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				// Product was hard-deleted after the sale; nothing to restock.
				continue
			}
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE products SET stock_quantity = stock_quantity + $1 WHERE id = $2
		`, line.qty, line.productID)
		if err != nil {
			return err
		}

		entry := domain.InventoryLogEntry{
			ID:               xid.New("invlog"),
			ProductID:        line.productID,
			ChangeType:       domain.ChangeTypeIn,
			QuantityChange:   line.qty,
			PreviousQuantity: stock,
			NewQuantity:      stock + line.qty,
			OperatedBy:       operatedBy,
			Notes:            "restock from deleted sale " + invoiceNumber,
			CreatedAt:        now,
		}
		if err := insertInventoryLog(ctx, tx, entry); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id); err != nil {
		return err
	}

	return tx.Commit()
}

// --- inventory ---

func (s *Store) AdjustStock(ctx context.Context, productID string, change int, changeType string, operatedBy string, notes string) (*domain.InventoryLogEntry, error) {
	if productID == "" || change == 0 {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var name string
	var stock int
	err = tx.QueryRowContext(ctx, `
		SELECT name, stock_quantity FROM products WHERE id = $1 FOR UPDATE
	`, productID).Scan(&name, &stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	newQuantity := stock + change
	if newQuantity < 0 {
		return nil, &domain.InvalidAdjustmentError{
			ProductID:   productID,
			ProductName: name,
			Current:     stock,
			Change:      change,
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE products SET stock_quantity = $1 WHERE id = $2
	`, newQuantity, productID)
	if err != nil {
		return nil, err
	}

	entry := domain.InventoryLogEntry{
		ID:               xid.New("invlog"),
		ProductID:        productID,
		ProductName:      name,
		ChangeType:       changeType,
		QuantityChange:   change,
		PreviousQuantity: stock,
		NewQuantity:      newQuantity,
		OperatedBy:       operatedBy,
		Notes:            notes,
		CreatedAt:        time.Now().UTC(),
	}
	if err := insertInventoryLog(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &entry, nil
}

func insertInventoryLog(ctx context.Context, tx *sql.Tx, entry domain.InventoryLogEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO inventory_logs (
			id, product_id, change_type, quantity_change, previous_quantity,
			new_quantity, operated_by, notes, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.ProductID, entry.ChangeType, entry.QuantityChange,
		entry.PreviousQuantity, entry.NewQuantity, nullIfEmpty(entry.OperatedBy),
		nullIfEmpty(entry.Notes), entry.CreatedAt)
	return err
}

func (s *Store) ListInventoryLogs(ctx context.Context, limit int) ([]domain.InventoryLogEntry, error) {
	if limit < 1 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.product_id, COALESCE(p.name,''), l.change_type, l.quantity_change,
			l.previous_quantity, l.new_quantity, COALESCE(l.operated_by,''),
			COALESCE(u.full_name,''), COALESCE(l.notes,''), l.created_at
		FROM inventory_logs l
		LEFT JOIN products p ON p.id = l.product_id
		LEFT JOIN users u ON u.id = l.operated_by
		ORDER BY l.created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.InventoryLogEntry, 0, limit)
	for rows.Next() {
		var entry domain.InventoryLogEntry
		if err := rows.Scan(&entry.ID, &entry.ProductID, &entry.ProductName, &entry.ChangeType,
			&entry.QuantityChange, &entry.PreviousQuantity, &entry.NewQuantity,
			&entry.OperatedBy, &entry.OperatorName, &entry.Notes, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// --- payments ---

func (s *Store) CreatePayment(ctx context.Context, payment domain.Payment) (*domain.Payment, error) {
	if payment.SaleID == "" || payment.AmountCents < 1 {
		return nil, store.ErrInvalidInput
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (id, sale_id, amount_cents, payment_method, reference_number, payment_date)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, payment.ID, payment.SaleID, payment.AmountCents, payment.Method,
		nullIfEmpty(payment.ReferenceNumber), payment.PaymentDate)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	created := payment
	return &created, nil
}

func (s *Store) ListPayments(ctx context.Context, limit int) ([]domain.Payment, error) {
	if limit < 1 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.sale_id, COALESCE(s.invoice_number,''), p.amount_cents,
			p.payment_method, COALESCE(p.reference_number,''), p.payment_date
		FROM payments p
		LEFT JOIN sales s ON s.id = p.sale_id
		ORDER BY p.payment_date DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0, limit)
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.SaleID, &p.InvoiceNumber, &p.AmountCents, &p.Method, &p.ReferenceNumber, &p.PaymentDate); err != nil {
			return nil, err
		}
		p.PaymentDate = p.PaymentDate.UTC()
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// --- expenses ---

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if strings.TrimSpace(expense.Title) == "" || expense.AmountCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.Category == "" {
		expense.Category = "Other"
	}
	if expense.ExpenseDate.IsZero() {
		expense.ExpenseDate = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, title, description, amount_cents, category, expense_date, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, expense.ID, expense.Title, nullIfEmpty(expense.Description), expense.AmountCents,
		expense.Category, expense.ExpenseDate, nullIfEmpty(expense.CreatedBy))
	if err != nil {
		return nil, err
	}
	created := expense
	return &created, nil
}

func (s *Store) ListExpenses(ctx context.Context) ([]domain.Expense, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.title, COALESCE(e.description,''), e.amount_cents, e.category,
			e.expense_date, COALESCE(e.created_by,''), COALESCE(u.full_name,'')
		FROM expenses e
		LEFT JOIN users u ON u.id = e.created_by
		ORDER BY e.expense_date DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0, 64)
	for rows.Next() {
		var e domain.Expense
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.AmountCents, &e.Category, &e.ExpenseDate, &e.CreatedBy, &e.AuthorName); err != nil {
			return nil, err
		}
		e.ExpenseDate = e.ExpenseDate.UTC()
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- settings ---

// Settings lives in a single row keyed id=1, matching the one store this
// system serves.
func (s *Store) GetSettings(ctx context.Context) (domain.StoreSettings, error) {
	var settings domain.StoreSettings
	err := s.db.QueryRowContext(ctx, `
		SELECT store_name, COALESCE(address,''), COALESCE(phone,''), COALESCE(email,''),
			currency, vat_percent, COALESCE(receipt_footer,''), updated_at
		FROM settings
		WHERE id = 1
	`).Scan(&settings.StoreName, &settings.Address, &settings.Phone, &settings.Email,
		&settings.Currency, &settings.VATPercent, &settings.ReceiptFooter, &settings.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StoreSettings{Currency: "$"}, nil
	}
	if err != nil {
		return domain.StoreSettings{}, err
	}
	settings.UpdatedAt = settings.UpdatedAt.UTC()
	return settings, nil
}

func (s *Store) UpsertSettings(ctx context.Context, settings domain.StoreSettings) (domain.StoreSettings, error) {
	settings.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (id, store_name, address, phone, email, currency, vat_percent, receipt_footer, updated_at)
		VALUES (1,$1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET
			store_name = EXCLUDED.store_name,
			address = EXCLUDED.address,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			currency = EXCLUDED.currency,
			vat_percent = EXCLUDED.vat_percent,
			receipt_footer = EXCLUDED.receipt_footer,
			updated_at = EXCLUDED.updated_at
	`, settings.StoreName, nullIfEmpty(settings.Address), nullIfEmpty(settings.Phone),
		nullIfEmpty(settings.Email), settings.Currency, settings.VATPercent,
		nullIfEmpty(settings.ReceiptFooter), settings.UpdatedAt)
	if err != nil {
		return domain.StoreSettings{}, err
	}
	return settings, nil
}

// --- audit logs ---

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, user_id, action, target_table, target_id, details, ip_address, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.UserID, entry.Action, entry.TargetTable, nullIfEmpty(entry.TargetID),
		nullIfEmpty(entry.Details), nullIfEmpty(entry.IPAddress), entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.user_id, COALESCE(u.full_name,''), COALESCE(u.role,''),
			a.action, a.target_table, COALESCE(a.target_id,''), COALESCE(a.details,''),
			COALESCE(a.ip_address,''), a.created_at
		FROM audit_logs a
		LEFT JOIN users u ON u.id = a.user_id
		ORDER BY a.created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.UserName, &entry.UserRole,
			&entry.Action, &entry.TargetTable, &entry.TargetID, &entry.Details,
			&entry.IPAddress, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// --- dashboard & reports ---

func (s *Store) GetDashboardStats(ctx context.Context, now time.Time) (domain.DashboardStats, error) {
	var stats domain.DashboardStats
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_cents),0)::bigint
		FROM sales
		WHERE sale_date >= $1 AND sale_date < $2 AND status = $3
	`, dayStart, dayStart.Add(24*time.Hour), domain.SaleStatusCompleted).Scan(&stats.TodaySalesCents)
	if err != nil {
		return stats, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_cents),0)::bigint FROM sales WHERE status = $1
	`, domain.SaleStatusCompleted).Scan(&stats.TotalRevenueCents)
	if err != nil {
		return stats, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents),0)::bigint FROM expenses
	`).Scan(&stats.TotalExpenseCents)
	if err != nil {
		return stats, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)::int FROM products WHERE is_active = true
	`).Scan(&stats.TotalProducts)
	if err != nil {
		return stats, err
	}

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*)::int FROM customers`).Scan(&stats.TotalCustomers)
	if err != nil {
		return stats, err
	}

	lowStock, err := s.ListLowStockProducts(ctx, 6)
	if err != nil {
		return stats, err
	}
	stats.LowStockProducts = lowStock
	stats.LowStockCount = len(lowStock)

	recent, err := s.ListSales(ctx, 5)
	if err != nil {
		return stats, err
	}
	stats.RecentSales = recent

	chartRows, err := s.db.QueryContext(ctx, `
		SELECT TO_CHAR(sale_date, 'DD Mon'), SUM(total_cents)::bigint
		FROM sales
		WHERE sale_date > $1 AND status = $2
		GROUP BY TO_CHAR(sale_date, 'DD Mon'), sale_date::date
		ORDER BY sale_date::date ASC
	`, now.Add(-7*24*time.Hour), domain.SaleStatusCompleted)
	if err != nil {
		return stats, err
	}
	defer chartRows.Close()

	stats.SalesChart = make([]domain.ChartSlot, 0, 7)
	for chartRows.Next() {
		var slot domain.ChartSlot
		if err := chartRows.Scan(&slot.Date, &slot.AmountCents); err != nil {
			return stats, err
		}
		stats.SalesChart = append(stats.SalesChart, slot)
	}
	return stats, chartRows.Err()
}

func (s *Store) GetReportSummary(ctx context.Context, now time.Time) (domain.ReportSummary, error) {
	var summary domain.ReportSummary

	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_cents),0)::bigint, COALESCE(SUM(tax_cents),0)::bigint
		FROM sales
	`).Scan(&summary.RevenueCents, &summary.TaxCents)
	if err != nil {
		return summary, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents),0)::bigint FROM expenses
	`).Scan(&summary.ExpenseCents)
	if err != nil {
		return summary, err
	}
	summary.ProfitCents = summary.RevenueCents - summary.ExpenseCents

	monthRows, err := s.db.QueryContext(ctx, `
		SELECT TO_CHAR(sale_date, 'Mon'), SUM(total_cents)::bigint
		FROM sales
		WHERE sale_date > $1
		GROUP BY TO_CHAR(sale_date, 'Mon'), EXTRACT(MONTH FROM sale_date)
		ORDER BY EXTRACT(MONTH FROM sale_date)
	`, now.AddDate(-1, 0, 0))
	if err != nil {
		return summary, err
	}
	summary.MonthlyData = make([]domain.MonthlySales, 0, 12)
	for monthRows.Next() {
		var row domain.MonthlySales
		if err := monthRows.Scan(&row.Month, &row.AmountCents); err != nil {
			_ = monthRows.Close()
			return summary, err
		}
		summary.MonthlyData = append(summary.MonthlyData, row)
	}
	if err := monthRows.Err(); err != nil {
		_ = monthRows.Close()
		return summary, err
	}
	_ = monthRows.Close()

	topRows, err := s.db.QueryContext(ctx, `
		SELECT si.product_name, SUM(si.quantity)::int
		FROM sale_items si
		GROUP BY si.product_name
		ORDER BY SUM(si.quantity) DESC
		LIMIT 5
	`)
	if err != nil {
		return summary, err
	}
	defer topRows.Close()

	summary.TopProducts = make([]domain.TopProduct, 0, 5)
	for topRows.Next() {
		var row domain.TopProduct
		if err := topRows.Scan(&row.Name, &row.TotalQty); err != nil {
			return summary, err
		}
		summary.TopProducts = append(summary.TopProducts, row)
	}
	return summary, topRows.Err()
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	if user.Email == "" || user.Password == "" || user.FullName == "" {
		return nil, store.ErrInvalidInput
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, full_name, email, password, role, phone, is_active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, user.ID, user.FullName, user.Email, user.Password, user.Role,
		nullIfEmpty(user.Phone), user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := user
	return &created, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, full_name, email, password, role, COALESCE(phone,''), is_active, created_at
		FROM users
		WHERE email = $1
	`, email).Scan(&user.ID, &user.FullName, &user.Email, &user.Password, &user.Role,
		&user.Phone, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, full_name, email, password, role, COALESCE(phone,''), is_active, created_at
		FROM users
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.ID, &user.FullName, &user.Email, &user.Password, &user.Role,
			&user.Phone, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CountUsersByRole(ctx context.Context, role string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*)::int FROM users WHERE role = $1`, role).Scan(&count)
	return count, err
}

// --- helpers ---

func taxCentsFor(subtotalCents int64, ratePercent float64) int64 {
	if ratePercent <= 0 {
		return 0
	}
	return int64(float64(subtotalCents)*ratePercent/100 + 0.5)
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
