package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/Khalettt/POSMS/internal/domain"
)

func TestCreateSaleDecrementsStockAndDeleteSaleRestores(t *testing.T) {
	databaseURL := os.Getenv("POSMS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set POSMS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("prod-sale-it-%d", stamp)
	userID := fmt.Sprintf("user-sale-it-%d", stamp)
	saleID := fmt.Sprintf("sale-it-%d", stamp)
	invoiceNumber := fmt.Sprintf("INV-IT-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM inventory_logs WHERE product_id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, full_name, email, password, role, is_active, created_at)
		VALUES ($1, 'Integration User', $2, 'x', 'cashier', true, now())
	`, userID, fmt.Sprintf("it-%d@example.com", stamp)); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, price_cents, stock_quantity, low_stock_threshold, is_active, created_at)
		VALUES ($1, 'Integration Product', 8500, 5, 2, true, now())
	`, productID); err != nil {
		t.Fatalf("seed product: %v", err)
	}

	created, err := s.CreateSale(ctx, domain.Sale{
		ID:            saleID,
		InvoiceNumber: invoiceNumber,
		CreatedBy:     userID,
	}, []domain.CartLine{{ProductID: productID, Quantity: 2}}, 10)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if created.SubtotalCents != 17000 || created.TotalCents != 18700 {
		t.Fatalf("unexpected totals: %+v", created)
	}

	product, err := s.GetProductByID(ctx, productID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.StockQuantity != 3 {
		t.Fatalf("expected stock 3 after sale, got %d", product.StockQuantity)
	}

	if err := s.DeleteSale(ctx, saleID, userID); err != nil {
		t.Fatalf("delete sale: %v", err)
	}
	product, err = s.GetProductByID(ctx, productID)
	if err != nil {
		t.Fatalf("get product after delete: %v", err)
	}
	if product.StockQuantity != 5 {
		t.Fatalf("expected stock restored to 5, got %d", product.StockQuantity)
	}
}
