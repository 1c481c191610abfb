package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Khalettt/POSMS/internal/cache"
	"github.com/Khalettt/POSMS/internal/domain"
	"github.com/Khalettt/POSMS/internal/service"
	"github.com/Khalettt/POSMS/internal/store/memory"
)

// newTestAPI builds a full API over the in-memory store so handler tests
// exercise the complete request path: auth, routing, service, persistence.
func newTestAPI(t *testing.T) (*API, http.Handler) {
	t.Helper()

	repo := memory.New()
	svc := service.New(repo, cache.NoopStatsCache{}, 10)
	auth := NewAuthManager("0123456789abcdef0123456789abcdef", time.Hour, repo)
	api := New(svc, auth, "*")
	return api, api.Handler()
}

func doJSON(t *testing.T, handler http.Handler, method string, path string, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func signupToken(t *testing.T, handler http.Handler, fullName string, email string, role string) string {
	t.Helper()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/signup", "", domain.SignupRequest{
		FullName: fullName,
		Email:    email,
		Password: "secret123",
		Role:     role,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup %s failed: %d %s", email, rec.Code, rec.Body.String())
	}

	var resp domain.SigninResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode signup response: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatalf("expected an access token for %s", email)
	}
	return resp.AccessToken
}

func createProductVia(t *testing.T, handler http.Handler, token string, name string, priceCents int64, stock int) domain.Product {
	t.Helper()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", token, domain.ProductCreateRequest{
		Name:          name,
		PriceCents:    priceCents,
		StockQuantity: stock,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product failed: %d %s", rec.Code, rec.Body.String())
	}
	var product domain.Product
	if err := json.NewDecoder(rec.Body).Decode(&product); err != nil {
		t.Fatalf("decode product: %v", err)
	}
	return product
}

func TestHandleHealth(t *testing.T) {
	_, handler := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	_, handler := newTestAPI(t)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/sales", "garbage-token", domain.SubmitSaleRequest{})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with a bad token, got %d", rec.Code)
	}
}

func TestSubmitSaleEndToEnd(t *testing.T) {
	_, handler := newTestAPI(t)
	manager := signupToken(t, handler, "Manager", "manager@example.com", "manager")
	product := createProductVia(t, handler, manager, "Drip Coffee", 8500, 5)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", manager, domain.SubmitSaleRequest{
		Cart: []domain.CartLine{{ProductID: product.ID, Quantity: 2}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var receipt domain.SaleReceipt
	if err := json.NewDecoder(rec.Body).Decode(&receipt); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if receipt.SubtotalCents != 17000 || receipt.TotalCents != 18700 {
		t.Fatalf("unexpected totals: %+v", receipt)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/products/"+product.ID, manager, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get product: %d", rec.Code)
	}
	var after domain.Product
	if err := json.NewDecoder(rec.Body).Decode(&after); err != nil {
		t.Fatalf("decode product: %v", err)
	}
	if after.StockQuantity != 3 {
		t.Fatalf("expected stock 3, got %d", after.StockQuantity)
	}
}

func TestSubmitSaleInsufficientStockReturns400(t *testing.T) {
	_, handler := newTestAPI(t)
	manager := signupToken(t, handler, "Manager", "manager@example.com", "manager")
	product := createProductVia(t, handler, manager, "Scarce", 1000, 1)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", manager, domain.SubmitSaleRequest{
		Cart: []domain.CartLine{{ProductID: product.ID, Quantity: 3}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for insufficient stock, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSubmitSaleUnknownProductReturns404(t *testing.T) {
	_, handler := newTestAPI(t)
	manager := signupToken(t, handler, "Manager", "manager@example.com", "manager")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", manager, domain.SubmitSaleRequest{
		Cart: []domain.CartLine{{ProductID: "prod-missing", Quantity: 1}},
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCashierCannotManageCatalogOrVoidSales(t *testing.T) {
	_, handler := newTestAPI(t)
	manager := signupToken(t, handler, "Manager", "manager@example.com", "manager")
	cashier := signupToken(t, handler, "Cashier", "cashier@example.com", "cashier")
	product := createProductVia(t, handler, manager, "Guarded", 2000, 5)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", cashier, domain.ProductCreateRequest{
		Name:          "Nope",
		PriceCents:    100,
		StockQuantity: 1,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier product create, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/sales", cashier, domain.SubmitSaleRequest{
		Cart: []domain.CartLine{{ProductID: product.ID, Quantity: 1}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("cashier sale should succeed, got %d: %s", rec.Code, rec.Body.String())
	}
	var receipt domain.SaleReceipt
	if err := json.NewDecoder(rec.Body).Decode(&receipt); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/sales/"+receipt.SaleID, cashier, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier sale delete, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/reports/summary", cashier, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier report access, got %d", rec.Code)
	}
}

func TestAdjustStockRejectsBelowZeroViaHTTP(t *testing.T) {
	_, handler := newTestAPI(t)
	manager := signupToken(t, handler, "Manager", "manager@example.com", "manager")
	product := createProductVia(t, handler, manager, "Thin", 500, 2)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/inventory/adjust", manager, domain.AdjustStockRequest{
		ProductID:      product.ID,
		QuantityChange: -5,
		ChangeType:     "out",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/inventory/adjust", manager, domain.AdjustStockRequest{
		ProductID:      product.ID,
		QuantityChange: 3,
		ChangeType:     "in",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp domain.AdjustStockResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode adjust response: %v", err)
	}
	if resp.NewQuantity != 5 {
		t.Fatalf("expected new quantity 5, got %d", resp.NewQuantity)
	}
}

func TestSupplierDeleteConflictReturns409(t *testing.T) {
	_, handler := newTestAPI(t)
	manager := signupToken(t, handler, "Manager", "manager@example.com", "manager")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/suppliers", manager, domain.SupplierCreateRequest{Name: "Acme"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create supplier: %d", rec.Code)
	}
	var supplier domain.Supplier
	if err := json.NewDecoder(rec.Body).Decode(&supplier); err != nil {
		t.Fatalf("decode supplier: %v", err)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/products", manager, domain.ProductCreateRequest{
		Name:       "From Acme",
		PriceCents: 900,
		SupplierID: supplier.ID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/suppliers/"+supplier.ID, manager, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 while supplier is referenced, got %d", rec.Code)
	}
}

func TestUnknownFieldsRejected(t *testing.T) {
	_, handler := newTestAPI(t)
	manager := signupToken(t, handler, "Manager", "manager@example.com", "manager")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", bytes.NewBufferString(`{"items":[],"bogus":1}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+manager)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestDashboardAndInventoryLogsEndpoints(t *testing.T) {
	_, handler := newTestAPI(t)
	manager := signupToken(t, handler, "Manager", "manager@example.com", "manager")
	product := createProductVia(t, handler, manager, "Logged", 1200, 7)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", manager, domain.SubmitSaleRequest{
		Cart: []domain.CartLine{{ProductID: product.ID, Quantity: 1}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("sale: %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/inventory/logs?limit=10", manager, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("inventory logs: %d", rec.Code)
	}
	var logsBody struct {
		Logs []domain.InventoryLogEntry `json:"logs"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&logsBody); err != nil {
		t.Fatalf("decode logs: %v", err)
	}
	if len(logsBody.Logs) != 2 {
		t.Fatalf("expected 2 log entries (initial stock + sale), got %d", len(logsBody.Logs))
	}
	if logsBody.Logs[0].ChangeType != domain.ChangeTypeSale || logsBody.Logs[0].NewQuantity != 6 {
		t.Fatalf("unexpected newest log entry: %+v", logsBody.Logs[0])
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/dashboard/stats", manager, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard: %d", rec.Code)
	}
	var stats domain.DashboardStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalProducts != 1 || stats.TotalRevenueCents == 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestSigninRateLimited(t *testing.T) {
	_, handler := newTestAPI(t)

	var last int
	for i := 0; i < 7; i++ {
		rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/signin", "", domain.SigninRequest{
			Email:    fmt.Sprintf("nobody%d@example.com", i),
			Password: "wrong",
		})
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after repeated failures, got %d", last)
	}
}

func TestSettingsPublicReadManagerWrite(t *testing.T) {
	_, handler := newTestAPI(t)

	// Unauthenticated read returns the default profile.
	rec := doJSON(t, handler, http.MethodGet, "/api/v1/settings", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for public settings read, got %d", rec.Code)
	}
	var settings domain.StoreSettings
	if err := json.NewDecoder(rec.Body).Decode(&settings); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if settings.Currency != "$" {
		t.Fatalf("expected default currency, got %q", settings.Currency)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/settings", "", domain.SettingsUpdateRequest{StoreName: "Corner Mart"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous settings write, got %d", rec.Code)
	}

	manager := signupToken(t, handler, "Mia Manager", "mia.settings@example.com", "manager")
	cashier := signupToken(t, handler, "Carl Cashier", "carl.settings@example.com", "cashier")

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/settings", cashier, domain.SettingsUpdateRequest{StoreName: "Corner Mart"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier settings write, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/settings", manager, domain.SettingsUpdateRequest{
		StoreName:  "Corner Mart",
		VATPercent: 16,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("settings write: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/settings", "", nil)
	if err := json.NewDecoder(rec.Body).Decode(&settings); err != nil {
		t.Fatalf("decode saved settings: %v", err)
	}
	if settings.StoreName != "Corner Mart" || settings.VATPercent != 16 {
		t.Fatalf("saved profile not served: %+v", settings)
	}
}

func TestAuditLogsRecordClientIP(t *testing.T) {
	api, handler := newTestAPI(t)

	manager := signupToken(t, handler, "Mia Manager", "mia.ip@example.com", "manager")
	createProductVia(t, handler, manager, "Traced", 1000, 0)
	api.service.Wait()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/audit-logs", manager, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("audit logs: %d", rec.Code)
	}
	var body struct {
		Logs []domain.AuditLog `json:"logs"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode logs: %v", err)
	}
	if len(body.Logs) == 0 {
		t.Fatal("expected an audit entry")
	}
	// httptest stamps every request with the same fixed remote address.
	if body.Logs[0].IPAddress != "192.0.2.1" {
		t.Fatalf("expected client IP on audit entry, got %q", body.Logs[0].IPAddress)
	}
}
