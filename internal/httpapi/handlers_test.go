package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"glowbooks/backend/internal/cache"
	"glowbooks/backend/internal/domain"
	"glowbooks/backend/internal/service"
	"glowbooks/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, cache.NoopCashSummaryCache{}, service.Options{})
	auth := NewAuthManager("test-secret-key-with-enough-length", time.Hour, svc)

	return New(svc, auth, "*")
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
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

func login(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return body.AccessToken
}

func TestHandleHealth(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestLoginAndRoleEnforcement(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/items", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	staffToken := login(t, handler, "staff", "staff123")
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/items", staffToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected staff to list items, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/items", staffToken, domain.ItemCreateRequest{
		Name: "Staff Attempt", Category: "makeup", UnitCost: 1,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected staff item creation to be forbidden, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/withdrawals", staffToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected staff withdrawals access to be forbidden, got %d", rec.Code)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "admin",
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", rec.Code)
	}
}

func TestLoginRateLimited(t *testing.T) {
	handler := newTestAPI(t).Handler()

	for i := 0; i < 5; i++ {
		doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"username": "admin",
			"password": "wrong",
		})
	}
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "admin",
		"password": "admin123",
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", rec.Code)
	}
}

func TestItemCreateAndGet(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "admin", "admin123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/items", token, domain.ItemCreateRequest{
		Name: "Retinol Serum", Category: "skincare", UnitCost: 18, WeightLbs: 0.4, Stock: 6,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created struct {
		Item domain.Item `json:"item"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode item: %v", err)
	}
	if created.Item.MinPrice != 27 {
		t.Fatalf("expected entry min price ceil(18*1.5)=27, got %.2f", created.Item.MinPrice)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/items/"+created.Item.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for item fetch, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/items/item-missing", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown item, got %d", rec.Code)
	}
}

func TestPurchaseEndpointStatuses(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "admin", "admin123")

	zero := 0.0
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/purchases", token, domain.PurchaseCreateRequest{
		Lines: []domain.PurchaseDraftLine{
			{ItemID: "item-serum-01", Quantity: 4, UnitCost: 14.99},
		},
		Tax:          &zero,
		ShippingUS:   8,
		ShippingIntl: &zero,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var resp domain.PurchaseResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode purchase response: %v", err)
	}
	if resp.Purchase.Lines[0].PerUnitShippingUS != 2 {
		t.Fatalf("expected 8/4=2 per-unit shipping, got %.4f", resp.Purchase.Lines[0].PerUnitShippingUS)
	}

	// Unknown item id is a bad draft.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/purchases", token, domain.PurchaseCreateRequest{
		Lines: []domain.PurchaseDraftLine{{ItemID: "item-ghost", Quantity: 1, UnitCost: 5}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown item, got %d", rec.Code)
	}

	// No revenue yet, so cash funding must be rejected with the inline code.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/purchases", token, domain.PurchaseCreateRequest{
		Lines:     []domain.PurchaseDraftLine{{ItemID: "item-serum-01", Quantity: 1, UnitCost: 14.99}},
		CashToUse: 10,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for insufficient cash, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var failure map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&failure); err != nil {
		t.Fatalf("decode failure body: %v", err)
	}
	if failure["code"] != "insufficient_funds" {
		t.Fatalf("expected insufficient_funds code, got %v", failure["code"])
	}
}

func TestTransactionMixedValidationStatus(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "admin", "admin123")

	// Seed revenue so cash exists.
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, domain.SaleCreateRequest{
		ItemID: "item-mask-01", Quantity: 10, UnitPrice: 12,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("seed sale failed: %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/transactions", token, domain.TransactionCreateRequest{
		Type:           domain.TransactionExpense,
		Amount:         100,
		PaymentSource:  domain.PaymentSourceMixed,
		CashAmount:     60,
		ExternalAmount: 30,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for mismatched mixed parts, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/transactions", token, domain.TransactionCreateRequest{
		Type:           domain.TransactionExpense,
		Amount:         100,
		PaymentSource:  domain.PaymentSourceMixed,
		CashAmount:     60,
		ExternalAmount: 40,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for valid mixed transaction, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestCashSummaryEndpoint(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "admin", "admin123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", token, domain.SaleCreateRequest{
		ItemID: "item-lip-01", Quantity: 2, UnitPrice: 10,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("seed sale failed: %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/cash/summary", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var summary domain.CashSummary
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.AvailableCash != 20 {
		t.Fatalf("expected 20 available, got %.2f", summary.AvailableCash)
	}
}

func TestSettingsUpdate(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "admin", "admin123")

	rate := 10.5
	rec := doJSON(t, handler, http.MethodPut, "/api/v1/settings", token, domain.SettingsUpdateRequest{
		TaxRatePercent: &rate,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var settings domain.Settings
	if err := json.NewDecoder(rec.Body).Decode(&settings); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if settings.TaxRatePercent != 10.5 {
		t.Fatalf("expected tax rate 10.5, got %.3f", settings.TaxRatePercent)
	}
	if settings.WeightCostPerLb != 7 {
		t.Fatalf("expected weight cost untouched at 7, got %.2f", settings.WeightCostPerLb)
	}
}

func TestBackupExportImportEndpoints(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "admin", "admin123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/backup/export", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export failed: %d", rec.Code)
	}
	var dataset domain.Dataset
	if err := json.NewDecoder(rec.Body).Decode(&dataset); err != nil {
		t.Fatalf("decode dataset: %v", err)
	}
	if len(dataset.Items) == 0 {
		t.Fatalf("expected seeded items in export")
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/backup/import", token, dataset)
	if rec.Code != http.StatusOK {
		t.Fatalf("import failed: %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestRecalculateRequiresAdmin(t *testing.T) {
	handler := newTestAPI(t).Handler()

	staffToken := login(t, handler, "staff", "staff123")
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/recalculate", staffToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff recalculation, got %d", rec.Code)
	}

	adminToken := login(t, handler, "admin", "admin123")
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/recalculate", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin recalculation, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var resp domain.RecalculateResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode recalculate response: %v", err)
	}
	if resp.CompletedAt == "" {
		t.Fatalf("expected a completion timestamp")
	}
}

func TestMetricsEndpointIsPublic(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
}
