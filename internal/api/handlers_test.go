package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/upbank/core-service/internal/app"
	"github.com/upbank/core-service/internal/domain"
	"github.com/upbank/core-service/internal/store"
	"github.com/upbank/core-service/pkg/metrics"
	"golang.org/x/crypto/bcrypt"
)

const testAdminKey = "admin-secret"

func newTestRouter(t *testing.T) (http.Handler, *store.MemoryRepository) {
	t.Helper()
	repo := store.NewMemoryRepository("upbank.events")
	hash := func(password string) (string, error) {
		b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		return string(b), err
	}
	if err := store.SeedDemoData(repo, hash); err != nil {
		t.Fatalf("failed to seed: %v", err)
	}
	service := app.NewService(repo, app.Options{
		MaxLoginAttempts:    3,
		AccountNumberPrefix: "ACC",
		ConceptPolicy:       app.ConceptAdvisory,
		EventExchange:       "upbank.events",
	}, nil)
	collector := metrics.NewCollector()
	service.SetMetrics(collector)

	router := NewRouter(NewHandler(service, nil), RouterOptions{
		AdminAPIKey: testAdminKey,
		Metrics:     collector.Handler(),
	})
	return router, repo
}

func doRequest(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestLoginEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/login", `{"username":"ana","password":"upbank123"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result domain.AuthResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if result.UserID != 2 || result.RoleID != 2 {
		t.Fatalf("unexpected auth result %+v", result)
	}

	rec = doRequest(t, router, http.MethodPost, "/api/login", `{"username":"admin","password":"upbank123"}`, nil)
	if !strings.Contains(rec.Body.String(), `"role_id":1`) {
		t.Fatalf("expected admin role id 1, got %s", rec.Body.String())
	}
}

func TestLoginEndpoint_LockoutSequence(t *testing.T) {
	router, _ := newTestRouter(t)
	bad := `{"username":"carlos","password":"nope"}`

	for _, wantLeft := range []int{2, 1} {
		rec := doRequest(t, router, http.MethodPost, "/api/login", bad, nil)
		body := decodeError(t, rec)
		if rec.Code != http.StatusUnauthorized || body.Code != "INVALID_CREDENTIALS" {
			t.Fatalf("expected 401 INVALID_CREDENTIALS, got %d %+v", rec.Code, body)
		}
		if body.AttemptsLeft == nil || *body.AttemptsLeft != wantLeft {
			t.Fatalf("expected attemptsLeft %d, got %v", wantLeft, body.AttemptsLeft)
		}
	}

	for _, body := range []string{bad, `{"username":"carlos","password":"upbank123"}`} {
		rec := doRequest(t, router, http.MethodPost, "/api/login", body, nil)
		got := decodeError(t, rec)
		if rec.Code != http.StatusForbidden || got.Code != "ACCOUNT_BLOCKED" || got.AttemptsLeft != nil {
			t.Fatalf("expected 403 ACCOUNT_BLOCKED, got %d %+v", rec.Code, got)
		}
	}

	rec := doRequest(t, router, http.MethodPut, "/api/users/3/unblock", "", map[string]string{AdminAPIKeyHeader: testAdminKey})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected unblock 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "$2a$") {
		t.Fatalf("password hash leaked: %s", rec.Body.String())
	}
	rec = doRequest(t, router, http.MethodPost, "/api/login", `{"username":"carlos","password":"upbank123"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected login after unblock, got %d", rec.Code)
	}
}

func TestLoginEndpoint_Errors(t *testing.T) {
	router, _ := newTestRouter(t)
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{name: "unknown user", body: `{"username":"nadie","password":"x"}`, wantStatus: http.StatusUnauthorized, wantCode: "USER_NOT_FOUND"},
		{name: "malformed body", body: `{"username":`, wantStatus: http.StatusBadRequest, wantCode: "INVALID_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, "/api/login", tt.body, nil)
			body := decodeError(t, rec)
			if rec.Code != tt.wantStatus || body.Code != tt.wantCode {
				t.Fatalf("expected %d %s, got %d %+v", tt.wantStatus, tt.wantCode, rec.Code, body)
			}
		})
	}
}

func TestTransferEndpoint(t *testing.T) {
	router, repo := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/transfer", `{"sender_id":2,"destination":"012180001000020002","amount":99.5,"concept":"cena"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var receipt struct {
		Amount    string `json:"amount"`
		Reference string `json:"reference"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &receipt); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if receipt.Amount != "99.50" || receipt.Reference == "" {
		t.Fatalf("unexpected receipt %s", rec.Body.String())
	}
	if repo.Balances()[1] != 1500000-9950 {
		t.Fatalf("expected sender debited, got %s", repo.Balances()[1])
	}
}

func TestTransferEndpoint_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{name: "missing amount", body: `{"sender_id":2,"destination":"ACC100002","concept":"x"}`, wantStatus: http.StatusBadRequest, wantCode: "MISSING_AMOUNT"},
		{name: "invalid amount", body: `{"sender_id":2,"destination":"ACC100002","amount":"1,5","concept":"x"}`, wantStatus: http.StatusBadRequest, wantCode: "INVALID_AMOUNT"},
		{name: "insufficient funds", body: `{"sender_id":2,"destination":"ACC100002","amount":"15000.01","concept":"x"}`, wantStatus: http.StatusBadRequest, wantCode: "INSUFFICIENT_FUNDS"},
		{name: "missing destination", body: `{"sender_id":2,"amount":"1","concept":"x"}`, wantStatus: http.StatusBadRequest, wantCode: "MISSING_DESTINATION"},
		{name: "destination not found", body: `{"sender_id":2,"destination":"ACC000000","amount":"1","concept":"x"}`, wantStatus: http.StatusNotFound, wantCode: "DESTINATION_NOT_FOUND"},
		{name: "self transfer", body: `{"sender_id":2,"destination":"ACC100001","amount":"1","concept":"x"}`, wantStatus: http.StatusBadRequest, wantCode: "SELF_TRANSFER_NOT_ALLOWED"},
		{name: "frozen destination", body: `{"sender_id":2,"destination":"ACC100004","amount":"1","concept":"x"}`, wantStatus: http.StatusForbidden, wantCode: "ACCOUNT_NOT_ACTIVE"},
		{name: "sender without account", body: `{"sender_id":1,"destination":"ACC100002","amount":"1","concept":"x"}`, wantStatus: http.StatusNotFound, wantCode: "ACCOUNT_NOT_FOUND"},
		{name: "missing sender", body: `{"destination":"ACC100002","amount":"1"}`, wantStatus: http.StatusBadRequest, wantCode: "INVALID_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, repo := newTestRouter(t)
			rec := doRequest(t, router, http.MethodPost, "/api/transfer", tt.body, nil)
			body := decodeError(t, rec)
			if rec.Code != tt.wantStatus || body.Code != tt.wantCode {
				t.Fatalf("expected %d %s, got %d %+v", tt.wantStatus, tt.wantCode, rec.Code, body)
			}
			if body.Error == "" {
				t.Fatalf("expected a user-facing message")
			}
			if repo.TransferCount() != 0 {
				t.Fatalf("expected no transfer")
			}
		})
	}
}

func TestReadEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/clients/2", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"first_name":"Ana"`) {
		t.Fatalf("unexpected client response %d %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodGet, "/api/accounts/3", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"account_number":"ACC100002"`) || !strings.Contains(rec.Body.String(), `"balance":"2500.50"`) {
		t.Fatalf("unexpected account response %d %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodGet, "/api/accounts/abc", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a non-numeric id, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/users/2/transfers", "", nil)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty history array, got %d %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodGet, "/api/users/2/transfers?limit=-1", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a negative limit, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodPost, "/api/destinations/resolve", `{"identifier":"ACC100002"}`, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"holder_name":"Carlos Hernández"`) {
		t.Fatalf("unexpected resolve response %d %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "balance") {
		t.Fatalf("destination preview must not expose the balance: %s", rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected healthy, got %d", rec.Code)
	}
}

func TestAdminEndpointsRequireKey(t *testing.T) {
	router, _ := newTestRouter(t)
	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
	}{
		{name: "missing key", wantStatus: http.StatusUnauthorized},
		{name: "wrong key", headers: map[string]string{AdminAPIKeyHeader: "guess"}, wantStatus: http.StatusUnauthorized},
		{name: "valid key", headers: map[string]string{AdminAPIKeyHeader: testAdminKey}, wantStatus: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, path := range []string{"/api/users", "/api/accounts"} {
				rec := doRequest(t, router, http.MethodGet, path, "", tt.headers)
				if rec.Code != tt.wantStatus {
					t.Fatalf("%s: expected %d, got %d", path, tt.wantStatus, rec.Code)
				}
			}
		})
	}
}

func TestAdminAuthMiddleware_EmptyKeyRejects(t *testing.T) {
	handler := AdminAuthMiddleware("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := doRequest(t, handler, http.MethodGet, "/", "", map[string]string{AdminAPIKeyHeader: ""})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with no key configured, got %d", rec.Code)
	}
}

func TestUnfreezeEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	admin := map[string]string{AdminAPIKeyHeader: testAdminKey}

	rec := doRequest(t, router, http.MethodPut, "/api/accounts/4/unfreeze", "", admin)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"active"`) {
		t.Fatalf("unexpected unfreeze response %d %s", rec.Code, rec.Body.String())
	}
	rec = doRequest(t, router, http.MethodPut, "/api/accounts/99/unfreeze", "", admin)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	doRequest(t, router, http.MethodPost, "/api/login", `{"username":"ana","password":"upbank123"}`, nil)

	rec := doRequest(t, router, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `upbank_login_attempts_total{outcome="success"} 1`) {
		t.Fatalf("unexpected metrics output %d %s", rec.Code, rec.Body.String())
	}
}

// failingService is a BankService whose every call fails.
type failingService struct {
	BankService
	err error
}

func (s failingService) Ping(ctx context.Context) error { return s.err }

func (s failingService) SubmitTransfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferReceipt, error) {
	return nil, s.err
}

func (s failingService) Login(ctx context.Context, username, password string) (*domain.AuthResult, error) {
	return nil, s.err
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		path       string
		body       string
		wantStatus int
		wantCode   string
		retryAfter string
	}{
		{name: "store unavailable", err: domain.ErrStoreUnavailable.Wrap(errors.New("db down")), path: "/api/transfer", body: `{"sender_id":2}`, wantStatus: http.StatusInternalServerError, wantCode: "STORE_UNAVAILABLE"},
		{name: "transfer failed", err: domain.ErrTransferFailed, path: "/api/transfer", body: `{"sender_id":2}`, wantStatus: http.StatusInternalServerError, wantCode: "TRANSFER_FAILED"},
		{name: "plain error", err: errors.New("boom"), path: "/api/transfer", body: `{"sender_id":2}`, wantStatus: http.StatusInternalServerError, wantCode: "TRANSFER_FAILED"},
		{name: "rate limited", err: domain.TooManyAttempts(30), path: "/api/login", body: `{"username":"ana"}`, wantStatus: http.StatusTooManyRequests, wantCode: "TOO_MANY_ATTEMPTS", retryAfter: "30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(NewHandler(failingService{err: tt.err}, nil), RouterOptions{AdminAPIKey: testAdminKey})
			rec := doRequest(t, router, http.MethodPost, tt.path, tt.body, nil)
			body := decodeError(t, rec)
			if rec.Code != tt.wantStatus || body.Code != tt.wantCode {
				t.Fatalf("expected %d %s, got %d %+v", tt.wantStatus, tt.wantCode, rec.Code, body)
			}
			if got := rec.Header().Get("Retry-After"); got != tt.retryAfter {
				t.Fatalf("expected Retry-After %q, got %q", tt.retryAfter, got)
			}
			if strings.Contains(rec.Body.String(), "db down") {
				t.Fatalf("internal cause leaked: %s", rec.Body.String())
			}
		})
	}

	router := NewRouter(NewHandler(failingService{err: errors.New("down")}, nil), RouterOptions{AdminAPIKey: testAdminKey})
	if rec := doRequest(t, router, http.MethodGet, "/health", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from health, got %d", rec.Code)
	}
}
