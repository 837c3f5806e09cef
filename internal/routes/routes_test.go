package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IAmShivay/ANIME-sub001/internal/handlers"
	"github.com/IAmShivay/ANIME-sub001/internal/models"
	"github.com/IAmShivay/ANIME-sub001/internal/services"
	"github.com/IAmShivay/ANIME-sub001/internal/store/memstore"
	"github.com/IAmShivay/ANIME-sub001/internal/utils"
)

const testSecret = "routes-test-secret"

type testServer struct {
	app   *fiber.App
	store *memstore.Store
	user  *models.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	st := memstore.New()
	settings := services.NewSettingsService(st)
	holds := services.NewReservationService(services.NewMemoryHoldStore(), st, time.Minute)
	notifier := services.NewOrderNotifier(nil, nil, nil, log)
	gateway := services.NewGuardedGateway(services.NewRazorpayService("", "", ""), log)

	hash, err := utils.HashPassword("kunai-throw-42")
	require.NoError(t, err)
	user := &models.User{Name: "Naruto", Email: "naruto@example.com", PasswordHash: hash, Role: models.RoleCustomer, IsVerified: true}
	require.NoError(t, st.CreateUser(context.Background(), user))

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(log)})
	Register(app, Deps{
		JWTSecret: testSecret,
		Users:     st,
		Auth:      services.NewAuthService(st, services.NewOTPService(st, nil, log), testSecret, time.Hour, nil, log),
		Products:  services.NewProductService(st, nil),
		Checkout: services.NewCheckoutService(services.CheckoutDeps{
			Products:        st,
			Orders:          st,
			Settings:        settings,
			Gateway:         gateway,
			Holds:           holds,
			Notifier:        notifier,
			Logger:          log,
			StrictInventory: true,
		}),
		Orders:   services.NewOrderService(services.OrderServiceDeps{Orders: st, Products: st, Notifier: notifier, Logger: log}),
		Holds:    holds,
		Reviews:  services.NewReviewService(st, st, st, st),
		Settings: settings,
		Gateway:  gateway,
		Logger:   log,
	})
	t.Cleanup(notifier.Wait)

	return &testServer{app: app, store: st, user: user}
}

func (s *testServer) token(t *testing.T, role string) string {
	t.Helper()
	return tokenFor(t, s.user.ID, role)
}

func tokenFor(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	token, err := utils.GenerateToken(testSecret, userID, role, time.Hour)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (s *testServer) addProduct(t *testing.T, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		Slug:          "sharingan-tee-" + uuid.NewString()[:8],
		Name:          "Sharingan Tee",
		Price:         1000,
		Stock:         stock,
		TrackQuantity: true,
		IsActive:      true,
	}
	require.NoError(t, s.store.CreateProduct(context.Background(), p))
	return p
}

func orderBody(p *models.Product, qty int, method string, total float64) map[string]any {
	address := map[string]any{
		"fullName":   "Naruto Uzumaki",
		"phone":      "9876543210",
		"line1":      "7 Ramen Lane",
		"city":       "Mumbai",
		"postalCode": "400001",
		"country":    "IN",
	}
	return map[string]any{
		"items":           []map[string]any{{"productId": p.ID.String(), "quantity": qty}},
		"shippingAddress": address,
		"billingAddress":  address,
		"paymentMethod":   method,
		"pricing":         map[string]any{"total": total},
	}
}

func TestCreateOrderCOD(t *testing.T) {
	s := newTestServer(t)
	p := s.addProduct(t, 3)

	status, body := s.do(t, http.MethodPost, "/api/orders", s.token(t, models.RoleCustomer), orderBody(p, 1, "cod", 1279))
	require.Equal(t, fiber.StatusCreated, status, body)
	assert.Equal(t, true, body["success"])

	data := body["data"].(map[string]any)
	assert.Regexp(t, `^ORD-`, data["orderNumber"])
	assert.Equal(t, "pending", data["status"])

	got, err := s.store.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stock)

	status, body = s.do(t, http.MethodGet, "/api/orders", s.token(t, models.RoleCustomer), nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 1)
	assert.EqualValues(t, 1, body["pagination"].(map[string]any)["total"])
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	s := newTestServer(t)
	p := s.addProduct(t, 1)

	status, body := s.do(t, http.MethodPost, "/api/orders", s.token(t, models.RoleCustomer), orderBody(p, 2, "cod", 2459))
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "availability", body["reason"])
	assert.Equal(t, p.ID.String(), body["productId"])
	assert.EqualValues(t, 1, body["available"])
	assert.EqualValues(t, 2, body["requested"])
}

func TestCreateOrderTamperedTotal(t *testing.T) {
	s := newTestServer(t)
	p := s.addProduct(t, 3)

	status, body := s.do(t, http.MethodPost, "/api/orders", s.token(t, models.RoleCustomer), orderBody(p, 1, "cod", 10))
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "integrity", body["reason"])
}

func TestCreateOrderGatewayUnavailable(t *testing.T) {
	s := newTestServer(t)
	p := s.addProduct(t, 3)

	// 1000 + 99 shipping + 180 tax
	status, body := s.do(t, http.MethodPost, "/api/orders", s.token(t, models.RoleCustomer), orderBody(p, 1, "online", 1279))
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Equal(t, true, body["suggestCOD"])

	got, err := s.store.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/api/orders", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, false, body["success"])

	status, _ = s.do(t, http.MethodGet, "/api/admin/orders", s.token(t, models.RoleCustomer), nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = s.do(t, http.MethodGet, "/api/admin/orders", s.token(t, models.RoleAdmin), nil)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestAdminStatusUpdate(t *testing.T) {
	s := newTestServer(t)
	p := s.addProduct(t, 3)

	_, body := s.do(t, http.MethodPost, "/api/orders", s.token(t, models.RoleCustomer), orderBody(p, 1, "cod", 1279))
	orderID := body["data"].(map[string]any)["orderId"].(string)
	path := "/api/admin/orders/" + orderID + "/status"

	status, body := s.do(t, http.MethodPatch, path, s.token(t, models.RoleAdmin), map[string]any{"status": "delivered"})
	assert.Equal(t, fiber.StatusOK, status, body)

	status, body = s.do(t, http.MethodPatch, path, s.token(t, models.RoleAdmin), map[string]any{"status": "pending"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{"email": "naruto@example.com", "password": "kunai-throw-42"})
	require.Equal(t, fiber.StatusOK, status, body)
	token := body["data"].(map[string]any)["token"].(string)

	claims, err := utils.ParseToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, s.user.ID, claims.UserID)

	status, _ = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{"email": "naruto@example.com", "password": "wrong-password"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestSettingsAndCatalogArePublic(t *testing.T) {
	s := newTestServer(t)
	s.addProduct(t, 3)

	status, body := s.do(t, http.MethodGet, "/api/settings", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "INR", body["data"].(map[string]any)["defaultCurrency"])

	status, body = s.do(t, http.MethodGet, "/api/products", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["data"], 1)
}

func TestCreateOrderMalformedBody(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader([]byte(`{"items":`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token(t, models.RoleCustomer))
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "validation", body["reason"])
}

func TestHoldsCannotBeReleasedByAnotherUser(t *testing.T) {
	s := newTestServer(t)
	p := s.addProduct(t, 2)
	owner := s.token(t, models.RoleCustomer)
	intruder := tokenFor(t, uuid.New(), models.RoleCustomer)
	hold := map[string]any{
		"session": "tab-1",
		"items":   []map[string]any{{"productId": p.ID.String(), "quantity": 2}},
	}

	status, body := s.do(t, http.MethodPost, "/api/holds", owner, hold)
	require.Equal(t, fiber.StatusCreated, status, body)

	status, _ = s.do(t, http.MethodDelete, "/api/holds/tab-1", intruder, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, body = s.do(t, http.MethodPost, "/api/holds", intruder, hold)
	assert.Equal(t, fiber.StatusConflict, status, "the owner's hold survives the intruder's release")
	assert.EqualValues(t, 0, body["available"])

	status, _ = s.do(t, http.MethodDelete, "/api/holds/tab-1", owner, nil)
	require.Equal(t, fiber.StatusOK, status)

	status, _ = s.do(t, http.MethodPost, "/api/holds", intruder, hold)
	assert.Equal(t, fiber.StatusCreated, status)
}

func TestHealthReportsGatewayBreaker(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, "ok", data["status"])
	breaker := data["paymentGateway"].(map[string]any)
	assert.Equal(t, "closed", breaker["state"])
	assert.Equal(t, "payment-gateway-razorpay", breaker["name"])
}
