package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"credit-ledger-bridge/internal/adapter/http/dto"
	"credit-ledger-bridge/internal/core/domain"
	"credit-ledger-bridge/internal/core/ports"
	"credit-ledger-bridge/internal/core/ports/mocks"
	"credit-ledger-bridge/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// --- Auth Handler Tests ---

func TestRegister_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	userID := uuid.New()
	mockAuth.EXPECT().Register(gomock.Any(), ports.RegisterRequest{
		Username: "solarco",
		Password: "password123",
		Name:     "Solar Co",
		Role:     "producer",
	}).Return(&domain.User{
		ID:       userID,
		Username: "solarco",
		Name:     "Solar Co",
		Role:     domain.RoleProducer,
	}, nil)

	body, _ := json.Marshal(dto.RegisterRequest{
		Username: "solarco",
		Password: "password123",
		Name:     "Solar Co",
		Role:     "producer",
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Register(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, userID.String(), data["id"])
	assert.Equal(t, "PRODUCER", data["role"])
	assert.NotContains(t, w.Body.String(), "password")
}

func TestRegister_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewAuthHandler(mocks.NewMockAuthService(ctrl))

	// Empty body => binding error
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader([]byte("{}")))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Register(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegister_ServiceError(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrUsernameExists())

	body, _ := json.Marshal(dto.RegisterRequest{
		Username: "taken",
		Password: "password123",
		Name:     "Taken",
		Role:     "buyer",
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Register(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLogin_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	expiry := time.Now().Add(time.Hour)
	mockAuth.EXPECT().Login(gomock.Any(), "solarco", "password123").Return("jwt-token", expiry, nil)

	body, _ := json.Marshal(dto.LoginRequest{Username: "solarco", Password: "password123"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Login(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "jwt-token", data["token"])
	assert.Equal(t, float64(expiry.Unix()), data["expiry"])
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().Login(gomock.Any(), "solarco", "wrongpass").Return("", time.Time{}, apperror.ErrInvalidCredentials())

	body, _ := json.Marshal(dto.LoginRequest{Username: "solarco", Password: "wrongpass"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Login(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// --- Health Check Tests ---

func TestHealthCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := mocks.NewMockHealthChecker(ctrl)
	ledger := mocks.NewMockHealthChecker(ctrl)
	db.EXPECT().Name().Return("postgresql").AnyTimes()
	ledger.EXPECT().Name().Return("ledger").AnyTimes()

	t.Run("healthy", func(t *testing.T) {
		db.EXPECT().Ping(gomock.Any()).Return(nil)
		ledger.EXPECT().Ping(gomock.Any()).Return(nil)

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)
		HealthCheck(db, ledger)(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"healthy"`)
		assert.Contains(t, w.Body.String(), `"latency_ms"`)
	})

	t.Run("degraded", func(t *testing.T) {
		db.EXPECT().Ping(gomock.Any()).Return(nil)
		ledger.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)
		HealthCheck(db, ledger)(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "connection refused")
	})
}

// --- Router Tests ---

type routerMocks struct {
	router      *gin.Engine
	tokens      *mocks.MockTokenService
	coordinator *mocks.MockCreditCoordinator
	marketplace *mocks.MockMarketplaceService
	facilities  *mocks.MockFacilityService
}

func setupRouter(t *testing.T) *routerMocks {
	ctrl := gomock.NewController(t)
	m := &routerMocks{
		tokens:      mocks.NewMockTokenService(ctrl),
		coordinator: mocks.NewMockCreditCoordinator(ctrl),
		marketplace: mocks.NewMockMarketplaceService(ctrl),
		facilities:  mocks.NewMockFacilityService(ctrl),
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "test_counter_total", Help: "test"}))

	m.router = SetupRouter(RouterDeps{
		AuthSvc:     mocks.NewMockAuthService(ctrl),
		FacilitySvc: m.facilities,
		Coordinator: m.coordinator,
		Marketplace: m.marketplace,
		TokenSvc:    m.tokens,
		Metrics:     reg,
		Logger:      zerolog.Nop(),
	})
	return m
}

// as makes the next bearer token resolve to caller.
func (m *routerMocks) as(caller ports.Caller) {
	m.tokens.EXPECT().Validate("tok").Return(&ports.TokenClaims{UserID: caller.UserID, Role: caller.Role}, nil)
}

func (m *routerMocks) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	r.Header.Set("Authorization", "Bearer tok")
	for i := 0; i+1 < len(headers); i += 2 {
		r.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	m.router.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

var (
	testProducer  = ports.Caller{UserID: uuid.New(), Role: domain.RoleProducer}
	testValidator = ports.Caller{UserID: uuid.New(), Role: domain.RoleValidator}
	testBuyer     = ports.Caller{UserID: uuid.New(), Role: domain.RoleBuyer}
	testAdmin     = ports.Caller{UserID: uuid.New(), Role: domain.RoleAdmin}
)

func TestRouter_RequiresToken(t *testing.T) {
	m := setupRouter(t)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/credits", nil)
	w := httptest.NewRecorder()
	m.router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_SubmitCredit(t *testing.T) {
	m := setupRouter(t)
	m.as(testProducer)

	facilityID := uuid.New()
	m.coordinator.EXPECT().SubmitCredit(gomock.Any(), testProducer, gomock.Any()).DoAndReturn(
		func(_ interface{}, _ ports.Caller, req ports.SubmitCreditRequest) (*domain.Credit, error) {
			assert.Equal(t, facilityID, req.FacilityID)
			assert.True(t, req.Amount.Equal(decimal.RequireFromString("10.5")))
			assert.True(t, req.UnitPrice.Equal(decimal.RequireFromString("12.50")))
			assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), req.ProductionDate)
			assert.Equal(t, "batch-7", req.IdempotencyKey)
			return &domain.Credit{ID: uuid.New(), Status: domain.CreditStatusPending}, nil
		})

	body := `{"facility_id":"` + facilityID.String() + `","amount":"10.5","unit_price":12.50,"production_date":"2026-03-01"}`
	w := m.do(http.MethodPost, "/api/v1/credits", body, "Idempotency-Key", "batch-7")

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "PENDING", data["status"])
}

func TestRouter_SubmitCredit_BadDate(t *testing.T) {
	m := setupRouter(t)
	m.as(testProducer)

	body := `{"facility_id":"` + uuid.NewString() + `","amount":"1","unit_price":"1","production_date":"yesterday"}`
	w := m.do(http.MethodPost, "/api/v1/credits", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "CRD_001", decodeBody(t, w)["error_code"])
}

func TestRouter_ValidatePartialReturnsResumeToken(t *testing.T) {
	m := setupRouter(t)
	m.as(testValidator)

	creditID := uuid.New()
	ledgerID := "lc-9"
	pc := domain.PartialCompletion{
		Stage: domain.StageMarkValidated,
		Resume: domain.ResumeToken{
			CreditID:            creditID,
			Status:              domain.CreditStatusValidated,
			LedgerCreditID:      &ledgerID,
			NeedsReconciliation: true,
		},
	}
	m.coordinator.EXPECT().ValidateCredit(gomock.Any(), testValidator, creditID).
		Return(nil, apperror.ErrValidationPartial(string(pc.Stage), pc, errors.New("timeout")))

	w := m.do(http.MethodPost, "/api/v1/credits/"+creditID.String()+"/validate", "")

	assert.Equal(t, http.StatusAccepted, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, "CRD_010", resp["error_code"])
	details := resp["details"].(map[string]interface{})
	assert.Equal(t, "mark_validated", details["stage"])
	resume := details["resume"].(map[string]interface{})
	assert.Equal(t, "lc-9", resume["ledger_credit_id"])
	assert.Equal(t, true, resume["needs_reconciliation"])
}

func TestRouter_InvalidCreditID(t *testing.T) {
	m := setupRouter(t)
	m.as(testValidator)

	w := m.do(http.MethodPost, "/api/v1/credits/not-a-uuid/validate", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_PurchasePriceMismatch(t *testing.T) {
	m := setupRouter(t)
	m.as(testBuyer)

	creditID := uuid.New()
	m.coordinator.EXPECT().PurchaseCredit(gomock.Any(), testBuyer, gomock.Any()).DoAndReturn(
		func(_ interface{}, _ ports.Caller, req ports.PurchaseCreditRequest) (*ports.Settlement, error) {
			assert.Equal(t, creditID, req.CreditID)
			assert.True(t, req.Amount.Equal(decimal.NewFromInt(10)))
			return nil, apperror.ErrPriceMismatch()
		})

	w := m.do(http.MethodPost, "/api/v1/credits/"+creditID.String()+"/purchase", `{"amount":"10"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "SET_001", decodeBody(t, w)["error_code"])
}

func TestRouter_ReplaySettlement(t *testing.T) {
	m := setupRouter(t)
	m.as(testAdmin)

	creditID := uuid.New()
	buyerID := uuid.New()
	txID := uuid.New()
	m.coordinator.EXPECT().ReplaySettlement(gomock.Any(), testAdmin, ports.ReplaySettlementRequest{
		CreditID:          creditID,
		LedgerTxReference: "tx-4",
		BuyerID:           &buyerID,
	}).Return(&ports.Settlement{Transaction: &domain.Transaction{ID: txID}, TotalPrice: "125.00"}, nil)

	body := `{"ledger_tx_reference":"tx-4","buyer_id":"` + buyerID.String() + `"}`
	w := m.do(http.MethodPost, "/api/v1/credits/"+creditID.String()+"/settlements/replay", body)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "125.00", data["total_price"])
}

func TestRouter_Reattach_RejectsUnsafeID(t *testing.T) {
	m := setupRouter(t)
	m.as(testValidator)

	w := m.do(http.MethodPost, "/api/v1/credits/"+uuid.NewString()+"/ledger-binding", `{"ledger_credit_id":"lc 1; drop"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_Reconcile(t *testing.T) {
	m := setupRouter(t)
	m.as(testValidator)

	creditID := uuid.New()
	m.coordinator.EXPECT().ReconcileCredit(gomock.Any(), testValidator, creditID).Return(&ports.ReconciliationReport{
		Credit: &domain.Credit{ID: creditID},
		Action: domain.ReconcileReattachBinding,
	}, nil)

	w := m.do(http.MethodGet, "/api/v1/credits/"+creditID.String()+"/reconciliation", "")

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "REATTACH_BINDING", data["action"])
}

func TestRouter_ListAvailableFilters(t *testing.T) {
	m := setupRouter(t)
	m.as(testBuyer)

	m.marketplace.EXPECT().ListAvailableCredits(gomock.Any(), testBuyer, gomock.Any()).DoAndReturn(
		func(_ interface{}, _ ports.Caller, f ports.AvailableCreditFilter) ([]domain.Credit, error) {
			require.NotNil(t, f.Source)
			assert.Equal(t, domain.SourceWind, *f.Source)
			require.NotNil(t, f.MaxUnitPrice)
			assert.True(t, f.MaxUnitPrice.Equal(decimal.NewFromInt(20)))
			assert.Nil(t, f.MinAmount)
			return []domain.Credit{}, nil
		})

	w := m.do(http.MethodGet, "/api/v1/credits/available?source=wind&max_unit_price=20", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_ListCredits_BadStatus(t *testing.T) {
	m := setupRouter(t)
	m.as(testBuyer)

	w := m.do(http.MethodGet, "/api/v1/credits?status=SOLD", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_ClearCreditsForbiddenForBuyer(t *testing.T) {
	m := setupRouter(t)
	m.as(testBuyer)
	m.marketplace.EXPECT().ClearCredits(gomock.Any(), testBuyer).Return(int64(0), apperror.ErrForbiddenRole("ADMIN"))

	w := m.do(http.MethodDelete, "/api/v1/credits", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_ClearCredits(t *testing.T) {
	m := setupRouter(t)
	m.as(testAdmin)
	m.marketplace.EXPECT().ClearCredits(gomock.Any(), testAdmin).Return(int64(4), nil)

	w := m.do(http.MethodDelete, "/api/v1/credits", "")
	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(4), data["deleted"])
}

func TestRouter_ListTransactionsPaging(t *testing.T) {
	m := setupRouter(t)
	m.as(testBuyer)
	m.marketplace.EXPECT().ListTransactions(gomock.Any(), testBuyer, 2, 20).Return([]domain.Transaction{}, int64(25), nil)

	w := m.do(http.MethodGet, "/api/v1/transactions?page=2&page_size=500", "")

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(25), data["total"])
	assert.Equal(t, float64(2), data["page"])
}

func TestRouter_RegisterFacility(t *testing.T) {
	m := setupRouter(t)
	m.as(testProducer)
	m.facilities.EXPECT().RegisterFacility(gomock.Any(), testProducer, gomock.Any()).DoAndReturn(
		func(_ interface{}, _ ports.Caller, req ports.RegisterFacilityRequest) (*domain.Facility, error) {
			assert.Equal(t, "Ridge", req.Name)
			assert.Equal(t, "Porto", req.Location)
			assert.Equal(t, "wind", req.Source)
			assert.True(t, req.Capacity.Equal(decimal.NewFromInt(300)))
			return &domain.Facility{ID: uuid.New(), Name: "Ridge"}, nil
		})

	w := m.do(http.MethodPost, "/api/v1/facilities", `{"name":"Ridge","location":"Porto","source":"wind","capacity":300}`)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRouter_StatsAndMetrics(t *testing.T) {
	m := setupRouter(t)
	m.as(testAdmin)
	m.marketplace.EXPECT().GetStats(gomock.Any(), testAdmin).Return(&ports.Stats{Users: 3, Credits: 7}, nil)

	w := m.do(http.MethodGet, "/api/v1/stats", "")
	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(7), data["credits"])

	mw := httptest.NewRecorder()
	m.router.ServeHTTP(mw, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, mw.Code)
	assert.Contains(t, mw.Body.String(), "test_counter_total")
}
