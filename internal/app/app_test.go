package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"credit-ledger-bridge/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Mode: "test"},
		JWT: config.JWTConfig{
			Secret: "test-jwt-secret-key-32bytes!!",
			Expiry: time.Hour,
			Issuer: "test-issuer",
		},
		Store: config.StoreConfig{Driver: config.DriverMemory},
		Ledger: config.LedgerConfig{
			Driver:         config.DriverMemory,
			Timeout:        time.Second,
			OpeningBalance: 1_000_000,
		},
		Currency:    config.CurrencyConfig{Code: "USD", Scale: 2},
		Coordinator: config.CoordinatorConfig{LockTTL: time.Minute, IdempotencyTTL: time.Hour},
	}
}

type testServer struct {
	server *httptest.Server
	app    *App
}

func newTestServer(t *testing.T, withRedis bool) *testServer {
	t.Helper()
	cfg := testConfig()

	if withRedis {
		mr := miniredis.RunT(t)
		port, err := strconv.Atoi(mr.Port())
		require.NoError(t, err)
		cfg.Redis = config.RedisConfig{Enabled: true, Host: mr.Host(), Port: port}
	}

	a, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	srv := httptest.NewServer(a.Router())
	t.Cleanup(func() {
		srv.Close()
		a.Close()
	})
	return &testServer{server: srv, app: a}
}

func (s *testServer) call(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.server.URL+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

// signup registers a user with role and returns a bearer token.
func (s *testServer) signup(t *testing.T, username, role string) string {
	t.Helper()
	code, _ := s.call(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username,
		"password": "StrongPass123!",
		"name":     username,
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, code)

	code, body := s.call(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": "StrongPass123!",
	})
	require.Equal(t, http.StatusOK, code)
	return body["data"].(map[string]interface{})["token"].(string)
}

func data(body map[string]interface{}) map[string]interface{} {
	d, _ := body["data"].(map[string]interface{})
	return d
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.Secret = ""

	_, err := New(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.secret")
}

func TestHealth_ReportsConfiguredDependencies(t *testing.T) {
	s := newTestServer(t, true)

	code, body := s.call(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	deps := body["dependencies"].(map[string]interface{})
	assert.Contains(t, deps, "redis")
	assert.Contains(t, deps, "ledger")
}

func TestCreditLifecycle_EndToEnd(t *testing.T) {
	for _, withRedis := range []bool{true, false} {
		t.Run("redis="+strconv.FormatBool(withRedis), func(t *testing.T) {
			s := newTestServer(t, withRedis)

			producer := s.signup(t, "solarco", "producer")
			validator := s.signup(t, "verifier", "validator")
			buyer := s.signup(t, "greenbuyer", "buyer")

			code, body := s.call(t, http.MethodPost, "/api/v1/facilities", producer, map[string]interface{}{
				"name":     "Sunfield",
				"location": "Seville",
				"source":   "solar",
				"capacity": "500",
			})
			require.Equal(t, http.StatusCreated, code)
			facilityID := data(body)["id"].(string)

			code, body = s.call(t, http.MethodPost, "/api/v1/credits", producer, map[string]interface{}{
				"facility_id":     facilityID,
				"amount":          "10",
				"unit_price":      "12.50",
				"production_date": "2024-01-15",
			})
			require.Equal(t, http.StatusCreated, code)
			credit := data(body)
			creditID := credit["id"].(string)
			assert.Equal(t, "PENDING", credit["status"])

			// Buyers cannot validate.
			code, _ = s.call(t, http.MethodPost, "/api/v1/credits/"+creditID+"/validate", buyer, nil)
			assert.Equal(t, http.StatusForbidden, code)

			code, body = s.call(t, http.MethodPost, "/api/v1/credits/"+creditID+"/validate", validator, nil)
			require.Equal(t, http.StatusOK, code)
			assert.Equal(t, "SETTLED_ON_CHAIN", data(body)["status"])
			assert.NotEmpty(t, data(body)["ledger_id"])

			code, body = s.call(t, http.MethodGet, "/api/v1/credits/available", buyer, nil)
			require.Equal(t, http.StatusOK, code)
			assert.Len(t, body["data"], 1)

			code, body = s.call(t, http.MethodPost, "/api/v1/credits/"+creditID+"/purchase", buyer, map[string]string{"amount": "10"})
			require.Equal(t, http.StatusCreated, code)
			settlement := data(body)
			assert.Equal(t, "125.00 USD", settlement["total_price"])
			assert.Equal(t, "RETIRED", settlement["credit"].(map[string]interface{})["status"])

			// A second purchase of the same lot is refused before the ledger.
			code, body = s.call(t, http.MethodPost, "/api/v1/credits/"+creditID+"/purchase", buyer, map[string]string{"amount": "10"})
			assert.Equal(t, http.StatusConflict, code)
			assert.Equal(t, "CRD_003", body["error_code"])

			code, body = s.call(t, http.MethodGet, "/api/v1/transactions", buyer, nil)
			require.Equal(t, http.StatusOK, code)
			assert.Equal(t, float64(1), data(body)["total"])

			code, body = s.call(t, http.MethodGet, "/api/v1/credits/"+creditID+"/reconciliation", validator, nil)
			require.Equal(t, http.StatusOK, code)
			assert.Equal(t, "NONE", data(body)["action"])
		})
	}
}

func TestMetrics_CountTransitions(t *testing.T) {
	s := newTestServer(t, false)
	producer := s.signup(t, "windco", "producer")

	code, body := s.call(t, http.MethodPost, "/api/v1/facilities", producer, map[string]interface{}{
		"name":     "Ridge",
		"source":   "wind",
		"capacity": 300,
	})
	require.Equal(t, http.StatusCreated, code)

	code, body = s.call(t, http.MethodPost, "/api/v1/credits", producer, map[string]interface{}{
		"facility_id":     data(body)["id"],
		"amount":          "1",
		"unit_price":      "3",
		"production_date": "2024-02-01",
	})
	require.Equal(t, http.StatusCreated, code)

	validator := s.signup(t, "verifier", "validator")
	code, _ = s.call(t, http.MethodPost, "/api/v1/credits/"+data(body)["id"].(string)+"/validate", validator, nil)
	require.Equal(t, http.StatusOK, code)

	resp, err := http.Get(s.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "go_goroutines")
	assert.Contains(t, string(raw), `credit_ledger_credit_transitions_total{to="SETTLED_ON_CHAIN"} 1`)
	assert.Contains(t, string(raw), `credit_ledger_ledger_calls_total{op="mint",outcome="ok"} 1`)
}
