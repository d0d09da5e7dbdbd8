package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/loadmarket/credits/internal/store/gormstore"
	"github.com/loadmarket/credits/pkg/credits"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testSigningKey = "test-signing-key"
	testIssuer     = "loadmarket-test"
)

var apiNow = time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

type apiFixture struct {
	router *gin.Engine
	db     *gorm.DB
	store  *gormstore.Store
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, gormstore.Migrate(db))
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := gormstore.New(db)
	service, err := credits.NewService(store, func() time.Time { return apiNow })
	require.NoError(t, err)

	cfg := Config{
		JWTSigningKey: testSigningKey,
		JWTIssuer:     testIssuer,
	}
	require.NoError(t, cfg.Validate())
	router := NewRouter(cfg, service, zap.NewNop(), nil)
	return &apiFixture{router: router, db: db, store: store}
}

func (fixture *apiFixture) seedUser(t *testing.T, userID string, balance int64) {
	t.Helper()
	require.NoError(t, fixture.db.Create(&gormstore.Account{
		UserID:             userID,
		Credits:            balance,
		TotalCreditsEarned: balance,
	}).Error)
}

func (fixture *apiFixture) seedSetting(t *testing.T, key string, value string, dataType string) {
	t.Helper()
	require.NoError(t, fixture.db.Create(&gormstore.Setting{Key: key, Value: value, DataType: dataType}).Error)
}

func signToken(t *testing.T, subject string, admin bool) string {
	t.Helper()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    testIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Admin: admin,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSigningKey))
	require.NoError(t, err)
	return token
}

func (fixture *apiFixture) do(t *testing.T, method string, path string, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	request, err := http.NewRequestWithContext(context.Background(), method, path, reader)
	require.NoError(t, err)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	fixture.router.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	decoded := map[string]any{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &decoded))
	return decoded
}

func TestRequestsWithoutTokenRejected(t *testing.T) {
	fixture := newAPIFixture(t)

	recorder := fixture.do(t, http.MethodGet, "/api/v1/balance", "", nil)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = fixture.do(t, http.MethodGet, "/api/v1/balance", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestTokenFromWrongIssuerRejected(t *testing.T) {
	fixture := newAPIFixture(t)
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "somewhere-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSigningKey))
	require.NoError(t, err)

	recorder := fixture.do(t, http.MethodGet, "/api/v1/balance", token, nil)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestHealthEndpointIsPublic(t *testing.T) {
	fixture := newAPIFixture(t)
	recorder := fixture.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestBalanceEndpoint(t *testing.T) {
	fixture := newAPIFixture(t)
	fixture.seedUser(t, "user-1", 120)
	token := signToken(t, "user-1", false)

	recorder := fixture.do(t, http.MethodGet, "/api/v1/balance", token, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	body := decodeBody(t, recorder)
	require.Equal(t, float64(120), body["credits"])

	recorder = fixture.do(t, http.MethodGet, "/api/v1/balance", signToken(t, "nobody", false), nil)
	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestEnsureAccountEndpoint(t *testing.T) {
	fixture := newAPIFixture(t)
	token := signToken(t, "fresh-user", false)

	recorder := fixture.do(t, http.MethodPost, "/api/v1/account", token, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = fixture.do(t, http.MethodGet, "/api/v1/balance", token, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	body := decodeBody(t, recorder)
	require.Equal(t, float64(0), body["credits"])
}

func TestChargeEndpoint(t *testing.T) {
	fixture := newAPIFixture(t)
	fixture.seedUser(t, "user-1", 100)
	fixture.seedSetting(t, "post_costs.job", "20", "number")
	require.NoError(t, fixture.db.Create(&gormstore.Job{UserID: "user-1", Title: "Dispatcher", CreatedAt: apiNow}).Error)
	token := signToken(t, "user-1", false)

	recorder := fixture.do(t, http.MethodPost, "/api/v1/posts/job/1/charge", token, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	body := decodeBody(t, recorder)
	require.Equal(t, float64(80), body["new_balance"])
	require.Equal(t, float64(20), body["cost"])
}

func TestChargeEndpointInsufficientBalance(t *testing.T) {
	fixture := newAPIFixture(t)
	fixture.seedUser(t, "user-1", 5)
	fixture.seedSetting(t, "post_costs.job", "20", "number")
	token := signToken(t, "user-1", false)

	recorder := fixture.do(t, http.MethodPost, "/api/v1/posts/job/1/charge", token, nil)
	require.Equal(t, http.StatusPaymentRequired, recorder.Code)
	body := decodeBody(t, recorder)
	require.Equal(t, float64(20), body["required"])
	require.Equal(t, float64(5), body["available"])
	require.Equal(t, float64(15), body["shortfall"])
}

func TestChargeEndpointUnknownKind(t *testing.T) {
	fixture := newAPIFixture(t)
	fixture.seedUser(t, "user-1", 100)
	token := signToken(t, "user-1", false)

	recorder := fixture.do(t, http.MethodPost, "/api/v1/posts/vehicle/1/charge", token, nil)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestPremiumEndpointLifecycle(t *testing.T) {
	fixture := newAPIFixture(t)
	fixture.seedUser(t, "user-1", 200)
	fixture.seedSetting(t, "premium_costs.top_24h", "50", "number")
	require.NoError(t, fixture.db.Create(&gormstore.Job{UserID: "user-1", Title: "Dispatcher", CreatedAt: apiNow}).Error)
	token := signToken(t, "user-1", false)

	recorder := fixture.do(t, http.MethodPost, "/api/v1/posts/job/1/premium", token,
		map[string]any{"premium_type": "top", "duration_hours": 24})
	require.Equal(t, http.StatusOK, recorder.Code)
	body := decodeBody(t, recorder)
	require.Equal(t, float64(50), body["cost"])
	require.NotEmpty(t, body["premium_id"])

	recorder = fixture.do(t, http.MethodPost, "/api/v1/posts/job/1/premium", token,
		map[string]any{"premium_type": "top", "duration_hours": 24})
	require.Equal(t, http.StatusConflict, recorder.Code)

	recorder = fixture.do(t, http.MethodDelete, "/api/v1/posts/job/1", token, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = fixture.do(t, http.MethodGet, "/api/v1/balance", token, nil)
	body = decodeBody(t, recorder)
	require.Equal(t, float64(150), body["credits"], "deleting a boosted post must not refund")
}

func TestPremiumEndpointRejectsUnknownTier(t *testing.T) {
	fixture := newAPIFixture(t)
	fixture.seedUser(t, "user-1", 200)
	token := signToken(t, "user-1", false)

	recorder := fixture.do(t, http.MethodPost, "/api/v1/posts/job/1/premium", token,
		map[string]any{"premium_type": "sparkle"})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHistoryEndpoint(t *testing.T) {
	fixture := newAPIFixture(t)
	fixture.seedUser(t, "user-1", 100)
	fixture.seedSetting(t, "post_costs.load", "10", "number")
	require.NoError(t, fixture.db.Create(&gormstore.Load{UserID: "user-1", Title: "Grain to Omaha", CreatedAt: apiNow}).Error)
	token := signToken(t, "user-1", false)

	recorder := fixture.do(t, http.MethodPost, "/api/v1/posts/load/1/charge", token, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = fixture.do(t, http.MethodGet, "/api/v1/history?limit=10", token, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	body := decodeBody(t, recorder)
	entries, ok := body["entries"].([]any)
	require.True(t, ok)
	require.Len(t, entries, 1)
	entry := entries[0].(map[string]any)
	require.Equal(t, "spend", entry["type"])
	require.Equal(t, float64(-10), entry["amount"])
	require.Equal(t, "load", entry["reference_type"])
}

func TestUserPostsEndpoint(t *testing.T) {
	fixture := newAPIFixture(t)
	fixture.seedUser(t, "user-1", 0)
	require.NoError(t, fixture.db.Create(&gormstore.Load{UserID: "user-1", Title: "Visible", CreatedAt: apiNow}).Error)
	require.NoError(t, fixture.db.Create(&gormstore.Load{UserID: "user-1", Title: "Hidden", CreatedAt: apiNow}).Error)
	// A zero-valued bool on a default:true column is dropped at insert, so the
	// flag is flipped after the fact.
	require.NoError(t, fixture.db.Model(&gormstore.Load{}).Where("id = ?", 2).Update("is_active", false).Error)
	token := signToken(t, "user-1", false)

	recorder := fixture.do(t, http.MethodGet, "/api/v1/posts", token, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	body := decodeBody(t, recorder)
	active := body["active"].(map[string]any)
	inactive := body["inactive"].(map[string]any)
	require.Len(t, active["load"], 1)
	require.Len(t, inactive["load"], 1)
}

func TestStatusEndpoint(t *testing.T) {
	fixture := newAPIFixture(t)
	fixture.seedUser(t, "user-1", 0)
	require.NoError(t, fixture.db.Create(&gormstore.Job{UserID: "user-1", Title: "Dispatcher", CreatedAt: apiNow}).Error)
	token := signToken(t, "user-1", false)

	recorder := fixture.do(t, http.MethodPatch, "/api/v1/posts/job/1/status", token,
		map[string]any{"status": "filled"})
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = fixture.do(t, http.MethodPatch, "/api/v1/posts/job/99/status", token,
		map[string]any{"status": "filled"})
	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestRechargeEndpoint(t *testing.T) {
	fixture := newAPIFixture(t)
	fixture.seedUser(t, "user-1", 0)
	fixture.seedSetting(t, "recharge_rates", `{"10":100,"25":275}`, "json")
	token := signToken(t, "user-1", false)

	recorder := fixture.do(t, http.MethodPost, "/api/v1/recharge", token, map[string]any{"amount": 25})
	require.Equal(t, http.StatusOK, recorder.Code)
	body := decodeBody(t, recorder)
	require.Equal(t, float64(275), body["credits_granted"])
	require.Equal(t, float64(275), body["new_balance"])

	recorder = fixture.do(t, http.MethodPost, "/api/v1/recharge", token, map[string]any{"amount": 33})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestSettingEndpoint(t *testing.T) {
	fixture := newAPIFixture(t)
	fixture.seedUser(t, "user-1", 0)
	fixture.seedSetting(t, "post_costs.job", "20", "number")
	token := signToken(t, "user-1", false)

	recorder := fixture.do(t, http.MethodGet, "/api/v1/settings/post_costs.job", token, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	body := decodeBody(t, recorder)
	require.Equal(t, float64(20), body["value"])

	recorder = fixture.do(t, http.MethodGet, "/api/v1/settings/missing", token, nil)
	require.Equal(t, http.StatusInternalServerError, recorder.Code)
}

func TestAdminAdjustRequiresAdminClaim(t *testing.T) {
	fixture := newAPIFixture(t)
	fixture.seedUser(t, "user-1", 100)

	recorder := fixture.do(t, http.MethodPost, "/api/v1/admin/adjust", signToken(t, "user-1", false),
		map[string]any{"user_id": "user-1", "amount": -20})
	require.Equal(t, http.StatusForbidden, recorder.Code)

	recorder = fixture.do(t, http.MethodPost, "/api/v1/admin/adjust", signToken(t, "operator", true),
		map[string]any{"user_id": "user-1", "amount": -20, "reason": "support ticket"})
	require.Equal(t, http.StatusOK, recorder.Code)
	body := decodeBody(t, recorder)
	require.Equal(t, float64(80), body["new_balance"])
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{JWTSigningKey: "key"}
	require.NoError(t, cfg.Validate())
	require.Equal(t, ":8080", cfg.ListenAddr)
	require.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	require.Equal(t, "loadmarket", cfg.JWTIssuer)

	empty := Config{}
	require.Error(t, empty.Validate())
}
