package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/papertrade/internal/database"
	"github.com/aristath/papertrade/internal/events"
	"github.com/aristath/papertrade/internal/modules/portfolio"
	"github.com/aristath/papertrade/internal/modules/snapshots"
	testingpkg "github.com/aristath/papertrade/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router   *chi.Mux
	oracle   *testingpkg.StaticOracle
	accounts *portfolio.AccountService
}

func setupServer(t *testing.T) *testServer {
	db := testingpkg.NewTestDB(t, database.NamePortfolio)
	oracle := testingpkg.NewStaticOracle(testingpkg.OldPrices)
	bus := events.NewBus(zerolog.Nop())

	accounts := portfolio.NewAccountService(
		portfolio.NewRepository(db.Conn(), zerolog.Nop()), oracle, bus, 10000, zerolog.Nop())
	svc := snapshots.NewService(snapshots.NewRepository(db.Conn(), zerolog.Nop()), accounts, oracle, bus, zerolog.Nop())

	router := chi.NewRouter()
	NewHandler(svc, zerolog.Nop()).RegisterRoutes(router)
	return &testServer{router: router, oracle: oracle, accounts: accounts}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) investedUser(t *testing.T) string {
	ctx := context.Background()
	user, err := s.accounts.Signup(ctx, "alice")
	require.NoError(t, err)
	_, err = s.accounts.Buy(ctx, user.ID, "AAPL", 10)
	require.NoError(t, err)
	return user.ID
}

func TestHandlePreview(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodPost, "/snapshots/preview", SnapshotRequest{
		UserID:    "avery123",
		Portfolio: map[string]float64{"AAPL": 2, "MSFT": 1},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "avery123", body["user_id"])
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, body["date"])
	assert.Equal(t, map[string]interface{}{"AAPL": 180.0, "MSFT": 320.0}, body["prices"])

	rec = s.do(t, http.MethodPost, "/snapshots/preview", SnapshotRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStoreAndList(t *testing.T) {
	s := setupServer(t)
	userID := s.investedUser(t)

	rec := s.do(t, http.MethodPost, "/snapshots", SnapshotRequest{UserID: userID})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPost, "/snapshots", SnapshotRequest{UserID: userID})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/users/"+userID+"/snapshots", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Snapshots []snapshots.Snapshot `json:"snapshots"`
		Count     int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Snapshots, 1)
	assert.Equal(t, map[string]float64{"AAPL": 180}, body.Snapshots[0].Prices)
}

func TestHandleStoreEmptyPortfolio(t *testing.T) {
	s := setupServer(t)
	user, err := s.accounts.Signup(context.Background(), "idle")
	require.NoError(t, err)

	rec := s.do(t, http.MethodPost, "/snapshots", SnapshotRequest{UserID: user.ID})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandlePreviewInvalidQuantity(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodPost, "/snapshots/preview", SnapshotRequest{
		UserID:    "anyone",
		Portfolio: map[string]float64{"AAPL": 0},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleComputeReturns(t *testing.T) {
	s := setupServer(t)

	payload := map[string]interface{}{
		"snapshot_old": map[string]interface{}{"prices": testingpkg.OldPrices},
		"snapshot_new": map[string]interface{}{"prices": testingpkg.NewPrices},
		"portfolio":    map[string]float64{"AAPL": 3, "MSFT": 1},
	}
	rec := s.do(t, http.MethodPost, "/returns", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"returns": {"AAPL": 5.56, "MSFT": -3.13, "Total Return": 2.33}}`, rec.Body.String())
}

func TestHandleComputeReturnsErrors(t *testing.T) {
	s := setupServer(t)

	payload := map[string]interface{}{
		"snapshot_old": map[string]interface{}{"prices": map[string]float64{"AAPL": 0, "MSFT": 320}},
		"snapshot_new": map[string]interface{}{"prices": testingpkg.NewPrices},
		"portfolio":    map[string]float64{"AAPL": 1},
	}
	rec := s.do(t, http.MethodPost, "/returns", payload)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "zero_price", body["kind"])

	payload["snapshot_old"] = map[string]interface{}{"prices": map[string]float64{"MSFT": 320}}
	rec = s.do(t, http.MethodPost, "/returns", payload)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleUserReturns(t *testing.T) {
	s := setupServer(t)
	userID := s.investedUser(t)

	rec := s.do(t, http.MethodGet, "/users/"+userID+"/returns?from=2025-06-24", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/users/"+userID+"/returns?from=yesterday&to=2025-06-25", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/users/"+userID+"/returns?from=2025-06-24&to=2025-06-25", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
