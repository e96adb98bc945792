package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cachememory "github.com/kolwager/kolwager/internal/cache/memory"
	"github.com/kolwager/kolwager/internal/domain"
	"github.com/kolwager/kolwager/internal/server/handler"
	"github.com/kolwager/kolwager/internal/service"
	storememory "github.com/kolwager/kolwager/internal/store/memory"
)

// newTestMux wires the handlers against the in-process backends and registers
// the same routes the server does.
func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	positionStore := storememory.NewPositionStore()
	marketStore := storememory.NewMarketStore(positionStore)
	settlementStore := storememory.NewSettlementStore()
	auditStore := storememory.NewAuditStore()
	bus := cachememory.NewSignalBus()

	settlementSvc := service.NewSettlementService(settlementStore, positionStore, bus, auditStore, logger)
	marketSvc := service.NewMarketService(
		marketStore,
		cachememory.NewQuoteCache(),
		bus,
		auditStore,
		cachememory.NewLockManager(),
		settlementSvc,
		logger,
	)
	positionSvc := service.NewPositionService(positionStore, marketStore, logger)

	markets := handler.NewMarketHandler(marketSvc, logger)
	stakes := handler.NewStakeHandler(marketSvc, logger)
	positions := handler.NewPositionHandler(positionSvc, logger)
	settlements := handler.NewSettlementHandler(settlementSvc, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/markets", markets.ListMarkets)
	mux.HandleFunc("POST /api/markets", markets.CreateMarket)
	mux.HandleFunc("GET /api/markets/{id}", markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/pricing", markets.GetPricing)
	mux.HandleFunc("POST /api/markets/{id}/resolve", markets.ResolveMarket)
	mux.HandleFunc("POST /api/markets/{id}/stakes", stakes.PlaceStake)
	mux.HandleFunc("GET /api/markets/{id}/settlement", settlements.GetSettlement)
	mux.HandleFunc("POST /api/markets/{id}/claim", settlements.ClaimPayout)
	mux.HandleFunc("GET /api/positions", positions.ListPositions)
	mux.HandleFunc("GET /api/participants/{id}/stats", positions.GetStats)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func createTestMarket(t *testing.T, mux *http.ServeMux) domain.Market {
	t.Helper()
	rec := doJSON(t, mux, http.MethodPost, "/api/markets", domain.MarketSpec{
		Title:              "Will the KOL's next video pass 2M views in a week?",
		Description:        "View counter on the platform, seven days after upload.",
		Category:           domain.CategoryKOL,
		ResolutionCriteria: "Public view counter at the deadline.",
		Creator:            "alice",
		EndTime:            time.Now().Add(48 * time.Hour),
		SeedYesPool:        10,
		SeedNoPool:         10,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var market domain.Market
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &market))
	return market
}

func TestCreateAndGetMarket(t *testing.T) {
	mux := newTestMux(t)
	market := createTestMarket(t, mux)

	rec := doJSON(t, mux, http.MethodGet, "/api/markets/"+market.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.Market
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, market.ID, got.ID)
	assert.Equal(t, domain.MarketStatusActive, got.Status)
}

func TestCreateMarketBadRequest(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/markets", domain.MarketSpec{
		Category: domain.CategoryOther,
		Creator:  "alice",
		EndTime:  time.Now().Add(time.Hour),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMarketNotFound(t *testing.T) {
	mux := newTestMux(t)
	rec := doJSON(t, mux, http.MethodGet, "/api/markets/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListMarkets(t *testing.T) {
	mux := newTestMux(t)
	createTestMarket(t, mux)
	createTestMarket(t, mux)

	rec := doJSON(t, mux, http.MethodGet, "/api/markets?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Markets []domain.Market `json:"markets"`
		Total   int64           `json:"total"`
		Limit   int             `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Markets, 1)
	assert.Equal(t, int64(2), resp.Total)
	assert.Equal(t, 1, resp.Limit)
}

func TestPlaceStakeEndpoint(t *testing.T) {
	mux := newTestMux(t)
	market := createTestMarket(t, mux)

	rec := doJSON(t, mux, http.MethodPost, "/api/markets/"+market.ID+"/stakes", map[string]any{
		"participant": "bob",
		"side":        "yes",
		"amount":      5,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Position domain.Position `json:"position"`
		Market   domain.Market   `json:"market"`
		Prices   domain.Quote    `json:"prices"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InDelta(t, 10.0, resp.Position.Shares, 1e-9)
	assert.Equal(t, 15.0, resp.Market.YesPool)
	assert.InDelta(t, 0.6, resp.Prices.Yes, 1e-9)
}

func TestPlaceStakeValidationErrors(t *testing.T) {
	mux := newTestMux(t)
	market := createTestMarket(t, mux)

	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{"missing participant", map[string]any{"side": "yes", "amount": 5}, http.StatusBadRequest},
		{"bad side", map[string]any{"participant": "bob", "side": "maybe", "amount": 5}, http.StatusBadRequest},
		{"zero amount", map[string]any{"participant": "bob", "side": "yes", "amount": 0}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, mux, http.MethodPost, "/api/markets/"+market.ID+"/stakes", tc.body)
			assert.Equal(t, tc.want, rec.Code)
		})
	}

	rec := doJSON(t, mux, http.MethodPost, "/api/markets/missing/stakes", map[string]any{
		"participant": "bob", "side": "yes", "amount": 5,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPricingEndpoint(t *testing.T) {
	mux := newTestMux(t)
	market := createTestMarket(t, mux)

	rec := doJSON(t, mux, http.MethodGet, "/api/markets/"+market.ID+"/pricing", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		MarketID    string       `json:"market_id"`
		Prices      domain.Quote `json:"prices"`
		Percentages domain.Quote `json:"percentages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, market.ID, resp.MarketID)
	assert.Equal(t, 0.5, resp.Prices.Yes)
	assert.Equal(t, 50.0, resp.Percentages.Yes)
}

func TestResolveAndSettlementFlow(t *testing.T) {
	mux := newTestMux(t)
	market := createTestMarket(t, mux)

	rec := doJSON(t, mux, http.MethodPost, "/api/markets/"+market.ID+"/stakes", map[string]any{
		"participant": "bob", "side": "yes", "amount": 5,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Settlement does not exist before resolution.
	rec = doJSON(t, mux, http.MethodGet, "/api/markets/"+market.ID+"/settlement", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/api/markets/"+market.ID+"/resolve", map[string]any{
		"outcome": "yes",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Second resolve conflicts.
	rec = doJSON(t, mux, http.MethodPost, "/api/markets/"+market.ID+"/resolve", map[string]any{
		"outcome": "no",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/markets/"+market.ID+"/settlement", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var settlement domain.Settlement
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settlement))
	assert.Equal(t, domain.OutcomeYes, settlement.Outcome)
	assert.Equal(t, 25.0, settlement.TotalPot)

	// Claim once, then conflict.
	claim := map[string]any{"participant": "bob", "side": "yes"}
	rec = doJSON(t, mux, http.MethodPost, "/api/markets/"+market.ID+"/claim", claim)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var claimed struct {
		Amount float64 `json:"amount"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &claimed))
	assert.InDelta(t, 25.0, claimed.Amount, 1e-9)

	rec = doJSON(t, mux, http.MethodPost, "/api/markets/"+market.ID+"/claim", claim)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestResolveBadOutcome(t *testing.T) {
	mux := newTestMux(t)
	market := createTestMarket(t, mux)

	rec := doJSON(t, mux, http.MethodPost, "/api/markets/"+market.ID+"/resolve", map[string]any{
		"outcome": "void",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPositionsAndStatsEndpoints(t *testing.T) {
	mux := newTestMux(t)
	market := createTestMarket(t, mux)

	rec := doJSON(t, mux, http.MethodPost, "/api/markets/"+market.ID+"/stakes", map[string]any{
		"participant": "bob", "side": "no", "amount": 4,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/positions?participant=bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Positions []domain.EnrichedPosition `json:"positions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Positions, 1)
	assert.Equal(t, domain.SideNo, resp.Positions[0].Side)

	rec = doJSON(t, mux, http.MethodGet, "/api/participants/bob/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats domain.ParticipantStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, "bob", stats.Participant)
	assert.Equal(t, 4.0, stats.TotalWagered)
	assert.Equal(t, 1, stats.OpenPositions)
}

func TestPositionsRequireParticipant(t *testing.T) {
	mux := newTestMux(t)
	rec := doJSON(t, mux, http.MethodGet, "/api/positions", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, fmt.Sprintf("body: %s", rec.Body.String()))
}
