package api

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/PAYCY-LLC/xrates-kit-go/internal/coin"
	"github.com/PAYCY-LLC/xrates-kit-go/internal/coingecko"
	"github.com/PAYCY-LLC/xrates-kit-go/internal/market"
	"github.com/PAYCY-LLC/xrates-kit-go/internal/resolver"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// GET /v1/markets?currency=USD
func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	currency := r.URL.Query().Get("currency")
	if currency == "" {
		currency = s.currency
	}

	records := s.kit.MarketInfoRecords(currency)
	if records == nil {
		writeError(w, http.StatusServiceUnavailable, "market data not available yet")
		return
	}

	out := make([]market.Record, 0, len(records))
	for _, rec := range records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CoinCode < out[j].CoinCode })

	writeJSON(w, http.StatusOK, out)
}

// GET /v1/markets/{coinId}?currency=USD
func (s *Server) handleMarketInfo(w http.ResponseWriter, r *http.Request) {
	coinType, err := coin.ParseID(r.PathValue("coinId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid coin id")
		return
	}

	currency := r.URL.Query().Get("currency")
	if currency == "" {
		currency = s.currency
	}

	rec := s.kit.MarketInfo(coinType, currency)
	if rec == nil {
		writeError(w, http.StatusNotFound, "no fresh market info for coin")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// GET /v1/coins/{coinId}/chart?type=WEEK&currency=USD
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	coinType, err := coin.ParseID(r.PathValue("coinId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid coin id")
		return
	}

	chartName := r.URL.Query().Get("type")
	if chartName == "" {
		chartName = market.ChartToday.Name
	}
	chartType, ok := market.ChartTypeByName(chartName)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown chart type")
		return
	}

	currency := r.URL.Query().Get("currency")
	if currency == "" {
		currency = s.currency
	}

	points, err := s.charts.ChartPoints(r.Context(), coingecko.ChartPointKey{
		CoinType:  coinType,
		Currency:  currency,
		ChartType: chartType,
	})
	if err != nil {
		if errors.Is(err, resolver.ErrNotFound) {
			writeError(w, http.StatusNotFound, "coin not tracked by provider")
			return
		}
		s.log.Infof("[API] chart fetch failed: %v", err)
		writeError(w, http.StatusBadGateway, "chart data unavailable")
		return
	}

	writeJSON(w, http.StatusOK, points)
}

// POST /v1/refresh forces a cache refresh outside the scheduler tick.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.kit.Refresh(r.Context()); err != nil {
		s.log.Infof("[API] manual refresh failed: %v", err)
		writeError(w, http.StatusBadGateway, "refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}
