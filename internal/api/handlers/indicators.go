package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/wonny/vnmarket/internal/contracts"
	"github.com/wonny/vnmarket/internal/indicators"
	"github.com/wonny/vnmarket/pkg/logger"
)

// maxIndicatorBody caps the request body of indicator calculations
const maxIndicatorBody = 1 << 20

// indicatorRequest carries raw prices or a symbol range to compute over.
// Prices win when both are given.
type indicatorRequest struct {
	Prices []float64 `json:"prices"`

	Symbol     string `json:"symbol"`
	MarketType string `json:"market_type"`
	Interval   string `json:"interval"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`

	indicators.Params
}

// IndicatorHandler computes technical indicators
type IndicatorHandler struct {
	data   contracts.MarketData
	logger *logger.Logger
}

// NewIndicatorHandler creates a new indicator handler
func NewIndicatorHandler(data contracts.MarketData, log *logger.Logger) *IndicatorHandler {
	return &IndicatorHandler{data: data, logger: log}
}

// Compute runs one indicator over the posted prices or a symbol's closes
// POST /api/indicators/{name}
func (h *IndicatorHandler) Compute(w http.ResponseWriter, r *http.Request) {
	name, err := indicators.ParseName(mux.Vars(r)["name"])
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	var req indicatorRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIndicatorBody)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if len(req.Prices) > 0 {
		records, err := indicators.Compute(name, req.Prices, req.Params)
		if err != nil {
			respondError(w, StatusFor(err), err.Error())
			return
		}
		respondJSON(w, http.StatusOK, records)
		return
	}

	if strings.TrimSpace(req.Symbol) == "" {
		respondError(w, http.StatusBadRequest, "prices or symbol is required")
		return
	}

	hreq, err := req.historyRequest()
	if err != nil {
		respondError(w, StatusFor(err), err.Error())
		return
	}

	candles, err := h.data.History(r.Context(), hreq)
	if err != nil {
		h.logger.WithError(err).WithField("symbol", hreq.Symbol).Warn("Indicator history fetch failed")
		respondError(w, StatusFor(err), err.Error())
		return
	}

	records, err := indicators.Compute(name, indicators.Closes(candles), req.Params)
	if err != nil {
		respondError(w, StatusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, indicators.WithTimestamps(records, candles))
}

// historyRequest requires start_date and end_date; interval and market_type default to 1D stock
func (req indicatorRequest) historyRequest() (contracts.HistoryRequest, error) {
	hreq := contracts.HistoryRequest{
		Symbol:   req.Symbol,
		Interval: contracts.Interval1D,
		Market:   contracts.MarketStock,
	}

	if req.Interval != "" {
		iv, err := contracts.ParseInterval(req.Interval)
		if err != nil {
			return hreq, err
		}
		hreq.Interval = iv
	}
	if req.MarketType != "" {
		m, err := contracts.ParseMarketType(req.MarketType)
		if err != nil {
			return hreq, err
		}
		hreq.Market = m
	}

	start, err := contracts.ParseDate(req.StartDate)
	if err != nil {
		return hreq, err
	}
	end, err := contracts.ParseDate(req.EndDate)
	if err != nil {
		return hreq, err
	}
	hreq.Start, hreq.End = start, end

	return hreq, hreq.Validate()
}
