package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/vnmarket/internal/contracts"
	"github.com/wonny/vnmarket/internal/external/msn"
	"github.com/wonny/vnmarket/pkg/logger"
)

// InstrumentLister lists and resolves the crypto and forex catalogue
type InstrumentLister interface {
	Instruments(market contracts.MarketType) ([]msn.Instrument, error)
	Instrument(market contracts.MarketType, symbol string) (msn.Instrument, error)
}

// MarketHandler handles market data API endpoints
// ⭐ SSOT: 시장 데이터 API 핸들러는 이 구조체에서만
type MarketHandler struct {
	data        contracts.MarketData
	instruments InstrumentLister
	store       contracts.HistoryStore
	logger      *logger.Logger
	now         func() time.Time
}

// NewMarketHandler creates a new market handler. store may be nil.
func NewMarketHandler(data contracts.MarketData, instruments InstrumentLister, store contracts.HistoryStore, log *logger.Logger) *MarketHandler {
	return &MarketHandler{
		data:        data,
		instruments: instruments,
		store:       store,
		logger:      log,
		now:         time.Now,
	}
}

// marketFromPath maps the URL segment to a market type
func marketFromPath(segment string) (contracts.MarketType, error) {
	if segment == "stocks" {
		return contracts.MarketStock, nil
	}
	return contracts.ParseMarketType(segment)
}

// historyRequest builds a request from route vars and query parameters.
// Defaults: interval 1D, end today, start 30 days before end.
func (h *MarketHandler) historyRequest(r *http.Request, market contracts.MarketType) (contracts.HistoryRequest, error) {
	q := r.URL.Query()
	req := contracts.HistoryRequest{
		Symbol:   mux.Vars(r)["symbol"],
		Market:   market,
		Interval: contracts.Interval1D,
	}

	if s := q.Get("interval"); s != "" {
		iv, err := contracts.ParseInterval(s)
		if err != nil {
			return req, err
		}
		req.Interval = iv
	}

	today := h.now().In(contracts.Location)
	req.End = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, contracts.Location)
	if s := q.Get("end_date"); s != "" {
		end, err := contracts.ParseDate(s)
		if err != nil {
			return req, err
		}
		req.End = end
	}

	req.Start = req.End.AddDate(0, 0, -30)
	if s := q.Get("start_date"); s != "" {
		start, err := contracts.ParseDate(s)
		if err != nil {
			return req, err
		}
		req.Start = start
	}

	return req, req.Validate()
}

// GetOHLCV returns historical candles
// GET /api/{market}/ohlcv/{symbol}?start_date=&end_date=&interval=
func (h *MarketHandler) GetOHLCV(w http.ResponseWriter, r *http.Request) {
	market, err := marketFromPath(mux.Vars(r)["market"])
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	req, err := h.historyRequest(r, market)
	if err != nil {
		respondError(w, StatusFor(err), err.Error())
		return
	}

	candles, err := h.data.History(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, contracts.Quotes(candles))
}

// GetStoredHistory returns candles from the history store
// GET /api/history/{market}/{symbol}?start_date=&end_date=&interval=
func (h *MarketHandler) GetStoredHistory(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "history store is not configured")
		return
	}

	market, err := marketFromPath(mux.Vars(r)["market"])
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	req, err := h.historyRequest(r, market)
	if err != nil {
		respondError(w, StatusFor(err), err.Error())
		return
	}

	candles, err := h.store.Range(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, contracts.Quotes(candles))
}

// GetCompany returns the company overview
// GET /api/stocks/company/{symbol}
func (h *MarketHandler) GetCompany(w http.ResponseWriter, r *http.Request) {
	rec, err := h.data.Company(r.Context(), mux.Vars(r)["symbol"])
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

// GetFinancial returns one financial statement
// GET /api/stocks/financial/{symbol}?type=year&statement=balance
func (h *MarketHandler) GetFinancial(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	period, err := contracts.ParsePeriodType(valueOr(q.Get("type"), string(contracts.PeriodYear)))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	statement, err := contracts.ParseStatementType(valueOr(q.Get("statement"), string(contracts.StatementBalance)))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.data.Financial(r.Context(), mux.Vars(r)["symbol"], period, statement)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, records)
}

// GetIndices returns the market index listing
// GET /api/stocks/indices
func (h *MarketHandler) GetIndices(w http.ResponseWriter, r *http.Request) {
	records, err := h.data.Indices(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, records)
}

// GetSymbols returns the symbol listing for a market
// GET /api/{market}/symbols
func (h *MarketHandler) GetSymbols(w http.ResponseWriter, r *http.Request) {
	market, err := marketFromPath(mux.Vars(r)["market"])
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	if market != contracts.MarketStock {
		instruments, err := h.instruments.Instruments(market)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, instruments)
		return
	}

	records, err := h.data.Symbols(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, records)
}

// GetInfo returns one crypto asset or currency pair
// GET /api/{market}/info/{symbol}
func (h *MarketHandler) GetInfo(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	market, err := marketFromPath(vars["market"])
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	inst, err := h.instruments.Instrument(market, vars["symbol"])
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, inst)
}

// fail logs the full error chain and responds with its mapped status
func (h *MarketHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)

	entry := h.logger.WithError(err).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"status": status,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	respondError(w, status, err.Error())
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
