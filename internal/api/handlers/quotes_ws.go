package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/wonny/vnmarket/internal/contracts"
	"github.com/wonny/vnmarket/pkg/logger"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second

	minPollEvery     = time.Second
	defaultPollEvery = 5 * time.Second
)

// QuoteStreamHandler pushes the latest candle of a symbol over a websocket
// ⭐ SSOT: 실시간 시세 스트림은 이 핸들러에서만
type QuoteStreamHandler struct {
	data     contracts.MarketData
	logger   *logger.Logger
	upgrader websocket.Upgrader
	now      func() time.Time
}

// NewQuoteStreamHandler creates a new quote stream handler
func NewQuoteStreamHandler(data contracts.MarketData, log *logger.Logger) *QuoteStreamHandler {
	return &QuoteStreamHandler{
		data:   data,
		logger: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		now: time.Now,
	}
}

// streamParams is the parsed query of a stream request
type streamParams struct {
	market   contracts.MarketType
	interval contracts.Interval
	every    time.Duration
}

func parseStreamParams(r *http.Request) (streamParams, error) {
	q := r.URL.Query()
	p := streamParams{market: contracts.MarketStock, interval: contracts.Interval1m, every: defaultPollEvery}

	if s := q.Get("market_type"); s != "" {
		m, err := contracts.ParseMarketType(s)
		if err != nil {
			return p, err
		}
		p.market = m
	}
	if p.market != contracts.MarketStock {
		p.interval = contracts.Interval1D
	}

	if s := q.Get("interval"); s != "" {
		iv, err := contracts.ParseInterval(s)
		if err != nil {
			return p, err
		}
		p.interval = iv
	}

	if s := q.Get("every"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return p, fmt.Errorf("%w: invalid poll interval %q", contracts.ErrInvalidArgument, s)
		}
		p.every = d
	}
	if p.every < minPollEvery {
		p.every = minPollEvery
	}
	return p, nil
}

// Stream upgrades the connection and sends a Quote whenever the latest candle changes
// GET /ws/quotes/{symbol}?market_type=&interval=&every=
func (h *QuoteStreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	params, err := parseStreamParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	log := h.logger.WithFields(map[string]interface{}{
		"symbol":   symbol,
		"market":   string(params.market),
		"interval": string(params.interval),
	})
	log.Info("Quote stream opened")

	go h.readLoop(conn, cancel)

	poll := time.NewTicker(params.every)
	defer poll.Stop()
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	var last *contracts.Quote
	for {
		quote, err := h.latest(ctx, symbol, params)
		if err != nil {
			log.WithError(err).Warn("Quote stream fetch failed")
			h.writeJSON(conn, map[string]string{"error": err.Error()})
			if StatusFor(err) < http.StatusInternalServerError {
				// argument and not-found errors will not heal
				h.closeWith(conn, websocket.ClosePolicyViolation, "invalid stream request")
				return
			}
		} else if quote != nil && (last == nil || *quote != *last) {
			if err := h.writeJSON(conn, quote); err != nil {
				log.WithError(err).Debug("Quote stream write failed")
				return
			}
			last = quote
		}

		if !h.wait(ctx, conn, poll, ping) {
			log.Info("Quote stream closed")
			return
		}
	}
}

// wait blocks until the next poll, pinging the client meanwhile.
// It returns false once the stream should end.
func (h *QuoteStreamHandler) wait(ctx context.Context, conn *websocket.Conn, poll, ping *time.Ticker) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				return false
			}
		case <-poll.C:
			return true
		}
	}
}

// latest fetches the most recent candle for the stream
func (h *QuoteStreamHandler) latest(ctx context.Context, symbol string, p streamParams) (*contracts.Quote, error) {
	now := h.now().In(contracts.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, contracts.Location)

	// reach back over weekends and holidays
	lookback := -7
	if !p.interval.Intraday() {
		lookback = -62
	}

	candles, err := h.data.History(ctx, contracts.HistoryRequest{
		Symbol:   symbol,
		Start:    today.AddDate(0, 0, lookback),
		End:      today,
		Interval: p.interval,
		Market:   p.market,
	})
	if err != nil || len(candles) == 0 {
		return nil, err
	}

	q := candles[len(candles)-1].Quote()
	return &q, nil
}

// readLoop drains client frames so pongs and close frames are processed
func (h *QuoteStreamHandler) readLoop(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *QuoteStreamHandler) writeJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

func (h *QuoteStreamHandler) closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
