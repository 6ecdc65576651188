package vci

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/wonny/vnmarket/internal/contracts"
	"github.com/wonny/vnmarket/pkg/config"
	"github.com/wonny/vnmarket/pkg/httputil"
	"github.com/wonny/vnmarket/pkg/logger"
)

// Client handles communication with the Vietcap (VCI) trading data API
// ⭐ SSOT: VCI API 호출은 이 클라이언트에서만
type Client struct {
	httpClient   *httputil.Client
	logger       *logger.Logger
	baseURL      string
	graphqlURL   string
	indexSymbols []string
}

// NewClient creates a new VCI client. httpClient should be dedicated to VCI:
// browser-like headers are installed on it.
func NewClient(httpClient *httputil.Client, cfg config.VCIConfig, log *logger.Logger) *Client {
	httpClient.
		WithHeader("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36").
		WithHeader("Accept", "application/json, text/plain, */*").
		WithHeader("Referer", "https://trading.vietcap.com.vn/").
		WithHeader("Origin", "https://trading.vietcap.com.vn")

	baseURL := cfg.BaseURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &Client{
		httpClient:   httpClient,
		logger:       log,
		baseURL:      baseURL,
		graphqlURL:   cfg.GraphQLURL,
		indexSymbols: cfg.IndexSymbols,
	}
}

// getJSON performs a GET against path (relative to the base URL) and decodes into dest
func (c *Client) getJSON(ctx context.Context, path string, dest interface{}) error {
	resp, err := c.httpClient.Get(ctx, c.baseURL+path)
	if err != nil {
		return fmt.Errorf("%w: HTTP request failed: %w", contracts.ErrProvider, err)
	}
	return wrapDecode(httputil.DecodeJSON(resp, dest))
}

// postJSON performs a POST with a JSON body and decodes into dest
func (c *Client) postJSON(ctx context.Context, url string, body, dest interface{}) error {
	resp, err := c.httpClient.PostJSON(ctx, url, body)
	if err != nil {
		return fmt.Errorf("%w: HTTP request failed: %w", contracts.ErrProvider, err)
	}
	return wrapDecode(httputil.DecodeJSON(resp, dest))
}

func wrapDecode(err error) error {
	if err == nil {
		return nil
	}

	var statusErr *httputil.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %w", contracts.ErrNotFound, err)
	}
	return fmt.Errorf("%w: %w", contracts.ErrProvider, err)
}

// normalizeSymbol upper-cases and trims a ticker
func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
