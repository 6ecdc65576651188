package msn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/wonny/vnmarket/internal/contracts"
	"github.com/wonny/vnmarket/pkg/config"
	"github.com/wonny/vnmarket/pkg/httputil"
	"github.com/wonny/vnmarket/pkg/logger"
)

// Client handles communication with the MSN Money finance chart API
// ⭐ SSOT: MSN API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	apiKey     string
}

// NewClient creates a new MSN client
func NewClient(httpClient *httputil.Client, cfg config.MSNConfig, log *logger.Logger) *Client {
	httpClient.
		WithHeader("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36").
		WithHeader("Accept", "application/json").
		WithHeader("Referer", "https://www.msn.com/")

	baseURL := cfg.BaseURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &Client{
		httpClient: httpClient,
		logger:     log,
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
	}
}

// getJSON performs a GET against path with query params and decodes into dest
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, dest interface{}) error {
	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}

	resp, err := c.httpClient.Get(ctx, c.baseURL+path+"?"+params.Encode())
	if err != nil {
		return fmt.Errorf("%w: HTTP request failed: %w", contracts.ErrProvider, err)
	}

	if err := httputil.DecodeJSON(resp, dest); err != nil {
		var statusErr *httputil.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %w", contracts.ErrNotFound, err)
		}
		return fmt.Errorf("%w: %w", contracts.ErrProvider, err)
	}
	return nil
}
