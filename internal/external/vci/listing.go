package vci

import (
	"context"
	"fmt"

	"github.com/wonny/vnmarket/internal/frame"
)

// FetchSymbols fetches every tradable symbol on HOSE, HNX and UPCOM
func (c *Client) FetchSymbols(ctx context.Context) (*frame.Frame, error) {
	var items []map[string]interface{}
	if err := c.getJSON(ctx, "price/symbols/getAll", &items); err != nil {
		return nil, fmt.Errorf("fetch symbol listing: %w", err)
	}

	c.logger.WithField("count", len(items)).Debug("Fetched VCI symbols")
	return frame.FromMaps(items), nil
}

type indexListRequest struct {
	Symbols []string `json:"symbols"`
}

// FetchIndices fetches the latest snapshot of the configured market indices
func (c *Client) FetchIndices(ctx context.Context) (*frame.Frame, error) {
	var items []map[string]interface{}
	req := indexListRequest{Symbols: c.indexSymbols}
	if err := c.postJSON(ctx, c.baseURL+"price/marketIndex/getList", req, &items); err != nil {
		return nil, fmt.Errorf("fetch index listing: %w", err)
	}

	c.logger.WithField("count", len(items)).Debug("Fetched VCI indices")
	return frame.FromMaps(items), nil
}
