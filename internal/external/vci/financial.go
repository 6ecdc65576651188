package vci

import (
	"context"
	"fmt"
	"net/url"

	"github.com/wonny/vnmarket/internal/contracts"
	"github.com/wonny/vnmarket/internal/frame"
)

// sections maps statement types to VCI report sections
var sections = map[contracts.StatementType]string{
	contracts.StatementBalance:  "BALANCE_SHEET",
	contracts.StatementIncome:   "INCOME_STATEMENT",
	contracts.StatementCashflow: "CASH_FLOW",
}

type envelope struct {
	Status     int    `json:"status"`
	Successful bool   `json:"successful"`
	Msg        string `json:"msg"`
}

type statementResponse struct {
	envelope
	Data struct {
		Years    []map[string]interface{} `json:"years"`
		Quarters []map[string]interface{} `json:"quarters"`
	} `json:"data"`
}

type metric struct {
	Level   int    `json:"level"`
	Field   string `json:"field"`
	TitleEn string `json:"titleEn"`
	TitleVi string `json:"titleVi"`
}

type metricsResponse struct {
	envelope
	Data map[string][]metric `json:"data"`
}

// FetchFinancialStatement fetches one statement, one row per reporting period.
// Field codes (bsa1, isa3, ...) are renamed to English titles when the metric
// catalogue is available.
func (c *Client) FetchFinancialStatement(ctx context.Context, symbol string, period contracts.PeriodType, statement contracts.StatementType) (*frame.Frame, error) {
	section, ok := sections[statement]
	if !ok {
		return nil, fmt.Errorf("%w: invalid statement type %q", contracts.ErrInvalidArgument, statement)
	}

	symbol = normalizeSymbol(symbol)
	path := fmt.Sprintf("iq-insight-service/v1/company/%s/financial-statement?section=%s",
		url.PathEscape(symbol), url.QueryEscape(section))

	var resp statementResponse
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("fetch %s %s statement: %w", symbol, statement, err)
	}
	if !resp.Successful {
		return nil, fmt.Errorf("%w: fetch %s %s statement: %s", contracts.ErrProvider, symbol, statement, resp.Msg)
	}

	rows := resp.Data.Years
	if period == contracts.PeriodQuarter {
		rows = resp.Data.Quarters
	}

	f := frame.FromMaps(rows)
	parseDateColumns(f)

	titles, err := c.fetchMetricTitles(ctx, symbol, section)
	if err != nil {
		c.logger.WithError(err).WithField("symbol", symbol).Warn("Metric catalogue unavailable, keeping field codes")
	} else {
		f.Rename(titles)
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol":    symbol,
		"period":    string(period),
		"statement": string(statement),
		"count":     f.Len(),
	}).Debug("Fetched VCI financial statement")

	return f, nil
}

// fetchMetricTitles returns field code -> English title for one section
func (c *Client) fetchMetricTitles(ctx context.Context, symbol, section string) (map[string]string, error) {
	path := fmt.Sprintf("iq-insight-service/v1/company/%s/financial-statement/metrics", url.PathEscape(symbol))

	var resp metricsResponse
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	if !resp.Successful {
		return nil, fmt.Errorf("%w: %s", contracts.ErrProvider, resp.Msg)
	}

	titles := make(map[string]string, len(resp.Data[section]))
	for _, m := range resp.Data[section] {
		if m.TitleEn != "" {
			titles[m.Field] = m.TitleEn
		}
	}
	return titles, nil
}
