package vci

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/vnmarket/internal/contracts"
	"github.com/wonny/vnmarket/internal/frame"
)

const companyQuery = `query Query($ticker: String!, $lang: String!) {
  CompanyListingInfo(ticker: $ticker) {
    id
    issueShare
    history
    companyProfile
    icbName2
    icbName3
    icbName4
    enIcbName2
    enIcbName3
    enIcbName4
    financialRatio {
      charterCapital
      numberOfEmployees
      foreignerPercentage
    }
  }
  TickerPriceInfo(ticker: $ticker) {
    ticker
    exchange
    matchPrice
    referencePrice
    ceilingPrice
    floorPrice
    highestPrice1Year
    lowestPrice1Year
    tradingDate
  }
}`

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type companyResponse struct {
	Data struct {
		CompanyListingInfo map[string]interface{} `json:"CompanyListingInfo"`
		TickerPriceInfo    map[string]interface{} `json:"TickerPriceInfo"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// dateLayouts are the datetime shapes VCI uses in JSON strings
var dateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	contracts.DateLayout,
}

// FetchCompanyOverview fetches the company overview as a single-row frame
func (c *Client) FetchCompanyOverview(ctx context.Context, symbol string) (*frame.Frame, error) {
	symbol = normalizeSymbol(symbol)
	req := graphQLRequest{
		Query: companyQuery,
		Variables: map[string]interface{}{
			"ticker": symbol,
			"lang":   "vi",
		},
	}

	var resp companyResponse
	if err := c.postJSON(ctx, c.graphqlURL, req, &resp); err != nil {
		return nil, fmt.Errorf("fetch %s overview: %w", symbol, err)
	}

	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("%w: fetch %s overview: %s", contracts.ErrProvider, symbol, resp.Errors[0].Message)
	}
	if resp.Data.CompanyListingInfo == nil {
		return nil, fmt.Errorf("%w: no company overview for symbol %s", contracts.ErrNotFound, symbol)
	}

	overview := map[string]interface{}{"symbol": symbol}
	for k, v := range resp.Data.TickerPriceInfo {
		overview[k] = v
	}
	for k, v := range resp.Data.CompanyListingInfo {
		overview[k] = v
	}

	f := frame.FromMaps([]map[string]interface{}{overview})
	f.MapStrings(StripHTML)
	parseDateColumns(f)

	return f, nil
}

// StripHTML returns the text content of s when it carries markup
func StripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// parseDateColumns converts every *Date / *date column holding datetime strings
func parseDateColumns(f *frame.Frame) {
	for _, col := range f.Columns {
		if strings.HasSuffix(col, "Date") || strings.HasSuffix(col, "date") {
			f.ParseTime(col, dateLayouts...)
		}
	}
}
