package msn

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wonny/vnmarket/internal/contracts"
)

// Instrument is one crypto asset or currency pair known to MSN
type Instrument struct {
	Symbol string               `json:"symbol"`
	ID     string               `json:"id"`
	Name   string               `json:"name"`
	Market contracts.MarketType `json:"market_type"`
}

// catalog maps ticker symbols to MSN instrument ids
var catalog = map[contracts.MarketType]map[string]Instrument{
	contracts.MarketCrypto: {
		"BTC":  {Symbol: "BTC", ID: "c2111", Name: "Bitcoin"},
		"ETH":  {Symbol: "ETH", ID: "c2112", Name: "Ethereum"},
		"BNB":  {Symbol: "BNB", ID: "c2113", Name: "BNB"},
		"ADA":  {Symbol: "ADA", ID: "c2114", Name: "Cardano"},
		"USDT": {Symbol: "USDT", ID: "c2115", Name: "Tether"},
		"SOL":  {Symbol: "SOL", ID: "c2116", Name: "Solana"},
	},
	contracts.MarketForex: {
		"USDVND": {Symbol: "USDVND", ID: "avyufr", Name: "US Dollar / Vietnamese Dong"},
		"EURUSD": {Symbol: "EURUSD", ID: "av932w", Name: "Euro / US Dollar"},
		"JPYVND": {Symbol: "JPYVND", ID: "ave8sm", Name: "Japanese Yen / Vietnamese Dong"},
	},
}

func init() {
	for market, items := range catalog {
		for k, inst := range items {
			inst.Market = market
			items[k] = inst
		}
	}
}

// Lookup resolves a symbol within market; the match is case-insensitive
func Lookup(market contracts.MarketType, symbol string) (Instrument, error) {
	items, ok := catalog[market]
	if !ok {
		return Instrument{}, fmt.Errorf("%w: market type %s is not served by MSN", contracts.ErrUnsupported, market)
	}

	key := strings.ToUpper(strings.TrimSpace(symbol))
	key = strings.ReplaceAll(key, "/", "")
	inst, ok := items[key]
	if !ok {
		return Instrument{}, fmt.Errorf("%w: unknown %s symbol %q", contracts.ErrNotFound, market, symbol)
	}
	return inst, nil
}

// Catalog lists the instruments of market sorted by symbol
func Catalog(market contracts.MarketType) []Instrument {
	items := catalog[market]
	out := make([]Instrument, 0, len(items))
	for _, inst := range items {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
