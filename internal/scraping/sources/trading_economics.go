package sources

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/koelfx/koel/internal/httpclient"
)

// TradingEconomics scrapes the multi-pair heatmap table on
// tradingeconomics.com. One fetch yields rates from the base currency to
// every listed target.
type TradingEconomics struct {
	baseCode string
	url      string
	client   *httpclient.Client
}

func NewTradingEconomics(baseCode string, client *httpclient.Client) *TradingEconomics {
	return &TradingEconomics{
		baseCode: baseCode,
		url:      fmt.Sprintf("https://tradingeconomics.com/currencies?base=%s", baseCode),
		client:   client,
	}
}

func (s *TradingEconomics) SourceName() string { return "trading-economics" }

func (s *TradingEconomics) Extract(ctx context.Context) ([]byte, error) {
	return s.client.Get(ctx, s.url)
}

func (s *TradingEconomics) Transform(raw []byte) (map[string]float64, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, parseErrorf(s.SourceName(), "failed to parse HTML: %v", err)
	}

	table := doc.Find("table.table-heatmap")
	if table.Length() == 0 {
		return nil, parseErrorf(s.SourceName(), "rates table not found")
	}

	rates := make(map[string]float64)
	table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		// Rows carry the pair in data-symbol, e.g. "GBPUSD:CUR".
		symbol, ok := row.Attr("data-symbol")
		if !ok {
			return
		}
		pair := strings.SplitN(symbol, ":", 2)[0]
		target := pair
		if strings.HasPrefix(pair, s.baseCode) {
			target = pair[len(s.baseCode):]
		}

		cols := row.Find("td")
		if cols.Length() < 2 {
			return
		}
		rate, err := parseRate(cols.Eq(1).Text())
		if err != nil {
			return
		}
		rates[strings.ToUpper(target)] = rate
	})

	return rates, nil
}
