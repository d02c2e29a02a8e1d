package sources

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/koelfx/koel/internal/httpclient"
)

// ExchangeRatesOrgUk scrapes the per-currency rate table on
// exchangerates.org.uk. The URL embeds the base currency's full name, so the
// constructor requires it.
type ExchangeRatesOrgUk struct {
	baseCode string
	url      string
	client   *httpclient.Client
}

func NewExchangeRatesOrgUk(baseCode, baseName string, client *httpclient.Client) (*ExchangeRatesOrgUk, error) {
	if baseName == "" {
		return nil, fmt.Errorf("base currency name cannot be empty for exchange-rates-org-uk")
	}

	words := strings.Fields(baseName)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	formattedName := strings.Join(words, "-")

	return &ExchangeRatesOrgUk{
		baseCode: baseCode,
		url: fmt.Sprintf("https://www.exchangerates.org.uk/%s-%s-currency-table.html",
			formattedName, baseCode),
		client: client,
	}, nil
}

func (s *ExchangeRatesOrgUk) SourceName() string { return "exchange-rates-org-uk" }

func (s *ExchangeRatesOrgUk) Extract(ctx context.Context) ([]byte, error) {
	return s.client.Get(ctx, s.url)
}

func (s *ExchangeRatesOrgUk) Transform(raw []byte) (map[string]float64, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, parseErrorf(s.SourceName(), "failed to parse HTML: %v", err)
	}

	divs := doc.Find("div.mobilescrollbars")
	if divs.Length() == 0 {
		return nil, parseErrorf(s.SourceName(), "mobilescrollbars div not found")
	}

	rates := make(map[string]float64)
	divs.Find("table.currencypage-mini tr.colone, table.currencypage-mini tr.coltwo").
		Each(func(_ int, row *goquery.Selection) {
			cols := row.Find("td")
			if cols.Length() < 5 {
				return
			}

			// Column 3 holds the target currency link; the href carries the
			// ISO code. Column 4 holds the conversion rate.
			link := cols.Eq(3).Find("a")
			if link.Length() == 0 {
				return
			}
			target := extractTargetCode(link.AttrOr("href", ""))
			if target == "" {
				target = strings.ToUpper(strings.TrimSpace(link.Text()))
			}

			rate, err := parseRate(cols.Eq(4).Text())
			if err != nil {
				return
			}
			rates[target] = rate
		})

	return rates, nil
}
