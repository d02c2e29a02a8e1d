package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/koelfx/koel/internal/httpclient"
)

// XRates scrapes the multi-pair rate table on x-rates.com. Target codes are
// taken from the per-pair graph links (/graph/?from=USD&to=EUR).
type XRates struct {
	baseCode string
	url      string
	client   *httpclient.Client
}

func NewXRates(baseCode string, client *httpclient.Client) *XRates {
	return &XRates{
		baseCode: baseCode,
		url:      fmt.Sprintf("https://www.x-rates.com/table/?from=%s&amount=1", baseCode),
		client:   client,
	}
}

func (s *XRates) SourceName() string { return "x-rates" }

func (s *XRates) Extract(ctx context.Context) ([]byte, error) {
	return s.client.Get(ctx, s.url)
}

func (s *XRates) Transform(raw []byte) (map[string]float64, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, parseErrorf(s.SourceName(), "failed to parse HTML: %v", err)
	}

	tables := doc.Find("table.ratesTable")
	if tables.Length() == 0 {
		return nil, parseErrorf(s.SourceName(), "rates table not found")
	}

	rates := make(map[string]float64)
	tables.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		cols := row.Find("td")
		if cols.Length() < 2 {
			return
		}

		// The second column links to the pair graph; its query string names
		// the target currency.
		link := cols.Eq(1).Find("a")
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		parsed, err := url.Parse(href)
		if err != nil {
			return
		}
		target := strings.ToUpper(parsed.Query().Get("to"))
		if target == "" || target == s.baseCode {
			return
		}

		rate, err := parseRate(link.Text())
		if err != nil {
			return
		}
		rates[target] = rate
	})

	return rates, nil
}
