package sources

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/koelfx/koel/internal/httpclient"
)

var conversionLineRe = regexp.MustCompile(`1\s+\w+\s*=\s*([\d.,]+)\s*(\w+)`)

// CurrencyConverterOrgUk scrapes the "Remaining" rates table on
// currencyconverter.org.uk. The URL embeds the plural form of the base
// currency's name.
type CurrencyConverterOrgUk struct {
	baseCode string
	url      string
	client   *httpclient.Client
}

func NewCurrencyConverterOrgUk(baseCode, baseNamePlural string, client *httpclient.Client) (*CurrencyConverterOrgUk, error) {
	if baseNamePlural == "" {
		return nil, fmt.Errorf("base currency plural name cannot be empty for currency-converter-org-uk")
	}

	words := strings.Fields(baseNamePlural)
	plural := strings.ToLower(words[len(words)-1])

	return &CurrencyConverterOrgUk{
		baseCode: baseCode,
		url: fmt.Sprintf("https://www.currencyconverter.org.uk/convert-%s/convert-%s.html",
			baseCode, plural),
		client: client,
	}, nil
}

func (s *CurrencyConverterOrgUk) SourceName() string { return "currency-converter-org-uk" }

func (s *CurrencyConverterOrgUk) Extract(ctx context.Context) ([]byte, error) {
	return s.client.Get(ctx, s.url)
}

func (s *CurrencyConverterOrgUk) Transform(raw []byte) (map[string]float64, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, parseErrorf(s.SourceName(), "failed to parse HTML: %v", err)
	}

	tables := doc.Find("table.currencies")
	if tables.Length() < 2 {
		return nil, parseErrorf(s.SourceName(), "second currencies table not found")
	}

	// The second table holds the remaining (non-headline) rates.
	rows := tables.Eq(1).Find("tr")
	if rows.Length() < 2 {
		return nil, parseErrorf(s.SourceName(), "no conversion rows found in second table")
	}

	rates := make(map[string]float64)
	rows.Slice(1, rows.Length()).Each(func(_ int, row *goquery.Selection) {
		cols := row.Find("td")
		if cols.Length() < 2 {
			return
		}

		// The second cell reads like "1 Pound = 114.12 ALL".
		text := strings.Join(strings.Fields(cols.Eq(1).Text()), " ")
		match := conversionLineRe.FindStringSubmatch(text)
		if match == nil {
			return
		}

		rate, err := parseRate(match[1])
		if err != nil {
			return
		}
		rates[strings.ToUpper(match[2])] = rate
	})

	return rates, nil
}
