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

// Forbes scrapes the currency-converter result box on forbes.com/advisor for
// a single pair.
type Forbes struct {
	baseCode   string
	targetCode string
	url        string
	client     *httpclient.Client
}

func NewForbes(baseCode, targetCode string, client *httpclient.Client) *Forbes {
	return &Forbes{
		baseCode:   baseCode,
		targetCode: targetCode,
		url: fmt.Sprintf("https://www.forbes.com/advisor/money-transfer/currency-converter/%s-%s/?amount=1",
			strings.ToLower(baseCode), strings.ToLower(targetCode)),
		client: client,
	}
}

func (s *Forbes) SourceName() string { return "forbes" }

func (s *Forbes) Extract(ctx context.Context) ([]byte, error) {
	return s.client.Get(ctx, s.url)
}

func (s *Forbes) Transform(raw []byte) (map[string]float64, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, parseErrorf(s.SourceName(), "failed to parse HTML: %v", err)
	}

	resultBox := doc.Find("div.result-box")
	if resultBox.Length() == 0 {
		return nil, parseErrorf(s.SourceName(), "result box not found")
	}

	container := resultBox.Find("div.result-box-c1-c2")
	if container.Length() == 0 {
		return nil, parseErrorf(s.SourceName(), "conversion container not found")
	}

	// The first row reads like "1 USD = 0.93 EUR".
	text := strings.Join(strings.Fields(container.Find("div").First().Text()), " ")
	pattern, err := regexp.Compile(fmt.Sprintf(`(?i)1\s*%s\s*=\s*([\d,.]+)\s*%s`,
		regexp.QuoteMeta(s.baseCode), regexp.QuoteMeta(s.targetCode)))
	if err != nil {
		return nil, parseErrorf(s.SourceName(), "failed to build conversion pattern: %v", err)
	}

	match := pattern.FindStringSubmatch(text)
	if match == nil {
		return nil, parseErrorf(s.SourceName(), "conversion rate not found in %q", text)
	}

	rate, err := parseRate(match[1])
	if err != nil {
		return nil, parseErrorf(s.SourceName(), "failed to parse rate %q: %v", match[1], err)
	}

	return map[string]float64{s.targetCode: rate}, nil
}
