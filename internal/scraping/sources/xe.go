package sources

import (
	"bytes"
	"context"
	"fmt"
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"github.com/koelfx/koel/internal/httpclient"
)

var xeRateRe = regexp.MustCompile(`[\d,]*\.?\d+`)

// Xe scrapes the conversion result on xe.com for a single pair. The
// fractional digits are rendered in a nested span, so the container text is
// merged before extracting the number.
type Xe struct {
	targetCode string
	url        string
	client     *httpclient.Client
}

func NewXe(baseCode, targetCode string, client *httpclient.Client) *Xe {
	return &Xe{
		targetCode: targetCode,
		url: fmt.Sprintf("https://www.xe.com/currencyconverter/convert/?Amount=1&From=%s&To=%s",
			baseCode, targetCode),
		client: client,
	}
}

func (s *Xe) SourceName() string { return "xe" }

func (s *Xe) Extract(ctx context.Context) ([]byte, error) {
	return s.client.Get(ctx, s.url)
}

func (s *Xe) Transform(raw []byte) (map[string]float64, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, parseErrorf(s.SourceName(), "failed to parse HTML: %v", err)
	}

	container := doc.Find(`div[data-testid="conversion"]`)
	if container.Length() == 0 {
		return nil, parseErrorf(s.SourceName(), "conversion container not found")
	}

	result := container.Find("p").First()
	if result.Length() == 0 {
		return nil, parseErrorf(s.SourceName(), "result paragraph not found")
	}

	text := result.Text()
	match := xeRateRe.FindString(text)
	if match == "" {
		return nil, parseErrorf(s.SourceName(), "no numeric rate in %q", text)
	}

	rate, err := parseRate(match)
	if err != nil {
		return nil, parseErrorf(s.SourceName(), "failed to parse rate %q: %v", match, err)
	}

	return map[string]float64{s.targetCode: rate}, nil
}
