package sources

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/koelfx/koel/internal/httpclient"
)

// Wise scrapes the converter chart header on wise.com for a single pair.
type Wise struct {
	targetCode string
	url        string
	client     *httpclient.Client
}

func NewWise(baseCode, targetCode string, client *httpclient.Client) *Wise {
	return &Wise{
		targetCode: targetCode,
		url: fmt.Sprintf("https://wise.com/currency-converter/%s-to-%s/chart",
			strings.ToLower(baseCode), strings.ToLower(targetCode)),
		client: client,
	}
}

func (s *Wise) SourceName() string { return "wise" }

func (s *Wise) Extract(ctx context.Context) ([]byte, error) {
	return s.client.Get(ctx, s.url)
}

func (s *Wise) Transform(raw []byte) (map[string]float64, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, parseErrorf(s.SourceName(), "failed to parse HTML: %v", err)
	}

	wrapper := doc.Find("div.tapestry-wrapper")
	if wrapper.Length() == 0 {
		return nil, parseErrorf(s.SourceName(), "tapestry wrapper not found")
	}

	header := wrapper.Find("h3.cc__source-to-target")
	if header.Length() == 0 {
		return nil, parseErrorf(s.SourceName(), "exchange rate header not found")
	}

	span := header.Find("span.text-success")
	if span.Length() == 0 {
		return nil, parseErrorf(s.SourceName(), "rate span not found")
	}

	rate, err := parseRate(span.Text())
	if err != nil {
		return nil, parseErrorf(s.SourceName(), "failed to parse rate %q: %v", span.Text(), err)
	}

	return map[string]float64{s.targetCode: rate}, nil
}
