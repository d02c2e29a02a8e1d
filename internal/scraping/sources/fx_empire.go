package sources

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"github.com/koelfx/koel/internal/httpclient"
)

// FxEmpire scrapes the Next.js state blob embedded in fxempire.com pair
// pages. The rate lives under the dehydrated react-query state.
type FxEmpire struct {
	baseCode   string
	targetCode string
	url        string
	client     *httpclient.Client
}

func NewFxEmpire(baseCode, targetCode string, client *httpclient.Client) *FxEmpire {
	return &FxEmpire{
		baseCode:   baseCode,
		targetCode: targetCode,
		url: fmt.Sprintf("https://www.fxempire.com/currencies/%s-%s",
			strings.ToLower(baseCode), strings.ToLower(targetCode)),
		client: client,
	}
}

func (s *FxEmpire) SourceName() string { return "fx_empire" }

func (s *FxEmpire) Extract(ctx context.Context) ([]byte, error) {
	return s.client.Get(ctx, s.url)
}

func (s *FxEmpire) Transform(raw []byte) (map[string]float64, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, parseErrorf(s.SourceName(), "failed to parse HTML: %v", err)
	}

	script := doc.Find("script#__NEXT_DATA__")
	if script.Length() == 0 {
		return nil, parseErrorf(s.SourceName(), "__NEXT_DATA__ script not found")
	}

	payload := script.Text()
	if !gjson.Valid(payload) {
		return nil, parseErrorf(s.SourceName(), "__NEXT_DATA__ is not valid JSON")
	}

	instrumentKey := fmt.Sprintf("%s-%s", strings.ToLower(s.baseCode), strings.ToLower(s.targetCode))

	var rate gjson.Result
	queries := gjson.Get(payload, "props.pageProps.dehydratedState.queries")
	queries.ForEach(func(_, query gjson.Result) bool {
		state := query.Get("state.data")
		if state.Get("statusCode").Int() != 200 {
			return true
		}
		price := state.Get("data.prices." + instrumentKey + ".last")
		if price.Exists() {
			rate = price
			return false
		}
		return true
	})

	if !rate.Exists() {
		return nil, parseErrorf(s.SourceName(), "conversion rate for %s not found", instrumentKey)
	}

	return map[string]float64{s.targetCode: rate.Float()}, nil
}
