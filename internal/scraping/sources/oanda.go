package sources

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"github.com/koelfx/koel/internal/httpclient"
)

// Oanda queries the public OANDA chart API for a single pair and takes the
// midpoint of the most recent average bid/ask entry.
type Oanda struct {
	targetCode string
	url        string
	client     *httpclient.Client
}

func NewOanda(baseCode, targetCode string, client *httpclient.Client) *Oanda {
	now := time.Now().UTC()
	params := url.Values{}
	params.Set("base", baseCode)
	params.Set("quote", targetCode)
	params.Set("data_type", "chart")
	params.Set("start_date", now.AddDate(0, 0, -1).Format("2006-01-02"))
	params.Set("end_date", now.Format("2006-01-02"))

	return &Oanda{
		targetCode: targetCode,
		url: fmt.Sprintf("https://fxds-public-exchange-rates-api.oanda.com/cc-api/currencies?%s",
			params.Encode()),
		client: client,
	}
}

func (s *Oanda) SourceName() string { return "oanda" }

func (s *Oanda) Extract(ctx context.Context) ([]byte, error) {
	return s.client.Get(ctx, s.url)
}

func (s *Oanda) Transform(raw []byte) (map[string]float64, error) {
	if !gjson.ValidBytes(raw) {
		return nil, parseErrorf(s.SourceName(), "response is not valid JSON")
	}

	responses := gjson.GetBytes(raw, "responses")
	if !responses.IsArray() || len(responses.Array()) == 0 {
		return nil, parseErrorf(s.SourceName(), "no responses found in payload")
	}

	entries := responses.Array()
	last := entries[len(entries)-1]
	bid := last.Get("average_bid")
	ask := last.Get("average_ask")
	if !bid.Exists() || !ask.Exists() {
		return nil, parseErrorf(s.SourceName(), "average bid/ask missing from entry")
	}

	mid := (bid.Float() + ask.Float()) / 2
	return map[string]float64{s.targetCode: mid}, nil
}
