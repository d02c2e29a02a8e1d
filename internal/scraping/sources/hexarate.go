package sources

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/koelfx/koel/internal/httpclient"
)

// HexaRate queries the hexarate.paikama.co JSON API for a single pair.
type HexaRate struct {
	targetCode string
	url        string
	client     *httpclient.Client
}

func NewHexaRate(baseCode, targetCode string, client *httpclient.Client) *HexaRate {
	return &HexaRate{
		targetCode: targetCode,
		url: fmt.Sprintf("https://hexarate.paikama.co/api/rates/latest/%s?target=%s",
			baseCode, targetCode),
		client: client,
	}
}

func (s *HexaRate) SourceName() string { return "hexa-rate" }

func (s *HexaRate) Extract(ctx context.Context) ([]byte, error) {
	return s.client.Get(ctx, s.url)
}

func (s *HexaRate) Transform(raw []byte) (map[string]float64, error) {
	if !gjson.ValidBytes(raw) {
		return nil, parseErrorf(s.SourceName(), "response is not valid JSON")
	}

	mid := gjson.GetBytes(raw, "data.mid")
	if !mid.Exists() {
		return nil, parseErrorf(s.SourceName(), "data.mid not found in response")
	}

	return map[string]float64{s.targetCode: mid.Float()}, nil
}
