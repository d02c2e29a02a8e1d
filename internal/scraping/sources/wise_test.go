package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wiseFixture = `
<html><body>
<div class="tapestry-wrapper">
  <h3 class="cc__source-to-target">
    1 USD = <span class="text-success">0.8512</span> EUR
  </h3>
</div>
</body></html>`

func TestWiseTransform(t *testing.T) {
	s := NewWise("USD", "EUR", nil)

	rates, err := s.Transform([]byte(wiseFixture))
	require.NoError(t, err)

	assert.Equal(t, map[string]float64{"EUR": 0.8512}, rates)
}

func TestWiseURLIsLowercase(t *testing.T) {
	s := NewWise("USD", "EUR", nil)
	assert.Equal(t, "https://wise.com/currency-converter/usd-to-eur/chart", s.url)
}

func TestWiseTransformMissingHeader(t *testing.T) {
	s := NewWise("USD", "EUR", nil)

	_, err := s.Transform([]byte(`<div class="tapestry-wrapper"><p>loading</p></div>`))
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}
