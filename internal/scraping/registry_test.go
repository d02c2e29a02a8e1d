package scraping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koelfx/koel/internal/common"
	"github.com/koelfx/koel/internal/httpclient"
	"github.com/koelfx/koel/internal/useragent"
)

func testClient(t *testing.T) *httpclient.Client {
	t.Helper()
	rotator, err := useragent.New([]string{"test-agent/1.0"})
	require.NoError(t, err)
	return httpclient.New(0, rotator, common.GetLogger())
}

func TestSourcesRegistryShape(t *testing.T) {
	sources := Sources()
	assert.Len(t, sources, 10)

	var multi, single int
	for name, desc := range sources {
		assert.Equal(t, name, desc.Name)
		require.NotNil(t, desc.New, "source %s has no constructor", name)
		switch desc.Capability {
		case CapabilityMultiPair:
			multi++
		case CapabilitySinglePair:
			single++
		}
	}
	assert.Equal(t, 4, multi)
	assert.Equal(t, 6, single)
}

func TestDefaultPriorityCoversAllSources(t *testing.T) {
	sources := Sources()
	require.Len(t, DefaultPriority, len(sources))
	for _, name := range DefaultPriority {
		assert.Contains(t, sources, name)
	}

	// Multi-pair sources come before every single-pair source.
	seenSingle := false
	for _, name := range DefaultPriority {
		if sources[name].Capability == CapabilitySinglePair {
			seenSingle = true
		} else {
			assert.False(t, seenSingle, "multi-pair source %s listed after a single-pair source", name)
		}
	}
}

func TestConstructorsValidateParams(t *testing.T) {
	client := testClient(t)
	sources := Sources()

	for name, desc := range sources {
		t.Run(name, func(t *testing.T) {
			// Missing base code is always rejected.
			_, err := desc.New(Params{Client: client})
			assert.Error(t, err)

			params := Params{
				BaseCode:       "USD",
				BaseName:       "US Dollar",
				BaseNamePlural: "US Dollars",
				Client:         client,
			}
			if desc.Capability == CapabilitySinglePair {
				// Single-pair constructors also require a target.
				_, err = desc.New(params)
				assert.Error(t, err)
				params.TargetCode = "EUR"
			}

			scraper, err := desc.New(params)
			require.NoError(t, err)
			assert.Equal(t, name, scraper.SourceName())
		})
	}
}

func TestNamedConstructorsRejectMissingDescriptors(t *testing.T) {
	client := testClient(t)
	sources := Sources()

	_, err := sources[SourceExchangeRatesOrgUk].New(Params{BaseCode: "USD", Client: client})
	assert.Error(t, err, "exchange-rates-org-uk needs the base name")

	_, err = sources[SourceCurrencyConverterOrgUk].New(Params{BaseCode: "USD", Client: client})
	assert.Error(t, err, "currency-converter-org-uk needs the plural name")
}
