package scraping

import (
	"github.com/koelfx/koel/internal/scraping/sources"
)

// Capability classifies what one fetch from a source yields.
type Capability int

const (
	// CapabilityMultiPair sources return rates from one base to many targets
	// in a single fetch.
	CapabilityMultiPair Capability = iota
	// CapabilitySinglePair sources return the rate for exactly one
	// (base, target) pair per fetch.
	CapabilitySinglePair
)

// Source names. These are stored verbatim in the exchange_rates.source
// column, so they are stable identifiers.
const (
	SourceTradingEconomics      = "trading-economics"
	SourceExchangeRatesOrgUk    = "exchange-rates-org-uk"
	SourceCurrencyConverterOrgUk = "currency-converter-org-uk"
	SourceXRates                = "x-rates"
	SourceForbes                = "forbes"
	SourceHexaRate              = "hexa-rate"
	SourceFxEmpire              = "fx_empire"
	SourceOanda                 = "oanda"
	SourceWise                  = "wise"
	SourceXe                    = "xe"
)

// Descriptor describes one registered source: its capability, which optional
// base-currency descriptors its URL construction requires, and a constructor.
type Descriptor struct {
	Name            string
	Capability      Capability
	NeedsBaseName   bool
	NeedsBasePlural bool
	New             func(Params) (Scraper, error)
}

// DefaultPriority is the failsafe ordering: multi-pair sources first by
// reliability, then the single-pair fallbacks.
var DefaultPriority = []string{
	SourceTradingEconomics,
	SourceExchangeRatesOrgUk,
	SourceCurrencyConverterOrgUk,
	SourceXRates,
	SourceForbes,
	SourceHexaRate,
	SourceFxEmpire,
	SourceOanda,
	SourceWise,
	SourceXe,
}

// Sources returns the fixed registry of known sources. The set is decided at
// build time; four multi-pair, six single-pair.
func Sources() map[string]Descriptor {
	return map[string]Descriptor{
		SourceTradingEconomics: {
			Name:       SourceTradingEconomics,
			Capability: CapabilityMultiPair,
			New: func(p Params) (Scraper, error) {
				if err := p.validateBase(); err != nil {
					return nil, err
				}
				return sources.NewTradingEconomics(p.BaseCode, p.Client), nil
			},
		},
		SourceExchangeRatesOrgUk: {
			Name:          SourceExchangeRatesOrgUk,
			Capability:    CapabilityMultiPair,
			NeedsBaseName: true,
			New: func(p Params) (Scraper, error) {
				if err := p.validateBase(); err != nil {
					return nil, err
				}
				return sources.NewExchangeRatesOrgUk(p.BaseCode, p.BaseName, p.Client)
			},
		},
		SourceCurrencyConverterOrgUk: {
			Name:            SourceCurrencyConverterOrgUk,
			Capability:      CapabilityMultiPair,
			NeedsBasePlural: true,
			New: func(p Params) (Scraper, error) {
				if err := p.validateBase(); err != nil {
					return nil, err
				}
				return sources.NewCurrencyConverterOrgUk(p.BaseCode, p.BaseNamePlural, p.Client)
			},
		},
		SourceXRates: {
			Name:       SourceXRates,
			Capability: CapabilityMultiPair,
			New: func(p Params) (Scraper, error) {
				if err := p.validateBase(); err != nil {
					return nil, err
				}
				return sources.NewXRates(p.BaseCode, p.Client), nil
			},
		},
		SourceForbes: {
			Name:       SourceForbes,
			Capability: CapabilitySinglePair,
			New: func(p Params) (Scraper, error) {
				if err := p.requireTarget(SourceForbes); err != nil {
					return nil, err
				}
				return sources.NewForbes(p.BaseCode, p.TargetCode, p.Client), nil
			},
		},
		SourceHexaRate: {
			Name:       SourceHexaRate,
			Capability: CapabilitySinglePair,
			New: func(p Params) (Scraper, error) {
				if err := p.requireTarget(SourceHexaRate); err != nil {
					return nil, err
				}
				return sources.NewHexaRate(p.BaseCode, p.TargetCode, p.Client), nil
			},
		},
		SourceFxEmpire: {
			Name:       SourceFxEmpire,
			Capability: CapabilitySinglePair,
			New: func(p Params) (Scraper, error) {
				if err := p.requireTarget(SourceFxEmpire); err != nil {
					return nil, err
				}
				return sources.NewFxEmpire(p.BaseCode, p.TargetCode, p.Client), nil
			},
		},
		SourceOanda: {
			Name:       SourceOanda,
			Capability: CapabilitySinglePair,
			New: func(p Params) (Scraper, error) {
				if err := p.requireTarget(SourceOanda); err != nil {
					return nil, err
				}
				return sources.NewOanda(p.BaseCode, p.TargetCode, p.Client), nil
			},
		},
		SourceWise: {
			Name:       SourceWise,
			Capability: CapabilitySinglePair,
			New: func(p Params) (Scraper, error) {
				if err := p.requireTarget(SourceWise); err != nil {
					return nil, err
				}
				return sources.NewWise(p.BaseCode, p.TargetCode, p.Client), nil
			},
		},
		SourceXe: {
			Name:       SourceXe,
			Capability: CapabilitySinglePair,
			New: func(p Params) (Scraper, error) {
				if err := p.requireTarget(SourceXe); err != nil {
					return nil, err
				}
				return sources.NewXe(p.BaseCode, p.TargetCode, p.Client), nil
			},
		},
	}
}
