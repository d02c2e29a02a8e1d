package jobs

import (
	"fmt"

	"github.com/koelfx/koel/internal/common"
)

// Group names recognised by the scrape_group task.
const (
	GroupPrimary   = "primary"
	GroupSecondary = "secondary"
)

// DefaultPrimaryGroup is the fifteen most-traded currencies, swept four
// times a day.
var DefaultPrimaryGroup = []string{
	"USD", "EUR", "GBP", "JPY", "CAD", "AUD", "CHF", "CNY",
	"SGD", "HKD", "KRW", "SEK", "NOK", "NZD", "INR",
}

// DefaultSecondaryGroup is the remainder of the catalog, swept twice a day.
var DefaultSecondaryGroup = []string{
	"AED", "AFN", "XCD", "ALL", "AMD", "AOA", "ARS", "AWG", "AZN", "BAM",
	"BBD", "BDT", "XOF", "BGN", "BHD", "BIF", "BMD", "BND", "BOB", "BRL",
	"BSD", "BTN", "BWP", "BYN", "BZD", "CDF", "XAF", "CLP", "COP", "CRC",
	"CUP", "CVE", "ANG", "CZK", "DJF", "DKK", "DOP", "DZD", "EGP", "MAD",
	"ERN", "ETB", "FJD", "FKP", "GEL", "GHS", "GIP", "GMD", "GNF", "GTQ",
	"GYD", "HNL", "HRK", "HTG", "HUF", "IDR", "ILS", "IQD", "IRR", "ISK",
	"JMD", "JOD", "KES", "KGS", "KHR", "KMF", "KPW", "KWD", "KYD", "KZT",
	"LAK", "LBP", "LKR", "LRD", "LSL", "LYD", "MDL", "MGA", "MKD", "MMK",
	"MNT", "MOP", "MRO", "MUR", "MVR", "MWK", "MXN", "MYR", "MZN", "NAD",
	"XPF", "NGN", "NIO", "NPR", "OMR", "PAB", "PEN", "PGK", "PHP", "PKR",
	"PLN", "PYG", "QAR", "RON", "RSD", "RUB", "RWF", "SAR", "SBD", "SCR",
	"SDG", "SHP", "SLL", "SOS", "SRD", "SSP", "STD", "SYP", "SZL", "THB",
	"TJS", "TMT", "TND", "TOP", "TRY", "TTD", "TWD", "TZS", "UAH", "UGX",
	"UYU", "UZS", "VEF", "VND", "VUV", "WST", "YER", "ZMW", "ZWL", "MRU",
	"STN",
}

// GroupCodes resolves a group name to its currency codes, preferring the
// configured lists over the built-in defaults.
func GroupCodes(cfg common.GroupsConfig, group string) ([]string, error) {
	switch group {
	case GroupPrimary:
		if len(cfg.Primary) > 0 {
			return cfg.Primary, nil
		}
		return DefaultPrimaryGroup, nil
	case GroupSecondary:
		if len(cfg.Secondary) > 0 {
			return cfg.Secondary, nil
		}
		return DefaultSecondaryGroup, nil
	default:
		return nil, fmt.Errorf("unknown currency group: %s", group)
	}
}
