package sources

import (
	"regexp"
	"strconv"
	"strings"
)

// parseRate converts a displayed rate to a float, stripping thousands
// separators first ("1,234.56" -> 1234.56).
func parseRate(text string) (float64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	return strconv.ParseFloat(cleaned, 64)
}

var currencyTableHrefRe = regexp.MustCompile(`(?i)-([A-Za-z]{2,4})-currency-table\.html`)

// extractTargetCode pulls the target currency ISO code out of an
// exchangerates.org.uk table link.
// Expected href format: /Some-Currency-XYZ-currency-table.html
func extractTargetCode(href string) string {
	match := currencyTableHrefRe.FindStringSubmatch(href)
	if match == nil {
		return ""
	}
	return strings.ToUpper(match[1])
}
