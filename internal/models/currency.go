package models

import (
	"strings"
	"time"
)

// Currency is an immutable reference record for a single ISO-style currency.
// Codes are canonical uppercase and unique.
type Currency struct {
	ID            int       `db:"id" json:"id"`
	Code          string    `db:"code" json:"code"`
	Name          string    `db:"name" json:"name"`
	NamePlural    string    `db:"name_plural" json:"name_plural,omitempty"`
	Symbol        string    `db:"symbol" json:"symbol"`
	DecimalDigits int       `db:"decimal_digits" json:"decimal_digits"`
	Icon          string    `db:"icon" json:"icon,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// NormalizeCode uppercases and trims a currency code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
