// Package scraping implements the extract/transform adapter contract for
// exchange-rate sources and the priority-ordered failsafe manager that
// selects among them.
package scraping

import (
	"context"
	"fmt"

	"github.com/koelfx/koel/internal/httpclient"
)

// Scraper is the adapter contract for a single external source. Extract
// performs exactly one outbound request; Transform parses the raw payload
// into a target-code to rate mapping. Rates are units of target per 1 unit
// of base, target codes always uppercase.
type Scraper interface {
	SourceName() string
	Extract(ctx context.Context) ([]byte, error)
	Transform(raw []byte) (map[string]float64, error)
}

// Params carries the constructor inputs for an adapter. BaseCode is always
// required; the remaining descriptors depend on the source's declared needs.
type Params struct {
	BaseCode       string
	TargetCode     string
	BaseName       string
	BaseNamePlural string
	Client         *httpclient.Client
}

func (p Params) validateBase() error {
	if p.BaseCode == "" {
		return fmt.Errorf("base currency code cannot be empty")
	}
	if p.Client == nil {
		return fmt.Errorf("http client cannot be nil")
	}
	return nil
}

func (p Params) requireTarget(source string) error {
	if err := p.validateBase(); err != nil {
		return err
	}
	if p.TargetCode == "" {
		return fmt.Errorf("target currency cannot be empty for %s", source)
	}
	return nil
}
