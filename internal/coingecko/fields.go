package coingecko

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/PAYCY-LLC/xrates-kit-go/internal/market"
)

// fieldPolicy states what a missing or null upstream field means. Every
// mapped field names its policy explicitly so the defaulting rules live
// in one place instead of scattered conditionals.
type fieldPolicy int

const (
	// fieldRequired: absence is a malformed response.
	fieldRequired fieldPolicy = iota
	// fieldZero: absence means "no data", mapped to zero.
	fieldZero
	// fieldOmit: absence drops the value silently.
	fieldOmit
)

// decimalField extracts a numeric field from a decoded JSON object under
// the given policy. The bool reports presence.
func decimalField(obj map[string]json.RawMessage, name string, policy fieldPolicy) (decimal.Decimal, bool, error) {
	raw, ok := obj[name]
	if !ok || string(raw) == "null" {
		if policy == fieldRequired {
			return decimal.Zero, false, &market.MalformedResponseError{Field: name}
		}
		return decimal.Zero, false, nil
	}
	var v decimal.Decimal
	if err := json.Unmarshal(raw, &v); err != nil {
		if policy == fieldRequired {
			return decimal.Zero, false, &market.MalformedResponseError{Field: name}
		}
		return decimal.Zero, false, nil
	}
	return v, true, nil
}

// currencyField extracts one currency's value from a currency-indexed
// numeric map field (e.g. current_price: {"usd": 1.23}).
func currencyField(obj map[string]json.RawMessage, name, currency string, policy fieldPolicy) (decimal.Decimal, bool, error) {
	raw, ok := obj[name]
	if !ok || string(raw) == "null" {
		if policy == fieldRequired {
			return decimal.Zero, false, &market.MalformedResponseError{Field: name}
		}
		return decimal.Zero, false, nil
	}
	var m map[string]decimal.Decimal
	if err := json.Unmarshal(raw, &m); err != nil {
		if policy == fieldRequired {
			return decimal.Zero, false, &market.MalformedResponseError{Field: name}
		}
		return decimal.Zero, false, nil
	}
	v, ok := m[currency]
	if !ok {
		if policy == fieldRequired {
			return decimal.Zero, false, &market.MalformedResponseError{Field: name + "." + currency}
		}
		return decimal.Zero, false, nil
	}
	return v, true, nil
}

func stringField(obj map[string]json.RawMessage, name string, policy fieldPolicy) (string, error) {
	raw, ok := obj[name]
	if !ok || string(raw) == "null" {
		if policy == fieldRequired {
			return "", &market.MalformedResponseError{Field: name}
		}
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		if policy == fieldRequired {
			return "", &market.MalformedResponseError{Field: name}
		}
		return "", nil
	}
	return s, nil
}
