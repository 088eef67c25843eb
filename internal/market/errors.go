package market

import (
	"fmt"

	"github.com/PAYCY-LLC/xrates-kit-go/internal/coin"
)

// MalformedResponseError marks a required upstream field that is missing
// or has the wrong shape. Fields with an explicit default-to-zero or
// omit policy never produce it.
type MalformedResponseError struct {
	Field string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response: field %q missing or invalid", e.Field)
}

// UnsupportedCoinTypeError is returned when an adapter is asked for a
// coin type it structurally cannot serve.
type UnsupportedCoinTypeError struct {
	CoinType coin.Type
}

func (e *UnsupportedCoinTypeError) Error() string {
	return fmt.Sprintf("unsupported coin type %s", e.CoinType.ID())
}
