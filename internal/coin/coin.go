// Package coin defines the chain-scoped identity of a tradable asset.
//
// Type is a closed set of variants; adapters route coins by exhaustive
// switch over it. Concrete variants are comparable values, so two
// identities are equal exactly when variant and address match.
package coin

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Type identifies a coin on a specific chain. Implementations are
// immutable value types.
type Type interface {
	// ID returns a stable string usable as a map or storage key.
	ID() string

	coinType()
}

type Bitcoin struct{}

type BitcoinCash struct{}

type Litecoin struct{}

type Dash struct{}

type Zcash struct{}

type Ethereum struct{}

// Erc20 is a token on Ethereum, identified by its contract address.
// Address is canonical lowercase hex; build values with NewErc20.
type Erc20 struct {
	Address string
}

type BinanceSmartChain struct{}

// Bep20 is a token on Binance Smart Chain, identified by contract address.
type Bep20 struct {
	Address string
}

// Bep2 is an asset on Binance Chain, identified by its chain symbol.
type Bep2 struct {
	Symbol string
}

func (Bitcoin) ID() string           { return "bitcoin" }
func (BitcoinCash) ID() string       { return "bitcoin-cash" }
func (Litecoin) ID() string          { return "litecoin" }
func (Dash) ID() string              { return "dash" }
func (Zcash) ID() string             { return "zcash" }
func (Ethereum) ID() string          { return "ethereum" }
func (t Erc20) ID() string           { return "erc20|" + t.Address }
func (BinanceSmartChain) ID() string { return "binance-smart-chain" }
func (t Bep20) ID() string           { return "bep20|" + t.Address }
func (t Bep2) ID() string            { return "bep2|" + t.Symbol }

func (Bitcoin) coinType()           {}
func (BitcoinCash) coinType()       {}
func (Litecoin) coinType()          {}
func (Dash) coinType()              {}
func (Zcash) coinType()             {}
func (Ethereum) coinType()          {}
func (Erc20) coinType()             {}
func (BinanceSmartChain) coinType() {}
func (Bep20) coinType()             {}
func (Bep2) coinType()              {}

// NewErc20 validates and canonicalizes an Ethereum contract address.
func NewErc20(address string) (Erc20, error) {
	addr, err := canonicalAddress(address)
	if err != nil {
		return Erc20{}, err
	}
	return Erc20{Address: addr}, nil
}

// NewBep20 validates and canonicalizes a BSC contract address.
func NewBep20(address string) (Bep20, error) {
	addr, err := canonicalAddress(address)
	if err != nil {
		return Bep20{}, err
	}
	return Bep20{Address: addr}, nil
}

func canonicalAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid contract address %q", address)
	}
	return strings.ToLower(common.HexToAddress(address).Hex()), nil
}

// ParseID is the inverse of Type.ID.
func ParseID(id string) (Type, error) {
	switch id {
	case "bitcoin":
		return Bitcoin{}, nil
	case "bitcoin-cash":
		return BitcoinCash{}, nil
	case "litecoin":
		return Litecoin{}, nil
	case "dash":
		return Dash{}, nil
	case "zcash":
		return Zcash{}, nil
	case "ethereum":
		return Ethereum{}, nil
	case "binance-smart-chain":
		return BinanceSmartChain{}, nil
	}
	if addr, ok := strings.CutPrefix(id, "erc20|"); ok {
		return NewErc20(addr)
	}
	if addr, ok := strings.CutPrefix(id, "bep20|"); ok {
		return NewBep20(addr)
	}
	if symbol, ok := strings.CutPrefix(id, "bep2|"); ok && symbol != "" {
		return Bep2{Symbol: symbol}, nil
	}
	return nil, fmt.Errorf("unknown coin id %q", id)
}

// Coin couples a display code with its chain identity.
type Coin struct {
	Code  string
	Title string
	Type  Type
}
