// Package resolver maps internal coin identities to the identifiers the
// upstream sources expect. A miss is a per-coin skip signal, never fatal
// to a batch.
package resolver

import (
	"errors"
	"fmt"

	"github.com/PAYCY-LLC/xrates-kit-go/internal/coin"
)

const (
	SourceCoinGecko = "coingecko"
	SourceUniswap   = "uniswap"
)

// WETHAddress proxies the native coin on the DEX subgraph.
const WETHAddress = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"

// ErrNotFound means the coin has no identifier for the requested source.
var ErrNotFound = errors.New("no provider id for coin")

type catalogKey struct {
	coinID string
	source string
}

// Resolver holds a (coin, source) -> external id catalog. Erc20 coins
// resolve structurally for the DEX source; everything else needs a
// catalog entry or a seeded default.
type Resolver struct {
	catalog map[catalogKey]string
}

func New() *Resolver {
	r := &Resolver{catalog: make(map[catalogKey]string)}
	for coinType, id := range defaultGeckoIDs {
		r.Add(coinType, SourceCoinGecko, id)
	}
	return r
}

var defaultGeckoIDs = map[coin.Type]string{
	coin.Bitcoin{}:           "bitcoin",
	coin.BitcoinCash{}:       "bitcoin-cash",
	coin.Litecoin{}:          "litecoin",
	coin.Dash{}:              "dash",
	coin.Zcash{}:             "zcash",
	coin.Ethereum{}:          "ethereum",
	coin.BinanceSmartChain{}: "binancecoin",
}

// Add registers an external identifier. Later entries for the same
// (coin, source) pair replace earlier ones.
func (r *Resolver) Add(coinType coin.Type, source, externalID string) {
	r.catalog[catalogKey{coinID: coinType.ID(), source: source}] = externalID
}

// ProviderID resolves the external identifier coinType carries for
// source, or ErrNotFound.
func (r *Resolver) ProviderID(coinType coin.Type, source string) (string, error) {
	if id, ok := r.catalog[catalogKey{coinID: coinType.ID(), source: source}]; ok {
		return id, nil
	}

	if source == SourceUniswap {
		switch t := coinType.(type) {
		case coin.Ethereum:
			return WETHAddress, nil
		case coin.Erc20:
			return t.Address, nil
		}
	}

	return "", fmt.Errorf("%w: %s for %s", ErrNotFound, coinType.ID(), source)
}

// CoinType reverse-resolves an external identifier back to a coin
// identity, when one is known.
func (r *Resolver) CoinType(source, externalID string) (coin.Type, bool) {
	for key, id := range r.catalog {
		if key.source == source && id == externalID {
			if t, err := coin.ParseID(key.coinID); err == nil {
				return t, true
			}
		}
	}
	if source == SourceUniswap {
		if externalID == WETHAddress {
			return coin.Ethereum{}, true
		}
		if erc20, err := coin.NewErc20(externalID); err == nil {
			return erc20, true
		}
	}
	return nil, false
}
