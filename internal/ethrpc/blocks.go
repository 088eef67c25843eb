// Package ethrpc resolves wall-clock timestamps to block numbers.
// On-chain history is addressed by block, not time, so the subgraph
// adapter needs this mapping before it can query past snapshots.
package ethrpc

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/PAYCY-LLC/xrates-kit-go/internal/market"
)

// heightCacheBucket quantizes target timestamps so repeated lookups for
// the same period within a short span reuse the resolved height.
const heightCacheBucket = 10 * time.Minute

type Client struct {
	rpc *ethclient.Client
	log *zap.SugaredLogger
	now func() time.Time

	mu    sync.Mutex
	cache map[int64]uint64
}

func Dial(rpcURL string, log *zap.SugaredLogger) (*Client, error) {
	rpc, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial RPC: %w", err)
	}
	return &Client{
		rpc:   rpc,
		log:   log,
		now:   time.Now,
		cache: make(map[int64]uint64),
	}, nil
}

func (c *Client) Close() { c.rpc.Close() }

// Heights resolves the block number closest below each period's target
// timestamp (now minus the period's duration).
func (c *Client) Heights(ctx context.Context, periods []market.TimePeriod) (map[market.TimePeriod]uint64, error) {
	out := make(map[market.TimePeriod]uint64, len(periods))
	for _, period := range periods {
		target := c.now().Add(-period.Duration())
		height, err := c.heightAt(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("height for %s: %w", period, err)
		}
		out[period] = height
	}
	return out, nil
}

func (c *Client) heightAt(ctx context.Context, target time.Time) (uint64, error) {
	bucket := target.Truncate(heightCacheBucket).Unix()

	c.mu.Lock()
	cached, ok := c.cache[bucket]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	head, err := c.rpc.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("head header: %w", err)
	}

	targetUnix := uint64(target.Unix())
	if head.Time <= targetUnix {
		return head.Number.Uint64(), nil
	}

	// Binary search over header timestamps: headers are monotonic in
	// time, so the latest block at or before the target is well-defined.
	lo, hi := uint64(1), head.Number.Uint64()
	for lo < hi {
		mid := (lo + hi + 1) / 2
		header, err := c.rpc.HeaderByNumber(ctx, new(big.Int).SetUint64(mid))
		if err != nil {
			return 0, fmt.Errorf("header %d: %w", mid, err)
		}
		if header.Time <= targetUnix {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	c.mu.Lock()
	c.cache[bucket] = lo
	c.mu.Unlock()

	c.log.Debugf("[ETHRPC] resolved %s to block %d", target.Format(time.RFC3339), lo)
	return lo, nil
}
