package market

import "time"

// Expirable pairs a fetched payload with its fetch time. Entries are
// created on successful fetch and replaced whole on the next one; a
// failed fetch leaves the previous entry intact.
type Expirable[T any] struct {
	Payload   T
	FetchedAt time.Time
}

func NewExpirable[T any](payload T, fetchedAt time.Time) Expirable[T] {
	return Expirable[T]{Payload: payload, FetchedAt: fetchedAt}
}

// Expired reports whether the entry is stale: a read at FetchedAt+ttl or
// later sees a stale entry, any read before that sees a fresh one.
func (e Expirable[T]) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.FetchedAt) >= ttl
}
