// Package mockgen derives repeatable synthetic data from a query string.
// The same query always yields the same sequence of values.
package mockgen

import (
	"crypto/sha256"
	"math/big"
	"math/rand/v2"
)

var seedModulus = big.NewInt(100_000_000)

// Seed is SHA-256(query) read as a big-endian integer, modulo 10^8.
func Seed(query string) uint64 {
	sum := sha256.Sum256([]byte(query))
	n := new(big.Int).SetBytes(sum[:])
	return n.Mod(n, seedModulus).Uint64()
}

// Rand is a deterministic generator seeded from a query.
type Rand struct {
	r *rand.Rand
}

func New(query string) *Rand {
	s := Seed(query)
	return &Rand{r: rand.New(rand.NewPCG(s, s))}
}

// IntRange returns a value in [lo, hi].
func (g *Rand) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + g.r.IntN(hi-lo+1)
}

func (g *Rand) Float64() float64 {
	return g.r.Float64()
}

// Chance reports true with probability p.
func (g *Rand) Chance(p float64) bool {
	return g.r.Float64() < p
}

// Choice picks one element of items; items must not be empty.
func Choice[T any](g *Rand, items []T) T {
	return items[g.r.IntN(len(items))]
}

// Sample picks n distinct elements of items in random order, without modifying items.
// n is clamped to [0, len(items)].
func Sample[T any](g *Rand, items []T, n int) []T {
	n = max(0, min(n, len(items)))
	pool := make([]T, len(items))
	copy(pool, items)
	for i := 0; i < n; i++ {
		j := i + g.r.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}
