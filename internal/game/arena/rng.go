package arena

import (
	"crypto/rand"
	"math/big"
)

// Source supplies the randomness used for room codes and respawn placement.
// Implementations must be safe for concurrent use.
type Source interface {
	// Intn returns a uniform int in [0, n). Precondition: n > 0.
	Intn(n int) int
	// Float64 returns a uniform float64 in [0, 1).
	Float64() float64
}

// float64Bits is the number of uniform dyadic steps used for Float64.
// 1<<53 is the largest power of two exactly representable as float64.
const float64Bits = 1 << 53

// cryptoSource implements Source using crypto/rand.
//
// Invariant: values are uniformly distributed in the documented ranges.
type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
func NewCryptoSource() Source {
	return &cryptoSource{}
}

// Intn returns a cryptographically secure random int in [0, n).
//
// Precondition: n > 0. Panics with "arena: Intn called with n <= 0" if n <= 0.
// Panics with "arena: crypto/rand failure: <err>" if crypto/rand fails.
func (c *cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("arena: Intn called with n <= 0")
	}
	val, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("arena: crypto/rand failure: " + err.Error())
	}
	return int(val.Int64())
}

// Float64 returns a cryptographically secure random float64 in [0, 1).
func (c *cryptoSource) Float64() float64 {
	val, err := rand.Int(rand.Reader, big.NewInt(float64Bits))
	if err != nil {
		panic("arena: crypto/rand failure: " + err.Error())
	}
	return float64(val.Int64()) / float64Bits
}

// uniformIn maps a Source draw onto [min, max).
func uniformIn(src Source, min, max float64) float64 {
	return min + src.Float64()*(max-min)
}
