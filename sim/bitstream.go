package sim

import "math/rand"

// wordBits is the number of random bits taken from each 63-bit draw.
const wordBits = 63

// Bitstream is an infinite stream of random bits cut from 63-bit words of an
// underlying RNG. Drawing a small integer this way consumes only as many bits as
// it needs, which makes it the cheap source for picking locus elements.
//
// Thread-safety: NOT thread-safe.
type Bitstream struct {
	rng  *rand.Rand
	word uint64
	left int
}

// NewBitstream creates a Bitstream over rng.
func NewBitstream(rng *rand.Rand) *Bitstream {
	return &Bitstream{rng: rng}
}

// Bit returns the next random bit, 0 or 1.
func (b *Bitstream) Bit() int {
	if b.left == 0 {
		b.word = uint64(b.rng.Int63())
		b.left = wordBits
	}
	bit := int(b.word & 1)
	b.word >>= 1
	b.left--
	return bit
}

// Intn returns a uniform integer in [0, n). It assembles the minimum number of bits
// that can represent n-1 and rejects values out of range. Panics if n <= 0.
func (b *Bitstream) Intn(n int) int {
	if n <= 0 {
		panic("Bitstream.Intn: n must be positive")
	}
	if n == 1 {
		return 0
	}
	bits := 0
	for m := n - 1; m > 0; m >>= 1 {
		bits++
	}
	for {
		v := 0
		for i := 0; i < bits; i++ {
			v = v<<1 | b.Bit()
		}
		if v < n {
			return v
		}
	}
}

// Intner is the source of uniform integers used to pick locus elements.
// Both *rand.Rand and *Bitstream satisfy it.
type Intner interface {
	Intn(n int) int
}
