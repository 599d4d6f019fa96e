// Package bitmap provides a simple, memory-efficient bitmap implementation
// for representing sets of non-negative row indexes. The filter engine
// evaluates each predicate into a bitmap and intersects them, so predicate
// order never changes the result.
package bitmap

import "math/bits"

// Bitmap represents a bitset backed by a slice of uint64 words.
// Each bit corresponds to a non-negative row index in [0, n).
type Bitmap struct {
	data []uint64
	n    int
}

// New allocates an empty bitmap sized for row indexes in [0, n).
//
// If n <= 0, no backing storage is allocated and the bitmap behaves as an
// empty set.
func New(n int) *Bitmap {
	if n <= 0 {
		return &Bitmap{}
	}
	nWords := (n + 63) / 64 // enough 64-bit words to cover [0, n)
	return &Bitmap{
		data: make([]uint64, nWords),
		n:    n,
	}
}

// NewFull allocates a bitmap with every bit in [0, n) set. It is the identity
// element for And, which makes it the natural starting point when
// intersecting predicate results.
func NewFull(n int) *Bitmap {
	b := New(n)
	for i := range b.data {
		b.data[i] = ^uint64(0)
	}
	// Mask off bits beyond n in the last word.
	if rem := n % 64; rem != 0 && len(b.data) > 0 {
		b.data[len(b.data)-1] = (1 << uint(rem)) - 1
	}
	return b
}

// Add sets the bit for id. Out-of-range ids are ignored.
func (b *Bitmap) Add(id int) {
	if id < 0 || id >= b.n {
		return
	}
	b.data[id/64] |= 1 << uint(id%64)
}

// Has reports whether the bit for id is set. Out-of-range ids return false.
func (b *Bitmap) Has(id int) bool {
	if id < 0 || id >= b.n {
		return false
	}
	return (b.data[id/64] & (1 << uint(id%64))) != 0
}

// And intersects b with other in place. The bitmaps must be sized for the
// same row count; extra words in either are treated as zero.
func (b *Bitmap) And(other *Bitmap) {
	for i := range b.data {
		if i < len(other.data) {
			b.data[i] &= other.data[i]
		} else {
			b.data[i] = 0
		}
	}
}

// Count returns the number of set bits.
func (b *Bitmap) Count() int {
	total := 0
	for _, w := range b.data {
		total += bits.OnesCount64(w)
	}
	return total
}

// Len returns the row count the bitmap was sized for.
func (b *Bitmap) Len() int { return b.n }
