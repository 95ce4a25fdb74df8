// Package interleave holds the block and diagonal interleaving permutations
// that spread coded bits over the bursts of one radio block.
package interleave

import (
	"fmt"

	"github.com/dbehnke/bts-codec/pkg/bits"
)

// Perm maps source bit k to destination position Perm[k]. The destination
// may be longer than the source (TCH/F spreads 456 bits over 912 positions).
type Perm struct {
	name string
	dst  []int
	size int
}

// Name identifies the permutation in errors.
func (p Perm) Name() string { return p.name }

// Len is the number of source bits.
func (p Perm) Len() int { return len(p.dst) }

// Size is the destination length.
func (p Perm) Size() int { return p.size }

// At returns the destination of source bit k.
func (p Perm) At(k int) int { return p.dst[k] }

func build(name string, n, size int, f func(k int) int) Perm {
	p := Perm{name: name, dst: make([]int, n), size: size}
	seen := make([]bool, size)
	for k := 0; k < n; k++ {
		d := f(k)
		if d < 0 || d >= size || seen[d] {
			panic(fmt.Sprintf("interleave %s: bit %d maps to %d twice or out of range", name, k, d))
		}
		seen[d] = true
		p.dst[k] = d
	}
	return p
}

// Forward scatters src into dst: dst[p.At(k)] = src[k].
func Forward[T bits.Bit](p Perm, src, dst []T) {
	for k, d := range p.dst {
		dst[d] = src[k]
	}
}

// Inverse gathers dst back from the interleaved src: dst[k] = src[p.At(k)].
func Inverse[T bits.Bit](p Perm, src, dst []T) {
	for k, d := range p.dst {
		dst[k] = src[d]
	}
}

func diag(k int) int { return 2 * ((49 * k) % 57) }

// Permutations used by the channel codecs.
var (
	// XCCH spreads 456 coded bits over four bursts of 114.
	XCCH = build("xcch", 456, 456, func(k int) int {
		return 114*(k%4) + diag(k) + (k%8)/4
	})

	// TCHF is the diagonal interleaver over eight half-used bursts: blocks
	// 0 to 3 carry the even positions and blocks 4 to 7 the odd ones.
	TCHF = build("tch_f", 456, 912, func(k int) int {
		return 114*(k%8) + diag(k) + (k%8)/4
	})

	// TCHH spreads 228 coded bits over four bursts, even positions in the
	// first two and odd positions in the last two.
	TCHH = build("tch_h", 228, 456, func(k int) int {
		return 114*(k%4) + diag(k) + (k%4)/2
	})

	// MCS5Header interleaves the 100 bit MCS-5/6 header.
	MCS5Header = build("mcs5_hdr", 100, 100, func(k int) int {
		return 25*(k%4) + (17*k)%25
	})

	// MCS7Header interleaves the 124 bit MCS-7/8/9 header.
	MCS7Header = build("mcs7_hdr", 124, 124, func(k int) int {
		return 31*(k%4) + (17*k)%31
	})

	// The EGPRS data permutations below are burst-spreading rules of the
	// same shape as the published ones, not the exact index formulas.

	// MCS5Data spreads the 1248 bit MCS-5/6 data block over four bursts.
	MCS5Data = build("mcs5_data", 1248, 1248, func(k int) int {
		return 312*(k%4) + (25*(k/4))%312
	})

	// MCS7Data spreads both 612 bit MCS-7 data blocks, taken as one
	// sequence, over four bursts.
	MCS7Data = build("mcs7_data", 1224, 1224, func(k int) int {
		return 306*(k%4) + (25*(k/4))%306
	})

	// MCS8Data keeps each 612 bit MCS-8/9 data block on its own burst pair.
	MCS8Data = build("mcs8_data", 1224, 1224, func(k int) int {
		b, i := k/612, k%612
		return 306*(2*b+i%2) + (25*(i/2))%306
	})
)

// All lists the package permutations.
func All() []Perm {
	return []Perm{XCCH, TCHF, TCHH, MCS5Header, MCS7Header, MCS5Data, MCS7Data, MCS8Data}
}
