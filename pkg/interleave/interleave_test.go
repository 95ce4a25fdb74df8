package interleave

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPermutationsAreInjective(t *testing.T) {
	for _, p := range All() {
		t.Run(p.Name(), func(t *testing.T) {
			seen := make(map[int]bool, p.Len())
			for k := 0; k < p.Len(); k++ {
				d := p.At(k)
				require.False(t, seen[d], "bit %d collides at %d", k, d)
				require.Less(t, d, p.Size())
				seen[d] = true
			}
		})
	}
}

func TestInverseUndoesForward(t *testing.T) {
	for _, p := range All() {
		p := p
		t.Run(p.Name(), func(t *testing.T) {
			rapid.Check(t, func(t *rapid.T) {
				src := rapid.SliceOfN(rapid.Int8(), p.Len(), p.Len()).Draw(t, "src")
				mid := make([]int8, p.Size())
				Forward(p, src, mid)
				back := make([]int8, p.Len())
				Inverse(p, mid, back)
				require.Equal(t, src, back)
			})
		})
	}
}

func TestTCHFHalfBursts(t *testing.T) {
	// Blocks 0-3 only use even positions, blocks 4-7 only odd ones.
	for k := 0; k < TCHF.Len(); k++ {
		d := TCHF.At(k)
		block, pos := d/114, d%114
		if block < 4 {
			assert.Equal(t, 0, pos%2, "bit %d", k)
		} else {
			assert.Equal(t, 1, pos%2, "bit %d", k)
		}
	}
}

func TestXCCHSpreadsEvenly(t *testing.T) {
	var perBurst [4]int
	for k := 0; k < XCCH.Len(); k++ {
		perBurst[XCCH.At(k)/114]++
	}
	assert.Equal(t, [4]int{114, 114, 114, 114}, perBurst)

	// Consecutive coded bits never share a burst.
	for k := 1; k < XCCH.Len(); k++ {
		assert.NotEqual(t, XCCH.At(k-1)/114, XCCH.At(k)/114)
	}
}

func TestMCS8BlocksStayOnBurstPairs(t *testing.T) {
	for k := 0; k < MCS8Data.Len(); k++ {
		burst := MCS8Data.At(k) / 306
		assert.Equal(t, k/612, burst/2, "bit %d", k)
	}
}
