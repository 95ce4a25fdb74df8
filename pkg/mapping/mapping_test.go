package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/dbehnke/bts-codec/pkg/bits"
)

func TestNormalBurstRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		iB := rapid.SliceOfN(rapid.ByteRange(0, 1), IBLen, IBLen).Draw(t, "iB")
		hl := rapid.ByteRange(0, 1).Draw(t, "hl")
		hn := rapid.ByteRange(0, 1).Draw(t, "hn")

		eB := make([]byte, BurstLen)
		MapNormal(iB, eB, hl, hn)
		assert.Equal(t, iB[:57], eB[:57])
		assert.Equal(t, iB[57:], eB[59:])

		back := make([]int8, IBLen)
		gl, gn := UnmapNormal(bits.ToSoft(eB), back)
		require.Equal(t, bits.ToSoft(iB), back)
		require.Equal(t, bits.Soft(hl), gl)
		require.Equal(t, bits.Soft(hn), gn)
	})
}

func TestTCHHalvesDoNotOverlap(t *testing.T) {
	iB := make([]byte, IBLen)
	for i := range iB {
		iB[i] = 1
	}
	even := make([]byte, BurstLen)
	MapTCH(iB, even, 0, false)
	odd := make([]byte, BurstLen)
	MapTCH(iB, odd, 0, true)

	for i := 0; i < BurstLen; i++ {
		if i == 57 || i == 58 {
			continue
		}
		assert.Equal(t, byte(1), even[i]^odd[i], "position %d", i)
	}
}

func TestTCHRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		odd := rapid.Bool().Draw(t, "odd")
		h := rapid.ByteRange(0, 1).Draw(t, "h")
		iB := rapid.SliceOfN(rapid.ByteRange(0, 1), IBLen, IBLen).Draw(t, "iB")

		eB := make([]byte, BurstLen)
		MapTCH(iB, eB, h, odd)

		back := make([]int8, IBLen)
		flag := UnmapTCH(bits.ToSoft(eB), back, odd)
		require.Equal(t, bits.Soft(h), flag)

		start := 0
		if odd {
			start = 1
		}
		for i := start; i < IBLen; i += 2 {
			require.Equal(t, bits.Soft(iB[i]), back[i], "bit %d", i)
		}
	})
}

func TestTCHFlagPositions(t *testing.T) {
	eB := make([]byte, BurstLen)
	MapTCH(nil, eB, 1, false)
	assert.Equal(t, byte(1), eB[58])
	assert.Equal(t, byte(0), eB[57])

	eB = make([]byte, BurstLen)
	MapTCH(nil, eB, 1, true)
	assert.Equal(t, byte(1), eB[57])

	hl, hn := StealingFlags(bits.ToSoft(eB))
	assert.Equal(t, bits.SoftOne, hl)
	assert.Equal(t, bits.SoftZero, hn)
	assert.Equal(t, bits.SoftOne, UnmapTCH(bits.ToSoft(eB), nil, true))
}

func TestStolenVote(t *testing.T) {
	assert.True(t, Stolen([]int8{-127, -127, -127, -127, -127, -127, -127, -127}))
	assert.False(t, Stolen([]int8{127, 127, 127, 127, 127, 127, 127, 127}))
	assert.True(t, Stolen([]int8{-127, -127, -127, -127, -127, 100, 100, 100}))
	assert.False(t, Stolen([]int8{0, 0, 0, 0, 0, 0, 0, 0}))
}

func TestEightPSKRoundTrip(t *testing.T) {
	for _, l := range []*Layout{MCS5, MCS7} {
		l := l
		t.Run(l.Name, func(t *testing.T) {
			rapid.Check(t, func(t *rapid.T) {
				di := rapid.SliceOfN(rapid.ByteRange(0, 1), 4*l.Data, 4*l.Data).Draw(t, "di")
				hi := rapid.SliceOfN(rapid.ByteRange(0, 1), 4*l.Header, 4*l.Header).Draw(t, "hi")
				up := rapid.SliceOfN(rapid.ByteRange(0, 1), 36, 36).Draw(t, "up")

				bursts := make([]byte, 4*EightPSKLen)
				for b := 0; b < 4; b++ {
					l.Map8PSK(bursts[b*EightPSKLen:(b+1)*EightPSKLen], di, hi, up, b)
				}
				soft := bits.ToSoft(bursts)

				gdi := make([]int8, len(di))
				ghi := make([]int8, len(hi))
				gup := make([]int8, len(up))
				for b := 0; b < 4; b++ {
					l.Unmap8PSK(soft[b*EightPSKLen:(b+1)*EightPSKLen], gdi, ghi, gup, b)
				}
				require.Equal(t, bits.ToSoft(di), gdi)
				require.Equal(t, bits.ToSoft(hi), ghi)
				require.Equal(t, bits.ToSoft(up), gup)
				require.Same(t, l, Detect8PSK(soft))
			})
		})
	}
}
