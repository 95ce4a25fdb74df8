package conv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/dbehnke/bts-codec/pkg/bits"
	"github.com/dbehnke/bts-codec/pkg/puncture"
)

func TestEncodedLengths(t *testing.T) {
	tests := []struct {
		code *Code
		want int
	}{
		{XCCH, 456},
		{CS2, 456},
		{CS3, 456},
		{RACH, 36},
		{SCH, 78},
		{TCHFR, 378},
		{TCHHR, 211},
		{AFS122, 448}, {AFS102, 448}, {AFS795, 448}, {AFS74, 448},
		{AFS67, 448}, {AFS59, 448}, {AFS515, 448}, {AFS475, 448},
		{AHS795, 188}, {AHS74, 196}, {AHS67, 200}, {AHS59, 208}, {AHS515, 212}, {AHS475, 212},
		{MCS1, 372}, {MCS2, 372}, {MCS3, 372}, {MCS4, 372},
		{MCS5, 1248}, {MCS6, 1248},
		{MCS7, 612}, {MCS8, 612}, {MCS9, 612},
		{MCS1DLHeader, 68}, {MCS5DLHeader, 99}, {MCS7DLHeader, 124},
		{MCS1ULHeader, 80}, {MCS5ULHeader, 135}, {MCS7ULHeader, 160},
	}
	for _, tt := range tests {
		t.Run(tt.code.Name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.EncodedLen())
		})
	}
	assert.Len(t, All(), len(tests))
}

func TestRecursiveTrellis(t *testing.T) {
	// First rows of the AFS 12.2 state table.
	want := [][2]uint8{{0, 1}, {2, 3}, {4, 5}, {6, 7}, {9, 8}}
	assert.Equal(t, want, AFS122.NextState[:5])

	// Systematic output follows the input bit.
	for s := range AFS122.NextOutput {
		assert.Equal(t, uint8(0), AFS122.NextOutput[s][0]>>1, "state %d", s)
		assert.Equal(t, uint8(1), AFS122.NextOutput[s][1]>>1, "state %d", s)
	}

	// The tail drives every state back to zero within K-1 steps.
	for s := range AFS795.NextTermState {
		st := uint8(s)
		for i := 0; i < AFS795.K-1; i++ {
			st = AFS795.NextTermState[st]
		}
		assert.Equal(t, uint8(0), st, "state %d", s)
	}
}

func TestFeedForwardTrellis(t *testing.T) {
	assert.Nil(t, XCCH.NextTermOutput)
	assert.Equal(t, [2]uint8{0, 3}, XCCH.NextOutput[0])
	assert.Equal(t, [2]uint8{0, 1}, XCCH.NextState[0])
	assert.Equal(t, [2]uint8{14, 15}, XCCH.NextState[15])
}

func TestRoundTrip(t *testing.T) {
	for _, c := range All() {
		c := c
		t.Run(c.Name, func(t *testing.T) {
			rapid.Check(t, func(t *rapid.T) {
				in := rapid.SliceOfN(rapid.ByteRange(0, 1), c.Len, c.Len).Draw(t, "in")
				coded := make([]byte, c.EncodedLen())
				n, err := c.Encode(in, coded)
				require.NoError(t, err)
				require.Equal(t, c.EncodedLen(), n)

				out := make([]byte, c.Len)
				require.NoError(t, c.Decode(bits.ToSoft(coded), out))
				require.Equal(t, in, out)
			})
		})
	}
}

func TestTailBitingStartsWhereItEnds(t *testing.T) {
	c := MCS5ULHeader
	in := make([]byte, c.Len)
	for i := range in {
		in[i] = byte(i*7+3) % 5 & 1
	}
	coded := make([]byte, c.EncodedLen())
	_, err := c.Encode(in, coded)
	require.NoError(t, err)

	// Rotating the input by one step rotates the unpunctured output by N.
	rot := append(append([]byte{}, in[1:]...), in[0])
	coded2 := make([]byte, c.EncodedLen())
	_, err = c.Encode(rot, coded2)
	require.NoError(t, err)
	assert.Equal(t, coded[c.N:], coded2[:len(coded)-c.N])
	assert.Equal(t, coded[:c.N], coded2[len(coded)-c.N:])
}

func TestDecodeCorrectsErrors(t *testing.T) {
	in := make([]byte, XCCH.Len)
	for i := range in {
		in[i] = byte(i>>2) & 1
	}
	coded := make([]byte, XCCH.EncodedLen())
	_, err := XCCH.Encode(in, coded)
	require.NoError(t, err)

	soft := bits.ToSoft(coded)
	soft[10] = -soft[10]
	soft[200] = -soft[200]
	soft[400] = bits.Erasure

	out := make([]byte, XCCH.Len)
	nErr, nTotal, err := XCCH.DecodeBER(soft, out)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Equal(t, 3, nErr)
	assert.Equal(t, 456, nTotal)
}

func TestDecodeBERClean(t *testing.T) {
	for _, c := range []*Code{CS3, MCS9, AHS475, MCS7DLHeader} {
		in := make([]byte, c.Len)
		in[0], in[c.Len-1] = 1, 1
		coded := make([]byte, c.EncodedLen())
		_, err := c.Encode(in, coded)
		require.NoError(t, err)

		out := make([]byte, c.Len)
		nErr, nTotal, err := c.DecodeBER(bits.ToSoft(coded), out)
		require.NoError(t, err, c.Name)
		assert.Zero(t, nErr, c.Name)
		assert.Equal(t, c.EncodedLen(), nTotal, c.Name)
	}
}

func TestLengthErrors(t *testing.T) {
	_, err := RACH.Encode(make([]byte, 13), make([]byte, 36))
	assert.ErrorIs(t, err, ErrLength)
	_, err = RACH.Encode(make([]byte, 14), make([]byte, 35))
	assert.ErrorIs(t, err, ErrLength)
	assert.ErrorIs(t, RACH.Decode(make([]int8, 35), make([]byte, 14)), ErrLength)
	assert.ErrorIs(t, RACH.Decode(make([]int8, 36), make([]byte, 13)), ErrLength)
}

func TestNewValidation(t *testing.T) {
	_, err := New(Params{Name: "bad-k", K: 12, Len: 10, Polys: []uint32{G0}})
	assert.Error(t, err)

	_, err = New(Params{Name: "bad-punct", K: 5, Len: 10, Polys: []uint32{G0, G1},
		Puncture: puncture.Uniform(30, 20)})
	assert.Error(t, err)

	_, err = New(Params{Name: "recursive-tb", K: 5, Len: 10, Polys: []uint32{G0, G1},
		Feedback: G0, Term: TailBiting})
	assert.Error(t, err)

	c, err := New(Params{Name: "ok", K: 5, Len: 10, Polys: []uint32{G0, G1}})
	require.NoError(t, err)
	assert.Equal(t, 28, c.EncodedLen())
	assert.Contains(t, c.String(), "flush")
}
