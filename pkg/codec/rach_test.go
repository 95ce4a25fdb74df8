package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestRACHEveryAccessValue(t *testing.T) {
	for _, bsic := range []uint8{0, 7, 42, 63} {
		for ra := 0; ra < 256; ra++ {
			burst, err := EncodeRACH(byte(ra), bsic)
			require.NoError(t, err)
			require.Len(t, burst, RACHBits)

			got, st, err := DecodeRACH(soft(burst), bsic)
			require.NoError(t, err, "ra %d bsic %d", ra, bsic)
			require.Equal(t, byte(ra), got)
			require.Equal(t, Stats{NErrors: 0, NBitsTotal: RACHBits}, st)
		}
	}
}

func TestRACHWrongBSIC(t *testing.T) {
	burst, err := EncodeRACH(0x5c, 12)
	require.NoError(t, err)

	for bsic := uint8(0); bsic < 64; bsic++ {
		if bsic == 12 {
			continue
		}
		_, st, err := DecodeRACH(soft(burst), bsic)
		assert.ErrorIs(t, err, ErrCRC, "bsic %d", bsic)
		assert.Zero(t, st.NErrors)
	}
}

func TestRACHInputErrors(t *testing.T) {
	_, err := EncodeRACH(1, 64)
	assert.ErrorIs(t, err, ErrInvalidBSIC)
	_, _, err = DecodeRACH(make([]int8, RACHBits), 200)
	assert.ErrorIs(t, err, ErrInvalidBSIC)
	_, _, err = DecodeRACH(make([]int8, 20), 1)
	assert.ErrorIs(t, err, ErrBurstLength)
}

func TestSCHRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		info := drawLSB(t, schInfoOctets, schInfoBits, "info")
		burst, err := EncodeSCH(info)
		require.NoError(t, err)
		require.Len(t, burst, SCHBits)

		got, st, err := DecodeSCH(soft(burst))
		require.NoError(t, err)
		require.Equal(t, info, got)
		require.Equal(t, SCHBits, st.NBitsTotal)
	})
}

func TestSCHSingleErrorCorrected(t *testing.T) {
	info := []byte{0x12, 0x34, 0x56, 0x01}
	burst, err := EncodeSCH(info)
	require.NoError(t, err)
	rx := soft(burst)
	rx[40] = -rx[40]

	got, st, err := DecodeSCH(rx)
	require.NoError(t, err)
	assert.Equal(t, info, got)
	assert.Equal(t, 1, st.NErrors)
}

func TestSCHInputErrors(t *testing.T) {
	_, err := EncodeSCH(make([]byte, 3))
	assert.ErrorIs(t, err, ErrUnsupportedLength)
	_, _, err = DecodeSCH(make([]int8, 77))
	assert.ErrorIs(t, err, ErrBurstLength)
}
