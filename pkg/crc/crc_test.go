package crc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var allCodes = []Code{Fire40, CS234, MCSHeader, MCSData, RACH, SCH, TCHFR, EFR, AMR}

func msbBits(s string) []byte {
	out := make([]byte, 0, len(s)*8)
	for i := 0; i < len(s); i++ {
		for b := 7; b >= 0; b-- {
			out = append(out, (s[i]>>b)&1)
		}
	}
	return out
}

func TestCS234CheckValue(t *testing.T) {
	// CRC-16/XMODEM of "123456789" is 0x31c3; the GSM variant inverts it.
	assert.Equal(t, uint64(0xce3c), CS234.Compute(msbBits("123456789")))
}

func TestZeroDataGivesRemainder(t *testing.T) {
	for _, c := range allCodes {
		t.Run(c.Name, func(t *testing.T) {
			assert.Equal(t, c.Remainder, c.Compute(make([]byte, 50)))
		})
	}
}

func TestSetCheckRoundTrip(t *testing.T) {
	for _, c := range allCodes {
		c := c
		t.Run(c.Name, func(t *testing.T) {
			rapid.Check(t, func(t *rapid.T) {
				data := rapid.SliceOfN(rapid.ByteRange(0, 1), 1, 300).Draw(t, "data")
				parity := make([]byte, c.Bits)
				c.SetBits(data, parity)
				require.NoError(t, c.CheckBits(data, parity))
			})
		})
	}
}

func TestSingleBitErrorsDetected(t *testing.T) {
	for _, c := range allCodes {
		c := c
		t.Run(c.Name, func(t *testing.T) {
			rapid.Check(t, func(t *rapid.T) {
				data := rapid.SliceOfN(rapid.ByteRange(0, 1), 8, 200).Draw(t, "data")
				parity := make([]byte, c.Bits)
				c.SetBits(data, parity)

				pos := rapid.IntRange(0, len(data)+c.Bits-1).Draw(t, "pos")
				if pos < len(data) {
					data[pos] ^= 1
				} else {
					parity[pos-len(data)] ^= 1
				}
				err := c.CheckBits(data, parity)
				require.Error(t, err)
				require.True(t, errors.Is(err, ErrMismatch))
			})
		})
	}
}

func TestShortParityRejected(t *testing.T) {
	err := RACH.CheckBits(make([]byte, 8), make([]byte, 3))
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestAffine(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 200).Draw(t, "n")
		a := rapid.SliceOfN(rapid.ByteRange(0, 1), n, n).Draw(t, "a")
		b := rapid.SliceOfN(rapid.ByteRange(0, 1), n, n).Draw(t, "b")
		x := make([]byte, n)
		for i := range x {
			x[i] = a[i] ^ b[i]
		}
		got := Fire40.Compute(a) ^ Fire40.Compute(b) ^ Fire40.Compute(x)
		require.Equal(t, Fire40.Remainder, got)
	})
}
