package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/dbehnke/bts-codec/pkg/bits"
	"github.com/dbehnke/bts-codec/pkg/conv"
	"github.com/dbehnke/bts-codec/pkg/crc"
)

// The helpers below rebuild an encoder path up to the coder input, flip
// one bit after the parity is attached and finish the path. flip < 0 leaves
// the block intact, which must reproduce the package encoder.

func rachFlipped(ra byte, bsic uint8, flip int) []byte {
	u := make([]byte, conv.RACH.Len)
	bits.UnpackLSB(u, 0, []byte{ra}, 0, 8)
	crc.RACH.SetBits(u[:8], u[8:])
	applyBSIC(u[8:], bsic)
	if flip >= 0 {
		u[flip] ^= 1
	}
	out := make([]byte, RACHBits)
	if _, err := conv.RACH.Encode(u, out); err != nil {
		panic(err)
	}
	return out
}

func afsFlipped(d []byte, m AMRMode, flip int) []byte {
	info := amrModes[m]
	u := amrProtect(d, info.afsProt, info.bits)
	if flip >= 0 {
		u[flip] ^= 1
	}
	cB := make([]byte, 456)
	copy(cB, afsInBand[0])
	if _, err := info.afs.Encode(u, cB[afsInBandLen:]); err != nil {
		panic(err)
	}
	return mapTCHF(cB, 0)
}

func ahsFlipped(d []byte, m AMRMode, flip int) []byte {
	info := amrModes[m]
	u := amrProtect(d, info.ahsProt, info.ahsClass1)
	if flip >= 0 {
		u[flip] ^= 1
	}
	cB := make([]byte, hrBlockLen)
	copy(cB, ahsInBand[0])
	coded := ahsInBandLen + info.ahs.EncodedLen()
	if _, err := info.ahs.Encode(u, cB[ahsInBandLen:coded]); err != nil {
		panic(err)
	}
	copy(cB[coded:], d[info.ahsClass1:])
	return mapTCHH(cB, 0)
}

func amrTestBits(m AMRMode) []byte {
	d := make([]byte, m.Bits())
	bits.UnpackMSB(d, 0, patterned(m.Octets(), byte(m)), 0, m.Bits())
	return d
}

func TestRACHDetectsEveryFlippedBit(t *testing.T) {
	const bsic = 21
	for ra := 0; ra < 256; ra++ {
		clean, err := EncodeRACH(byte(ra), bsic)
		require.NoError(t, err)
		require.Equal(t, clean, rachFlipped(byte(ra), bsic, -1))

		for i := 0; i < conv.RACH.Len; i++ {
			_, _, err := DecodeRACH(soft(rachFlipped(byte(ra), bsic, i)), bsic)
			if !assert.ErrorIs(t, err, ErrCRC, "ra %#02x bit %d", ra, i) {
				return
			}
		}
	}
}

func TestAFSDetectsEveryFlippedProtectedBit(t *testing.T) {
	for m := AMR475; m <= AMR122; m++ {
		m := m
		t.Run(m.String(), func(t *testing.T) {
			cfg := AMRConfig{Codecs: []AMRMode{m}}
			d := amrTestBits(m)

			clean, err := EncodeAFS(amrFrameOctets(d, m), cfg, AMRFrame{})
			require.NoError(t, err)
			require.Equal(t, clean, afsFlipped(d, m, -1))

			for i := 0; i < amrModes[m].afsProt+crc.AMR.Bits; i++ {
				_, err := DecodeAFS(soft(afsFlipped(d, m, i)), cfg, nil)
				require.ErrorIs(t, err, ErrCRC, "bit %d", i)
			}
		})
	}
}

func TestAHSDetectsEveryFlippedProtectedBit(t *testing.T) {
	for m := AMR475; m <= AMR795; m++ {
		m := m
		t.Run(m.String(), func(t *testing.T) {
			cfg := AMRConfig{Codecs: []AMRMode{m}}
			d := amrTestBits(m)

			clean, err := EncodeAHS(amrFrameOctets(d, m), cfg, AMRFrame{})
			require.NoError(t, err)
			require.Equal(t, clean, ahsFlipped(d, m, -1))

			for i := 0; i < amrModes[m].ahsProt+crc.AMR.Bits; i++ {
				_, err := DecodeAHS(soft(ahsFlipped(d, m, i)), false, cfg, nil)
				require.ErrorIs(t, err, ErrCRC, "bit %d", i)
			}
		})
	}
}

func TestEGPRSHeaderDetectsEveryFlippedBit(t *testing.T) {
	for _, s := range []Scheme{SchemeMCS1, SchemeMCS5, SchemeMCS7} {
		e := egprsFor(s)
		t.Run(s.String(), func(t *testing.T) {
			require.Equal(t, e.hdrLen+crc.MCSHeader.Bits, e.hdr.Len)
			for i := 0; i < e.hdr.Len; i++ {
				u := make([]byte, e.hdr.Len)
				bits.UnpackLSB(u, 0, patterned(8, byte(s)), 0, e.hdrLen)
				crc.MCSHeader.SetBits(u[:e.hdrLen], u[e.hdrLen:])
				u[i] ^= 1

				hc := make([]byte, e.hdr.EncodedLen())
				_, err := e.hdr.Encode(u, hc)
				require.NoError(t, err)
				if e.hdr == conv.MCS5DLHeader {
					hc = append(hc, hc[len(hc)-1])
				}

				_, st, err := e.decodeHeader(soft(hc))
				require.ErrorIs(t, err, ErrHeaderCRC, "bit %d", i)
				assert.Zero(t, st.NErrors)
			}
		})
	}
}

func TestXCCHDetectsFlippedBit(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		l2 := rapid.SliceOfN(rapid.Byte(), MACBlockLen, MACBlockLen).Draw(t, "l2")
		flip := rapid.IntRange(0, conv.XCCH.Len-1).Draw(t, "flip")

		u := make([]byte, conv.XCCH.Len)
		bits.UnpackLSB(u, 0, l2, 0, 184)
		crc.Fire40.SetBits(u[:184], u[184:])
		u[flip] ^= 1
		cB := make([]byte, conv.XCCH.EncodedLen())
		_, err := conv.XCCH.Encode(u, cB)
		require.NoError(t, err)

		_, _, err = DecodeXCCH(soft(mapNormalBlock(cB, xcchFlags)))
		require.ErrorIs(t, err, ErrCRC)
	})
}

func TestCS23DetectsFlippedBit(t *testing.T) {
	tests := []struct {
		scheme Scheme
		code   *conv.Code
		n      int
		flags  []byte
	}{
		{SchemeCS2, conv.CS2, 271, pdtchFlags[1]},
		{SchemeCS3, conv.CS3, 315, pdtchFlags[2]},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.scheme.String(), func(t *testing.T) {
			rapid.Check(t, func(t *rapid.T) {
				l2 := drawLSB(t, bits.OctetsFor(tt.n), tt.n, "l2")
				// The USF bits are re-derived from the precode on decode, so
				// flips start after them.
				flip := rapid.IntRange(6, 3+tt.n+crc.CS234.Bits-1).Draw(t, "flip")

				u := make([]byte, tt.code.Len)
				bits.UnpackLSB(u, 3, l2, 0, tt.n)
				crc.CS234.SetBits(u[3:3+tt.n], u[3+tt.n:])
				copy(u, usf2six[l2[0]&7])
				u[flip] ^= 1
				cB := make([]byte, tt.code.EncodedLen())
				_, err := tt.code.Encode(u, cB)
				require.NoError(t, err)

				res, err := DecodePDTCH(soft(mapNormalBlock(cB, tt.flags)), PDTCHOptions{})
				require.ErrorIs(t, err, ErrCRC)
				require.Equal(t, tt.scheme, res.Scheme)
				require.Equal(t, l2[0]&7, res.USF)
			})
		})
	}
}

func TestEGPRSDataDetectsFlippedBit(t *testing.T) {
	for _, s := range []Scheme{SchemeMCS1, SchemeMCS4, SchemeMCS6, SchemeMCS9} {
		e := egprsFor(s)
		t.Run(s.String(), func(t *testing.T) {
			rapid.Check(t, func(t *rapid.T) {
				l2 := drawLSB(t, e.octets, infoBits(s), "l2")
				block := rapid.IntRange(0, e.blocks-1).Draw(t, "block")
				flip := rapid.IntRange(0, e.data.Len-1).Draw(t, "flip")

				dc := make([]byte, 0, e.blocks*e.data.EncodedLen())
				for b := 0; b < e.blocks; b++ {
					u := make([]byte, e.data.Len)
					bits.UnpackLSB(u, 0, l2, e.dataAt+b*e.n, e.n)
					crc.MCSData.SetBits(u[:e.n], u[e.n:])
					if b == block {
						u[flip] ^= 1
					}
					c := make([]byte, e.data.EncodedLen())
					_, err := e.data.Encode(u, c)
					require.NoError(t, err)
					dc = append(dc, c...)
				}

				_, st, err := e.decodeData(soft(dc))
				require.ErrorIs(t, err, ErrCRC)
				require.Zero(t, st.NErrors)
			})
		})
	}
}
