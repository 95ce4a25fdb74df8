package codec

import (
	"pgregory.net/rapid"

	"github.com/dbehnke/bts-codec/pkg/bits"
)

// drawLSB draws a block of octets whose bits at and beyond n (least
// significant first) are zero.
func drawLSB(t *rapid.T, octets, n int, label string) []byte {
	data := rapid.SliceOfN(rapid.Byte(), octets, octets).Draw(t, label)
	maskLSB(data, n)
	return data
}

func maskLSB(data []byte, n int) {
	for i := n; i < 8*len(data); i++ {
		data[i>>3] &^= 1 << (i & 7)
	}
}

// drawMSB draws octets whose bits at and beyond n, most significant first,
// are zero.
func drawMSB(t *rapid.T, octets, n int, label string) []byte {
	data := rapid.SliceOfN(rapid.Byte(), octets, octets).Draw(t, label)
	maskMSB(data, n)
	return data
}

func patterned(n int, seed byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i)*37 + seed
	}
	return out
}

func soft(b []byte) []int8 { return bits.ToSoft(b) }

// infoBits is the number of payload bits a PDTCH scheme carries.
func infoBits(s Scheme) int {
	switch s {
	case SchemeCS1:
		return 184
	case SchemeCS2:
		return 271
	case SchemeCS3:
		return 315
	case SchemeCS4:
		return 431
	}
	e := egprsFor(s)
	return e.dataAt + e.blocks*e.n
}
