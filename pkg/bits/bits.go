// Package bits holds the unpacked bit representations shared by the channel
// coding packages: hard bits (one byte per bit, 0 or 1) and soft bits (int8,
// negative means 1, positive means 0, zero is an erasure).
package bits

// Soft bit levels used when hard bits are turned into decoder input.
const (
	SoftOne  int8 = -127
	SoftZero int8 = 127
	Erasure  int8 = 0
)

// Bit is the constraint used by helpers that accept either representation.
type Bit interface {
	~uint8 | ~int8
}

// UnpackLSB expands n bits of src starting at bit srcOff into dst starting at
// dstOff. Bit i of the stream is bit (i%8) of byte i/8, least significant first.
func UnpackLSB(dst []byte, dstOff int, src []byte, srcOff, n int) {
	for i := 0; i < n; i++ {
		b := srcOff + i
		dst[dstOff+i] = (src[b>>3] >> (b & 7)) & 1
	}
}

// PackLSB is the inverse of UnpackLSB. Destination bits not covered by the
// range are left untouched.
func PackLSB(dst []byte, dstOff int, src []byte, srcOff, n int) {
	for i := 0; i < n; i++ {
		b := dstOff + i
		mask := byte(1) << (b & 7)
		if src[srcOff+i]&1 != 0 {
			dst[b>>3] |= mask
		} else {
			dst[b>>3] &^= mask
		}
	}
}

// UnpackMSB expands n bits of src starting at bit srcOff, most significant
// bit of every octet first.
func UnpackMSB(dst []byte, dstOff int, src []byte, srcOff, n int) {
	for i := 0; i < n; i++ {
		b := srcOff + i
		dst[dstOff+i] = (src[b>>3] >> (7 - (b & 7))) & 1
	}
}

// PackMSB is the inverse of UnpackMSB.
func PackMSB(dst []byte, dstOff int, src []byte, srcOff, n int) {
	for i := 0; i < n; i++ {
		b := dstOff + i
		mask := byte(0x80) >> (b & 7)
		if src[srcOff+i]&1 != 0 {
			dst[b>>3] |= mask
		} else {
			dst[b>>3] &^= mask
		}
	}
}

// Hard returns the hard decision for a soft bit. Erasures decide to 0.
func Hard(s int8) byte {
	if s < 0 {
		return 1
	}
	return 0
}

// Soft returns the full-confidence soft value of a hard bit.
func Soft(b byte) int8 {
	if b&1 != 0 {
		return SoftOne
	}
	return SoftZero
}

// HardSlice writes hard decisions of src into dst.
func HardSlice(dst []byte, src []int8) {
	for i, s := range src {
		dst[i] = Hard(s)
	}
}

// SoftSlice converts hard bits to full-confidence soft bits.
func SoftSlice(dst []int8, src []byte) {
	for i, b := range src {
		dst[i] = Soft(b)
	}
}

// ToSoft allocates the soft representation of a hard bit vector.
func ToSoft(src []byte) []int8 {
	out := make([]int8, len(src))
	SoftSlice(out, src)
	return out
}

// Agrees reports whether a received soft bit carries the same value as the
// hard bit b. Erasures never agree.
func Agrees(b byte, s int8) bool {
	return (b != 0 && s < 0) || (b == 0 && s > 0)
}

// HammingSoft is the distance used for blind detection: the sum of absolute
// differences between a full-confidence codeword and received soft bits.
func HammingSoft(code []byte, rx []int8) int {
	d := 0
	for i, b := range code {
		v := int(Soft(b)) - int(rx[i])
		if v < 0 {
			v = -v
		}
		d += v
	}
	return d
}

// Hamming counts differing positions between two hard bit vectors of equal
// length.
func Hamming(a, b []byte) int {
	d := 0
	for i := range a {
		if a[i] != b[i] {
			d++
		}
	}
	return d
}

// OctetsFor returns the number of octets needed to hold n bits.
func OctetsFor(n int) int {
	return (n + 7) / 8
}
