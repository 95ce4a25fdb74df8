// Package codec composes the convolutional, CRC, puncturing, interleaving and
// burst mapping primitives into the complete encode and decode pipelines of
// every GSM/EDGE logical channel a base station serves.
//
// Encoders take logical block octets and return hard burst bits (one byte per
// bit). Decoders take received soft bits (int8, negative means 1) and return
// the octets together with the Viterbi bit-error statistics. The package
// holds no mutable state and is safe for concurrent use.
package codec

import (
	"github.com/dbehnke/bts-codec/pkg/bits"
	"github.com/dbehnke/bts-codec/pkg/mapping"
)

// Stats is the link-quality estimate of one decode: the number of received
// bits that disagree with the re-encoded decoder output, out of NBitsTotal
// compared bits. It is filled in even when the block fails its CRC.
type Stats struct {
	NErrors    int `json:"n_errors" yaml:"n_errors"`
	NBitsTotal int `json:"n_bits_total" yaml:"n_bits_total"`
}

// Add accumulates the statistics of another decoding stage.
func (s Stats) Add(o Stats) Stats {
	return Stats{NErrors: s.NErrors + o.NErrors, NBitsTotal: s.NBitsTotal + o.NBitsTotal}
}

// BER returns the bit error ratio, zero when nothing was compared.
func (s Stats) BER() float64 {
	if s.NBitsTotal == 0 {
		return 0
	}
	return float64(s.NErrors) / float64(s.NBitsTotal)
}

// Block sizes in bits.
const (
	NormalBlockBits = 4 * mapping.BurstLen    // xCCH, PDTCH GMSK, TCH/H
	TCHFBlockBits   = 8 * mapping.BurstLen    // TCH/F speech and FACCH/F
	FACCHHBlockBits = 6 * mapping.BurstLen    // FACCH/H stolen from TCH/H
	PSKBlockBits    = 4 * mapping.EightPSKLen // EGPRS MCS-5 to MCS-9
	RACHBits        = 36
	SCHBits         = 78
	MACBlockLen     = 23 // octets of an xCCH, CS-1 or FACCH block
)

func unpackLSB(data []byte, off, n int) []byte {
	out := make([]byte, n)
	bits.UnpackLSB(out, 0, data, off, n)
	return out
}

func hardOf(soft []int8) []byte {
	out := make([]byte, len(soft))
	bits.HardSlice(out, soft)
	return out
}

func satAdd(a, b int8) int8 {
	s := int(a) + int(b)
	switch {
	case s > 127:
		return 127
	case s < -127:
		return -127
	}
	return int8(s)
}
