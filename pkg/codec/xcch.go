package codec

import (
	"fmt"

	"github.com/dbehnke/bts-codec/pkg/bits"
	"github.com/dbehnke/bts-codec/pkg/conv"
	"github.com/dbehnke/bts-codec/pkg/crc"
	"github.com/dbehnke/bts-codec/pkg/interleave"
	"github.com/dbehnke/bts-codec/pkg/mapping"
)

// encodeXCCHBlock produces the 456 coded bits of a 23 octet MAC block.
func encodeXCCHBlock(l2 []byte) ([]byte, error) {
	if len(l2) != MACBlockLen {
		return nil, fmt.Errorf("xcch block of %d octets: %w", len(l2), ErrUnsupportedLength)
	}
	u := make([]byte, conv.XCCH.Len)
	bits.UnpackLSB(u, 0, l2, 0, 184)
	crc.Fire40.SetBits(u[:184], u[184:])

	cB := make([]byte, conv.XCCH.EncodedLen())
	if _, err := conv.XCCH.Encode(u, cB); err != nil {
		return nil, err
	}
	return cB, nil
}

// decodeXCCHBlock decodes 456 deinterleaved soft bits into a MAC block.
func decodeXCCHBlock(cB []int8) ([]byte, Stats, error) {
	u := make([]byte, conv.XCCH.Len)
	nErr, nTotal, err := conv.XCCH.DecodeBER(cB, u)
	if err != nil {
		return nil, Stats{}, err
	}
	st := Stats{NErrors: nErr, NBitsTotal: nTotal}
	if err := crc.Fire40.CheckBits(u[:184], u[184:]); err != nil {
		return nil, st, fmt.Errorf("xcch: %w: %w", ErrCRC, err)
	}
	l2 := make([]byte, MACBlockLen)
	bits.PackLSB(l2, 0, u, 0, 184)
	return l2, st, nil
}

// mapNormalBlock interleaves 456 coded bits over four normal bursts with the
// given stealing flags.
func mapNormalBlock(cB []byte, flags []byte) []byte {
	iB := make([]byte, 456)
	interleave.Forward(interleave.XCCH, cB, iB)
	out := make([]byte, NormalBlockBits)
	for b := 0; b < 4; b++ {
		mapping.MapNormal(iB[b*mapping.IBLen:(b+1)*mapping.IBLen],
			out[b*mapping.BurstLen:(b+1)*mapping.BurstLen], flags[2*b], flags[2*b+1])
	}
	return out
}

// unmapNormalBlock returns the deinterleaved coded bits and the eight
// stealing flags of four normal bursts.
func unmapNormalBlock(bursts []int8) (cB []int8, flags []int8) {
	iB := make([]int8, 456)
	flags = make([]int8, 8)
	for b := 0; b < 4; b++ {
		flags[2*b], flags[2*b+1] = mapping.UnmapNormal(
			bursts[b*mapping.BurstLen:(b+1)*mapping.BurstLen], iB[b*mapping.IBLen:(b+1)*mapping.IBLen])
	}
	cB = make([]int8, 456)
	interleave.Inverse(interleave.XCCH, iB, cB)
	return cB, flags
}

var xcchFlags = []byte{1, 1, 1, 1, 1, 1, 1, 1}

// EncodeXCCH codes a 23 octet signalling block into four normal bursts.
func EncodeXCCH(l2 []byte) ([]byte, error) {
	cB, err := encodeXCCHBlock(l2)
	if err != nil {
		return nil, err
	}
	return mapNormalBlock(cB, xcchFlags), nil
}

// DecodeXCCH decodes four received normal bursts into a 23 octet block.
func DecodeXCCH(bursts []int8) ([]byte, Stats, error) {
	if err := needBursts(len(bursts), NormalBlockBits); err != nil {
		return nil, Stats{}, fmt.Errorf("xcch: %w", err)
	}
	cB, _ := unmapNormalBlock(bursts)
	return decodeXCCHBlock(cB)
}
