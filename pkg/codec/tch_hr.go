package codec

import (
	"fmt"

	"github.com/dbehnke/bts-codec/pkg/bits"
	"github.com/dbehnke/bts-codec/pkg/conv"
	"github.com/dbehnke/bts-codec/pkg/crc"
	"github.com/dbehnke/bts-codec/pkg/interleave"
	"github.com/dbehnke/bts-codec/pkg/mapping"
)

const (
	hrOctets   = 14
	hrBits     = 112
	hrClass1   = 95
	hrCRCFrom  = 73
	hrCoded    = 211
	hrBlockLen = 228
)

// EncodeTCHH codes a half rate traffic block. A 14 octet HR frame fills
// four half bursts (NormalBlockBits); a 23 octet block is a FACCH/H spread
// over six bursts (FACCHHBlockBits).
func EncodeTCHH(data []byte) ([]byte, error) {
	switch len(data) {
	case MACBlockLen:
		cB, err := encodeXCCHBlock(data)
		if err != nil {
			return nil, err
		}
		return mapFACCHH(cB), nil
	case hrOctets:
	default:
		return nil, fmt.Errorf("hr frame of %d octets: %w", len(data), ErrUnsupportedLength)
	}

	b := make([]byte, hrBits)
	bits.UnpackMSB(b, 0, data, 0, hrBits)
	d := make([]byte, hrBits)
	for i, o := range hrOrderFor(b[hrModeBit0], b[hrModeBit1]) {
		d[i] = b[o]
	}

	u := make([]byte, conv.TCHHR.Len)
	copy(u, d[:hrClass1])
	crc.TCHFR.SetBits(d[hrCRCFrom:hrClass1], u[hrClass1:])

	cB := make([]byte, hrBlockLen)
	if _, err := conv.TCHHR.Encode(u, cB[:hrCoded]); err != nil {
		return nil, err
	}
	copy(cB[hrCoded:], d[hrClass1:])
	return mapTCHH(cB, 0), nil
}

// DecodeTCHH decodes a half rate traffic block. The first four bursts carry
// speech. When odd is false and six bursts are given, the stealing flags of
// a FACCH/H are checked first.
func DecodeTCHH(bursts []int8, odd bool) (TCHResult, error) {
	if err := needBursts(len(bursts), NormalBlockBits); err != nil {
		return TCHResult{InBandID: -1}, fmt.Errorf("tch/h: %w", err)
	}
	if facchHStolen(bursts, odd) {
		return decodeFACCH(unmapFACCHH(bursts), SchemeFACCHH)
	}

	res := TCHResult{Scheme: SchemeHR, InBandID: -1}
	cB := unmapTCHH(bursts)
	u := make([]byte, conv.TCHHR.Len)
	nErr, nTotal, err := conv.TCHHR.DecodeBER(cB[:hrCoded], u)
	if err != nil {
		return res, err
	}
	res.Stats = Stats{NErrors: nErr, NBitsTotal: nTotal}

	d := make([]byte, hrBits)
	copy(d, u[:hrClass1])
	bits.HardSlice(d[hrClass1:], cB[hrCoded:])
	if err := crc.TCHFR.CheckBits(d[hrCRCFrom:hrClass1], u[hrClass1:]); err != nil {
		return res, fmt.Errorf("hr: %w: %w", ErrCRC, err)
	}

	b := make([]byte, hrBits)
	for i, o := range hrOrderFor(d[hrModeAt], d[hrModeAt+1]) {
		b[o] = d[i]
	}
	res.Data = make([]byte, hrOctets)
	bits.PackMSB(res.Data, 0, b, 0, hrBits)
	return res, nil
}

// mapTCHH spreads 228 coded bits over the even halves of bursts 0 and 1 and
// the odd halves of bursts 2 and 3.
func mapTCHH(cB []byte, h byte) []byte {
	iB := make([]byte, 4*mapping.IBLen)
	interleave.Forward(interleave.TCHH, cB, iB)
	out := make([]byte, NormalBlockBits)
	for i := 0; i < 4; i++ {
		mapping.MapTCH(iB[i*mapping.IBLen:(i+1)*mapping.IBLen],
			out[i*mapping.BurstLen:(i+1)*mapping.BurstLen], h, i >= 2)
	}
	return out
}

func unmapTCHH(bursts []int8) []int8 {
	iB := make([]int8, 4*mapping.IBLen)
	for i := 0; i < 4; i++ {
		mapping.UnmapTCH(bursts[i*mapping.BurstLen:(i+1)*mapping.BurstLen],
			iB[i*mapping.IBLen:(i+1)*mapping.IBLen], i >= 2)
	}
	cB := make([]int8, hrBlockLen)
	interleave.Inverse(interleave.TCHH, iB, cB)
	return cB
}

// mapFACCHH places a full rate interleaved FACCH block on six half rate
// bursts: even halves of 0 to 3, odd halves of 2 to 5.
func mapFACCHH(cB []byte) []byte {
	iB := make([]byte, 8*mapping.IBLen)
	interleave.Forward(interleave.TCHF, cB, iB)
	out := make([]byte, FACCHHBlockBits)
	burst := func(i int) []byte { return out[i*mapping.BurstLen : (i+1)*mapping.BurstLen] }
	for i := 0; i < 6; i++ {
		mapping.MapTCH(iB[i*mapping.IBLen:(i+1)*mapping.IBLen], burst(i), 1, i >= 4)
	}
	for i := 2; i < 4; i++ {
		at := 4*mapping.IBLen + i*mapping.IBLen
		mapping.MapTCH(iB[at:at+mapping.IBLen], burst(i), 1, true)
	}
	return out
}

func unmapFACCHH(bursts []int8) []int8 {
	iB := make([]int8, 8*mapping.IBLen)
	burst := func(i int) []int8 { return bursts[i*mapping.BurstLen : (i+1)*mapping.BurstLen] }
	for i := 0; i < 6; i++ {
		mapping.UnmapTCH(burst(i), iB[i*mapping.IBLen:(i+1)*mapping.IBLen], i >= 4)
	}
	for i := 2; i < 4; i++ {
		at := 4*mapping.IBLen + i*mapping.IBLen
		mapping.UnmapTCH(burst(i), iB[at:at+mapping.IBLen], true)
	}
	cB := make([]int8, 456)
	interleave.Inverse(interleave.TCHF, iB, cB)
	return cB
}

// facchHStolen votes over the even flags of bursts 0 to 3 and the odd flags
// of bursts 2 to 5. A FACCH/H only starts on an even boundary.
func facchHStolen(bursts []int8, odd bool) bool {
	if odd || len(bursts) < FACCHHBlockBits {
		return false
	}
	flags := make([]int8, 0, 8)
	for i := 0; i < 4; i++ {
		flags = append(flags, mapping.UnmapTCH(bursts[i*mapping.BurstLen:(i+1)*mapping.BurstLen], nil, false))
	}
	for i := 2; i < 6; i++ {
		flags = append(flags, mapping.UnmapTCH(bursts[i*mapping.BurstLen:(i+1)*mapping.BurstLen], nil, true))
	}
	return mapping.Stolen(flags)
}
