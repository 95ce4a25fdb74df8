package codec

import (
	"fmt"

	"github.com/dbehnke/bts-codec/pkg/bits"
	"github.com/dbehnke/bts-codec/pkg/conv"
	"github.com/dbehnke/bts-codec/pkg/crc"
	"github.com/dbehnke/bts-codec/pkg/interleave"
	"github.com/dbehnke/bts-codec/pkg/mapping"
)

// TCHResult is a decoded traffic channel block.
type TCHResult struct {
	Data   []byte
	Scheme Scheme
	// FACCH is set when the block was stolen for signalling.
	FACCH bool
	// InBandID is the blind-detected AMR in-band id, -1 for other codecs.
	InBandID int
	Stats    Stats
}

// TCHOption tunes the full rate speech bit layout.
type TCHOption func(*tchOptions)

type tchOptions struct {
	netOrder bool
}

// WithNetOrder treats FR frames as already in codec parameter order, so the
// per-parameter bit reversal of the RTP layout is skipped.
func WithNetOrder() TCHOption {
	return func(o *tchOptions) { o.netOrder = true }
}

func tchOptionsFrom(opts []TCHOption) tchOptions {
	var o tchOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Speech frame sizes.
const (
	frOctets  = 33
	efrOctets = 31
	frBits    = 260
	efrBits   = 244

	frMagic  = 0xd
	efrMagic = 0xc

	frClass1a = 50
	frClass1  = 182
	frCoded   = 378 // convolutionally coded part of cB
)

// EncodeTCHF codes a full rate traffic block into eight half-filled bursts.
// mode is ModeFR (33 octets) or ModeEFR (31 octets); a 23 octet block is a
// FACCH/F in either mode.
func EncodeTCHF(data []byte, mode ChannelMode, opts ...TCHOption) ([]byte, error) {
	if len(data) == MACBlockLen {
		cB, err := encodeXCCHBlock(data)
		if err != nil {
			return nil, err
		}
		return mapTCHF(cB, 1), nil
	}

	var d []byte
	switch mode {
	case ModeFR:
		if len(data) != frOctets {
			return nil, fmt.Errorf("fr frame of %d octets: %w", len(data), ErrUnsupportedLength)
		}
		d = frToD(data, tchOptionsFrom(opts).netOrder)
	case ModeEFR:
		if len(data) != efrOctets {
			return nil, fmt.Errorf("efr frame of %d octets: %w", len(data), ErrUnsupportedLength)
		}
		d = efrToD(data)
	default:
		return nil, fmt.Errorf("tch/f in mode %s: %w", mode, ErrInvalidMode)
	}

	cB, err := encodeFRClasses(d)
	if err != nil {
		return nil, err
	}
	return mapTCHF(cB, 0), nil
}

// DecodeTCHF decodes eight received bursts of a full rate traffic channel.
// Stolen blocks are decoded as FACCH/F regardless of mode.
func DecodeTCHF(bursts []int8, mode ChannelMode, opts ...TCHOption) (TCHResult, error) {
	if err := needBursts(len(bursts), TCHFBlockBits); err != nil {
		return TCHResult{InBandID: -1}, fmt.Errorf("tch/f: %w", err)
	}
	if mode != ModeFR && mode != ModeEFR {
		return TCHResult{InBandID: -1}, fmt.Errorf("tch/f in mode %s: %w", mode, ErrInvalidMode)
	}

	cB, stolen := unmapTCHF(bursts)
	if stolen {
		return decodeFACCH(cB, SchemeFACCHF)
	}

	scheme := SchemeFR
	if mode == ModeEFR {
		scheme = SchemeEFR
	}
	res := TCHResult{Scheme: scheme, InBandID: -1}
	d, st, err := decodeFRClasses(cB)
	res.Stats = st
	if err != nil {
		return res, fmt.Errorf("%s: %w", scheme, err)
	}

	if mode == ModeFR {
		res.Data = dToFR(d, tchOptionsFrom(opts).netOrder)
		return res, nil
	}
	res.Data, err = dToEFR(d)
	if err != nil {
		return res, fmt.Errorf("%s: %w", scheme, err)
	}
	return res, nil
}

func decodeFACCH(cB []int8, s Scheme) (TCHResult, error) {
	l2, st, err := decodeXCCHBlock(cB)
	res := TCHResult{Data: l2, Scheme: s, FACCH: true, InBandID: -1, Stats: st}
	if err != nil {
		return res, fmt.Errorf("%s: %w", s, err)
	}
	return res, nil
}

// mapTCHF interleaves 456 coded bits over eight bursts: the even halves of
// bursts 0 to 3 and the odd halves of bursts 4 to 7.
func mapTCHF(cB []byte, h byte) []byte {
	iB := make([]byte, 8*mapping.IBLen)
	interleave.Forward(interleave.TCHF, cB, iB)
	out := make([]byte, TCHFBlockBits)
	for i := 0; i < 8; i++ {
		mapping.MapTCH(iB[i*mapping.IBLen:(i+1)*mapping.IBLen],
			out[i*mapping.BurstLen:(i+1)*mapping.BurstLen], h, i >= 4)
	}
	return out
}

// unmapTCHF reverses mapTCHF and votes over the eight stealing flags.
func unmapTCHF(bursts []int8) ([]int8, bool) {
	iB := make([]int8, 8*mapping.IBLen)
	flags := make([]int8, 8)
	for i := 0; i < 8; i++ {
		flags[i] = mapping.UnmapTCH(bursts[i*mapping.BurstLen:(i+1)*mapping.BurstLen],
			iB[i*mapping.IBLen:(i+1)*mapping.IBLen], i >= 4)
	}
	cB := make([]int8, 456)
	interleave.Inverse(interleave.TCHF, iB, cB)
	return cB, mapping.Stolen(flags)
}

// encodeFRClasses protects class 1a with three parity bits, codes class 1
// and appends class 2 uncoded.
func encodeFRClasses(d []byte) ([]byte, error) {
	p := make([]byte, crc.TCHFR.Bits)
	crc.TCHFR.SetBits(d[:frClass1a], p)

	u := make([]byte, conv.TCHFR.Len)
	for i := 0; i < 91; i++ {
		u[i] = d[2*i]
		u[184-i] = d[2*i+1]
	}
	copy(u[91:94], p)

	cB := make([]byte, 456)
	if _, err := conv.TCHFR.Encode(u, cB[:frCoded]); err != nil {
		return nil, err
	}
	copy(cB[frCoded:], d[frClass1:frBits])
	return cB, nil
}

func decodeFRClasses(cB []int8) ([]byte, Stats, error) {
	u := make([]byte, conv.TCHFR.Len)
	nErr, nTotal, err := conv.TCHFR.DecodeBER(cB[:frCoded], u)
	if err != nil {
		return nil, Stats{}, err
	}
	st := Stats{NErrors: nErr, NBitsTotal: nTotal}

	d := make([]byte, frBits)
	for i := 0; i < 91; i++ {
		d[2*i] = u[i]
		d[2*i+1] = u[184-i]
	}
	bits.HardSlice(d[frClass1:], cB[frCoded:])

	if err := crc.TCHFR.CheckBits(d[:frClass1a], u[91:94]); err != nil {
		return d, st, fmt.Errorf("%w: %w", ErrCRC, err)
	}
	return d, st, nil
}

// frToD unpacks the 260 parameter bits following the magic nibble.
// Without net order every parameter is reversed to least significant first.
func frToD(data []byte, netOrder bool) []byte {
	stream := make([]byte, frBits)
	bits.UnpackMSB(stream, 0, data, 4, frBits)
	b := stream
	if !netOrder {
		b = reverseParams(stream, frParams)
	}
	d := make([]byte, frBits)
	for i, o := range frOrder {
		d[i] = b[o]
	}
	return d
}

func dToFR(d []byte, netOrder bool) []byte {
	b := make([]byte, frBits)
	for i, o := range frOrder {
		b[o] = d[i]
	}
	if !netOrder {
		b = reverseParams(b, frParams)
	}
	out := make([]byte, frOctets)
	out[0] = frMagic << 4
	bits.PackMSB(out, 4, b, 0, frBits)
	return out
}

// reverseParams flips the bit order inside every parameter.
func reverseParams(src []byte, params []speechParam) []byte {
	out := make([]byte, len(src))
	o := 0
	for _, p := range params {
		for j := 0; j < p.size; j++ {
			out[o+p.size-1-j] = src[o+j]
		}
		o += p.size
	}
	return out
}

func efrToD(data []byte) []byte {
	s := make([]byte, efrBits)
	bits.UnpackMSB(s, 0, data, 4, efrBits)

	prot := make([]byte, efrProtectLen)
	for i, x := range efrProtected {
		prot[i] = s[x]
	}
	p := make([]byte, crc.EFR.Bits)
	crc.EFR.SetBits(prot, p)

	w := make([]byte, efrWLen)
	for i, x := range efrWMap {
		if x < 0 {
			w[i] = p[i-efrParityAt]
			continue
		}
		w[i] = s[x]
	}

	d := make([]byte, frBits)
	for i, o := range efrOrder {
		d[i] = w[o]
	}
	return d
}

// dToEFR undoes the EFR preprocessing, resolving repeated bits by majority,
// and checks the EFR parity.
func dToEFR(d []byte) ([]byte, error) {
	w := make([]byte, efrWLen)
	for i, o := range efrOrder {
		w[o] = d[i]
	}

	ones := make([]int, efrBits)
	seen := make([]int, efrBits)
	for i, x := range efrWMap {
		if x < 0 {
			continue
		}
		seen[x]++
		ones[x] += int(w[i])
	}
	s := make([]byte, efrBits)
	for x := range s {
		if 2*ones[x] > seen[x] {
			s[x] = 1
		}
	}

	prot := make([]byte, efrProtectLen)
	for i, x := range efrProtected {
		prot[i] = s[x]
	}
	if err := crc.EFR.CheckBits(prot, w[efrParityAt:]); err != nil {
		return nil, fmt.Errorf("protected bits: %w: %w", ErrCRC, err)
	}

	out := make([]byte, efrOctets)
	out[0] = efrMagic << 4
	bits.PackMSB(out, 4, s, 0, efrBits)
	return out, nil
}
