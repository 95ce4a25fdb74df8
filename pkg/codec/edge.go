package codec

import (
	"fmt"

	"github.com/dbehnke/bts-codec/pkg/bits"
	"github.com/dbehnke/bts-codec/pkg/conv"
	"github.com/dbehnke/bts-codec/pkg/crc"
	"github.com/dbehnke/bts-codec/pkg/interleave"
	"github.com/dbehnke/bts-codec/pkg/mapping"
)

// egprsScheme describes how one MCS splits its block into header and data.
type egprsScheme struct {
	scheme Scheme
	octets int

	hdr    *conv.Code
	hdrLen int // header bits before the CRC, taken from stream bit 3

	data   *conv.Code
	n      int // data bits per data block before the CRC
	blocks int
	dataAt int // stream bit of the first data bit

	layout *mapping.Layout // nil for GMSK
	perm   interleave.Perm // data interleaver of 8PSK schemes
}

var egprsSchemes = []egprsScheme{
	{SchemeMCS1, 27, conv.MCS1DLHeader, 28, conv.MCS1, 178, 1, 31, nil, interleave.Perm{}},
	{SchemeMCS2, 33, conv.MCS1DLHeader, 28, conv.MCS2, 226, 1, 31, nil, interleave.Perm{}},
	{SchemeMCS3, 42, conv.MCS1DLHeader, 28, conv.MCS3, 298, 1, 31, nil, interleave.Perm{}},
	{SchemeMCS4, 49, conv.MCS1DLHeader, 28, conv.MCS4, 354, 1, 31, nil, interleave.Perm{}},
	{SchemeMCS5, 60, conv.MCS5DLHeader, 25, conv.MCS5, 450, 1, 28, mapping.MCS5, interleave.MCS5Data},
	{SchemeMCS6, 78, conv.MCS5DLHeader, 25, conv.MCS6, 594, 1, 28, mapping.MCS5, interleave.MCS5Data},
	{SchemeMCS7, 118, conv.MCS7DLHeader, 37, conv.MCS7, 450, 2, 40, mapping.MCS7, interleave.MCS7Data},
	{SchemeMCS8, 142, conv.MCS7DLHeader, 37, conv.MCS8, 546, 2, 40, mapping.MCS7, interleave.MCS8Data},
	{SchemeMCS9, 154, conv.MCS7DLHeader, 37, conv.MCS9, 594, 2, 40, mapping.MCS7, interleave.MCS8Data},
}

func egprsFor(s Scheme) egprsScheme {
	for _, e := range egprsSchemes {
		if e.scheme == s {
			return e
		}
	}
	panic("codec: no EGPRS description for " + s.String())
}

// EGPRS GMSK block layout: USF precode, spare bits, header, data. The
// published layout interleaves header and data across the block instead.
const (
	gmskHeaderAt = 16
	gmskDataAt   = gmskHeaderAt + 68
)

func (e egprsScheme) encodeHeader(l2 []byte) ([]byte, error) {
	u := make([]byte, e.hdr.Len)
	bits.UnpackLSB(u, 0, l2, 3, e.hdrLen)
	crc.MCSHeader.SetBits(u[:e.hdrLen], u[e.hdrLen:])
	hc := make([]byte, e.hdr.EncodedLen(), e.hdr.EncodedLen()+1)
	if _, err := e.hdr.Encode(u, hc); err != nil {
		return nil, err
	}
	if e.hdr == conv.MCS5DLHeader {
		hc = append(hc, hc[len(hc)-1])
	}
	return hc, nil
}

func (e egprsScheme) encodeData(l2 []byte) ([]byte, error) {
	out := make([]byte, 0, e.blocks*e.data.EncodedLen())
	for b := 0; b < e.blocks; b++ {
		u := make([]byte, e.data.Len)
		bits.UnpackLSB(u, 0, l2, e.dataAt+b*e.n, e.n)
		crc.MCSData.SetBits(u[:e.n], u[e.n:])
		dc := make([]byte, e.data.EncodedLen())
		if _, err := e.data.Encode(u, dc); err != nil {
			return nil, err
		}
		out = append(out, dc...)
	}
	return out, nil
}

func encodeEGPRS(l2 []byte, s Scheme, usf uint8) ([]byte, error) {
	e := egprsFor(s)
	hc, err := e.encodeHeader(l2)
	if err != nil {
		return nil, fmt.Errorf("%s header: %w", s, err)
	}
	dc, err := e.encodeData(l2)
	if err != nil {
		return nil, fmt.Errorf("%s data: %w", s, err)
	}

	if e.layout == nil {
		c := make([]byte, 456)
		copy(c, usf2twelve[usf])
		copy(c[gmskHeaderAt:], hc)
		copy(c[gmskDataAt:], dc)
		return mapNormalBlock(c, pdtchFlags[4]), nil
	}

	hi := make([]byte, len(hc))
	interleave.Forward(headerPerm(e.layout), hc, hi)
	di := make([]byte, len(dc))
	interleave.Forward(e.perm, dc, di)
	up := usf2thirtysix[usf]

	out := make([]byte, PSKBlockBits)
	for b := 0; b < 4; b++ {
		e.layout.Map8PSK(out[b*mapping.EightPSKLen:(b+1)*mapping.EightPSKLen], di, hi, up, b)
	}
	return out, nil
}

func headerPerm(l *mapping.Layout) interleave.Perm {
	if l == mapping.MCS5 {
		return interleave.MCS5Header
	}
	return interleave.MCS7Header
}

// decodeHeader returns the header bits (without CRC) or ErrHeaderCRC.
func (e egprsScheme) decodeHeader(hc []int8) ([]byte, Stats, error) {
	in := hc
	if e.hdr == conv.MCS5DLHeader {
		// The repeated last bit is combined with its original.
		in = append([]int8(nil), hc[:e.hdr.EncodedLen()]...)
		in[len(in)-1] = satAdd(in[len(in)-1], hc[len(hc)-1])
	}
	u := make([]byte, e.hdr.Len)
	nErr, nTotal, err := e.hdr.DecodeBER(in, u)
	if err != nil {
		return nil, Stats{}, err
	}
	st := Stats{NErrors: nErr, NBitsTotal: nTotal}
	if err := crc.MCSHeader.CheckBits(u[:e.hdrLen], u[e.hdrLen:]); err != nil {
		return nil, st, fmt.Errorf("%w: %w", ErrHeaderCRC, err)
	}
	return u[:e.hdrLen], st, nil
}

// decodeData decodes every data block of e from dc. It returns the
// concatenated data bits, the summed statistics and ErrCRC if any block
// fails its check.
func (e egprsScheme) decodeData(dc []int8) ([]byte, Stats, error) {
	var st Stats
	var crcErr error
	out := make([]byte, 0, e.blocks*e.n)
	size := e.data.EncodedLen()
	for b := 0; b < e.blocks; b++ {
		u := make([]byte, e.data.Len)
		nErr, nTotal, err := e.data.DecodeBER(dc[b*size:(b+1)*size], u)
		if err != nil {
			return nil, st, err
		}
		st = st.Add(Stats{NErrors: nErr, NBitsTotal: nTotal})
		if err := crc.MCSData.CheckBits(u[:e.n], u[e.n:]); err != nil && crcErr == nil {
			crcErr = fmt.Errorf("%s block %d: %w: %w", e.scheme, b+1, ErrCRC, err)
		}
		out = append(out, u[:e.n]...)
	}
	return out, st, crcErr
}

func (e egprsScheme) assemble(usf uint8, hdr, data []byte) []byte {
	l2 := make([]byte, e.octets)
	l2[0] = usf
	bits.PackLSB(l2, 3, hdr, 0, e.hdrLen)
	bits.PackLSB(l2, e.dataAt, data, 0, len(data))
	return l2
}

type egprsAttempt struct {
	e     egprsScheme
	data  []byte
	stats Stats
	err   error
}

// bestAttempt tries every allowed family member on the data bits. A member
// whose CRC passes beats one whose CRC fails; otherwise fewer re-encoding
// disagreements win.
func bestAttempt(family []egprsScheme, opts PDTCHOptions, dcFor func(egprsScheme) []int8) (egprsAttempt, bool) {
	var best egprsAttempt
	found := false
	for _, e := range family {
		if !opts.allows(e.scheme) {
			continue
		}
		data, st, err := e.decodeData(dcFor(e))
		a := egprsAttempt{e: e, data: data, stats: st, err: err}
		switch {
		case !found:
			best, found = a, true
		case best.err != nil && a.err == nil:
			best = a
		case (best.err == nil) == (a.err == nil) && a.stats.NErrors < best.stats.NErrors:
			best = a
		}
	}
	return best, found
}

func familyOf(layout *mapping.Layout) []egprsScheme {
	switch layout {
	case nil:
		return egprsSchemes[0:4]
	case mapping.MCS5:
		return egprsSchemes[4:6]
	}
	return egprsSchemes[6:9]
}

func finishEGPRS(usf uint8, hdr []byte, hdrStats Stats, a egprsAttempt) (PDTCHResult, error) {
	res := PDTCHResult{Scheme: a.e.scheme, USF: usf, USFDetected: true, Header: hdrStats, Stats: a.stats}
	if a.err != nil {
		return res, a.err
	}
	res.Data = a.e.assemble(usf, hdr, a.data)
	return res, nil
}

func decodeEGPRSGMSK(c []int8, opts PDTCHOptions) (PDTCHResult, error) {
	family := familyOf(nil)
	usf := uint8(nearest(usf2twelve, c[:12]))

	hdr, hdrStats, err := family[0].decodeHeader(c[gmskHeaderAt:gmskDataAt])
	if err != nil {
		return PDTCHResult{Scheme: SchemeMCS1, USF: usf, USFDetected: true, Header: hdrStats}, fmt.Errorf("egprs gmsk: %w", err)
	}

	a, ok := bestAttempt(family, opts, func(egprsScheme) []int8 { return c[gmskDataAt:] })
	if !ok {
		return PDTCHResult{USF: usf, USFDetected: true, Header: hdrStats}, fmt.Errorf("no MCS-1 to MCS-4 scheme allowed: %w", ErrInvalidMode)
	}
	return finishEGPRS(usf, hdr, hdrStats, a)
}

func decodeEGPRS8PSK(bursts []int8, opts PDTCHOptions) (PDTCHResult, error) {
	layout := mapping.Detect8PSK(bursts)
	family := familyOf(layout)

	di := make([]int8, 4*layout.Data)
	hi := make([]int8, 4*layout.Header)
	up := make([]int8, 4*layout.USF)
	for b := 0; b < 4; b++ {
		layout.Unmap8PSK(bursts[b*mapping.EightPSKLen:(b+1)*mapping.EightPSKLen], di, hi, up, b)
	}
	usf := uint8(nearest(usf2thirtysix, up))

	hc := make([]int8, len(hi))
	interleave.Inverse(headerPerm(layout), hi, hc)
	hdr, hdrStats, err := family[0].decodeHeader(hc)
	if err != nil {
		return PDTCHResult{Scheme: family[0].scheme, USF: usf, USFDetected: true, Header: hdrStats},
			fmt.Errorf("egprs %s family: %w", layout.Name, err)
	}

	deinterleaved := make(map[string][]int8)
	a, ok := bestAttempt(family, opts, func(e egprsScheme) []int8 {
		key := e.perm.Name()
		if dc, ok := deinterleaved[key]; ok {
			return dc
		}
		dc := make([]int8, len(di))
		interleave.Inverse(e.perm, di, dc)
		deinterleaved[key] = dc
		return dc
	})
	if !ok {
		return PDTCHResult{USF: usf, USFDetected: true, Header: hdrStats},
			fmt.Errorf("no %s family scheme allowed: %w", layout.Name, ErrInvalidMode)
	}
	return finishEGPRS(usf, hdr, hdrStats, a)
}
