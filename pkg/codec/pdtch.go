package codec

import (
	"errors"
	"fmt"

	"github.com/dbehnke/bts-codec/pkg/bits"
	"github.com/dbehnke/bts-codec/pkg/conv"
	"github.com/dbehnke/bts-codec/pkg/crc"
)

// PDTCHOptions restricts the blind search of DecodePDTCH.
type PDTCHOptions struct {
	// Schemes lists the EGPRS schemes to try. Empty means all of them.
	Schemes []Scheme
	// USFs lists the uplink state flags the caller expects on the channel.
	// A detected USF outside the set is reported with a *USFError. Empty
	// means any.
	USFs []uint8
}

func (o PDTCHOptions) allowsUSF(usf uint8) bool {
	if len(o.USFs) == 0 {
		return true
	}
	for _, u := range o.USFs {
		if u == usf {
			return true
		}
	}
	return false
}

func (o PDTCHOptions) allows(s Scheme) bool {
	if len(o.Schemes) == 0 {
		return true
	}
	for _, a := range o.Schemes {
		if a == s {
			return true
		}
	}
	return false
}

// PDTCHResult is a decoded packet data block.
type PDTCHResult struct {
	Data   []byte
	Scheme Scheme
	USF    uint8
	// USFDetected reports whether USF holds a recovered value. CS-1 carries
	// the USF inside its payload, so it is only known after a passing CRC.
	USFDetected bool
	// Header holds the RLC/MAC header decoding statistics of EGPRS blocks.
	Header Stats
	Stats  Stats
}

// EncodePDTCH codes a packet data block. The octet length selects the
// scheme: CS-1 to CS-4 and MCS-1 to MCS-4 produce four normal bursts
// (NormalBlockBits), MCS-5 to MCS-9 four 8PSK bursts (PSKBlockBits). The USF
// is taken from the low three bits of the first octet.
func EncodePDTCH(l2 []byte) ([]byte, error) {
	s, err := PDTCHSchemeForLength(len(l2))
	if err != nil {
		return nil, err
	}
	usf := l2[0] & 7

	switch s {
	case SchemeCS1:
		cB, err := encodeXCCHBlock(l2)
		if err != nil {
			return nil, err
		}
		return mapNormalBlock(cB, pdtchFlags[0]), nil
	case SchemeCS2:
		return encodeCS23(l2, usf, conv.CS2, 271, pdtchFlags[1])
	case SchemeCS3:
		return encodeCS23(l2, usf, conv.CS3, 315, pdtchFlags[2])
	case SchemeCS4:
		cB := make([]byte, 456)
		bits.UnpackLSB(cB, 9, l2, 0, 431)
		crc.CS234.SetBits(cB[9:440], cB[440:456])
		copy(cB, usf2twelve[usf])
		return mapNormalBlock(cB, pdtchFlags[3]), nil
	}
	return encodeEGPRS(l2, s, usf)
}

func encodeCS23(l2 []byte, usf uint8, code *conv.Code, n int, flags []byte) ([]byte, error) {
	u := make([]byte, code.Len)
	bits.UnpackLSB(u, 3, l2, 0, n)
	crc.CS234.SetBits(u[3:3+n], u[3+n:])
	copy(u, usf2six[usf])

	cB := make([]byte, code.EncodedLen())
	if _, err := code.Encode(u, cB); err != nil {
		return nil, err
	}
	return mapNormalBlock(cB, flags), nil
}

// DecodePDTCH decodes a received packet data block. Four normal bursts are
// classified by their stealing flags; four 8PSK bursts by their q bits.
//
// The USF is never replaced by a value from opts.USFs: a detected USF that
// is not in the set comes back in the result together with a *USFError,
// joined to any CRC error of the block.
func DecodePDTCH(bursts []int8, opts PDTCHOptions) (PDTCHResult, error) {
	res, err := decodePDTCH(bursts, opts)
	if res.USFDetected && !opts.allowsUSF(res.USF) {
		usfErr := &USFError{USF: res.USF, Valid: opts.USFs}
		if err == nil {
			return res, usfErr
		}
		return res, errors.Join(err, usfErr)
	}
	return res, err
}

func decodePDTCH(bursts []int8, opts PDTCHOptions) (PDTCHResult, error) {
	if len(bursts) == PSKBlockBits {
		return decodeEGPRS8PSK(bursts, opts)
	}
	if err := needBursts(len(bursts), NormalBlockBits); err != nil {
		return PDTCHResult{}, fmt.Errorf("pdtch: %w", err)
	}

	cB, flags := unmapNormalBlock(bursts)
	switch nearest(pdtchFlags, flags) {
	case 0:
		l2, st, err := decodeXCCHBlock(cB)
		res := PDTCHResult{Data: l2, Scheme: SchemeCS1, Stats: st}
		if err != nil {
			return res, fmt.Errorf("cs-1: %w", err)
		}
		res.USF, res.USFDetected = l2[0]&7, true
		return res, nil
	case 1:
		return decodeCS23(cB, SchemeCS2, conv.CS2, 271)
	case 2:
		return decodeCS23(cB, SchemeCS3, conv.CS3, 315)
	case 3:
		return decodeCS4(cB)
	}
	return decodeEGPRSGMSK(cB, opts)
}

func decodeCS23(cB []int8, s Scheme, code *conv.Code, n int) (PDTCHResult, error) {
	u := make([]byte, code.Len)
	nErr, nTotal, err := code.DecodeBER(cB[:code.EncodedLen()], u)
	if err != nil {
		return PDTCHResult{}, err
	}
	res := PDTCHResult{Scheme: s, Stats: Stats{NErrors: nErr, NBitsTotal: nTotal}}

	usf := nearestHard(usf2six, u[:6])
	res.USF, res.USFDetected = uint8(usf), true
	u[3], u[4], u[5] = byte(usf&1), byte(usf>>1&1), byte(usf>>2&1)

	if err := crc.CS234.CheckBits(u[3:3+n], u[3+n:]); err != nil {
		return res, fmt.Errorf("%s: %w: %w", s, ErrCRC, err)
	}
	res.Data = make([]byte, bits.OctetsFor(n))
	bits.PackLSB(res.Data, 0, u, 3, n)
	return res, nil
}

func decodeCS4(cB []int8) (PDTCHResult, error) {
	res := PDTCHResult{Scheme: SchemeCS4, Stats: Stats{NBitsTotal: 456 - 12}}

	u := hardOf(cB)
	usf := nearest(usf2twelve, cB[:12])
	res.USF, res.USFDetected = uint8(usf), true
	u[9], u[10], u[11] = byte(usf&1), byte(usf>>1&1), byte(usf>>2&1)

	if err := crc.CS234.CheckBits(u[9:440], u[440:456]); err != nil {
		res.Stats.NErrors = res.Stats.NBitsTotal
		return res, fmt.Errorf("cs-4: %w: %w", ErrCRC, err)
	}
	for _, s := range cB[12:] {
		if s == bits.Erasure {
			res.Stats.NErrors++
		}
	}
	res.Data = make([]byte, 54)
	bits.PackLSB(res.Data, 0, u, 9, 431)
	return res, nil
}
