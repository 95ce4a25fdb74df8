package codec

import (
	"fmt"

	"github.com/dbehnke/bts-codec/pkg/bits"
	"github.com/dbehnke/bts-codec/pkg/conv"
	"github.com/dbehnke/bts-codec/pkg/crc"
)

const (
	schInfoBits   = 25
	schInfoOctets = 4
)

// EncodeSCH codes the synchronisation channel information (25 bits, least
// significant first, in 4 octets) into 78 bits.
func EncodeSCH(info []byte) ([]byte, error) {
	if len(info) != schInfoOctets {
		return nil, fmt.Errorf("sch info of %d octets: %w", len(info), ErrUnsupportedLength)
	}
	u := make([]byte, conv.SCH.Len)
	bits.UnpackLSB(u, 0, info, 0, schInfoBits)
	crc.SCH.SetBits(u[:schInfoBits], u[schInfoBits:])

	out := make([]byte, SCHBits)
	if _, err := conv.SCH.Encode(u, out); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeSCH decodes a synchronisation burst into 4 octets.
func DecodeSCH(burst []int8) ([]byte, Stats, error) {
	if err := needBursts(len(burst), SCHBits); err != nil {
		return nil, Stats{}, fmt.Errorf("sch: %w", err)
	}
	u := make([]byte, conv.SCH.Len)
	nErr, nTotal, err := conv.SCH.DecodeBER(burst[:SCHBits], u)
	if err != nil {
		return nil, Stats{}, err
	}
	st := Stats{NErrors: nErr, NBitsTotal: nTotal}
	if err := crc.SCH.CheckBits(u[:schInfoBits], u[schInfoBits:]); err != nil {
		return nil, st, fmt.Errorf("sch: %w: %w", ErrCRC, err)
	}
	info := make([]byte, schInfoOctets)
	bits.PackLSB(info, 0, u, 0, schInfoBits)
	return info, st, nil
}
