package codec

import (
	"fmt"

	"github.com/dbehnke/bts-codec/pkg/bits"
	"github.com/dbehnke/bts-codec/pkg/conv"
	"github.com/dbehnke/bts-codec/pkg/crc"
)

// applyBSIC XORs the six BSIC bits, most significant first, into the RACH
// parity.
func applyBSIC(parity []byte, bsic uint8) {
	for i := 0; i < 6; i++ {
		parity[i] ^= (bsic >> (5 - i)) & 1
	}
}

func checkBSIC(bsic uint8) error {
	if bsic > 63 {
		return fmt.Errorf("bsic %d: %w", bsic, ErrInvalidBSIC)
	}
	return nil
}

// EncodeRACH codes an 8 bit access burst payload for a cell with the given
// BSIC into 36 bits.
func EncodeRACH(ra byte, bsic uint8) ([]byte, error) {
	if err := checkBSIC(bsic); err != nil {
		return nil, err
	}
	u := make([]byte, conv.RACH.Len)
	bits.UnpackLSB(u, 0, []byte{ra}, 0, 8)
	crc.RACH.SetBits(u[:8], u[8:])
	applyBSIC(u[8:], bsic)

	out := make([]byte, RACHBits)
	if _, err := conv.RACH.Encode(u, out); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeRACH decodes an access burst. A burst sent towards a cell with a
// different BSIC fails the CRC.
func DecodeRACH(burst []int8, bsic uint8) (byte, Stats, error) {
	if err := checkBSIC(bsic); err != nil {
		return 0, Stats{}, err
	}
	if err := needBursts(len(burst), RACHBits); err != nil {
		return 0, Stats{}, fmt.Errorf("rach: %w", err)
	}
	u := make([]byte, conv.RACH.Len)
	nErr, nTotal, err := conv.RACH.DecodeBER(burst[:RACHBits], u)
	if err != nil {
		return 0, Stats{}, err
	}
	st := Stats{NErrors: nErr, NBitsTotal: nTotal}
	applyBSIC(u[8:], bsic)
	if err := crc.RACH.CheckBits(u[:8], u[8:]); err != nil {
		return 0, st, fmt.Errorf("rach: %w: %w", ErrCRC, err)
	}
	ra := make([]byte, 1)
	bits.PackLSB(ra, 0, u, 0, 8)
	return ra[0], st, nil
}
