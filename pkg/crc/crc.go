// Package crc implements the bit-serial cyclic block checks used to protect
// GSM channel-coded payloads.
package crc

import (
	"errors"
	"fmt"
)

// ErrMismatch is returned by CheckBits when the received parity does not
// match the parity computed over the data bits.
var ErrMismatch = errors.New("crc mismatch")

// Code describes one generator polynomial. Poly omits the x^Bits term. Init
// preloads the shift register and Remainder is XORed into the final value.
type Code struct {
	Name      string
	Bits      int
	Poly      uint64
	Init      uint64
	Remainder uint64
}

// Generators used across the GSM channels.
var (
	// Fire40 protects xCCH and CS-1 blocks.
	Fire40 = Code{Name: "fire40", Bits: 40, Poly: 0x0004820009, Remainder: 0xffffffffff}
	// CS234 protects GPRS CS-2, CS-3 and CS-4 blocks.
	CS234 = Code{Name: "cs234", Bits: 16, Poly: 0x1021, Remainder: 0xffff}
	// MCSHeader protects EGPRS RLC/MAC headers.
	MCSHeader = Code{Name: "mcs-header", Bits: 8, Poly: 0x49, Remainder: 0xff}
	// MCSData protects each EGPRS data block.
	MCSData = Code{Name: "mcs-data", Bits: 12, Poly: 0xd31, Remainder: 0xfff}
	RACH    = Code{Name: "rach", Bits: 6, Poly: 0x2f, Remainder: 0x3f}
	SCH     = Code{Name: "sch", Bits: 10, Poly: 0x175, Remainder: 0x3ff}
	// TCHFR is the 3 bit check over class 1a speech bits (FR, EFR, HR).
	TCHFR = Code{Name: "tch-fr", Bits: 3, Poly: 0x3, Remainder: 0x7}
	// EFR is the inner check over the 65 most sensitive EFR bits.
	EFR = Code{Name: "efr", Bits: 8, Poly: 0x1d}
	AMR = Code{Name: "amr", Bits: 6, Poly: 0x2f, Remainder: 0x3f}
)

func (c Code) mask() uint64 {
	if c.Bits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << c.Bits) - 1
}

// Compute runs the shift register over data (one bit per byte, MSB of the
// polynomial first) and returns the parity word.
func (c Code) Compute(data []byte) uint64 {
	top := uint64(1) << (c.Bits - 1)
	mask := c.mask()
	reg := c.Init
	for _, b := range data {
		reg ^= uint64(b&1) << (c.Bits - 1)
		if reg&top != 0 {
			reg = (reg << 1) ^ c.Poly
		} else {
			reg <<= 1
		}
		reg &= mask
	}
	return reg ^ c.Remainder
}

// SetBits writes the Bits parity bits of data into parity, most significant
// first.
func (c Code) SetBits(data []byte, parity []byte) {
	v := c.Compute(data)
	for i := 0; i < c.Bits; i++ {
		parity[i] = byte(v>>(c.Bits-i-1)) & 1
	}
}

// CheckBits recomputes the parity of data and compares it with parity.
func (c Code) CheckBits(data []byte, parity []byte) error {
	if len(parity) < c.Bits {
		return fmt.Errorf("%s: %d parity bits, need %d: %w", c.Name, len(parity), c.Bits, ErrMismatch)
	}
	v := c.Compute(data)
	for i := 0; i < c.Bits; i++ {
		if byte(v>>(c.Bits-i-1))&1 != parity[i]&1 {
			return fmt.Errorf("%s: %w", c.Name, ErrMismatch)
		}
	}
	return nil
}
