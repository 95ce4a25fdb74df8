package codec

import (
	"errors"
	"fmt"
)

// Decode and encode failures. Every error returned by the package wraps one
// of these.
var (
	ErrCRC               = errors.New("crc check failed")
	ErrHeaderCRC         = errors.New("header crc check failed")
	ErrUnsupportedLength = errors.New("unsupported block length")
	ErrModeOutOfRange    = errors.New("codec mode id outside the active set")
	ErrUSFOutOfRange     = errors.New("usf outside the expected set")
	ErrInvalidMode       = errors.New("invalid channel or codec mode")
	ErrBurstLength       = errors.New("burst buffer too short")
	ErrInvalidBSIC       = errors.New("bsic out of range")
)

// ModeError reports an AMR codec mode id that does not index the active
// codec set. On decode ID is the blind-detected in-band id.
type ModeError struct {
	ID    int
	Limit int
}

func (e *ModeError) Error() string {
	return fmt.Sprintf("codec mode id %d not in active set of %d", e.ID, e.Limit)
}

func (e *ModeError) Unwrap() error { return ErrModeOutOfRange }

// USFError reports a blind-detected USF that is not one of the values the
// caller expects.
type USFError struct {
	USF   uint8
	Valid []uint8
}

func (e *USFError) Error() string {
	return fmt.Sprintf("usf %d not in %v", e.USF, e.Valid)
}

func (e *USFError) Unwrap() error { return ErrUSFOutOfRange }

func needBursts(got, want int) error {
	if got < want {
		return fmt.Errorf("%d soft bits, need %d: %w", got, want, ErrBurstLength)
	}
	return nil
}
