// Package conv implements the convolutional code engine: a descriptor holding
// the trellis of one coding scheme, a trellis encoder and a soft-decision
// Viterbi decoder with bit-error accounting.
package conv

import (
	"errors"
	"fmt"
	"math/bits"

	gbits "github.com/dbehnke/bts-codec/pkg/bits"
	"github.com/dbehnke/bts-codec/pkg/puncture"
)

// ErrLength is returned when an input or output buffer does not match the
// descriptor's block sizes.
var ErrLength = errors.New("conv: buffer length mismatch")

// Termination selects how the trellis is closed at the end of a block.
type Termination int

const (
	// Flush appends K-1 tail steps driving the encoder back to state zero.
	Flush Termination = iota
	// TailBiting starts the encoder in the state reached after the last K-1
	// information bits, so that it ends where it started.
	TailBiting
)

func (t Termination) String() string {
	if t == TailBiting {
		return "tail-biting"
	}
	return "flush"
}

// Code is an immutable convolutional code descriptor.
type Code struct {
	Name string
	N    int // coded bits per information bit
	K    int // constraint length
	Len  int // information bits per block

	NextOutput [][2]uint8
	NextState  [][2]uint8

	// NextTermOutput and NextTermState drive the tail of recursive codes. They
	// are nil for feed-forward codes, whose tail feeds zeros.
	NextTermOutput []uint8
	NextTermState  []uint8

	Term     Termination
	Puncture puncture.Table
}

// Params describes a code by its generator polynomials. Bit i of a polynomial
// is the coefficient of D^i. A non-zero Feedback makes the code recursive
// systematic: outputs whose polynomial equals Feedback carry the input bit.
type Params struct {
	Name     string
	K        int
	Len      int
	Polys    []uint32
	Feedback uint32
	Term     Termination
	Puncture puncture.Table
}

func parity(x uint32) uint8 {
	return uint8(bits.OnesCount32(x) & 1)
}

// New generates the trellis tables for s.
func New(s Params) (*Code, error) {
	if s.K < 2 || s.K > 9 {
		return nil, fmt.Errorf("conv %s: unsupported constraint length %d", s.Name, s.K)
	}
	if len(s.Polys) < 1 || len(s.Polys) > 8 {
		return nil, fmt.Errorf("conv %s: unsupported rate 1/%d", s.Name, len(s.Polys))
	}
	if s.Feedback != 0 && s.Term == TailBiting {
		return nil, fmt.Errorf("conv %s: tail-biting recursive codes are not supported", s.Name)
	}

	states := 1 << (s.K - 1)
	mask := uint32(states - 1)
	c := &Code{
		Name:       s.Name,
		N:          len(s.Polys),
		K:          s.K,
		Len:        s.Len,
		NextOutput: make([][2]uint8, states),
		NextState:  make([][2]uint8, states),
		Term:       s.Term,
		Puncture:   s.Puncture,
	}

	symbol := func(b uint8, reg uint32) uint8 {
		var sym uint8
		for _, g := range s.Polys {
			o := parity(g & reg)
			if s.Feedback != 0 && g == s.Feedback {
				o = b
			}
			sym = sym<<1 | o
		}
		return sym
	}

	for st := 0; st < states; st++ {
		for b := uint8(0); b < 2; b++ {
			w := uint32(b)
			if s.Feedback != 0 {
				w ^= uint32(parity((s.Feedback >> 1) & uint32(st)))
			}
			reg := w | uint32(st)<<1
			c.NextOutput[st][b] = symbol(b, reg)
			c.NextState[st][b] = uint8(reg & mask)
		}
	}

	if s.Feedback != 0 {
		c.NextTermOutput = make([]uint8, states)
		c.NextTermState = make([]uint8, states)
		for st := 0; st < states; st++ {
			b := parity((s.Feedback >> 1) & uint32(st))
			reg := uint32(st) << 1
			c.NextTermOutput[st] = symbol(b, reg)
			c.NextTermState[st] = uint8(reg & mask)
		}
	}

	if !s.Puncture.Empty() && s.Puncture.Total() != c.CodedLen() {
		return nil, fmt.Errorf("conv %s: puncture table covers %d bits, code emits %d",
			s.Name, s.Puncture.Total(), c.CodedLen())
	}
	return c, nil
}

// MustNew is New for the package level descriptors.
func MustNew(s Params) *Code {
	c, err := New(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Code) states() int { return 1 << (c.K - 1) }

func (c *Code) steps() int {
	if c.Term == TailBiting {
		return c.Len
	}
	return c.Len + c.K - 1
}

// CodedLen is the number of coded bits before puncturing.
func (c *Code) CodedLen() int { return c.N * c.steps() }

// EncodedLen is the number of coded bits actually transmitted.
func (c *Code) EncodedLen() int { return c.CodedLen() - c.Puncture.Dropped() }

// Encode walks the trellis over the first Len bits of in and writes the
// transmitted coded bits to out. It returns the number of bits written.
func (c *Code) Encode(in []byte, out []byte) (int, error) {
	if len(in) < c.Len {
		return 0, fmt.Errorf("%s: %d input bits, need %d: %w", c.Name, len(in), c.Len, ErrLength)
	}
	if len(out) < c.EncodedLen() {
		return 0, fmt.Errorf("%s: output holds %d bits, need %d: %w", c.Name, len(out), c.EncodedLen(), ErrLength)
	}

	state := uint8(0)
	if c.Term == TailBiting {
		for i := c.Len - (c.K - 1); i < c.Len; i++ {
			state = c.NextState[state][in[i]&1]
		}
	}

	pos, o := 0, 0
	emit := func(sym uint8) {
		for j := c.N - 1; j >= 0; j-- {
			if !c.Puncture.Punctured(pos) {
				out[o] = (sym >> j) & 1
				o++
			}
			pos++
		}
	}

	for i := 0; i < c.Len; i++ {
		b := in[i] & 1
		emit(c.NextOutput[state][b])
		state = c.NextState[state][b]
	}

	if c.Term == Flush {
		for i := 0; i < c.K-1; i++ {
			if c.NextTermOutput != nil {
				emit(c.NextTermOutput[state])
				state = c.NextTermState[state]
			} else {
				emit(c.NextOutput[state][0])
				state = c.NextState[state][0]
			}
		}
	}
	return o, nil
}

// Decode runs a soft-decision Viterbi decoder over the transmitted sequence in
// and writes Len information bits to out.
func (c *Code) Decode(in []int8, out []byte) error {
	if len(in) < c.EncodedLen() {
		return fmt.Errorf("%s: %d soft bits, need %d: %w", c.Name, len(in), c.EncodedLen(), ErrLength)
	}
	if len(out) < c.Len {
		return fmt.Errorf("%s: output holds %d bits, need %d: %w", c.Name, len(out), c.Len, ErrLength)
	}

	full := in[:c.CodedLen()]
	if !c.Puncture.Empty() {
		full = make([]int8, c.CodedLen())
		puncture.Depuncture(in, c.Puncture, full)
	}

	v := newViterbi(c)
	if c.Term == Flush {
		v.run(full, 0)
		v.traceback(0, out)
		return nil
	}

	// Tail-biting: try every start state with the end state pinned to it.
	best, bestState := 0, -1
	for s := 0; s < c.states(); s++ {
		m := v.run(full, s)
		if m == unreachable {
			continue
		}
		if bestState < 0 || m > best {
			best, bestState = m, s
		}
	}
	v.run(full, bestState)
	v.traceback(bestState, out)
	return nil
}

// DecodeBER decodes in, re-encodes the result and counts the transmitted
// positions whose received sign disagrees with the re-encoded bit. Erasures
// count as errors.
func (c *Code) DecodeBER(in []int8, out []byte) (nErrors, nBitsTotal int, err error) {
	if err := c.Decode(in, out); err != nil {
		return 0, 0, err
	}
	recoded := make([]byte, c.EncodedLen())
	n, err := c.Encode(out, recoded)
	if err != nil {
		return 0, 0, err
	}
	for i := 0; i < n; i++ {
		if !gbits.Agrees(recoded[i], in[i]) {
			nErrors++
		}
	}
	return nErrors, n, nil
}

func (c *Code) String() string {
	return fmt.Sprintf("%s (1/%d K=%d len=%d %s, %d coded bits)", c.Name, c.N, c.K, c.Len, c.Term, c.EncodedLen())
}
