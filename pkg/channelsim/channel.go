// Package channelsim models a BPSK link with additive white Gaussian noise
// and turns transmitted hard bits into the soft bits a demodulator would
// hand to the decoders.
package channelsim

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/dbehnke/bts-codec/pkg/bits"
)

// softScale maps a unit amplitude sample onto the int8 soft bit range.
const softScale = 64

// Channel adds noise at a fixed symbol SNR. A Channel is not safe for
// concurrent use; give every goroutine its own.
type Channel struct {
	snrDB float64
	noise distuv.Normal
}

// New returns a channel with the given Es/N0 in dB. The seed makes runs
// repeatable.
func New(snrDB float64, seed uint64) *Channel {
	sigma := math.Sqrt(1 / (2 * math.Pow(10, snrDB/10)))
	return &Channel{
		snrDB: snrDB,
		noise: distuv.Normal{
			Mu:    0,
			Sigma: sigma,
			Src:   rand.NewPCG(seed, seed^0x9e3779b97f4a7c15),
		},
	}
}

// SNR returns the configured Es/N0 in dB.
func (c *Channel) SNR() float64 { return c.snrDB }

// Sigma is the noise standard deviation per unit amplitude symbol.
func (c *Channel) Sigma() float64 { return c.noise.Sigma }

// Transmit sends hard bits (0 as +1, 1 as -1) and returns saturated soft
// bits.
func (c *Channel) Transmit(hard []byte) []int8 {
	out := make([]int8, len(hard))
	for i, b := range hard {
		x := 1.0
		if b != 0 {
			x = -1.0
		}
		out[i] = quantize(x + c.noise.Rand())
	}
	return out
}

func quantize(y float64) int8 {
	v := math.Round(y * softScale)
	switch {
	case v > 127:
		return 127
	case v < -127:
		return -127
	}
	return int8(v)
}

// Perfect returns the noiseless soft representation of hard bits.
func Perfect(hard []byte) []int8 {
	return bits.ToSoft(hard)
}

// RawBER is the fraction of soft bits whose sign disagrees with the
// transmitted hard bits. Erasures count as errors.
func RawBER(tx []byte, rx []int8) float64 {
	n := len(tx)
	if len(rx) < n {
		n = len(rx)
	}
	if n == 0 {
		return 0
	}
	errs := 0
	for i := 0; i < n; i++ {
		if !bits.Agrees(tx[i], rx[i]) {
			errs++
		}
	}
	return float64(errs) / float64(n)
}

// Summary returns the mean and sample standard deviation of xs.
func Summary(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	if len(xs) == 1 {
		return xs[0], 0
	}
	return stat.MeanStdDev(xs, nil)
}

// TheoreticalBER is the uncoded BPSK bit error ratio at the given Es/N0.
func TheoreticalBER(snrDB float64) float64 {
	return 0.5 * math.Erfc(math.Sqrt(math.Pow(10, snrDB/10)))
}
