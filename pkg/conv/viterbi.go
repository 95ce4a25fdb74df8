package conv

import "math"

const unreachable = math.MinInt32

// viterbi holds the path metrics and survivor decisions of one decode.
// Metrics are correlations: larger is better.
type viterbi struct {
	c      *Code
	states int
	steps  int
	metric []int
	next   []int
	prev   []uint8 // steps x states
	bit    []uint8
}

func newViterbi(c *Code) *viterbi {
	states, steps := c.states(), c.steps()
	return &viterbi{
		c:      c,
		states: states,
		steps:  steps,
		metric: make([]int, states),
		next:   make([]int, states),
		prev:   make([]uint8, steps*states),
		bit:    make([]uint8, steps*states),
	}
}

func (v *viterbi) branch(sym uint8, rx []int8) int {
	m := 0
	for j := 0; j < v.c.N; j++ {
		if (sym>>(v.c.N-1-j))&1 != 0 {
			m -= int(rx[j])
		} else {
			m += int(rx[j])
		}
	}
	return m
}

// run fills the survivor tables starting from state start and returns the
// metric of the path that ends in the required final state.
func (v *viterbi) run(full []int8, start int) int {
	c := v.c
	for s := range v.metric {
		v.metric[s] = unreachable
	}
	v.metric[start] = 0

	for t := 0; t < v.steps; t++ {
		rx := full[t*c.N : (t+1)*c.N]
		for s := range v.next {
			v.next[s] = unreachable
		}
		row := t * v.states
		tail := t >= c.Len

		for s := 0; s < v.states; s++ {
			m := v.metric[s]
			if m == unreachable {
				continue
			}
			if tail && c.NextTermOutput != nil {
				ns := int(c.NextTermState[s])
				if nm := m + v.branch(c.NextTermOutput[s], rx); nm > v.next[ns] {
					v.next[ns] = nm
					v.prev[row+ns] = uint8(s)
					v.bit[row+ns] = 0
				}
				continue
			}
			for b := uint8(0); b < 2; b++ {
				if tail && b == 1 {
					break
				}
				ns := int(c.NextState[s][b])
				if nm := m + v.branch(c.NextOutput[s][b], rx); nm > v.next[ns] {
					v.next[ns] = nm
					v.prev[row+ns] = uint8(s)
					v.bit[row+ns] = b
				}
			}
		}
		v.metric, v.next = v.next, v.metric
	}

	if c.Term == TailBiting {
		return v.metric[start]
	}
	return v.metric[0]
}

func (v *viterbi) traceback(end int, out []byte) {
	s := end
	for t := v.steps - 1; t >= 0; t-- {
		idx := t*v.states + s
		if t < v.c.Len {
			out[t] = v.bit[idx]
		}
		s = int(v.prev[idx])
	}
}
