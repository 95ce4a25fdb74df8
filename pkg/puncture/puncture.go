// Package puncture implements table-driven rate matching: dropping a fixed
// set of coded bit positions before transmission and re-inserting erasures
// at the same positions before decoding.
package puncture

import (
	"fmt"
	"sort"

	"github.com/dbehnke/bts-codec/pkg/bits"
)

// Table lists the coded bit positions that are not transmitted out of a
// coded sequence of Total bits. The zero Table punctures nothing.
type Table struct {
	total int
	drop  []int
	mask  []bool
}

// FromIndices builds a table from ascending, unique positions below total.
func FromIndices(total int, idx []int) (Table, error) {
	if !sort.IntsAreSorted(idx) {
		return Table{}, fmt.Errorf("puncture indices not ascending")
	}
	mask := make([]bool, total)
	for i, v := range idx {
		if v < 0 || v >= total {
			return Table{}, fmt.Errorf("puncture index %d out of range [0,%d)", v, total)
		}
		if i > 0 && idx[i-1] == v {
			return Table{}, fmt.Errorf("duplicate puncture index %d", v)
		}
		mask[v] = true
	}
	drop := make([]int, len(idx))
	copy(drop, idx)
	return Table{total: total, drop: drop, mask: mask}, nil
}

// MustFromIndices is FromIndices for constant tables built during package
// initialisation.
func MustFromIndices(total int, idx []int) Table {
	t, err := FromIndices(total, idx)
	if err != nil {
		panic(err)
	}
	return t
}

// Uniform keeps exactly keep of total positions, spread evenly: position i is
// kept when floor((i+1)*keep/total) > floor(i*keep/total).
func Uniform(total, keep int) Table {
	if keep >= total {
		return Table{total: total, mask: make([]bool, total)}
	}
	idx := make([]int, 0, total-keep)
	for i := 0; i < total; i++ {
		if (i+1)*keep/total == i*keep/total {
			idx = append(idx, i)
		}
	}
	return MustFromIndices(total, idx)
}

// CS2 is the GPRS CS-2 rule: C(3+4i) is dropped for i = 3..146 except
// i = 9, 21, 33, ... 141.
func CS2() Table {
	idx := make([]int, 0, 132)
	for i := 3; i <= 146; i++ {
		if (i-9)%12 == 0 {
			continue
		}
		idx = append(idx, 3+4*i)
	}
	return MustFromIndices(588, idx)
}

// CS3 is the GPRS CS-3 rule: C(3+6i) and C(5+6i) are dropped for i = 2..111.
func CS3() Table {
	idx := make([]int, 0, 220)
	for i := 2; i <= 111; i++ {
		idx = append(idx, 3+6*i, 5+6*i)
	}
	return MustFromIndices(676, idx)
}

// Total is the unpunctured sequence length. Zero for the empty table.
func (t Table) Total() int { return t.total }

// Dropped is the number of punctured positions.
func (t Table) Dropped() int { return len(t.drop) }

// Kept is the number of transmitted positions.
func (t Table) Kept() int { return t.total - len(t.drop) }

// Empty reports whether the table drops nothing.
func (t Table) Empty() bool { return len(t.drop) == 0 }

// Punctured reports whether coded position i is dropped.
func (t Table) Punctured(i int) bool {
	return i < len(t.mask) && t.mask[i]
}

// Indices returns a copy of the dropped positions.
func (t Table) Indices() []int {
	out := make([]int, len(t.drop))
	copy(out, t.drop)
	return out
}

// Puncture copies the transmitted positions of coded into out and returns the
// number written.
func Puncture[T bits.Bit](coded []T, t Table, out []T) int {
	j := 0
	for i, v := range coded {
		if t.Punctured(i) {
			continue
		}
		out[j] = v
		j++
	}
	return j
}

// Depuncture spreads matched over n = len(out) positions, writing erasures at
// punctured positions. It returns the number of matched bits consumed.
func Depuncture(matched []int8, t Table, out []int8) int {
	j := 0
	for i := range out {
		if t.Punctured(i) {
			out[i] = bits.Erasure
			continue
		}
		out[i] = matched[j]
		j++
	}
	return j
}
