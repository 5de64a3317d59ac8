package feature

import "fmt"

// Alias selects a column from the right side of a join under a new name.
// An empty As keeps the source name.
type Alias struct {
	Source string
	As     string
}

// LeftJoin enriches left with the aliased columns of right, matching rows on
// the column on. Every left row is kept; rows without a match receive missing
// values, and rows matching several right rows are repeated once per match.
func LeftJoin(left, right *Frame, on string, pick ...Alias) (*Frame, error) {
	lk, err := left.Column(on)
	if err != nil {
		return nil, err
	}
	rk, err := right.Column(on)
	if err != nil {
		return nil, err
	}

	picked := make([]*Column, len(pick))
	for i, a := range pick {
		c, err := right.Column(a.Source)
		if err != nil {
			return nil, err
		}
		name := a.As
		if name == "" {
			name = a.Source
		}
		if left.Has(name) {
			return nil, fmt.Errorf("join on %q: column %q already exists on the left", on, name)
		}
		picked[i] = c
	}

	matches := make(map[string][]int, right.Nrow())
	for r := 0; r < right.Nrow(); r++ {
		if !rk.Valid[r] {
			continue
		}
		k := rk.Format(r)
		matches[k] = append(matches[k], r)
	}

	leftRows := make([]int, 0, left.Nrow())
	rightRows := make([]int, 0, left.Nrow())
	for r := 0; r < left.Nrow(); r++ {
		var m []int
		if lk.Valid[r] {
			m = matches[lk.Format(r)]
		}
		if len(m) == 0 {
			leftRows = append(leftRows, r)
			rightRows = append(rightRows, -1)
			continue
		}
		for _, rr := range m {
			leftRows = append(leftRows, r)
			rightRows = append(rightRows, rr)
		}
	}

	cols := make([]*Column, 0, left.Ncol()+len(picked))
	for _, c := range left.cols {
		cols = append(cols, c.take(leftRows))
	}
	for i, c := range picked {
		joined := c.take(rightRows)
		if pick[i].As != "" {
			joined.Name = pick[i].As
		}
		cols = append(cols, joined)
	}
	return NewFrame(cols...)
}
