package frame

import (
	"github.com/cockroachdb/errors"
)

// Partitioned is an ordered list of frames with identical column labels,
// validated as one logical table partition by partition.
type Partitioned struct {
	parts []*Frame
}

// NewPartitioned validates that every part carries the same labels in the
// same order.
func NewPartitioned(parts ...*Frame) (*Partitioned, error) {
	if len(parts) == 0 {
		return nil, errors.New("partitioned frame requires at least one part")
	}
	labels := parts[0].Labels()
	for i, p := range parts[1:] {
		got := p.Labels()
		if len(got) != len(labels) {
			return nil, errors.Newf(
				"partition %d has %d columns; partition 0 has %d",
				i+1, len(got), len(labels),
			)
		}
		for j := range labels {
			if got[j] != labels[j] {
				return nil, errors.Newf(
					"partition %d column %d is %q; partition 0 has %q",
					i+1, j, got[j], labels[j],
				)
			}
		}
	}
	return &Partitioned{parts: parts}, nil
}

// NumParts returns the number of partitions.
func (p *Partitioned) NumParts() int {
	return len(p.parts)
}

// Part returns the i'th partition.
func (p *Partitioned) Part(i int) *Frame {
	return p.parts[i]
}

// NumRows returns the total row count across partitions.
func (p *Partitioned) NumRows() int {
	var n int
	for _, part := range p.parts {
		n += part.NumRows()
	}
	return n
}

// Labels returns the shared column labels.
func (p *Partitioned) Labels() []string {
	return p.parts[0].Labels()
}

// Offsets returns the starting global row position of each partition.
func (p *Partitioned) Offsets() []int {
	offsets := make([]int, len(p.parts))
	var n int
	for i, part := range p.parts {
		offsets[i] = n
		n += part.NumRows()
	}
	return offsets
}
