// Package shape computes output shapes for the non-standard merges used by
// the memory loop. Every function here is pure and works on shape
// descriptors only, so graph construction can reject bad wiring before any
// tensor exists.
package shape

// #region calculator

// Calculator computes merge shapes relative to the axis that enumerates
// knowledge items. For true/false inputs shaped (batch, knowledge, dim) the
// axis is 1; multiple-choice inputs shaped (batch, options, knowledge, dim)
// use 2.
type Calculator struct {
	KnowledgeAxis int
}

// NewCalculator returns a Calculator for the given knowledge axis.
func NewCalculator(knowledgeAxis int) Calculator {
	return Calculator{KnowledgeAxis: knowledgeAxis}
}

// MergedBackground is the shape of the current memory stacked on top of the
// background encodings: the knowledge dimension grows by one. The memory
// must have exactly one dimension fewer than the background.
func (c Calculator) MergedBackground(question, background Shape) (Shape, error) {
	const op = "merged_background"
	if err := c.checkAxis(op, background); err != nil {
		return nil, err
	}
	if slice := dropAxis(background, c.KnowledgeAxis); !slice.Compatible(question) {
		return nil, Mismatch(op, "memory must match one background slice", slice, question)
	}
	out := background.Clone()
	if out[c.KnowledgeAxis] != Batch {
		out[c.KnowledgeAxis]++
	}
	return out, nil
}

// WeightedAverage is the shape of the background after it has been reduced
// over the knowledge axis.
func (c Calculator) WeightedAverage(background Shape) (Shape, error) {
	const op = "weighted_average"
	if err := c.checkAxis(op, background); err != nil {
		return nil, err
	}
	return dropAxis(background, c.KnowledgeAxis), nil
}

func (c Calculator) checkAxis(op string, s Shape) error {
	if c.KnowledgeAxis < 1 || c.KnowledgeAxis >= s.Rank()-1 {
		return Errorf(op, "knowledge axis %d out of range for rank-%d shape %s", c.KnowledgeAxis, s.Rank(), s)
	}
	return nil
}

// #endregion calculator

// #region standard

// Concat is the shape of shapes joined along axis. All other dimensions must
// agree.
func Concat(axis int, shapes ...Shape) (Shape, error) {
	const op = "concat"
	if len(shapes) == 0 {
		return nil, Errorf(op, "no inputs")
	}
	first := shapes[0]
	if axis < 0 {
		axis += first.Rank()
	}
	if axis < 0 || axis >= first.Rank() {
		return nil, Errorf(op, "axis %d out of range for %s", axis, first)
	}
	out := first.Clone()
	for _, s := range shapes[1:] {
		if s.Rank() != first.Rank() {
			return nil, Mismatch(op, "rank mismatch", first, s)
		}
		for i := range s {
			if i == axis {
				continue
			}
			if !sameDim(s[i], first[i]) {
				return nil, Mismatch(op, "non-concat dimensions differ", first, s)
			}
		}
		if out[axis] == Batch || s[axis] == Batch {
			out[axis] = Batch
		} else {
			out[axis] += s[axis]
		}
	}
	return out, nil
}

// Last returns the trailing dimension, or 0 for a scalar shape.
func (s Shape) Last() int {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}

// WithLast returns a copy of s with its trailing dimension replaced.
func (s Shape) WithLast(d int) Shape {
	out := s.Clone()
	out[len(out)-1] = d
	return out
}

func sameDim(a, b int) bool {
	return a == b || a == Batch || b == Batch
}

func dropAxis(s Shape, axis int) Shape {
	out := make(Shape, 0, len(s)-1)
	out = append(out, s[:axis]...)
	return append(out, s[axis+1:]...)
}

// #endregion standard
