package shape

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// #region shape

// Batch marks the batch dimension, which is unknown until a graph is run.
const Batch = -1

// Shape is a tensor shape descriptor. A dimension of Batch matches any size.
type Shape []int

// Of builds a Shape from its dimensions.
func Of(dims ...int) Shape {
	s := make(Shape, len(dims))
	copy(s, dims)
	return s
}

// Rank returns the number of dimensions.
func (s Shape) Rank() int {
	return len(s)
}

// Clone returns a copy that can be mutated freely.
func (s Shape) Clone() Shape {
	return Of(s...)
}

// Size returns the number of elements. Batch dimensions count as 1.
func (s Shape) Size() int {
	n := 1
	for _, d := range s {
		if d == Batch {
			continue
		}
		n *= d
	}
	return n
}

// Equal reports whether two shapes have identical dimensions.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Compatible reports whether o can be fed where s is declared: equal rank,
// and every dimension equal unless either side is Batch.
func (s Shape) Compatible(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] == Batch || o[i] == Batch {
			continue
		}
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		if d == Batch {
			parts[i] = "batch"
			continue
		}
		parts[i] = strconv.Itoa(d)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// #endregion shape

// #region errors

// ErrShape is the sentinel wrapped by every shape error.
var ErrShape = errors.New("shape error")

// Error describes a shape violation detected while a graph is being built or fed.
type Error struct {
	Op       string
	Expected Shape
	Actual   Shape
	Reason   string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("shape error")
	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Expected != nil || e.Actual != nil {
		fmt.Fprintf(&b, " (expected %s, got %s)", e.Expected, e.Actual)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return ErrShape
}

// Errorf builds an *Error without expected/actual shapes.
func Errorf(op, format string, args ...any) *Error {
	return &Error{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// Mismatch builds an *Error carrying both shapes.
func Mismatch(op, reason string, expected, actual Shape) *Error {
	return &Error{Op: op, Reason: reason, Expected: expected, Actual: actual}
}

// #endregion errors
