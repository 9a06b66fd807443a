package shape

import (
	"errors"
	"testing"
)

// #region calculator-tests

func TestMergedBackground(t *testing.T) {
	tests := []struct {
		name       string
		axis       int
		question   Shape
		background Shape
		want       Shape
		wantErr    bool
	}{
		{
			name:       "true false layout",
			axis:       1,
			question:   Of(2, 4),
			background: Of(2, 3, 4),
			want:       Of(2, 4, 4),
		},
		{
			name:       "unknown batch",
			axis:       1,
			question:   Of(Batch, 8),
			background: Of(Batch, 5, 8),
			want:       Of(Batch, 6, 8),
		},
		{
			name:       "multiple choice layout",
			axis:       2,
			question:   Of(Batch, 4, 8),
			background: Of(Batch, 4, 10, 8),
			want:       Of(Batch, 4, 11, 8),
		},
		{
			name:       "memory rank too high",
			axis:       1,
			question:   Of(2, 3, 4),
			background: Of(2, 3, 4),
			wantErr:    true,
		},
		{
			name:       "feature dims disagree",
			axis:       1,
			question:   Of(2, 5),
			background: Of(2, 3, 4),
			wantErr:    true,
		},
		{
			name:       "axis out of range",
			axis:       2,
			question:   Of(2, 3),
			background: Of(2, 3, 4),
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewCalculator(tt.axis).MergedBackground(tt.question, tt.background)
			if (err != nil) != tt.wantErr {
				t.Fatalf("MergedBackground() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrShape) {
					t.Fatalf("expected ErrShape, got %v", err)
				}
				return
			}
			if !got.Equal(tt.want) {
				t.Errorf("MergedBackground() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestWeightedAverage(t *testing.T) {
	c := NewCalculator(1)
	got, err := c.WeightedAverage(Of(7, 3, 4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(Of(7, 4)) {
		t.Fatalf("expected (7, 4), got %s", got)
	}

	got, err = NewCalculator(2).WeightedAverage(Of(Batch, 4, 10, 8))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(Of(Batch, 4, 8)) {
		t.Fatalf("expected (batch, 4, 8), got %s", got)
	}

	if _, err := c.WeightedAverage(Of(7, 4)); !errors.Is(err, ErrShape) {
		t.Fatalf("expected ErrShape for rank-2 background, got %v", err)
	}
}

func TestCalculatorDoesNotMutateInput(t *testing.T) {
	bg := Of(2, 3, 4)
	if _, err := NewCalculator(1).MergedBackground(Of(2, 4), bg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bg.Equal(Of(2, 3, 4)) {
		t.Fatalf("input mutated: %s", bg)
	}
}

// #endregion calculator-tests

// #region standard-tests

func TestConcat(t *testing.T) {
	got, err := Concat(-1, Of(Batch, 4), Of(Batch, 4), Of(Batch, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(Of(Batch, 10)) {
		t.Fatalf("expected (batch, 10), got %s", got)
	}

	if _, err := Concat(1, Of(2, 4), Of(3, 4)); !errors.Is(err, ErrShape) {
		t.Fatalf("expected ErrShape for mismatched batch dims, got %v", err)
	}
	if _, err := Concat(1, Of(2, 4), Of(2, 4, 1)); !errors.Is(err, ErrShape) {
		t.Fatalf("expected ErrShape for rank mismatch, got %v", err)
	}
}

func TestErrorMessage(t *testing.T) {
	err := Mismatch("knowledge_selector_1", "bad input", Of(Batch, 4, 8), Of(Batch, 8))
	want := "shape error in knowledge_selector_1: bad input (expected (batch, 4, 8), got (batch, 8))"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}

// #endregion standard-tests
