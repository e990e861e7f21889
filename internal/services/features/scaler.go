package features

import (
	"fmt"
	"math"

	"FinCast/internal/domain/models"
)

// ScaleContext is a per-column min-max transform fitted on a reference set.
type ScaleContext struct {
	Min []float64
	Max []float64
}

// FitScale fits one range per column of ref. Every row must have the same width.
// A column with min == max is rejected with models.ErrDegenerateRange.
func FitScale(ref [][]float64) (*ScaleContext, error) {
	ctx, err := fitRanges(ref)
	if err != nil {
		return nil, err
	}
	for j := range ctx.Min {
		if ctx.Max[j] == ctx.Min[j] {
			return nil, fmt.Errorf("%w: column %d constant at %v", models.ErrDegenerateRange, j, ctx.Min[j])
		}
	}
	return ctx, nil
}

// FitScaleZeroSafe is FitScale without the spread check: a constant column
// gets a unit range, so its values scale to 0 and invert back unchanged.
func FitScaleZeroSafe(ref [][]float64) (*ScaleContext, error) {
	return fitRanges(ref)
}

// FitScale1D fits a single-column context on a flat series.
func FitScale1D(ref []float64) (*ScaleContext, error) {
	return FitScale(column(ref))
}

// FitScaleZeroSafe1D is the single-column form of FitScaleZeroSafe.
func FitScaleZeroSafe1D(ref []float64) (*ScaleContext, error) {
	return FitScaleZeroSafe(column(ref))
}

func fitRanges(ref [][]float64) (*ScaleContext, error) {
	if len(ref) == 0 || len(ref[0]) == 0 {
		return nil, fmt.Errorf("%w: empty reference", models.ErrDegenerateRange)
	}
	cols := len(ref[0])
	ctx := &ScaleContext{Min: make([]float64, cols), Max: make([]float64, cols)}
	copy(ctx.Min, ref[0])
	copy(ctx.Max, ref[0])
	for r, row := range ref {
		if len(row) != cols {
			return nil, fmt.Errorf("scale reference row %d has %d columns, want %d", r, len(row), cols)
		}
		for j, v := range row {
			ctx.Min[j] = math.Min(ctx.Min[j], v)
			ctx.Max[j] = math.Max(ctx.Max[j], v)
		}
	}
	return ctx, nil
}

func column(values []float64) [][]float64 {
	rows := make([][]float64, len(values))
	for i, v := range values {
		rows[i] = []float64{v}
	}
	return rows
}

// span is the column range, 1 when the column is constant.
func span(lo, hi float64) float64 {
	if hi == lo {
		return 1
	}
	return hi - lo
}

// Apply maps every row into [0,1] relative to the fitted reference.
func (c *ScaleContext) Apply(rows [][]float64) ([][]float64, error) {
	return c.transform(rows, func(v, lo, hi float64) float64 { return (v - lo) / span(lo, hi) })
}

// Invert reverses Apply.
func (c *ScaleContext) Invert(rows [][]float64) ([][]float64, error) {
	return c.transform(rows, func(v, lo, hi float64) float64 { return v*span(lo, hi) + lo })
}

// Apply1D scales a flat series with a single-column context.
func (c *ScaleContext) Apply1D(values []float64) ([]float64, error) {
	return c.flat(values, c.Apply)
}

// Invert1D reverses Apply1D.
func (c *ScaleContext) Invert1D(values []float64) ([]float64, error) {
	return c.flat(values, c.Invert)
}

func (c *ScaleContext) transform(rows [][]float64, f func(v, lo, hi float64) float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(c.Min) {
			return nil, fmt.Errorf("row %d has %d columns, context has %d", i, len(row), len(c.Min))
		}
		o := make([]float64, len(row))
		for j, v := range row {
			o[j] = f(v, c.Min[j], c.Max[j])
		}
		out[i] = o
	}
	return out, nil
}

func (c *ScaleContext) flat(values []float64, f func([][]float64) ([][]float64, error)) ([]float64, error) {
	if len(c.Min) != 1 {
		return nil, fmt.Errorf("flat transform needs a single-column context, have %d", len(c.Min))
	}
	t, err := f(column(values))
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(t))
	for i, r := range t {
		out[i] = r[0]
	}
	return out, nil
}
