package domain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// FlowField is a pseudo-velocity field derived from a scalar slice: the
// gradient components u = ∂f/∂x and v = ∂f/∂y in grid-index units, plus
// summary statistics of the gradient magnitude for frontend color scaling.
type FlowField struct {
	U         [][]float64 `json:"u"`
	V         [][]float64 `json:"v"`
	SpeedMin  float64     `json:"speed_min"`
	SpeedMax  float64     `json:"speed_max"`
	SpeedMean float64     `json:"speed_mean"`
}

// ComputeFlow differentiates a 2-D slice with central differences, falling
// back to one-sided differences on the boundary. The grid must be at least
// 2x2 so every cell has a neighbor on each axis.
func ComputeFlow(g Grid) (FlowField, error) {
	rows, err := g.Rows()
	if err != nil {
		return FlowField{}, err
	}
	ny, nx := g.Shape[0], g.Shape[1]
	if ny < 2 || nx < 2 {
		return FlowField{}, fmt.Errorf("%w: region too small for flow computation, got %dx%d grid",
			ErrBadParameter, ny, nx)
	}

	u := make([][]float64, ny)
	v := make([][]float64, ny)
	speeds := make([]float64, 0, ny*nx)

	for y := 0; y < ny; y++ {
		u[y] = make([]float64, nx)
		v[y] = make([]float64, nx)
		for x := 0; x < nx; x++ {
			du := diff(rows[y], x, nx)
			dv := diffCol(rows, x, y, ny)
			u[y][x] = du
			v[y][x] = dv
			speeds = append(speeds, math.Hypot(du, dv))
		}
	}

	return FlowField{
		U:         u,
		V:         v,
		SpeedMin:  floats.Min(speeds),
		SpeedMax:  floats.Max(speeds),
		SpeedMean: stat.Mean(speeds, nil),
	}, nil
}

// diff approximates the derivative of row at index x.
func diff(row []float64, x, nx int) float64 {
	switch {
	case x == 0:
		return row[1] - row[0]
	case x == nx-1:
		return row[nx-1] - row[nx-2]
	default:
		return (row[x+1] - row[x-1]) / 2
	}
}

// diffCol approximates the derivative along the y axis at (y, x).
func diffCol(rows [][]float64, x, y, ny int) float64 {
	switch {
	case y == 0:
		return rows[1][x] - rows[0][x]
	case y == ny-1:
		return rows[ny-1][x] - rows[ny-2][x]
	default:
		return (rows[y+1][x] - rows[y-1][x]) / 2
	}
}
