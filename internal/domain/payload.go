package domain

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
)

// Grid is a dense row-major float32 block with its shape, innermost axis last.
// A 2-D slice has shape [ny, nx]; a 3-D block has [nz, ny, nx].
type Grid struct {
	Values []float32
	Shape  []int
}

// Size returns the number of values the shape describes.
func (g Grid) Size() int {
	n := 1
	for _, d := range g.Shape {
		n *= d
	}
	return n
}

// Plane returns the 2-D (y, x) plane at index z of a 3-D grid. A 2-D grid
// is returned unchanged for z == 0.
func (g Grid) Plane(z int) (Grid, error) {
	switch len(g.Shape) {
	case 2:
		if z == 0 {
			return g, nil
		}
		return Grid{}, fmt.Errorf("plane %d requested from 2-D grid", z)
	case 3:
		nz, ny, nx := g.Shape[0], g.Shape[1], g.Shape[2]
		if z < 0 || z >= nz {
			return Grid{}, fmt.Errorf("plane %d out of range, grid has %d", z, nz)
		}
		stride := ny * nx
		return Grid{Values: g.Values[z*stride : (z+1)*stride], Shape: []int{ny, nx}}, nil
	default:
		return Grid{}, fmt.Errorf("grid has unsupported rank %d", len(g.Shape))
	}
}

// Rows returns a 2-D grid as [][]float64 for numeric post-processing.
func (g Grid) Rows() ([][]float64, error) {
	if len(g.Shape) != 2 {
		return nil, fmt.Errorf("grid has rank %d, want 2", len(g.Shape))
	}
	ny, nx := g.Shape[0], g.Shape[1]
	rows := make([][]float64, ny)
	for y := 0; y < ny; y++ {
		row := make([]float64, nx)
		for x := 0; x < nx; x++ {
			row[x] = float64(g.Values[y*nx+x])
		}
		rows[y] = row
	}
	return rows, nil
}

// Payload is the serialized form of a grid carried inside JSON responses.
// The array format nests values per the grid shape; the base64 format packs
// little-endian float32 bytes.
type Payload struct {
	Format string `json:"format"`
	Dtype  string `json:"dtype,omitempty"`
	Shape  []int  `json:"shape,omitempty"`
	Data   any    `json:"data"`
}

// EncodePayload serializes a grid in the requested format. The format must
// already be validated.
func EncodePayload(g Grid, format string) (Payload, error) {
	if g.Size() != len(g.Values) {
		return Payload{}, fmt.Errorf("grid shape %v does not match %d values", g.Shape, len(g.Values))
	}

	if format == FormatBase64 {
		buf := make([]byte, 4*len(g.Values))
		for i, v := range g.Values {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
		}
		return Payload{
			Format: FormatBase64,
			Dtype:  "float32",
			Shape:  g.Shape,
			Data:   base64.StdEncoding.EncodeToString(buf),
		}, nil
	}

	return Payload{
		Format: FormatArray,
		Data:   nest(g.Values, g.Shape),
	}, nil
}

// nest folds a flat row-major slice into nested []any per shape.
func nest(values []float32, shape []int) any {
	if len(shape) == 1 {
		out := make([]float32, shape[0])
		copy(out, values)
		return out
	}
	stride := 1
	for _, d := range shape[1:] {
		stride *= d
	}
	out := make([]any, shape[0])
	for i := 0; i < shape[0]; i++ {
		out[i] = nest(values[i*stride:(i+1)*stride], shape[1:])
	}
	return out
}
