// Package tiling maps logical matrix multiplies onto the fixed N x N array:
// it pads and packs operands into buffer rows, builds the MATMUL
// instruction, and assembles tile results back into a matrix.
package tiling

import (
	"fmt"
	"math/rand"
	"strings"
)

// Matrix is a dense row-major integer matrix.
type Matrix struct {
	Rows, Cols int
	Data       []int64
}

// NewMatrix creates a zero matrix.
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{Rows: rows, Cols: cols, Data: make([]int64, rows*cols)}
}

// FromRows builds a matrix from a slice of rows.
func FromRows(rows [][]int64) *Matrix {
	if len(rows) == 0 {
		return NewMatrix(0, 0)
	}

	m := NewMatrix(len(rows), len(rows[0]))
	for r, row := range rows {
		copy(m.Data[r*m.Cols:(r+1)*m.Cols], row)
	}

	return m
}

// Identity creates an n x n identity matrix.
func Identity(n int) *Matrix {
	m := NewMatrix(n, n)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}

	return m
}

// Random fills a rows x cols matrix with values in [lo, hi].
func Random(rows, cols int, rng *rand.Rand, lo, hi int64) *Matrix {
	m := NewMatrix(rows, cols)
	for i := range m.Data {
		m.Data[i] = lo + rng.Int63n(hi-lo+1)
	}

	return m
}

// At returns element (r, c). Out-of-range positions read as zero, which is
// how padding is modelled.
func (m *Matrix) At(r, c int) int64 {
	if r < 0 || r >= m.Rows || c < 0 || c >= m.Cols {
		return 0
	}

	return m.Data[r*m.Cols+c]
}

// Set writes element (r, c).
func (m *Matrix) Set(r, c int, v int64) {
	m.Data[r*m.Cols+c] = v
}

// Row returns a copy of row r.
func (m *Matrix) Row(r int) []int64 {
	return append([]int64(nil), m.Data[r*m.Cols:(r+1)*m.Cols]...)
}

// Equal reports whether two matrices have the same shape and contents.
func (m *Matrix) Equal(o *Matrix) bool {
	if m.Rows != o.Rows || m.Cols != o.Cols {
		return false
	}

	for i := range m.Data {
		if m.Data[i] != o.Data[i] {
			return false
		}
	}

	return true
}

// String renders the matrix one row per line.
func (m *Matrix) String() string {
	var sb strings.Builder
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			if c > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%d", m.At(r, c))
		}
		sb.WriteByte('\n')
	}

	return sb.String()
}

// Multiply returns the exact product a x b.
func Multiply(a, b *Matrix) (*Matrix, error) {
	if a.Cols != b.Rows {
		return nil, fmt.Errorf("shape mismatch: %dx%d times %dx%d",
			a.Rows, a.Cols, b.Rows, b.Cols)
	}

	out := NewMatrix(a.Rows, b.Cols)
	for r := 0; r < a.Rows; r++ {
		for k := 0; k < a.Cols; k++ {
			av := a.At(r, k)
			if av == 0 {
				continue
			}
			for c := 0; c < b.Cols; c++ {
				out.Data[r*out.Cols+c] += av * b.At(k, c)
			}
		}
	}

	return out, nil
}
