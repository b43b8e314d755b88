// Package linalg provides the dense row-major containers used by the
// linear and nonlinear solvers.
//
// A container either owns its buffer or borrows it (a view). Views are
// created with ViewMatrix, ViewVector and Matrix.Row; they alias caller
// memory and never outlive it by contract. Clone always returns an owned
// copy.
package linalg

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/numode/internal/dynamo"
)

// Matrix is a dense row-major matrix.
type Matrix struct {
	rows, cols int
	data       []float64
	owned      bool
}

// NewMatrix returns a zero-filled rows×cols matrix. Non-positive sizes
// yield an empty matrix.
func NewMatrix(rows, cols int) *Matrix {
	if rows <= 0 || cols <= 0 {
		return EmptyMatrix()
	}
	return &Matrix{rows: rows, cols: cols, data: make([]float64, rows*cols), owned: true}
}

// NewSquare returns a zero-filled n×n matrix.
func NewSquare(n int) *Matrix {
	return NewMatrix(n, n)
}

// Identity returns the n×n identity.
func Identity(n int) *Matrix {
	m := NewSquare(n)
	for i := 0; i < n; i++ {
		m.data[i*n+i] = 1
	}
	return m
}

// EmptyMatrix returns a 0×0 matrix with no storage.
func EmptyMatrix() *Matrix {
	return &Matrix{owned: true}
}

// NewMatrixFrom copies data (row-major, len rows*cols) into an owned matrix.
func NewMatrixFrom(rows, cols int, data []float64) (*Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("linalg.NewMatrixFrom(%d,%d): %w", rows, cols, dynamo.ErrInvalidSize)
	}
	if len(data) != rows*cols {
		return nil, dynamo.Errorf(dynamo.KindDimensionMismatch, "linalg.NewMatrixFrom",
			"%d values for %dx%d", len(data), rows, cols)
	}
	m := NewMatrix(rows, cols)
	copy(m.data, data)
	return m, nil
}

// ViewMatrix wraps data without copying. The matrix does not own data:
// writes go to the caller's buffer and Release leaves it untouched.
func ViewMatrix(rows, cols int, data []float64) (*Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("linalg.ViewMatrix(%d,%d): %w", rows, cols, dynamo.ErrInvalidSize)
	}
	if len(data) < rows*cols {
		return nil, dynamo.Errorf(dynamo.KindDimensionMismatch, "linalg.ViewMatrix",
			"%d values for %dx%d", len(data), rows, cols)
	}
	return &Matrix{rows: rows, cols: cols, data: data[: rows*cols : rows*cols]}, nil
}

func (m *Matrix) Rows() int { return m.rows }
func (m *Matrix) Cols() int { return m.cols }

// Shape returns (rows, cols).
func (m *Matrix) Shape() (int, int) { return m.rows, m.cols }

// Empty reports whether the matrix has no storage.
func (m *Matrix) Empty() bool { return m.rows == 0 || m.cols == 0 }

// Owned reports whether the matrix is responsible for its buffer.
func (m *Matrix) Owned() bool { return m.owned }

// IsSquare reports rows == cols for a non-empty matrix.
func (m *Matrix) IsSquare() bool { return !m.Empty() && m.rows == m.cols }

// Data exposes the row-major backing slice.
func (m *Matrix) Data() []float64 { return m.data }

// Resize reallocates to rows×cols, zero-filled. The matrix becomes owned; a
// previously borrowed buffer is detached, never written.
func (m *Matrix) Resize(rows, cols int) {
	n := NewMatrix(rows, cols)
	*m = *n
}

// Release drops the buffer and leaves the matrix empty. Borrowed buffers are
// only detached.
func (m *Matrix) Release() {
	m.rows, m.cols, m.data, m.owned = 0, 0, nil, true
}

// cell locates element (i, j). With range checking off the row is sliced
// out first, so a bad row or column index panics instead of landing on a
// neighbouring element.
func (m *Matrix) cell(op string, i, j int) (*float64, error) {
	if rangeChecking.Load() && (i < 0 || i >= m.rows || j < 0 || j >= m.cols) {
		return nil, rangeErr(op, i, j, m.rows, m.cols)
	}
	return &m.data[i*m.cols : (i+1)*m.cols][j], nil
}

// At returns element (i, j).
func (m *Matrix) At(i, j int) (float64, error) {
	p, err := m.cell("Matrix.At", i, j)
	if err != nil {
		return 0, err
	}
	return *p, nil
}

// Set assigns element (i, j).
func (m *Matrix) Set(i, j int, v float64) error {
	p, err := m.cell("Matrix.Set", i, j)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Ptr returns a mutable reference to element (i, j).
func (m *Matrix) Ptr(i, j int) (*float64, error) {
	return m.cell("Matrix.Ptr", i, j)
}

// Row returns a borrowed row-oriented view of row i.
func (m *Matrix) Row(i int) (*Vector, error) {
	if i < 0 || i >= m.rows {
		return nil, rangeErr("Matrix.Row", i, 0, m.rows, -1)
	}
	v := ViewVector(m.data[i*m.cols : (i+1)*m.cols])
	v.orient = RowVector
	return v, nil
}

// Clone returns an owned deep copy.
func (m *Matrix) Clone() *Matrix {
	c := &Matrix{rows: m.rows, cols: m.cols, owned: true}
	if m.data != nil {
		c.data = make([]float64, len(m.data))
		copy(c.data, m.data)
	}
	return c
}

// CopyFrom assigns src's values into m. Shapes must match unless m is
// empty, in which case m is allocated to src's shape.
func (m *Matrix) CopyFrom(src *Matrix) error {
	if m.Empty() && !src.Empty() {
		m.Resize(src.rows, src.cols)
	}
	if m.rows != src.rows || m.cols != src.cols {
		return shapeErr("Matrix.CopyFrom", m.rows, m.cols, src.rows, src.cols)
	}
	copy(m.data, src.data)
	return nil
}

// Fill sets every entry to v.
func (m *Matrix) Fill(v float64) {
	for i := range m.data {
		m.data[i] = v
	}
}

// Add returns a + b.
func Add(a, b *Matrix) (*Matrix, error) {
	if a.rows != b.rows || a.cols != b.cols {
		return nil, shapeErr("linalg.Add", a.rows, a.cols, b.rows, b.cols)
	}
	c := a.Clone()
	for i, v := range b.data {
		c.data[i] += v
	}
	return c, nil
}

// Sub returns a - b.
func Sub(a, b *Matrix) (*Matrix, error) {
	if a.rows != b.rows || a.cols != b.cols {
		return nil, shapeErr("linalg.Sub", a.rows, a.cols, b.rows, b.cols)
	}
	c := a.Clone()
	for i, v := range b.data {
		c.data[i] -= v
	}
	return c, nil
}

// AddInPlace performs m += b.
func (m *Matrix) AddInPlace(b *Matrix) error {
	if m.rows != b.rows || m.cols != b.cols {
		return shapeErr("Matrix.AddInPlace", m.rows, m.cols, b.rows, b.cols)
	}
	for i, v := range b.data {
		m.data[i] += v
	}
	return nil
}

// SubInPlace performs m -= b.
func (m *Matrix) SubInPlace(b *Matrix) error {
	if m.rows != b.rows || m.cols != b.cols {
		return shapeErr("Matrix.SubInPlace", m.rows, m.cols, b.rows, b.cols)
	}
	for i, v := range b.data {
		m.data[i] -= v
	}
	return nil
}

// Scale multiplies every entry by s in place.
func (m *Matrix) Scale(s float64) {
	for i := range m.data {
		m.data[i] *= s
	}
}

// Mul returns the product a·b (triple loop, i-k-j order for row locality).
func Mul(a, b *Matrix) (*Matrix, error) {
	if a.Empty() || b.Empty() || a.cols != b.rows {
		return nil, shapeErr("linalg.Mul", a.rows, a.cols, b.rows, b.cols)
	}
	c := NewMatrix(a.rows, b.cols)
	for i := 0; i < a.rows; i++ {
		ci := c.data[i*c.cols : (i+1)*c.cols]
		for k := 0; k < a.cols; k++ {
			aik := a.data[i*a.cols+k]
			if aik == 0 {
				continue
			}
			bk := b.data[k*b.cols : (k+1)*b.cols]
			for j, bkj := range bk {
				ci[j] += aik * bkj
			}
		}
	}
	return c, nil
}

// MulVec returns m·v for a column vector v.
func (m *Matrix) MulVec(v *Vector) (*Vector, error) {
	if v.orient != ColumnVector || m.cols != len(v.data) || m.Empty() {
		r, c := v.Shape()
		return nil, shapeErr("Matrix.MulVec", m.rows, m.cols, r, c)
	}
	out := NewVector(m.rows)
	for i := 0; i < m.rows; i++ {
		s := 0.0
		row := m.data[i*m.cols : (i+1)*m.cols]
		for j, x := range row {
			s += x * v.data[j]
		}
		out.data[i] = s
	}
	return out, nil
}

// T returns a freshly allocated transpose.
func (m *Matrix) T() *Matrix {
	t := NewMatrix(m.cols, m.rows)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			t.data[j*m.rows+i] = m.data[i*m.cols+j]
		}
	}
	return t
}

// TransposeInPlace transposes m, reusing its buffer (owned or borrowed).
func (m *Matrix) TransposeInPlace() {
	if m.rows == m.cols {
		n := m.rows
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				m.data[i*n+j], m.data[j*n+i] = m.data[j*n+i], m.data[i*n+j]
			}
		}
		return
	}
	t := m.T()
	copy(m.data, t.data)
	m.rows, m.cols = m.cols, m.rows
}

// NormInf returns the maximum absolute row sum.
func (m *Matrix) NormInf() float64 {
	best := 0.0
	for i := 0; i < m.rows; i++ {
		s := 0.0
		for _, v := range m.data[i*m.cols : (i+1)*m.cols] {
			s += math.Abs(v)
		}
		best = math.Max(best, s)
	}
	return best
}

// Norm1 returns the maximum absolute column sum.
func (m *Matrix) Norm1() float64 {
	best := 0.0
	for j := 0; j < m.cols; j++ {
		s := 0.0
		for i := 0; i < m.rows; i++ {
			s += math.Abs(m.data[i*m.cols+j])
		}
		best = math.Max(best, s)
	}
	return best
}

// NormFrobenius returns sqrt(Σ a_ij²).
func (m *Matrix) NormFrobenius() float64 {
	s := 0.0
	for _, v := range m.data {
		s += v * v
	}
	return math.Sqrt(s)
}

// MaxAbs returns max |a_ij|.
func (m *Matrix) MaxAbs() float64 {
	best := 0.0
	for _, v := range m.data {
		best = math.Max(best, math.Abs(v))
	}
	return best
}

func (m *Matrix) String() string {
	if m.Empty() {
		return "[]"
	}
	var sb strings.Builder
	for i := 0; i < m.rows; i++ {
		sb.WriteByte('[')
		for j := 0; j < m.cols; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%g", m.data[i*m.cols+j])
		}
		sb.WriteString("]\n")
	}
	return sb.String()
}
