package linalg

import (
	"fmt"
	"math"
	"strings"
)

// Orientation distinguishes column from row vectors in products.
type Orientation int

const (
	ColumnVector Orientation = iota
	RowVector
)

// Vector is a dense vector with an orientation flag.
type Vector struct {
	data   []float64
	orient Orientation
	owned  bool
}

// NewVector returns a zero-filled column vector of length n (empty if n <= 0).
func NewVector(n int) *Vector {
	if n <= 0 {
		return &Vector{owned: true}
	}
	return &Vector{data: make([]float64, n), owned: true}
}

// NewVectorFrom copies values into an owned column vector.
func NewVectorFrom(values []float64) *Vector {
	v := NewVector(len(values))
	copy(v.data, values)
	return v
}

// ViewVector wraps data without copying.
func ViewVector(data []float64) *Vector {
	return &Vector{data: data[:len(data):len(data)]}
}

func (v *Vector) Len() int    { return len(v.data) }
func (v *Vector) Empty() bool { return len(v.data) == 0 }
func (v *Vector) Owned() bool { return v.owned }

// Data exposes the backing slice.
func (v *Vector) Data() []float64 { return v.data }

func (v *Vector) Orientation() Orientation { return v.orient }

// Shape returns (n, 1) for column vectors and (1, n) for row vectors.
func (v *Vector) Shape() (int, int) {
	if v.orient == RowVector {
		return 1, len(v.data)
	}
	return len(v.data), 1
}

// Transpose toggles the orientation flag; no data moves.
func (v *Vector) Transpose() {
	if v.orient == ColumnVector {
		v.orient = RowVector
	} else {
		v.orient = ColumnVector
	}
}

// Release drops the buffer; borrowed buffers are only detached.
func (v *Vector) Release() {
	v.data, v.owned = nil, true
}

func (v *Vector) index(op string, i int) error {
	if rangeChecking.Load() && (i < 0 || i >= len(v.data)) {
		return rangeErr(op, i, 0, len(v.data), -1)
	}
	return nil
}

func (v *Vector) At(i int) (float64, error) {
	if err := v.index("Vector.At", i); err != nil {
		return 0, err
	}
	return v.data[i], nil
}

func (v *Vector) Set(i int, x float64) error {
	if err := v.index("Vector.Set", i); err != nil {
		return err
	}
	v.data[i] = x
	return nil
}

func (v *Vector) Ptr(i int) (*float64, error) {
	if err := v.index("Vector.Ptr", i); err != nil {
		return nil, err
	}
	return &v.data[i], nil
}

// Clone returns an owned copy with the same orientation.
func (v *Vector) Clone() *Vector {
	c := NewVectorFrom(v.data)
	c.orient = v.orient
	return c
}

// CopyFrom assigns src's values; lengths must match unless v is empty.
func (v *Vector) CopyFrom(src *Vector) error {
	if v.Empty() && !src.Empty() {
		*v = *NewVector(src.Len())
	}
	if len(v.data) != len(src.data) {
		return shapeErr("Vector.CopyFrom", len(v.data), 1, len(src.data), 1)
	}
	copy(v.data, src.data)
	return nil
}

func (v *Vector) Fill(x float64) {
	for i := range v.data {
		v.data[i] = x
	}
}

func (v *Vector) sameShape(op string, w *Vector) error {
	if len(v.data) != len(w.data) || v.orient != w.orient {
		ar, ac := v.Shape()
		br, bc := w.Shape()
		return shapeErr(op, ar, ac, br, bc)
	}
	return nil
}

// AddVec returns a + b.
func AddVec(a, b *Vector) (*Vector, error) {
	if err := a.sameShape("linalg.AddVec", b); err != nil {
		return nil, err
	}
	c := a.Clone()
	for i, x := range b.data {
		c.data[i] += x
	}
	return c, nil
}

// SubVec returns a - b.
func SubVec(a, b *Vector) (*Vector, error) {
	if err := a.sameShape("linalg.SubVec", b); err != nil {
		return nil, err
	}
	c := a.Clone()
	for i, x := range b.data {
		c.data[i] -= x
	}
	return c, nil
}

// AddInPlace performs v += w.
func (v *Vector) AddInPlace(w *Vector) error {
	if err := v.sameShape("Vector.AddInPlace", w); err != nil {
		return err
	}
	for i, x := range w.data {
		v.data[i] += x
	}
	return nil
}

// SubInPlace performs v -= w.
func (v *Vector) SubInPlace(w *Vector) error {
	if err := v.sameShape("Vector.SubInPlace", w); err != nil {
		return err
	}
	for i, x := range w.data {
		v.data[i] -= x
	}
	return nil
}

// AXPY performs v += a*w, ignoring orientation.
func (v *Vector) AXPY(a float64, w *Vector) error {
	if len(v.data) != len(w.data) {
		return shapeErr("Vector.AXPY", len(v.data), 1, len(w.data), 1)
	}
	for i, x := range w.data {
		v.data[i] += a * x
	}
	return nil
}

func (v *Vector) Scale(s float64) {
	for i := range v.data {
		v.data[i] *= s
	}
}

// Dot returns Σ v_i w_i, ignoring orientation.
func (v *Vector) Dot(w *Vector) (float64, error) {
	if len(v.data) != len(w.data) {
		return 0, shapeErr("Vector.Dot", len(v.data), 1, len(w.data), 1)
	}
	s := 0.0
	for i, x := range v.data {
		s += x * w.data[i]
	}
	return s, nil
}

// MulVec multiplies two vectors as matrices: row·column gives 1×1,
// column·row gives the outer product.
func MulVec(a, b *Vector) (*Matrix, error) {
	ar, ac := a.Shape()
	br, bc := b.Shape()
	if ac != br || a.Empty() || b.Empty() {
		return nil, shapeErr("linalg.MulVec", ar, ac, br, bc)
	}
	out := NewMatrix(ar, bc)
	if ar == 1 && bc == 1 {
		d, _ := a.Dot(b)
		out.data[0] = d
		return out, nil
	}
	for i := 0; i < ar; i++ {
		for j := 0; j < bc; j++ {
			out.data[i*bc+j] = a.data[i] * b.data[j]
		}
	}
	return out, nil
}

func (v *Vector) Norm1() float64 {
	s := 0.0
	for _, x := range v.data {
		s += math.Abs(x)
	}
	return s
}

func (v *Vector) Norm2() float64 {
	s := 0.0
	for _, x := range v.data {
		s += x * x
	}
	return math.Sqrt(s)
}

func (v *Vector) NormInf() float64 {
	m := 0.0
	for _, x := range v.data {
		m = math.Max(m, math.Abs(x))
	}
	return m
}

// IsFinite reports whether every entry is neither NaN nor ±Inf.
func (v *Vector) IsFinite() bool {
	for _, x := range v.data {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func (v *Vector) String() string {
	parts := make([]string, len(v.data))
	for i, x := range v.data {
		parts[i] = fmt.Sprintf("%g", x)
	}
	s := "[" + strings.Join(parts, ", ") + "]"
	if v.orient == ColumnVector {
		return s + "ᵀ"
	}
	return s
}
