// Package linsolve solves dense linear systems by LU decomposition with
// partial pivoting. A factorization is kept after Factorise so that Resolve
// can reuse it for further right-hand sides at O(n²) cost.
package linsolve

import (
	"math"

	"github.com/san-kum/numode/internal/dynamo"
	"github.com/san-kum/numode/internal/linalg"
)

// DefaultPivotTolerance is the pivot threshold relative to max|a_ij|.
const DefaultPivotTolerance = 1e-14

// Solver is the linear-algebra capability used by the Newton solver.
type Solver interface {
	Factorise(a *linalg.Matrix) error
	Resolve(b, x *linalg.Vector) error
	Solve(a *linalg.Matrix, b, x *linalg.Vector) error
}

// LU holds the most recent factorization P·A = L·U.
//
// lu stores L strictly below the diagonal (unit diagonal implied) and U on
// and above it. perm[i] is the row of A that ended up in row i.
type LU struct {
	PivotTolerance float64

	lu         *linalg.Matrix
	perm       []int
	parity     float64
	factorized bool
}

// NewLU returns a solver with the default pivot tolerance.
func NewLU() *LU {
	return &LU{PivotTolerance: DefaultPivotTolerance}
}

// Factorized reports whether a valid factorization is stored.
func (s *LU) Factorized() bool { return s.factorized }

// Factorise decomposes a copy of a. Any previous factorization is dropped,
// also when this call fails.
func (s *LU) Factorise(a *linalg.Matrix) error {
	s.factorized = false
	if !a.IsSquare() {
		return dynamo.Errorf(dynamo.KindDimensionMismatch, "LU.Factorise", "matrix is %dx%d, need square", a.Rows(), a.Cols())
	}
	n := a.Rows()

	if s.lu == nil || s.lu.Rows() != n {
		s.lu = linalg.NewSquare(n)
		s.perm = make([]int, n)
	}
	_ = s.lu.CopyFrom(a)
	d := s.lu.Data()
	for i := range s.perm {
		s.perm[i] = i
	}
	s.parity = 1

	tol := s.PivotTolerance
	if tol <= 0 {
		tol = DefaultPivotTolerance
	}
	threshold := tol * a.MaxAbs()

	for k := 0; k < n; k++ {
		// largest magnitude in column k at or below the diagonal
		p := k
		big := math.Abs(d[k*n+k])
		for i := k + 1; i < n; i++ {
			if v := math.Abs(d[i*n+k]); v > big {
				big, p = v, i
			}
		}
		if big == 0 || big <= threshold || math.IsNaN(big) {
			return dynamo.Errorf(dynamo.KindSingularMatrix, "LU.Factorise", "pivot %d is %g", k, big)
		}
		if p != k {
			rk := d[k*n : (k+1)*n]
			rp := d[p*n : (p+1)*n]
			for j := range rk {
				rk[j], rp[j] = rp[j], rk[j]
			}
			s.perm[k], s.perm[p] = s.perm[p], s.perm[k]
			s.parity = -s.parity
		}

		pivot := d[k*n+k]
		for i := k + 1; i < n; i++ {
			f := d[i*n+k] / pivot
			d[i*n+k] = f
			if f == 0 {
				continue
			}
			for j := k + 1; j < n; j++ {
				d[i*n+j] -= f * d[k*n+j]
			}
		}
	}

	s.factorized = true
	return nil
}

// Resolve solves A·x = b with the stored factorization. x is allocated when
// empty.
func (s *LU) Resolve(b, x *linalg.Vector) error {
	if !s.factorized {
		return dynamo.Errorf(dynamo.KindNotFactorized, "LU.Resolve", "call Factorise first")
	}
	return s.backSubstitution(b, x)
}

// Solve factorises a and solves A·x = b in one call.
func (s *LU) Solve(a *linalg.Matrix, b, x *linalg.Vector) error {
	if err := s.Factorise(a); err != nil {
		return err
	}
	return s.backSubstitution(b, x)
}

func (s *LU) backSubstitution(b, x *linalg.Vector) error {
	n := s.lu.Rows()
	if b.Len() != n {
		return dynamo.Errorf(dynamo.KindDimensionMismatch, "LU.Resolve", "rhs has %d entries, matrix is %dx%d", b.Len(), n, n)
	}
	if x.Empty() {
		_ = x.CopyFrom(linalg.NewVector(n))
	}
	if x.Len() != n {
		return dynamo.Errorf(dynamo.KindDimensionMismatch, "LU.Resolve", "solution has %d entries, matrix is %dx%d", x.Len(), n, n)
	}

	d := s.lu.Data()
	bd := b.Data()
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := bd[s.perm[i]]
		for j := 0; j < i; j++ {
			sum -= d[i*n+j] * y[j]
		}
		y[i] = sum
	}
	for i := n - 1; i >= 0; i-- {
		sum := y[i]
		for j := i + 1; j < n; j++ {
			sum -= d[i*n+j] * y[j]
		}
		y[i] = sum / d[i*n+i]
	}
	copy(x.Data(), y)
	return nil
}

// L returns the unit lower-triangular factor.
func (s *LU) L() (*linalg.Matrix, error) {
	if !s.factorized {
		return nil, dynamo.Errorf(dynamo.KindNotFactorized, "LU.L", "no factorization")
	}
	n := s.lu.Rows()
	l := linalg.Identity(n)
	src, dst := s.lu.Data(), l.Data()
	for i := 1; i < n; i++ {
		copy(dst[i*n:i*n+i], src[i*n:i*n+i])
	}
	return l, nil
}

// U returns the upper-triangular factor.
func (s *LU) U() (*linalg.Matrix, error) {
	if !s.factorized {
		return nil, dynamo.Errorf(dynamo.KindNotFactorized, "LU.U", "no factorization")
	}
	n := s.lu.Rows()
	u := linalg.NewSquare(n)
	src, dst := s.lu.Data(), u.Data()
	for i := 0; i < n; i++ {
		copy(dst[i*n+i:(i+1)*n], src[i*n+i:(i+1)*n])
	}
	return u, nil
}

// Permutation returns a copy of the row permutation: row i of P·A is row
// perm[i] of A.
func (s *LU) Permutation() []int {
	p := make([]int, len(s.perm))
	copy(p, s.perm)
	return p
}

// Parity is +1 for an even number of row swaps and -1 for odd.
func (s *LU) Parity() float64 { return s.parity }

// Determinant returns det(A) from the stored factorization.
func (s *LU) Determinant() (float64, error) {
	if !s.factorized {
		return 0, dynamo.Errorf(dynamo.KindNotFactorized, "LU.Determinant", "no factorization")
	}
	n := s.lu.Rows()
	d := s.lu.Data()
	det := s.parity
	for i := 0; i < n; i++ {
		det *= d[i*n+i]
	}
	return det, nil
}
