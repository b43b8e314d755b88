// Package residual assembles the nonlinear equations F(y) = 0 that implicit
// time-steppers hand to the Newton solver, together with their Jacobian.
//
// Every scheme here has the linear multistep form
//
//	F(y) = y - Σ_k α_k·y_{n-k} - h·(β·f(t+h, y) + γ·f(t, y_n))
//
// with the previous values read from a history container.
package residual

import (
	"github.com/san-kum/numode/internal/dynamo"
	"github.com/san-kum/numode/internal/history"
	"github.com/san-kum/numode/internal/linalg"
)

// Strategy evaluates the residual and Jacobian of one scheme for the step
// bound with Bind.
type Strategy interface {
	Bind(ctx Context) error
	Residual(y *linalg.Vector) (*linalg.Vector, error)
	Jacobian(y *linalg.Vector) (*linalg.Matrix, error)
}

// Context is the step data a strategy reads on every Newton iteration. It
// references, never owns, the system and the history.
//
// Before the step is committed, slot Target holds y_n and Target+1 holds
// y_{n-1}; the solution is written to slot Target once the history has been
// shifted by one.
type Context struct {
	System  dynamo.System
	H       float64
	T       float64
	History *history.History
	Target  int
}

// Scheme is a linear multistep residual. Use NewBackwardEuler, NewBDF2 or
// NewAdamsMoulton2.
type Scheme struct {
	// CacheOldDerivative evaluates f(t, y_n) once per Bind instead of once
	// per residual.
	CacheOldDerivative bool
	// ForceFiniteDifference ignores an analytic Jacobian.
	ForceFiniteDifference bool

	name  string
	alpha []float64
	beta  float64
	gamma float64

	ctx      Context
	bound    bool
	dy       []float64
	old      []float64
	oldValid bool
	jac      []float64
	evals    int
}

// NewBackwardEuler: F = y - y_n - h·f(t+h, y).
func NewBackwardEuler() *Scheme {
	return &Scheme{name: "backward_euler", alpha: []float64{1}, beta: 1, CacheOldDerivative: true}
}

// NewBDF2: F = y - 4/3·y_n + 1/3·y_{n-1} - 2/3·h·f(t+h, y).
func NewBDF2() *Scheme {
	return &Scheme{name: "bdf2", alpha: []float64{4.0 / 3.0, -1.0 / 3.0}, beta: 2.0 / 3.0, CacheOldDerivative: true}
}

// NewAdamsMoulton2 is the trapezoidal rule:
// F = y - y_n - h/2·(f(t+h, y) + f(t, y_n)).
func NewAdamsMoulton2() *Scheme {
	return &Scheme{name: "adams_moulton_2", alpha: []float64{1}, beta: 0.5, gamma: 0.5, CacheOldDerivative: true}
}

func (s *Scheme) Name() string { return s.name }

// RequiredHistory is the number of past values the residual reads.
func (s *Scheme) RequiredHistory() int { return len(s.alpha) }

// ImplicitWeight is β, the coefficient of h·f(t+h, y).
func (s *Scheme) ImplicitWeight() float64 { return s.beta }

// Evaluations counts right-hand-side evaluations since construction.
func (s *Scheme) Evaluations() int { return s.evals }

// Bind sets the step context and drops any cached old derivative.
func (s *Scheme) Bind(ctx Context) error {
	s.bound = false
	s.oldValid = false
	if ctx.System == nil || ctx.History == nil {
		return dynamo.Errorf(dynamo.KindNotConfigured, s.name+".Bind", "system and history are required")
	}
	n := ctx.System.Dim()
	if ctx.History.Vars() != n {
		return dynamo.Errorf(dynamo.KindDimensionMismatch, s.name+".Bind", "history has %d vars, system has %d", ctx.History.Vars(), n)
	}
	if ctx.Target < 0 || ctx.Target+len(s.alpha) > ctx.History.Depth() {
		return dynamo.Errorf(dynamo.KindInsufficientHistory, s.name+".Bind",
			"target slot %d needs %d past values, history depth is %d", ctx.Target, len(s.alpha), ctx.History.Depth())
	}
	if len(s.dy) != n {
		s.dy = make([]float64, n)
		s.old = make([]float64, n)
		s.jac = make([]float64, n*n)
	}
	s.ctx = ctx
	s.bound = true
	return nil
}

// Unbind clears the context; further evaluations fail with NotConfigured.
func (s *Scheme) Unbind() {
	s.bound = false
	s.oldValid = false
	s.ctx = Context{}
}

func (s *Scheme) ready(op string, y *linalg.Vector) error {
	if !s.bound {
		return dynamo.Errorf(dynamo.KindNotConfigured, s.name+"."+op, "Bind must be called first")
	}
	if y.Len() != s.ctx.System.Dim() {
		return dynamo.Errorf(dynamo.KindDimensionMismatch, s.name+"."+op, "trial vector has %d entries, system has %d", y.Len(), s.ctx.System.Dim())
	}
	return nil
}

func (s *Scheme) oldDerivative() error {
	if s.oldValid && s.CacheOldDerivative {
		return nil
	}
	yn, err := s.ctx.History.Row(s.ctx.Target)
	if err != nil {
		return err
	}
	s.ctx.System.Derive(s.ctx.T, yn.Data(), s.old)
	s.evals++
	s.oldValid = true
	return nil
}

// Residual evaluates F(y).
func (s *Scheme) Residual(y *linalg.Vector) (*linalg.Vector, error) {
	if err := s.ready("Residual", y); err != nil {
		return nil, err
	}
	c := s.ctx
	c.System.Derive(c.T+c.H, y.Data(), s.dy)
	s.evals++
	if s.gamma != 0 {
		if err := s.oldDerivative(); err != nil {
			return nil, err
		}
	}

	n := y.Len()
	out := linalg.NewVector(n)
	f := out.Data()
	copy(f, y.Data())
	for k, a := range s.alpha {
		prev, err := c.History.Row(c.Target + k)
		if err != nil {
			return nil, err
		}
		for i, v := range prev.Data() {
			f[i] -= a * v
		}
	}
	for i := 0; i < n; i++ {
		g := s.beta * s.dy[i]
		if s.gamma != 0 {
			g += s.gamma * s.old[i]
		}
		f[i] -= c.H * g
	}
	return out, nil
}

// Jacobian evaluates ∂F/∂y = I - β·h·∂f/∂y, using the system's analytic
// Jacobian when it has one and finite differences of F otherwise.
func (s *Scheme) Jacobian(y *linalg.Vector) (*linalg.Matrix, error) {
	if err := s.ready("Jacobian", y); err != nil {
		return nil, err
	}
	js, ok := s.ctx.System.(dynamo.JacobianSystem)
	if !ok || s.ForceFiniteDifference {
		return FiniteDifference(s.Residual, y)
	}

	n := y.Len()
	for i := range s.jac {
		s.jac[i] = 0
	}
	js.Jacobian(s.ctx.T+s.ctx.H, y.Data(), s.jac)
	j := linalg.NewSquare(n)
	d := j.Data()
	w := s.beta * s.ctx.H
	for i, v := range s.jac {
		d[i] = -w * v
	}
	for i := 0; i < n; i++ {
		d[i*n+i] += 1
	}
	return j, nil
}
