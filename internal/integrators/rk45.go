package integrators

import (
	"math"

	"github.com/san-kum/numode/internal/dynamo"
	"github.com/san-kum/numode/internal/history"
)

// Adaptive is a Stepper with an embedded error estimate. Trial computes the
// value at t+h from slot 0 of hist into out and leaves hist untouched; the
// returned estimate is the largest local error relative to the size of the
// state, so callers can accept or retry the step.
type Adaptive interface {
	Stepper
	Trial(sys dynamo.System, h, t float64, hist *history.History, out []float64) (float64, error)
	// Order is the order of the embedded lower-order solution; the error
	// estimate shrinks like h^(Order+1).
	Order() int
}

// tableau is an explicit embedded Runge-Kutta pair. b propagates the
// solution and e = b - b̂ weights the error estimate.
type tableau struct {
	c []float64
	a [][]float64
	b []float64
	e []float64
}

// Dormand-Prince 5(4). The seventh stage evaluates f at the new value.
var dormandPrince = tableau{
	c: []float64{0, 1.0 / 5.0, 3.0 / 10.0, 4.0 / 5.0, 8.0 / 9.0, 1, 1},
	a: [][]float64{
		{},
		{1.0 / 5.0},
		{3.0 / 40.0, 9.0 / 40.0},
		{44.0 / 45.0, -56.0 / 15.0, 32.0 / 9.0},
		{19372.0 / 6561.0, -25360.0 / 2187.0, 64448.0 / 6561.0, -212.0 / 729.0},
		{9017.0 / 3168.0, -355.0 / 33.0, 46732.0 / 5247.0, 49.0 / 176.0, -5103.0 / 18656.0},
		{35.0 / 384.0, 0, 500.0 / 1113.0, 125.0 / 192.0, -2187.0 / 6784.0, 11.0 / 84.0},
	},
	b: []float64{35.0 / 384.0, 0, 500.0 / 1113.0, 125.0 / 192.0, -2187.0 / 6784.0, 11.0 / 84.0, 0},
	e: []float64{
		35.0/384.0 - 5179.0/57600.0,
		0,
		500.0/1113.0 - 7571.0/16695.0,
		125.0/192.0 - 393.0/640.0,
		-2187.0/6784.0 + 92097.0/339200.0,
		11.0/84.0 - 187.0/2100.0,
		-1.0 / 40.0,
	},
}

// Runge-Kutta-Fehlberg 4(5), advancing with the fifth-order weights.
var fehlberg = tableau{
	c: []float64{0, 1.0 / 4.0, 3.0 / 8.0, 12.0 / 13.0, 1, 1.0 / 2.0},
	a: [][]float64{
		{},
		{1.0 / 4.0},
		{3.0 / 32.0, 9.0 / 32.0},
		{1932.0 / 2197.0, -7200.0 / 2197.0, 7296.0 / 2197.0},
		{439.0 / 216.0, -8, 3680.0 / 513.0, -845.0 / 4104.0},
		{-8.0 / 27.0, 2, -3544.0 / 2565.0, 1859.0 / 4104.0, -11.0 / 40.0},
	},
	b: []float64{16.0 / 135.0, 0, 6656.0 / 12825.0, 28561.0 / 56430.0, -9.0 / 50.0, 2.0 / 55.0},
	e: []float64{1.0 / 360.0, 0, -128.0 / 4275.0, -2197.0 / 75240.0, 1.0 / 50.0, 2.0 / 55.0},
}

// EmbeddedRK is an explicit Runge-Kutta pair. Used as a plain Stepper it
// takes the fixed step it is given; sim drives it through Trial when a run
// asks for adaptive step sizes.
type EmbeddedRK struct {
	name    string
	tab     tableau
	k       [][]float64
	scratch []float64
	evals   int
}

// NewRK45 returns the Dormand-Prince pair.
func NewRK45() *EmbeddedRK { return &EmbeddedRK{name: "rk45", tab: dormandPrince} }

// NewRKF45 returns the Runge-Kutta-Fehlberg pair.
func NewRKF45() *EmbeddedRK { return &EmbeddedRK{name: "rkf45", tab: fehlberg} }

func (r *EmbeddedRK) Name() string      { return r.name }
func (r *EmbeddedRK) HistoryDepth() int { return 1 }
func (r *EmbeddedRK) Order() int        { return 4 }
func (r *EmbeddedRK) Evaluations() int  { return r.evals }

func (r *EmbeddedRK) ensureScratch(n int) {
	if len(r.scratch) == n {
		return
	}
	r.k = make([][]float64, len(r.tab.c))
	for s := range r.k {
		r.k[s] = make([]float64, n)
	}
	r.scratch = make([]float64, n)
}

func (r *EmbeddedRK) Trial(sys dynamo.System, h, t float64, hist *history.History, out []float64) (float64, error) {
	if err := checkHistory(r.name, sys, hist, 1); err != nil {
		return 0, err
	}
	if len(out) != sys.Dim() {
		return 0, dynamo.Errorf(dynamo.KindDimensionMismatch, r.name+".Trial", "output has %d entries, system has %d", len(out), sys.Dim())
	}
	row, err := hist.Row(0)
	if err != nil {
		return 0, err
	}
	x := row.Data()
	n := len(x)
	r.ensureScratch(n)

	for s, c := range r.tab.c {
		copy(r.scratch, x)
		for j, a := range r.tab.a[s] {
			if a == 0 {
				continue
			}
			for i := 0; i < n; i++ {
				r.scratch[i] += h * a * r.k[j][i]
			}
		}
		sys.Derive(t+c*h, r.scratch, r.k[s])
	}
	r.evals += len(r.tab.c)

	errMax := 0.0
	for i := 0; i < n; i++ {
		y, e := x[i], 0.0
		for s := range r.tab.b {
			y += h * r.tab.b[s] * r.k[s][i]
			e += r.tab.e[s] * r.k[s][i]
		}
		out[i] = y
		scale := math.Abs(x[i]) + math.Abs(h*r.k[0][i]) + 1e-10
		errMax = math.Max(errMax, math.Abs(h*e)/scale)
	}
	if math.IsNaN(errMax) {
		errMax = math.Inf(1)
	}
	return errMax, nil
}

func (r *EmbeddedRK) Step(sys dynamo.System, h, t float64, hist *history.History) error {
	out := make([]float64, sys.Dim())
	if _, err := r.Trial(sys, h, t, hist, out); err != nil {
		return err
	}
	return Commit(hist, out)
}

// StepControl proposes the next step size from the error estimate of the
// last attempt.
type StepControl interface {
	Next(errEst, tol, h float64, order int) float64
}

// HalfDouble halves the step after an error above tol and doubles it
// otherwise.
type HalfDouble struct{}

func (HalfDouble) Next(errEst, tol, h float64, _ int) float64 {
	if !(errEst <= tol) {
		return h / 2
	}
	return h * 2
}

// Proportional scales h by Safety·(tol/err)^(1/(order+1)), clamped to
// [MinScale, MaxScale].
type Proportional struct {
	Safety   float64
	MinScale float64
	MaxScale float64
}

func NewProportional() Proportional {
	return Proportional{Safety: 0.9, MinScale: 0.2, MaxScale: 10}
}

func (p Proportional) Next(errEst, tol, h float64, order int) float64 {
	switch {
	case errEst == 0:
		return h * p.MaxScale
	case math.IsNaN(errEst) || math.IsInf(errEst, 0):
		return h * p.MinScale
	}
	scale := p.Safety * math.Pow(tol/errEst, 1/float64(order+1))
	return h * math.Min(p.MaxScale, math.Max(p.MinScale, scale))
}

// ParseStepControl maps a name to a StepControl; "" selects proportional.
func ParseStepControl(name string) (StepControl, error) {
	switch name {
	case "", "proportional":
		return NewProportional(), nil
	case "half_double":
		return HalfDouble{}, nil
	}
	return nil, dynamo.Errorf(dynamo.KindNotConfigured, "integrators.ParseStepControl", "unknown step control %q (proportional, half_double)", name)
}
