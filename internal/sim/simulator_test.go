package sim_test

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/numode/internal/dynamo"
	"github.com/san-kum/numode/internal/history"
	"github.com/san-kum/numode/internal/integrators"
	"github.com/san-kum/numode/internal/sim"
)

type decay struct{}

func (decay) Dim() int                           { return 1 }
func (decay) Derive(_ float64, y, dy []float64)  { dy[0] = -y[0] }
func (decay) Jacobian(_ float64, _, j []float64) { j[0] = -1 }

// picky wraps a stepper and refuses steps larger than limit with a
// recoverable error.
type picky struct {
	integrators.Stepper
	limit    float64
	attempts int
}

func (p *picky) Step(sys dynamo.System, h, t float64, hist *history.History) error {
	p.attempts++
	if h > p.limit {
		return dynamo.Errorf(dynamo.KindMaxIterationsExceeded, "picky.Step", "h=%g", h)
	}
	return p.Stepper.Step(sys, h, t, hist)
}

// broken always fails with a non-recoverable error.
type broken struct{ integrators.Stepper }

func (broken) Step(dynamo.System, float64, float64, *history.History) error {
	return dynamo.Errorf(dynamo.KindDiverged, "broken.Step", "no")
}

type counter struct{ steps []int }

func (c *counter) OnStep(step int, _ float64, _ dynamo.State) { c.steps = append(c.steps, step) }

type sum struct{ total float64 }

func (s *sum) Name() string                      { return "sum" }
func (s *sum) Observe(_ float64, y dynamo.State) { s.total += y[0] }
func (s *sum) Value() float64                    { return s.total }
func (s *sum) Reset()                            { s.total = 0 }

var _ = Describe("Simulator", func() {
	var cfg sim.Config

	BeforeEach(func() {
		cfg = sim.DefaultConfig()
		cfg.Dt = 0.1
		cfg.Duration = 1
	})

	It("records the initial value and every step", func() {
		res, err := sim.New(decay{}, integrators.NewBDF2()).Run(context.Background(), dynamo.State{1}, cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Method).To(Equal("bdf2"))
		Expect(res.States).To(HaveLen(11))
		Expect(res.Times).To(HaveLen(11))
		Expect(res.StepsTaken).To(Equal(10))
		Expect(res.Times[10]).To(BeNumerically("~", 1, 1e-12))
		Expect(res.Final()[0]).To(BeNumerically("~", math.Exp(-1), 5e-3))
		Expect(res.Evaluations).To(BeNumerically(">", 10))
		Expect(res.Column(0)[0]).To(Equal(1.0))
	})

	It("thins the record with Every", func() {
		cfg.Every = 5
		res, err := sim.New(decay{}, integrators.NewRK4()).Run(context.Background(), dynamo.State{1}, cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Times).To(HaveLen(3))
		Expect(res.StepsTaken).To(Equal(10))
	})

	It("always records the final state", func() {
		cfg.Every = 3
		res, err := sim.New(decay{}, integrators.NewRK4()).Run(context.Background(), dynamo.State{1}, cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Times).To(HaveLen(5))
		Expect(res.Times[3]).To(BeNumerically("~", 0.9, 1e-12))
		Expect(res.Times[4]).To(BeNumerically("~", 1, 1e-12))
		Expect(res.Final()[0]).To(BeNumerically("~", math.Exp(-1), 1e-6))
	})

	It("feeds metrics and observers", func() {
		obs := &counter{}
		s := sim.New(decay{}, integrators.NewEuler())
		s.AddObserver(obs)
		s.AddMetric(&sum{})
		res, err := s.Run(context.Background(), dynamo.State{1}, cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(obs.steps).To(HaveLen(11))
		Expect(res.Metrics).To(HaveKey("sum"))
		Expect(res.Metrics["sum"]).To(BeNumerically(">", 1))
	})

	DescribeTable("rejects invalid configs",
		func(mutate func(*sim.Config)) {
			mutate(&cfg)
			_, err := sim.New(decay{}, integrators.NewEuler()).Run(context.Background(), dynamo.State{1}, cfg)
			Expect(err).To(HaveOccurred())
		},
		Entry("zero dt", func(c *sim.Config) { c.Dt = 0 }),
		Entry("negative dt", func(c *sim.Config) { c.Dt = -0.1 }),
		Entry("zero duration", func(c *sim.Config) { c.Duration = 0 }),
		Entry("negative halvings", func(c *sim.Config) { c.MaxHalvings = -1 }),
		Entry("bad pin", func(c *sim.Config) { c.Pinned = []int{3} }),
		Entry("adaptive without tolerance", func(c *sim.Config) { c.Adaptive, c.MinDt = true, 1e-3 }),
		Entry("adaptive without min dt", func(c *sim.Config) { c.Adaptive, c.Tolerance = true, 1e-6 }),
		Entry("max dt below min dt", func(c *sim.Config) {
			c.Adaptive, c.Tolerance, c.MinDt, c.MaxDt = true, 1e-6, 0.1, 0.01
		}),
	)

	Context("with adaptive step sizes", func() {
		BeforeEach(func() {
			cfg.Adaptive = true
			cfg.Dt = 0.5
			cfg.Tolerance = 1e-8
			cfg.MinDt = 1e-6
		})

		It("rejects large steps and lands on the end time", func() {
			res, err := sim.New(decay{}, integrators.NewRK45()).Run(context.Background(), dynamo.State{1}, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Rejected).To(BeNumerically(">", 0))
			Expect(res.Times).To(HaveLen(res.StepsTaken + 1))
			Expect(res.Times[len(res.Times)-1]).To(Equal(1.0))
			Expect(res.Final()[0]).To(BeNumerically("~", math.Exp(-1), 1e-6))
			for i := 1; i < len(res.Times); i++ {
				Expect(res.Times[i]).To(BeNumerically(">", res.Times[i-1]))
			}
		})

		It("works with the half-double control", func() {
			cfg.Control = integrators.HalfDouble{}
			cfg.Tolerance = 1e-6
			res, err := sim.New(decay{}, integrators.NewRKF45()).Run(context.Background(), dynamo.State{1}, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Rejected).To(BeNumerically(">", 0))
			Expect(res.Final()[0]).To(BeNumerically("~", math.Exp(-1), 1e-5))
		})

		It("accepts steps at the minimum size whatever their error", func() {
			cfg.Dt = 0.1
			cfg.MinDt = 0.1
			cfg.MaxDt = 0.1
			cfg.Tolerance = 1e-300
			res, err := sim.New(decay{}, integrators.NewRK45()).Run(context.Background(), dynamo.State{1}, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Rejected).To(BeZero())
			Expect(res.StepsTaken).To(Equal(10))
		})

		It("needs a stepper with an error estimate", func() {
			_, err := sim.New(decay{}, integrators.NewBDF2()).Run(context.Background(), dynamo.State{1}, cfg)
			Expect(err).To(MatchError(dynamo.ErrNotConfigured))
		})
	})

	It("rejects an initial value of the wrong size", func() {
		_, err := sim.New(decay{}, integrators.NewEuler()).Run(context.Background(), dynamo.State{1, 2}, cfg)
		Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
	})

	Context("when a step does not converge", func() {
		It("retries with halved steps", func() {
			p := &picky{Stepper: integrators.NewBackwardEuler(), limit: 0.03}
			res, err := sim.New(decay{}, p).Run(context.Background(), dynamo.State{1}, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.StepsTaken).To(Equal(10))
			Expect(res.Retries).To(BeNumerically(">", 0))
			Expect(res.Times).To(HaveLen(11))
			// Backward Euler at h = 0.025 over [0, 1].
			Expect(res.Final()[0]).To(BeNumerically("~", math.Pow(1/1.025, 40), 1e-9))
		})

		It("gives up when halving is exhausted", func() {
			cfg.MaxHalvings = 1
			p := &picky{Stepper: integrators.NewBackwardEuler(), limit: 0.01}
			res, err := sim.New(decay{}, p).Run(context.Background(), dynamo.State{1}, cfg)
			Expect(err).To(MatchError(dynamo.ErrMaxIterationsExceeded))

			var se *dynamo.SimulationError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Step).To(Equal(1))
			Expect(res.States).To(HaveLen(1))
		})

		It("never retries with MaxHalvings zero", func() {
			cfg.MaxHalvings = 0
			p := &picky{Stepper: integrators.NewBackwardEuler(), limit: 0.01}
			_, err := sim.New(decay{}, p).Run(context.Background(), dynamo.State{1}, cfg)
			Expect(dynamo.Recoverable(err)).To(BeTrue())
			Expect(p.attempts).To(Equal(1))
		})
	})

	It("does not retry non-recoverable failures", func() {
		_, err := sim.New(decay{}, broken{integrators.NewEuler()}).Run(context.Background(), dynamo.State{1}, cfg)
		Expect(err).To(MatchError(dynamo.ErrDiverged))
	})

	It("stops at a non-finite state", func() {
		cfg.Dt = 1
		cfg.Duration = 2000
		_, err := sim.New(stiff{}, integrators.NewEuler()).Run(context.Background(), dynamo.State{1}, cfg)
		Expect(err).To(MatchError(dynamo.ErrDiverged))
	})

	It("holds pinned variables", func() {
		cfg.Pinned = []int{1}
		res, err := sim.New(pair{}, integrators.NewAdamsMoulton2()).Run(context.Background(), dynamo.State{1, 2}, cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Column(1)).To(HaveEach(2.0))
	})

	It("honours cancellation", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := sim.New(decay{}, integrators.NewEuler()).Run(ctx, dynamo.State{1}, cfg)
		Expect(err).To(MatchError(context.Canceled))
	})

	It("stops early when the callback says so", func() {
		var seen int
		err := sim.New(decay{}, integrators.NewEuler()).RunWithCallback(context.Background(), dynamo.State{1}, cfg,
			func(t float64, _ dynamo.State) bool {
				seen++
				return t < 0.45
			})
		Expect(err).NotTo(HaveOccurred())
		Expect(seen).To(Equal(6))
	})
})

var _ = Describe("Ensemble", func() {
	It("runs jobs concurrently and keeps their order", func() {
		cfg := sim.DefaultConfig()
		cfg.Dt = 0.01
		cfg.Duration = 1

		e := sim.NewEnsemble(2)
		for _, s := range []integrators.Stepper{integrators.NewEuler(), integrators.NewRK4(), integrators.NewBDF2(), integrators.NewAdamsMoulton2()} {
			e.Add(sim.Job{Name: s.Name(), System: decay{}, Stepper: s, Y0: dynamo.State{1}, Config: cfg})
		}
		Expect(e.Len()).To(Equal(4))

		results, err := e.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(4))
		Expect(results[0].Method).To(Equal("euler"))
		Expect(results[3].Method).To(Equal("adams_moulton_2"))
		for _, r := range results {
			Expect(r.Final()[0]).To(BeNumerically("~", math.Exp(-1), 3e-3))
		}
	})

	It("reports the failing job", func() {
		cfg := sim.DefaultConfig()
		e := sim.NewEnsemble(0)
		e.Add(sim.Job{Name: "bad", System: decay{}, Stepper: broken{integrators.NewEuler()}, Y0: dynamo.State{1}, Config: cfg})
		_, err := e.Run(context.Background())
		Expect(err).To(MatchError(ContainSubstring("job bad")))
	})
})

type stiff struct{}

func (stiff) Dim() int                          { return 1 }
func (stiff) Derive(_ float64, y, dy []float64) { dy[0] = -1000 * y[0] }

type pair struct{}

func (pair) Dim() int { return 2 }
func (pair) Derive(_ float64, y, dy []float64) {
	dy[0] = -y[0]
	dy[1] = y[0]
}
