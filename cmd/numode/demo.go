package main

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/san-kum/numode/internal/config"
	"github.com/san-kum/numode/internal/linalg"
	"github.com/san-kum/numode/internal/linsolve"
	"github.com/san-kum/numode/internal/newton"
	"github.com/san-kum/numode/internal/residual"
	"github.com/san-kum/numode/internal/viz"
)

func luDemo(cmd *cobra.Command, args []string) error {
	a, err := linalg.NewMatrixFrom(3, 3, []float64{
		2, 1, 1,
		4, -6, 0,
		-2, 7, 2,
	})
	if err != nil {
		return err
	}
	b1 := linalg.NewVectorFrom([]float64{5, -2, 9})
	b2 := linalg.NewVectorFrom([]float64{1, 0, 0})

	lu := linsolve.NewLU()
	x := linalg.NewVector(3)
	if err := lu.Solve(a, b1, x); err != nil {
		return err
	}

	l, err := lu.L()
	if err != nil {
		return err
	}
	u, err := lu.U()
	if err != nil {
		return err
	}
	det, err := lu.Determinant()
	if err != nil {
		return err
	}

	fmt.Println(viz.Header("LU factorisation"))
	fmt.Printf("A =\n%s\n", a)
	fmt.Printf("L =\n%s\n", l)
	fmt.Printf("U =\n%s\n", u)
	fmt.Printf("permutation: %v\n", lu.Permutation())
	fmt.Println(viz.Metric("det(A)", det))

	fmt.Printf("\nb = %v\nx = %v\n", b1.Data(), x.Data())

	// Resolve reuses the factorisation for a new right-hand side.
	if err := lu.Resolve(b2, x); err != nil {
		return err
	}
	fmt.Printf("\nb = %v\nx = %v  (first column of A⁻¹)\n", b2.Data(), x.Data())
	return nil
}

func newtonDemo(cmd *cobra.Command, args []string) error {
	var n config.NewtonConfig
	applyNewtonFlags(cmd, &n)
	opts, err := (&config.Config{Newton: n}).NewtonOptions(newton.DefaultOptions())
	if err != nil {
		return err
	}
	opts.Logger = logger

	st := residual.NewFunc(
		func(y *linalg.Vector) (*linalg.Vector, error) {
			v := y.Data()[0]
			return linalg.NewVectorFrom([]float64{v*v - 2}), nil
		},
		func(y *linalg.Vector) (*linalg.Matrix, error) {
			return linalg.NewMatrixFrom(1, 1, []float64{2 * y.Data()[0]})
		},
	)

	y := linalg.NewVectorFrom([]float64{1})
	res, err := newton.New(opts).Solve(st, y, nil)
	fmt.Println(viz.Header("Newton: y² - 2 = 0 from y = 1"))
	fmt.Printf("status: %s\n", viz.Status(res.Status.String()))
	fmt.Printf("iterations: %d\n", res.Iterations)
	fmt.Println(viz.Metric("residual", res.ResidualNorm))
	if err != nil {
		return err
	}
	fmt.Println(viz.Metric("y", y.Data()[0]))
	fmt.Println(viz.Metric("|y - √2|", math.Abs(y.Data()[0]-math.Sqrt2)))
	return nil
}
