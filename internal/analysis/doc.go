// Package analysis provides studies built on top of single runs.
//
//   - [ConvergenceOrder]: error against a closed-form solution over halving
//     step sizes, with a least-squares estimate of the observed order
//   - [LyapunovExponent]: largest Lyapunov exponent via trajectory separation
//   - [NewPhasePortrait]: 2D projection of a recorded run
//
// # Order Studies
//
// The runs of a study are independent and go through sim.Ensemble:
//
//	study, err := analysis.ConvergenceOrder(ctx, models.NewDecay(), func() integrators.Stepper {
//	    return integrators.NewBDF2()
//	}, analysis.OrderConfig{Duration: 1, H0: 0.1, Levels: 5})
//	fmt.Println(study.Estimated) // ≈ 2
package analysis
