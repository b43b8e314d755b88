// Package dynamo provides the shared kernel of the solver stack.
//
// It defines the ODE capability consumed by the time-steppers and the
// structured error type returned by every numerical package:
//
//   - [System]: dy/dt = f(t, y)
//   - [JacobianSystem]: a System with an analytic ∂f/∂y
//   - [Error]: kind + operation + detail, matched with errors.Is against
//     the sentinels ([ErrSingularMatrix], [ErrDiverged], ...)
//
// # Example
//
//	stepper := integrators.NewBDF2()
//	hist, _ := history.NewWithInitial(y0, stepper.HistoryDepth())
//	if err := stepper.Step(sys, h, t, hist); errors.Is(err, dynamo.ErrMaxIterationsExceeded) {
//		// retry with a smaller h
//	}
//
// # Thread Safety
//
// Nothing in the stack is safe for concurrent use. One stepper instance
// serves one integration run at a time; sim.Ensemble gives every job its
// own stepper and history.
package dynamo
