// Package dynamo provides the core types shared by the deployment loop.
//
// The package defines the values that flow through one control tick and the
// interfaces of the external collaborators:
//
//   - [Command]: commanded planar twist (forward, lateral, yaw rate)
//   - [Action]: actor network output, latched between control ticks
//   - [Simulator]: physics backend stepped at a fixed timestep
//   - [Metric], [Observer]: per-tick consumers of [Tick] samples
//
// # Example
//
//	body, _ := physics.Load(scenePath)
//	stepper := sim.NewStepper(body, pd, cfg.ControlDecimation)
//	stepper.Run(ctx, steps, hook)
//
// # Thread Safety
//
// None of the types are safe for concurrent use. The deployment loop owns
// every value and runs on a single goroutine.
package dynamo
