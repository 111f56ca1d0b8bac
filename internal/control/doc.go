// Package control turns latched policy actions into joint torques.
//
// [PD] holds per-joint gains and the current joint targets. Targets are set
// from an action with [PD.SetAction] and stay fixed until the next call:
//
//	pd := control.NewPD(cfg.Kps, cfg.Kds, cfg.DefaultAngles, cfg.ActionScale)
//	pd.SetAction(action)
//	tau := pd.Compute(sim.JointPositions(), sim.JointVelocities())
package control
