// Package deploy runs a locomotion policy against the simulator.
//
// A Runner holds one State and steps the physics at a fixed timestep. Ahead
// of every step it applies a pending reset and the disturbance force. Every
// control_decimation steps it polls the input source and updates the mode
// and camera. It then builds the observation, runs the encoder and actor
// pipeline, latches the new action into the PD controller and refreshes the
// status display. Recorded ticks are saved as a run once the recording
// window elapses.
package deploy
