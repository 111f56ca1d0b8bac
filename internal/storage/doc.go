// Package storage persists recorded runs as a metadata.json plus a
// samples.csv of joint torques and velocities per control tick.
package storage
