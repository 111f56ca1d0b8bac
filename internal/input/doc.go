// Package input reads the gamepad or keyboard and maps it to a velocity
// command plus edge-triggered events.
//
// A [Source] is polled once per control tick and returns a [Frame]. Gamepad
// frames carry absolute stick deflections; keyboard frames carry increments.
// [Mapper] turns either kind into a clamped [dynamo.Command] for the current
// mode.
package input
