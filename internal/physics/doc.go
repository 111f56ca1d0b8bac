// Package physics provides a reduced-order floating-base humanoid model that
// implements [dynamo.Simulator].
//
// The model keeps MuJoCo's generalized coordinate layout so observation code
// is backend independent:
//
//	qpos = [base pos (3), base quat wxyz (4), joints (n)]
//	qvel = [base lin vel (3), base ang vel (3), joints (n)]
//
// Joints are independent PD-actuated inertias with damping and soft limits.
// The base rests on a spring-damper ground support, is held upright by a
// restoring moment and slows down under horizontal drag. External wrenches
// applied to named bodies act on the base through their lever arm.
//
// # Scene files
//
// Scenes are YAML documents listing the base parameters, named bodies with
// their offset from the base, and joints:
//
//	name: e3
//	base: {mass: 30, height: 0.85}
//	bodies:
//	  - {name: pelvis_link, offset: [0, 0, 0]}
//	  - {name: torso_link, offset: [0, 0, 0.3]}
//	joints:
//	  - {name: left_hip_pitch, inertia: 0.05, damping: 0.5, range: [-2.0, 2.0]}
package physics
