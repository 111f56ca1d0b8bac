// Package policy evaluates the exported locomotion policy.
//
// The policy is two recurrent graphs. The encoder maps (obs, h0, c0) to
// (latent, h, c); the actor maps (obs, latent, h0, c0) to (action, h, c).
// [Pipeline] owns both hidden states and feeds them back every call:
//
//	p, err := policy.Load(cfg.Abs(cfg.PolicyPath), cfg.ObsDim(), cfg.NumActions)
//	action, err := p.Infer(obs)
//	p.Reset() // on robot reset
//
// Any [Network] can back the pipeline; [ONNXNetwork] runs the graphs with
// onnxruntime.
package policy
