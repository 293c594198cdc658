// Package engine wraps the ONNX Runtime sessions behind a small tensor
// interface. It exposes one encoder call shape and one decoder call shape,
// discovers the key/value cache slot schema from the decoder's declared
// inputs at initialization, and keeps all stringly-typed tensor naming
// off the per-step hot path.
package engine
