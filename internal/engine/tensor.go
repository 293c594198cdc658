package engine

import "fmt"

// NamedTensor is a dense tensor paired with the graph input/output name
// it binds to. Exactly one of the data fields is set.
type NamedTensor struct {
	Name  string
	Shape []int64

	Floats []float32
	Ints   []int64
	Bools  []bool
}

// IOInfo describes one declared session input or output
type IOInfo struct {
	Name       string
	Dimensions []int64
}

// Session is one inference graph. Implementations are not reentrant:
// callers must issue at most one Run at a time per session.
type Session interface {
	// Inputs returns the session's declared inputs in graph order
	Inputs() []IOInfo
	// Outputs returns the session's declared outputs in graph order
	Outputs() []IOInfo
	// Run executes the graph. Inputs may be given in any order; outputs
	// are returned in graph order.
	Run(inputs []NamedTensor) ([]NamedTensor, error)
	// Close releases the underlying resources
	Close() error
}

// ElementCount returns the number of elements implied by a shape
func ElementCount(shape []int64) int64 {
	count := int64(1)
	for _, d := range shape {
		count *= d
	}
	return count
}

// FloatTensor builds a float32 tensor, validating the data length
func FloatTensor(name string, shape []int64, data []float32) (NamedTensor, error) {
	if int64(len(data)) != ElementCount(shape) {
		return NamedTensor{}, fmt.Errorf("tensor %s: data length %d does not match shape %v", name, len(data), shape)
	}
	return NamedTensor{Name: name, Shape: shape, Floats: data}, nil
}

// ZeroFloatTensor builds a zero-filled float32 tensor of the given shape
func ZeroFloatTensor(name string, shape []int64) NamedTensor {
	return NamedTensor{Name: name, Shape: shape, Floats: make([]float32, ElementCount(shape))}
}
