package engine

import (
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ErrSessionClosed is returned by Run after Close
var ErrSessionClosed = errors.New("engine: session closed")

var (
	runtimeMu   sync.Mutex
	runtimeRefs int
)

// acquireRuntime initializes the shared ONNX Runtime environment on
// first use and reference-counts it across sessions
func acquireRuntime() error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if runtimeRefs == 0 {
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}
	runtimeRefs++
	return nil
}

func releaseRuntime() {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if runtimeRefs > 0 {
		runtimeRefs--
		if runtimeRefs == 0 {
			ort.DestroyEnvironment()
		}
	}
}

// SetRuntimeLibrary overrides the ONNX Runtime shared library path.
// Must be called before the first session is created.
func SetRuntimeLibrary(path string) {
	if path != "" {
		ort.SetSharedLibraryPath(path)
	}
}

// ONNXSession runs a single ONNX graph through onnxruntime. It owns the
// underlying session and must be closed when done.
type ONNXSession struct {
	session *ort.DynamicAdvancedSession

	inputs      []IOInfo
	outputs     []IOInfo
	inputNames  []string
	outputNames []string

	mu     sync.Mutex
	closed bool
}

// NewONNXSession loads a model file and creates an inference session.
// intraOpThreads <= 0 leaves the runtime default in place.
func NewONNXSession(path string, intraOpThreads int) (*ONNXSession, error) {
	if err := acquireRuntime(); err != nil {
		return nil, err
	}

	inputInfo, outputInfo, err := ort.GetInputOutputInfo(path)
	if err != nil {
		releaseRuntime()
		return nil, fmt.Errorf("failed to inspect model %s: %w", path, err)
	}

	s := &ONNXSession{}
	for _, info := range inputInfo {
		s.inputs = append(s.inputs, IOInfo{Name: info.Name, Dimensions: info.Dimensions})
		s.inputNames = append(s.inputNames, info.Name)
	}
	for _, info := range outputInfo {
		s.outputs = append(s.outputs, IOInfo{Name: info.Name, Dimensions: info.Dimensions})
		s.outputNames = append(s.outputNames, info.Name)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		releaseRuntime()
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if intraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(intraOpThreads); err != nil {
			releaseRuntime()
			return nil, fmt.Errorf("failed to set intra-op threads: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(path, s.inputNames, s.outputNames, options)
	if err != nil {
		releaseRuntime()
		return nil, fmt.Errorf("failed to create session for %s: %w", path, err)
	}
	s.session = session

	return s, nil
}

// Inputs implements Session
func (s *ONNXSession) Inputs() []IOInfo {
	return s.inputs
}

// Outputs implements Session
func (s *ONNXSession) Outputs() []IOInfo {
	return s.outputs
}

// Run implements Session. Inputs are matched to the graph's declared
// input order by name; missing inputs are an error.
func (s *ONNXSession) Run(inputs []NamedTensor) ([]NamedTensor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}

	byName := make(map[string]*NamedTensor, len(inputs))
	for i := range inputs {
		byName[inputs[i].Name] = &inputs[i]
	}

	values := make([]ort.Value, 0, len(s.inputNames))
	defer func() {
		for _, v := range values {
			v.Destroy()
		}
	}()

	for _, name := range s.inputNames {
		tensor, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("missing input tensor %q", name)
		}

		value, err := toOrtValue(tensor)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}

	outputs := make([]ort.Value, len(s.outputNames))
	if err := s.session.Run(values, outputs); err != nil {
		return nil, fmt.Errorf("session run failed: %w", err)
	}

	results := make([]NamedTensor, len(outputs))
	for i, out := range outputs {
		if out == nil {
			return nil, fmt.Errorf("output %q was not produced", s.outputNames[i])
		}
		result, err := fromOrtValue(s.outputNames[i], out)
		out.Destroy()
		if err != nil {
			return nil, err
		}
		results[i] = result
	}

	return results, nil
}

// Close implements Session
func (s *ONNXSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	err := s.session.Destroy()
	releaseRuntime()
	if err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

// toOrtValue converts a NamedTensor to an onnxruntime tensor
func toOrtValue(t *NamedTensor) (ort.Value, error) {
	shape := ort.NewShape(t.Shape...)

	// Empty cache slots have a zero-length sequence dimension
	if ElementCount(t.Shape) == 0 {
		value, err := ort.NewEmptyTensor[float32](shape)
		if err != nil {
			return nil, fmt.Errorf("failed to create empty tensor %s: %w", t.Name, err)
		}
		return value, nil
	}

	switch {
	case t.Floats != nil:
		value, err := ort.NewTensor(shape, t.Floats)
		if err != nil {
			return nil, fmt.Errorf("failed to create tensor %s: %w", t.Name, err)
		}
		return value, nil
	case t.Ints != nil:
		value, err := ort.NewTensor(shape, t.Ints)
		if err != nil {
			return nil, fmt.Errorf("failed to create tensor %s: %w", t.Name, err)
		}
		return value, nil
	case t.Bools != nil:
		value, err := ort.NewTensor(shape, t.Bools)
		if err != nil {
			return nil, fmt.Errorf("failed to create tensor %s: %w", t.Name, err)
		}
		return value, nil
	default:
		// Zero-element tensors (empty cache slots) carry no data slice
		value, err := ort.NewEmptyTensor[float32](shape)
		if err != nil {
			return nil, fmt.Errorf("failed to create empty tensor %s: %w", t.Name, err)
		}
		return value, nil
	}
}

// fromOrtValue copies an onnxruntime output into an owned NamedTensor
func fromOrtValue(name string, value ort.Value) (NamedTensor, error) {
	switch tensor := value.(type) {
	case *ort.Tensor[float32]:
		shape := tensor.GetShape()
		data := make([]float32, len(tensor.GetData()))
		copy(data, tensor.GetData())
		return NamedTensor{Name: name, Shape: append([]int64(nil), shape...), Floats: data}, nil
	case *ort.Tensor[int64]:
		shape := tensor.GetShape()
		data := make([]int64, len(tensor.GetData()))
		copy(data, tensor.GetData())
		return NamedTensor{Name: name, Shape: append([]int64(nil), shape...), Ints: data}, nil
	default:
		return NamedTensor{}, fmt.Errorf("output %q has unsupported tensor type", name)
	}
}
