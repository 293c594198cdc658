package engine

import (
	"fmt"
	"strings"
)

// Encoder wraps the audio encoder session: one named input tensor
// (spectrogram features) in, one hidden-states tensor out.
type Encoder struct {
	session    Session
	inputName  string
	outputName string
}

// NewEncoder binds the wrapper to the session's declared I/O names
func NewEncoder(session Session) (*Encoder, error) {
	inputs := session.Inputs()
	outputs := session.Outputs()
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("encoder session declares no inputs or outputs")
	}

	return &Encoder{
		session:    session,
		inputName:  inputs[0].Name,
		outputName: outputs[0].Name,
	}, nil
}

// Encode runs the encoder once over a chunk's spectrogram features.
// The returned hidden-states tensor is read-only input to every decoder
// step for that chunk.
func (e *Encoder) Encode(features []float32, shape []int64) (NamedTensor, error) {
	input, err := FloatTensor(e.inputName, shape, features)
	if err != nil {
		return NamedTensor{}, err
	}

	outputs, err := e.session.Run([]NamedTensor{input})
	if err != nil {
		return NamedTensor{}, fmt.Errorf("encoder call failed: %w", err)
	}

	for _, out := range outputs {
		if out.Name == e.outputName {
			return out, nil
		}
	}

	return NamedTensor{}, fmt.Errorf("encoder output %q missing from results", e.outputName)
}

// Close releases the underlying session
func (e *Encoder) Close() error {
	return e.session.Close()
}

// Decoder wraps the autoregressive decoder session. Input and output
// names, the cache slot schema, and optional inputs (use_cache_branch,
// encoder attention mask) are resolved once at construction.
type Decoder struct {
	session Session
	schema  *CacheSchema

	tokensName  string
	hiddenName  string
	logitsName  string
	hasUseCache bool
	hasEncMask  bool
}

// NewDecoder inspects the session's declared I/O and builds the wrapper
func NewDecoder(session Session, numHeads, headDim int) (*Decoder, error) {
	schema, err := NewCacheSchema(session.Inputs(), numHeads, headDim)
	if err != nil {
		return nil, err
	}

	d := &Decoder{
		session:    session,
		schema:     schema,
		tokensName: "input_ids",
		hiddenName: "encoder_hidden_states",
		logitsName: "logits",
	}

	for _, info := range session.Inputs() {
		switch info.Name {
		case "decoder_input_ids":
			d.tokensName = info.Name
		case "encoder_outputs":
			d.hiddenName = info.Name
		case "use_cache_branch":
			d.hasUseCache = true
		case "encoder_attention_mask":
			d.hasEncMask = true
		}
	}

	outputs := session.Outputs()
	if len(outputs) == 0 {
		return nil, fmt.Errorf("decoder session declares no outputs")
	}
	found := false
	for _, info := range outputs {
		if info.Name == d.logitsName {
			found = true
			break
		}
	}
	if !found {
		d.logitsName = outputs[0].Name
	}

	return d, nil
}

// Schema returns the decoder's cache slot table
func (d *Decoder) Schema() *CacheSchema {
	return d.schema
}

// Step runs one decoder call. tokens is the full prompt on the first
// step and the single most recent token afterwards; hidden is the
// chunk's encoder output; cache carries the key/value tensors from the
// previous step. Returns the final position's logits and the present
// tensors that refill the cache.
func (d *Decoder) Step(tokens []int64, hidden NamedTensor, cache *Cache) ([]float32, []NamedTensor, error) {
	if len(tokens) == 0 {
		return nil, nil, fmt.Errorf("decoder step needs at least one token")
	}

	inputs := make([]NamedTensor, 0, len(d.schema.Slots)+4)

	ids := make([]int64, len(tokens))
	copy(ids, tokens)
	inputs = append(inputs, NamedTensor{
		Name:  d.tokensName,
		Shape: []int64{1, int64(len(ids))},
		Ints:  ids,
	})

	hiddenInput := hidden
	hiddenInput.Name = d.hiddenName
	inputs = append(inputs, hiddenInput)

	if d.hasEncMask {
		encSeqLen := hidden.Shape[1]
		mask := make([]int64, encSeqLen)
		for i := range mask {
			mask[i] = 1
		}
		inputs = append(inputs, NamedTensor{
			Name:  "encoder_attention_mask",
			Shape: []int64{1, encSeqLen},
			Ints:  mask,
		})
	}

	if d.hasUseCache {
		inputs = append(inputs, NamedTensor{
			Name:  "use_cache_branch",
			Shape: []int64{1},
			Bools: []bool{cache.Populated()},
		})
	}

	// Every declared slot must be bound: cached tensor when available,
	// correctly-shaped zero tensor otherwise
	for _, slot := range d.schema.Slots {
		if cached, ok := cache.Lookup(slot.Present); ok {
			bound := cached
			bound.Name = slot.Input
			inputs = append(inputs, bound)
			continue
		}
		inputs = append(inputs, d.schema.EmptyTensor(slot))
	}

	outputs, err := d.session.Run(inputs)
	if err != nil {
		return nil, nil, fmt.Errorf("decoder call failed: %w", err)
	}

	var logits []float32
	var presents []NamedTensor
	for _, out := range outputs {
		if out.Name == d.logitsName {
			logits, err = lastPositionLogits(out)
			if err != nil {
				return nil, nil, err
			}
			continue
		}
		if strings.HasPrefix(out.Name, presentPrefix) {
			presents = append(presents, out)
		}
	}

	if logits == nil {
		return nil, nil, fmt.Errorf("decoder output %q missing from results", d.logitsName)
	}

	return logits, presents, nil
}

// Close releases the underlying session
func (d *Decoder) Close() error {
	return d.session.Close()
}

// lastPositionLogits slices the vocabulary scores of the final time step
// out of a (1, seq, vocab) logits tensor
func lastPositionLogits(t NamedTensor) ([]float32, error) {
	if len(t.Shape) < 2 || t.Floats == nil {
		return nil, fmt.Errorf("logits tensor %q has unexpected layout %v", t.Name, t.Shape)
	}

	vocab := int(t.Shape[len(t.Shape)-1])
	if vocab <= 0 || len(t.Floats) < vocab {
		return nil, fmt.Errorf("logits tensor %q too small for vocabulary size %d", t.Name, vocab)
	}

	start := len(t.Floats) - vocab
	logits := make([]float32, vocab)
	copy(logits, t.Floats[start:])

	return logits, nil
}
