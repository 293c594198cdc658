package decode

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/skypro1111/whisper-onnx-service/internal/engine"
	"github.com/skypro1111/whisper-onnx-service/internal/tokenizer"
)

const (
	// n-gram sizes checked by the loop detector
	minLoopGram = 3
	maxLoopGram = 6

	// reselection attempts for a symbol-like token repeating itself
	maxRepeatReselections = 3
)

// Options control one chunk's decode pass.
type Options struct {
	Language   string
	Translate  bool
	Timestamps bool
}

// Observer receives decode-level metric events. Implemented by the
// metrics package; a nil observer disables recording.
type Observer interface {
	RecordDecodeStep()
	RecordLoopDetected()
	RecordEngineFailure(stage string)
}

// Loop runs the autoregressive decode pass for one chunk. It owns no
// cross-chunk state; a fresh chunkState is created per Run call.
type Loop struct {
	decoder  *engine.Decoder
	policy   *Policy
	vocab    tokenizer.Decoder
	tokens   tokenizer.TokenMap
	config   PolicyConfig
	logger   *slog.Logger
	observer Observer
}

// NewLoop wires the decode loop to its decoder session, scorer and
// vocabulary. observer may be nil.
func NewLoop(decoder *engine.Decoder, policy *Policy, vocab tokenizer.Decoder, tokens tokenizer.TokenMap, config PolicyConfig, logger *slog.Logger, observer Observer) (*Loop, error) {
	if decoder == nil || policy == nil || vocab == nil {
		return nil, fmt.Errorf("decode loop requires decoder, policy and vocabulary")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Loop{
		decoder:  decoder,
		policy:   policy,
		vocab:    vocab,
		tokens:   tokens,
		config:   config,
		logger:   logger,
		observer: observer,
	}, nil
}

// chunkState is the mutable per-chunk decode state: the growing token
// sequence (prompt first), the key/value cache, the bounded
// recent-token window, and the per-chunk repeat ban list. Created
// empty at chunk start, discarded at chunk end, never shared.
type chunkState struct {
	sequence  []int64
	generated []int64
	recent    []int64
	banned    map[int64]struct{}
	cache     *engine.Cache
	lastText  string
	content   int
}

func newChunkState(prompt []int64) *chunkState {
	return &chunkState{
		sequence: append([]int64(nil), prompt...),
		banned:   make(map[int64]struct{}),
		cache:    engine.NewCache(),
	}
}

// accept appends a selected token to the sequence and the bounded
// recent window.
func (s *chunkState) accept(id int64, window int) {
	s.sequence = append(s.sequence, id)
	s.generated = append(s.generated, id)
	s.recent = append(s.recent, id)
	if len(s.recent) > window {
		s.recent = s.recent[len(s.recent)-window:]
	}
}

// Prompt builds the chunk's initial token sequence from the options:
// start-of-transcript, language, task, and the no-timestamps marker
// unless timestamps were requested.
func (l *Loop) Prompt(opts Options) ([]int64, error) {
	lang := opts.Language
	if lang == "" {
		lang = "en"
	}
	langID, err := l.tokens.LanguageID(lang)
	if err != nil {
		return nil, err
	}

	task := l.tokens.Transcribe
	if opts.Translate {
		task = l.tokens.Translate
	}

	prompt := []int64{l.tokens.StartOfTranscript, langID, task}
	if !opts.Timestamps {
		prompt = append(prompt, l.tokens.NoTimestamps)
	}
	return prompt, nil
}

// Run decodes one chunk against the given encoder output, calling emit
// for every accepted token's text in generation order. It returns once
// end-of-transcript is accepted, the token ceiling is hit, a loop is
// detected, the context is cancelled, or a decoder call fails; of
// these only a bad prompt is reported as an error.
func (l *Loop) Run(ctx context.Context, hidden engine.NamedTensor, opts Options, emit func(text string)) error {
	prompt, err := l.Prompt(opts)
	if err != nil {
		return fmt.Errorf("build decode prompt: %w", err)
	}

	state := newChunkState(prompt)
	for step := 0; step < l.config.MaxTokens; step++ {
		if ctx.Err() != nil {
			l.logger.Debug("decode cancelled",
				slog.Int("step", step))
			return nil
		}

		input := state.sequence
		if step > 0 {
			input = state.sequence[len(state.sequence)-1:]
		}

		if l.observer != nil {
			l.observer.RecordDecodeStep()
		}
		logits, presents, err := l.decoder.Step(input, hidden, state.cache)
		if err != nil {
			state.cache.Clear()
			if l.observer != nil {
				l.observer.RecordEngineFailure("decoder")
			}
			l.logger.Warn("decoder step failed, ending chunk",
				slog.Int("step", step),
				slog.String("error", err.Error()))
			return nil
		}
		state.cache.Replace(presents)

		candidates := l.policy.Rank(logits, state.recent, state.banned)
		selected, sampled := l.policy.Select(candidates, step)

		if selected.ID == l.tokens.EndOfTranscript {
			replacement, ok := l.reselectAfterEOT(state, candidates)
			if !ok {
				l.logger.Debug("end of transcript accepted",
					slog.Int("step", step),
					slog.Int("content_tokens", state.content))
				return nil
			}
			selected = replacement
		}

		selected, banDone := l.reselectSymbolRepeat(state, selected, candidates)
		if banDone {
			state.banned[selected.ID] = struct{}{}
		}

		if l.detectLoop(state, selected.ID) {
			if l.observer != nil {
				l.observer.RecordLoopDetected()
			}
			l.logger.Debug("repeating n-gram detected, ending chunk",
				slog.Int("step", step))
			return nil
		}

		state.accept(selected.ID, l.config.RecentWindow)
		text := l.vocab.Decode([]int64{selected.ID})
		state.lastText = text
		state.content++

		if sampled {
			l.logger.Debug("token selected by sampling",
				slog.Int("step", step),
				slog.Int64("token", selected.ID))
		}
		emit(text)
	}

	l.logger.Debug("token ceiling reached",
		slog.Int("max_tokens", l.config.MaxTokens))
	return nil
}

// reselectAfterEOT handles an end-of-transcript selection that arrives
// before the minimum content-token count: it looks for one non-EOT
// candidate whose text is long enough and sufficiently alphanumeric.
// Returns ok=false when end-of-transcript should be accepted.
func (l *Loop) reselectAfterEOT(state *chunkState, candidates []Candidate) (Candidate, bool) {
	if state.content >= l.config.MinContentTokens {
		return Candidate{}, false
	}

	for _, c := range candidates {
		if c.ID == l.tokens.EndOfTranscript || c.Score == negInf {
			continue
		}
		text := strings.TrimSpace(l.vocab.Decode([]int64{c.ID}))
		if len(text) >= 2 && tokenizer.AlphanumericRatio(text) >= 0.5 {
			l.logger.Debug("early end of transcript overridden",
				slog.Int64("token", c.ID))
			return c, true
		}
	}
	return Candidate{}, false
}

// reselectSymbolRepeat retries a selection whose text is symbol-like
// and identical to the immediately preceding token. Up to three
// alternatives from the ranked candidates are tried; when none
// qualifies the original stands, emitted once and banned from
// repeating within the chunk.
func (l *Loop) reselectSymbolRepeat(state *chunkState, selected Candidate, candidates []Candidate) (Candidate, bool) {
	text := l.vocab.Decode([]int64{selected.ID})
	if !symbolLike(text) || text != state.lastText {
		return selected, false
	}

	tried := 0
	for _, c := range candidates {
		if c.ID == selected.ID || c.Score == negInf {
			continue
		}
		if tried >= maxRepeatReselections {
			break
		}
		tried++
		alt := l.vocab.Decode([]int64{c.ID})
		if alt != state.lastText && !tokenizer.IsLowQuality(alt) {
			l.logger.Debug("symbol-like repeat replaced",
				slog.Int64("token", selected.ID),
				slog.Int64("replacement", c.ID))
			return c, false
		}
	}
	return selected, true
}

// detectLoop reports whether appending candidate makes the latest
// n-gram (sizes 3 through 6) an exact copy of the n-gram immediately
// preceding it.
func (l *Loop) detectLoop(state *chunkState, candidate int64) bool {
	history := append(append([]int64(nil), state.generated...), candidate)
	for n := minLoopGram; n <= maxLoopGram; n++ {
		if len(history) < 2*n {
			continue
		}
		latest := history[len(history)-n:]
		previous := history[len(history)-2*n : len(history)-n]
		if gramsEqual(latest, previous) {
			return true
		}
	}
	return false
}

func gramsEqual(a, b []int64) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// symbolLike reports a very short token with a low alphanumeric ratio,
// the kind that tends to get stuck repeating.
func symbolLike(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}
	return len([]rune(trimmed)) <= 2 && tokenizer.AlphanumericRatio(trimmed) < 0.5
}
