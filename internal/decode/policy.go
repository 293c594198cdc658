package decode

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/skypro1111/whisper-onnx-service/internal/tokenizer"
)

// negInf marks a vocabulary id as unselectable for the current step.
var negInf = float32(math.Inf(-1))

// Candidate is one ranked vocabulary id with its adjusted score.
type Candidate struct {
	ID    int64
	Score float32
}

// PolicyConfig parameterizes the scoring adjustments applied to raw
// decoder logits before token selection. The numeric defaults are
// empirically tuned, not derived; treat them as policy, not law.
type PolicyConfig struct {
	RepetitionPenalty    float32
	RecentWindow         int
	TopK                 int
	QualityFilterSize    int
	QualityFilterCap     int
	InitialSamplingSteps int
	Temperature          float32
	MinContentTokens     int
	MaxTokens            int
}

// Validate checks the policy parameters
func (c PolicyConfig) Validate() error {
	if c.RepetitionPenalty < 1.0 {
		return fmt.Errorf("repetition penalty must be >= 1.0, got %v", c.RepetitionPenalty)
	}
	if c.RecentWindow <= 0 {
		return fmt.Errorf("recent window must be positive, got %d", c.RecentWindow)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("top-k must be positive, got %d", c.TopK)
	}
	if c.Temperature <= 0 {
		return fmt.Errorf("temperature must be positive, got %v", c.Temperature)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", c.MaxTokens)
	}
	return nil
}

// Policy adjusts and ranks decoder logits. It holds no per-chunk
// state; everything it reads (recent tokens, ban list) is passed in
// from the decode loop's chunk state.
type Policy struct {
	config PolicyConfig
	vocab  tokenizer.Decoder
	eot    int64
	rng    *rand.Rand
}

// NewPolicy builds a scorer over the given vocabulary. A nil rng gets
// a time-seeded source; tests pass a fixed seed instead.
func NewPolicy(config PolicyConfig, vocab tokenizer.Decoder, eot int64, rng *rand.Rand) (*Policy, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy config: %w", err)
	}
	if vocab == nil {
		return nil, fmt.Errorf("policy requires a vocabulary decoder")
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Policy{
		config: config,
		vocab:  vocab,
		eot:    eot,
		rng:    rng,
	}, nil
}

// Rank applies the adjustment sequence to a raw logits vector and
// returns the surviving candidates in descending score order. The
// logits slice is modified in place.
func (p *Policy) Rank(logits []float32, recent []int64, banned map[int64]struct{}) []Candidate {
	p.suppressSpecial(logits)
	p.penalizeRepeats(logits, recent)
	for id := range banned {
		if id >= 0 && int(id) < len(logits) {
			logits[id] = negInf
		}
	}

	width := p.config.TopK
	if p.config.QualityFilterSize > width {
		width = p.config.QualityFilterSize
	}
	candidates := topCandidates(logits, width)
	candidates = p.maskLowQuality(candidates)

	if len(candidates) > p.config.TopK {
		candidates = candidates[:p.config.TopK]
	}
	return candidates
}

// Select picks one candidate: greedy by default, temperature sampling
// during the initial steps or when the greedy choice decodes to
// low-quality text.
func (p *Policy) Select(candidates []Candidate, step int) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{ID: p.eot, Score: negInf}, false
	}

	if step < p.config.InitialSamplingSteps {
		return p.sample(candidates), true
	}

	best := candidates[0]
	if best.ID != p.eot && tokenizer.IsLowQuality(p.vocab.Decode([]int64{best.ID})) {
		return p.sample(candidates), true
	}
	return best, false
}

// suppressSpecial masks every id at or above end-of-transcript+1 so
// that only end-of-transcript itself, among special ids, can be chosen.
func (p *Policy) suppressSpecial(logits []float32) {
	for id := p.eot + 1; int(id) < len(logits); id++ {
		logits[id] = negInf
	}
}

// penalizeRepeats divides (or multiplies, for negative scores) the
// score of every id present in the recent-token window. Each id is
// penalized once regardless of how often it occurs in the window.
func (p *Policy) penalizeRepeats(logits []float32, recent []int64) {
	penalty := p.config.RepetitionPenalty
	if penalty <= 1.0 {
		return
	}
	seen := make(map[int64]struct{}, len(recent))
	for _, id := range recent {
		if id < 0 || int(id) >= len(logits) {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if logits[id] > 0 {
			logits[id] /= penalty
		} else {
			logits[id] *= penalty
		}
	}
}

// maskLowQuality drops up to QualityFilterCap high-ranking candidates
// whose decoded text is symbol-only, non-printable or empty.
func (p *Policy) maskLowQuality(candidates []Candidate) []Candidate {
	masked := 0
	kept := candidates[:0]
	for i, c := range candidates {
		if i < p.config.QualityFilterSize && masked < p.config.QualityFilterCap && c.ID != p.eot {
			if tokenizer.IsLowQuality(p.vocab.Decode([]int64{c.ID})) {
				masked++
				continue
			}
		}
		kept = append(kept, c)
	}
	return kept
}

// sample draws one candidate with softmax weights at the configured
// temperature.
func (p *Policy) sample(candidates []Candidate) Candidate {
	max := candidates[0].Score
	for _, c := range candidates {
		if c.Score > max {
			max = c.Score
		}
	}

	weights := make([]float64, len(candidates))
	var total float64
	for i, c := range candidates {
		if c.Score == negInf {
			continue
		}
		w := math.Exp(float64((c.Score - max) / p.config.Temperature))
		weights[i] = w
		total += w
	}
	if total == 0 {
		return candidates[0]
	}

	r := p.rng.Float64() * total
	for i, w := range weights {
		r -= w
		if r <= 0 {
			return candidates[i]
		}
	}
	return candidates[len(candidates)-1]
}

// topCandidates returns the k highest-scoring finite vocabulary ids.
func topCandidates(logits []float32, k int) []Candidate {
	candidates := make([]Candidate, 0, len(logits))
	for id, score := range logits {
		if score == negInf {
			continue
		}
		candidates = append(candidates, Candidate{ID: int64(id), Score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}
