package tokenizer

import (
	"encoding/json"
	"fmt"
	"os"
)

// Decoder converts accepted token ids into user-visible text. Unknown
// ids must decode to an empty string, never an error: the decode loop
// probes candidate tokens it may ultimately reject.
type Decoder interface {
	Decode(ids []int64) string
}

// Vocab is a byte-level BPE vocabulary loaded from a JSON token table.
// Token strings use the byte-to-unicode encoding of the reference
// tokenizer; Decode reverses it.
type Vocab struct {
	byID        map[int64]string
	byteDecoder map[rune]byte
}

// NewVocabFromFile loads a {"token": id} JSON table
func NewVocabFromFile(path string) (*Vocab, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary file %s: %w", path, err)
	}

	var table map[string]int64
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary file %s: %w", path, err)
	}

	return NewVocab(table), nil
}

// NewVocab builds a vocabulary from a token-to-id table
func NewVocab(table map[string]int64) *Vocab {
	v := &Vocab{
		byID:        make(map[int64]string, len(table)),
		byteDecoder: buildByteDecoder(),
	}
	for token, id := range table {
		v.byID[id] = token
	}
	return v
}

// Decode converts token ids into text. Ids missing from the table
// contribute nothing.
func (v *Vocab) Decode(ids []int64) string {
	var encoded []rune
	for _, id := range ids {
		token, ok := v.byID[id]
		if !ok {
			continue
		}
		encoded = append(encoded, []rune(token)...)
	}

	// Reverse the byte-to-unicode mapping
	bytes := make([]byte, 0, len(encoded))
	for _, r := range encoded {
		if b, ok := v.byteDecoder[r]; ok {
			bytes = append(bytes, b)
		} else {
			bytes = append(bytes, []byte(string(r))...)
		}
	}

	return string(bytes)
}

// buildByteDecoder reconstructs the reference byte-level BPE mapping:
// printable latin-1 bytes map to themselves, the rest are shifted into
// unused code points starting at 256
func buildByteDecoder() map[rune]byte {
	decoder := make(map[rune]byte, 256)

	isDirect := func(b int) bool {
		return (b >= '!' && b <= '~') || (b >= 0xA1 && b <= 0xAC) || (b >= 0xAE && b <= 0xFF)
	}

	shift := 0
	for b := 0; b < 256; b++ {
		if isDirect(b) {
			decoder[rune(b)] = byte(b)
		} else {
			decoder[rune(256+shift)] = byte(b)
			shift++
		}
	}

	return decoder
}
