package tokenizer

import (
	"testing"
)

func TestVocabDecode(t *testing.T) {
	// Byte-level tokens: Ġ (U+0120) encodes a leading space
	vocab := NewVocab(map[string]int64{
		"Hello":   1,
		"Ġworld":  2,
		"Ġthere":  3,
		"!":       4,
		"ĠÑĤÐ°Ðº": 5, // " так" in the byte-level encoding
	})

	tests := []struct {
		name string
		ids  []int64
		want string
	}{
		{name: "single token", ids: []int64{1}, want: "Hello"},
		{name: "space prefix", ids: []int64{2}, want: " world"},
		{name: "sentence", ids: []int64{1, 2, 4}, want: "Hello world!"},
		{name: "multibyte", ids: []int64{5}, want: " так"},
		{name: "unknown ids contribute nothing", ids: []int64{1, 999, 4}, want: "Hello!"},
		{name: "empty input", ids: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := vocab.Decode(tt.ids); got != tt.want {
				t.Errorf("Decode(%v) = %q, want %q", tt.ids, got, tt.want)
			}
		})
	}
}

func TestLanguageID(t *testing.T) {
	tm := DefaultTokenMap()

	tests := []struct {
		code    string
		want    int64
		wantErr bool
	}{
		{code: "en", want: 50259},
		{code: "zh", want: 50260},
		{code: "uk", want: 50280},
		{code: "su", want: 50357},
		{code: "xx", wantErr: true},
		{code: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, err := tm.LanguageID(tt.code)
			if tt.wantErr {
				if err == nil {
					t.Errorf("LanguageID(%q) expected error, got id %d", tt.code, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("LanguageID(%q): %v", tt.code, err)
			}
			if got != tt.want {
				t.Errorf("LanguageID(%q) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}

func TestIsSpecial(t *testing.T) {
	tm := DefaultTokenMap()

	if tm.IsSpecial(100) {
		t.Error("content token flagged special")
	}
	if !tm.IsSpecial(tm.EndOfTranscript) {
		t.Error("end-of-transcript not flagged special")
	}
	if !tm.IsSpecial(tm.StartOfTranscript) {
		t.Error("start-of-transcript not flagged special")
	}
}

func TestIsLowQuality(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{name: "word", text: "hello", want: false},
		{name: "word with space", text: " world", want: false},
		{name: "digits", text: "42", want: false},
		{name: "empty", text: "", want: true},
		{name: "whitespace only", text: "   ", want: true},
		{name: "symbols only", text: "!!!", want: true},
		{name: "mixed keeps quality", text: "it's", want: false},
		{name: "non-printable", text: "a\x00b", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsLowQuality(tt.text); got != tt.want {
				t.Errorf("IsLowQuality(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestAlphanumericRatio(t *testing.T) {
	tests := []struct {
		text string
		want float64
	}{
		{text: "abc", want: 1.0},
		{text: "a-b", want: 2.0 / 3.0},
		{text: "...", want: 0},
		{text: "", want: 0},
		{text: "a b", want: 1.0}, // spaces excluded from the ratio
	}

	for _, tt := range tests {
		if got := AlphanumericRatio(tt.text); got != tt.want {
			t.Errorf("AlphanumericRatio(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
