package tokenizer

import "fmt"

// TokenMap holds the special-token ids of the vocabulary. It is loaded
// once at engine initialization and read-only thereafter.
type TokenMap struct {
	StartOfTranscript int64
	EndOfTranscript   int64
	Transcribe        int64
	Translate         int64
	NoTimestamps      int64

	// languageBase is the id of the first language token; language ids
	// follow in the order of languageCodes
	languageBase int64
}

// languageCodes lists the language tokens in vocabulary order, starting
// at languageBase
var languageCodes = []string{
	"en", "zh", "de", "es", "ru", "ko", "fr", "ja", "pt", "tr",
	"pl", "ca", "nl", "ar", "sv", "it", "id", "hi", "fi", "vi",
	"he", "uk", "el", "ms", "cs", "ro", "da", "hu", "ta", "no",
	"th", "ur", "hr", "bg", "lt", "la", "mi", "ml", "cy", "sk",
	"te", "fa", "lv", "bn", "sr", "az", "sl", "kn", "et", "mk",
	"br", "eu", "is", "hy", "ne", "mn", "bs", "kk", "sq", "sw",
	"gl", "mr", "pa", "si", "km", "sn", "yo", "so", "af", "oc",
	"ka", "be", "tg", "sd", "gu", "am", "yi", "lo", "uz", "fo",
	"ht", "ps", "tk", "nn", "mt", "sa", "lb", "my", "bo", "tl",
	"mg", "as", "tt", "haw", "ln", "ha", "ba", "jw", "su",
}

// DefaultTokenMap returns the special-token layout of the multilingual
// reference vocabulary
func DefaultTokenMap() *TokenMap {
	return &TokenMap{
		StartOfTranscript: 50258,
		EndOfTranscript:   50257,
		Transcribe:        50359,
		Translate:         50358,
		NoTimestamps:      50363,
		languageBase:      50259,
	}
}

// LanguageID returns the token id for a language code
func (t *TokenMap) LanguageID(code string) (int64, error) {
	for i, c := range languageCodes {
		if c == code {
			return t.languageBase + int64(i), nil
		}
	}
	return 0, fmt.Errorf("unknown language code %q", code)
}

// IsSpecial reports whether an id belongs to the special-token range
// (end-of-transcript and everything above it)
func (t *TokenMap) IsSpecial(id int64) bool {
	return id >= t.EndOfTranscript
}
