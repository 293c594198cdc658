// Package tokenizer provides vocabulary loading and token-to-text decoding
// for the speech decoder, along with the special-token map (start, end,
// language, task and no-timestamps ids) used to build decoder prompts.
package tokenizer
