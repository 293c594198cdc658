// Package decode implements the autoregressive decode loop that turns
// one chunk's encoder output into a stream of text fragments.
//
// Each chunk gets a fresh decode state: the growing token sequence
// starting with the prompt, the key/value cache swapped wholesale
// after every decoder call, a bounded recent-token window, and a
// per-chunk ban list. The token policy (scoring adjustments, hybrid
// greedy/sampled selection) lives alongside as a pure scorer; the
// loop adds the corrective guards on top: early end-of-transcript
// override, symbol-like repeat reselection, and repeating n-gram
// detection.
package decode
