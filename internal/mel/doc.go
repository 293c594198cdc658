// Package mel implements the log-mel spectrogram front end for the
// speech encoder. It reproduces the reference normalization exactly:
// reflect padding, periodic Hann windowing, exact-length DFT, Slaney
// mel filterbank projection, log scaling, and dynamic range clamping.
package mel
