// Package transcribe drives full-file transcription: the pipeline
// splits audio into fixed-size chunks, gates silence, extracts the
// log-mel tensor, and runs one encode+decode pass per chunk; the
// manager wraps pipeline runs in observable jobs with fragment
// streaming, progress reporting, cancellation and cleanup.
package transcribe
