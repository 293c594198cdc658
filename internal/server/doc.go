// Package server implements the read-only HTTP monitoring API: health,
// job listing and detail, sanitized configuration, service statistics
// and the Prometheus metrics endpoint.
package server
