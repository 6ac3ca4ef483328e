// Package middleware provides HTTP middleware for the compilation
// service: W3C access logging, Prometheus request metrics, and gzip
// compression for JSON responses. Artifact downloads bypass
// compression since the media is already encoded.
package middleware
