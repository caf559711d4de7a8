// Package server runs the update distribution HTTP server.
// It wires the file-backed release repository and the resolution
// service into the HTTP handler and manages graceful shutdown.
package server
