// Package client implements the self-update workflow for installed
// applications: it detects the local version, asks the update server for
// a decision, downloads the latest artifact, verifies it against the
// recorded digest, and swaps the executable in place.
package client
