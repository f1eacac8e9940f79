package main

import "time"

// Default configuration constants for cmd/smelly.
const (
	// DefaultServeAddr is where "smelly serve" listens when no --addr is
	// given.
	DefaultServeAddr = "localhost:7733"

	// DefaultRemoteTimeout bounds a whole "scan --server" run.
	DefaultRemoteTimeout = 5 * time.Minute

	// DefaultMessageWidth truncates messages in list output.
	DefaultMessageWidth = 80
)

// Exit codes.
const (
	exitOK       = 0
	exitFindings = 1 // ERROR findings reported, or a runtime failure
	exitUsage    = 2 // bad flags or configuration
)
