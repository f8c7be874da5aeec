package types

// Version is the canonical project version.
// The CLI, the diagnostic archive format and the run-completed event share it.
const Version = "0.3.0"
