package main

// Exit codes
const (
	ExitSuccess       = 0 // Success
	ExitError         = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError   = 2 // Configuration error (missing config, invalid paths, index not found)
	ExitDataError     = 3 // Data error (malformed input, validation failure)
	ExitAPIError      = 4 // PubChem unreachable, rate limited or failing
	ExitModelNotFound = 5 // word2vec model missing or unreadable
	ExitIndexStale    = 6 // spec2vec index is stale
)
