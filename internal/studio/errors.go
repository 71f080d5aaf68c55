package studio

import "errors"

// Error taxonomy. Failures are wrapped around one of these sentinels so
// callers can classify with errors.Is without parsing messages.
var (
	// ErrRead marks durable-store read failures (cursor, transaction,
	// host-level close that survived a reconnect attempt).
	ErrRead = errors.New("vault read error")

	// ErrWrite marks durable-store write failures (quota, aborted
	// transaction). The store is left unmodified for the failed call.
	ErrWrite = errors.New("vault write error")

	// ErrDecode marks a malformed binary payload during reconstruction.
	ErrDecode = errors.New("decode error")

	// ErrConversion marks a failure to materialize a library asset back
	// into a binary file (all conversion strategies exhausted).
	ErrConversion = errors.New("conversion error")

	// ErrAnalysis marks an external tagging failure. It is contained
	// per staged file and never aborts sibling files.
	ErrAnalysis = errors.New("analysis error")

	// ErrImportFormat marks a malformed interchange file. The whole
	// import is rejected and the vault is untouched.
	ErrImportFormat = errors.New("invalid interchange format")

	// ErrGeneration marks a generation collaborator failure or an
	// empty result set.
	ErrGeneration = errors.New("generation error")
)
