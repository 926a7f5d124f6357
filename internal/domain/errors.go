package domain

import "errors"

var (
	// ErrNotFound indicates the requested market or record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a duplicate insert. Ingestion treats it as
	// success: the first row wins and is never overwritten.
	ErrAlreadyExists = errors.New("already exists")
	// ErrChainUnavailable indicates the RPC endpoint stayed unreachable
	// after all retries; the calling loop should skip the current cycle.
	ErrChainUnavailable = errors.New("chain unavailable")
	// ErrTxReverted indicates a submitted transaction was mined but
	// reverted. Usually benign: another actor beat us to the transition.
	ErrTxReverted = errors.New("transaction reverted")
	// ErrStoreUnavailable indicates the datastore stayed unreachable after
	// all retries; the record is dropped for this cycle and re-attempted on
	// the next ingestion pass.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrNoMetadata indicates the content hash could not be resolved.
	ErrNoMetadata = errors.New("no metadata")
)
