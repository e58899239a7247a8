package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into verification outcomes or coded
// domain errors:
// - ErrAlreadyUsed: a single-use value (proof commitment) was already consumed
// - ErrInvalidState: a store was asked to do something its configuration forbids
// - ErrUnavailable: a backing store could not be reached
//
// For malformed or out-of-domain input use pkg/domain-errors directly.
var (
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
