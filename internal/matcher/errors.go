package matcher

import "errors"

// Error kinds per spec.md §4.5.
var (
	ErrNoCandidate    = errors.New("matcher: no candidate rom")
	ErrAmbiguous      = errors.New("matcher: ambiguous match")
	ErrContainerError = errors.New("matcher: container error")
)
