package store

import "errors"

// Error kinds per spec.md §4.1/§7. Callers compare with errors.Is; every
// DAO method wraps the underlying driver error with fmt.Errorf("...: %w")
// so the kind survives while still carrying the operation context.
var (
	ErrNotFound  = errors.New("store: not found")
	ErrConflict  = errors.New("store: conflict")
	ErrMigration = errors.New("store: migration failed")
	ErrIO        = errors.New("store: io error")
	ErrFatal     = errors.New("store: fatal invariant violation")
)
