package mover

import "errors"

// ErrVerifyMismatch is returned when a cross-device copy's SHA1 does not
// match the SHA1 of the source file it was copied from. The destination
// is compared with the source file only, not with the Rom's declared
// hash.
var ErrVerifyMismatch = errors.New("mover: destination digest mismatch after copy")
