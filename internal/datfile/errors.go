package datfile

import (
	"errors"
	"fmt"
)

// Sentinel error kinds (spec.md §4.2): ParseError carries line/reason,
// the rest are plain sentinels compared with errors.Is.
var (
	ErrUnsupportedIRDVersion = errors.New("datfile: unsupported ird version")
	ErrDuplicateClrMamePro   = errors.New("datfile: duplicate clrmamepro header")
	ErrUnparseableName       = errors.New("datfile: unparseable game name")
)

// ParseError wraps a malformed-XML failure with the best line number the
// decoder could report.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("datfile: parse error at line %d: %s", e.Line, e.Reason)
}
