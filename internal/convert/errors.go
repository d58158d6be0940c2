package convert

import "errors"

var (
	// ErrIncompatibleFormat is returned when the requested target format
	// is not in the same equivalence class as the source, spec.md §4.8
	// "between equivalence classes — {raw <-> 7Z/ZIP}, {CUE/BIN <-> CHD},
	// {ISO <-> CHD/CSO/RVZ/ZSO}".
	ErrIncompatibleFormat = errors.New("convert: source and target are not in the same equivalence class")

	// ErrNoOpConversion is returned when the source is already in the
	// target format and recompression was not requested, spec.md §4.8
	// "Recompression (-r) forces a round-trip even when the source is
	// already in the target format".
	ErrNoOpConversion = errors.New("convert: source already in target format")

	// ErrVerifyMismatch is returned when a converted output's digest does
	// not match the Rom's declared hash after an explicit -c verify.
	ErrVerifyMismatch = errors.New("convert: output digest mismatch after conversion")

	// ErrStage is returned when staging or encoding a romfile into its
	// scratch scope fails for reasons outside the external tool adapters
	// (native zip recompression, filesystem setup).
	ErrStage = errors.New("convert: stage failed")
)
