package convert

import "strings"

// Format is a file extension the Converter/Exporter understands, always
// lowercase and without its leading dot.
type Format string

const (
	FormatZip Format = "zip"
	Format7z  Format = "7z"
	FormatRaw Format = "raw" // any single uncompressed file, extension-agnostic

	FormatCue Format = "cue"
	FormatBin Format = "bin"
	FormatCHD Format = "chd"

	FormatISO  Format = "iso"
	FormatCSO  Format = "cso"
	FormatZSO  Format = "zso"
	FormatRVZ  Format = "rvz"
	FormatWBFS Format = "wbfs"
	FormatNSZ  Format = "nsz"
)

// equivalenceClasses groups formats spec.md §4.8 allows converting
// between; a target not sharing a class with the source is rejected.
var equivalenceClasses = [][]Format{
	{FormatRaw, FormatZip, Format7z},
	{FormatCue, FormatBin, FormatCHD},
	{FormatISO, FormatCHD, FormatCSO, FormatRVZ, FormatZSO, FormatWBFS, FormatNSZ},
}

// FormatFromExt maps a file extension (with or without a leading dot) to
// its Format, treating anything unrecognized as FormatRaw — an
// uncompressed ROM with no special container semantics.
func FormatFromExt(ext string) Format {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	switch Format(ext) {
	case FormatZip, Format7z, FormatCue, FormatBin, FormatCHD, FormatISO, FormatCSO, FormatZSO, FormatRVZ, FormatWBFS, FormatNSZ:
		return Format(ext)
	default:
		return FormatRaw
	}
}

// SameClass reports whether from and to share an equivalence class.
func SameClass(from, to Format) bool {
	for _, class := range equivalenceClasses {
		if containsFormat(class, from) && containsFormat(class, to) {
			return true
		}
	}
	return false
}

func containsFormat(class []Format, f Format) bool {
	for _, c := range class {
		if c == f {
			return true
		}
	}
	return false
}

// Lossy reports whether a format loses information relative to the
// original raw bytes, spec.md §8 "lossy classes are marked and excluded
// from [parity]" and §4.8 "Supports lossy outputs (WBFS, NSZ, ISO via
// bchunk)".
func Lossy(f Format) bool {
	switch f {
	case FormatWBFS, FormatNSZ:
		return true
	default:
		return false
	}
}
