package datfile

import (
	"encoding/xml"
	"fmt"
	"io"
)

// logiqxDataFile is the root node of a Logiqx-style DAT (No-Intro, Redump,
// TOSEC, FinalBurn Neo all publish this shape). Field layout follows the
// teacher's internal/dat/fbneo.go DataFile/Header/Game/Rom structs nearly
// verbatim — that file already generalized FBNeo's dialect of the same
// schema, so this is the same generalization pushed one level further to
// cover every Logiqx producer rather than just one.
type logiqxDataFile struct {
	XMLName xml.Name     `xml:"datafile"`
	Header  logiqxHeader `xml:"header"`
	Games   []logiqxGame `xml:"game"`
}

type logiqxHeader struct {
	Name        string           `xml:"name"`
	Description string           `xml:"description"`
	Category    string           `xml:"category"`
	Version     string           `xml:"version"`
	Author      string           `xml:"author"`
	Homepage    string           `xml:"homepage"`
	URL         string           `xml:"url"`
	ClrMamePro  []logiqxClrMame  `xml:"clrmamepro"`
}

type logiqxClrMame struct {
	ForceNoDump string `xml:"forcenodump,attr,omitempty"`
}

type logiqxGame struct {
	Name        string     `xml:"name,attr"`
	IsBios      string     `xml:"isbios,attr,omitempty"`
	CloneOf     string     `xml:"cloneof,attr,omitempty"`
	RomOf       string     `xml:"romof,attr,omitempty"`
	Description string     `xml:"description"`
	Comment     string     `xml:"comment"`
	Year        string     `xml:"year"`
	Manufacturer string    `xml:"manufacturer"`
	Roms        []logiqxRom `xml:"rom"`
}

type logiqxRom struct {
	Name   string `xml:"name,attr"`
	Size   int64  `xml:"size,attr,omitempty"`
	CRC    string `xml:"crc,attr,omitempty"`
	MD5    string `xml:"md5,attr,omitempty"`
	SHA1   string `xml:"sha1,attr,omitempty"`
	Merge  string `xml:"merge,attr,omitempty"`
	Status string `xml:"status,attr,omitempty"`
}

// parseLogiqx decodes a Logiqx XML stream. decoder.Strict is disabled
// because No-Intro/Redump/TOSEC dats reference a DTD that the stdlib
// decoder otherwise rejects — the same relaxation the teacher applies in
// ParseFile for fbneo.dat and MAME's dat.
func parseLogiqx(r io.Reader) (*logiqxDataFile, error) {
	decoder := xml.NewDecoder(r)
	decoder.Strict = false

	var df logiqxDataFile
	if err := decoder.Decode(&df); err != nil {
		if se, ok := err.(*xml.SyntaxError); ok {
			return nil, &ParseError{Line: se.Line, Reason: se.Msg}
		}
		return nil, fmt.Errorf("decode logiqx dat: %w", err)
	}
	if len(df.Header.ClrMamePro) > 1 {
		// DuplicateClrmamepro is tolerated: first wins, per spec.md §4.2.
		df.Header.ClrMamePro = df.Header.ClrMamePro[:1]
	}
	return &df, nil
}
