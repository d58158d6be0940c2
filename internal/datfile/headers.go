package datfile

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xxxsen/romvault/internal/model"
)

//go:embed templates/*.header.json
var embeddedHeaderTemplates embed.FS

// headerTemplate is the on-disk/embedded JSON shape a Header definition is
// authored in — a flat, hand-editable file per System, matching the
// spec.md §4.2 "loaded from a known directory or fall back to embedded
// templates keyed by System name" requirement.
type headerTemplate struct {
	System    string              `json:"system"`
	Name      string              `json:"name"`
	Version   string              `json:"version"`
	Operation string              `json:"operation"`
	Rules     []headerTemplateRule `json:"rules"`
}

type headerTemplateRule struct {
	StartByte int64  `json:"start_byte"`
	Length    int64  `json:"length"`
	HexPattern string `json:"hex_pattern"`
}

// HeaderLoader resolves a System's Header definition from an optional
// override directory first, then the embedded templates, returning
// ErrNotFound-shaped (nil, nil) when the System simply has no header.
type HeaderLoader struct {
	OverrideDir string
}

// Load returns the Header definition for systemName, or nil if none is
// known anywhere. "On conflict between provided and embedded, provided
// wins" (spec.md §4.2) is implemented by checking OverrideDir first and
// returning immediately on a hit.
func (l HeaderLoader) Load(systemName string) (*model.Header, error) {
	if l.OverrideDir != "" {
		tmpl, err := loadOverrideTemplate(l.OverrideDir, systemName)
		if err != nil {
			return nil, err
		}
		if tmpl != nil {
			return templateToHeader(*tmpl), nil
		}
	}

	entries, err := embeddedHeaderTemplates.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("datfile: read embedded header templates: %w", err)
	}
	for _, e := range entries {
		raw, err := embeddedHeaderTemplates.ReadFile(filepath.Join("templates", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("datfile: read embedded header %s: %w", e.Name(), err)
		}
		var tmpl headerTemplate
		if err := json.Unmarshal(raw, &tmpl); err != nil {
			return nil, fmt.Errorf("datfile: parse embedded header %s: %w", e.Name(), err)
		}
		if strings.EqualFold(tmpl.System, systemName) {
			return templateToHeader(tmpl), nil
		}
	}
	return nil, nil
}

func loadOverrideTemplate(dir, systemName string) (*headerTemplate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("datfile: read header override dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".header.json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("datfile: read header override %s: %w", e.Name(), err)
		}
		var tmpl headerTemplate
		if err := json.Unmarshal(raw, &tmpl); err != nil {
			return nil, fmt.Errorf("datfile: parse header override %s: %w", e.Name(), err)
		}
		if strings.EqualFold(tmpl.System, systemName) {
			return &tmpl, nil
		}
	}
	return nil, nil
}

func templateToHeader(tmpl headerTemplate) *model.Header {
	h := &model.Header{
		Name:      tmpl.Name,
		Version:   tmpl.Version,
		Operation: model.HeaderOperation(tmpl.Operation),
	}
	for _, r := range tmpl.Rules {
		h.Rules = append(h.Rules, model.HeaderRule{
			StartByte:  r.StartByte,
			Length:     r.Length,
			HexPattern: r.HexPattern,
		})
	}
	return h
}
