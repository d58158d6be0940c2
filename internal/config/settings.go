package config

import (
	"strconv"
	"strings"
)

// SettingKey enumerates the closed set of catalog-level settings (spec.md
// §3 "Setting", §6 "Settings keys are a closed enumerated set"). Keeping
// this as a closed Go type (rather than bare strings) means a typo in a
// CLI flag or a migration is caught at compile time, not at runtime.
type SettingKey string

const (
	SettingRomDirectory        SettingKey = "ROM_DIRECTORY"
	SettingTmpDirectory        SettingKey = "TMP_DIRECTORY"
	SettingRegionsOne          SettingKey = "REGIONS_ONE"
	SettingRegionsOneStrict    SettingKey = "REGIONS_ONE_STRICT"
	SettingLanguages           SettingKey = "LANGUAGES"
	SettingPreferParents       SettingKey = "PREFER_PARENTS"
	SettingPreferRegions       SettingKey = "PREFER_REGIONS"
	SettingPreferVersions      SettingKey = "PREFER_VERSIONS"
	SettingPreferFlags         SettingKey = "PREFER_FLAGS"
	SettingGroupSubsystems     SettingKey = "GROUP_SUBSYSTEMS"
	SettingSubfolderScheme     SettingKey = "SUBFOLDER_SCHEME"
	SettingOneSubfolderScheme  SettingKey = "ONE_SUBFOLDER_SCHEME"
	SettingChdParents          SettingKey = "CHD_PARENTS"
	SettingDiscardFlags        SettingKey = "DISCARD_FLAGS"
	SettingUnattended          SettingKey = "UNATTENDED"
	SettingToolConcurrency     SettingKey = "TOOL_CONCURRENCY"
	SettingHashChunkKB         SettingKey = "HASH_CHUNK_KB"
)

// ValueKind is the runtime type a setting's stored string decodes to.
type ValueKind int

const (
	KindString ValueKind = iota
	KindBool
	KindInt
	KindEnum
	KindOrderedList // pipe-separated, order is significant (preference lists)
)

// PreferRegionsMode is the PREFER_REGIONS enum.
type PreferRegionsMode string

const (
	PreferRegionsNone   PreferRegionsMode = "none"
	PreferRegionsBroad  PreferRegionsMode = "broad"
	PreferRegionsNarrow PreferRegionsMode = "narrow"
)

// PreferVersionsMode is the PREFER_VERSIONS enum.
type PreferVersionsMode string

const (
	PreferVersionsNone PreferVersionsMode = "none"
	PreferVersionsNew  PreferVersionsMode = "new"
	PreferVersionsOld  PreferVersionsMode = "old"
)

// SubfolderScheme is the SUBFOLDER_SCHEME / ONE_SUBFOLDER_SCHEME enum.
type SubfolderScheme string

const (
	SubfolderNone  SubfolderScheme = "none"
	SubfolderAlpha SubfolderScheme = "alpha"
)

// settingSpec describes one key's kind and default, used both for
// validation (`config -s`) and for rendering `config -l`.
type settingSpec struct {
	Kind    ValueKind
	Default string
}

var settingSpecs = map[SettingKey]settingSpec{
	SettingRomDirectory:       {KindString, ""},
	SettingTmpDirectory:       {KindString, ""},
	SettingRegionsOne:         {KindOrderedList, ""},
	SettingRegionsOneStrict:   {KindBool, "false"},
	SettingLanguages:          {KindOrderedList, ""},
	SettingPreferParents:      {KindBool, "true"},
	SettingPreferRegions:      {KindEnum, string(PreferRegionsNone)},
	SettingPreferVersions:     {KindEnum, string(PreferVersionsNone)},
	SettingPreferFlags:        {KindOrderedList, ""},
	SettingGroupSubsystems:    {KindBool, "false"},
	SettingSubfolderScheme:    {KindEnum, string(SubfolderNone)},
	SettingOneSubfolderScheme: {KindEnum, string(SubfolderNone)},
	SettingChdParents:         {KindBool, "false"},
	SettingDiscardFlags:       {KindOrderedList, ""},
	SettingUnattended:         {KindBool, "false"},
	SettingToolConcurrency:    {KindInt, "0"}, // 0 == CPU count
	SettingHashChunkKB:        {KindInt, "256"},
}

// AllSettingKeys returns every known key, for `config -l`.
func AllSettingKeys() []SettingKey {
	keys := make([]SettingKey, 0, len(settingSpecs))
	for k := range settingSpecs {
		keys = append(keys, k)
	}
	return keys
}

// IsKnownSetting reports whether key is part of the closed enumeration.
func IsKnownSetting(key string) bool {
	_, ok := settingSpecs[SettingKey(key)]
	return ok
}

// DefaultValue returns the default stored value for key.
func DefaultValue(key SettingKey) string {
	return settingSpecs[key].Default
}

// EncodeList joins an ordered preference list using the storage
// separator (spec.md §6 "list-valued settings are |-separated").
func EncodeList(values []string) string {
	return strings.Join(values, "|")
}

// DecodeList splits a stored list-valued setting back into an ordered
// slice, dropping empty segments.
func DecodeList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// DecodeBool parses a stored boolean setting, defaulting to false on an
// unparseable value rather than erroring — settings are user-editable text.
func DecodeBool(raw string) bool {
	v := strings.ToLower(strings.TrimSpace(raw))
	return v == "true" || v == "1" || v == "yes"
}

// DecodeInt parses a stored integer setting, falling back to def on an
// unparseable value.
func DecodeInt(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return n
}
