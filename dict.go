package teng

import (
	"fmt"

	"gopkg.in/yaml.v2"
)

// Dictionary resolves #{key} lookups for a given language. Lookup never
// errors for a missing key; it reports the miss through its bool result,
// and the VM's dictLookup then logs a WARNING and falls back to the key
// itself so output still contains something legible.
type Dictionary interface {
	Lookup(lang, key string) (string, bool)
}

// staticDict is the built-in, file-backed Dictionary implementation: a
// two-level map loaded once from YAML (language -> key -> text), matching
// the config loader's format (see config.go). Safe for concurrent Lookup
// calls since it's never mutated after Load returns.
type staticDict struct {
	entries map[string]map[string]string
}

// NewStaticDictionary builds a Dictionary from an already-decoded
// language->key->text map, e.g. one produced by LoadDictionaryFile.
func NewStaticDictionary(entries map[string]map[string]string) Dictionary {
	return &staticDict{entries: entries}
}

func (d *staticDict) Lookup(lang, key string) (string, bool) {
	byKey, ok := d.entries[lang]
	if !ok {
		return "", false
	}
	text, ok := byKey[key]
	return text, ok
}

// LoadDictionaryFile reads a dictionary YAML document of the shape
//
//	en:
//	  greeting: "Hello"
//	cs:
//	  greeting: "Ahoj"
//
// and returns a ready-to-use Dictionary. Structured the same way
// config.go loads its own YAML so both follow one convention in this
// codebase.
func LoadDictionaryFile(data []byte) (Dictionary, error) {
	var raw map[string]map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing dictionary YAML: %w", err)
	}
	return NewStaticDictionary(raw), nil
}

// dictLookup performs a #{key} lookup against dict for lang, logging a
// WARNING and falling back to key itself when dict is nil or the key is
// absent, per the PRINT_RAW, never-fail contract dictionary references
// have in templates (spec §4.*: a missing translation must not abort
// rendering).
func dictLookup(dict Dictionary, diag *Diagnostics, pos Position, lang, key string) string {
	if dict == nil {
		diag.Warningf(pos, "Dictionary lookup for key %q but no dictionary is configured", key)
		return key
	}
	text, ok := dict.Lookup(lang, key)
	if !ok {
		diag.Warningf(pos, "Dictionary lookup failed for language %q, key %q", lang, key)
		return key
	}
	return text
}
