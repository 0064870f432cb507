// Package config loads key/value configuration files.
//
// A config file is a YAML or JSON document whose top level is a mapping. Only keys written
// entirely in upper case are considered configuration; anything else in the file (helper
// values, anchors used for YAML aliases, comments-as-keys) is ignored. For example:
//
//	SECRET_KEY: hunter2
//	DATABASE_URI: sqlite://app.db
//	MAIL: {SERVER: localhost, PORT: 25}
//	scratch: not returned
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/henryotoole/hutils/misc"
)

// Load reads the config file at path and returns its upper-case keys and their values.
// Nested mappings are returned as map[string]interface{}.
func Load(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	return Parse(data, strings.ToLower(filepath.Ext(path)))
}

// Parse decodes config data. The format is chosen by ext (".json", ".yaml" or ".yml");
// any other value is treated as YAML.
func Parse(data []byte, ext string) (map[string]interface{}, error) {
	var doc map[string]interface{}
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("malformed JSON config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("malformed YAML config: %w", err)
		}
	}

	ret := make(map[string]interface{})
	for key, value := range doc {
		if IsUpper(key) {
			ret[key] = misc.StripUnicode(value)
		}
	}
	return ret, nil
}

// IsUpper reports whether s contains at least one cased letter and no lower-case letters.
// Digits and punctuation do not count either way, so "DB_2" is upper case and "_2" is not.
func IsUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			cased = true
		}
	}
	return cased
}
