package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/launchdarkly/go-test-helpers/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlConfig = `
SECRET_KEY: hunter2
PORT: 5000
DEBUG: false
MAIL:
  SERVER: localhost
  port: 25
lower: ignored
Mixed: ignored
_2: ignored
`

func TestLoadYAMLKeepsOnlyUpperCaseKeys(t *testing.T) {
	helpers.WithTempFileData([]byte(yamlConfig), func(path string) {
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{
			"SECRET_KEY": "hunter2",
			"PORT":       5000,
			"DEBUG":      false,
			"MAIL":       map[string]interface{}{"SERVER": "localhost", "port": 25},
		}, cfg)
	})
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"API_URL": "http://x", "other": 1}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"API_URL": "http://x"}, cfg)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse([]byte(`{"A": `), ".json")
	assert.Error(t, err)
	_, err = Parse([]byte("A: [unterminated"), ".yaml")
	assert.Error(t, err)
}

func TestParseEmptyDocument(t *testing.T) {
	cfg, err := Parse(nil, ".yaml")
	require.NoError(t, err)
	assert.Empty(t, cfg)
}

func TestIsUpper(t *testing.T) {
	for s, expected := range map[string]bool{
		"ABC":   true,
		"DB_2":  true,
		"ÉTÉ":   true,
		"Abc":   false,
		"abc":   false,
		"_2":    false,
		"":      false,
		"A b":   false,
		"X-Y Z": true,
	} {
		assert.Equal(t, expected, IsUpper(s), "IsUpper(%q)", s)
	}
}
