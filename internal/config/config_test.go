package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFs(afero.NewMemMapFs(), "/etc/mozuku/mozuku.toml")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadFs(afero.NewMemMapFs(), "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/c/mozuku.toml", []byte(`
model = "large"
debug = true

[analysis]
grammar_check = false
min_japanese_ratio = 0.8
warning_min_severity = 1

[analysis.rules]
comma_limit_max = 5
ra_dropping = false
`), 0o644))

	cfg, err := LoadFs(fs, "/c/mozuku.toml")
	require.NoError(t, err)

	assert.Equal(t, "large", cfg.Model)
	assert.True(t, cfg.Debug)
	assert.False(t, cfg.Analysis.GrammarCheck)
	assert.Equal(t, 0.8, cfg.Analysis.MinJapaneseRatio)
	assert.Equal(t, 1, cfg.Analysis.WarningMinSeverity)
	assert.Equal(t, 5, cfg.Analysis.Rules.CommaLimitMax)
	assert.False(t, cfg.Analysis.Rules.RaDropping)

	// Untouched settings keep their defaults.
	assert.True(t, cfg.Analysis.Rules.CommaLimit)
	assert.Equal(t, 1, cfg.Analysis.Rules.AdversativeGaMax)
}

func TestLoadMalformedFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/c/mozuku.toml", []byte("model = [unclosed"), 0o644))

	_, err := LoadFs(fs, "/c/mozuku.toml")
	assert.Error(t, err, "a present but unparseable file must be reported")
}

func TestMergeOverrides(t *testing.T) {
	cfg := Default()

	err := cfg.Merge(map[string]any{
		"model": "large",
		"analysis": map[string]any{
			"minJapaneseRatio": 0.9,
			"rules": map[string]any{
				"commaLimit": false,
			},
		},
		"unknownKey": "ignored",
	})
	require.NoError(t, err)

	assert.Equal(t, "large", cfg.Model)
	assert.Equal(t, 0.9, cfg.Analysis.MinJapaneseRatio)
	assert.False(t, cfg.Analysis.Rules.CommaLimit)
	assert.True(t, cfg.Analysis.Rules.RaDropping, "untouched settings survive the merge")
}

func TestInitializationOptionsWireKeys(t *testing.T) {
	cfg := Default()
	cfg.Model = "small"
	cfg.Analysis.Rules.CommaLimitMax = 4

	opts, err := cfg.InitializationOptions()
	require.NoError(t, err)

	assert.Equal(t, "small", opts["model"])
	assert.Equal(t, false, opts["debug"])

	analysis, ok := opts["analysis"].(map[string]any)
	require.True(t, ok, "analysis settings nest under the server's key")
	assert.Equal(t, true, analysis["grammarCheck"])
	assert.Equal(t, 0.1, analysis["minJapaneseRatio"])
	assert.Equal(t, 2, analysis["warningMinSeverity"])

	rules, ok := analysis["rules"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 4, rules["commaLimitMax"])
	assert.Equal(t, true, rules["raDropping"])
	assert.Equal(t, 1, rules["duplicateParticleSurfaceMaxRepeat"])
}
