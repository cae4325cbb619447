// Package config loads and watches the MoZuku client configuration.
//
// Configuration lives in a single TOML file. A missing file is not an
// error; defaults apply. The loaded configuration translates into the
// initializationOptions payload sent during the LSP handshake, using the
// camelCase key names the server expects.
package config

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

// DefaultFileName is the configuration file looked up under the user
// config directory.
const DefaultFileName = "mozuku.toml"

// Rules tunes the individual writing analysis rules.
type Rules struct {
	CommaLimit                      bool `toml:"comma_limit" mapstructure:"commaLimit"`
	CommaLimitMax                   int  `toml:"comma_limit_max" mapstructure:"commaLimitMax"`
	AdversativeGa                   bool `toml:"adversative_ga" mapstructure:"adversativeGa"`
	AdversativeGaMax                int  `toml:"adversative_ga_max" mapstructure:"adversativeGaMax"`
	DuplicateParticleSurface        bool `toml:"duplicate_particle_surface" mapstructure:"duplicateParticleSurface"`
	DuplicateParticleSurfaceMaxRpt  int  `toml:"duplicate_particle_surface_max_repeat" mapstructure:"duplicateParticleSurfaceMaxRepeat"`
	AdjacentParticles               bool `toml:"adjacent_particles" mapstructure:"adjacentParticles"`
	AdjacentParticlesMaxRepeat      int  `toml:"adjacent_particles_max_repeat" mapstructure:"adjacentParticlesMaxRepeat"`
	ConjunctionRepeat               bool `toml:"conjunction_repeat" mapstructure:"conjunctionRepeat"`
	ConjunctionRepeatMax            int  `toml:"conjunction_repeat_max" mapstructure:"conjunctionRepeatMax"`
	RaDropping                      bool `toml:"ra_dropping" mapstructure:"raDropping"`
}

// Analysis configures the server's grammar analysis pass.
// WarningMinSeverity uses LSP diagnostic severity numbers (1 error, 2
// warning, 3 information, 4 hint).
type Analysis struct {
	GrammarCheck       bool    `toml:"grammar_check" mapstructure:"grammarCheck"`
	MinJapaneseRatio   float64 `toml:"min_japanese_ratio" mapstructure:"minJapaneseRatio"`
	WarningMinSeverity int     `toml:"warning_min_severity" mapstructure:"warningMinSeverity"`
	Rules              Rules   `toml:"rules" mapstructure:"rules"`
}

// Config is the full client configuration.
type Config struct {
	// Model selects the morphological analysis model the server loads.
	// Empty means the server default.
	Model string `toml:"model" mapstructure:"model"`

	// Debug launches the server with diagnostics enabled.
	Debug bool `toml:"debug" mapstructure:"debug"`

	Analysis Analysis `toml:"analysis" mapstructure:"analysis"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Analysis: Analysis{
			GrammarCheck:       true,
			MinJapaneseRatio:   0.1,
			WarningMinSeverity: 2,
			Rules: Rules{
				CommaLimit:                     true,
				CommaLimitMax:                  3,
				AdversativeGa:                  true,
				AdversativeGaMax:               1,
				DuplicateParticleSurface:       true,
				DuplicateParticleSurfaceMaxRpt: 1,
				AdjacentParticles:              true,
				AdjacentParticlesMaxRepeat:     1,
				ConjunctionRepeat:              true,
				ConjunctionRepeatMax:           1,
				RaDropping:                     true,
			},
		},
	}
}

// DefaultPath is the conventional config file location, or empty when the
// user config directory cannot be determined.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "mozuku", DefaultFileName)
}

// Load reads the configuration at path. A missing file yields the defaults
// with no error. A present but unparseable file is an error.
func Load(path string) (Config, error) {
	return LoadFs(afero.NewOsFs(), path)
}

// LoadFs is Load over an explicit filesystem.
func LoadFs(fs afero.Fs, path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.WithMessage(err, "reading config file")
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Default(), errors.WithMessagef(err, "parsing %s", path)
	}
	return cfg, nil
}

// Merge applies loose overrides keyed like the wire payload (camelCase,
// nested maps) on top of the configuration. Unknown keys are ignored.
func (c *Config) Merge(overrides map[string]any) error {
	if len(overrides) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           c,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.WithMessage(err, "building override decoder")
	}
	if err := dec.Decode(overrides); err != nil {
		return errors.WithMessage(err, "applying overrides")
	}
	return nil
}

// InitializationOptions renders the configuration as the wire payload for
// the initialize request. Key names follow the server's camelCase schema,
// which differs from the TOML file's snake_case.
func (c Config) InitializationOptions() (map[string]any, error) {
	var out map[string]any
	if err := mapstructure.Decode(c, &out); err != nil {
		return nil, errors.WithMessage(err, "encoding initialization options")
	}
	return out, nil
}
