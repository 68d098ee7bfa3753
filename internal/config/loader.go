package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills in the zero-value defaults spec §4.7/§4.10 name
// explicitly, so a sparse YAML document still produces a runnable decoder.
func applyDefaults(cfg *Config) {
	if cfg.Pruning.MaxLNBeamFlr == 0 {
		cfg.Pruning.MaxLNBeamFlr = 0.5
	}
	if cfg.Pruning.DynBeamInc == 0 {
		cfg.Pruning.DynBeamInc = 1.1
	}
	if cfg.Pruning.GCFreq == 0 {
		cfg.Pruning.GCFreq = 100
	}
	if cfg.ConfNet.Method == "" {
		cfg.ConfNet.Method = ConfMethodGeoMean
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Init.BeamWidth < 0 {
		errs = append(errs, fmt.Errorf("init.beam_width %v must be >= 0", cfg.Init.BeamWidth))
	}
	if cfg.Init.RelBeamWidth < 0 {
		errs = append(errs, fmt.Errorf("init.rel_beam_width %v must be >= 0", cfg.Init.RelBeamWidth))
	}
	if cfg.Init.WEBeamWidth < 0 {
		errs = append(errs, fmt.Errorf("init.we_beam_width %v must be >= 0", cfg.Init.WEBeamWidth))
	}
	if cfg.Init.ZSBeamWidth < 0 {
		errs = append(errs, fmt.Errorf("init.zs_beam_width %v must be >= 0", cfg.Init.ZSBeamWidth))
	}
	if cfg.Init.MaxModel < 0 {
		errs = append(errs, fmt.Errorf("init.max_model %d must be >= 0", cfg.Init.MaxModel))
	}

	if cfg.Pruning.MaxLNBeamFlr <= 0 || cfg.Pruning.MaxLNBeamFlr > 1 {
		errs = append(errs, fmt.Errorf("pruning.max_ln_beam_flr %v must be in (0, 1]", cfg.Pruning.MaxLNBeamFlr))
	}
	if cfg.Pruning.DynBeamInc < 1 {
		errs = append(errs, fmt.Errorf("pruning.dyn_beam_inc %v must be >= 1 (it can only relax the beam)", cfg.Pruning.DynBeamInc))
	}
	if cfg.Pruning.GCFreq < 0 {
		errs = append(errs, fmt.Errorf("pruning.gc_freq %d must be >= 0", cfg.Pruning.GCFreq))
	}

	if cfg.ConfNet.Method != "" && !cfg.ConfNet.Method.IsValid() {
		errs = append(errs, fmt.Errorf("confnet.method %q is invalid; valid values: GEOMEAN, MAX", cfg.ConfNet.Method))
	}

	if cfg.Lattice.ForceLatOut && cfg.Lattice.BuildLatSentEnd {
		slog.Warn("lattice.force_lat_out has no effect when lattice.build_lat_sent_end is set",
			"build_lat_sent_end", cfg.Lattice.BuildLatSentEnd,
			"force_lat_out", cfg.Lattice.ForceLatOut,
		)
	}

	return errors.Join(errs...)
}
