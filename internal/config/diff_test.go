package config_test

import (
	"testing"

	"github.com/tanaris-labs/lvdecode/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server:  config.ServerConfig{LogLevel: config.LogInfo},
		Pruning: config.PruningConfig{GCFreq: 10},
	}
	d := config.Diff(cfg, cfg)
	if d.LogLevelChanged || d.PruningChanged || d.LatticeChanged || d.ConfNetChanged {
		t.Errorf("expected no changes for identical configs, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
}

func TestDiff_PruningChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Pruning: config.PruningConfig{GCFreq: 10}}
	new := &config.Config{Pruning: config.PruningConfig{GCFreq: 20}}

	d := config.Diff(old, new)
	if !d.PruningChanged {
		t.Error("expected PruningChanged=true")
	}
	if d.NewPruning.GCFreq != 20 {
		t.Errorf("expected NewPruning.GCFreq=20, got %d", d.NewPruning.GCFreq)
	}
}

func TestDiff_LatticeChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Lattice: config.LatticeConfig{ForceLatOut: false}}
	new := &config.Config{Lattice: config.LatticeConfig{ForceLatOut: true}}

	d := config.Diff(old, new)
	if !d.LatticeChanged {
		t.Error("expected LatticeChanged=true")
	}
	if !d.NewLattice.ForceLatOut {
		t.Error("expected NewLattice.ForceLatOut=true")
	}
}

func TestDiff_ConfNetChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{ConfNet: config.ConfNetConfig{Method: config.ConfMethodGeoMean}}
	new := &config.Config{ConfNet: config.ConfNetConfig{Method: config.ConfMethodMax}}

	d := config.Diff(old, new)
	if !d.ConfNetChanged {
		t.Error("expected ConfNetChanged=true")
	}
	if d.NewConfNet.Method != config.ConfMethodMax {
		t.Errorf("expected NewConfNet.Method=MAX, got %q", d.NewConfNet.Method)
	}
}

func TestDiff_InitChangeIsNotReported(t *testing.T) {
	t.Parallel()
	// Init requires a fresh create/init call (spec §6.2); Diff must not
	// claim it is hot-reloadable.
	old := &config.Config{Init: config.InitConfig{BeamWidth: 200}}
	new := &config.Config{Init: config.InitConfig{BeamWidth: 300}}

	d := config.Diff(old, new)
	if d.PruningChanged || d.LatticeChanged || d.ConfNetChanged || d.LogLevelChanged {
		t.Errorf("expected Diff to ignore Init changes entirely, got %+v", d)
	}
}
