package config

// ConfigDiff describes what changed between two configs. Only fields that
// can be safely hot-reloaded mid-session (without a fresh `create`/`init`)
// are tracked: logging and the pruning/lattice/confnet tunables a running
// decoder reads fresh every frame or every utterance.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	PruningChanged bool
	NewPruning     PruningConfig

	LatticeChanged bool
	NewLattice     LatticeConfig

	ConfNetChanged bool
	NewConfNet     ConfNetConfig
}

// Diff compares old and new configs and returns what changed. Init (the
// beams/scales baked into a decoder session at construction time, spec
// §6.2) is deliberately not compared here: changing it requires a fresh
// `create`/`init` call, not a hot reload.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Pruning != new.Pruning {
		d.PruningChanged = true
		d.NewPruning = new.Pruning
	}
	if old.Lattice != new.Lattice {
		d.LatticeChanged = true
		d.NewLattice = new.Lattice
	}
	if old.ConfNet != new.ConfNet {
		d.ConfNetChanged = true
		d.NewConfNet = new.ConfNet
	}

	return d
}
