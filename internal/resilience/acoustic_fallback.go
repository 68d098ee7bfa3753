package resilience

import (
	"errors"
	"fmt"

	"github.com/tanaris-labs/lvdecode/pkg/collab"
)

// recoverAsErr runs fn, converting any panic (the only failure signal
// available through the collab.AcousticModel closures, which return no
// error) into a plain error so the circuit breaker can account for it.
func recoverAsErr[R any](fn func() R) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(fmt.Sprint(r))
		}
	}()
	return fn(), nil
}

// AcousticFallback composes a primary [collab.AcousticModel] with one or more
// fallback instances (e.g. a remote neural scorer backed by a local GMM
// degrade-path), each guarded by its own circuit breaker. It implements
// [collab.AcousticModel] itself by wrapping Mixtures/Posterior so that a
// failing acoustic backend (RPC timeout, shard unavailable) does not stall
// frame processing — the scorer falls through to the next healthy instance.
//
// A fallback instance that panics on an unsupported query (e.g. Mixtures on a
// Hybrid=true-only backend) is the caller's responsibility to avoid; all
// fallbacks must agree on Hybrid and Dim.
type AcousticFallback struct {
	group *FallbackGroup[collab.AcousticModel]
	model collab.AcousticModel
}

// NewAcousticFallback builds an [AcousticFallback] around primary. The
// returned value's Model method result is ready to hand to the decoder's
// [collab.AcousticModel] consumer.
func NewAcousticFallback(primary collab.AcousticModel, primaryName string, cfg FallbackConfig) *AcousticFallback {
	af := &AcousticFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
	af.model = collab.AcousticModel{
		Hybrid: primary.Hybrid,
		Dim:    primary.Dim,
		Mixtures: func(s int) collab.MixtureSet {
			ms, err := ExecuteWithResult(af.group, func(m collab.AcousticModel) (collab.MixtureSet, error) {
				return recoverAsErr(func() collab.MixtureSet { return m.Mixtures(s) })
			})
			if err != nil {
				panic(fmt.Sprintf("resilience: all acoustic backends failed for Mixtures(%d): %v", s, err))
			}
			return ms
		},
		Posterior: func(s, t int) float64 {
			p, err := ExecuteWithResult(af.group, func(m collab.AcousticModel) (float64, error) {
				return recoverAsErr(func() float64 { return m.Posterior(s, t) })
			})
			if err != nil {
				panic(fmt.Sprintf("resilience: all acoustic backends failed for Posterior(%d,%d): %v", s, t, err))
			}
			return p
		},
	}
	return af
}

// AddFallback registers an additional acoustic backend, tried after the
// primary and any previously added fallbacks, in order.
func (af *AcousticFallback) AddFallback(name string, fallback collab.AcousticModel) {
	af.group.AddFallback(name, fallback)
}

// Model returns the composed [collab.AcousticModel] suitable for use wherever
// the decoder core expects one.
func (af *AcousticFallback) Model() collab.AcousticModel {
	return af.model
}
