package resilience

import (
	"testing"

	"github.com/tanaris-labs/lvdecode/pkg/collab"
)

func constModel(dim int, value float64) collab.AcousticModel {
	return collab.AcousticModel{
		Hybrid: true,
		Dim:    dim,
		Posterior: func(s, t int) float64 {
			return value
		},
	}
}

func panickyModel() collab.AcousticModel {
	return collab.AcousticModel{
		Hybrid: true,
		Dim:    39,
		Posterior: func(s, t int) float64 {
			panic("backend unreachable")
		},
	}
}

func TestAcousticFallback_PrimaryHealthy(t *testing.T) {
	af := NewAcousticFallback(constModel(39, -1.0), "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	m := af.Model()
	if got := m.Posterior(0, 0); got != -1.0 {
		t.Errorf("Posterior = %v, want -1.0", got)
	}
}

func TestAcousticFallback_FallsThroughOnPanic(t *testing.T) {
	af := NewAcousticFallback(panickyModel(), "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	af.AddFallback("secondary", constModel(39, -2.5))

	m := af.Model()
	if got := m.Posterior(0, 0); got != -2.5 {
		t.Errorf("Posterior = %v, want -2.5 (fallback)", got)
	}
}

func TestAcousticFallback_AllFailPanics(t *testing.T) {
	af := NewAcousticFallback(panickyModel(), "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	af.AddFallback("secondary", panickyModel())

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic when all acoustic backends fail")
		}
	}()
	af.Model().Posterior(0, 0)
}
