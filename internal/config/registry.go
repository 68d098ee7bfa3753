package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tanaris-labs/lvdecode/pkg/collab"
)

// ErrFactoryNotRegistered is returned by Create* methods when no factory has
// been registered under the requested name.
var ErrFactoryNotRegistered = errors.New("config: factory not registered")

// ModelEntry is the common configuration block for a named collaborator
// (acoustic model, language model, lexicon, or dictionary). Path points at
// the on-disk resource the registered factory knows how to load; model I/O
// and file formats themselves are out of scope for this module (spec §1
// Non-goals) — the factory a host application registers owns that.
type ModelEntry struct {
	// Name selects the registered factory (e.g. "htk-hmm", "arpa-trigram").
	Name string `yaml:"name"`

	// Path is the factory-specific resource location.
	Path string `yaml:"path"`

	// Options holds factory-specific configuration not covered by Path.
	Options map[string]any `yaml:"options"`
}

// Registry maps collaborator names to constructor functions, exactly the
// way the teacher registers named STT/LLM/TTS providers. A host application
// registers one factory per acoustic model / LM / lexicon / dictionary
// format it supports, then resolves instances by name from [Config].
type Registry struct {
	mu         sync.RWMutex
	acoustic   map[string]func(ModelEntry) (collab.AcousticModel, error)
	lm         map[string]func(ModelEntry) (collab.LanguageModel, error)
	lexicon    map[string]func(ModelEntry) (collab.Lexicon, error)
	dictionary map[string]func(ModelEntry) (collab.Dictionary, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		acoustic:   make(map[string]func(ModelEntry) (collab.AcousticModel, error)),
		lm:         make(map[string]func(ModelEntry) (collab.LanguageModel, error)),
		lexicon:    make(map[string]func(ModelEntry) (collab.Lexicon, error)),
		dictionary: make(map[string]func(ModelEntry) (collab.Dictionary, error)),
	}
}

// RegisterAcousticModel registers an acoustic-model factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterAcousticModel(name string, factory func(ModelEntry) (collab.AcousticModel, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acoustic[name] = factory
}

// RegisterLanguageModel registers a language-model factory under name.
func (r *Registry) RegisterLanguageModel(name string, factory func(ModelEntry) (collab.LanguageModel, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lm[name] = factory
}

// RegisterLexicon registers a lexicon-network factory under name.
func (r *Registry) RegisterLexicon(name string, factory func(ModelEntry) (collab.Lexicon, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lexicon[name] = factory
}

// RegisterDictionary registers a dictionary factory under name.
func (r *Registry) RegisterDictionary(name string, factory func(ModelEntry) (collab.Dictionary, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dictionary[name] = factory
}

// CreateAcousticModel instantiates an acoustic model using the factory
// registered under entry.Name. Returns [ErrFactoryNotRegistered] if no
// factory has been registered for that name.
func (r *Registry) CreateAcousticModel(entry ModelEntry) (collab.AcousticModel, error) {
	r.mu.RLock()
	factory, ok := r.acoustic[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return collab.AcousticModel{}, fmt.Errorf("%w: acoustic/%q", ErrFactoryNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateLanguageModel instantiates a language model using the factory
// registered under entry.Name.
func (r *Registry) CreateLanguageModel(entry ModelEntry) (collab.LanguageModel, error) {
	r.mu.RLock()
	factory, ok := r.lm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: lm/%q", ErrFactoryNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateLexicon instantiates a lexicon network using the factory registered
// under entry.Name.
func (r *Registry) CreateLexicon(entry ModelEntry) (collab.Lexicon, error) {
	r.mu.RLock()
	factory, ok := r.lexicon[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return collab.Lexicon{}, fmt.Errorf("%w: lexicon/%q", ErrFactoryNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateDictionary instantiates a dictionary using the factory registered
// under entry.Name.
func (r *Registry) CreateDictionary(entry ModelEntry) (collab.Dictionary, error) {
	r.mu.RLock()
	factory, ok := r.dictionary[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: dictionary/%q", ErrFactoryNotRegistered, entry.Name)
	}
	return factory(entry)
}
