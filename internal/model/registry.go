package model

import (
	"fmt"
	"sort"
)

// Spec carries the dimensions a factory needs to build an architecture.
type Spec struct {
	InputSize int
	Classes   int
	Hidden    int
	Vocab     int
	EmbedSize int
	Seed      int64
}

// Factory builds a model from spec.
type Factory func(spec Spec) (Model, error)

var registry = map[string]Factory{
	"linear": func(s Spec) (Model, error) {
		return NewLinear(s.Classes, s.InputSize, s.Seed)
	},
	"mlp": func(s Spec) (Model, error) {
		return NewMLP(s.Classes, s.InputSize, s.Hidden, s.Seed)
	},
	"simplecnn": func(s Spec) (Model, error) {
		return NewSimpleCNN(s.Classes, s.InputSize, s.Hidden, s.Seed)
	},
	"embedbag": func(s Spec) (Model, error) {
		return NewEmbedBag(s.Classes, s.Vocab, s.EmbedSize, s.Seed)
	},
}

// Registered reports whether name selects a known architecture.
func Registered(name string) bool {
	_, ok := registry[name]
	return ok
}

// Names lists the registered architectures.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the architecture registered under name.
func New(name string, spec Spec) (Model, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (known: %v)", ErrUnknownModel, name, Names())
	}
	return factory(spec)
}
