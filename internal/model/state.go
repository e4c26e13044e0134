package model

import "fmt"

// StateDict copies every parameter into a name-keyed map.
func StateDict(m Model) map[string][]float64 {
	out := make(map[string][]float64, len(m.Params()))
	for _, p := range m.Params() {
		out[p.Name] = append([]float64(nil), p.Data...)
	}
	return out
}

// LoadStateDict overwrites parameters from state. Every parameter must be
// present with a matching length; extra entries are rejected.
func LoadStateDict(m Model, state map[string][]float64) error {
	params := m.Params()
	if len(state) != len(params) {
		return fmt.Errorf("state dict: %d entries, model has %d params", len(state), len(params))
	}
	for _, p := range params {
		data, ok := state[p.Name]
		if !ok {
			return fmt.Errorf("state dict: missing %q", p.Name)
		}
		if len(data) != p.Len() {
			return fmt.Errorf("state dict: %q has %d values, want %d", p.Name, len(data), p.Len())
		}
	}
	for _, p := range params {
		copy(p.Data, state[p.Name])
	}
	return nil
}
