package schema

import "fmt"

// Registry stores the set of tradable symbols. Signals for symbols outside
// the registry are rejected at validation.
type Registry struct {
	symbols []string
	known   map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{known: make(map[string]struct{})}
}

// AddSymbol registers a tradable symbol.
func (r *Registry) AddSymbol(name string) error {
	if name == "" {
		return fmt.Errorf("symbol name is empty")
	}
	if _, ok := r.known[name]; ok {
		return fmt.Errorf("symbol already exists: %s", name)
	}
	r.symbols = append(r.symbols, name)
	r.known[name] = struct{}{}
	return nil
}

// Has reports whether the symbol is tradable.
func (r *Registry) Has(name string) bool {
	_, ok := r.known[name]
	return ok
}

// Symbols returns the registered symbols in registration order.
func (r *Registry) Symbols() []string {
	out := make([]string, len(r.symbols))
	copy(out, r.symbols)
	return out
}

// SymbolCount returns the number of registered symbols.
func (r *Registry) SymbolCount() int {
	return len(r.symbols)
}
