package param

import (
	"fmt"
	"sync"

	"github.com/c360/plotstream/errors"
)

// Schema holds the class-level parameter declarations: an ordered mapping of
// name to Parameter shared by every Set created from it. Defaults live here;
// instances override them without ever mutating the schema.
type Schema struct {
	mu     sync.RWMutex
	order  []string
	params map[string]*Parameter
}

// NewSchema creates an empty schema
func NewSchema() *Schema {
	return &Schema{params: make(map[string]*Parameter)}
}

// Declare registers a parameter at class scope. The default is validated
// against the domain and normalized to the domain's canonical value type.
// Redeclaring an existing name is rejected.
func (s *Schema) Declare(name string, domain Domain, def any, doc string) error {
	if name == "" {
		return errors.WrapInvalid(fmt.Errorf("parameter name cannot be empty"),
			"Schema", "Declare", "name check")
	}
	if domain == nil {
		return errors.WrapInvalid(fmt.Errorf("parameter %q has no domain", name),
			"Schema", "Declare", "domain check")
	}
	if verr := domain.Validate(name, def); verr != nil {
		return verr
	}
	norm, _ := domain.Normalize(def)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.params[name]; exists {
		return errors.WrapInvalid(fmt.Errorf("parameter %q already declared", name),
			"Schema", "Declare", "duplicate check")
	}

	s.order = append(s.order, name)
	s.params[name] = &Parameter{Name: name, Domain: domain, Default: norm, Doc: doc}
	return nil
}

// SetDefault mutates the class-level default. The new default is validated
// against the domain; on failure the previous default is retained. The change
// is visible to every Set that has not overridden the parameter.
func (s *Schema) SetDefault(name string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.params[name]
	if !exists {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrUnknownParameter, name),
			"Schema", "SetDefault", "lookup parameter")
	}
	if verr := p.Domain.Validate(name, value); verr != nil {
		return verr
	}
	norm, _ := p.Domain.Normalize(value)
	p.Default = norm
	return nil
}

// Default returns the class-level default for a declared parameter
func (s *Schema) Default(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, exists := s.params[name]
	if !exists {
		return nil, false
	}
	return p.Default, true
}

// Domain returns the declared domain for a parameter
func (s *Schema) Domain(name string) (Domain, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, exists := s.params[name]
	if !exists {
		return nil, false
	}
	return p.Domain, true
}

// Names returns the parameter names in declaration order
func (s *Schema) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Specs returns the introspectable description of every declared parameter in
// declaration order, for external UI generation
func (s *Schema) Specs() []Spec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Spec, 0, len(s.order))
	for _, name := range s.order {
		p := s.params[name]
		out = append(out, Spec{
			Name:    p.Name,
			Doc:     p.Doc,
			Default: p.Default,
			Domain:  p.Domain.Spec(),
		})
	}
	return out
}

// Snapshot is an immutable copy of a Set's effective values, taken at a point
// in time. The reactive binding rebuilds from snapshots so an in-flight
// rebuild never observes later mutations.
type Snapshot map[string]any

// Float returns the snapshot value as a float64 (zero if absent or mistyped)
func (sn Snapshot) Float(name string) float64 {
	if f, ok := sn[name].(float64); ok {
		return f
	}
	return 0
}

// Int returns the snapshot value as an int (zero if absent or mistyped)
func (sn Snapshot) Int(name string) int {
	if n, ok := sn[name].(int); ok {
		return n
	}
	return 0
}

// String returns the snapshot value as a string (empty if absent or mistyped)
func (sn Snapshot) String(name string) string {
	if s, ok := sn[name].(string); ok {
		return s
	}
	return ""
}

// Span returns the snapshot value as a Span (zero if absent or mistyped)
func (sn Snapshot) Span(name string) Span {
	if sp, ok := sn[name].(Span); ok {
		return sp
	}
	return Span{}
}

// Set is a per-instance view of a Schema: an override table consulted before
// falling back to the shared defaults. Successful assignments emit Change
// notifications to subscribers.
type Set struct {
	schema *Schema

	mu        sync.RWMutex
	overrides map[string]any
	subs      []chan Change
}

// NewSet creates an instance parameter set backed by the given schema
func NewSet(schema *Schema) *Set {
	return &Set{
		schema:    schema,
		overrides: make(map[string]any),
	}
}

// Schema returns the shared schema backing this set
func (s *Set) Schema() *Schema {
	return s.schema
}

// Get returns the current effective value: the instance override if present,
// else the class-level default. Unknown parameters return an error.
func (s *Set) Get(name string) (any, error) {
	s.mu.RLock()
	v, overridden := s.overrides[name]
	s.mu.RUnlock()
	if overridden {
		return v, nil
	}

	def, exists := s.schema.Default(name)
	if !exists {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrUnknownParameter, name),
			"Set", "Get", "lookup parameter")
	}
	return def, nil
}

// Set validates the value against the parameter's declared domain and stores
// it as an instance override. On validation failure a *ValidationError is
// returned and the previous value is retained; on success a Change
// notification is emitted.
func (s *Set) Set(name string, value any) error {
	domain, exists := s.schema.Domain(name)
	if !exists {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrUnknownParameter, name),
			"Set", "Set", "lookup parameter")
	}

	if verr := domain.Validate(name, value); verr != nil {
		return verr
	}
	norm, _ := domain.Normalize(value)

	s.mu.Lock()
	s.overrides[name] = norm
	subs := make([]chan Change, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	publish(subs, Change{Name: name, Value: norm})
	return nil
}

// Reset removes the instance override so the parameter falls back to the
// class-level default. A Change carrying the now-effective default is emitted
// if an override was present.
func (s *Set) Reset(name string) error {
	def, exists := s.schema.Default(name)
	if !exists {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrUnknownParameter, name),
			"Set", "Reset", "lookup parameter")
	}

	s.mu.Lock()
	_, had := s.overrides[name]
	delete(s.overrides, name)
	subs := make([]chan Change, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	if had {
		publish(subs, Change{Name: name, Value: def})
	}
	return nil
}

// Overridden reports whether the instance has overridden the parameter
func (s *Set) Overridden(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.overrides[name]
	return ok
}

// Snapshot returns a copy of the effective value of every declared parameter
func (s *Set) Snapshot() Snapshot {
	names := s.schema.Names()

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(Snapshot, len(names))
	for _, name := range names {
		if v, ok := s.overrides[name]; ok {
			snap[name] = v
			continue
		}
		if def, ok := s.schema.Default(name); ok {
			snap[name] = def
		}
	}
	return snap
}
