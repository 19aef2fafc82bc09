package param

import (
	"fmt"
	"math"
)

// Domain constrains the values a parameter may take. Validate checks a
// candidate value and returns a *ValidationError describing the violated
// constraint; Normalize converts accepted representations (including JSON
// decodings) to the canonical value type.
type Domain interface {
	Kind() string
	Validate(name string, value any) *ValidationError
	Normalize(value any) (any, bool)
	Spec() DomainSpec
}

// DomainSpec is the introspectable description of a domain, consumed by
// external UI generators to build input controls.
type DomainSpec struct {
	Kind    string   `json:"kind"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Step    float64  `json:"step,omitempty"`
	Options []string `json:"options,omitempty"`
}

// Span is a numeric interval value, the canonical value type for Range
// domains. Lo <= Hi always holds for validated spans.
type Span struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
}

// Contains reports whether v lies within the span, inclusive on both ends.
func (s Span) Contains(v float64) bool {
	return v >= s.Lo && v <= s.Hi
}

// Number is a bounded float scalar domain with inclusive bounds.
type Number struct {
	Min float64
	Max float64
}

// Kind returns the domain kind identifier
func (d Number) Kind() string { return "number" }

// Normalize accepts any numeric Go type and returns a float64
func (d Number) Normalize(value any) (any, bool) {
	f, ok := asFloat(value)
	if !ok {
		return nil, false
	}
	return f, true
}

// Validate checks type and inclusive bounds
func (d Number) Validate(name string, value any) *ValidationError {
	f, ok := asFloat(value)
	if !ok {
		return typeError(name, value, "a number")
	}
	if math.IsNaN(f) || f < d.Min || f > d.Max {
		return boundsError(name, value, d.Min, d.Max)
	}
	return nil
}

// Spec returns the introspectable description of this domain
func (d Number) Spec() DomainSpec {
	lo, hi := d.Min, d.Max
	return DomainSpec{Kind: d.Kind(), Min: &lo, Max: &hi}
}

// Integer is a bounded integer scalar domain with inclusive bounds.
type Integer struct {
	Min int
	Max int
}

// Kind returns the domain kind identifier
func (d Integer) Kind() string { return "integer" }

// Normalize accepts integral numeric values and returns an int
func (d Integer) Normalize(value any) (any, bool) {
	f, ok := asFloat(value)
	if !ok || f != math.Trunc(f) {
		return nil, false
	}
	return int(f), true
}

// Validate checks integrality and inclusive bounds
func (d Integer) Validate(name string, value any) *ValidationError {
	f, ok := asFloat(value)
	if !ok || f != math.Trunc(f) {
		return typeError(name, value, "an integer")
	}
	n := int(f)
	if n < d.Min || n > d.Max {
		return boundsError(name, value, float64(d.Min), float64(d.Max))
	}
	return nil
}

// Spec returns the introspectable description of this domain
func (d Integer) Spec() DomainSpec {
	lo, hi := float64(d.Min), float64(d.Max)
	return DomainSpec{Kind: d.Kind(), Min: &lo, Max: &hi, Step: 1}
}

// Choice is an enumerated string domain; membership in Options is required.
type Choice struct {
	Options []string
}

// Kind returns the domain kind identifier
func (d Choice) Kind() string { return "choice" }

// Normalize accepts strings only
func (d Choice) Normalize(value any) (any, bool) {
	s, ok := value.(string)
	return s, ok
}

// Validate checks membership in the option set
func (d Choice) Validate(name string, value any) *ValidationError {
	s, ok := value.(string)
	if !ok {
		return typeError(name, value, "a string")
	}
	for _, opt := range d.Options {
		if s == opt {
			return nil
		}
	}
	return &ValidationError{
		Parameter:  name,
		Value:      value,
		Code:       CodeEnum,
		Constraint: fmt.Sprintf("must be one of %v", d.Options),
	}
}

// Spec returns the introspectable description of this domain
func (d Choice) Spec() DomainSpec {
	opts := make([]string, len(d.Options))
	copy(opts, d.Options)
	return DomainSpec{Kind: d.Kind(), Options: opts}
}

// Range is a bounded numeric interval domain: the value is a Span whose
// endpoints both lie within [Min, Max] and satisfy Lo <= Hi.
type Range struct {
	Min float64
	Max float64
}

// Kind returns the domain kind identifier
func (d Range) Kind() string { return "range" }

// Normalize accepts a Span, a two-element numeric slice or array, or the
// map produced by decoding a Span from JSON
func (d Range) Normalize(value any) (any, bool) {
	switch v := value.(type) {
	case Span:
		return v, true
	case [2]float64:
		return Span{Lo: v[0], Hi: v[1]}, true
	case []float64:
		if len(v) != 2 {
			return nil, false
		}
		return Span{Lo: v[0], Hi: v[1]}, true
	case []int:
		if len(v) != 2 {
			return nil, false
		}
		return Span{Lo: float64(v[0]), Hi: float64(v[1])}, true
	case []any:
		if len(v) != 2 {
			return nil, false
		}
		lo, okLo := asFloat(v[0])
		hi, okHi := asFloat(v[1])
		if !okLo || !okHi {
			return nil, false
		}
		return Span{Lo: lo, Hi: hi}, true
	case map[string]any:
		lo, okLo := asFloat(v["lo"])
		hi, okHi := asFloat(v["hi"])
		if !okLo || !okHi {
			return nil, false
		}
		return Span{Lo: lo, Hi: hi}, true
	default:
		return nil, false
	}
}

// Validate checks pair shape, endpoint ordering and the outer bound
func (d Range) Validate(name string, value any) *ValidationError {
	norm, ok := d.Normalize(value)
	if !ok {
		return typeError(name, value, "a numeric (lo, hi) pair")
	}
	span := norm.(Span)
	if span.Lo > span.Hi {
		return &ValidationError{
			Parameter:  name,
			Value:      value,
			Code:       CodeOrder,
			Constraint: "lo must not exceed hi",
		}
	}
	if span.Lo < d.Min || span.Hi > d.Max {
		return boundsError(name, value, d.Min, d.Max)
	}
	return nil
}

// Spec returns the introspectable description of this domain
func (d Range) Spec() DomainSpec {
	lo, hi := d.Min, d.Max
	return DomainSpec{Kind: d.Kind(), Min: &lo, Max: &hi}
}

// asFloat converts any numeric Go type (including JSON's float64) to float64
func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}

func typeError(name string, value any, expected string) *ValidationError {
	return &ValidationError{
		Parameter:  name,
		Value:      value,
		Code:       CodeType,
		Constraint: fmt.Sprintf("must be %s, got %T", expected, value),
	}
}

func boundsError(name string, value any, min, max float64) *ValidationError {
	return &ValidationError{
		Parameter:  name,
		Value:      value,
		Code:       CodeBounds,
		Constraint: fmt.Sprintf("must be within [%g, %g]", min, max),
	}
}
