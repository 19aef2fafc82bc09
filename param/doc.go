// Package param implements typed, validated, documented parameters with
// class-level defaults and per-instance overrides.
//
// A Schema declares parameters once (name, domain, default, doc) and is shared
// by every Set created from it. A Set holds instance overrides consulted before
// falling back to the schema defaults, so mutating an instance never affects
// the shared defaults, and changing a shared default is visible only to
// instances that have not overridden that parameter.
//
// Assignment is validated against the parameter's domain before any state
// changes. A failed assignment returns a *ValidationError naming the
// parameter, the rejected value and the violated constraint, and leaves the
// previous value in place. A successful assignment emits a Change notification
// consumed by the reactive binding (explorer package) and by UI generators.
//
// Domains are introspectable: Schema.Specs returns enough structure (kind,
// bounds, options, default, doc) for an external UI to build input controls
// without knowing the parameter set in advance.
package param
