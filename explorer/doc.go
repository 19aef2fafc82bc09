// Package explorer implements the reactive binding between a parameter set
// and a rendered view. Each explorer runs a single event loop: parameter and
// viewport changes trigger rebuilds, events arriving mid-rebuild coalesce
// into one pending slot, and artifacts outranked by a newer request are
// dropped rather than displayed.
package explorer
