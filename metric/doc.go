// Package metric owns the Prometheus surface: a private registry carrying
// the core rebuild, gateway and bridge metrics plus Go runtime collectors,
// a registrar for component-specific metrics, and an HTTP server exposing
// the scrape endpoint.
package metric
