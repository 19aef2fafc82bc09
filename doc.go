// Package plotstream is a reactive parameter-to-view binding framework for
// exploring large geospatial point datasets.
//
// # Architecture
//
// The module is organized around four core pieces:
//
//   - param: typed, validated, documented parameters with class-level
//     defaults (Schema) and per-instance overrides (Set). Assignments
//     are validated against declared domains and emit change
//     notifications.
//   - datasource: columnar point datasets behind a lazy query interface.
//     Coordinate mode selects the (x, y) column pair; filters compose
//     passenger range, hour of day and spatial bounds. Parquet files load
//     through Apache Arrow into a shared immutable frame.
//   - render: a pure builder turning a parameter snapshot plus an optional
//     viewport into a rasterized artifact: count aggregation, histogram
//     equalized colormap shading, background compositing, PNG encoding.
//   - explorer: the reactive binding. One event loop per explorer reacts
//     to parameter and viewport changes, coalesces events that arrive
//     while a rebuild is in flight, and never displays an artifact that a
//     newer request has outranked.
//
// The gateway package serves one explorer per WebSocket session, bridge
// optionally republishes exploration events to NATS, and metric exposes the
// Prometheus surface. cmd/plotstream wires everything into a server binary.
package plotstream
