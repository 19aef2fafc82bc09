// Package datasource exposes large columnar point datasets behind a uniform
// query interface: column selection by coordinate mode and range filtering,
// evaluated lazily.
//
// A Source is a shared read-only resource; any number of explorers may select
// from it concurrently. Select returns a View that records the mode and
// filter but reads nothing; rows are scanned only when the view builder calls
// Materialize. Switching the coordinate mode (pickup vs dropoff) switches
// which column pair is read without reloading the dataset.
//
// Two implementations are provided: MemorySource for in-memory frames and
// ParquetSource, which decodes the required columns from a Parquet file
// through Apache Arrow into the same frame representation.
package datasource
