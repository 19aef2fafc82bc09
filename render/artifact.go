package render

import (
	"time"

	"github.com/google/uuid"

	"github.com/c360/plotstream/datasource"
	"github.com/c360/plotstream/param"
)

// Artifact is the immutable product of one build: a rasterized view plus
// the inputs it was computed from. Every rebuild produces a fresh artifact;
// nothing is patched in place.
type Artifact struct {
	// ID uniquely identifies this build
	ID uuid.UUID
	// Extent is the data window the raster covers
	Extent datasource.Extent
	// PNG holds the encoded composed image
	PNG []byte
	// Spec is the declarative layer description, JSON-encoded
	Spec []byte
	// Params is the parameter snapshot the build consumed
	Params param.Snapshot
	// Points is the number of rows that survived filtering
	Points int
	// BuiltAt is when the build completed
	BuiltAt time.Time
	// Generation orders artifacts within an explorer; stamped by the
	// binding, not the builder
	Generation uint64
}
