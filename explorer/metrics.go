package explorer

import (
	"time"

	"github.com/c360/plotstream/metric"
)

// Metrics observes one explorer's rebuild activity. All methods are safe on
// a nil receiver so an explorer without metrics costs nothing.
type Metrics struct {
	name string
	core *metric.Metrics
}

// NewMetrics binds explorer observations to the shared core metrics
func NewMetrics(name string, registry *metric.MetricsRegistry) *Metrics {
	if registry == nil {
		return nil
	}
	return &Metrics{name: name, core: registry.CoreMetrics()}
}

func (m *Metrics) recordRebuild(trigger, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.core.RecordRebuild(m.name, trigger, result)
	m.core.RecordRebuildDuration(m.name, elapsed)
}

func (m *Metrics) recordCoalesced() {
	if m == nil {
		return
	}
	m.core.RecordCoalesced(m.name)
}

func (m *Metrics) recordStaleDiscard() {
	if m == nil {
		return
	}
	m.core.RecordStaleDiscard(m.name)
}

func (m *Metrics) recordState(rebuilding bool) {
	if m == nil {
		return
	}
	m.core.RecordExplorerState(m.name, rebuilding)
}

func (m *Metrics) recordArtifact(bytes, points int) {
	if m == nil {
		return
	}
	m.core.RecordArtifact(m.name, bytes, points)
}
