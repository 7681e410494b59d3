package widget

import (
	"sync"
	"time"

	"github.com/rickgao/sitewatch/internal/model"
	"github.com/rickgao/sitewatch/internal/router"
)

// MetricsSnapshot is the state of a MetricsPanel.
type MetricsSnapshot struct {
	Target     string        `json:"target"`
	Metrics    model.Metrics `json:"metrics"`
	CPULevel   Level         `json:"cpu_level"`
	MemLevel   Level         `json:"memory_level"`
	DiskLevel  Level         `json:"disk_level"`
	Samples    int64         `json:"samples"`
	UpdatedAt  time.Time     `json:"updated_at"`
	HasSample  bool          `json:"has_sample"`
	LoadString string        `json:"load_average_text"`
}

// MetricsPanel keeps the latest metrics sample for one target.
type MetricsPanel struct {
	target string

	mu        sync.RWMutex
	latest    model.Metrics
	updatedAt time.Time
	samples   int64
}

// NewMetricsPanel creates an empty panel.
func NewMetricsPanel(target string) *MetricsPanel {
	return &MetricsPanel{target: target}
}

// Handle replaces the latest sample with a metrics message.
func (p *MetricsPanel) Handle(msg router.Message) error {
	m, ok := msg.Metrics()
	if !ok {
		return nil
	}

	at := msg.ReceivedAt
	if at.IsZero() {
		at = time.Now()
	}

	p.mu.Lock()
	p.latest = m
	p.updatedAt = at
	p.samples++
	p.mu.Unlock()
	return nil
}

// Snapshot returns the current state.
func (p *MetricsPanel) Snapshot() MetricsSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return MetricsSnapshot{
		Target:     p.target,
		Metrics:    p.latest,
		CPULevel:   UsageLevel(p.latest.CPUUsage),
		MemLevel:   UsageLevel(p.latest.MemoryUsage),
		DiskLevel:  UsageLevel(p.latest.DiskUsage),
		Samples:    p.samples,
		UpdatedAt:  p.updatedAt,
		HasSample:  p.samples > 0,
		LoadString: p.latest.LoadAverage.String(),
	}
}

// Stale reports whether no sample arrived within maxAge of now. A panel
// that never received a sample is stale.
func (p *MetricsPanel) Stale(now time.Time, maxAge time.Duration) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.samples == 0 {
		return true
	}
	return now.Sub(p.updatedAt) > maxAge
}
