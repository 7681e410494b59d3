package widget

import (
	"sync"
	"time"

	"github.com/rickgao/sitewatch/internal/model"
	"github.com/rickgao/sitewatch/internal/router"
)

// ServiceSnapshot is the state of a ServiceTable.
type ServiceSnapshot struct {
	Target    string                `json:"target"`
	Services  []model.ServiceStatus `json:"services"`
	Running   int                   `json:"running"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// ServiceTable keeps the latest service list for one target. Each
// services message replaces the whole list.
type ServiceTable struct {
	target string

	mu        sync.RWMutex
	services  []model.ServiceStatus
	updatedAt time.Time
}

// NewServiceTable creates an empty table.
func NewServiceTable(target string) *ServiceTable {
	return &ServiceTable{target: target}
}

// Handle replaces the list with a services message.
func (t *ServiceTable) Handle(msg router.Message) error {
	svcs, ok := msg.Services()
	if !ok {
		return nil
	}

	list := make([]model.ServiceStatus, len(svcs))
	copy(list, svcs)

	t.mu.Lock()
	t.services = list
	t.updatedAt = msg.ReceivedAt
	t.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current list.
func (t *ServiceTable) Snapshot() ServiceSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := ServiceSnapshot{
		Target:    t.target,
		Services:  make([]model.ServiceStatus, len(t.services)),
		UpdatedAt: t.updatedAt,
	}
	copy(snap.Services, t.services)
	for _, s := range t.services {
		if s.Running() {
			snap.Running++
		}
	}
	return snap
}
