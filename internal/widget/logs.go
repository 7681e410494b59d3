package widget

import (
	"sync"

	"github.com/rickgao/sitewatch/internal/model"
	"github.com/rickgao/sitewatch/internal/router"
)

// DefaultLogRetention is the number of records a LogTail keeps.
const DefaultLogRetention = 1000

// LogTail keeps the most recent log records for one target. Each batch is
// placed ahead of older records with its own order preserved; records
// beyond the retention limit are dropped from the old end.
type LogTail struct {
	target    string
	retention int

	mu       sync.RWMutex
	records  []model.LogRecord
	received int64
	dropped  int64
}

// NewLogTail creates a LogTail. A retention of zero or less means
// DefaultLogRetention.
func NewLogTail(target string, retention int) *LogTail {
	if retention <= 0 {
		retention = DefaultLogRetention
	}
	return &LogTail{
		target:    target,
		retention: retention,
		records:   make([]model.LogRecord, 0, retention),
	}
}

// Handle prepends the records of a logs message.
func (l *LogTail) Handle(msg router.Message) error {
	batch, ok := msg.Logs()
	if !ok || len(batch) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.received += int64(len(batch))

	if len(batch) >= l.retention {
		l.dropped += int64(len(l.records) + len(batch) - l.retention)
		l.records = append(l.records[:0], batch[:l.retention]...)
		return nil
	}

	keep := len(l.records)
	if keep+len(batch) > l.retention {
		keep = l.retention - len(batch)
		l.dropped += int64(len(l.records) - keep)
	}

	next := make([]model.LogRecord, 0, l.retention)
	next = append(next, batch...)
	next = append(next, l.records[:keep]...)
	l.records = next
	return nil
}

// Records returns up to limit records, newest batch first, keeping only
// those whose severity matches. An empty severity matches everything and
// a limit of zero or less means no limit.
func (l *LogTail) Records(severity string, limit int) []model.LogRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]model.LogRecord, 0, min(len(l.records), max(limit, 0)))
	for _, r := range l.records {
		if severity != "" && r.Severity != severity {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Len returns the number of retained records.
func (l *LogTail) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// LogTailStats contains counters for a LogTail.
type LogTailStats struct {
	Target    string `json:"target"`
	Retained  int    `json:"retained"`
	Retention int    `json:"retention"`
	Received  int64  `json:"received"`
	Dropped   int64  `json:"dropped"`
}

// Stats returns current counters.
func (l *LogTail) Stats() LogTailStats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return LogTailStats{
		Target:    l.target,
		Retained:  len(l.records),
		Retention: l.retention,
		Received:  l.received,
		Dropped:   l.dropped,
	}
}
