package anon

import "firestige.xyz/netanon/internal/core"

// AuditLog is an insertion-ordered set of audit records.
type AuditLog struct {
	seen    map[core.AuditRecord]struct{}
	records []core.AuditRecord
}

func NewAuditLog() *AuditLog {
	return &AuditLog{seen: make(map[core.AuditRecord]struct{})}
}

// Add inserts rec unless already present and reports whether it was new.
func (l *AuditLog) Add(rec core.AuditRecord) bool {
	if _, dup := l.seen[rec]; dup {
		return false
	}
	l.seen[rec] = struct{}{}
	l.records = append(l.records, rec)
	return true
}

// Records returns the records in first-seen order.
func (l *AuditLog) Records() []core.AuditRecord { return l.records }

func (l *AuditLog) Len() int { return len(l.records) }
