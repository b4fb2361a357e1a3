package talkie

import (
	"sort"
	"time"
)

// PresenceTracker holds the latest heartbeat of every remote participant.
// It is owned by the session goroutine and is not safe for concurrent use.
type PresenceTracker struct {
	localID    string
	staleAfter time.Duration
	records    map[string]PresenceRecord
}

func NewPresenceTracker(localID string, staleAfter time.Duration) *PresenceTracker {
	return &PresenceTracker{
		localID:    localID,
		staleAfter: staleAfter,
		records:    make(map[string]PresenceRecord),
	}
}

// Ingest replaces the record for msg's participant. Heartbeats carrying the
// local id are ignored and Ingest returns false. LastSeenAt is receivedAt so
// that eviction never depends on a remote clock.
func (p *PresenceTracker) Ingest(msg *PresenceMessage, receivedAt time.Time) bool {
	if msg == nil || msg.ParticipantID == "" || msg.ParticipantID == p.localID {
		return false
	}
	rec := PresenceRecord{
		ParticipantID:  msg.ParticipantID,
		DisplayName:    msg.DisplayName,
		IsTransmitting: msg.IsTransmitting,
		LastSeenAt:     receivedAt,
		ReportedAt:     msg.LastSeenAt,
	}
	if msg.Coordinates != nil {
		c := *msg.Coordinates
		rec.Coordinates = &c
	}
	p.records[msg.ParticipantID] = rec
	return true
}

// Sweep evicts every record last seen more than the staleness threshold
// before now and returns the evicted ids, sorted.
func (p *PresenceTracker) Sweep(now time.Time) []string {
	var evicted []string
	for id, rec := range p.records {
		if now.Sub(rec.LastSeenAt) > p.staleAfter {
			delete(p.records, id)
			evicted = append(evicted, id)
		}
	}
	sort.Strings(evicted)
	return evicted
}

func (p *PresenceTracker) Get(id string) (PresenceRecord, bool) {
	rec, ok := p.records[id]
	return rec, ok
}

// Snapshot returns copies of all records ordered by display name, then id.
func (p *PresenceTracker) Snapshot() []PresenceRecord {
	out := make([]PresenceRecord, 0, len(p.records))
	for _, rec := range p.records {
		if rec.Coordinates != nil {
			c := *rec.Coordinates
			rec.Coordinates = &c
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].ParticipantID < out[j].ParticipantID
	})
	return out
}

func (p *PresenceTracker) Len() int {
	return len(p.records)
}

func (p *PresenceTracker) Clear() {
	p.records = make(map[string]PresenceRecord)
}
