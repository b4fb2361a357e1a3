package talkie

import (
	"reflect"
	"testing"
	"time"
)

func TestPresenceStaleness(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p := NewPresenceTracker("me", 10*time.Second)

	p.Ingest(&PresenceMessage{ParticipantID: "old", DisplayName: "UNIT-1"}, now.Add(-11*time.Second))
	p.Ingest(&PresenceMessage{ParticipantID: "fresh", DisplayName: "UNIT-2"}, now.Add(-9*time.Second))

	evicted := p.Sweep(now)
	if !reflect.DeepEqual(evicted, []string{"old"}) {
		t.Errorf("evicted %v, want [old]", evicted)
	}
	if _, ok := p.Get("old"); ok {
		t.Error("stale record survived the sweep")
	}
	if _, ok := p.Get("fresh"); !ok {
		t.Error("fresh record evicted")
	}
}

func TestPresenceUsesReceiveTime(t *testing.T) {
	now := time.Now()
	p := NewPresenceTracker("me", 10*time.Second)
	// A sender clock an hour behind must not cause eviction.
	p.Ingest(&PresenceMessage{ParticipantID: "skewed", LastSeenAt: now.Add(-time.Hour)}, now)

	if evicted := p.Sweep(now.Add(time.Second)); len(evicted) != 0 {
		t.Errorf("evicted %v", evicted)
	}
	rec, _ := p.Get("skewed")
	if !rec.ReportedAt.Equal(now.Add(-time.Hour)) {
		t.Errorf("ReportedAt = %v", rec.ReportedAt)
	}
}

func TestPresenceIgnoresSelf(t *testing.T) {
	p := NewPresenceTracker("me", 10*time.Second)
	if p.Ingest(&PresenceMessage{ParticipantID: "me", DisplayName: "ME"}, time.Now()) {
		t.Error("self heartbeat accepted")
	}
	if p.Len() != 0 {
		t.Errorf("Len = %d", p.Len())
	}
}

func TestPresenceReplacesWholesale(t *testing.T) {
	now := time.Now()
	p := NewPresenceTracker("me", 10*time.Second)
	p.Ingest(&PresenceMessage{
		ParticipantID:  "a",
		DisplayName:    "ALPHA",
		IsTransmitting: true,
		Coordinates:    &Coordinates{Lat: 1, Lng: 2},
	}, now)
	p.Ingest(&PresenceMessage{ParticipantID: "a", DisplayName: "BRAVO"}, now.Add(time.Second))

	rec, ok := p.Get("a")
	if !ok {
		t.Fatal("record missing")
	}
	if rec.DisplayName != "BRAVO" || rec.IsTransmitting || rec.Coordinates != nil {
		t.Errorf("record merged instead of replaced: %+v", rec)
	}
}

func TestPresenceSnapshotSorted(t *testing.T) {
	now := time.Now()
	p := NewPresenceTracker("me", 10*time.Second)
	for _, m := range []PresenceMessage{
		{ParticipantID: "3", DisplayName: "UNIT-300"},
		{ParticipantID: "1", DisplayName: "UNIT-100"},
		{ParticipantID: "2", DisplayName: "UNIT-100"},
	} {
		m := m
		p.Ingest(&m, now)
	}
	var ids []string
	for _, rec := range p.Snapshot() {
		ids = append(ids, rec.ParticipantID)
	}
	if want := []string{"1", "2", "3"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("order %v, want %v", ids, want)
	}
	p.Clear()
	if p.Len() != 0 {
		t.Error("Clear left records")
	}
}
