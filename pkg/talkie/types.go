package talkie

import "time"

// SessionState enum
type SessionState string

const (
	Idle         SessionState = "IDLE"
	Connecting   SessionState = "CONNECTING"
	Connected    SessionState = "CONNECTED"
	Transmitting SessionState = "TRANSMITTING"
	Receiving    SessionState = "RECEIVING"
	ErrorState   SessionState = "ERROR"
)

// IsLinked reports whether the state has a live channel behind it.
func (s SessionState) IsLinked() bool {
	switch s {
	case Connected, Transmitting, Receiving:
		return true
	}
	return false
}

// Coordinates is a best-effort geolocation fix.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PresenceRecord is the locally held view of one remote participant.
type PresenceRecord struct {
	ParticipantID  string
	DisplayName    string
	IsTransmitting bool
	// LastSeenAt is the local time the latest heartbeat arrived.
	LastSeenAt time.Time
	// ReportedAt is the timestamp the participant put in its heartbeat.
	ReportedAt  time.Time
	Coordinates *Coordinates
}

// RadarBlip is a participant positioned on the radar display.
type RadarBlip struct {
	Record   PresenceRecord
	Point    RadarPoint
	Fallback bool
}

// Handler types
type StateHandler func(SessionState)
type LogEntryHandler func(LogEntry)
