package talkie

import (
	"sync"
	"time"
)

// LogEntryType classifies an activity log entry.
type LogEntryType string

const (
	LogInfo LogEntryType = "info"
	LogErr  LogEntryType = "err"
	LogText LogEntryType = "text"
)

// LogEntry is one line of the user-visible activity log.
type LogEntry struct {
	Time    time.Time
	Sender  string
	Type    LogEntryType
	Message string
}

// ActivityLog keeps the most recent entries, oldest first.
type ActivityLog struct {
	mu       sync.Mutex
	capacity int
	entries  []LogEntry
	nextSub  int
	subs     map[int]LogEntryHandler
}

func NewActivityLog(capacity int) *ActivityLog {
	if capacity < 1 {
		capacity = 1
	}
	return &ActivityLog{
		capacity: capacity,
		subs:     make(map[int]LogEntryHandler),
	}
}

// Append records entry, dropping the oldest beyond capacity, and notifies
// subscribers synchronously in subscription order.
func (a *ActivityLog) Append(entry LogEntry) {
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}

	a.mu.Lock()
	a.entries = append(a.entries, entry)
	if over := len(a.entries) - a.capacity; over > 0 {
		a.entries = append(a.entries[:0:0], a.entries[over:]...)
	}
	handlers := inOrder(a.subs)
	a.mu.Unlock()

	for _, h := range handlers {
		h(entry)
	}
}

func (a *ActivityLog) Info(sender, message string) {
	a.Append(LogEntry{Sender: sender, Type: LogInfo, Message: message})
}

func (a *ActivityLog) Error(sender, message string) {
	a.Append(LogEntry{Sender: sender, Type: LogErr, Message: message})
}

func (a *ActivityLog) Entries() []LogEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]LogEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Subscribe registers h for future entries and returns a function that
// removes it.
func (a *ActivityLog) Subscribe(h LogEntryHandler) func() {
	a.mu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = h
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.subs, id)
		a.mu.Unlock()
	}
}
