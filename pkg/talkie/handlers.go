package talkie

import (
	"fmt"
	"io"
	"time"
)

// Factory functions for common handlers
func CreateStateLoggingHandler(logger *TalkieLogger) StateHandler {
	if logger == nil {
		logger = GetGlobalLogger()
	}
	return func(state SessionState) {
		logger.WithField("state", string(state)).Info("Session state changed")
	}
}

// CreateStateChangeHandler calls callback only when the state differs from the
// previous one it saw.
func CreateStateChangeHandler(callback func(from, to SessionState)) StateHandler {
	last := Idle
	return func(state SessionState) {
		if state == last {
			return
		}
		from := last
		last = state
		callback(from, state)
	}
}

func ChainStateHandlers(handlers ...StateHandler) StateHandler {
	return func(state SessionState) {
		for _, h := range handlers {
			if h != nil {
				h(state)
			}
		}
	}
}

// CreateActivityPrinter writes entries as "15:04:05 [type] SENDER: message".
func CreateActivityPrinter(w io.Writer) LogEntryHandler {
	return func(entry LogEntry) {
		fmt.Fprintf(w, "%s [%s] %s: %s\n", entry.Time.Format(time.TimeOnly), entry.Type, entry.Sender, entry.Message)
	}
}

// CreateEntryFilter forwards only entries of the given types.
func CreateEntryFilter(next LogEntryHandler, types ...LogEntryType) LogEntryHandler {
	return func(entry LogEntry) {
		for _, t := range types {
			if entry.Type == t {
				next(entry)
				return
			}
		}
	}
}
