package talkie

import (
	"strings"
	"unicode/utf8"
)

// MessageKind tags the topic a payload arrived on.
type MessageKind string

const (
	KindVoice    MessageKind = "voice"
	KindPresence MessageKind = "presence"
	KindText     MessageKind = "text"
	KindUnknown  MessageKind = ""
)

// Topics holds the three topics of one channel.
type Topics struct {
	Voice    string
	Presence string
	Text     string
}

// NormalizeChannelID trims and uppercases a user-entered channel id. Empty
// ids, ids longer than MaxChannelIDLength and ids containing topic separators
// or wildcards are rejected so that channels can never collide.
func NormalizeChannelID(channelID string) (string, error) {
	id := strings.ToUpper(strings.TrimSpace(channelID))
	if id == "" {
		return "", NewInvalidChannelError("channel id is empty")
	}
	if utf8.RuneCountInString(id) > MaxChannelIDLength {
		return "", NewInvalidChannelError("channel id is too long").AddDetail("max_length", MaxChannelIDLength)
	}
	if strings.ContainsAny(id, "/+#") || strings.ContainsFunc(id, isSpace) {
		return "", NewInvalidChannelError("channel id contains reserved characters").AddDetail("channel", id)
	}
	return id, nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// TopicsFor derives the channel topics under prefix. channelID must already
// be normalized.
func TopicsFor(prefix, channelID string) Topics {
	base := strings.Trim(prefix, "/") + "/" + channelID
	return Topics{
		Voice:    base + "/voice",
		Presence: base + "/presence",
		Text:     base + "/text",
	}
}

// All returns the topics in subscription order.
func (t Topics) All() []string {
	return []string{t.Voice, t.Text, t.Presence}
}

// Kind classifies topic. Topics from other channels are KindUnknown.
func (t Topics) Kind(topic string) MessageKind {
	switch topic {
	case t.Voice:
		return KindVoice
	case t.Presence:
		return KindPresence
	case t.Text:
		return KindText
	}
	return KindUnknown
}
