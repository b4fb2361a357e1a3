package talkie

import "testing"

func TestNormalizeChannelID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "alpha", want: "ALPHA"},
		{in: "  bravo ", want: "BRAVO"},
		{in: "X1", want: "X1"},
		{in: "", wantErr: true},
		{in: "   ", wantErr: true},
		{in: "TOOLONG", wantErr: true},
		{in: "A/B", wantErr: true},
		{in: "A+", wantErr: true},
		{in: "#", wantErr: true},
		{in: "A B", wantErr: true},
	}
	for _, tt := range tests {
		got, err := NormalizeChannelID(tt.in)
		if tt.wantErr {
			if !IsErrorCode(err, ErrCodeInvalidChannel) {
				t.Errorf("NormalizeChannelID(%q) err = %v, want %s", tt.in, err, ErrCodeInvalidChannel)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("NormalizeChannelID(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestTopicsFor(t *testing.T) {
	topics := TopicsFor("talkie/premium/v2/", "ALPHA")
	if topics.Voice != "talkie/premium/v2/ALPHA/voice" {
		t.Errorf("Voice = %q", topics.Voice)
	}
	if topics.Presence != "talkie/premium/v2/ALPHA/presence" {
		t.Errorf("Presence = %q", topics.Presence)
	}
	if topics.Text != "talkie/premium/v2/ALPHA/text" {
		t.Errorf("Text = %q", topics.Text)
	}
	if n := len(topics.All()); n != 3 {
		t.Errorf("All has %d topics", n)
	}

	cases := map[string]MessageKind{
		topics.Voice:                      KindVoice,
		topics.Presence:                   KindPresence,
		topics.Text:                       KindText,
		"talkie/premium/v2/BRAVO/voice":   KindUnknown,
		"talkie/premium/v2/ALPHA/unknown": KindUnknown,
	}
	for topic, want := range cases {
		if got := topics.Kind(topic); got != want {
			t.Errorf("Kind(%q) = %q, want %q", topic, got, want)
		}
	}
}

func TestChannelsAreIsolated(t *testing.T) {
	a := TopicsFor(DefaultTopicPrefix, "A")
	ab := TopicsFor(DefaultTopicPrefix, "AB")
	for _, topic := range ab.All() {
		if a.Kind(topic) != KindUnknown {
			t.Errorf("channel A claims %q", topic)
		}
	}
}
