package talkie

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestTalkieErrorFormatting(t *testing.T) {
	err := NewConnectError("broker unreachable").AddDetail("broker", "localhost:1883")
	if got := err.Error(); got != "CONNECT_FAILURE: broker unreachable" {
		t.Errorf("Error() = %q", got)
	}
	if v, ok := err.GetDetail("broker"); !ok || v != "localhost:1883" {
		t.Errorf("GetDetail = %v, %v", v, ok)
	}
	if _, ok := err.GetDetail("missing"); ok {
		t.Error("GetDetail found a missing key")
	}
}

func TestWrapErrorKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrapf(cause, ErrCodePublishFailure, "publish %s", "a/b")
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through errors.Is")
	}
	if !strings.HasSuffix(err.Error(), "connection reset") {
		t.Errorf("Error() = %q", err.Error())
	}
	if WrapError(nil, ErrCodePublishFailure) != nil {
		t.Error("WrapError(nil) returned an error")
	}
	same := NewDecodeError("x")
	if WrapError(same, ErrCodeDecodeFailure) != same {
		t.Error("WrapError rewrapped an error with the same code")
	}
}

func TestIsErrorCodeWalksChain(t *testing.T) {
	inner := NewMicrophoneError("denied")
	outer := fmt.Errorf("start: %w", WrapError(inner, ErrCodeConnectFailure))

	if !IsErrorCode(outer, ErrCodeConnectFailure) {
		t.Error("outer code not found")
	}
	if !IsErrorCode(outer, ErrCodeMicrophoneUnavailable) {
		t.Error("inner code not found")
	}
	if IsErrorCode(outer, ErrCodeDecodeFailure) {
		t.Error("unrelated code found")
	}
	if IsErrorCode(errors.New("plain"), ErrCodeDecodeFailure) {
		t.Error("plain error matched")
	}
}

func TestIsSessionFatal(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{NewConnectError("x"), true},
		{NewSubscribeError("x"), true},
		{NewMicrophoneError("x"), false},
		{NewDecodeError("x"), false},
		{NewPublishError("x"), false},
		{NewPlaybackError("x"), false},
	}
	for _, tt := range tests {
		if got := IsSessionFatal(tt.err); got != tt.want {
			t.Errorf("IsSessionFatal(%v) = %v", tt.err, got)
		}
	}
}
