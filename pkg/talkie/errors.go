package talkie

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error codes as constants
const (
	ErrCodeConnectFailure        = "CONNECT_FAILURE"
	ErrCodeSubscribeFailure      = "SUBSCRIBE_FAILURE"
	ErrCodeMicrophoneUnavailable = "MICROPHONE_UNAVAILABLE"
	ErrCodeDecodeFailure         = "DECODE_FAILURE"
	ErrCodePublishFailure        = "PUBLISH_FAILURE"
	ErrCodePlaybackFailure       = "PLAYBACK_FAILURE"
	ErrCodeInvalidChannel        = "INVALID_CHANNEL"
	ErrCodeInvalidMessage        = "INVALID_MESSAGE"
	ErrCodeManualDisabled        = "MANUAL_DISABLED"
	ErrCodeNotConnected          = "NOT_CONNECTED"
	ErrCodeConfigInvalid         = "CONFIG_INVALID"
	ErrCodeSessionClosed         = "SESSION_CLOSED"
)

// TalkieError carries a machine-readable code next to the message.
type TalkieError struct {
	Message   string
	Code      string
	Timestamp time.Time
	Details   map[string]interface{}
	err       error
}

func NewTalkieError(message, code string) *TalkieError {
	return &TalkieError{
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

func (e *TalkieError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Code)
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.err.Error())
	}
	return sb.String()
}

func (e *TalkieError) Unwrap() error {
	return e.err
}

// AddDetail attaches a key/value to the error and returns it for chaining.
func (e *TalkieError) AddDetail(key string, value interface{}) *TalkieError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func (e *TalkieError) GetDetail(key string) (interface{}, bool) {
	if e.Details == nil {
		return nil, false
	}
	value, exists := e.Details[key]
	return value, exists
}

// Specific error creators with common codes
func NewConnectError(message string) *TalkieError {
	return NewTalkieError(message, ErrCodeConnectFailure)
}

func NewSubscribeError(message string) *TalkieError {
	return NewTalkieError(message, ErrCodeSubscribeFailure)
}

func NewMicrophoneError(message string) *TalkieError {
	return NewTalkieError(message, ErrCodeMicrophoneUnavailable)
}

func NewDecodeError(message string) *TalkieError {
	return NewTalkieError(message, ErrCodeDecodeFailure)
}

func NewPublishError(message string) *TalkieError {
	return NewTalkieError(message, ErrCodePublishFailure)
}

func NewPlaybackError(message string) *TalkieError {
	return NewTalkieError(message, ErrCodePlaybackFailure)
}

func NewInvalidChannelError(message string) *TalkieError {
	return NewTalkieError(message, ErrCodeInvalidChannel)
}

func NewInvalidMessageError(message string) *TalkieError {
	return NewTalkieError(message, ErrCodeInvalidMessage)
}

func NewConfigError(message string) *TalkieError {
	return NewTalkieError(message, ErrCodeConfigInvalid)
}

// WrapError wraps err under code, keeping it reachable through errors.Is/As.
func WrapError(err error, code string) *TalkieError {
	if err == nil {
		return nil
	}
	var te *TalkieError
	if errors.As(err, &te) && te.Code == code {
		return te
	}
	return &TalkieError{
		Message:   code,
		Code:      code,
		Timestamp: time.Now(),
		err:       err,
	}
}

// Wrapf is WrapError with a formatted message.
func Wrapf(err error, code, format string, args ...interface{}) *TalkieError {
	return &TalkieError{
		Message:   fmt.Sprintf(format, args...),
		Code:      code,
		Timestamp: time.Now(),
		err:       err,
	}
}

// IsErrorCode reports whether any TalkieError in err's chain has code.
func IsErrorCode(err error, code string) bool {
	var te *TalkieError
	for err != nil {
		if !errors.As(err, &te) {
			return false
		}
		if te.Code == code {
			return true
		}
		err = te.err
	}
	return false
}

// IsSessionFatal reports whether err ends the session. Only channel-level
// failures do; every audio-path failure is recovered locally.
func IsSessionFatal(err error) bool {
	return IsErrorCode(err, ErrCodeConnectFailure) || IsErrorCode(err, ErrCodeSubscribeFailure)
}
