package usecase

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrorInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrorUpstream          ErrorCode = "UPSTREAM_ERROR"
	ErrorDevice            ErrorCode = "DEVICE_ERROR"
	ErrorClipboard         ErrorCode = "CLIPBOARD_ERROR"
	ErrorInternal          ErrorCode = "INTERNAL_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// IsCode reports whether err is a usecase error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var ue *Error
	return errors.As(err, &ue) && ue.Code == code
}

// Notice returns the inline, alert-style text for errors that are shown
// without leaving the chat screen.
func Notice(err error) (string, bool) {
	var ue *Error
	if !errors.As(err, &ue) {
		return "", false
	}
	switch ue.Code {
	case ErrorDevice:
		switch ue.Reason {
		case "no_speech":
			return "No speech detected. Please try again.", true
		case "permission_denied":
			return "Microphone access denied. Please enable microphone permissions.", true
		case "unsupported":
			return "Voice input is not supported here.", true
		case "speech_unsupported":
			return "Voice output is not supported here.", true
		default:
			return "Voice input failed. Please try again.", true
		}
	case ErrorClipboard:
		return "Could not copy the message to the clipboard.", true
	case ErrorInvalidInput:
		return "That didn't work. Please check your input.", true
	}
	return "", false
}
