package usecase

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorCode string

const (
	ErrorInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrorInvalidQuestion ErrorCode = "INVALID_QUESTION"
	ErrorRateLimited     ErrorCode = "RATE_LIMITED"
	ErrorUpstream        ErrorCode = "UPSTREAM_ERROR"
	ErrorConflict        ErrorCode = "CONFLICT"
	ErrorInternal        ErrorCode = "INTERNAL_ERROR"
)

const (
	reasonCooldown      = "cooldown_active"
	reasonQuotaExceeded = "openai_quota_exceeded"
	reasonInvalidKey    = "openai_invalid_key"
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

// UserMessage is the text shown to the customer instead of the raw error.
func (e *Error) UserMessage() string {
	if e == nil {
		return ""
	}
	switch e.Reason {
	case reasonCooldown:
		return "Whoa, slow down! 😅 Give me a second to catch up and try again."
	case reasonQuotaExceeded:
		return "Oops, I've hit my daily limit! 😔 Please try again tomorrow or contact support."
	case reasonInvalidKey:
		return "Hmm, there's a configuration issue. Please contact support!"
	}
	switch e.Code {
	case ErrorInvalidInput:
		return "Hmm, I didn't quite get that! Could you try again?"
	case ErrorInvalidQuestion:
		return "Let's keep it friendly! 💜 Tell me what you're looking for in your formula."
	case ErrorRateLimited:
		return "Whoa, slow down! 😅 I need a quick breather. Please wait a few seconds and try again!"
	case ErrorConflict:
		return "Hang on, I'm still working on your last message!"
	case ErrorUpstream:
		return "Sorry, I'm having trouble connecting right now. Please try again in a moment! 💜"
	default:
		return "Something went wrong on our side. Please try again in a moment."
	}
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

// upstreamError classifies a generator or moderation failure. prefix names
// the call, e.g. "openai" or "moderation".
func upstreamError(prefix string, err error) *Error {
	status, ok := upstreamStatusCode(err)
	msg := err.Error()
	switch {
	case strings.Contains(msg, "insufficient_quota"):
		return newError(ErrorRateLimited, reasonQuotaExceeded, err)
	case ok && status == 429:
		return newError(ErrorRateLimited, prefix+"_rate_limited", err)
	case ok && status == 401, strings.Contains(msg, "invalid_api_key"):
		return newError(ErrorInternal, reasonInvalidKey, err)
	default:
		return newError(ErrorUpstream, prefix+"_error", err)
	}
}
