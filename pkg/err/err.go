package errprocess

import (
	"errors"
	"fmt"

	"realtime_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// Kind error category, decide how an error is reported to the client
type Kind string

const (
	// KindAuthentication bad / missing / expired token, fatal to the handshake
	KindAuthentication Kind = "authentication"
	// KindValidation malformed ids, empty content
	KindValidation Kind = "validation"
	// KindAuthorization caller not a participant / sender / admin
	KindAuthorization Kind = "authorization"
	// KindNotFound referenced chat / message / member absent
	KindNotFound Kind = "not_found"
	// KindWindowExpired edit / unsend past the allowed window
	KindWindowExpired Kind = "window_expired"
	// KindRateLimited too many inbound events on one connection
	KindRateLimited Kind = "rate_limited"
	// KindStore store timeout / unavailability
	KindStore Kind = "store"
)

// Error typed error carrying its Kind
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Set set err info
func Set(kind Kind, errMsg string) error {
	logger.Log.Debug(errMsg, zap.String("kind", string(kind)))
	return &Error{Kind: kind, Msg: errMsg}
}

// Wrap keep the cause, used for store failures
func Wrap(kind Kind, errMsg string, err error) error {
	return &Error{Kind: kind, Msg: errMsg, Err: err}
}

// KindOf return kind of err, untyped errors count as store failures
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStore
}

// IsKind check err kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// UserMessage human readable text sent back in errorMessage
func UserMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "Resource not found or unavailable"
	}
	if e.Kind == KindStore {
		// 對使用者等同 NotFound
		return "Resource not found or unavailable"
	}
	return e.Msg
}
