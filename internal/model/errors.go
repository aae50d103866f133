package model

import (
	"errors"
	"fmt"
)

// ErrorKind 错误分类
type ErrorKind string

const (
	KindModelUnavailable    ErrorKind = "ModelUnavailable"
	KindTimeout             ErrorKind = "Timeout"
	KindParseFailure        ErrorKind = "ParseFailure"
	KindGraphDeadlock       ErrorKind = "GraphDeadlock"
	KindGuardrailExhausted  ErrorKind = "GuardrailExhausted"
	KindCancelled           ErrorKind = "Cancelled"
	KindPersistenceFailure  ErrorKind = "PersistenceFailure"
	KindInvalidGraph        ErrorKind = "InvalidGraph"
	KindNotificationFailure ErrorKind = "NotificationFailure"
	KindUnknown             ErrorKind = "Unknown"
)

// Error carries a kind alongside the operation that failed.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an *Error.
func E(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsTransient 后端暂时不可用或超时，允许节点级别重试一次
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindModelUnavailable, KindTimeout:
		return true
	}
	return false
}
