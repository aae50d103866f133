package util

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"

	"mailtriage/pkg/circuitbreaker"
)

// 错误类型
const (
	ErrTypeJSONDecode     = "json_decode_error"
	ErrTypeNotFound       = "not_found"
	ErrTypeDuplicateKey   = "duplicate_key"
	ErrTypeDBConnection   = "db_connection_error"
	ErrTypeNetworkTimeout = "network_timeout"
	ErrTypeNetwork        = "network_error"
	ErrTypeTimeout        = "timeout"
	ErrTypeCanceled       = "context_canceled"
	ErrTypeCircuitOpen    = "circuit_open"
	ErrTypeModelServer    = "model_server_error"
	ErrTypeModelRejected  = "model_rejected_request"
	ErrTypeUnknown        = "unknown_error"
)

// IsRetryableError determines if an error is retryable
// Returns: (isRetryable, errorType)
func IsRetryableError(err error) (bool, string) {
	if err == nil {
		return false, ""
	}

	errStr := err.Error()

	// JSON decode errors - 不可重试（数据格式错误）
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return false, ErrTypeJSONDecode
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return false, ErrTypeJSONDecode
	}

	// Context - 超时可重试，取消不可重试
	if errors.Is(err, context.DeadlineExceeded) {
		return true, ErrTypeTimeout
	}
	if errors.Is(err, context.Canceled) {
		return false, ErrTypeCanceled
	}

	// 熔断器打开：后端暂时不可用
	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
		return true, ErrTypeCircuitOpen
	}

	// Database errors
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrTypeNotFound
	}
	if strings.Contains(errStr, "duplicate key") || strings.Contains(errStr, "UNIQUE constraint") {
		// 唯一约束冲突 - 不可重试（幂等性）
		return false, ErrTypeDuplicateKey
	}

	// URL errors 包装了底层网络错误，先检查
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true, ErrTypeNetworkTimeout
		}
		return true, ErrTypeNetwork
	}

	// Network errors - 可重试
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true, ErrTypeNetworkTimeout
		}
		return true, ErrTypeNetwork
	}

	// Model server errors - 根据状态码判断
	if strings.Contains(errStr, "model server 5xx") {
		return true, ErrTypeModelServer
	}
	if strings.Contains(errStr, "model server error") {
		return false, ErrTypeModelRejected
	}

	if strings.Contains(errStr, "connection") {
		return true, ErrTypeDBConnection
	}

	// 默认：未知错误，保守处理 - 不重试
	return false, ErrTypeUnknown
}

// IsTimeoutType reports whether the classified type is a timeout.
func IsTimeoutType(errType string) bool {
	return errType == ErrTypeTimeout || errType == ErrTypeNetworkTimeout
}

// ShouldRetry checks if an error should be retried based on retry count
func ShouldRetry(retryCount int64, maxRetries int64, isRetryable bool) bool {
	if !isRetryable {
		return false
	}
	return retryCount <= maxRetries
}
