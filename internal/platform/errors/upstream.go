package errors

import (
	stderrs "errors"
	"net"
	"net/http"
	"os"
	"syscall"
)

// retryableStatuses are upstream HTTP statuses worth another attempt
var retryableStatuses = map[int]struct{}{
	http.StatusRequestTimeout:      {},
	http.StatusTooManyRequests:     {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
	http.StatusInternalServerError: {},
}

// RetryableStatus reports whether an upstream HTTP status is transient
func RetryableStatus(status int) bool {
	_, ok := retryableStatuses[status]
	return ok
}

// IsRetryable reports whether err looks transient: rate limiting, an
// unavailable upstream, a network timeout, or a connection level failure
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch CodeOf(err) {
	case ErrorCodeUnavailable, ErrorCodeTooManyRequests:
		return true
	}
	return isTransportTransient(err)
}

// isTransportTransient walks the cause chain for net level failures
func isTransportTransient(err error) bool {
	var nerr net.Error
	if stderrs.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	if stderrs.Is(err, syscall.ECONNREFUSED) ||
		stderrs.Is(err, syscall.ECONNRESET) ||
		stderrs.Is(err, syscall.EPIPE) ||
		stderrs.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var operr *net.OpError
	return stderrs.As(err, &operr)
}
