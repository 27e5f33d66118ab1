package errors

import (
	stderrs "errors"
	"net"
	"net/http"
	"os"
	"syscall"
	"testing"
)

func TestRetryableStatus(t *testing.T) {
	retryable := []int{
		http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
	}
	for _, s := range retryable {
		if !RetryableStatus(s) {
			t.Errorf("RetryableStatus(%d) = false", s)
		}
	}
	for _, s := range []int{http.StatusOK, http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound} {
		if RetryableStatus(s) {
			t.Errorf("RetryableStatus(%d) = true", s)
		}
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unavailable code", Unavailablef("down"), true},
		{"too many requests code", Newf(ErrorCodeTooManyRequests, "slow down"), true},
		{"upstream code is terminal", Upstreamf("rejected"), false},
		{"validation code", Newf(ErrorCodeValidation, "bad"), false},
		{"net timeout", timeoutErr{}, true},
		{"wrapped net timeout", Wrap(timeoutErr{}, ErrorCodeUnknown, "fetch"), true},
		{"conn refused", syscall.ECONNREFUSED, true},
		{"conn reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, true},
		{"deadline", os.ErrDeadlineExceeded, true},
		{"plain error", stderrs.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryable(tc.err); got != tc.want {
				t.Fatalf("IsRetryable = %v, want %v", got, tc.want)
			}
		})
	}
}
