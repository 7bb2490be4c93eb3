package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrConfiguration marks an unusable identity pool or session setup.
	ErrConfiguration = errors.New("configuration error")

	// ErrChallenge indicates the origin served an anti-automation page.
	ErrChallenge = errors.New("challenge page detected")
)

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrRejected is a non-success HTTP status. It is never retried.
type ErrRejected struct {
	StatusCode int
}

func (e ErrRejected) Error() string {
	return fmt.Sprintf("rejected: http status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// ErrFetchExhausted is returned when every attempt was spent without success.
type ErrFetchExhausted struct {
	Attempts int
	Last     error
}

func (e ErrFetchExhausted) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("fetch exhausted after %d attempts", e.Attempts)
	}
	return fmt.Sprintf("fetch exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e ErrFetchExhausted) Unwrap() error {
	return e.Last
}

func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrConnection{Err: err}
	}
	return err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	if errors.Is(err, ErrChallenge) {
		return "challenge"
	}
	var rejected ErrRejected
	if errors.As(err, &rejected) {
		switch rejected.StatusCode {
		case http.StatusForbidden:
			return "forbidden"
		case http.StatusNotFound:
			return "not_found"
		case http.StatusTooManyRequests:
			return "rate_limited"
		}
		return "rejected"
	}
	return "other"
}
