package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// HTTPError is a non-2xx response from the gateway.
type HTTPError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("gateway %s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

// Temporary reports whether the gateway itself failed rather than refused.
func (e *HTTPError) Temporary() bool {
	return e.Status >= http.StatusInternalServerError
}

// NetworkError means the request never produced a response: transport
// failure, timeout, cancellation or an open circuit breaker.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// IsNetwork reports whether err is a NetworkError, i.e. the outcome of the
// call on the gateway side is unknown.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}

const maxMessageLen = 200

// errorMessage pulls a human readable message out of an error body, trying
// the {"message"} and {"error"} shapes the gateway uses.
func errorMessage(status int, body []byte) string {
	var shaped struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &shaped) == nil {
		if shaped.Message != "" {
			return shaped.Message
		}
		if shaped.Error != "" {
			return shaped.Error
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" || strings.HasPrefix(msg, "<") {
		return http.StatusText(status)
	}
	if len(msg) > maxMessageLen {
		msg = msg[:maxMessageLen]
	}
	return msg
}
