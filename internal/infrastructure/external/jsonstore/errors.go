package jsonstore

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrEndpointUnsupported means every endpoint alias of a resource answered
	// with a not-found/not-implemented class status.
	ErrEndpointUnsupported = errors.New("jsonstore: endpoint unsupported")

	// ErrPayloadRejected means the endpoint exists but refused every body shape.
	ErrPayloadRejected = errors.New("jsonstore: payload rejected")
)

// StatusError is a non-2xx response.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
}

// endpointAbsent reports whether the status says the route does not exist.
func endpointAbsent(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code {
	case http.StatusNotFound, http.StatusMethodNotAllowed, http.StatusNotImplemented:
		return true
	}
	return false
}

// shapeRejected reports whether the server refused the body shape.
func shapeRejected(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == http.StatusBadRequest || se.Code == http.StatusUnprocessableEntity
}

// isTransient reports whether err should count against the circuit breaker.
// Client-class statuses are answers, not outages.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 && se.Code != http.StatusNotImplemented
	}
	return true
}
