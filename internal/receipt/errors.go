package receipt

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNotFound is matched by a 404 from the backend
var ErrNotFound = errors.New("receipt not found")

// HTTPStatusError is returned when the backend answers with a non-success status
type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("%s: backend status %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("%s: backend status %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// Is lets errors.Is(err, ErrNotFound) match a 404
func (e *HTTPStatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// serverSide reports whether the status points at a backend fault
func (e *HTTPStatusError) serverSide() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

// TransportError is returned when a request never produced a response
type TransportError struct {
	Operation string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: connection failed: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a network-level failure
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
