package market

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

// NetworkError means the request never reached the server or no response came back.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("%s: network: %v", e.Op, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response. Body is the raw server text.
type HTTPError struct {
	Op     string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s: http %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.Status, body)
}

// DecodeError is a 2xx response whose body could not be understood.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("%s: decode: %v", e.Op, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// Describe renders err for the user. Server text is passed through verbatim.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if body := strings.TrimSpace(httpErr.Body); body != "" {
			return body
		}
		return fmt.Sprintf("server returned status %d", httpErr.Status)
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return "server unreachable: " + netErr.Err.Error()
	}
	var decErr *DecodeError
	if errors.As(err, &decErr) {
		return "unexpected response: " + decErr.Err.Error()
	}
	return err.Error()
}

// IsStatus reports whether err is an HTTPError with the given status.
func IsStatus(err error, status int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.Status == status
}
