package remote

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Kind tells how a request failed.
type Kind int

const (
	// KindTransient is a network error or a 5xx response.
	KindTransient Kind = iota
	// KindClient is a 4xx response; it is never retried.
	KindClient
	// KindExhausted means every attempt failed with a transient error.
	KindExhausted
)

func (k Kind) String() string {
	switch k {
	case KindClient:
		return "client error"
	case KindExhausted:
		return "retries exhausted"
	default:
		return "transient error"
	}
}

var errRequestFailed = errors.New("remote: request failed")

// RequestError is the single failure value surfaced by Client.
type RequestError struct {
	Method   string
	URL      string
	Status   int // 0 when no response was received
	Attempts int
	Kind     Kind
	Err      error // last transport error, if any
}

func (e *RequestError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("%s %s → %d %s (%s, %d attempt(s))",
			e.Method, e.URL, e.Status, http.StatusText(e.Status), e.Kind, e.Attempts)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v (%s, %d attempt(s))", e.Method, e.URL, e.Err, e.Kind, e.Attempts)
	default:
		return fmt.Sprintf("%s %s: %v", e.Method, e.URL, errRequestFailed)
	}
}

func (e *RequestError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status of the last response, 0 if none.
func (e *RequestError) StatusCode() int { return e.Status }

// NotFound reports whether the store answered 404.
func (e *RequestError) NotFound() bool { return e.Status == http.StatusNotFound }
