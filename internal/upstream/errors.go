package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnreachable means the request produced no HTTP response at all.
var ErrUnreachable = errors.New("upstream unreachable")

// StatusError is a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	Path       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s: status %d", e.Path, e.StatusCode)
}

// Kind classifies upstream failures for user-facing messaging.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindNotFound
	KindServer
	KindUnreachable
)

// Classify maps an error returned by this package to a Kind. Errors from
// other packages classify as KindUnknown.
func Classify(err error) Kind {
	if errors.Is(err, ErrUnreachable) {
		return KindUnreachable
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusUnauthorized:
			return KindUnauthorized
		case se.StatusCode == http.StatusNotFound:
			return KindNotFound
		case se.StatusCode >= 500:
			return KindServer
		}
	}
	return KindUnknown
}
