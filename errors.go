package mailpit

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNoSuchMessage is returned when a requested message does not exist or
// the inbox is empty.
var ErrNoSuchMessage = errors.New("no such message")

// ErrNoRelay is returned by Forward when the client has no relay provider.
var ErrNoRelay = errors.New("no relay provider configured")

// maxErrorBody caps how much of a response body is kept in an APIError.
const maxErrorBody = 512

// APIError reports an unexpected HTTP status from the Mailpit API.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func newAPIError(method, url string, status int, body []byte) *APIError {
	b := strings.TrimSpace(string(body))
	if len(b) > maxErrorBody {
		b = b[:maxErrorBody] + "..."
	}
	return &APIError{Method: method, URL: url, StatusCode: status, Body: b}
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("Mailpit API error (HTTP %d %s) for %s %s", e.StatusCode, http.StatusText(e.StatusCode), e.Method, e.URL)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
