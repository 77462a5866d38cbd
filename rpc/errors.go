package rpc

import (
	"errors"
	"fmt"

	"github.com/valyala/fasthttp"
)

var (
	// ErrRemoteService matches every non-200 response.
	ErrRemoteService = errors.New("remote service error")

	// ErrAuthenticationRequired matches 401 responses. The gateway session
	// is missing or expired and a new login is needed.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrEmptyResponse is returned when a 200 response carries no data.
	ErrEmptyResponse = errors.New("empty response")
)

// RemoteError is a non-200 response with its body.
type RemoteError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s %s returned %d: %s", ErrRemoteService, e.Method, e.Path, e.Status, e.Body)
}

// Is matches ErrRemoteService, and ErrAuthenticationRequired for 401s.
func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrRemoteService:
		return true
	case ErrAuthenticationRequired:
		return e.Status == fasthttp.StatusUnauthorized
	}
	return false
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var remote *RemoteError
	return errors.As(err, &remote) && remote.Status == fasthttp.StatusNotFound
}
