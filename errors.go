package hyperroute

import (
	"fmt"
	"net/http"
)

// HTTPError attaches a status code to err. Handlers that want the client to
// see the code send it themselves; once raised, an HTTPError reaches the
// error handler like any other error and the default one answers with a 500.
type HTTPError struct {
	Code int
	Err  error
}

// NewHTTPError wraps err with an HTTP status code.
func NewHTTPError(code int, err error) *HTTPError {
	return &HTTPError{Code: code, Err: err}
}

func (e *HTTPError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("%d %s: %v", e.Code, http.StatusText(e.Code), e.Err)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// panicError is a recovered handler panic.
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
