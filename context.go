package hyperroute

import (
	"context"
	"net/http"
	"net/url"
)

// Context carries one request through the dispatch chain. It is created per
// request and must not be retained after the chain finished.
type Context struct {
	Request  *http.Request
	Response *Response

	// Params holds the route parameters bound by the entry whose handler is
	// currently running.
	Params map[string]string

	// Body holds the parsed request body. It is nil unless a body parser such
	// as URLEncoded ran earlier in the chain.
	Body url.Values

	// Data passes values from one handler to the next.
	Data url.Values

	query   url.Values
	rest    string
	next    bool
	nextErr error
}

func newContext(w http.ResponseWriter, r *http.Request) *Context {
	return &Context{
		Request:  r,
		Response: newResponse(w, r),
		Data:     url.Values{},
	}
}

// Context returns the request context. It is cancelled when the client goes away.
func (c *Context) Context() context.Context {
	return c.Request.Context()
}

// Method returns the request method.
func (c *Context) Method() string {
	return c.Request.Method
}

// Path returns the decoded request path.
func (c *Context) Path() string {
	return c.Request.URL.Path
}

// OriginalURL returns the path and query as requested by the client.
func (c *Context) OriginalURL() string {
	return c.Request.URL.RequestURI()
}

// RelativePath returns the path below the mount point of the current entry.
// For entries that are not mounted it is the full path.
func (c *Context) RelativePath() string {
	if c.rest == "" {
		return c.Path()
	}
	return unescape(c.rest)
}

// Param returns the route parameter name, or "" if it is not bound.
func (c *Context) Param(name string) string {
	return c.Params[name]
}

// Query returns the first query value for key.
func (c *Context) Query(key string) string {
	return c.QueryValues().Get(key)
}

// QueryValues returns the parsed query string.
func (c *Context) QueryValues() url.Values {
	if c.query == nil {
		c.query = c.Request.URL.Query()
	}
	return c.query
}

// QueryMap returns the query string with single values flattened to strings
// and repeated keys kept as []string.
func (c *Context) QueryMap() map[string]any {
	return flattenValues(c.QueryValues())
}

// Next passes control to the next handler in the chain once the current
// handler returns.
func (c *Context) Next() {
	c.next = true
}

// NextErr skips the remaining handlers and passes err to the error handler.
func (c *Context) NextErr(err error) {
	c.next = true
	c.nextErr = err
}

// Send is shorthand for c.Response.Send.
func (c *Context) Send(body string) error {
	return c.Response.Send(body)
}

// Sendf is shorthand for c.Response.Sendf.
func (c *Context) Sendf(format string, args ...any) error {
	return c.Response.Sendf(format, args...)
}

// JSON is shorthand for c.Response.JSON.
func (c *Context) JSON(v any) error {
	return c.Response.JSON(v)
}

// Status is shorthand for c.Response.Status.
func (c *Context) Status(code int) *Response {
	return c.Response.Status(code)
}

func flattenValues(values url.Values) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		if len(v) == 1 {
			out[k] = v[0]
			continue
		}
		out[k] = v
	}
	return out
}
