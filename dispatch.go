package hyperroute

import (
	"errors"
	"net/http"
)

// step is one handler of the dispatch chain together with the bindings of
// the entry it belongs to.
type step struct {
	handler HandlerFunc
	params  map[string]string
	rest    string
}

// ServeHTTP implements http.Handler. Every request gets exactly one response:
// from a matched handler, from the error handler or from the not-found handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.serving.Store(true)
	r.mu.Lock()
	t := table{routes: r.routes, onError: r.errorHandler, notFound: r.notFound}
	r.mu.Unlock()

	c := newContext(w, req)
	t.dispatch(c, t.chain(req))
}

// table is the route table as seen by one request.
type table struct {
	routes   []*route
	onError  ErrorHandlerFunc
	notFound HandlerFunc
}

// chain collects the handlers of all entries matching req, in registration order.
func (t *table) chain(req *http.Request) []step {
	path := req.URL.EscapedPath()
	if path == "" {
		path = "/"
	}
	var steps []step
	for _, rt := range t.routes {
		if !rt.acceptsMethod(req.Method) {
			continue
		}
		params, rest, ok := rt.pattern.match(path)
		if !ok {
			continue
		}
		for _, h := range rt.handlers {
			steps = append(steps, step{handler: h, params: params, rest: rest})
		}
	}
	return steps
}

func (t *table) dispatch(c *Context, steps []step) {
	for i := 0; i < len(steps); i++ {
		if err := c.Context().Err(); err != nil {
			logger.Debug("Request abandoned", "url", c.OriginalURL(), "error", err)
			return
		}

		s := steps[i]
		c.Params = s.params
		c.rest = s.rest
		c.next = false

		err := invoke(s.handler, c)
		if err == nil {
			err = c.nextErr
		}
		if err != nil {
			t.fail(c, err)
			return
		}
		if c.Response.Sent() {
			return
		}
		if !c.next {
			// the handler neither sent nor continued; end what it wrote
			logger.Debug("Handler returned without sending", "url", c.OriginalURL())
			finish(c)
			return
		}
	}

	if c.Response.HeadersSent() {
		// a handler streamed part of the body and continued; nothing can
		// replace it with a not-found response any more
		finish(c)
		return
	}
	c.Params = nil
	c.rest = ""
	if err := invoke(t.notFound, c); err != nil {
		t.fail(c, err)
		return
	}
	if !c.Response.Sent() {
		if c.Response.HeadersSent() {
			finish(c)
			return
		}
		sendFallback(c, http.StatusNotFound)
	}
}

// fail runs the error handler. It is called at most once per request. Errors
// that arrive after the headers went out cannot be reported to the client;
// the connection is aborted instead.
func (t *table) fail(c *Context, err error) {
	if c.Response.Sent() {
		logger.Error("Error after response was sent", "url", c.OriginalURL(), "error", err)
		return
	}
	if c.Response.HeadersSent() {
		logger.Error("Error after response started; aborting connection", "url", c.OriginalURL(), "error", err)
		panic(http.ErrAbortHandler)
	}

	herr := invokeError(t.onError, c, err)
	if herr != nil {
		logger.Error("Error handler failed; aborting connection", "url", c.OriginalURL(), "error", herr)
		panic(http.ErrAbortHandler)
	}
	if !c.Response.Sent() {
		if c.Response.HeadersSent() {
			finish(c)
			return
		}
		sendFallback(c, http.StatusInternalServerError)
	}
}

func finish(c *Context) {
	if err := c.Response.End(); err != nil && !errors.Is(err, ErrResponseSent) {
		logger.Error("Failed to end response", "url", c.OriginalURL(), "error", err)
	}
}

func sendFallback(c *Context, code int) {
	if err := c.Response.SendStatus(code); err != nil {
		logger.Error("Failed to send response", "url", c.OriginalURL(), "status", code, "error", err)
	}
}

// invoke runs h, turning a panic into an error.
func invoke(h HandlerFunc, c *Context) (err error) {
	defer func() {
		if v := recover(); v != nil {
			if v == http.ErrAbortHandler {
				panic(v)
			}
			err = &panicError{value: v}
		}
	}()
	return h(c)
}

func invokeError(h ErrorHandlerFunc, c *Context, cause error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			if v == http.ErrAbortHandler {
				panic(v)
			}
			err = &panicError{value: v}
		}
	}()
	return h(c, cause)
}
