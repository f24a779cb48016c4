package hyperroute

import (
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
)

// HandlerFunc handles a request inside a dispatch chain. It finishes the
// response, calls c.Next to continue with the next handler, or returns an
// error to hand the request to the error handler.
type HandlerFunc func(c *Context) error

// ErrorHandlerFunc handles an error raised by a handler. It must send a
// response; returning an error aborts the connection.
type ErrorHandlerFunc func(c *Context, err error) error

// MethodAll is the method filter accepting every request method.
const MethodAll = "ALL"

// route is a registered entry. Entries are immutable once registered.
type route struct {
	method   string
	pattern  pattern
	handlers []HandlerFunc
	mounted  bool
}

func (rt *route) acceptsMethod(method string) bool {
	switch rt.method {
	case MethodAll:
		return true
	case method:
		return true
	case http.MethodGet:
		return method == http.MethodHead
	}
	return false
}

// Router dispatches requests to the registered entries in registration order.
// Routes must be registered before the router serves its first request.
type Router struct {
	mu           sync.Mutex
	routes       []*route
	errorHandler ErrorHandlerFunc
	notFound     HandlerFunc
	serving      atomic.Bool
}

// NewRouter returns an empty Router with the default error and not-found handlers.
func NewRouter() *Router {
	return &Router{
		errorHandler: DefaultErrorHandler,
		notFound:     DefaultNotFoundHandler,
	}
}

// Get registers handlers for GET (and HEAD) requests matching pattern.
// pattern is either a string or a *regexp.Regexp.
func (r *Router) Get(pattern any, handlers ...HandlerFunc) *Router {
	return r.Handle(http.MethodGet, pattern, handlers...)
}

// Post registers handlers for POST requests matching pattern.
func (r *Router) Post(pattern any, handlers ...HandlerFunc) *Router {
	return r.Handle(http.MethodPost, pattern, handlers...)
}

// Put registers handlers for PUT requests matching pattern.
func (r *Router) Put(pattern any, handlers ...HandlerFunc) *Router {
	return r.Handle(http.MethodPut, pattern, handlers...)
}

// Patch registers handlers for PATCH requests matching pattern.
func (r *Router) Patch(pattern any, handlers ...HandlerFunc) *Router {
	return r.Handle(http.MethodPatch, pattern, handlers...)
}

// Delete registers handlers for DELETE requests matching pattern.
func (r *Router) Delete(pattern any, handlers ...HandlerFunc) *Router {
	return r.Handle(http.MethodDelete, pattern, handlers...)
}

// All registers handlers for requests of any method matching pattern.
func (r *Router) All(pattern any, handlers ...HandlerFunc) *Router {
	return r.Handle(MethodAll, pattern, handlers...)
}

// Handle registers handlers for method and pattern. Handlers of entries with
// the same method and pattern accumulate; nothing is ever replaced.
//
// Example usage:
//
//	r.Handle(http.MethodGet, "/name/:fname/:lname", func(c *hyperroute.Context) error {
//	    return c.Sendf("Hello, %s %s!", c.Param("fname"), c.Param("lname"))
//	})
func (r *Router) Handle(method string, pattern any, handlers ...HandlerFunc) *Router {
	r.add(strings.ToUpper(method), pattern, false, handlers)
	return r
}

// Use registers handlers that run for every request, in registration order
// relative to the other entries.
func (r *Router) Use(handlers ...HandlerFunc) *Router {
	r.add(MethodAll, "/", true, handlers)
	return r
}

// Mount registers handlers for every request whose path starts with prefix
// at a segment boundary. Inside the handlers, Context.RelativePath returns
// the path below prefix.
//
//	r.Mount("/static", hyperroute.Static("./static"))
func (r *Router) Mount(prefix any, handlers ...HandlerFunc) *Router {
	r.add(MethodAll, prefix, true, handlers)
	return r
}

// OnError replaces the error handler.
func (r *Router) OnError(h ErrorHandlerFunc) *Router {
	if h == nil {
		panic("hyperroute: nil error handler")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mustNotServe()
	r.errorHandler = h
	return r
}

// NotFound replaces the default handler that runs when no entry sent a response.
func (r *Router) NotFound(h HandlerFunc) *Router {
	if h == nil {
		panic("hyperroute: nil not-found handler")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mustNotServe()
	r.notFound = h
	return r
}

func (r *Router) add(method string, p any, mounted bool, handlers []HandlerFunc) {
	if len(handlers) == 0 {
		panic("hyperroute: route registered without handlers")
	}
	for _, h := range handlers {
		if h == nil {
			panic("hyperroute: nil handler")
		}
	}
	compiled, err := compilePattern(p, mounted)
	if err != nil {
		panic("hyperroute: " + err.Error())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.mustNotServe()
	r.routes = append(r.routes, &route{
		method:   method,
		pattern:  compiled,
		handlers: append([]HandlerFunc(nil), handlers...),
		mounted:  mounted,
	})
	logger.Debug("Route registered", "method", method, "pattern", compiled.String(), "handlers", len(handlers))
}

func (r *Router) mustNotServe() {
	if r.serving.Load() {
		panic("hyperroute: cannot change routes after the router started serving")
	}
}

