// Package hyperroute is a small HTTP routing framework built around an
// ordered request dispatcher.
//
// Route entries are registered in order with a method filter and one or more
// handlers. For each request the dispatcher collects the handlers of every
// matching entry, in registration order, and runs them one at a time:
//
//	r := hyperroute.NewRouter()
//	r.All("/", func(c *hyperroute.Context) error {
//		c.Response.WriteString("<p>You made any HTTP request</p>")
//		c.Next()
//		return nil
//	})
//	r.Get("/", func(c *hyperroute.Context) error {
//		c.Response.WriteString("<p>You made a GET request</p>")
//		return c.Response.End()
//	})
//
// A handler finishes the chain by sending a response, continues it by
// calling Context.Next, or fails it by returning an error (or panicking).
// Failures go to the error handler, which runs at most once per request.
// When every matching handler continued without sending, the not-found
// handler answers. Either way every request gets exactly one response.
//
// # Patterns
//
// Patterns are literal paths ("/hello"), paths with named parameters
// ("/name/:fname/:lname"), Express style string patterns ("/user+details")
// or a *regexp.Regexp tested against the full path, with named groups bound
// as parameters. Literal and string patterns ignore case ("/Hello" matches
// "/hello"); parameter values keep the case of the request. A regexp
// decides case and segment boundaries itself.
//
// # Server
//
// Server embeds a Router and adds configuration (defaults, options.json,
// environment, functional options), server middleware such as request
// logging, rate limiting and security headers, health endpoints and
// graceful shutdown.
package hyperroute
