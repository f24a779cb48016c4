package hyperroute

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"sync/atomic"
)

// DefaultMaxBodyBytes is the body size limit of URLEncoded when none is given.
const DefaultMaxBodyBytes int64 = 1 << 20

// Consolidate error responses to maintain a consistent format.
func writeErrorResponse(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	response := map[string]string{"error": message}
	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		logger.Error("Failed to write error response", "error", err)
	}
}

// DefaultErrorHandler logs err and answers 500 with a generic message. The
// error itself, its status included, never reaches the client.
func DefaultErrorHandler(c *Context, err error) error {
	logger.Error("Request failed", "method", c.Method(), "url", c.OriginalURL(), "error", err)
	return c.Status(http.StatusInternalServerError).Send("Something broke!")
}

// DefaultNotFoundHandler answers requests no entry has responded to.
func DefaultNotFoundHandler(c *Context) error {
	return c.Status(http.StatusNotFound).Send("This resource does not exist")
}

// WrapHandler adapts a plain http.Handler. The wrapped handler always
// finishes the response.
func WrapHandler(h http.Handler) HandlerFunc {
	return func(c *Context) error {
		h.ServeHTTP(c.Response.ResponseWriter(), c.Request)
		c.Response.MarkSent()
		return nil
	}
}

// Static serves files below dir. The file name is the request path below the
// mount point. Requests for missing files continue down the chain so the
// not-found handler answers them; methods other than GET and HEAD continue
// as well.
//
//	r.Mount("/static", hyperroute.Static("./static"))
func Static(dir string) HandlerFunc {
	fsys := os.DirFS(dir)
	return func(c *Context) error {
		if c.Method() != http.MethodGet && c.Method() != http.MethodHead {
			c.Next()
			return nil
		}
		name := strings.TrimPrefix(path.Clean("/"+c.RelativePath()), "/")
		if name == "" {
			name = "."
		}
		fi, err := fs.Stat(fsys, name)
		switch {
		case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrInvalid):
			c.Next()
			return nil
		case err != nil:
			return fmt.Errorf("static %s: %w", name, err)
		}
		if fi.IsDir() {
			if _, err := fs.Stat(fsys, path.Join(name, "index.html")); err != nil {
				c.Next()
				return nil
			}
		}
		http.ServeFileFS(c.Response.ResponseWriter(), c.Request, fsys, name)
		c.Response.MarkSent()
		return nil
	}
}

// URLEncoded parses application/x-www-form-urlencoded request bodies into
// Context.Body and continues. Other content types continue untouched.
// Oversized bodies are answered with 413 and malformed ones with 400; the
// chain stops there. maxBytes <= 0 selects DefaultMaxBodyBytes.
func URLEncoded(maxBytes int64) HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return func(c *Context) error {
		if c.Body != nil || c.Request.Body == nil || c.Request.Body == http.NoBody {
			c.Next()
			return nil
		}
		mediaType, _, err := mime.ParseMediaType(c.Request.Header.Get("Content-Type"))
		if err != nil || mediaType != "application/x-www-form-urlencoded" {
			c.Next()
			return nil
		}
		raw, err := io.ReadAll(http.MaxBytesReader(c.Response.ResponseWriter(), c.Request.Body, maxBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				logger.Warn("Request body too large", "url", c.OriginalURL(), "limit", tooLarge.Limit)
				return c.Response.SendStatus(http.StatusRequestEntityTooLarge)
			}
			return fmt.Errorf("reading request body: %w", err)
		}
		values, err := url.ParseQuery(string(raw))
		if err != nil {
			logger.Warn("Malformed form body", "url", c.OriginalURL(), "error", err)
			return c.Response.SendStatus(http.StatusBadRequest)
		}
		c.Body = values
		c.Next()
		return nil
	}
}

// HealthCheckHandler returns a 204 No Content status code for basic health checks.
// This handler can be used as a simple liveness or readiness probe.
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (srv *Server) livezHandler(w http.ResponseWriter, r *http.Request) {
	srv.healthHandlerHelper(w, r, "alive", &srv.isRunning)
}

func (srv *Server) readyzHandler(w http.ResponseWriter, r *http.Request) {
	srv.healthHandlerHelper(w, r, "ready", &srv.isReady)
}

func (srv *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	srv.healthHandlerHelper(w, r, "ok", &srv.isRunning)
}

func (srv *Server) healthHandlerHelper(w http.ResponseWriter, request *http.Request, probe string,
	status *atomic.Bool) {
	if status.Load() {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(probe)); err != nil {
			logger.Error(fmt.Sprintf("error writing endpoint status (%s)", probe), "error", err)
		}
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		if _, err := w.Write([]byte("unhealthy")); err != nil {
			logger.Error(fmt.Sprintf("error writing endpoint status (%s)", probe), "error", err)
		}
	}
}
