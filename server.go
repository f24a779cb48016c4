// Copyright 2024 by Oliver Sauer
// Use of this source code is governed by a MIT-style license that can be found in the LICENSE file.

// HTTP server with an ordered request dispatcher, middleware and various options to handle requests and responses.

package hyperroute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// limiterIdleTimeout is how long a client's rate limiter survives without requests.
const limiterIdleTimeout = 10 * time.Minute

// Server represents an HTTP server dispatching requests through its Router.
// Routes are registered through the embedded Router before Run is called.
type Server struct {
	*Router
	Options      *ServerOptions
	httpServer   *http.Server
	healthServer *http.Server
	middleware   MiddlewareStack

	isReady   atomic.Bool
	isRunning atomic.Bool

	// Server metrics
	totalRequests     atomic.Uint64
	totalResponseTime atomic.Int64
	serverStart       time.Time

	limitersMu     sync.Mutex
	clientLimiters map[string]*rateLimiterEntry
}

// ServerOptionFunc configures a Server. Pass options to [NewServer].
//
// Example:
//
//	srv, err := NewServer(
//		WithPort("3000"),
//		WithHealthServer())
//	if err != nil {
//		log.Fatal(err)
//	}
//	srv.Get("/hello", hello)
//	srv.Run()
type ServerOptionFunc func(srv *Server) error

// NewServer creates a new instance of the Server with the default middleware stack.
func NewServer(opts ...ServerOptionFunc) (*Server, error) {
	srv := &Server{
		Router:         NewRouter(),
		Options:        NewServerOptions(),
		clientLimiters: make(map[string]*rateLimiterEntry),
	}
	srv.middleware = DefaultMiddleware(srv)

	var errs []error
	for _, opt := range opts {
		if err := opt(srv); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("configuring server: %w", err)
	}
	return srv, nil
}

// With appends middleware that runs around the router, after the default stack.
func (srv *Server) With(middleware ...MiddlewareFunc) *Server {
	if srv.isRunning.Load() {
		panic("Cannot change middleware after server has started.")
	}
	srv.middleware = append(srv.middleware, middleware...)
	return srv
}

// Handler returns the router wrapped in the server middleware.
func (srv *Server) Handler() http.Handler {
	return srv.middleware.chain(srv.Router)
}

// Run listens on the configured address and serves until SIGINT, SIGTERM or SIGQUIT.
func (srv *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	return srv.RunContext(ctx)
}

// RunContext listens on the configured address and serves until ctx is done.
func (srv *Server) RunContext(ctx context.Context) error {
	ln, err := net.Listen("tcp", srv.Options.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", srv.Options.Addr, err)
	}
	return srv.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down gracefully.
func (srv *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv.httpServer = &http.Server{
		Handler:      srv.Handler(),
		ReadTimeout:  srv.Options.ReadTimeout,
		WriteTimeout: srv.Options.WriteTimeout,
		IdleTimeout:  srv.Options.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	if srv.Options.RunHealthServer {
		srv.initHealthServer()
		go func() {
			if err := srv.healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Health server failed", "error", err)
			}
		}()
	}

	srv.serverStart = time.Now()
	srv.isRunning.Store(true)
	srv.isReady.Store(true)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", ln.Addr().String())
		errCh <- srv.httpServer.Serve(ln)
	}()
	go srv.janitor(ctx)

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("serving on %s: %w", ln.Addr(), err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down server...", "reason", context.Cause(ctx))
	}

	srv.isReady.Store(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), srv.Options.ShutdownTimeout)
	defer cancel()
	if err := srv.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown.", "error", err)
	}
	if srv.healthServer != nil {
		if err := srv.healthServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Health server forced to shutdown.", "error", err)
		}
	}
	srv.isRunning.Store(false)
	srv.logStats()
	return serveErr
}

// janitor prunes idle rate limiters until ctx is done.
func (srv *Server) janitor(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := srv.pruneLimiters(limiterIdleTimeout); n > 0 {
				logger.Debug("Pruned idle rate limiters", "count", n)
			}
		}
	}
}

func (srv *Server) logStats() {
	tp := uint64(0)
	resp := srv.totalResponseTime.Load()
	if resp != 0 {
		tp = srv.totalRequests.Load() / uint64(resp)
	}
	logger.Info("Server is shut down.", "up-time", time.Since(srv.serverStart), "µs-in-handlers", resp,
		"total-req", srv.totalRequests.Load(),
		"avg-handles-per-µs", tp)
}

// helper function to initialise the health server
func (srv *Server) initHealthServer() {
	healthMux := http.NewServeMux()
	srv.healthServer = &http.Server{
		Addr:    srv.Options.HealthAddr,
		Handler: healthMux,
	}
	logger.Info("Health server initialised.", "addr", srv.Options.HealthAddr)

	// add built-in probing endpoints
	healthMux.HandleFunc("/healthz/", srv.healthzHandler)
	healthMux.HandleFunc("/readyz/", srv.readyzHandler)
	healthMux.HandleFunc("/livez/", srv.livezHandler)
}

// WithAddr is a configuration option for the server to define the listen address.
func WithAddr(addr string) ServerOptionFunc {
	return func(srv *Server) error {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("setting address option: %w", err)
		}
		srv.Options.Addr = addr
		return nil
	}
}

// WithPort listens on all interfaces on port. An empty port keeps the configured address.
func WithPort(port string) ServerOptionFunc {
	return func(srv *Server) error {
		if port == "" {
			return nil
		}
		return srv.Options.SetPort(port)
	}
}

// WithHealthServer enables the health server on a different port.
func WithHealthServer() ServerOptionFunc {
	return func(srv *Server) error {
		srv.Options.RunHealthServer = true
		return nil
	}
}

// WithLogger replaces the default with a custom logger.
func WithLogger(l *slog.Logger) ServerOptionFunc {
	return func(srv *Server) error {
		SetDefaultLogger(l)
		return nil
	}
}

// WithTimeouts adds timeouts to the server. Zero values keep the defaults.
func WithTimeouts(readTimeout, writeTimeout, idleTimeout time.Duration) ServerOptionFunc {
	return func(srv *Server) error {
		srv.setTimeouts(readTimeout, writeTimeout, idleTimeout)
		return nil
	}
}

// WithRateLimit sets rate limiting parameters of the server.
func WithRateLimit(limit rateLimit, burst int) ServerOptionFunc {
	return func(srv *Server) error {
		if limit <= 0 || burst <= 0 {
			return fmt.Errorf("rate limit and burst must be positive, got %v/%d", limit, burst)
		}
		srv.Options.RateLimit = limit
		srv.Options.Burst = burst
		return nil
	}
}

// WithStaticDir sets the directory served under /static.
func WithStaticDir(dir string) ServerOptionFunc {
	return func(srv *Server) error {
		srv.Options.StaticDir = dir
		return nil
	}
}

// WithMaxBodyBytes limits the size of parsed request bodies.
func WithMaxBodyBytes(n int64) ServerOptionFunc {
	return func(srv *Server) error {
		srv.Options.MaxBodyBytes = n
		return nil
	}
}

// WithHardenedMode omits the Server header from responses.
func WithHardenedMode() ServerOptionFunc {
	return func(srv *Server) error {
		srv.Options.HardenedMode = true
		return nil
	}
}

// WithJWTSecret sets the HMAC secret used to verify bearer tokens.
func WithJWTSecret(secret string) ServerOptionFunc {
	return func(srv *Server) error {
		srv.Options.JWTSecret = secret
		return nil
	}
}

// WithCORS sets the CORS policy applied by routes using CORS(srv.Options.CORS).
func WithCORS(opts *CORSOptions) ServerOptionFunc {
	return func(srv *Server) error {
		srv.Options.CORS = opts
		return nil
	}
}
