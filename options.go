package hyperroute

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Environment management variable names
const (
	paramServerAddr = "SERVER_ADDR"
	paramHealthAddr = "HEALTH_ADDR"
	paramPort       = "PORT"
	paramJWTSecret  = "JWT_SECRET"
	paramFileName   = "options.json"
)

// rateLimit limits requests per second per client. Requires [RateLimitMiddleware].
type rateLimit = rate.Limit

// ServerOptions is a representation of the Server settings
type ServerOptions struct {
	Addr            string        `json:"addr,omitempty"`
	HealthAddr      string        `json:"health_addr,omitempty"`
	RateLimit       rateLimit     `json:"rate_limit,omitempty"`
	Burst           int           `json:"burst,omitempty"`
	ReadTimeout     time.Duration `json:"read_timeout,omitempty"`
	WriteTimeout    time.Duration `json:"write_timeout,omitempty"`
	IdleTimeout     time.Duration `json:"idle_timeout,omitempty"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout,omitempty"`
	StaticDir       string        `json:"static_dir,omitempty"`
	MaxBodyBytes    int64         `json:"max_body_bytes,omitempty"`
	RunHealthServer bool          `json:"run_health_server,omitempty"`
	HardenedMode    bool          `json:"hardened_mode,omitempty"`
	JWTSecret       string        `json:"jwt_secret,omitempty"`
	CORS            *CORSOptions  `json:"cors,omitempty"`
}

var defaultServerOptions = ServerOptions{
	Addr:            ":3000",
	HealthAddr:      ":9080",
	RateLimit:       100,
	Burst:           200,
	ReadTimeout:     5 * time.Second,
	WriteTimeout:    10 * time.Second,
	IdleTimeout:     120 * time.Second,
	ShutdownTimeout: 5 * time.Second,
	StaticDir:       "static/",
	MaxBodyBytes:    DefaultMaxBodyBytes,
	RunHealthServer: false,
}

// Wrappers for debug levels to be used in the server. We're using slog for logging,
// but want to hide this detail from the client
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// NewServerOptions creates a new configuration for the server with a priority order:
// 1. Environment variables
// 2. ServerOptions file (JSON)
// 3. Default values
//
// Options passed to NewServer and the command line are applied on top.
func NewServerOptions() *ServerOptions {
	config := defaultServerOptions
	return applyEnvVars(applyConfigFile(&config, paramFileName))
}

// SetPort sets the listen address to all interfaces on port.
func (o *ServerOptions) SetPort(port string) error {
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("invalid port %q", port)
	}
	o.Addr = ":" + strconv.Itoa(n)
	return nil
}

// helper to read environment variables and apply them to the options
func applyEnvVars(config *ServerOptions) *ServerOptions {
	if port := os.Getenv(paramPort); port != "" {
		if err := config.SetPort(port); err != nil {
			logger.Warn("Ignoring environment variable", "variable", paramPort, "error", err)
		} else {
			logger.Info("Server port set from environment variable", "variable", paramPort, "addr", config.Addr)
		}
	}
	if addr := os.Getenv(paramServerAddr); addr != "" {
		config.Addr = addr
		logger.Info("Server address set from environment variable", "variable", paramServerAddr, "addr", addr)
	}
	if healthAddr := os.Getenv(paramHealthAddr); healthAddr != "" {
		config.HealthAddr = healthAddr
		logger.Info("Health endpoint address set from environment variable", "variable", paramHealthAddr, "addr", healthAddr)
	}
	if secret := os.Getenv(paramJWTSecret); secret != "" {
		config.JWTSecret = secret
		logger.Info("JWT secret set from environment variable", "variable", paramJWTSecret)
	}
	return config
}

// helper to read an options file and apply it to the options
func applyConfigFile(config *ServerOptions, fileName string) *ServerOptions {
	file, err := os.Open(fileName)
	if err != nil {
		logger.Debug("No options file; using environment and defaults", "file", fileName)
		return config
	}

	// make sure file is closed after reading
	defer func(file *os.File) {
		err := file.Close()
		if err != nil {
			logger.Error("Failed to close file", "error", err, "file-name", file.Name())
		}
	}(file)

	decoder := json.NewDecoder(file)
	fileConfig := &ServerOptions{}
	if err := decoder.Decode(fileConfig); err != nil {
		logger.Warn("Loading options file failed; using environment and defaults", "file", fileName, "error", err)
		return config
	}
	logger.Info("Server configuration loaded from file", "file", fileName)
	mergeConfig(config, fileConfig)
	return config
}

// mergeConfig overrides default options with values of override if set
func mergeConfig(base *ServerOptions, override *ServerOptions) {
	if override.Addr != "" {
		base.Addr = override.Addr
	}
	if override.HealthAddr != "" {
		base.HealthAddr = override.HealthAddr
	}
	if override.RateLimit != 0 {
		base.RateLimit = override.RateLimit
	}
	if override.Burst != 0 {
		base.Burst = override.Burst
	}
	if override.ReadTimeout != 0 {
		base.ReadTimeout = override.ReadTimeout
	}
	if override.WriteTimeout != 0 {
		base.WriteTimeout = override.WriteTimeout
	}
	if override.IdleTimeout != 0 {
		base.IdleTimeout = override.IdleTimeout
	}
	if override.ShutdownTimeout != 0 {
		base.ShutdownTimeout = override.ShutdownTimeout
	}
	if override.StaticDir != "" {
		base.StaticDir = override.StaticDir
	}
	if override.MaxBodyBytes != 0 {
		base.MaxBodyBytes = override.MaxBodyBytes
	}
	if override.RunHealthServer {
		base.RunHealthServer = true
	}
	if override.HardenedMode {
		base.HardenedMode = true
	}
	if override.JWTSecret != "" {
		base.JWTSecret = override.JWTSecret
	}
	if override.CORS != nil {
		base.CORS = override.CORS
	}
}

// setTimeouts helper to apply only custom values or retain the server default
func (srv *Server) setTimeouts(readTimeout, writeTimeout, idleTimeout time.Duration) {
	if readTimeout != 0 {
		srv.Options.ReadTimeout = readTimeout
	}
	if writeTimeout != 0 {
		srv.Options.WriteTimeout = writeTimeout
	}
	if idleTimeout != 0 {
		srv.Options.IdleTimeout = idleTimeout
	}
}
