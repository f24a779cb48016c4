package hyperroute

import (
	"net/http"
	"path"
	"slices"
	"strconv"
	"strings"
)

// CORSOptions configures Cross-Origin Resource Sharing for the routes
// mounted behind [CORS]. Origins may be exact ("https://example.com"),
// glob patterns ("https://*.example.com"), any port ("http://localhost:*")
// or "*".
type CORSOptions struct {
	AllowedOrigins   []string `json:"allowed_origins,omitempty"`
	AllowedMethods   []string `json:"allowed_methods,omitempty"`
	AllowedHeaders   []string `json:"allowed_headers,omitempty"`
	ExposeHeaders    []string `json:"expose_headers,omitempty"`
	AllowCredentials bool     `json:"allow_credentials,omitempty"`
	MaxAgeSeconds    int      `json:"max_age_seconds,omitempty"`
}

var (
	defaultCORSMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	defaultCORSHeaders = []string{"Content-Type", "Authorization"}
)

const defaultCORSMaxAge = 600

// corsPolicy is CORSOptions compiled for lookups on every request.
type corsPolicy struct {
	anyOrigin   bool
	exact       map[string]bool
	patterns    []string
	credentials bool

	allowMethods  string
	allowHeaders  string
	exposeHeaders string
	maxAge        string
}

func newCORSPolicy(opts *CORSOptions) *corsPolicy {
	if opts == nil {
		return &corsPolicy{}
	}
	p := &corsPolicy{
		exact:         make(map[string]bool),
		credentials:   opts.AllowCredentials,
		allowMethods:  headerList(opts.AllowedMethods, defaultCORSMethods, true),
		allowHeaders:  headerList(opts.AllowedHeaders, defaultCORSHeaders, false),
		exposeHeaders: headerList(opts.ExposeHeaders, nil, false),
		maxAge:        strconv.Itoa(defaultCORSMaxAge),
	}
	if opts.MaxAgeSeconds > 0 {
		p.maxAge = strconv.Itoa(opts.MaxAgeSeconds)
	}
	for _, o := range opts.AllowedOrigins {
		o = strings.ToLower(strings.TrimSpace(o))
		switch {
		case o == "":
		case o == "*":
			p.anyOrigin = true
		case strings.Contains(o, "*"):
			p.patterns = append(p.patterns, o)
		default:
			p.exact[o] = true
		}
	}
	return p
}

// headerList trims, dedupes and sorts tokens into a header value. Empty
// input falls back to defaults.
func headerList(tokens, defaults []string, upper bool) string {
	var out []string
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if upper {
			t = strings.ToUpper(t)
		}
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		out = slices.Clone(defaults)
	}
	slices.Sort(out)
	return strings.Join(out, ", ")
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin.
// With credentials a wildcard answers with the origin itself.
func (p *corsPolicy) allowOrigin(origin string) (string, bool) {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return "", false
	}
	if p.anyOrigin {
		if p.credentials {
			return origin, true
		}
		return "*", true
	}
	lower := strings.ToLower(origin)
	if p.exact[lower] {
		return origin, true
	}
	for _, pattern := range p.patterns {
		if ok, err := path.Match(pattern, lower); err == nil && ok {
			return origin, true
		}
		// "scheme://host:*" accepts any port
		if prefix, found := strings.CutSuffix(pattern, ":*"); found && strings.HasPrefix(lower, prefix+":") {
			return origin, true
		}
	}
	return "", false
}

// CORS returns a route handler applying opts. Allowed origins get the
// Access-Control headers; preflight requests are answered with 204 and
// everything else continues down the chain. A nil opts allows no origin.
func CORS(opts *CORSOptions) HandlerFunc {
	policy := newCORSPolicy(opts)
	return func(c *Context) error {
		h := c.Response.Header()
		h.Add("Vary", "Origin")
		allowed, ok := policy.allowOrigin(c.Request.Header.Get("Origin"))
		if !ok {
			c.Next()
			return nil
		}
		h.Set("Access-Control-Allow-Origin", allowed)
		if policy.credentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}
		if policy.exposeHeaders != "" {
			h.Set("Access-Control-Expose-Headers", policy.exposeHeaders)
		}

		if c.Method() == http.MethodOptions && c.Request.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", policy.allowMethods)
			h.Set("Access-Control-Allow-Headers", policy.allowHeaders)
			h.Set("Access-Control-Max-Age", policy.maxAge)
			return c.Status(http.StatusNoContent).End()
		}
		c.Next()
		return nil
	}
}
