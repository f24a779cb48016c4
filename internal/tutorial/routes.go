// Package tutorial wires the demo routes served by the cmd programs.
package tutorial

import (
	"errors"
	"html"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/osauer/hyperroute"
)

// Config selects the directories and secrets the tutorial routes use.
type Config struct {
	StaticDir    string
	ImageDir     string
	MaxBodyBytes int64
	JWTSecret    []byte
	CORS         *hyperroute.CORSOptions
	Upgrader     *websocket.Upgrader
}

// RegisterBasic registers the two greeting routes and the static mount.
func RegisterBasic(r *hyperroute.Router, staticDir string) {
	r.Get("/hello", hello)
	r.Get("/goodbye", goodbye)
	r.Mount("/static", hyperroute.Static(staticDir))
}

// Register registers the full route table. Order matters: entries are
// matched in the order they appear here.
func Register(r *hyperroute.Router, cfg Config) {
	imageDir := cfg.ImageDir
	if imageDir == "" {
		imageDir = filepath.Join(cfg.StaticDir, "img")
	}

	r.Get("/hello", hello)
	r.Get("/goodbye", goodbye)
	r.Get("/internal-error", internalError)

	r.Mount("/static", hyperroute.Static(cfg.StaticDir))

	// the ALL entry starts a chain that the GET or POST entry ends
	r.All("/", anyRequest)
	r.Get("/", getRequest)
	r.Post("/", postRequest)

	r.Get("/user+details", echoURL)
	r.Get(regexp.MustCompile(`ufabc`), echoURL)

	r.Get("/query", queryJSON)
	r.Get("/greet", greet)

	r.Get("/process2", func(c *hyperroute.Context) error {
		c.Data = c.QueryValues()
		c.Next()
		return nil
	})
	r.Post("/process2", hyperroute.URLEncoded(cfg.MaxBodyBytes), func(c *hyperroute.Context) error {
		c.Data = c.Body
		c.Next()
		return nil
	})
	r.All("/process2", processForm)

	r.Get("/name/:fname/:lname", nameGreeting)
	r.Get("/users/:userid/profile_photo", profilePhoto(imageDir))

	r.Get("/break-it", breakIt)

	r.Mount("/api", hyperroute.CORS(cfg.CORS))
	r.Get("/api/secret", hyperroute.RequireBearer(hyperroute.JWTValidator(cfg.JWTSecret)), secret)

	r.Get("/ws/echo", hyperroute.WebSocket(cfg.Upgrader, hyperroute.EchoSocket))

	// failures and unmatched requests use the router defaults:
	// 500 "Something broke!" and 404 "This resource does not exist"
}

func hello(c *hyperroute.Context) error {
	return c.Send("Hello World!")
}

func goodbye(c *hyperroute.Context) error {
	return c.Send("Goodbye World!")
}

func internalError(c *hyperroute.Context) error {
	return c.Status(http.StatusInternalServerError).Send("Internal server error")
}

func anyRequest(c *hyperroute.Context) error {
	if _, err := c.Response.WriteString("<p>You made any HTTP request</p>"); err != nil {
		return err
	}
	c.Next()
	return nil
}

func getRequest(c *hyperroute.Context) error {
	if _, err := c.Response.WriteString("<p>You made a GET request</p>"); err != nil {
		return err
	}
	return c.Response.End()
}

func postRequest(c *hyperroute.Context) error {
	if _, err := c.Response.WriteString("<p>You made a POST request</p>"); err != nil {
		return err
	}
	return c.Response.End()
}

func echoURL(c *hyperroute.Context) error {
	return c.Send(c.OriginalURL())
}

func queryJSON(c *hyperroute.Context) error {
	return c.JSON(c.QueryMap())
}

// greet renders the names from the query string, or usage help when one is missing.
func greet(c *hyperroute.Context) error {
	q := c.QueryValues()
	if q.Has("fname") && q.Has("lname") {
		return c.Sendf("<p>Hello, %s %s!</p>", escape(q.Get("fname")), escape(q.Get("lname")))
	}
	return c.Send("Usage: /greet?fname=<first-name>&lname=<last-name>")
}

func processForm(c *hyperroute.Context) error {
	first, last := field(c.Data, "first-name"), field(c.Data, "last-name")
	if first == "" || last == "" {
		return c.Send("Both first name and last name are required")
	}
	return c.Sendf("Hello, %s %s.\nWelcome to our Website.", escape(first), escape(last))
}

func field(values url.Values, key string) string {
	if values == nil {
		return ""
	}
	return strings.TrimSpace(values.Get(key))
}

func nameGreeting(c *hyperroute.Context) error {
	hyperroute.DefaultLogger().Info("Route parameters", "params", c.Params)
	return c.Sendf("Hello, %s %s!", escape(c.Param("fname")), escape(c.Param("lname")))
}

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func profilePhoto(imageDir string) hyperroute.HandlerFunc {
	return func(c *hyperroute.Context) error {
		id := c.Param("userid")
		if !userIDPattern.MatchString(id) {
			return c.Response.SendStatus(http.StatusBadRequest)
		}
		err := c.Response.SendFile(filepath.Join(imageDir, "profile_photo_"+id+".jpeg"))
		var he *hyperroute.HTTPError
		if errors.As(err, &he) {
			return c.Response.SendStatus(he.Code)
		}
		return err
	}
}

var errUhOh = errors.New("uh-oh")

func breakIt(c *hyperroute.Context) error {
	return errUhOh
}

func secret(c *hyperroute.Context) error {
	return c.JSON(map[string]any{"authenticated": true})
}

func escape(s string) string {
	return html.EscapeString(s)
}
