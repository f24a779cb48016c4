package hyperroute

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// WebSocketFunc serves an upgraded connection. The connection is closed when
// it returns.
type WebSocketFunc func(c *Context, conn *websocket.Conn) error

// WebSocket returns a route handler that upgrades WebSocket handshakes and
// hands the connection to fn. Requests that are not handshakes continue down
// the chain. A nil upgrader uses same-origin checking and default buffers.
func WebSocket(upgrader *websocket.Upgrader, fn WebSocketFunc) HandlerFunc {
	if upgrader == nil {
		upgrader = &websocket.Upgrader{}
	}
	return func(c *Context) error {
		if !websocket.IsWebSocketUpgrade(c.Request) {
			c.Next()
			return nil
		}
		conn, err := upgrader.Upgrade(c.Response.ResponseWriter(), c.Request, nil)
		// the upgrader has answered the handshake either way
		c.Response.MarkSent()
		if err != nil {
			logger.Warn("WebSocket upgrade failed", "url", c.OriginalURL(), "error", err)
			return nil
		}
		defer conn.Close()

		if err := fn(c, conn); err != nil && !isNormalClose(err) {
			logger.Error("WebSocket handler failed", "url", c.OriginalURL(), "error", err)
		}
		return nil
	}
}

// EchoSocket writes every message it receives back to the peer.
func EchoSocket(c *Context, conn *websocket.Conn) error {
	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(mt, msg); err != nil {
			return err
		}
	}
}

func isNormalClose(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return true
	}
	return errors.Is(err, http.ErrServerClosed)
}

// OriginChecker returns a CheckOrigin function for websocket.Upgrader.
// Handshakes without an Origin header or from the request's own host pass,
// other origins must be allowed by opts.
func OriginChecker(opts *CORSOptions) func(r *http.Request) bool {
	policy := newCORSPolicy(opts)
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
			return true
		}
		_, ok := policy.allowOrigin(origin)
		return ok
	}
}
