package hyperroute

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/osauer/hyperroute/internal/responsewriter"
)

// ErrResponseSent is returned by every write after a response was finished.
var ErrResponseSent = errors.New("hyperroute: response already sent")

// Response is the per-request response. Writes may be streamed with Write;
// End, Send, JSON or SendFile finish the response and set the sent flag.
// Once sent, every further write fails with ErrResponseSent.
type Response struct {
	rec    *responsewriter.Recorder
	req    *http.Request
	status int
	sent   bool
}

func newResponse(w http.ResponseWriter, r *http.Request) *Response {
	return &Response{
		rec:    responsewriter.New(w),
		req:    r,
		status: http.StatusOK,
	}
}

// Header returns the response header map.
func (res *Response) Header() http.Header {
	return res.rec.Header()
}

// Status sets the status code for the response. It has no effect once the
// headers went out.
func (res *Response) Status(code int) *Response {
	if !res.rec.HeaderWritten() {
		res.status = code
	}
	return res
}

// StatusCode returns the status that was or will be sent.
func (res *Response) StatusCode() int {
	if res.rec.HeaderWritten() {
		return res.rec.Status()
	}
	return res.status
}

// Sent reports whether the response is finished.
func (res *Response) Sent() bool {
	return res.sent
}

// HeadersSent reports whether the status line and headers reached the client
// or the connection was hijacked.
func (res *Response) HeadersSent() bool {
	return res.rec.HeaderWritten() || res.rec.Hijacked()
}

// Size returns the number of body bytes written so far.
func (res *Response) Size() int {
	return res.rec.Size()
}

// Write appends p to the body, sending the headers on the first call.
func (res *Response) Write(p []byte) (int, error) {
	if res.sent {
		return 0, ErrResponseSent
	}
	res.writeHeader()
	return res.rec.Write(p)
}

// WriteString appends s to the body.
func (res *Response) WriteString(s string) (int, error) {
	return res.Write([]byte(s))
}

// End finishes the response. Headers are sent if nothing was written yet.
func (res *Response) End() error {
	if res.sent {
		return ErrResponseSent
	}
	res.writeHeader()
	res.sent = true
	return nil
}

// Send writes body and finishes the response. Without an explicit
// Content-Type the body is sent as HTML.
func (res *Response) Send(body string) error {
	if res.sent {
		return ErrResponseSent
	}
	h := res.Header()
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", "text/html; charset=utf-8")
	}
	if !res.rec.HeaderWritten() {
		h.Set("Content-Length", strconv.Itoa(len(body)))
	}
	if _, err := res.WriteString(body); err != nil {
		res.sent = true
		return fmt.Errorf("writing response body: %w", err)
	}
	return res.End()
}

// Sendf formats according to a format specifier and sends the result.
func (res *Response) Sendf(format string, args ...any) error {
	return res.Send(fmt.Sprintf(format, args...))
}

// SendStatus sends the status code with its status text as body.
func (res *Response) SendStatus(code int) error {
	res.Header().Set("Content-Type", "text/plain; charset=utf-8")
	return res.Status(code).Send(http.StatusText(code))
}

// JSON encodes v and sends it with an application/json content type.
func (res *Response) JSON(v any) error {
	if res.sent {
		return ErrResponseSent
	}
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding json response: %w", err)
	}
	res.Header().Set("Content-Type", "application/json; charset=utf-8")
	return res.Send(string(body))
}

// SendFile streams the file at name, inferring the content type from its
// extension. A missing file yields a 404 HTTPError.
func (res *Response) SendFile(name string) error {
	if res.sent {
		return ErrResponseSent
	}
	fi, err := os.Stat(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewHTTPError(http.StatusNotFound, err)
		}
		return fmt.Errorf("stat %s: %w", name, err)
	}
	if fi.IsDir() {
		return NewHTTPError(http.StatusNotFound, fmt.Errorf("%s is a directory", name))
	}
	http.ServeFile(res.rec, res.req, name)
	res.sent = true
	return nil
}

// ResponseWriter exposes the underlying writer for handlers that need a plain
// http.ResponseWriter, such as http.Handler adapters or protocol upgrades.
// Callers must call MarkSent once they finished with it.
func (res *Response) ResponseWriter() http.ResponseWriter {
	return res.rec
}

// MarkSent records that the response was completed through ResponseWriter.
func (res *Response) MarkSent() {
	res.sent = true
}

func (res *Response) writeHeader() {
	if !res.rec.HeaderWritten() {
		res.rec.WriteHeader(res.status)
	}
}
