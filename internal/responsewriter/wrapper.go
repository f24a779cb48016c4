// Package responsewriter provides an http.ResponseWriter wrapper that records
// what has been written while preserving optional interfaces like Hijacker,
// Flusher and ReaderFrom.
package responsewriter

import (
	"bufio"
	"io"
	"net"
	"net/http"
)

// Wrapper is an interface that all ResponseWriter wrappers should implement
type Wrapper interface {
	http.ResponseWriter
	// Unwrap returns the original ResponseWriter
	Unwrap() http.ResponseWriter
}

// Recorder wraps an http.ResponseWriter and tracks the status code, the number
// of body bytes and whether the header has gone out on the wire.
type Recorder struct {
	http.ResponseWriter
	status   int
	size     int
	wrote    bool
	hijacked bool
}

// New returns a Recorder around w.
func New(w http.ResponseWriter) *Recorder {
	return &Recorder{ResponseWriter: w}
}

// Status returns the status code sent, or 200 if nothing has been sent yet.
func (rec *Recorder) Status() int {
	if rec.status == 0 {
		return http.StatusOK
	}
	return rec.status
}

// Size returns the number of body bytes written.
func (rec *Recorder) Size() int {
	return rec.size
}

// HeaderWritten reports whether the status line and headers were sent.
func (rec *Recorder) HeaderWritten() bool {
	return rec.wrote
}

// Hijacked reports whether the connection was taken over by the handler.
func (rec *Recorder) Hijacked() bool {
	return rec.hijacked
}

// WriteHeader sends the header once; later calls are ignored.
func (rec *Recorder) WriteHeader(code int) {
	if rec.wrote || rec.hijacked {
		return
	}
	rec.status = code
	rec.wrote = true
	rec.ResponseWriter.WriteHeader(code)
}

// Write sends b, implicitly writing a 200 header first.
func (rec *Recorder) Write(b []byte) (int, error) {
	if rec.hijacked {
		return 0, http.ErrHijacked
	}
	if !rec.wrote {
		rec.WriteHeader(http.StatusOK)
	}
	n, err := rec.ResponseWriter.Write(b)
	rec.size += n
	return n, err
}

// Unwrap returns the original ResponseWriter
func (rec *Recorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// Hijack implements http.Hijacker interface if the underlying ResponseWriter supports it
func (rec *Recorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	conn, rw, err := hijacker.Hijack()
	if err == nil {
		rec.hijacked = true
	}
	return conn, rw, err
}

// Flush implements http.Flusher interface if the underlying ResponseWriter supports it
func (rec *Recorder) Flush() {
	if !rec.wrote {
		rec.WriteHeader(http.StatusOK)
	}
	if flusher, ok := rec.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// ReadFrom implements io.ReaderFrom so http.ServeContent keeps its sendfile fast path.
func (rec *Recorder) ReadFrom(r io.Reader) (n int64, err error) {
	if !rec.wrote {
		rec.WriteHeader(http.StatusOK)
	}
	if rf, ok := rec.ResponseWriter.(io.ReaderFrom); ok {
		n, err = rf.ReadFrom(r)
	} else {
		n, err = io.Copy(rec.ResponseWriter, r)
	}
	rec.size += int(n)
	return n, err
}

// Push implements http.Pusher interface if the underlying ResponseWriter supports it
func (rec *Recorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := rec.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}

// Ensure Recorder implements all optional interfaces
var (
	_ Wrapper       = (*Recorder)(nil)
	_ http.Hijacker = (*Recorder)(nil)
	_ http.Flusher  = (*Recorder)(nil)
	_ io.ReaderFrom = (*Recorder)(nil)
	_ http.Pusher   = (*Recorder)(nil)
)
