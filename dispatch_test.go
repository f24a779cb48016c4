package hyperroute

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func send(body string) HandlerFunc {
	return func(c *Context) error {
		return c.Send(body)
	}
}

func write(body string) HandlerFunc {
	return func(c *Context) error {
		if _, err := c.Response.WriteString(body); err != nil {
			return err
		}
		c.Next()
		return nil
	}
}

func pass(c *Context) error {
	c.Next()
	return nil
}

func mustNotRun(t *testing.T) HandlerFunc {
	return func(c *Context) error {
		t.Errorf("handler must not run for %s %s", c.Method(), c.Path())
		return nil
	}
}

func TestDispatchFirstMatchingEntrySends(t *testing.T) {
	t.Parallel()
	r := NewRouter()
	r.Get("/hello", send("Hello World!"))
	r.Get("/hello", mustNotRun(t))

	rec := serve(r, http.MethodGet, "/hello")
	if rec.Code != http.StatusOK {
		t.Errorf("expected status %v, got %v", http.StatusOK, rec.Code)
	}
	if rec.Body.String() != "Hello World!" {
		t.Errorf("expected body 'Hello World!', got %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("expected html content type, got %q", ct)
	}
}

func TestDispatchContinuationAcrossEntries(t *testing.T) {
	t.Parallel()
	r := NewRouter()
	r.All("/", write("<p>any</p>"))
	r.Get("/", func(c *Context) error {
		c.Response.WriteString("<p>get</p>")
		return c.Response.End()
	})
	r.Post("/", func(c *Context) error {
		c.Response.WriteString("<p>post</p>")
		return c.Response.End()
	})

	tests := []struct {
		method string
		body   string
	}{
		{http.MethodGet, "<p>any</p><p>get</p>"},
		{http.MethodPost, "<p>any</p><p>post</p>"},
	}
	for _, tt := range tests {
		rec := serve(r, tt.method, "/")
		if rec.Body.String() != tt.body {
			t.Errorf("%s: expected body %q, got %q", tt.method, tt.body, rec.Body.String())
		}
	}
}

func TestDispatchHandlersOfOneEntryRunInOrder(t *testing.T) {
	t.Parallel()
	r := NewRouter()
	r.Get("/chain", write("a"), write("b"), func(c *Context) error {
		return c.Send("c")
	})

	rec := serve(r, http.MethodGet, "/chain")
	if rec.Body.String() != "abc" {
		t.Errorf("expected body 'abc', got %q", rec.Body.String())
	}
}

func TestDispatchNoMatchReachesNotFound(t *testing.T) {
	t.Parallel()
	r := NewRouter()
	r.Get("/hello", send("hello"))

	rec := serve(r, http.MethodGet, "/nowhere")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %v, got %v", http.StatusNotFound, rec.Code)
	}
	if rec.Body.String() != "This resource does not exist" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestDispatchExhaustedChainReachesNotFoundOnce(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	r := NewRouter()
	r.Use(pass)
	r.Get("/x", pass, pass)
	r.NotFound(func(c *Context) error {
		calls.Add(1)
		return c.Status(http.StatusNotFound).Send("missing")
	})

	rec := serve(r, http.MethodGet, "/x")
	if calls.Load() != 1 {
		t.Errorf("expected not-found handler to run once, ran %d times", calls.Load())
	}
	if rec.Code != http.StatusNotFound || rec.Body.String() != "missing" {
		t.Errorf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
}

func TestDispatchMethodFilter(t *testing.T) {
	t.Parallel()
	r := NewRouter()
	r.Get("/only-get", send("got"))

	rec := serve(r, http.MethodPost, "/only-get")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected POST to miss GET entry, got status %v body %q", rec.Code, rec.Body.String())
	}

	rec = serve(r, http.MethodHead, "/only-get")
	if rec.Code != http.StatusOK {
		t.Errorf("expected HEAD to match GET entry, got status %v", rec.Code)
	}
}

func TestDispatchHandlerErrorGoesToErrorHandler(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	var got error
	boom := errors.New("boom")

	r := NewRouter()
	r.Get("/break-it", func(c *Context) error { return boom }, mustNotRun(t))
	r.Get("/break-it", mustNotRun(t))
	r.OnError(func(c *Context, err error) error {
		calls.Add(1)
		got = err
		return c.Status(http.StatusInternalServerError).Send("Something broke!")
	})

	rec := serve(r, http.MethodGet, "/break-it")
	if calls.Load() != 1 {
		t.Errorf("expected error handler to run once, ran %d times", calls.Load())
	}
	if !errors.Is(got, boom) {
		t.Errorf("expected error %v, got %v", boom, got)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status %v, got %v", http.StatusInternalServerError, rec.Code)
	}
	if rec.Body.String() != "Something broke!" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestDispatchPanicGoesToErrorHandler(t *testing.T) {
	t.Parallel()
	r := NewRouter()
	r.Get("/panic", func(c *Context) error { panic("Intentional panic.") })
	r.Get("/panic", mustNotRun(t))

	rec := serve(r, http.MethodGet, "/panic")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status %v, got %v", http.StatusInternalServerError, rec.Code)
	}
	if rec.Body.String() != "Something broke!" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestDispatchNextErrSkipsRemainingHandlers(t *testing.T) {
	t.Parallel()
	r := NewRouter()
	r.Use(func(c *Context) error {
		c.NextErr(errors.New("rejected"))
		return nil
	})
	r.Get("/x", mustNotRun(t))

	rec := serve(r, http.MethodGet, "/x")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status %v, got %v", http.StatusInternalServerError, rec.Code)
	}
}

func TestDispatchRaisedHTTPErrorYields500(t *testing.T) {
	t.Parallel()
	r := NewRouter()
	r.Get("/bad", func(c *Context) error {
		return NewHTTPError(http.StatusBadRequest, errors.New("missing id"))
	})

	rec := serve(r, http.MethodGet, "/bad")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status %v, got %v", http.StatusInternalServerError, rec.Code)
	}
	if rec.Body.String() != "Something broke!" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestDispatchHaltWithoutSendingEndsResponse(t *testing.T) {
	t.Parallel()
	r := NewRouter()
	r.Get("/partial", func(c *Context) error {
		c.Response.WriteString("partial")
		return nil
	})
	r.Get("/partial", mustNotRun(t))
	r.NotFound(mustNotRun(t))

	rec := serve(r, http.MethodGet, "/partial")
	if rec.Code != http.StatusOK || rec.Body.String() != "partial" {
		t.Errorf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
}

func TestDispatchErrorHandlerWithoutResponseFallsBackTo500(t *testing.T) {
	t.Parallel()
	r := NewRouter()
	r.Get("/x", func(c *Context) error { return errors.New("boom") })
	r.OnError(func(c *Context, err error) error {
		c.Next()
		return nil
	})

	rec := serve(r, http.MethodGet, "/x")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status %v, got %v", http.StatusInternalServerError, rec.Code)
	}
}

func TestDispatchNotFoundWithoutResponseFallsBackTo404(t *testing.T) {
	t.Parallel()
	r := NewRouter()
	r.NotFound(func(c *Context) error { return nil })

	rec := serve(r, http.MethodGet, "/x")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %v, got %v", http.StatusNotFound, rec.Code)
	}
}

func expectAbort(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if v := recover(); v != http.ErrAbortHandler {
			t.Errorf("expected panic with http.ErrAbortHandler, got %v", v)
		}
	}()
	fn()
}

func TestDispatchErrorHandlerReRaiseAbortsConnection(t *testing.T) {
	t.Parallel()
	r := NewRouter()
	r.Get("/x", func(c *Context) error { return errors.New("boom") })
	r.OnError(func(c *Context, err error) error { return err })

	expectAbort(t, func() { serve(r, http.MethodGet, "/x") })
}

func TestDispatchErrorAfterHeadersSentAbortsConnection(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	r := NewRouter()
	r.Get("/x", func(c *Context) error {
		c.Response.WriteString("streaming")
		return errors.New("late failure")
	})
	r.OnError(func(c *Context, err error) error {
		calls.Add(1)
		return nil
	})

	expectAbort(t, func() { serve(r, http.MethodGet, "/x") })
	if calls.Load() != 0 {
		t.Errorf("expected error handler to be skipped, ran %d times", calls.Load())
	}
}

func TestDispatchErrorAfterSendIsOnlyLogged(t *testing.T) {
	t.Parallel()
	r := NewRouter()
	r.Get("/hello", func(c *Context) error {
		if err := c.Send("first"); err != nil {
			return err
		}
		return c.Send("second")
	})

	rec := serve(r, http.MethodGet, "/hello")
	if rec.Body.String() != "first" {
		t.Errorf("expected exactly one response body, got %q", rec.Body.String())
	}
}

func TestDispatchBindsParamsPerEntry(t *testing.T) {
	t.Parallel()
	r := NewRouter()
	r.Mount("/users/:id", func(c *Context) error {
		c.Data.Set("mounted", c.Param("id")+":"+c.RelativePath())
		c.Next()
		return nil
	})
	r.Get("/users/:userid/profile_photo", func(c *Context) error {
		return c.Sendf("%s %s %q", c.Data.Get("mounted"), c.Param("userid"), c.Param("id"))
	})

	rec := serve(r, http.MethodGet, "/users/42/profile_photo")
	want := `42:/profile_photo 42 ""`
	if rec.Body.String() != want {
		t.Errorf("expected body %q, got %q", want, rec.Body.String())
	}
}

func TestDispatchAbandonsCancelledRequest(t *testing.T) {
	t.Parallel()
	r := NewRouter()
	r.Get("/x", mustNotRun(t))
	r.NotFound(mustNotRun(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/x", nil).WithContext(ctx)
	r.ServeHTTP(httptest.NewRecorder(), req)
}

func TestRouterRejectsRegistrationAfterServing(t *testing.T) {
	t.Parallel()
	r := NewRouter()
	r.Get("/", send("ok"))
	serve(r, http.MethodGet, "/")

	defer func() {
		if recover() == nil {
			t.Errorf("expected panic when registering after serving")
		}
	}()
	r.Get("/late", send("late"))
}

func TestRouterRejectsInvalidRegistration(t *testing.T) {
	t.Parallel()
	cases := map[string]func(r *Router){
		"no handlers":   func(r *Router) { r.Get("/x") },
		"nil handler":   func(r *Router) { r.Get("/x", nil) },
		"bad pattern":   func(r *Router) { r.Get("x", send("x")) },
		"pattern type":  func(r *Router) { r.Get(3, send("x")) },
		"nil on error":  func(r *Router) { r.OnError(nil) },
		"nil not found": func(r *Router) { r.NotFound(nil) },
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("expected panic")
				}
			}()
			fn(NewRouter())
		})
	}
}

func TestRouterRegistrationRacesFirstRequest(t *testing.T) {
	t.Parallel()
	r := NewRouter()
	r.Get("/", send("ok"))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			func() {
				// registration panics once the router is serving
				defer func() { recover() }()
				r.Get(fmt.Sprintf("/late/%d", i), send("late"))
			}()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			if rec := serve(r, http.MethodGet, "/"); rec.Body.String() != "ok" {
				t.Errorf("expected body 'ok', got %q", rec.Body.String())
			}
		}
	}()
	wg.Wait()
}

func TestDispatchRegexpMountBindsRelativePath(t *testing.T) {
	t.Parallel()
	r := NewRouter()
	r.Mount(regexp.MustCompile(`^/v(?P<version>[0-9]+)`), func(c *Context) error {
		return c.Sendf("%s %s", c.Param("version"), c.RelativePath())
	})

	rec := serve(r, http.MethodGet, "/v2/users/7")
	if rec.Body.String() != "2 /users/7" {
		t.Errorf("expected body '2 /users/7', got %q", rec.Body.String())
	}
}

func TestDispatchConcurrentRequests(t *testing.T) {
	t.Parallel()
	r := NewRouter()
	r.Get("/name/:fname/:lname", func(c *Context) error {
		return c.Sendf("Hello, %s %s!", c.Param("fname"), c.Param("lname"))
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := serve(r, http.MethodGet, fmt.Sprintf("/name/a%d/b%d", i, i))
			want := fmt.Sprintf("Hello, a%d b%d!", i, i)
			if rec.Body.String() != want {
				t.Errorf("expected %q, got %q", want, rec.Body.String())
			}
		}(i)
	}
	wg.Wait()
}
