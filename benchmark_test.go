package hyperroute

import (
	"fmt"
	"net/http/httptest"
	"testing"
)

// BenchmarkBaseline measures a single literal route.
func BenchmarkBaseline(b *testing.B) {
	r := NewRouter()
	r.Get("/", func(c *Context) error {
		return c.Send("OK")
	})

	req := httptest.NewRequest("GET", "/", nil)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
	}
}

// BenchmarkParams measures parameter binding behind a long route table.
func BenchmarkParams(b *testing.B) {
	r := NewRouter()
	for i := 0; i < 50; i++ {
		r.Get(fmt.Sprintf("/filler/%d", i), func(c *Context) error { return c.Send("filler") })
	}
	r.Get("/name/:fname/:lname", func(c *Context) error {
		return c.Sendf("Hello, %s %s!", c.Param("fname"), c.Param("lname"))
	})

	req := httptest.NewRequest("GET", "/name/Ada/Lovelace", nil)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
	}
}

// BenchmarkSecureAPI measures a typical secure API setup with the default and
// SecureWeb middleware plus a bearer check inside the chain.
func BenchmarkSecureAPI(b *testing.B) {
	srv, err := NewServer(WithRateLimit(1e9, 1e9))
	if err != nil {
		b.Fatal(err)
	}
	srv.With(SecureWeb(srv)...)
	srv.Mount("/api", CORS(&CORSOptions{AllowedOrigins: []string{"*"}}))
	srv.Get("/api/data", RequireBearer(func(token string) (bool, error) {
		return token == "test-token", nil
	}), func(c *Context) error {
		return c.JSON(map[string]any{"status": "ok", "data": map[string]any{"id": 1, "name": "test"}})
	})
	handler := srv.Handler()

	req := httptest.NewRequest("GET", "/api/data", nil)
	req.Header.Set("Authorization", "Bearer test-token")

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
	}
}
