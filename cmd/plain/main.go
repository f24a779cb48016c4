// Command plain serves "Hello World!" for every request using nothing but net/http.
package main

import (
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"

	"github.com/osauer/hyperroute"
)

func main() {
	flag.Parse()

	opts := hyperroute.NewServerOptions()
	if port := flag.Arg(0); port != "" {
		if err := opts.SetPort(port); err != nil {
			slog.Error("Invalid port argument", "error", err)
			os.Exit(2)
		}
	}

	srv := &http.Server{
		Addr: opts.Addr,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("Hello World!"))
		}),
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
	}

	slog.Info("Server is listening", "addr", opts.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
