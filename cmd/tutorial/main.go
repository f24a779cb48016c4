// Command tutorial serves the complete route table: static files, route
// parameters, query strings, form bodies, pattern routes and error handling.
//
// Usage:
//
//	tutorial [port]
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/gorilla/websocket"

	"github.com/osauer/hyperroute"
	"github.com/osauer/hyperroute/internal/tutorial"
)

func main() {
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: hyperroute.LevelInfo}))

	srv, err := hyperroute.NewServer(
		hyperroute.WithLogger(logger),
		hyperroute.WithPort(flag.Arg(0)),
	)
	if err != nil {
		log.Fatal(err)
	}
	srv.With(hyperroute.SecureWeb(srv)...)

	tutorial.Register(srv.Router, tutorial.Config{
		StaticDir:    srv.Options.StaticDir,
		MaxBodyBytes: srv.Options.MaxBodyBytes,
		JWTSecret:    []byte(srv.Options.JWTSecret),
		CORS:         srv.Options.CORS,
		Upgrader:     &websocket.Upgrader{CheckOrigin: hyperroute.OriginChecker(srv.Options.CORS)},
	})

	if err := srv.Run(); err != nil {
		log.Fatal(err)
	}
}
