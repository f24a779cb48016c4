// Command basic serves /hello, /goodbye and the static directory.
package main

import (
	"flag"
	"log"

	"github.com/osauer/hyperroute"
	"github.com/osauer/hyperroute/internal/tutorial"
)

func main() {
	flag.Parse()

	srv, err := hyperroute.NewServer(hyperroute.WithPort(flag.Arg(0)))
	if err != nil {
		log.Fatal(err)
	}
	tutorial.RegisterBasic(srv.Router, srv.Options.StaticDir)

	if err := srv.Run(); err != nil {
		log.Fatal(err)
	}
}
