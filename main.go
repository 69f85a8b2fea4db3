/*
racesim is a deterministic, replayable motorsport race simulator: a pure
tick-driven engine, a live scheduler that streams race state to a single
viewer over websocket, and a stateless Monte Carlo predictor for
finish-probability estimates. Catalog data (tracks, drivers, compounds,
scenarios) is loaded once at startup from YAML and never mutated.
*/
package main

import (
	"flag"
	"os"

	"racesim/catalog"
	"racesim/transport"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	dbg        *bool
	host       *string
	port       *string
	catalogDir *string
	addr       string
)

func init() {
	dbg = flag.Bool("debug", false, "debug mode")
	host = flag.String("host", "", "the host ip")
	port = flag.String("port", "8080", "the host port")
	catalogDir = flag.String("catalog-dir", "./catalog/data", "directory containing tracks.yaml, drivers.yaml, compounds.yaml, scenarios.yaml")
	flag.Parse()
	addr = *host + ":" + *port
}

func runApp() error {
	if *dbg {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cat, err := catalog.Load(*catalogDir)
	if err != nil {
		return err
	}
	log.Info().Int("tracks", len(cat.ListTracks())).Int("scenarios", len(cat.ListScenarios())).Msg("catalog loaded")

	srv := transport.NewServer(addr, cat)
	return srv.Serve()
}

func main() {
	if err := runApp(); err != nil {
		log.Fatal().Err(err).Msg("racesim exited")
	}
}
