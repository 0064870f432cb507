// Command hutils runs the sample web application and checks route test blocks against a
// running application.
package main

import (
	"errors"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var errTestsFailed = errors.New("some tests failed")

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errTestsFailed) {
			log.Error().Err(err).Msg("hutils failed")
		}
		os.Exit(1)
	}
}
