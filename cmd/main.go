package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"prepcuet/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Error().Err(err).Msg("prepcuet failed")
		os.Exit(1)
	}
}
