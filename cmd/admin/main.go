// Command admin runs maintenance tasks against the AutoHub database.
package main

import (
	"os"

	"github.com/ZeremItay/autohub/pkg/logger"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
