// Command iss-tracker follows a satellite's ground position and serves the
// latest snapshot to presentation clients.
package main

import (
	"os"

	"github.com/soupbadger/rpi-space/cmd/iss-tracker/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
