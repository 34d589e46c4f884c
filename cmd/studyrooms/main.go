// Command studyrooms serves the Studyrooms web tier: auth cookies, the
// rooms JSON API and the live room feed in front of the backend API.
package main

import (
	"log/slog"
	"os"

	"studyrooms/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		slog.Error("studyrooms.exit", "err", err)
		os.Exit(1)
	}
}
