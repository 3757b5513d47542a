package main

import (
	"log/slog"
	"os"

	"github.com/couchcryptid/sahayata-dashboard/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		slog.Error("sahayata failed", "error", err)
		os.Exit(1)
	}
}
