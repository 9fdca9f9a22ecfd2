// Command plantctl runs the batch analytics offline: it scores batch files,
// exports CSV, predicts quality and checks export compliance without a
// running server.
package main

import (
	"fmt"
	"log/slog"
	"os"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "plantctl:", err)
		os.Exit(1)
	}
}
