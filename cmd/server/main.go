// Command server runs the spaced-repetition backend: FSRS review
// scheduling, the review queue, and LLM-assisted problem recommendations
// over HTTP.
//
// Configuration comes from CONFIG_PATH (YAML) plus environment overrides.
// Exit codes: 0 = clean shutdown, 1 = startup or runtime error.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/algoprep/algoprep-backend/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Printf("fatal: %v", err)
		os.Exit(1)
	}
}
