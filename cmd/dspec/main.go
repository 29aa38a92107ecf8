package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/roach88/dspec/internal/cli"
)

func main() {
	// Local .env carries GEMINI_API_KEY for delegated steps; absence is fine.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		// Commands print their own findings; only surface errors that never
		// reached a formatter (flag and usage mistakes).
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "dspec: %v\n", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
