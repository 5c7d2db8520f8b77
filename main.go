package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/squads-cli/squads-cli/cmd"
)

// main is the entry point of the application. It sets up logging based on the
// DEBUG_SQUADS environment variable and runs the command tree under a
// signal-cancelled context, so an interrupt during the device login poll
// aborts cleanly without leaving partial state on disk.
func main() {
	configureLogLevelFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.Execute(ctx)
}

// configureLogLevelFromEnv enables debug logging when DEBUG_SQUADS is set to
// anything but "false"/"0"; otherwise logging is disabled entirely.
func configureLogLevelFromEnv() {
	switch os.Getenv("DEBUG_SQUADS") {
	case "", "false", "0":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	default:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}
