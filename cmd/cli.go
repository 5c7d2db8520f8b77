package cmd

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/squads-cli/squads-cli/auth"
	"github.com/squads-cli/squads-cli/client"
	"github.com/squads-cli/squads-cli/config"
	"github.com/squads-cli/squads-cli/store"
)

func Execute(ctx context.Context) {
	rootCmd := createRootCmd()

	rootCmd.PersistentFlags().BoolP("help", "h", false, "Show help for a command")

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Command execution failed.")
		os.Exit(1)
	}
}

func createRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "squads",
		Short: "A command-line client for Teams-style chat services",
	}

	rootCmd.AddCommand(
		authCmd(),
		versionCmd(),
	)

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{
		Use:    "no-help",
		Hidden: true,
	})

	return rootCmd
}

// deps bundles the token core wired for one invocation. A fresh set is built
// per command so tests can substitute fakes at the interface seams instead of
// relying on process-wide state.
type deps struct {
	cfg    *config.Config
	broker *auth.Broker
	flow   *auth.Flow
	facade *client.Facade
}

// buildDeps loads the configuration and wires store, provider, broker, flow,
// and facade together. tenantOverride replaces the configured tenant when
// non-empty (the login command's --tenant flag).
func buildDeps(tenantOverride string) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if tenantOverride != "" {
		cfg.Auth.Tenant = tenantOverride
	}

	provider := client.NewProvider(cfg.Timeout())
	storer := store.NewFileStore(store.DefaultPath())
	broker := auth.NewBroker(storer, provider, cfg.Auth.Tenant)

	return &deps{
		cfg:    cfg,
		broker: broker,
		flow:   auth.NewFlow(provider),
		facade: client.NewFacade(broker, cfg.API.Region, cfg.Timeout()),
	}, nil
}
