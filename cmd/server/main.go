package main

import (
	"fmt"
	"os"

	"matchcore/internal/config"
	fxmodules "matchcore/internal/fx"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "matchcore",
		Short:         "Match lifecycle coordination services",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		componentCmd("matchmaker", "Form balanced matches from queued tickets", fxmodules.Matchmaker),
		componentCmd("provisioner", "Provision game servers for new matches", fxmodules.Provisioner),
		componentCmd("settlement", "Settle completed matches exactly once", fxmodules.Settlement),
		componentCmd("anticheat", "Score client heartbeats", fxmodules.AntiCheat),
		componentCmd("all", "Run every component in one process",
			fxmodules.Matchmaker, fxmodules.Provisioner, fxmodules.Settlement, fxmodules.AntiCheat),
	)
	return root
}

func componentCmd(name, short string, components ...fx.Option) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			app := fx.New(
				fxmodules.Core,
				fx.Decorate(func(cfg *config.Config) *config.Config {
					if cfg.ServiceName == "" {
						cfg.ServiceName = name
					}
					return cfg
				}),
				fx.Options(components...),
				fxmodules.HTTP,
			)
			if err := app.Err(); err != nil {
				return fmt.Errorf("failed to build %s: %w", name, err)
			}
			app.Run()
			return nil
		},
	}
}
