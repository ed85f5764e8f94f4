package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string
	root := &cobra.Command{
		Use:           "yinsee",
		Short:         "Local services marketplace API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configFile)
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API (default)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context(), configFile)
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Remove requests, provider and activity for the configured profile",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withService(cmd.Context(), configFile, func(a *app) error {
					a.svc.ResetAll(cmd.Context())
					fmt.Fprintf(cmd.OutOrStdout(), "profile %q reset\n", a.cfg.Profile)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Write the sample requests and empty taxi lists when absent",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withService(cmd.Context(), configFile, func(a *app) error {
					a.svc.Seed(cmd.Context())
					fmt.Fprintf(cmd.OutOrStdout(), "profile %q seeded\n", a.cfg.Profile)
					return nil
				})
			},
		},
	)
	return root
}
