package main

import (
	"os"

	"github.com/blues/campaignhub/internal/logger"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:          "campaignhub",
		Short:        "Campaign crowdfunding, shop and support chat service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(serveCmd(), migrateCmd(), jobCmd(), tokenCmd())

	if err := root.Execute(); err != nil {
		logger.Error("Command failed: %v", err)
		logger.Sync()
		os.Exit(1)
	}
}
