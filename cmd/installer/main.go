package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/splax/installer/pkg/config"
)

func main() {
	if err := newRootCmd(config.LoadInstallerConfig()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg config.InstallerConfig) *cobra.Command {
	root := &cobra.Command{
		Use:   "installer <cmd>",
		Short: "application installer service",
		Long: `
Runs the environment and license activation step of the application
installer, applies the database schema and checks purchase codes.
`,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(cfg))
	root.AddCommand(newMigrateCmd(cfg))
	root.AddCommand(newVerifyCmd(cfg))
	return root
}
