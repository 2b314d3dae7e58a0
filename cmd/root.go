package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the kubedash application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "kubedash",
	Short: "Multi-cluster Kubernetes dashboard core",
	Long: `kubedash resolves kubeconfig contexts for GKE, EKS and static clusters
into live Kubernetes clients and safely patches resources edited as YAML.

The same operations are available as one-shot commands and as tools of a
Model Context Protocol (MCP) server, so dashboards and agents share one
Kubernetes access layer.

When run without subcommands, it starts the MCP server (equivalent to 'kubedash serve').`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "kubedash version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	addGlobalFlags(rootCmd.PersistentFlags(), globalConfig)

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newResolveCmd())
	rootCmd.AddCommand(newClustersCmd())
	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newPatchCmd())
	rootCmd.AddCommand(newDiffCmd())
}
