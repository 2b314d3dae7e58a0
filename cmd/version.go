package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// versionInfo is printed by "version --json".
type versionInfo struct {
	Version  string `json:"version"`
	Go       string `json:"go"`
	Platform string `json:"platform"`
}

// newVersionCmd creates the Cobra command for displaying the application version.
func newVersionCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number of kubedash",
		Long:  `All software has versions. This is kubedash's.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !asJSON {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "kubedash version %s\n", rootCmd.Version)
				return err
			}
			return printJSON(cmd.OutOrStdout(), versionInfo{
				Version:  rootCmd.Version,
				Go:       runtime.Version(),
				Platform: runtime.GOOS + "/" + runtime.GOARCH,
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print version, Go version and platform as JSON")
	return cmd
}
