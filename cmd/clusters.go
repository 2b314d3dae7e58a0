package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/giantswarm/kubedash/internal/clusters"
)

func newClustersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clusters",
		Short: "List and check the clusters of the clusters file",
	}
	cmd.AddCommand(newClustersListCmd())
	cmd.AddCommand(newClustersCheckCmd())
	return cmd
}

func newClustersListCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered clusters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			registry, err := loadGlobalOptions(globalConfig).loadRegistry(false)
			if err != nil {
				return err
			}

			creds := registry.List()
			if output == outputJSON {
				return printJSON(cmd.OutOrStdout(), map[string]any{"clusters": creds, "total": len(creds)})
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPROVIDER\tCONTEXT\tKUBECONFIG")
			for _, cred := range creds {
				kubeconfig := cred.KubeconfigPath
				if kubeconfig == "" {
					kubeconfig = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", cred.Name, cred.Provider(), cred.ContextName, kubeconfig)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputText, "Output format: text or json")
	return cmd
}

func newClustersCheckCmd() *cobra.Command {
	var (
		output      string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "check [CLUSTER]",
		Short: "Resolve clusters and ask their API servers for a version",
		Long: `Check one cluster, or every registered cluster when none is given.
A cluster is reachable when its credentials resolve and its API server
answers a version request. The command fails when any cluster is unreachable.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}

			session, err := newCLISession(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer session.close()

			opts := []clusters.CheckOption{clusters.WithCheckLogger(session.logger)}

			var statuses []clusters.Status
			if len(args) == 1 {
				cred, err := session.sc.Credential(args[0])
				if err != nil {
					return err
				}
				statuses = []clusters.Status{clusters.Check(cmd.Context(), session.sc.Resolver(), cred, opts...)}
			} else {
				statuses = session.sc.Clusters().CheckAll(cmd.Context(), session.sc.Resolver(), concurrency, opts...)
			}

			unreachable := 0
			for _, status := range statuses {
				if !status.Reachable {
					unreachable++
				}
			}

			if output == outputJSON {
				if err := printJSON(cmd.OutOrStdout(), statuses); err != nil {
					return err
				}
			} else {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tPROVIDER\tREACHABLE\tVERSION\tMESSAGE")
				for _, s := range statuses {
					version := s.Version
					if version == "" {
						version = "-"
					}
					fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n", s.Name, s.Provider, s.Reachable, version, s.Message)
				}
				if err := w.Flush(); err != nil {
					return err
				}
			}

			if unreachable > 0 {
				return fmt.Errorf("%d of %d clusters unreachable", unreachable, len(statuses))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputText, "Output format: text or json")
	cmd.Flags().IntVar(&concurrency, "concurrency", clusters.DefaultCheckConcurrency, "Maximum number of clusters checked concurrently")
	return cmd
}
