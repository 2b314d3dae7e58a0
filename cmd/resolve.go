package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/giantswarm/kubedash/internal/logging"
)

// resolveOutput describes a resolved context. It never carries the token.
type resolveOutput struct {
	Cluster   string     `json:"cluster"`
	Context   string     `json:"context"`
	Provider  string     `json:"provider"`
	Host      string     `json:"host"`
	CASource  string     `json:"ca_source"`
	Auth      string     `json:"auth"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func newResolveCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "resolve CLUSTER|CONTEXT",
		Short: "Resolve a cluster or kubeconfig context into a live client configuration",
		Long: `Resolve a registered cluster or a kubeconfig context the way the server
does and print the result. Contexts named gke_<project>_<zone>_<cluster> are
resolved through the GKE API, EKS ARNs through AWS, and every other context
from the kubeconfig.

Tokens are never printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}

			session, err := newCLISession(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer session.close()

			cred, err := session.sc.Credential(args[0])
			if err != nil {
				return err
			}

			live, err := session.sc.Resolver().Resolve(cmd.Context(), cred.KubeconfigPath, cred.ContextName)
			if err != nil {
				return err
			}
			defer func() {
				if err := live.Close(); err != nil {
					session.logger.Warn("failed to release resolved credentials", logging.Err(err))
				}
			}()

			out := resolveOutput{
				Cluster:  cred.Name,
				Context:  live.ContextName,
				Provider: live.Provider.String(),
				Host:     live.Host,
				CASource: caSource(live.CAFile, live.CAData),
				Auth:     "kubeconfig",
			}
			if live.BearerToken != "" {
				out.Auth = "bearer-token"
			}
			if !live.ExpiresAt.IsZero() {
				expiresAt := live.ExpiresAt.UTC()
				out.ExpiresAt = &expiresAt
			}

			if output == outputJSON {
				return printJSON(cmd.OutOrStdout(), out)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Cluster:   %s\n", out.Cluster)
			fmt.Fprintf(w, "Context:   %s\n", out.Context)
			fmt.Fprintf(w, "Provider:  %s\n", out.Provider)
			fmt.Fprintf(w, "Host:      %s\n", out.Host)
			fmt.Fprintf(w, "CA:        %s\n", out.CASource)
			fmt.Fprintf(w, "Auth:      %s\n", out.Auth)
			if out.ExpiresAt != nil {
				fmt.Fprintf(w, "Expires:   %s\n", out.ExpiresAt.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputText, "Output format: text or json")
	return cmd
}

// caSource describes where the CA certificate comes from.
func caSource(file string, data []byte) string {
	switch {
	case file != "":
		return "file " + file
	case len(data) > 0:
		return "inline"
	default:
		return "system"
	}
}
