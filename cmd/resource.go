package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/giantswarm/kubedash/internal/patch"
)

// userError returns the caller-safe message of engine errors.
func userError(err error) error {
	var patchErr *patch.Error
	if errors.As(err, &patchErr) {
		return errors.New(patchErr.UserFacingError())
	}
	return err
}

func newGetCmd() *cobra.Command {
	var (
		cluster   string
		namespace string
	)

	cmd := &cobra.Command{
		Use:   "get KIND NAME",
		Short: "Print a live resource as editable YAML",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := newCLISession(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer session.close()

			cred, err := session.sc.Credential(cluster)
			if err != nil {
				return err
			}

			rendered, err := session.sc.Engine().Get(cmd.Context(), cred, args[0], args[1], namespace)
			if err != nil {
				return userError(err)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().StringVar(&cluster, "cluster", "", "Registered cluster or kubeconfig context")
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "Namespace of the resource")
	_ = cmd.MarkFlagRequired("cluster")
	return cmd
}

func newPatchCmd() *cobra.Command {
	var (
		cluster   string
		namespace string
		kind      string
		name      string
		oldFile   string
		newFile   string
		dryRun    bool
		output    string
	)

	cmd := &cobra.Command{
		Use:   "patch",
		Short: "Apply an edited resource after a server-side dry run",
		Long: `Apply the resource in --filename to the cluster. The edit is sent as a
strategic merge patch with a server-side dry run first and only applied when
the dry run passes. The printed changes compare the result against --old, or
against the live resource when --old is not given.

Kind and name default to the document's kind and metadata.name.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}

			newYAML, err := os.ReadFile(newFile)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", newFile, err)
			}

			req := patch.PatchRequest{
				Kind:      kind,
				Name:      name,
				Namespace: namespace,
				NewYAML:   string(newYAML),
			}
			if err := fillFromDocument(&req); err != nil {
				return err
			}

			session, err := newCLISession(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer session.close()

			cred, err := session.sc.Credential(cluster)
			if err != nil {
				return err
			}

			if oldFile != "" {
				oldYAML, err := os.ReadFile(oldFile)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", oldFile, err)
				}
				req.OldYAML = string(oldYAML)
			} else {
				req.OldYAML, err = session.sc.Engine().Get(cmd.Context(), cred, req.Kind, req.Name, req.Namespace)
				if err != nil {
					return userError(err)
				}
			}

			var result patch.PatchResult
			if dryRun {
				result = session.sc.Engine().Validate(cmd.Context(), cred, req)
			} else {
				result = session.sc.Engine().Patch(cmd.Context(), cred, req)
			}

			if output == outputJSON {
				if err := printJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			} else if result.Success {
				fmt.Fprintln(cmd.OutOrStdout(), result.Message)
				if err := printChanges(cmd.OutOrStdout(), result.Changes); err != nil {
					return err
				}
			}

			if !result.Success {
				return errors.New(result.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cluster, "cluster", "", "Registered cluster or kubeconfig context")
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "Namespace of the resource (defaults to the document's namespace)")
	cmd.Flags().StringVar(&kind, "kind", "", "Resource kind (defaults to the document's kind)")
	cmd.Flags().StringVar(&name, "name", "", "Resource name (defaults to the document's metadata.name)")
	cmd.Flags().StringVarP(&newFile, "filename", "f", "", "File with the edited resource YAML")
	cmd.Flags().StringVar(&oldFile, "old", "", "File with the YAML the edit started from")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Stop after the server-side dry run")
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "Output format: text or json")
	_ = cmd.MarkFlagRequired("cluster")
	_ = cmd.MarkFlagRequired("filename")
	return cmd
}

// fillFromDocument defaults the kind and name of req from its new document.
func fillFromDocument(req *patch.PatchRequest) error {
	if req.Kind != "" && req.Name != "" {
		return nil
	}
	doc, err := patch.ParseDocument(req.NewYAML)
	if err != nil {
		return fmt.Errorf("the document could not be parsed: %w", err)
	}
	if req.Kind == "" {
		req.Kind, _ = doc["kind"].(string)
	}
	if req.Name == "" {
		metadata, _ := doc["metadata"].(map[string]any)
		req.Name, _ = metadata["name"].(string)
	}
	if req.Kind == "" || req.Name == "" {
		return errors.New("the document has no kind or metadata.name; pass --kind and --name")
	}
	return nil
}

func newDiffCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "diff OLD NEW",
		Short: "Compare two resource YAML files field by field",
		Long: `Compare two resource YAML files without contacting a cluster.
metadata.resourceVersion and metadata.managedFields are ignored.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}

			oldYAML, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			newYAML, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[1], err)
			}

			changes, err := patch.Diff(string(oldYAML), string(newYAML))
			if err != nil {
				return userError(err)
			}

			if output == outputJSON {
				return printJSON(cmd.OutOrStdout(), map[string]any{"changes": changes})
			}
			return printChanges(cmd.OutOrStdout(), changes)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputText, "Output format: text or json")
	return cmd
}
