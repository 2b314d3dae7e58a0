package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/giantswarm/kubedash/internal/patch"
)

// Output formats of the one-shot commands.
const (
	outputText = "text"
	outputJSON = "json"
)

func validateOutput(format string) error {
	switch format {
	case outputText, outputJSON:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (supported: %s, %s)", format, outputText, outputJSON)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printChanges writes one line per change in a diff-like notation.
func printChanges(w io.Writer, changes []patch.Change) error {
	if len(changes) == 0 {
		_, err := fmt.Fprintln(w, "No changes.")
		return err
	}
	for _, c := range changes {
		var err error
		switch c.Type {
		case patch.ChangeAdded:
			_, err = fmt.Fprintf(w, "+ %s: %s\n", c.Path, formatValue(c.NewValue))
		case patch.ChangeRemoved:
			_, err = fmt.Fprintf(w, "- %s: %s\n", c.Path, formatValue(c.OldValue))
		case patch.ChangeChanged:
			_, err = fmt.Fprintf(w, "~ %s: %s -> %s\n", c.Path, formatValue(c.OldValue), formatValue(c.NewValue))
		default:
			if c.Path == "" {
				_, err = fmt.Fprintln(w, formatValue(c.NewValue))
			} else {
				_, err = fmt.Fprintf(w, "  %s: %s\n", c.Path, formatValue(c.NewValue))
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// formatValue renders scalars as-is and everything else as compact JSON.
func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return v
	case map[string]any, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	default:
		return fmt.Sprint(v)
	}
}
