package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/kubedash/internal/patch"
)

const oldDeployment = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: web
  namespace: shop
  resourceVersion: "41"
spec:
  replicas: 2
  template:
    spec:
      containers:
        - name: web
          image: nginx:1.25
`

const newDeployment = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: web
  namespace: shop
  resourceVersion: "42"
spec:
  replicas: 3
  paused: true
  template:
    spec:
      containers:
        - name: web
          image: nginx:1.25
`

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDiffCmdText(t *testing.T) {
	oldPath := writeTempFile(t, "old.yaml", oldDeployment)
	newPath := writeTempFile(t, "new.yaml", newDeployment)

	out, err := runCommand(t, newDiffCmd(), oldPath, newPath)
	require.NoError(t, err)

	assert.Equal(t, "+ spec.paused: true\n~ spec.replicas: 2 -> 3\n", out)
}

func TestDiffCmdJSON(t *testing.T) {
	oldPath := writeTempFile(t, "old.yaml", oldDeployment)
	newPath := writeTempFile(t, "new.yaml", newDeployment)

	out, err := runCommand(t, newDiffCmd(), oldPath, newPath, "-o", "json")
	require.NoError(t, err)

	var got struct {
		Changes []patch.Change `json:"changes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Changes, 2)
	assert.Equal(t, "spec.replicas", got.Changes[1].Path)
	assert.Equal(t, patch.ChangeChanged, got.Changes[1].Type)
}

func TestDiffCmdNoChanges(t *testing.T) {
	path := writeTempFile(t, "same.yaml", oldDeployment)

	out, err := runCommand(t, newDiffCmd(), path, path)
	require.NoError(t, err)
	assert.Equal(t, "No differences found.\n", out)

	out, err = runCommand(t, newDiffCmd(), path, path, "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"changes": [{"kind": "info", "field": "", "path": "", "newValue": "No differences found."}]}`, out)
}

func TestDiffCmdErrors(t *testing.T) {
	valid := writeTempFile(t, "valid.yaml", oldDeployment)
	invalid := writeTempFile(t, "invalid.yaml", "kind: [unclosed")

	_, err := runCommand(t, newDiffCmd(), valid, invalid)
	assert.Error(t, err)

	_, err = runCommand(t, newDiffCmd(), valid, filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")

	_, err = runCommand(t, newDiffCmd(), valid, valid, "-o", "table")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestFillFromDocument(t *testing.T) {
	t.Run("defaults from the document", func(t *testing.T) {
		req := patch.PatchRequest{NewYAML: newDeployment}
		require.NoError(t, fillFromDocument(&req))
		assert.Equal(t, "Deployment", req.Kind)
		assert.Equal(t, "web", req.Name)
	})

	t.Run("explicit values win", func(t *testing.T) {
		req := patch.PatchRequest{Kind: "StatefulSet", Name: "db", NewYAML: newDeployment}
		require.NoError(t, fillFromDocument(&req))
		assert.Equal(t, "StatefulSet", req.Kind)
		assert.Equal(t, "db", req.Name)
	})

	t.Run("missing name", func(t *testing.T) {
		req := patch.PatchRequest{NewYAML: "kind: ConfigMap\n"}
		err := fillFromDocument(&req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--kind and --name")
	})

	t.Run("unparsable", func(t *testing.T) {
		req := patch.PatchRequest{NewYAML: "- just\n- a list\n"}
		assert.Error(t, fillFromDocument(&req))
	})
}

func TestPrintChangesEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printChanges(&buf, nil))
	assert.Equal(t, "No changes.\n", buf.String())
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "null", formatValue(nil))
	assert.Equal(t, "nginx", formatValue("nginx"))
	assert.Equal(t, "3", formatValue(float64(3)))
	assert.Equal(t, `{"a":1}`, formatValue(map[string]any{"a": float64(1)}))
	assert.Equal(t, `["x"]`, formatValue([]any{"x"}))
}

func TestCASource(t *testing.T) {
	assert.Equal(t, "file /tmp/ca.crt", caSource("/tmp/ca.crt", nil))
	assert.Equal(t, "inline", caSource("", []byte("pem")))
	assert.Equal(t, "system", caSource("", nil))
}
