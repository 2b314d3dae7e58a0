package kubeauth

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"k8s.io/client-go/rest"
)

// LiveClientConfig is the resolved, request-scoped client configuration for
// one cluster. It must not outlive the operation that requested it: callers
// defer Close so staged files are removed.
type LiveClientConfig struct {
	Provider    ProviderKind
	ContextName string

	// Host is the API server base URL.
	Host string
	// CAFile is set when the CA certificate was staged on disk (GKE).
	CAFile string
	// CAData holds the CA certificate bytes when known.
	CAData []byte
	// BearerToken is empty for kubeconfig contexts that use client certificates
	// or exec plugins.
	BearerToken string
	// ExpiresAt is the credential's own expiry. Zero means unknown.
	ExpiresAt time.Time

	rest *rest.Config

	closeOnce sync.Once
	cleanup   func() error
	closeErr  error
}

// RESTConfig returns a copy of the client-go configuration. A value built
// outside the resolver gets a configuration from its exported fields.
func (c *LiveClientConfig) RESTConfig() *rest.Config {
	if c.rest == nil {
		return &rest.Config{
			Host:        c.Host,
			BearerToken: c.BearerToken,
			TLSClientConfig: rest.TLSClientConfig{
				CAFile: c.CAFile,
				CAData: c.CAData,
			},
		}
	}
	return rest.CopyConfig(c.rest)
}

// Close releases resources staged for this configuration. It is idempotent
// and safe to call on configurations that staged nothing.
func (c *LiveClientConfig) Close() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		if c.cleanup != nil {
			c.closeErr = c.cleanup()
		}
	})
	return c.closeErr
}

// stagedFile is a temporary file whose removal is owned by exactly one holder.
type stagedFile struct {
	path string
}

// stageCACertificate writes the CA certificate to a fresh temporary file.
// The caller owns the returned file and must call remove on every exit path.
func stageCACertificate(dir string, data []byte) (*stagedFile, error) {
	f, err := os.CreateTemp(dir, caFilePattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create CA certificate file: %w", err)
	}
	staged := &stagedFile{path: f.Name()}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = staged.remove()
		return nil, fmt.Errorf("failed to write CA certificate file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = staged.remove()
		return nil, fmt.Errorf("failed to close CA certificate file: %w", err)
	}

	return staged, nil
}

// remove deletes the file. A file that is already gone is not an error.
func (s *stagedFile) remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
