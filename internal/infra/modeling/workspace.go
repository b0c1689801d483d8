package modeling

import (
	"fmt"
	"os"
	"path/filepath"
)

// Workspace is a throwaway directory tree for one model run. Large example
// datasets are symlinked in rather than copied.
type Workspace struct {
	root   string
	domain string
}

func NewWorkspace(domain string) (*Workspace, error) {
	root, err := os.MkdirTemp("", "delta_model_run_")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{root: root, domain: domain}, nil
}

func (w *Workspace) Root() string { return w.root }

func (w *Workspace) DomainPath() string {
	return filepath.Join(w.root, "domain_"+w.domain)
}

// SetupDomain creates the domain directory and links the shared datasets
// from dataDir when they exist. Missing data is reported via logf and the
// run continues on an empty project.
func (w *Workspace) SetupDomain(dataDir string, logf func(string) error) error {
	domainPath := w.DomainPath()
	if err := os.Mkdir(domainPath, 0o755); err != nil {
		return fmt.Errorf("create domain dir: %w", err)
	}

	if dataDir == "" {
		return logf("Warning: Data directory not configured. Initializing empty project.")
	}

	src := filepath.Join(dataDir, "domain_"+w.domain)
	if _, err := os.Stat(src); err != nil {
		return logf(fmt.Sprintf("Warning: Example data not found at %s.", src))
	}

	if err := logf("Linking example datasets (attributes, forcing, shapefiles)..."); err != nil {
		return err
	}
	for _, sub := range []string{"attributes", "forcing", "shapefiles"} {
		subSrc := filepath.Join(src, sub)
		if _, err := os.Stat(subSrc); err != nil {
			continue
		}
		if err := os.Symlink(subSrc, filepath.Join(domainPath, sub)); err != nil {
			return fmt.Errorf("link %s: %w", sub, err)
		}
	}
	return nil
}

func (w *Workspace) Close() error {
	return os.RemoveAll(w.root)
}
