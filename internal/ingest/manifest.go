package ingest

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/agentic-research/reform/api"
)

// DefaultManifest is the manifest file name looked up in a workspace
// directory.
const DefaultManifest = "reform.hcl"

// ErrManifestNotFound is returned when no manifest exists at the expected
// location.
var ErrManifestNotFound = errors.New("workspace manifest not found")

// ReadManifest decodes the HCL manifest at name inside fsys.
func ReadManifest(fsys billy.Filesystem, name string) (*api.Manifest, error) {
	src, err := util.ReadFile(fsys, name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", name, ErrManifestNotFound)
		}
		return nil, fmt.Errorf("read manifest %s: %w", name, err)
	}

	var m api.Manifest
	if err := hclsimple.Decode(name, src, nil, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", name, err)
	}

	seen := make(map[string]bool, len(m.Projects))
	for _, p := range m.Projects {
		if seen[p.Name] {
			return nil, fmt.Errorf("manifest %s: duplicate project %q", name, p.Name)
		}
		seen[p.Name] = true
	}
	return &m, nil
}
