package topology

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v2"
)

// RewriteGroupMultiplicity loads the topology at filePath, sets the named
// group's multiplicity to newN (preserving its nMin), and writes the
// result to a new temp file, returning its path.
func RewriteGroupMultiplicity(filePath, groupName string, newN int) (string, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("reading topology file: %w", err)
	}
	var doc yamlTopology
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("parsing topology file: %w", err)
	}

	found := false
	for i := range doc.Groups {
		if doc.Groups[i].Name == groupName {
			doc.Groups[i].N = newN
			found = true
		}
	}
	if !found {
		return "", fmt.Errorf("group %q not found in topology", groupName)
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return "", fmt.Errorf("marshaling rewritten topology: %w", err)
	}

	dir, err := os.MkdirTemp("", "odc-topo-recovery-")
	if err != nil {
		return "", fmt.Errorf("creating temp dir: %w", err)
	}
	newPath := filepath.Join(dir, uuid.NewString()+".topo")
	if err := os.WriteFile(newPath, out, 0o644); err != nil {
		return "", fmt.Errorf("writing rewritten topology: %w", err)
	}
	return newPath, nil
}
