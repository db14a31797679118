package topology

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/o2control/odc/internal/model"
)

func TestYAMLReaderRoundTrip(t *testing.T) {
	content := `
zones:
  calib:
    - n: 1
      nCores: 0
      agentGroup: calib
  online:
    - n: 4
      nCores: 0
      agentGroup: online
groups:
  - name: calibGroup
    n: 1
    agentGroup: calib
    collections:
      - name: SamplersSinks
        zone: calib
        numTasks: 2
  - name: onlineGroup
    n: 4
    agentGroup: online
    collections:
      - name: Processors
        zone: online
        numTasks: 1
`
	dir := t.TempDir()
	path := filepath.Join(dir, "topo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	m, err := YAMLReader{}.Read(path)
	require.NoError(t, err)

	require.Len(t, m.Collections, 2)
	groups := model.ExtractRequirements(m)
	assert.Equal(t, 4, groups["online"].NumAgents)
	assert.Equal(t, 1, groups["calib"].NumAgents)
	assert.Equal(t, 6, m.TaskCount()) // calibGroup: 1*2, onlineGroup: 4*1

	// onlineGroup replicates its one collection definition into 4 distinct
	// instances, each a separate nMin recovery failure unit; their tasks
	// don't share a CollectionID even though they share a definition.
	require.Len(t, m.Instances, 5) // 1 (calibGroup) + 4 (onlineGroup)
	onlineDef := m.Groups["onlineGroup"].Collections[0]
	seen := map[model.CollectionID]bool{}
	for _, task := range m.Tasks {
		if inst, ok := m.Instances[task.CollectionID]; ok && inst.DefinitionID == onlineDef {
			seen[task.CollectionID] = true
		}
	}
	assert.Len(t, seen, 4)
}
