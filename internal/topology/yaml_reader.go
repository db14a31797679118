package topology

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/o2control/odc/internal/model"
)

// yamlGroup/yamlCollection are the on-disk shape of a fixture topology
// description consumed by YAMLReader. This is not the real DDS topology
// XML format; it exists so this module has something concrete to Read()
// in tests and in the fake scheduler's activation path.
type yamlTopology struct {
	Zones  map[string][]yamlZoneGroup `yaml:"zones"`
	Groups []yamlGroup                `yaml:"groups"`
}

type yamlZoneGroup struct {
	N          int    `yaml:"n"`
	NCores     int    `yaml:"nCores"`
	AgentGroup string `yaml:"agentGroup"`
}

type yamlGroup struct {
	Name        string           `yaml:"name"`
	N           int              `yaml:"n"`
	NMin        *int             `yaml:"nMin,omitempty"`
	AgentGroup  string           `yaml:"agentGroup"`
	Collections []yamlCollection `yaml:"collections"`
}

type yamlCollection struct {
	Name     string `yaml:"name"`
	Zone     string `yaml:"zone"`
	NCores   int    `yaml:"nCores"`
	NumTasks int    `yaml:"numTasks"`
}

// YAMLReader implements Reader against the fixture format above.
type YAMLReader struct{}

func (YAMLReader) Read(filePath string) (*model.TopoModel, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading topology file: %w", err)
	}
	var doc yamlTopology
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing topology file: %w", err)
	}
	return build(&doc), nil
}

func build(doc *yamlTopology) *model.TopoModel {
	m := model.NewTopoModel()
	for zone, groups := range doc.Zones {
		zgs := make([]model.ZoneGroup, 0, len(groups))
		for _, g := range groups {
			zgs = append(zgs, model.ZoneGroup{N: g.N, NCores: g.NCores, AgentGroup: g.AgentGroup})
		}
		m.Zones[zone] = zgs
	}

	for gi, g := range doc.Groups {
		group := &model.Group{Name: g.Name, N: g.N, NMin: g.NMin, AgentGroup: g.AgentGroup}
		for ci, c := range g.Collections {
			cid := model.CollectionID(fmt.Sprintf("%s.%d.%d", g.Name, gi, ci))
			collection := &model.Collection{
				ID: cid, Name: c.Name, Path: fmt.Sprintf("main/%s", c.Name),
				Zone: c.Zone, AgentGroup: g.AgentGroup, NOriginal: g.N,
				NMin: g.NMin, NCores: c.NCores, NumTasks: c.NumTasks,
			}
			m.AddCollection(collection)
			group.Collections = append(group.Collections, cid)

			// Each of the group's N replicas gets its own instance
			// identity: the atomic failure unit nMin recovery counts
			// against. Tasks belong to the instance, not the definition,
			// so two replicas of the same collection never collapse to
			// one failure.
			for inst := 0; inst < g.N; inst++ {
				instID := model.CollectionID(fmt.Sprintf("%s#%d", cid, inst))
				m.AddInstance(&model.CollectionInstance{ID: instID, DefinitionID: cid, Index: inst})

				for ti := 0; ti < c.NumTasks; ti++ {
					tid := model.TaskID(fmt.Sprintf("%s.%d.%d", cid, inst, ti))
					path := fmt.Sprintf("%s_%d/task_%d", collection.Path, inst, ti)
					m.AddTask(&model.Task{ID: tid, CollectionID: instID, Path: path})
				}
			}
		}
		m.AddGroup(group)
	}
	return m
}
