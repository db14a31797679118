// Package topology defines the TopologyReader collaborator: parsing a
// topology description into a tree of groups / collections / tasks lives
// outside this module (the real reader parses DDS topology XML). This
// package declares the interface, a YAML fixture-backed Reader
// (YAMLReader), the group-multiplicity rewrite used by nMin recovery, and
// the materialization step that turns a topology *source* (file, inline
// content, or a generator script) into a concrete file path a scheduler
// can activate.
package topology

import (
	"github.com/o2control/odc/internal/model"
)

// Reader parses topology content (already resolved to a concrete file by
// Materialize) into a TopoModel.
type Reader interface {
	Read(filePath string) (*model.TopoModel, error)
}
