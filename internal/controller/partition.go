// Package controller implements PartitionController: the request
// dispatcher that owns the partition map, enforces per-partition
// serialization, and implements the high-level lifecycle flows. It is
// the thinnest possible layer over internal/session.Session and
// internal/coordinator.Coordinator — nearly everything it does is
// sequencing collaborator calls and translating results into a
// pkg/api.RequestResult.
package controller

import (
	"sync"

	"github.com/o2control/odc/internal/coordinator"
	"github.com/o2control/odc/internal/scheduler"
	"github.com/o2control/odc/internal/session"
	"github.com/o2control/odc/internal/transport"
)

// Partition is one entry in PartitionController's map: a session plus
// the per-partition collaborators bound to it, guarded by a mutex that
// ensures at most one request per partition executes at a time.
type Partition struct {
	mu sync.Mutex

	ID        string
	Session   *session.Session
	Scheduler scheduler.AgentScheduler
	Transport transport.CommandTransport
	Coord     *coordinator.Coordinator
}

func newPartition(id string, sched scheduler.AgentScheduler, tr transport.CommandTransport) *Partition {
	sess := session.New(id)
	return &Partition{
		ID:        id,
		Session:   sess,
		Scheduler: sched,
		Transport: tr,
		Coord:     coordinator.New(sess, tr, sched),
	}
}
