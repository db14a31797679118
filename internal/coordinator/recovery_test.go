package coordinator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	occerrors "github.com/o2control/odc/internal/errors"
	"github.com/o2control/odc/internal/model"
	"github.com/o2control/odc/internal/occontext"
	"github.com/o2control/odc/internal/scheduler"
	"github.com/o2control/odc/internal/session"
	"github.com/o2control/odc/internal/topology"
	"github.com/o2control/odc/internal/transport"
)

const nMinFixture = `
groups:
  - name: grp
    n: 2
    nMin: 1
    agentGroup: readout
    collections:
      - name: col
        zone: z1
        nCores: 1
        numTasks: 1
`

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "topo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRecoverShrinksGroupWithinNMin(t *testing.T) {
	path := writeFixture(t, nMinFixture)
	reader := topology.YAMLReader{}
	m, err := reader.Read(path)
	require.NoError(t, err)

	sess := session.New("p1")
	sess.Activate(path, m, model.Idle)

	// Fail exactly one of the group's two collection instances. Confirm
	// the two replicas' tasks really do carry distinct instance ids
	// before relying on that to make failedCount == 1, not 2.
	var failedID model.TaskID
	var failedInstance, surviving model.CollectionID
	for id, task := range m.Tasks {
		if task.Path == "main/col_1/task_0" {
			failedID = id
			failedInstance = task.CollectionID
		} else {
			surviving = task.CollectionID
		}
	}
	require.NotEmpty(t, failedID)
	assert.NotEqual(t, surviving, failedInstance)

	fakeSched := scheduler.NewFakeScheduler()
	fakeSched.Topology = model.NewTopoModel()
	c := New(sess, transport.NewFakeTransport(), fakeSched)

	outcome, err := c.Recover(occontext.Background(), reader, map[model.TaskID]string{failedID: "timed out"})
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.ShrunkGroups["grp"])
	assert.NotEqual(t, path, outcome.NewTopoFilePath)

	// Session's active model was rebuilt against the shrunk topology.
	require.Contains(t, sess.Model.Groups, "grp")
	assert.Equal(t, 1, sess.Model.Groups["grp"].N)
	assert.Equal(t, model.Idle, sess.States.Get(mustAnyTask(sess)).State)
}

func TestRecoverAbortsWhenGroupHasNoNMin(t *testing.T) {
	const fixture = `
groups:
  - name: grp
    n: 2
    agentGroup: readout
    collections:
      - name: col
        zone: z1
        nCores: 1
        numTasks: 1
`
	path := writeFixture(t, fixture)
	reader := topology.YAMLReader{}
	m, err := reader.Read(path)
	require.NoError(t, err)

	sess := session.New("p1")
	sess.Activate(path, m, model.Idle)

	var failedID model.TaskID
	for id := range m.Tasks {
		failedID = id
		break
	}

	c := New(sess, transport.NewFakeTransport(), scheduler.NewFakeScheduler())
	_, err = c.Recover(occontext.Background(), reader, map[model.TaskID]string{failedID: "timed out"})
	require.Error(t, err)
	e, ok := occerrors.AsError(err)
	require.True(t, ok)
	assert.Equal(t, occerrors.TopologyFailed, e.Kind)
}

func TestRecoverAbortsWhenBelowNMin(t *testing.T) {
	path := writeFixture(t, nMinFixture)
	reader := topology.YAMLReader{}
	m, err := reader.Read(path)
	require.NoError(t, err)

	sess := session.New("p1")
	sess.Activate(path, m, model.Idle)

	// Fail both of the group's two replicas: remaining (0) drops below
	// nMin (1). The fake scheduler carries a fixture topology so, if the
	// nMin guard failed to fire, activation of the (invalid) rewritten
	// topology would otherwise succeed rather than mask the guard behind
	// an unrelated scheduler error.
	failed := map[model.TaskID]string{}
	for id := range m.Tasks {
		failed[id] = "timed out"
	}

	fakeSched := scheduler.NewFakeScheduler()
	fakeSched.Topology = model.NewTopoModel()
	c := New(sess, transport.NewFakeTransport(), fakeSched)
	_, err = c.Recover(occontext.Background(), reader, failed)
	require.Error(t, err)
	e, ok := occerrors.AsError(err)
	require.True(t, ok)
	assert.Equal(t, occerrors.TopologyFailed, e.Kind)
	assert.Contains(t, e.Message, "below nMin")
}

const wideGroupFixture = `
groups:
  - name: online
    n: 4
    nMin: 2
    agentGroup: readout
    collections:
      - name: Processors
        zone: z1
        nCores: 1
        numTasks: 1
`

func TestRecoverShrinksGroupToMinimumSurvivingCount(t *testing.T) {
	path := writeFixture(t, wideGroupFixture)
	reader := topology.YAMLReader{}
	m, err := reader.Read(path)
	require.NoError(t, err)

	sess := session.New("p1")
	sess.Activate(path, m, model.Idle)

	// Fail 2 of the group's 4 distinct collection instances.
	failed := map[model.TaskID]string{}
	for id, task := range m.Tasks {
		if task.Path == "main/Processors_0/task_0" || task.Path == "main/Processors_2/task_0" {
			failed[id] = "timed out"
		}
	}
	require.Len(t, failed, 2)

	fakeSched := scheduler.NewFakeScheduler()
	fakeSched.Topology = model.NewTopoModel()
	c := New(sess, transport.NewFakeTransport(), fakeSched)

	outcome, err := c.Recover(occontext.Background(), reader, failed)
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.ShrunkGroups["online"])
	assert.NotEqual(t, path, outcome.NewTopoFilePath)
	assert.Equal(t, 2, sess.Model.Groups["online"].N)
}

func mustAnyTask(sess *session.Session) model.TaskID {
	for id := range sess.Model.Tasks {
		return id
	}
	return ""
}
