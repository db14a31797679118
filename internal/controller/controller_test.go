package controller

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	occerrors "github.com/o2control/odc/internal/errors"
	"github.com/o2control/odc/internal/model"
	"github.com/o2control/odc/internal/occontext"
	"github.com/o2control/odc/internal/restore"
	"github.com/o2control/odc/internal/scheduler"
	"github.com/o2control/odc/internal/topology"
	"github.com/o2control/odc/internal/transport"
	"github.com/o2control/odc/internal/trigger"
	"github.com/o2control/odc/pkg/api"
)

const singleTaskFixture = `
groups:
  - name: grp
    n: 1
    agentGroup: readout
    collections:
      - name: col
        zone: z1
        nCores: 1
        numTasks: 2
`

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "topo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// writeResourcePlugin writes an executable shell script standing in for a
// real resource plugin binary, printing one fixed submission-request
// line to stdout.
func writeResourcePlugin(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plugin.sh")
	script := "#!/bin/sh\necho 'instances=1 slots=1 groupName=readout'\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

// testRig bundles a controller with the fake collaborators its single
// partition uses, letting tests reach in and script transport/scheduler
// behavior.
type testRig struct {
	Ctrl  *PartitionController
	Sched *scheduler.FakeScheduler
	Tr    *transport.FakeTransport
}

func newTestRig() *testRig {
	sched := scheduler.NewFakeScheduler()
	tr := transport.NewFakeTransport()
	ctrl := New(
		topology.YAMLReader{},
		func() scheduler.AgentScheduler { return sched },
		func() transport.CommandTransport { return tr },
		nil, false, nil,
		trigger.New(nil, time.Second),
		30*time.Second, 30*time.Second,
		"",
	)
	return &testRig{Ctrl: ctrl, Sched: sched, Tr: tr}
}

func autoReplyToTarget(tr *transport.FakeTransport) {
	tr.Behavior = func(transition model.Transition, target map[model.TaskID]bool) []transport.StateChangeEvent {
		var evs []transport.StateChangeEvent
		for id := range target {
			evs = append(evs, transport.StateChangeEvent{TaskID: id, NewState: model.ExpectedState[transition]})
		}
		return evs
	}
}

func TestInitializeCreatesSession(t *testing.T) {
	rig := newTestRig()
	result := rig.Ctrl.Initialize(occontext.Background(), api.InitializeRequest{
		Common: api.CommonParams{PartitionID: "p1"},
	})
	require.Equal(t, api.StatusOK, result.StatusCode)
	assert.NotEmpty(t, result.SessionID)
}

func TestFullLifecycleHappyPath(t *testing.T) {
	rig := newTestRig()
	autoReplyToTarget(rig.Tr)
	ctx := occontext.Background()
	common := api.CommonParams{PartitionID: "p1"}

	init := rig.Ctrl.Initialize(ctx, api.InitializeRequest{Common: common})
	require.Equal(t, api.StatusOK, init.StatusCode)

	submit := rig.Ctrl.Submit(ctx, api.SubmitRequest{Common: common, Plugin: writeResourcePlugin(t), Resources: "readout:1:1:1"})
	require.Equal(t, api.StatusOK, submit.StatusCode, submit.Message)

	path := writeFixture(t, singleTaskFixture)
	m, err := topology.YAMLReader{}.Read(path)
	require.NoError(t, err)
	rig.Sched.Topology = m

	activate := rig.Ctrl.Activate(ctx, api.ActivateRequest{Common: common, Topology: api.TopologySource{TopoFile: path}})
	require.Equal(t, api.StatusOK, activate.StatusCode, activate.Message)

	configure := rig.Ctrl.Configure(ctx, api.PathRequest{Common: common, Detailed: true})
	require.Equal(t, api.StatusOK, configure.StatusCode, configure.Message)
	assert.Equal(t, string(model.FromDeviceState(model.Ready)), configure.TopologyState.Aggregated)

	start := rig.Ctrl.Start(ctx, api.PathRequest{Common: common})
	require.Equal(t, api.StatusOK, start.StatusCode, start.Message)
	assert.Equal(t, string(model.FromDeviceState(model.Running)), start.TopologyState.Aggregated)

	stop := rig.Ctrl.Stop(ctx, api.PathRequest{Common: common})
	require.Equal(t, api.StatusOK, stop.StatusCode, stop.Message)

	reset := rig.Ctrl.Reset(ctx, api.PathRequest{Common: common})
	require.Equal(t, api.StatusOK, reset.StatusCode, reset.Message)
	assert.Equal(t, string(model.FromDeviceState(model.Idle)), reset.TopologyState.Aggregated)

	terminate := rig.Ctrl.Terminate(ctx, api.PathRequest{Common: common})
	require.Equal(t, api.StatusOK, terminate.StatusCode, terminate.Message)

	shutdown := rig.Ctrl.Shutdown(ctx, api.ShutdownRequest{Common: common})
	require.Equal(t, api.StatusOK, shutdown.StatusCode, shutdown.Message)

	status := rig.Ctrl.Status(api.StatusRequest{})
	assert.Empty(t, status.Partitions, "Shutdown removes the partition from the status snapshot")
}

func TestRunCreatesFreshSessionEachTime(t *testing.T) {
	rig := newTestRig()
	autoReplyToTarget(rig.Tr)
	ctx := occontext.Background()
	common := api.CommonParams{PartitionID: "p1"}

	path := writeFixture(t, singleTaskFixture)
	m, err := topology.YAMLReader{}.Read(path)
	require.NoError(t, err)
	rig.Sched.Topology = m

	run := rig.Ctrl.Run(ctx, api.RunRequest{
		Common:    common,
		Plugin:    writeResourcePlugin(t),
		Resources: "readout:1:1:1",
		Topology:  api.TopologySource{TopoFile: path},
	})
	require.Equal(t, api.StatusOK, run.StatusCode, run.Message)
	assert.NotEmpty(t, run.SessionID)
}

func TestRunRejectsExplicitSessionID(t *testing.T) {
	rig := newTestRig()
	result := rig.Ctrl.Run(occontext.Background(), api.RunRequest{
		Common:    api.CommonParams{PartitionID: "p1"},
		SessionID: "sess-1",
	})
	require.Equal(t, api.StatusError, result.StatusCode)
	assert.Equal(t, string(occerrors.RequestNotSupported), result.Error.Code)
}

func TestConfigureWithoutActiveTopologyFails(t *testing.T) {
	rig := newTestRig()
	result := rig.Ctrl.Configure(occontext.Background(), api.PathRequest{Common: api.CommonParams{PartitionID: "p1"}})
	require.Equal(t, api.StatusError, result.StatusCode)
	assert.Equal(t, string(occerrors.ChangeStateFailed), result.Error.Code)
}

func activatedRig(t *testing.T) (*testRig, api.CommonParams) {
	t.Helper()
	rig := newTestRig()
	autoReplyToTarget(rig.Tr)
	ctx := occontext.Background()
	common := api.CommonParams{PartitionID: "p1"}

	require.Equal(t, api.StatusOK, rig.Ctrl.Initialize(ctx, api.InitializeRequest{Common: common}).StatusCode)
	require.Equal(t, api.StatusOK, rig.Ctrl.Submit(ctx, api.SubmitRequest{Common: common, Plugin: writeResourcePlugin(t), Resources: "readout:1:1:1"}).StatusCode)

	path := writeFixture(t, singleTaskFixture)
	m, err := topology.YAMLReader{}.Read(path)
	require.NoError(t, err)
	rig.Sched.Topology = m

	require.Equal(t, api.StatusOK, rig.Ctrl.Activate(ctx, api.ActivateRequest{Common: common, Topology: api.TopologySource{TopoFile: path}}).StatusCode)
	return rig, common
}

func TestGetSetPropertiesRoundTrip(t *testing.T) {
	rig, common := activatedRig(t)
	ctx := occontext.Background()

	set := rig.Ctrl.SetProperties(ctx, api.SetPropertiesRequest{
		Common: common,
		Values: []api.PropertyKV{{Key: "k", Value: "v"}},
	})
	require.Equal(t, api.StatusOK, set.StatusCode, set.Message)

	get := rig.Ctrl.GetProperties(ctx, api.GetPropertiesRequest{Common: common})
	require.Equal(t, api.StatusOK, get.StatusCode)
	assert.Len(t, get.Devices, 2)
	assert.Empty(t, get.Failed)
}

func TestGetStateReportsAggregated(t *testing.T) {
	rig, common := activatedRig(t)
	result := rig.Ctrl.GetState(occontext.Background(), api.PathRequest{Common: common, Detailed: true})
	require.Equal(t, api.StatusOK, result.StatusCode)
	assert.Equal(t, string(model.FromDeviceState(model.Idle)), result.TopologyState.Aggregated)
	assert.Len(t, result.TopologyState.Detailed, 2)
}

// TestConfigureTimesOutWhenTasksNeverReply drives the literal end-to-end
// timeout scenario: a one-second deadline against a topology where only
// one of two tasks ever replies to the ChangeState broadcast surfaces
// RequestTimeout, and the aggregated state reported back reflects the
// tasks' last known state — one advanced, one still Idle — rather than
// pretending the whole topology agrees.
func TestConfigureTimesOutWhenTasksNeverReply(t *testing.T) {
	rig, common := activatedRig(t)
	var stuck model.TaskID
	first := true
	rig.Tr.Behavior = func(transition model.Transition, target map[model.TaskID]bool) []transport.StateChangeEvent {
		var evs []transport.StateChangeEvent
		for id := range target {
			if first {
				stuck = id
				first = false
				continue
			}
			evs = append(evs, transport.StateChangeEvent{TaskID: id, NewState: model.ExpectedState[transition]})
		}
		return evs
	}
	common.TimeoutSeconds = 1

	start := time.Now()
	result := rig.Ctrl.Configure(occontext.Background(), api.PathRequest{Common: common, Detailed: true})
	elapsed := time.Since(start)

	require.Equal(t, api.StatusError, result.StatusCode)
	require.NotNil(t, result.Error)
	assert.Equal(t, string(occerrors.RequestTimeout), result.Error.Code)
	assert.Equal(t, string(model.AggregatedMixed), result.TopologyState.Aggregated)
	assert.NotEmpty(t, stuck)
	assert.InDelta(t, time.Second, elapsed, float64(500*time.Millisecond))
}

func TestShutdownRemovesPartition(t *testing.T) {
	rig := newTestRig()
	ctx := occontext.Background()
	common := api.CommonParams{PartitionID: "p1"}
	require.Equal(t, api.StatusOK, rig.Ctrl.Initialize(ctx, api.InitializeRequest{Common: common}).StatusCode)

	result := rig.Ctrl.Shutdown(ctx, api.ShutdownRequest{Common: common})
	require.Equal(t, api.StatusOK, result.StatusCode)

	status := rig.Ctrl.Status(api.StatusRequest{})
	assert.Empty(t, status.Partitions)
}

func TestLoadRestoreFileReattachesEntries(t *testing.T) {
	dir := t.TempDir()
	store := restore.NewStore(filepath.Join(dir, "restore.yaml"))
	require.NoError(t, store.Put("p1", "sess-1"))

	sched := scheduler.NewFakeScheduler()
	tr := transport.NewFakeTransport()
	ctrl := New(
		topology.YAMLReader{},
		func() scheduler.AgentScheduler { return sched },
		func() transport.CommandTransport { return tr },
		store, true, nil,
		trigger.New(nil, time.Second),
		30*time.Second, 30*time.Second,
		"",
	)

	require.NoError(t, ctrl.LoadRestoreFile(occontext.Background()))

	status := ctrl.Status(api.StatusRequest{})
	require.Len(t, status.Partitions, 1)
	assert.Equal(t, "p1", status.Partitions[0].PartitionID)
	assert.Equal(t, api.SessionRunning, status.Partitions[0].SessionStatus)
}
