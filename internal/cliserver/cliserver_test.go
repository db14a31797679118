package cliserver

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/o2control/odc/internal/controller"
	"github.com/o2control/odc/internal/occontext"
	"github.com/o2control/odc/internal/scheduler"
	"github.com/o2control/odc/internal/topology"
	"github.com/o2control/odc/internal/transport"
	"github.com/o2control/odc/internal/trigger"
)

func newTestREPL() (*REPL, *bytes.Buffer) {
	ctrl := controller.New(
		topology.YAMLReader{},
		func() scheduler.AgentScheduler { return scheduler.NewFakeScheduler() },
		func() transport.CommandTransport { return transport.NewFakeTransport() },
		nil, false, nil,
		trigger.New(nil, time.Second),
		5*time.Second, 5*time.Second,
		"",
	)
	var out bytes.Buffer
	return New(ctrl, &out), &out
}

func TestDispatchInitPrintsStatusAndSession(t *testing.T) {
	r, out := newTestREPL()
	quit, err := r.Dispatch(occontext.Background(), ".init --partition p1")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Contains(t, out.String(), "status=OK")
	assert.Contains(t, out.String(), "session=")
}

func TestDispatchUnknownCommandErrors(t *testing.T) {
	r, _ := newTestREPL()
	_, err := r.Dispatch(occontext.Background(), ".bogus")
	assert.Error(t, err)
}

func TestDispatchQuitStopsTheLoop(t *testing.T) {
	r, _ := newTestREPL()
	quit, err := r.Dispatch(occontext.Background(), ".quit")
	require.NoError(t, err)
	assert.True(t, quit)
}

func TestDispatchBlankLineIsNoOp(t *testing.T) {
	r, out := newTestREPL()
	quit, err := r.Dispatch(occontext.Background(), "   ")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Empty(t, out.String())
}

func TestDispatchStatusListsInitializedPartition(t *testing.T) {
	r, out := newTestREPL()
	_, err := r.Dispatch(occontext.Background(), ".init --partition p1")
	require.NoError(t, err)
	out.Reset()

	_, err = r.Dispatch(occontext.Background(), ".status")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "p1")
	assert.Contains(t, out.String(), "RUNNING")
}

func TestDispatchPropSetRequiresKeyValueShape(t *testing.T) {
	r, _ := newTestREPL()
	_, err := r.Dispatch(occontext.Background(), ".prop --partition p1 --set badformat")
	assert.Error(t, err)
}

func TestDispatchPropGetOnEmptyPartitionPrintsError(t *testing.T) {
	r, out := newTestREPL()
	_, err := r.Dispatch(occontext.Background(), ".prop --partition p1")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "status=ERROR")
}

func TestDispatchSleepBlocksForRequestedDuration(t *testing.T) {
	r, _ := newTestREPL()
	start := time.Now()
	_, err := r.Dispatch(occontext.Background(), ".sleep --ms 30")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestDispatchHelpListsCommands(t *testing.T) {
	r, out := newTestREPL()
	_, err := r.Dispatch(occontext.Background(), ".help")
	require.NoError(t, err)
	assert.Contains(t, out.String(), ".init")
	assert.Contains(t, out.String(), ".quit")
}

func TestBatchRunsSemicolonSeparatedCommands(t *testing.T) {
	r, out := newTestREPL()
	// cmdBatch is exercised directly here (rather than through Dispatch's
	// own whitespace-only line split) since a --cmds value chaining
	// commands that each carry their own space-separated flags cannot
	// round-trip through that outer split.
	err := r.cmdBatch(occontext.Background(), []string{"--cmds", ".init --partition=p1;.status"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "status=OK")
	assert.Contains(t, out.String(), "p1")
}

func TestBatchRunsCommandsFromFile(t *testing.T) {
	r, out := newTestREPL()
	path := filepath.Join(t.TempDir(), "commands.txt")
	require.NoError(t, os.WriteFile(path, []byte(".init --partition p1\n.status\n"), 0o644))

	_, err := r.Dispatch(occontext.Background(), ".batch --cf "+path)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "p1")
}

func TestBatchRequiresCmdsOrFile(t *testing.T) {
	r, _ := newTestREPL()
	_, err := r.Dispatch(occontext.Background(), ".batch")
	assert.Error(t, err)
}

func TestRunStopsOnQuitAndSkipsBlankLines(t *testing.T) {
	r, out := newTestREPL()
	in := strings.NewReader("\n.init --partition p1\n.quit\n.status\n")
	err := r.Run(occontext.Background(), in)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "status=OK")
	// The line after .quit must never execute.
	assert.NotContains(t, out.String(), "RUNNING")
}

func TestConfigureWithoutTopologyReportsError(t *testing.T) {
	r, out := newTestREPL()
	_, err := r.Dispatch(occontext.Background(), ".init --partition p1")
	require.NoError(t, err)
	out.Reset()

	_, err = r.Dispatch(occontext.Background(), ".config --partition p1")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "status=ERROR")
	assert.Contains(t, out.String(), "CHANGE_STATE_FAILED")
}
