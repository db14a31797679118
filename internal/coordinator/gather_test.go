package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	occerrors "github.com/o2control/odc/internal/errors"
	"github.com/o2control/odc/internal/model"
	"github.com/o2control/odc/internal/occontext"
	"github.com/o2control/odc/internal/scheduler"
	"github.com/o2control/odc/internal/transport"
)

func TestGetPropertiesGathersEveryReply(t *testing.T) {
	sess := newActivatedSession(t, "t1", "t2")
	c := New(sess, transport.NewFakeTransport(), scheduler.NewFakeScheduler())

	ctx, cancel := occontext.WithTimeout(occontext.Background(), 2*time.Second)
	defer cancel()

	result, err := c.GetProperties(ctx, "", nil)
	require.NoError(t, err)
	assert.Len(t, result.Devices, 2)
	assert.Empty(t, result.Failed)
}

func TestGetPropertiesNoTasksMatchIsAnError(t *testing.T) {
	sess := newActivatedSession(t, "t1")
	c := New(sess, transport.NewFakeTransport(), scheduler.NewFakeScheduler())

	ctx, cancel := occontext.WithTimeout(occontext.Background(), time.Second)
	defer cancel()

	_, err := c.GetProperties(ctx, "no/such/path", nil)
	require.Error(t, err)
	e, ok := occerrors.AsError(err)
	require.True(t, ok)
	assert.Equal(t, occerrors.GetPropertiesFailed, e.Kind)
}

// partialReplyTransport answers every GetProperties/SetProperties
// broadcast for every target task except withheld, letting a test drive
// the "missing at deadline classifies as failed" rule without needing
// FakeTransport's answer-everyone behavior.
type partialReplyTransport struct {
	*transport.FakeTransport
	withheld model.TaskID
}

func (p *partialReplyTransport) GetProperties(requestID string, target map[model.TaskID]bool, keys []string) error {
	return p.FakeTransport.GetProperties(requestID, p.trim(target), keys)
}

func (p *partialReplyTransport) SetProperties(requestID string, target map[model.TaskID]bool, values map[string]string) error {
	return p.FakeTransport.SetProperties(requestID, p.trim(target), values)
}

func (p *partialReplyTransport) trim(target map[model.TaskID]bool) map[model.TaskID]bool {
	trimmed := map[model.TaskID]bool{}
	for id := range target {
		if id != p.withheld {
			trimmed[id] = true
		}
	}
	return trimmed
}

func TestGetPropertiesClassifiesMissingReplyAsFailedOnTimeout(t *testing.T) {
	sess := newActivatedSession(t, "t1", "t2")
	targets := sess.ResolvePath("")
	var withheld model.TaskID
	for id := range targets {
		withheld = id
		break
	}

	tr := &partialReplyTransport{FakeTransport: transport.NewFakeTransport(), withheld: withheld}
	c := New(sess, tr, scheduler.NewFakeScheduler())

	ctx, cancel := occontext.WithTimeout(occontext.Background(), 50*time.Millisecond)
	defer cancel()

	result, err := c.GetProperties(ctx, "", nil)
	require.Error(t, err)
	e, ok := occerrors.AsError(err)
	require.True(t, ok)
	assert.Equal(t, occerrors.RequestTimeout, e.Kind)
	assert.True(t, result.Failed[withheld])
	assert.Len(t, result.Failed, 1)
}

func TestSetPropertiesFailsWhenAnyTaskFails(t *testing.T) {
	sess := newActivatedSession(t, "t1", "t2")
	targets := sess.ResolvePath("")
	var withheld model.TaskID
	for id := range targets {
		withheld = id
		break
	}

	tr := &partialReplyTransport{FakeTransport: transport.NewFakeTransport(), withheld: withheld}
	c := New(sess, tr, scheduler.NewFakeScheduler())

	ctx, cancel := occontext.WithTimeout(occontext.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.SetProperties(ctx, "", map[string]string{"k": "v"})
	require.Error(t, err)
	e, ok := occerrors.AsError(err)
	require.True(t, ok)
	assert.Equal(t, occerrors.RequestTimeout, e.Kind)
}
