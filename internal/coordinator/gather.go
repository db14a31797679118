package coordinator

import (
	"github.com/google/uuid"

	occerrors "github.com/o2control/odc/internal/errors"
	"github.com/o2control/odc/internal/model"
	"github.com/o2control/odc/internal/occontext"
)

// GetPropertiesResult is the reply to a GetProperties gather.
type GetPropertiesResult struct {
	Devices map[model.TaskID]map[string]string
	Failed  map[model.TaskID]bool
}

// GetProperties resolves pathFilter to a target task set, broadcasts a
// query, and collects per-task replies, classifying missing replies at
// the deadline as failed.
func (c *Coordinator) GetProperties(ctx *occontext.Context, pathFilter string, keys []string) (*GetPropertiesResult, error) {
	targets := c.sess.ResolvePath(pathFilter)
	if len(targets) == 0 {
		return nil, occerrors.New(occerrors.GetPropertiesFailed, "no tasks found")
	}

	requestID := uuid.NewString()
	if err := c.transport.GetProperties(requestID, targets, keys); err != nil {
		return nil, occerrors.Newf(occerrors.GetPropertiesFailed, "broadcasting query: %v", err)
	}

	result := &GetPropertiesResult{Devices: map[model.TaskID]map[string]string{}, Failed: map[model.TaskID]bool{}}
	pending := make(map[model.TaskID]bool, len(targets))
	for id := range targets {
		pending[id] = true
	}

	replies := c.transport.PropertyReplies(requestID)
	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			for id := range pending {
				result.Failed[id] = true
			}
			return result, occerrors.New(occerrors.RequestTimeout, "get properties timed out")
		case reply, ok := <-replies:
			if !ok {
				for id := range pending {
					result.Failed[id] = true
				}
				return result, occerrors.New(occerrors.GetPropertiesFailed, "reply stream closed early")
			}
			if !pending[reply.TaskID] {
				continue
			}
			delete(pending, reply.TaskID)
			if reply.OK {
				result.Devices[reply.TaskID] = reply.Properties
			} else {
				result.Failed[reply.TaskID] = true
			}
		}
	}
	return result, nil
}

// SetProperties resolves pathFilter to a target task set, broadcasts the
// key/value pairs, and fails overall if any task fails.
func (c *Coordinator) SetProperties(ctx *occontext.Context, pathFilter string, values map[string]string) error {
	targets := c.sess.ResolvePath(pathFilter)
	if len(targets) == 0 {
		return occerrors.New(occerrors.SetPropertiesFailed, "no tasks found")
	}

	requestID := uuid.NewString()
	if err := c.transport.SetProperties(requestID, targets, values); err != nil {
		return occerrors.Newf(occerrors.SetPropertiesFailed, "broadcasting set: %v", err)
	}

	pending := make(map[model.TaskID]bool, len(targets))
	for id := range targets {
		pending[id] = true
	}
	failed := map[model.TaskID]bool{}

	replies := c.transport.PropertyReplies(requestID)
	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			for id := range pending {
				failed[id] = true
			}
			return occerrors.New(occerrors.RequestTimeout, "set properties timed out").WithDetails(taskListDetails(failed))
		case reply, ok := <-replies:
			if !ok {
				for id := range pending {
					failed[id] = true
				}
				return occerrors.New(occerrors.SetPropertiesFailed, "reply stream closed early").WithDetails(taskListDetails(failed))
			}
			if !pending[reply.TaskID] {
				continue
			}
			delete(pending, reply.TaskID)
			if !reply.OK {
				failed[reply.TaskID] = true
			}
		}
	}
	if len(failed) > 0 {
		return occerrors.New(occerrors.SetPropertiesFailed, "one or more tasks failed to set properties").WithDetails(taskListDetails(failed))
	}
	return nil
}

func taskListDetails(ids map[model.TaskID]bool) string {
	s := ""
	for id := range ids {
		if s != "" {
			s += ", "
		}
		s += string(id)
	}
	return s
}
