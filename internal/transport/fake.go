package transport

import (
	"sync"

	"github.com/o2control/odc/internal/model"
)

// FakeTransport is an in-memory CommandTransport used by tests. Tasks
// "respond" to a ChangeState broadcast only when the test driver calls
// Deliver; this lets tests script exactly which tasks reach their target
// state, which fail, and which never reply (to exercise timeouts).
type FakeTransport struct {
	mu sync.Mutex

	stateCh chan StateChangeEvent
	replyCh map[string]chan PropertyReply

	subscribed map[model.TaskID]bool

	// Behavior is a hook tests set to auto-respond to ChangeState calls;
	// if nil, the driver must call Deliver manually.
	Behavior func(transition model.Transition, target map[model.TaskID]bool) []StateChangeEvent
}

// NewFakeTransport returns a ready-to-use fake with buffered channels
// large enough for typical test topologies.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{
		stateCh:    make(chan StateChangeEvent, 4096),
		replyCh:    map[string]chan PropertyReply{},
		subscribed: map[model.TaskID]bool{},
	}
}

func (f *FakeTransport) ChangeState(_ string, transition model.Transition, target map[model.TaskID]bool) error {
	if f.Behavior == nil {
		return nil
	}
	for _, ev := range f.Behavior(transition, target) {
		f.Deliver(ev)
	}
	return nil
}

// Deliver injects a state-change event as if it arrived over the wire.
func (f *FakeTransport) Deliver(ev StateChangeEvent) {
	f.stateCh <- ev
}

func (f *FakeTransport) GetProperties(requestID string, target map[model.TaskID]bool, _ []string) error {
	ch := f.replyChannel(requestID)
	for id := range target {
		ch <- PropertyReply{TaskID: id, OK: true, Properties: map[string]string{}}
	}
	return nil
}

func (f *FakeTransport) SetProperties(requestID string, target map[model.TaskID]bool, _ map[string]string) error {
	ch := f.replyChannel(requestID)
	for id := range target {
		ch <- PropertyReply{TaskID: id, OK: true}
	}
	return nil
}

func (f *FakeTransport) replyChannel(requestID string) chan PropertyReply {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.replyCh[requestID]
	if !ok {
		ch = make(chan PropertyReply, 4096)
		f.replyCh[requestID] = ch
	}
	return ch
}

func (f *FakeTransport) StateChanges() <-chan StateChangeEvent {
	return f.stateCh
}

func (f *FakeTransport) PropertyReplies(requestID string) <-chan PropertyReply {
	return f.replyChannel(requestID)
}

func (f *FakeTransport) Subscribe(target map[model.TaskID]bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id := range target {
		f.subscribed[id] = true
	}
	return nil
}

func (f *FakeTransport) Unsubscribe(target map[model.TaskID]bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id := range target {
		delete(f.subscribed, id)
	}
	return nil
}
