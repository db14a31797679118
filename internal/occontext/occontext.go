// Package occontext extends Go's context with a contextual logger, the
// way internal partition-controller code needs to carry a per-request
// logger through deeply nested coordinator calls without a global.
package occontext

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Context pairs a context.Context with a *logrus.Entry so call chains can
// log with request-scoped fields without a package-level logger.
type Context struct {
	context.Context
	Log *logrus.Entry
}

// Background returns an empty context with a default logger.
func Background() *Context {
	return &Context{Context: context.Background(), Log: logrus.NewEntry(logrus.StandardLogger())}
}

// New wraps an existing context and logger.
func New(ctx context.Context, log *logrus.Entry) *Context {
	return &Context{Context: ctx, Log: log}
}

// WithCancel is analogous to context.WithCancel.
func WithCancel(parent *Context) (*Context, context.CancelFunc) {
	c, cancel := context.WithCancel(parent.Context)
	return &Context{Context: c, Log: parent.Log}, cancel
}

// WithDeadline is analogous to context.WithDeadline.
func WithDeadline(parent *Context, d time.Time) (*Context, context.CancelFunc) {
	c, cancel := context.WithDeadline(parent.Context, d)
	return &Context{Context: c, Log: parent.Log}, cancel
}

// WithTimeout is WithDeadline(parent, time.Now().Add(timeout)).
func WithTimeout(parent *Context, timeout time.Duration) (*Context, context.CancelFunc) {
	return WithDeadline(parent, time.Now().Add(timeout))
}

// WithLogField returns a copy of parent with an additional logger field.
func WithLogField(parent *Context, key string, val interface{}) *Context {
	return &Context{Context: parent.Context, Log: parent.Log.WithField(key, val)}
}

// WithLogFields returns a copy of parent with additional logger fields.
func WithLogFields(parent *Context, fields logrus.Fields) *Context {
	return &Context{Context: parent.Context, Log: parent.Log.WithFields(fields)}
}

// Remaining returns the time left until the context's deadline, or the
// fallback duration if no deadline is set.
func Remaining(ctx *Context, fallback time.Duration) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		return time.Until(dl)
	}
	return fallback
}

// ErrGroup returns a new error group and an associated *Context, analogous
// to errgroup.WithContext.
func ErrGroup(ctx *Context) (*errgroup.Group, *Context) {
	group, goctx := errgroup.WithContext(ctx)
	return group, &Context{Context: goctx, Log: ctx.Log}
}
