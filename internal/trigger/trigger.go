// Package trigger runs request-trigger plugins: shell commands fired
// after a request completes, keyed by request name, for external
// auditing. Failures are logged and never returned to the caller,
// matching the resource-plugin/script execution style in
// internal/topology.Materialize.
package trigger

import (
	"bytes"
	"os/exec"
	"time"

	"github.com/o2control/odc/internal/occontext"
)

// Runner fires the configured shell command for a request kind, if any.
type Runner struct {
	commands map[string]string
	timeout  time.Duration
}

// New returns a Runner backed by a requestName -> shell command map
// (internal/config.Config.RequestTriggers).
func New(commands map[string]string, timeout time.Duration) *Runner {
	if commands == nil {
		commands = map[string]string{}
	}
	return &Runner{commands: commands, timeout: timeout}
}

// Fire runs the trigger configured for requestName, if any, passing
// partitionID, statusCode and message as positional arguments. It never
// returns an error to the caller; failures are logged at Warn level.
func (r *Runner) Fire(ctx *occontext.Context, requestName, partitionID, statusCode, message string) {
	cmd, ok := r.commands[requestName]
	if !ok || cmd == "" {
		return
	}

	cctx, cancel := occontext.WithTimeout(ctx, r.timeout)
	defer cancel()

	c := exec.CommandContext(cctx, "sh", "-c", cmd, "--", partitionID, statusCode, message)
	var stderr bytes.Buffer
	c.Stderr = &stderr
	if err := c.Run(); err != nil {
		ctx.Log.WithError(err).WithFields(map[string]interface{}{
			"request":   requestName,
			"partition": partitionID,
			"stderr":    stderr.String(),
		}).Warn("request trigger failed")
	}
}
