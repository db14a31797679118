package controller

import (
	"bufio"
	"bytes"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	occerrors "github.com/o2control/odc/internal/errors"
	"github.com/o2control/odc/internal/occontext"
	"github.com/o2control/odc/internal/scheduler"
)

// resolvePlugin runs the named resource plugin binary directly, not
// through a shell (unlike internal/topology.Materialize's generator
// scripts), with resources as its single argument, under a fixed
// timeout, capturing stdout: the plugin binary itself is external, only
// its invocation contract lives here. Each
// stdout line is one submission request, a space-separated set of
// key=value pairs (rms, instances, slots, config, groupName).
func resolvePlugin(ctx *occontext.Context, pluginDir, plugin, resources string, timeout time.Duration) ([]scheduler.SubmitParams, error) {
	if plugin == "" {
		return nil, occerrors.New(occerrors.ResourcePluginFailed, "no resource plugin specified")
	}

	cctx, cancel := occontext.WithTimeout(ctx, timeout)
	defer cancel()

	binary := plugin
	if pluginDir != "" {
		binary = filepath.Join(pluginDir, plugin)
	}
	cmd := exec.CommandContext(cctx, binary, resources)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, occerrors.Newf(occerrors.ResourcePluginFailed, "plugin %q failed: %v (%s)", plugin, err, stderr.String())
	}

	var out []scheduler.SubmitParams
	scanner := bufio.NewScanner(&stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		params := scheduler.SubmitParams{Instances: 1, Slots: 1}
		for _, field := range strings.Fields(line) {
			kv := strings.SplitN(field, "=", 2)
			if len(kv) != 2 {
				continue
			}
			switch kv[0] {
			case "rms":
				params.RMS = kv[1]
			case "instances":
				if n, err := strconv.Atoi(kv[1]); err == nil {
					params.Instances = n
				}
			case "slots":
				if n, err := strconv.Atoi(kv[1]); err == nil {
					params.Slots = n
				}
			case "config":
				params.Config = kv[1]
			case "groupName":
				params.GroupName = kv[1]
			}
		}
		out = append(out, params)
	}
	if len(out) == 0 {
		return nil, occerrors.Newf(occerrors.ResourcePluginFailed, "plugin %q produced no submission parameters", plugin)
	}
	return out, nil
}
