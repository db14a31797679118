// Package cliserver implements a dot-command REPL: a line-oriented
// interface over internal/controller.PartitionController, each command
// backed by its own independent pflag.FlagSet.
package cliserver

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/o2control/odc/internal/controller"
	"github.com/o2control/odc/internal/occontext"
	"github.com/o2control/odc/pkg/api"
)

// REPL dispatches dot-commands against a PartitionController and writes
// human-readable results to Out.
type REPL struct {
	Ctrl *controller.PartitionController
	Out  io.Writer
}

// New returns a REPL bound to ctrl, writing replies to out.
func New(ctrl *controller.PartitionController, out io.Writer) *REPL {
	return &REPL{Ctrl: ctrl, Out: out}
}

// Run reads dot-commands from in until .quit or end-of-input.
func (r *REPL) Run(ctx *occontext.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		quit, err := r.Dispatch(ctx, line)
		if err != nil {
			fmt.Fprintln(r.Out, "error:", err)
		}
		if quit {
			return nil
		}
	}
	return scanner.Err()
}

// Dispatch parses and executes a single dot-command line, returning
// true when the REPL should stop.
func (r *REPL) Dispatch(ctx *occontext.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	name, args := fields[0], fields[1:]

	switch name {
	case ".init":
		return false, r.cmdInit(ctx, args)
	case ".submit":
		return false, r.cmdSubmit(ctx, args)
	case ".activate":
		return false, r.cmdActivate(ctx, args)
	case ".run":
		return false, r.cmdRun(ctx, args)
	case ".update":
		return false, r.cmdUpdate(ctx, args)
	case ".prop":
		return false, r.cmdProp(ctx, args)
	case ".state":
		return false, r.cmdPath(ctx, "GetState", r.Ctrl.GetState, args)
	case ".config":
		return false, r.cmdPath(ctx, "Configure", r.Ctrl.Configure, args)
	case ".start":
		return false, r.cmdPath(ctx, "Start", r.Ctrl.Start, args)
	case ".stop":
		return false, r.cmdPath(ctx, "Stop", r.Ctrl.Stop, args)
	case ".reset":
		return false, r.cmdPath(ctx, "Reset", r.Ctrl.Reset, args)
	case ".term":
		return false, r.cmdPath(ctx, "Terminate", r.Ctrl.Terminate, args)
	case ".down":
		return false, r.cmdDown(ctx, args)
	case ".status":
		return false, r.cmdStatus(args)
	case ".batch":
		return false, r.cmdBatch(ctx, args)
	case ".sleep":
		return false, r.cmdSleep(args)
	case ".help":
		r.printHelp()
		return false, nil
	case ".quit":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q", name)
	}
}

func commonFlagSet(name string) (*pflag.FlagSet, *string, *int64, *int32, *bool) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	partition := fs.String("partition", "", "partition id")
	runNumber := fs.Int64("run", 0, "run number")
	timeout := fs.Int32("timeout", 0, "request timeout in seconds (0 = default)")
	allowRecovery := fs.Bool("recovery", true, "allow nMin recovery on transition failure")
	return fs, partition, runNumber, timeout, allowRecovery
}

func (r *REPL) cmdInit(ctx *occontext.Context, args []string) error {
	fs, partition, runNumber, timeout, _ := commonFlagSet(".init")
	sessionID := fs.String("session", "", "session id to attach to")
	if err := fs.Parse(args); err != nil {
		return err
	}
	result := r.Ctrl.Initialize(ctx, api.InitializeRequest{
		Common:    api.CommonParams{PartitionID: *partition, RunNumber: *runNumber, TimeoutSeconds: *timeout},
		SessionID: *sessionID,
	})
	return r.printResult(result)
}

func (r *REPL) cmdSubmit(ctx *occontext.Context, args []string) error {
	fs, partition, runNumber, timeout, _ := commonFlagSet(".submit")
	plugin := fs.String("plugin", "", "resource plugin name")
	resources := fs.String("resources", "", "resource plugin argument string")
	if err := fs.Parse(args); err != nil {
		return err
	}
	result := r.Ctrl.Submit(ctx, api.SubmitRequest{
		Common:    api.CommonParams{PartitionID: *partition, RunNumber: *runNumber, TimeoutSeconds: *timeout},
		Plugin:    *plugin,
		Resources: *resources,
	})
	return r.printResult(result)
}

func topologyFlags(fs *pflag.FlagSet) *api.TopologySource {
	src := &api.TopologySource{}
	fs.StringVar(&src.TopoFile, "file", "", "topology file path")
	fs.StringVar(&src.TopoContent, "content", "", "inline topology content")
	fs.StringVar(&src.TopoScript, "script", "", "topology generator script")
	return src
}

func (r *REPL) cmdActivate(ctx *occontext.Context, args []string) error {
	fs, partition, runNumber, timeout, _ := commonFlagSet(".activate")
	src := topologyFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	result := r.Ctrl.Activate(ctx, api.ActivateRequest{
		Common:   api.CommonParams{PartitionID: *partition, RunNumber: *runNumber, TimeoutSeconds: *timeout},
		Topology: *src,
	})
	return r.printResult(result)
}

func (r *REPL) cmdRun(ctx *occontext.Context, args []string) error {
	fs, partition, runNumber, timeout, _ := commonFlagSet(".run")
	plugin := fs.String("plugin", "", "resource plugin name")
	resources := fs.String("resources", "", "resource plugin argument string")
	extract := fs.Bool("extract", false, "set ExtractTopoResources on the request (Run does not read it)")
	src := topologyFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	result := r.Ctrl.Run(ctx, api.RunRequest{
		Common:               api.CommonParams{PartitionID: *partition, RunNumber: *runNumber, TimeoutSeconds: *timeout},
		Plugin:               *plugin,
		Resources:            *resources,
		Topology:             *src,
		ExtractTopoResources: *extract,
	})
	return r.printResult(result)
}

func (r *REPL) cmdUpdate(ctx *occontext.Context, args []string) error {
	fs, partition, runNumber, timeout, _ := commonFlagSet(".update")
	src := topologyFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	result := r.Ctrl.Update(ctx, api.UpdateRequest{
		Common:   api.CommonParams{PartitionID: *partition, RunNumber: *runNumber, TimeoutSeconds: *timeout},
		Topology: *src,
	})
	return r.printResult(result)
}

func (r *REPL) cmdProp(ctx *occontext.Context, args []string) error {
	fs, partition, runNumber, timeout, _ := commonFlagSet(".prop")
	path := fs.String("path", "", "path filter")
	sets := fs.StringArray("set", nil, "key=value to set (repeatable)")
	gets := fs.StringArray("get", nil, "key to query (repeatable, empty means all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	common := api.CommonParams{PartitionID: *partition, RunNumber: *runNumber, TimeoutSeconds: *timeout}

	if len(*sets) > 0 {
		var values []api.PropertyKV
		for _, s := range *sets {
			kv := strings.SplitN(s, "=", 2)
			if len(kv) != 2 {
				return fmt.Errorf("invalid --set %q, expected key=value", s)
			}
			values = append(values, api.PropertyKV{Key: kv[0], Value: kv[1]})
		}
		result := r.Ctrl.SetProperties(ctx, api.SetPropertiesRequest{Common: common, Path: *path, Values: values})
		return r.printResult(result)
	}

	reply := r.Ctrl.GetProperties(ctx, api.GetPropertiesRequest{Common: common, Path: *path, Query: *gets})
	fmt.Fprintf(r.Out, "status=%s\n", reply.StatusCode)
	if reply.Error != nil {
		fmt.Fprintf(r.Out, "error=%s: %s\n", reply.Error.Code, reply.Error.Details)
	}
	for id, props := range reply.Devices {
		fmt.Fprintf(r.Out, "  %s: %v\n", id, props)
	}
	for _, id := range reply.Failed {
		fmt.Fprintf(r.Out, "  %s: FAILED\n", id)
	}
	return nil
}

type pathCommand func(ctx *occontext.Context, req api.PathRequest) *api.RequestResult

func (r *REPL) cmdPath(ctx *occontext.Context, name string, call pathCommand, args []string) error {
	fs, partition, runNumber, timeout, allowRecovery := commonFlagSet("." + strings.ToLower(name))
	path := fs.String("path", "", "path filter")
	detailed := fs.Bool("detailed", false, "include per-task detail")
	if err := fs.Parse(args); err != nil {
		return err
	}
	result := call(ctx, api.PathRequest{
		Common:   api.CommonParams{PartitionID: *partition, RunNumber: *runNumber, TimeoutSeconds: *timeout, AllowRecovery: *allowRecovery},
		Path:     *path,
		Detailed: *detailed,
	})
	return r.printResult(result)
}

func (r *REPL) cmdDown(ctx *occontext.Context, args []string) error {
	fs, partition, runNumber, timeout, _ := commonFlagSet(".down")
	if err := fs.Parse(args); err != nil {
		return err
	}
	result := r.Ctrl.Shutdown(ctx, api.ShutdownRequest{
		Common: api.CommonParams{PartitionID: *partition, RunNumber: *runNumber, TimeoutSeconds: *timeout},
	})
	return r.printResult(result)
}

func (r *REPL) cmdStatus(args []string) error {
	fs := pflag.NewFlagSet(".status", pflag.ContinueOnError)
	runningOnly := fs.Bool("running", false, "only include running partitions")
	if err := fs.Parse(args); err != nil {
		return err
	}
	reply := r.Ctrl.Status(api.StatusRequest{RunningOnly: *runningOnly})
	for _, p := range reply.Partitions {
		fmt.Fprintf(r.Out, "%s session=%s status=%s state=%s\n", p.PartitionID, p.SessionID, p.SessionStatus, p.AggregatedState)
	}
	return nil
}

// cmdBatch executes either --cmds "a;b;c" or every line of the file
// named by --cf <path>, running each as its own dot-command in order.
func (r *REPL) cmdBatch(ctx *occontext.Context, args []string) error {
	fs := pflag.NewFlagSet(".batch", pflag.ContinueOnError)
	cmds := fs.String("cmds", "", "semicolon-separated list of dot-commands")
	file := fs.String("cf", "", "path to a file of newline-separated dot-commands")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var lines []string
	switch {
	case *file != "":
		content, err := os.ReadFile(*file)
		if err != nil {
			return err
		}
		lines = strings.Split(string(content), "\n")
	case *cmds != "":
		lines = strings.Split(*cmds, ";")
	default:
		return fmt.Errorf(".batch requires --cmds or --cf")
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, err := r.Dispatch(ctx, line); err != nil {
			fmt.Fprintln(r.Out, "error:", err)
		}
	}
	return nil
}

func (r *REPL) cmdSleep(args []string) error {
	fs := pflag.NewFlagSet(".sleep", pflag.ContinueOnError)
	ms := fs.Int("ms", 0, "milliseconds to sleep")
	if err := fs.Parse(args); err != nil {
		return err
	}
	time.Sleep(time.Duration(*ms) * time.Millisecond)
	return nil
}

func (r *REPL) printHelp() {
	fmt.Fprintln(r.Out, ".init .submit .activate .run .update .prop .state .config .start .stop .reset .term .down .status .batch .sleep .help .quit")
}

func (r *REPL) printResult(result *api.RequestResult) error {
	fmt.Fprintf(r.Out, "status=%s execTimeMs=%d", result.StatusCode, result.ExecTimeMs)
	if result.SessionID != "" {
		fmt.Fprintf(r.Out, " session=%s", result.SessionID)
	}
	if result.TopologyState != nil {
		fmt.Fprintf(r.Out, " state=%s", result.TopologyState.Aggregated)
	}
	fmt.Fprintln(r.Out)
	if result.Message != "" {
		fmt.Fprintln(r.Out, result.Message)
	}
	if result.Error != nil {
		fmt.Fprintf(r.Out, "error: %s: %s\n", result.Error.Code, result.Error.Details)
	}
	if result.TopologyState != nil {
		for _, d := range result.TopologyState.Detailed {
			fmt.Fprintf(r.Out, "  %s %s host=%s path=%s\n", d.TaskID, d.State, d.Host, d.Path)
		}
	}
	return nil
}
