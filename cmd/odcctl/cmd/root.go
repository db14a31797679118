// Package cmd builds odcctl's Cobra command tree: an interactive dot-
// command REPL by default, plus one subcommand per dot-command for
// scripted single-shot use.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/o2control/odc/internal/cliserver"
	"github.com/o2control/odc/internal/controller"
	"github.com/o2control/odc/internal/occontext"
	"github.com/o2control/odc/internal/scheduler"
	"github.com/o2control/odc/internal/topology"
	"github.com/o2control/odc/internal/transport"
	"github.com/o2control/odc/internal/trigger"
)

var dotCommands = []string{
	"init", "submit", "activate", "run", "update", "prop", "state",
	"config", "start", "stop", "reset", "term", "down", "status",
	"batch", "sleep",
}

func newController() *controller.PartitionController {
	return controller.New(
		topology.YAMLReader{},
		func() scheduler.AgentScheduler { return scheduler.NewFakeScheduler() },
		func() transport.CommandTransport { return transport.NewFakeTransport() },
		nil, false, nil,
		trigger.New(nil, 30_000_000_000),
		30_000_000_000, 30_000_000_000,
		"",
	)
}

// RootCmd is the root Cobra command run from main. With no subcommand it
// drops into the interactive REPL; each dot-command
// also exists as its own subcommand for one-shot scripted invocations,
// reusing the REPL's own flag handling by replaying "<name> <args...>"
// through cliserver.REPL.Dispatch instead of redeclaring every flag.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "odcctl",
		Short: "odcctl drives a partition controller through its dot-command interface.",
		Run: func(cmd *cobra.Command, args []string) {
			repl := cliserver.New(newController(), os.Stdout)
			if err := repl.Run(occontext.Background(), os.Stdin); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		},
	}

	ctrl := newController()
	for _, name := range dotCommands {
		root.AddCommand(dotCommand(ctrl, name))
	}
	root.AddCommand(requirementsCmd())

	return root
}

func dotCommand(ctrl *controller.PartitionController, name string) *cobra.Command {
	return &cobra.Command{
		Use:                "." + name,
		Short:              "run a single ." + name + " request",
		DisableFlagParsing: true,
		Run: func(cmd *cobra.Command, args []string) {
			repl := cliserver.New(ctrl, os.Stdout)
			line := "." + name + " " + strings.Join(args, " ")
			if _, err := repl.Dispatch(occontext.Background(), line); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		},
	}
}

// Execute runs the root command, exiting the process on error.
func Execute() {
	if err := RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
