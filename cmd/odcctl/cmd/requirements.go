package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/o2control/odc/internal/model"
	"github.com/o2control/odc/internal/topology"
)

// requirementsCmd previews the AgentGroupInfo a topology fixture would
// resolve to, without a scheduler session or partition: a session-free,
// client-side supplement to Submit's plugin-resolution step.
func requirementsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requirements <topology-fixture>",
		Short: "print the AgentGroupInfo a topology fixture requires",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := (topology.YAMLReader{}).Read(args[0])
			if err != nil {
				return err
			}
			groups := model.ExtractRequirements(m)
			for name, info := range groups {
				min := "-"
				if info.MinAgents != nil {
					min = fmt.Sprintf("%d", *info.MinAgents)
				}
				fmt.Printf("%s zone=%s agents=%d min=%s slots=%d cores=%d\n",
					name, info.Zone, info.NumAgents, min, info.NumSlots, info.NumCores)
			}
			return nil
		},
	}
}
