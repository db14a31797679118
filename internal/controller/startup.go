package controller

import (
	"github.com/o2control/odc/internal/occontext"
	"github.com/o2control/odc/pkg/api"
)

// LoadRestoreFile reattaches every {partitionId, sessionId} pair
// recorded in the restore file, firing the Shutdown trigger for any
// entry that fails to reattach.
func (c *PartitionController) LoadRestoreFile(ctx *occontext.Context) error {
	if !c.restoreEnabled {
		return nil
	}
	entries, err := c.restoreStore.Load()
	if err != nil {
		return err
	}

	for _, e := range entries {
		result := c.Initialize(ctx, api.InitializeRequest{
			Common:    api.CommonParams{PartitionID: e.PartitionID},
			SessionID: e.SessionID,
		})
		if result.StatusCode == api.StatusOK {
			continue
		}
		details := ""
		if result.Error != nil {
			details = result.Error.Details
		}
		ctx.Log.WithField("partition", e.PartitionID).Warn("restore-file reattach failed")
		c.triggers.Fire(ctx, "Shutdown", e.PartitionID, string(api.StatusError), details)
	}
	return nil
}
