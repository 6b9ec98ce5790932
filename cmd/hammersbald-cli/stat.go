package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/hammersbald/pkg/hammersbald"
	"github.com/cuemby/hammersbald/pkg/types"
)

var statCmd = &cobra.Command{
	Use:   "stat",
	Short: "Print the on-disk statistics of a hammersbald database",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, fc, opt, err := commonOptions(cmd)
		if err != nil {
			return err
		}

		db, err := hammersbald.Open(dataDir, resolveOptions(opt.cachePages, opt.fillTarget, opt.queueDepth, fc))
		if err != nil {
			return fmt.Errorf("open: %w", err)
		}
		defer db.Shutdown()

		raw, err := db.Stats()
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		stats := snapshotFromDBStats(raw)

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}

		fmt.Printf("path:            %s\n", stats.Path)
		fmt.Printf("instance id:     %s\n", stats.InstanceID)
		fmt.Printf("snapshot taken:  %s\n", stats.OpenedAt.Format(time.RFC3339))
		fmt.Printf("format version:  %d\n", stats.FormatVersion)
		fmt.Printf("level:           %d\n", stats.Level)
		fmt.Printf("split pointer:   %d\n", stats.SplitPointer)
		fmt.Printf("slot count:      %d\n", stats.SlotCount)
		fmt.Printf("fill target:     %d\n", stats.FillTarget)
		fmt.Printf("data store end:  %d bytes\n", stats.DataStoreEnd)
		fmt.Printf("link store end:  %d bytes\n", stats.LinkStoreEnd)
		fmt.Printf("cached pages:    %d\n", stats.CachedPages)
		fmt.Printf("dirty pages:     %d\n", stats.DirtyPages)
		fmt.Printf("terminal error:  %t\n", stats.TerminalError)
		return nil
	},
}

func init() {
	statCmd.Flags().Bool("json", false, "print the snapshot as JSON (types.Stats shape) instead of plain text")
}

// snapshotFromDBStats adapts the engine's internal Stats into the
// shared types.Stats shape the CLI, and any future HTTP status
// endpoint, reports to callers in.
func snapshotFromDBStats(s hammersbald.Stats) types.Stats {
	return types.Stats{
		Path:          s.Path,
		FormatVersion: s.FormatVersion,
		Level:         s.Level,
		SplitPointer:  s.SplitPointer,
		SlotCount:     s.SlotCount,
		FillTarget:    s.FillTarget,
		DataStoreEnd:  s.DataStoreEnd,
		LinkStoreEnd:  s.LinkStoreEnd,
		CachedPages:   s.CachedPages,
		DirtyPages:    s.DirtyPages,
		TerminalError: s.TerminalError,
		OpenedAt:      time.Now(),
		InstanceID:    s.InstanceID,
	}
}
