package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/hammersbald/pkg/hammersbald"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Open the database, commit a batch (flush, fsync, truncate the journal), and close it",
	Long: `batch opens the database, immediately commits a batch, and closes it
again. Open already rolls back any journal left by an unclean shutdown,
and it takes the database's exclusive lock, so this command fails with
an already-open error against a database another process holds open.`,
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

		if err := db.Batch(); err != nil {
			return fmt.Errorf("batch: %w", err)
		}

		fmt.Println("batch committed")
		return nil
	},
}
