package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/hammersbald/pkg/hammersbald"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new, empty hammersbald database",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, fc, opt, err := commonOptions(cmd)
		if err != nil {
			return err
		}

		db, err := hammersbald.Create(dataDir, resolveOptions(opt.cachePages, opt.fillTarget, opt.queueDepth, fc))
		if err != nil {
			return fmt.Errorf("create: %w", err)
		}
		defer db.Shutdown()

		fmt.Printf("created database at %s\n", dataDir)
		return nil
	},
}
