package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/hammersbald/pkg/hammersbald"
)

var putCmd = &cobra.Command{
	Use:   "put <value>",
	Short: "Store a value by reference and print the assigned PRef",
	Args:  cobra.ExactArgs(1),
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

		p, err := db.Put([]byte(args[0]))
		if err != nil {
			return fmt.Errorf("put: %w", err)
		}
		if err := db.Batch(); err != nil {
			return fmt.Errorf("batch: %w", err)
		}

		fmt.Printf("%d\n", uint64(p))
		return nil
	},
}

var putKeyedCmd = &cobra.Command{
	Use:   "put-keyed <key> <value>",
	Short: "Store a value under a key",
	Args:  cobra.ExactArgs(2),
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

		if _, err := db.PutKeyed([]byte(args[0]), []byte(args[1])); err != nil {
			return fmt.Errorf("put-keyed: %w", err)
		}
		if err := db.Batch(); err != nil {
			return fmt.Errorf("batch: %w", err)
		}

		fmt.Println("ok")
		return nil
	},
}
