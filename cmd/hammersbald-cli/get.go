package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cuemby/hammersbald/pkg/hammersbald"
)

var getCmd = &cobra.Command{
	Use:   "get <pref>",
	Short: "Fetch a value by its PRef",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid pref %q: %w", args[0], err)
		}

		dataDir, fc, opt, err := commonOptions(cmd)
		if err != nil {
			return err
		}

		db, err := hammersbald.Open(dataDir, resolveOptions(opt.cachePages, opt.fillTarget, opt.queueDepth, fc))
		if err != nil {
			return fmt.Errorf("open: %w", err)
		}
		defer db.Shutdown()

		value, err := db.Get(hammersbald.PRef(raw))
		if err != nil {
			return fmt.Errorf("get: %w", err)
		}

		fmt.Println(string(value))
		return nil
	},
}

var getKeyedCmd = &cobra.Command{
	Use:   "get-keyed <key>",
	Short: "Fetch a value by key",
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

		value, found, err := db.GetKeyed([]byte(args[0]))
		if err != nil {
			return fmt.Errorf("get-keyed: %w", err)
		}
		if !found {
			return fmt.Errorf("key %q not found", args[0])
		}

		fmt.Println(string(value))
		return nil
	},
}
