package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sectorwatch/sectorwatch/internal/models"
	"github.com/sectorwatch/sectorwatch/internal/poller"
)

// errCritical makes check exit with status 2.
var errCritical = errors.New("at least one sector is CRITICAL")

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one monitoring cycle and print the snapshot as JSON",
	Long: "check runs a single cycle against the configured store, records history " +
		"transitions and prints the resulting snapshot. It exits non-zero when any sector is CRITICAL.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := initLogger(cfg.Logging, cmd.ErrOrStderr())
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		mon, err := newMonitor(cfg.Monitor, st, poller.NewSnapshotCache(), nil, logger)
		if err != nil {
			return err
		}

		snap, err := mon.cycle.Run(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}

		for _, status := range snap.Statuses {
			if status.State == models.StateCritical {
				return errCritical
			}
		}
		return nil
	},
}
