package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/smart-pricing/internal/granularity"
	"github.com/ethpandaops/smart-pricing/internal/pipeline"
	"github.com/ethpandaops/smart-pricing/internal/runstatus"
)

var runCmd = &cobra.Command{
	Use:   "run <A|B>",
	Short: "Run the full pipeline once",
	Long: `Run executes raw-sync, clean, charts, baseline and optimized-baseline in
order for one granularity, under the run lock.

Example:
  worker run A
  worker run B --config /etc/smart-pricing/config.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := granularity.Parse(args[0])
		if err != nil {
			return err
		}

		return withRunner(cmd, func(a *app) error {
			return a.runner.Run(cmd.Context(), mode)
		})
	},
}

var stageCmd = &cobra.Command{
	Use:   "stage <raw-sync|clean|charts|baseline|optimized-baseline> <A|B>",
	Short: "Run a single pipeline stage",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		stage, err := pipeline.ParseStage(args[0])
		if err != nil {
			return err
		}

		mode, err := granularity.Parse(args[1])
		if err != nil {
			return err
		}

		return withRunner(cmd, func(a *app) error {
			return a.runner.RunStages(cmd.Context(), mode, stage)
		})
	},
}

var repairCmd = &cobra.Command{
	Use:   "repair <A|B>",
	Short: "Re-sync raw data and rebuild the processed datasets",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := granularity.Parse(args[0])
		if err != nil {
			return err
		}

		return withRunner(cmd, func(a *app) error {
			return a.runner.Repair(cmd.Context(), mode)
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [A|B]",
	Short: "Print the last recorded run of each granularity",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		modes := granularity.All

		if len(args) == 1 {
			mode, err := granularity.Parse(args[0])
			if err != nil {
				return err
			}

			modes = []granularity.Mode{mode}
		}

		a, err := newApp(cmd.Context(), logger, cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		out := make(map[string]*runstatus.Status, len(modes))

		for _, mode := range modes {
			status, err := a.status.Get(cmd.Context(), mode)
			if err != nil {
				if errors.Is(err, runstatus.ErrNotFound) {
					out[mode.String()] = nil

					continue
				}

				return err
			}

			out[mode.String()] = &status
		}

		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("encode status: %w", err)
		}

		cmd.Println(string(data))

		return nil
	},
}

func withRunner(cmd *cobra.Command, fn func(a *app) error) error {
	a, err := newApp(cmd.Context(), logger, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(a)
}
