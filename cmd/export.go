package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/civant/procure-intel/internal/export"
	"github.com/civant/procure-intel/internal/guard"
	"github.com/civant/procure-intel/internal/model"
	"github.com/civant/procure-intel/internal/store"
)

var (
	exportTenant       string
	exportStatus       string
	exportOut          string
	exportHistory      bool
	exportHistoryLimit int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write predictions to an XLSX report",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		ctx, err := guard.WithTenant(cmd.Context(), exportTenant)
		if err != nil {
			return err
		}

		filter := store.PredictionFilter{Status: model.PredictionStatus(exportStatus)}
		preds, err := env.Store.ListPredictions(ctx, exportTenant, filter)
		if err != nil {
			return err
		}

		var history []model.CycleHistoryRow
		if exportHistory {
			for _, p := range preds {
				rows, err := env.Store.ListCycleHistory(ctx, exportTenant, p.BuyerID, p.CPVClusterID, exportHistoryLimit)
				if err != nil {
					return err
				}
				history = append(history, rows...)
			}
		}

		if err := export.WritePredictionReport(exportOut, preds, history...); err != nil {
			return err
		}
		fmt.Printf("wrote %d predictions (%d history rows) to %s\n", len(preds), len(history), exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportTenant, "tenant", "", "tenant identifier (required)")
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "filter by status")
	exportCmd.Flags().StringVar(&exportOut, "out", "predictions.xlsx", "output file path")
	exportCmd.Flags().BoolVar(&exportHistory, "history", false, "include a cycle-history trend sheet")
	exportCmd.Flags().IntVar(&exportHistoryLimit, "history-limit", 20, "history rows per prediction")
	exportCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(exportCmd)
}
