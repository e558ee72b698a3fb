package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/civant/procure-intel/internal/guard"
	"github.com/civant/procure-intel/internal/model"
	"github.com/civant/procure-intel/internal/store"
)

var (
	predsTenant string
	predsStatus string
	predsBuyer  string
	predsLimit  int
)

var predictionsCmd = &cobra.Command{
	Use:   "predictions",
	Short: "List stored predictions",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		ctx, err := guard.WithTenant(cmd.Context(), predsTenant)
		if err != nil {
			return err
		}

		filter := store.PredictionFilter{BuyerID: predsBuyer, Limit: predsLimit}
		if predsStatus != "" {
			st := model.PredictionStatus(predsStatus)
			if !st.Valid() {
				return eris.Errorf("unknown status %q", predsStatus)
			}
			filter.Status = st
		}

		preds, err := env.Store.ListPredictions(ctx, predsTenant, filter)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PREDICTION\tBUYER\tCLUSTER\tSTATUS\tCONFIDENCE\tWINDOW\tVERSION")
		for _, p := range preds {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.1f\t%s..%s\t%d\n",
				p.PredictionID, p.BuyerID, env.Catalog.Label(p.CPVClusterID), p.Status,
				p.Confidence,
				p.WindowStart.Format("2006-01-02"), p.WindowEnd.Format("2006-01-02"),
				p.Version)
		}
		return w.Flush()
	},
}

func init() {
	predictionsCmd.Flags().StringVar(&predsTenant, "tenant", "", "tenant identifier (required)")
	predictionsCmd.Flags().StringVar(&predsStatus, "status", "", "filter by status")
	predictionsCmd.Flags().StringVar(&predsBuyer, "buyer", "", "filter by buyer id")
	predictionsCmd.Flags().IntVar(&predsLimit, "limit", 50, "maximum rows")
	predictionsCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(predictionsCmd)
}
