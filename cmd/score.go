package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/civant/procure-intel/internal/guard"
)

var (
	scoreTenant  string
	scoreBuyer   string
	scoreCluster string
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Recompute predictions from signal history",
	Long: `Rescores buyer/cluster pairs from their full signal history and moves
each stored prediction through any due lifecycle transition.

With --buyer and --cluster, rescores a single pair and prints the result.
Without them, rescores every pair with signal activity for the tenant,
bounded by the configured batch concurrency and rate limit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		ctx, err := guard.WithTenant(cmd.Context(), scoreTenant)
		if err != nil {
			return err
		}

		if scoreBuyer != "" || scoreCluster != "" {
			if scoreBuyer == "" || scoreCluster == "" {
				return eris.New("--buyer and --cluster must be set together")
			}
			pred, err := env.Engine.RecomputePair(ctx, scoreTenant, scoreBuyer, env.Catalog.Normalize(scoreCluster))
			if err != nil {
				return err
			}
			fmt.Printf("%s  %s/%s  confidence=%.2f  status=%s  window=%s..%s  v%d\n",
				pred.PredictionID, pred.BuyerID, pred.CPVClusterID,
				pred.Confidence, pred.Status,
				pred.WindowStart.Format("2006-01-02"), pred.WindowEnd.Format("2006-01-02"),
				pred.Version)
			return nil
		}

		result, err := env.Engine.RecomputeTenant(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("tenant recompute complete",
			zap.String("tenant", scoreTenant),
			zap.Int("pairs", result.Pairs),
			zap.Int("scored", result.Scored),
			zap.Int("failed", result.Failed),
		)
		fmt.Printf("pairs=%d scored=%d failed=%d\n", result.Pairs, result.Scored, result.Failed)
		return nil
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreTenant, "tenant", "", "tenant identifier (required)")
	scoreCmd.Flags().StringVar(&scoreBuyer, "buyer", "", "buyer id (rescore single pair)")
	scoreCmd.Flags().StringVar(&scoreCluster, "cluster", "", "cpv cluster id (rescore single pair)")
	scoreCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(scoreCmd)
}
