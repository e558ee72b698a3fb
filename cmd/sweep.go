package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/civant/procure-intel/internal/guard"
)

var sweepTenant string

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Mark predictions whose window expired as missed",
	Long: `Scans the tenant's published and monitoring predictions and moves any
whose window end plus the configured grace period has passed to Miss.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		ctx, err := guard.WithTenant(cmd.Context(), sweepTenant)
		if err != nil {
			return err
		}

		swept, err := env.Engine.SweepMisses(ctx, sweepTenant)
		if err != nil {
			return err
		}
		fmt.Printf("swept=%d\n", swept)
		return nil
	},
}

func init() {
	sweepCmd.Flags().StringVar(&sweepTenant, "tenant", "", "tenant identifier (required)")
	sweepCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(sweepCmd)
}
