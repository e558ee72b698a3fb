package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/civant/procure-intel/internal/guard"
)

var (
	withdrawTenant string
	withdrawActor  string
)

var withdrawCmd = &cobra.Command{
	Use:   "withdraw <prediction-id>",
	Short: "Withdraw a published prediction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		ctx, err := guard.WithTenant(cmd.Context(), withdrawTenant)
		if err != nil {
			return err
		}

		pred, err := env.Engine.Withdraw(ctx, withdrawTenant, args[0], withdrawActor)
		if err != nil {
			return err
		}
		fmt.Printf("%s withdrawn (was v%d)\n", pred.PredictionID, pred.Version)
		return nil
	},
}

func init() {
	withdrawCmd.Flags().StringVar(&withdrawTenant, "tenant", "", "tenant identifier (required)")
	withdrawCmd.Flags().StringVar(&withdrawActor, "actor", "cli", "actor recorded in the reconciliation log")
	withdrawCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(withdrawCmd)
}
