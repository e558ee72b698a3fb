package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/civant/procure-intel/internal/guard"
	"github.com/civant/procure-intel/internal/model"
)

var (
	candTenant    string
	resolveAction string
	resolveActor  string
)

var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "List reconciliation candidates pending review",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		ctx, err := guard.WithTenant(cmd.Context(), candTenant)
		if err != nil {
			return err
		}

		pending, err := env.Queue.Pending(ctx, candTenant)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CANDIDATE\tNOTICE\tPREDICTION\tCONFIDENCE")
		for _, c := range pending {
			fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\n",
				c.CandidateID, c.CanonicalNoticeID, c.PredictionID, c.MatchConfidence)
		}
		return w.Flush()
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <candidate-id>",
	Short: "Accept or reject a pending reconciliation candidate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		decision := model.ReconciliationDecision(resolveAction)
		if !decision.Valid() {
			return eris.Errorf("decision must be %q or %q", model.DecisionAccept, model.DecisionReject)
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		ctx, err := guard.WithTenant(cmd.Context(), candTenant)
		if err != nil {
			return err
		}
		// Resolving requires admin rights; the CLI operator has them.
		ctx, err = guard.WithAdmin(ctx)
		if err != nil {
			return err
		}

		res, err := env.Queue.ResolveCandidate(ctx, candTenant, args[0], decision, resolveActor)
		if err != nil {
			return err
		}
		if !res.Applied {
			fmt.Printf("%s already resolved, nothing to do\n", args[0])
			return nil
		}
		fmt.Printf("%s %sed\n", args[0], resolveAction)
		return nil
	},
}

func init() {
	candidatesCmd.Flags().StringVar(&candTenant, "tenant", "", "tenant identifier (required)")
	candidatesCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(candidatesCmd)

	resolveCmd.Flags().StringVar(&candTenant, "tenant", "", "tenant identifier (required)")
	resolveCmd.Flags().StringVar(&resolveAction, "decision", "", "accept or reject (required)")
	resolveCmd.Flags().StringVar(&resolveActor, "actor", "cli", "actor recorded in the reconciliation log")
	resolveCmd.MarkFlagRequired("tenant")
	resolveCmd.MarkFlagRequired("decision")
	rootCmd.AddCommand(resolveCmd)
}
