package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/civant/procure-intel/internal/export"
	"github.com/civant/procure-intel/internal/guard"
	"github.com/civant/procure-intel/internal/model"
)

var importTenant string

var importCmd = &cobra.Command{
	Use:   "import <signals.xlsx|signals.csv>",
	Short: "Bulk-load signals from an XLSX workbook or CSV file",
	Long: `Parses a signal workbook and appends its rows to the signal store.
Cluster ids are normalized against the cluster catalog; rows whose id is
already present are skipped, so re-running an import is safe.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		ctx, err := guard.WithTenant(cmd.Context(), importTenant)
		if err != nil {
			return err
		}

		var signals []model.Signal
		if strings.EqualFold(filepath.Ext(args[0]), ".csv") {
			signals, err = export.ReadSignalsCSV(args[0])
		} else {
			signals, err = export.ReadSignalsFile(args[0])
		}
		if err != nil {
			return err
		}

		for i := range signals {
			sig := &signals[i]
			if sig.TenantID == "" {
				sig.TenantID = importTenant
			}
			if sig.TenantID != importTenant {
				return eris.Errorf("row for tenant %q in an import for %q", sig.TenantID, importTenant)
			}
			sig.CPVClusterID = env.Catalog.Normalize(sig.CPVClusterID)
			// Deterministic ids make re-imports a no-op at the store's
			// conflict check.
			key := fmt.Sprintf("%s|%s|%s|%s|%s|%.2f",
				sig.TenantID, sig.SignalType, sig.BuyerID, sig.CPVClusterID,
				sig.OccurredAt.UTC().Format(time.RFC3339), sig.ValueEUR)
			sig.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
		}

		inserted, err := env.Store.BulkInsertSignals(ctx, signals)
		if err != nil {
			return err
		}

		zap.L().Info("signals imported",
			zap.String("tenant", importTenant),
			zap.Int("rows", len(signals)),
			zap.Int64("inserted", inserted),
		)
		fmt.Printf("rows=%d inserted=%d skipped=%d\n", len(signals), inserted, int64(len(signals))-inserted)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importTenant, "tenant", "", "tenant identifier (required)")
	importCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(importCmd)
}
