package export

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/civant/procure-intel/internal/model"
)

func TestWritePredictionReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	preds := []model.Prediction{
		{
			TenantID:     "acme_corp",
			PredictionID: "pred-1",
			BuyerID:      "buyer-1",
			CPVClusterID: "cluster_it_software",
			WindowStart:  time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
			WindowEnd:    time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
			Confidence:   77.5,
			SubScores:    model.SubScores{Cycle: 20, Timing: 12, Behavioural: 8, Structural: 9, External: 11.5, Quality: 17},
			Status:       model.StatusPublished,
			GeneratedAt:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
			Version:      3,
		},
	}
	require.NoError(t, WritePredictionReport(path, preds))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	sheet := f.Sheets[0]
	require.Len(t, sheet.Rows, 2)

	assert.Equal(t, "prediction_id", sheet.Rows[0].Cells[0].Value)
	assert.Equal(t, "pred-1", sheet.Rows[1].Cells[0].Value)
	assert.Equal(t, "Published", sheet.Rows[1].Cells[3].Value)

	conf, err := sheet.Rows[1].Cells[4].Float()
	require.NoError(t, err)
	assert.InDelta(t, 77.5, conf, 1e-9)
	assert.Equal(t, "2026-10-01T00:00:00Z", sheet.Rows[1].Cells[11].Value)
}

func TestWritePredictionReport_HistorySheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	history := []model.CycleHistoryRow{
		{
			PredictionID: "pred-1",
			BuyerID:      "buyer-1",
			CPVClusterID: "cluster_it_software",
			Confidence:   70,
			ScoredAt:     time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			PredictionID: "pred-1",
			BuyerID:      "buyer-1",
			CPVClusterID: "cluster_it_software",
			Confidence:   77.5,
			ScoredAt:     time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	require.NoError(t, WritePredictionReport(path, nil, history...))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 2)
	trend := f.Sheets[1]
	assert.Equal(t, "CycleHistory", trend.Name)
	require.Len(t, trend.Rows, 3)
	assert.Equal(t, "pred-1", trend.Rows[1].Cells[0].Value)
	assert.Equal(t, "2026-08-01T00:00:00Z", trend.Rows[2].Cells[6].Value)
}

func writeSignalsFixture(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Signals")
	require.NoError(t, err)

	header := sheet.AddRow()
	for _, h := range signalHeader {
		header.AddCell().SetString(h)
	}
	for _, r := range rows {
		row := sheet.AddRow()
		for _, c := range r {
			row.AddCell().SetString(c)
		}
	}

	path := filepath.Join(t.TempDir(), "signals.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadSignalsFile(t *testing.T) {
	path := writeSignalsFixture(t, [][]string{
		{"acme_corp", "contract_awarded", "buyer-1", "cluster_it_software", "2026-03-10T00:00:00Z", "0.8", "0.9", "120000", "IE"},
		{"acme_corp", "grant_awarded", "buyer-2", "", "2026-04-01", "0.6", "0.7", "", ""},
		{"", "", "", "", "", "", "", "", ""}, // blank rows are skipped
	})

	signals, err := ReadSignalsFile(path)
	require.NoError(t, err)
	require.Len(t, signals, 2)

	assert.Equal(t, model.SignalContractAwarded, signals[0].SignalType)
	assert.Equal(t, "buyer-1", signals[0].BuyerID)
	assert.InDelta(t, 120000, signals[0].ValueEUR, 1e-9)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), signals[0].OccurredAt)

	assert.Equal(t, model.SignalGrantAwarded, signals[1].SignalType)
	assert.Zero(t, signals[1].ValueEUR)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), signals[1].OccurredAt)
}

func TestReadSignalsFile_BadHeader(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Signals")
	require.NoError(t, err)
	row := sheet.AddRow()
	row.AddCell().SetString("wrong")

	path := filepath.Join(t.TempDir(), "bad.xlsx")
	require.NoError(t, f.Save(path))

	_, err = ReadSignalsFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header")
}

func TestReadSignalsFile_BadTimestamp(t *testing.T) {
	path := writeSignalsFixture(t, [][]string{
		{"acme_corp", "contract_awarded", "buyer-1", "", "not-a-date", "0.8", "0.9", "", ""},
	})
	_, err := ReadSignalsFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}
