// Package export moves predictions and signals across the XLSX boundary:
// analyst-facing prediction reports out, bulk signal backfills in.
package export

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/civant/procure-intel/internal/model"
)

var reportHeader = []string{
	"prediction_id", "buyer_id", "cpv_cluster_id", "status", "confidence",
	"cycle", "timing", "behavioural", "structural", "external", "quality",
	"window_start", "window_end", "generated_at", "version",
}

var historyHeader = []string{
	"prediction_id", "buyer_id", "cpv_cluster_id", "confidence",
	"window_start", "window_end", "scored_at",
}

// WritePredictionReport writes predictions to path, with an optional second
// sheet of cycle trends when history rows are supplied.
func WritePredictionReport(path string, preds []model.Prediction, history ...model.CycleHistoryRow) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Predictions")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range reportHeader {
		header.AddCell().SetString(h)
	}

	for _, p := range preds {
		row := sheet.AddRow()
		row.AddCell().SetString(p.PredictionID)
		row.AddCell().SetString(p.BuyerID)
		row.AddCell().SetString(p.CPVClusterID)
		row.AddCell().SetString(string(p.Status))
		row.AddCell().SetFloat(p.Confidence)
		row.AddCell().SetFloat(p.SubScores.Cycle)
		row.AddCell().SetFloat(p.SubScores.Timing)
		row.AddCell().SetFloat(p.SubScores.Behavioural)
		row.AddCell().SetFloat(p.SubScores.Structural)
		row.AddCell().SetFloat(p.SubScores.External)
		row.AddCell().SetFloat(p.SubScores.Quality)
		row.AddCell().SetString(formatTime(p.WindowStart))
		row.AddCell().SetString(formatTime(p.WindowEnd))
		row.AddCell().SetString(formatTime(p.GeneratedAt))
		row.AddCell().SetInt64(p.Version)
	}

	if len(history) > 0 {
		trend, err := f.AddSheet("CycleHistory")
		if err != nil {
			return eris.Wrap(err, "export: add history sheet")
		}
		header := trend.AddRow()
		for _, h := range historyHeader {
			header.AddCell().SetString(h)
		}
		for _, row := range history {
			r := trend.AddRow()
			r.AddCell().SetString(row.PredictionID)
			r.AddCell().SetString(row.BuyerID)
			r.AddCell().SetString(row.CPVClusterID)
			r.AddCell().SetFloat(row.Confidence)
			r.AddCell().SetString(formatTime(row.WindowStart))
			r.AddCell().SetString(formatTime(row.WindowEnd))
			r.AddCell().SetString(formatTime(row.ScoredAt))
		}
	}

	return eris.Wrap(f.Save(path), "export: save report")
}

var signalHeader = []string{
	"tenant_id", "signal_type", "buyer_id", "cpv_cluster_id", "occurred_at",
	"signal_strength", "source_quality", "value_eur", "region",
}

// ReadSignalsFile parses a bulk signal workbook. The first row must be the
// canonical header; each data row becomes one signal, validated by the
// caller on insert.
func ReadSignalsFile(path string) ([]model.Signal, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "export: open signals file")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("export: workbook has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.New("export: empty sheet")
	}

	if err := checkHeader(sheet.Rows[0]); err != nil {
		return nil, err
	}

	var signals []model.Signal
	for i, row := range sheet.Rows[1:] {
		cells := rowStrings(row, len(signalHeader))
		if isBlank(cells) {
			continue
		}
		sig, err := parseSignalRow(cells)
		if err != nil {
			return nil, eris.Wrapf(err, "export: row %d", i+2)
		}
		signals = append(signals, sig)
	}
	return signals, nil
}

func checkHeader(row *xlsx.Row) error {
	return checkHeaderStrings(rowStrings(row, len(signalHeader)))
}

func checkHeaderStrings(cells []string) error {
	if len(cells) < len(signalHeader) {
		return eris.Errorf("export: header has %d columns, want %d", len(cells), len(signalHeader))
	}
	for i, want := range signalHeader {
		if !strings.EqualFold(strings.TrimSpace(cells[i]), want) {
			return eris.Errorf("export: header column %d is %q, want %q", i+1, cells[i], want)
		}
	}
	return nil
}

func parseSignalRow(cells []string) (model.Signal, error) {
	occurredAt, err := parseTime(cells[4])
	if err != nil {
		return model.Signal{}, eris.Wrap(err, "occurred_at")
	}
	strength, err := strconv.ParseFloat(strings.TrimSpace(cells[5]), 64)
	if err != nil {
		return model.Signal{}, eris.Wrap(err, "signal_strength")
	}
	quality, err := strconv.ParseFloat(strings.TrimSpace(cells[6]), 64)
	if err != nil {
		return model.Signal{}, eris.Wrap(err, "source_quality")
	}
	value := 0.0
	if v := strings.TrimSpace(cells[7]); v != "" {
		if value, err = strconv.ParseFloat(v, 64); err != nil {
			return model.Signal{}, eris.Wrap(err, "value_eur")
		}
	}
	return model.Signal{
		TenantID:       strings.TrimSpace(cells[0]),
		SignalType:     model.SignalType(strings.TrimSpace(cells[1])),
		BuyerID:        strings.TrimSpace(cells[2]),
		CPVClusterID:   strings.TrimSpace(cells[3]),
		OccurredAt:     occurredAt,
		SignalStrength: strength,
		SourceQuality:  quality,
		ValueEUR:       value,
		Region:         strings.TrimSpace(cells[8]),
	}, nil
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339, "2006-01-02", "02/01/2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, eris.Errorf("unparseable timestamp %q", raw)
}

func rowStrings(row *xlsx.Row, width int) []string {
	out := make([]string, width)
	for i := 0; i < width && i < len(row.Cells); i++ {
		out[i] = row.Cells[i].Value
	}
	return out
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
