package export

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/civant/procure-intel/internal/model"
)

// ReadSignalsCSV parses a bulk signal CSV with the same columns as the XLSX
// layout.
func ReadSignalsCSV(path string) ([]model.Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "export: open signals csv")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(signalHeader)

	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrap(err, "export: read csv header")
	}
	if err := checkHeaderStrings(header); err != nil {
		return nil, err
	}

	var signals []model.Signal
	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "export: row %d", line)
		}
		if isBlank(record) {
			continue
		}
		sig, err := parseSignalRow(record)
		if err != nil {
			return nil, eris.Wrapf(err, "export: row %d", line)
		}
		signals = append(signals, sig)
	}
	return signals, nil
}
