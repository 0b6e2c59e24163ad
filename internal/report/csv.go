package report

import (
	"encoding/csv"
	"io"

	"linkharvest/internal/model"
)

// CSVWriter outputs the discovered links as CSV, one row per link.
// This format is designed for spreadsheets and ad-hoc shell processing.
//
// Design decision: We use the standard encoding/csv package; the output is
// three flat string columns and needs none of the struct-tag machinery a
// CSV library would add.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report's links as CSV with a header row.
// Summary counters are not included; CSV consumers want the rows.
func (w *CSVWriter) Write(report *model.CrawlReport) (int, error) {
	cw := csv.NewWriter(w.output)

	records := [][]string{{"kind", "target_url", "source_url"}}
	for _, link := range report.Targets {
		records = append(records, []string{string(link.Kind), link.TargetURL, link.SourceURL})
	}

	written := 0
	for _, rec := range records {
		if err := cw.Write(rec); err != nil {
			return written, err
		}
		for _, field := range rec {
			written += len(field)
		}
		written += len(rec) // separators and newline, approximately
	}
	cw.Flush()

	return written, cw.Error()
}
