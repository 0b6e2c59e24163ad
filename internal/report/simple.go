package report

import (
	"fmt"
	"io"
	"strings"

	"linkharvest/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because it works in all terminals and pipes
// cleanly to files or other tools.
type SimpleWriter struct {
	baseWriter

	// verbose enables the full link listing and skipped URLs.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with the full link listing.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report as human-readable text.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var b strings.Builder

	b.WriteString(strings.Repeat("=", 60) + "\n")
	b.WriteString("Link Harvest Report\n")
	b.WriteString(strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&b, "Seed:               %s\n", report.Seed)
	fmt.Fprintf(&b, "Crawl date:         %s\n", report.DateCrawled.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Duration:           %s\n", report.Duration)
	fmt.Fprintf(&b, "Pages visited:      %d\n", report.PagesVisited)
	fmt.Fprintf(&b, "Pagination fetches: %d\n", report.PaginationFetches)
	fmt.Fprintf(&b, "Gateways resolved:  %d\n", report.GatewaysResolved)
	fmt.Fprintf(&b, "Skipped URLs:       %d\n", len(report.SkippedURLs))
	if report.Cancelled {
		b.WriteString("Status:             cancelled (partial results)\n")
	}
	if report.ErrorMessage != "" {
		fmt.Fprintf(&b, "Error:              %s\n", report.ErrorMessage)
	}
	b.WriteString("\n")

	counts := report.CountByKind()
	fmt.Fprintf(&b, "Links found: %d\n", len(report.Targets))
	for _, kind := range []model.LinkKind{
		model.KindDirect,
		model.KindPaginated,
		model.KindGatewayResolved,
		model.KindGatewayUnresolved,
	} {
		if counts[kind] > 0 {
			fmt.Fprintf(&b, "  %-20s %d\n", kind, counts[kind])
		}
	}
	b.WriteString("\n")

	if w.verbose {
		for _, link := range report.Targets {
			fmt.Fprintf(&b, "[%s] %s\n      found on %s\n", link.Kind, link.TargetURL, link.SourceURL)
		}
		if len(report.Targets) > 0 {
			b.WriteString("\n")
		}
		for _, u := range report.SkippedURLs {
			fmt.Fprintf(&b, "skipped: %s\n", u)
		}
	} else {
		for _, link := range report.Targets {
			fmt.Fprintf(&b, "%s\n", link.TargetURL)
		}
	}

	return w.output.Write([]byte(b.String()))
}
