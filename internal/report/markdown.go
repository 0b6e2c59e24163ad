package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"

	"linkharvest/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation: type-safe tables and lists beat hand-concatenated pipes, and
// the output renders cleanly as GitHub-flavored markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeLinks(md, report)
	w.writeSkipped(md, report)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with crawl information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	md.H1("Link Harvest Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed", "`" + report.Seed + "`"},
			{"Crawl Date", report.DateCrawled.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration.String()},
			{"Pages Visited", strconv.Itoa(report.PagesVisited)},
			{"Pagination Fetches", strconv.Itoa(report.PaginationFetches)},
			{"Status", w.statusText(report)},
		},
	})
	md.PlainText("")
}

// statusText returns the status text based on report state.
func (w *MarkdownWriter) statusText(report *model.CrawlReport) string {
	if report.Cancelled {
		return "⚠️ Cancelled (partial results)"
	}
	if report.ErrorMessage != "" {
		return "❌ Error - " + report.ErrorMessage
	}
	return "✅ Complete"
}

// writeSummary writes the link-kind summary section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Links by Kind")
	md.PlainText("")

	counts := report.CountByKind()
	md.Table(markdown.TableSet{
		Header: []string{"Kind", "Count"},
		Rows: [][]string{
			{string(model.KindDirect), strconv.Itoa(counts[model.KindDirect])},
			{string(model.KindPaginated), strconv.Itoa(counts[model.KindPaginated])},
			{string(model.KindGatewayResolved), strconv.Itoa(counts[model.KindGatewayResolved])},
			{string(model.KindGatewayUnresolved), strconv.Itoa(counts[model.KindGatewayUnresolved])},
			{"**Total**", "**" + strconv.Itoa(len(report.Targets)) + "**"},
		},
	})
	md.PlainText("")
}

// writeLinks writes the discovered-link table.
func (w *MarkdownWriter) writeLinks(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Discovered Links")
	md.PlainText("")

	if len(report.Targets) == 0 {
		md.PlainText("No links found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(report.Targets))
	for _, link := range report.Targets {
		rows = append(rows, []string{
			string(link.Kind),
			"`" + link.TargetURL + "`",
			"`" + link.SourceURL + "`",
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Kind", "Target", "Found On"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeSkipped writes the skipped-URL section when there were failures.
func (w *MarkdownWriter) writeSkipped(md *markdown.Markdown, report *model.CrawlReport) {
	if len(report.SkippedURLs) == 0 {
		return
	}

	md.H2("Skipped URLs")
	md.PlainText("")
	items := make([]string, 0, len(report.SkippedURLs))
	for _, u := range report.SkippedURLs {
		items = append(items, "`"+u+"`")
	}
	md.BulletList(items...)
	md.PlainText("")
}
