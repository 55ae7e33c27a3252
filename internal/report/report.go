// Package report renders ingested products as CSV and as a console table.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lsst-sqre/lsst-io-analysis/internal/datetime"
	"github.com/lsst-sqre/lsst-io-analysis/internal/ingest"
	"github.com/lsst-sqre/lsst-io-analysis/internal/project"
)

// ContentType is the media type of WriteCSV output.
const ContentType = "text/csv"

// Header is the fixed CSV column order.
var Header = []string{"url", "handle", "series", "title", "updated", "editions", "repo_url", "description"}

// WriteCSV writes a header line followed by one line per record.
// Absent values are written as empty fields.
func WriteCSV(w io.Writer, records []project.Product) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(row(r)); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.URL, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func row(r project.Product) []string {
	return []string{
		r.URL,
		deref(r.Handle),
		deref(r.Series),
		r.Title,
		datetime.Format(r.UpdatedAt),
		strconv.Itoa(r.EditionCount),
		r.RepoURL,
		deref(r.Description),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#45475A"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF"))
)

// RenderConsole returns a table of records followed by a summary line and
// one line per failure.
func RenderConsole(records []project.Product, failures []ingest.Failure) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(r, _ int) lipgloss.Style {
			if r == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("HANDLE", "SERIES", "TITLE", "UPDATED", "EDITIONS", "URL")
	for _, r := range records {
		t.Row(
			deref(r.Handle),
			deref(r.Series),
			r.Title,
			datetime.Format(r.UpdatedAt),
			strconv.Itoa(r.EditionCount),
			r.URL,
		)
	}

	var b strings.Builder
	b.WriteString(t.String())
	b.WriteString("\n")
	fmt.Fprintf(&b, "%d products, %d failures\n", len(records), len(failures))
	for _, f := range failures {
		b.WriteString(warningStyle.Render(fmt.Sprintf("  %s: %v", f.ProductURL, f.Err)))
		b.WriteString("\n")
	}
	return b.String()
}
