// Package output formats CLI results: status lines, search hits, records,
// and engine statistics, as text or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/Aman-CERP/amanknow/internal/index"
	"github.com/Aman-CERP/amanknow/internal/search"
	"github.com/Aman-CERP/amanknow/internal/store"
	"github.com/Aman-CERP/amanknow/internal/ui"
	"github.com/Aman-CERP/amanknow/pkg/knowledge"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out    io.Writer
	styles ui.Styles
}

// New creates a Writer. Color is used only on a terminal without NO_COLOR.
func New(out io.Writer) *Writer {
	return &Writer{
		out:    out,
		styles: ui.GetStyles(!ui.IsTTY(out) || ui.DetectNoColor()),
	}
}

// Status prints a status message with an icon.
// Errors from writing are ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "  %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message.
func (w *Writer) Success(msg string) {
	w.Status(w.styles.Success.Render("✓"), msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status(w.styles.Warning.Render("!"), msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status(w.styles.Error.Render("✗"), msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Code prints an indented block.
func (w *Writer) Code(content string) {
	_, _ = fmt.Fprintln(w.out)
	for _, line := range strings.Split(content, "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// JSON writes v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Hits prints ranked search hits, best first.
func (w *Writer) Hits(query string, hits []search.Hit) {
	if len(hits) == 0 {
		_, _ = fmt.Fprintf(w.out, "No results for %q\n", query)
		return
	}
	_, _ = fmt.Fprintf(w.out, "%d results for %q\n\n", len(hits), query)
	for i, h := range hits {
		title := h.DocTitle
		if title == "" {
			title = h.DocID
		}
		_, _ = fmt.Fprintf(w.out, "%2d. %s %s\n", i+1,
			w.styles.Header.Render(title),
			w.styles.Dim.Render(fmt.Sprintf("(%.2f)", h.Score)))
		_, _ = fmt.Fprintf(w.out, "    %s\n", w.styles.Label.Render(hitLocation(h)))
		if h.Snippet != "" {
			_, _ = fmt.Fprintf(w.out, "    %s\n", h.Snippet)
		}
		if i < len(hits)-1 {
			_, _ = fmt.Fprintln(w.out)
		}
	}
}

func hitLocation(h search.Hit) string {
	parts := []string{h.DocID + "/" + h.ChunkID}
	if h.Source != "" {
		parts = append(parts, "source="+h.Source)
	}
	if len(h.Tags) > 0 {
		parts = append(parts, "tags="+strings.Join(h.Tags, ","))
	}
	return strings.Join(parts, "  ")
}

// Document prints a document record.
func (w *Writer) Document(doc *store.Document) {
	w.field("id", doc.ID)
	w.field("title", doc.Title)
	w.field("source", doc.Source)
	w.field("tags", strings.Join(doc.Tags, ", "))
	for _, k := range slices.Sorted(maps.Keys(doc.Linked)) {
		w.field("link."+k, doc.Linked[k])
	}
	for _, k := range slices.Sorted(maps.Keys(doc.Meta)) {
		w.field("meta."+k, fmt.Sprint(doc.Meta[k]))
	}
	w.field("created", doc.CreatedAt.Format("2006-01-02 15:04:05Z07:00"))
}

// Chunk prints a chunk record followed by its text.
func (w *Writer) Chunk(c *store.Chunk) {
	w.field("id", c.ID)
	w.field("doc", c.DocID)
	w.field("ord", fmt.Sprint(c.Ord))
	w.field("chars", fmt.Sprintf("%d-%d", c.CharStart, c.CharEnd))
	w.field("tokens", fmt.Sprintf("~%d", c.TokensEst))
	_, _ = fmt.Fprintln(w.out)
	_, _ = fmt.Fprintln(w.out, c.Text)
}

// Stats prints engine statistics.
func (w *Writer) Stats(s knowledge.Stats) {
	w.field("backend", s.Backend)
	w.field("data dir", s.DataDir)
	w.field("documents", fmt.Sprint(s.Documents))
	w.field("chunks", fmt.Sprint(s.Chunks))
	w.field("indexed", fmt.Sprint(s.IndexedChunks))
	w.field("terms", fmt.Sprint(s.Terms))

	q := s.Queries
	if q == nil || q.TotalQueries == 0 {
		return
	}
	_, _ = fmt.Fprintln(w.out)
	w.field("queries", fmt.Sprint(q.TotalQueries))
	w.field("zero results", fmt.Sprintf("%d (%.1f%%)", q.ZeroResultCount, q.ZeroResultPercentage()))
	if len(q.TopTerms) > 0 {
		top := make([]string, 0, 5)
		for _, tc := range q.TopTerms[:min(5, len(q.TopTerms))] {
			top = append(top, fmt.Sprintf("%s(%d)", tc.Term, tc.Count))
		}
		w.field("top terms", strings.Join(top, " "))
	}
}

// Check prints the result of a consistency check.
func (w *Writer) Check(r *index.CheckResult) {
	if r.Consistent() {
		w.Successf("index consistent: %d chunks checked in %s", r.Checked, r.Duration.Round(time.Millisecond))
		return
	}
	w.Warningf("%d issues in %d chunks", len(r.Inconsistencies), r.Checked)
	for _, t := range []index.InconsistencyType{
		index.InconsistencyOrphanChunk,
		index.InconsistencyOrphanIndex,
		index.InconsistencyMissingIndex,
	} {
		if n := r.Count(t); n > 0 {
			w.Status("", fmt.Sprintf("%s: %d", t, n))
		}
	}
	w.Status("", "run `amanknow rebuild` to repair")
}

func (w *Writer) field(label, value string) {
	if value == "" {
		return
	}
	_, _ = fmt.Fprintf(w.out, "%s %s\n", w.styles.Label.Render(fmt.Sprintf("%-10s", label+":")), value)
}
