// Package output renders retrieval results for the terminal. Styling is
// applied only when stdout is a TTY; piped output stays plain.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/quarrylabs/quarry/internal/retrieve"
	"github.com/quarrylabs/quarry/internal/search"
)

// Color palette - single accent color, muted support colors.
const (
	colorAccent   = "154" // bright lime green
	colorGray     = "245" // secondary text
	colorDarkGray = "238" // separators
	colorYellow   = "220" // warnings
	colorRed      = "196" // errors
)

// Styles holds the render styles.
type Styles struct {
	Header lipgloss.Style
	Path   lipgloss.Style
	Score  lipgloss.Style
	Signal lipgloss.Style
	Dim    lipgloss.Style
	Error  lipgloss.Style
}

// defaultStyles returns the styled set for TTY rendering.
func defaultStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent)),
		Path:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
		Score:  lipgloss.NewStyle().Foreground(lipgloss.Color(colorAccent)),
		Signal: lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow)),
		Dim:    lipgloss.NewStyle().Foreground(lipgloss.Color(colorDarkGray)),
		Error:  lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed)),
	}
}

// plainStyles returns pass-through styles for piped output.
func plainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{Header: plain, Path: plain, Score: plain, Signal: plain, Dim: plain, Error: plain}
}

// Writer renders results to a terminal or pipe.
type Writer struct {
	out    io.Writer
	styles Styles
}

// New creates a writer, choosing styled or plain rendering from the
// destination. Passing os.Stdout on a TTY enables color.
func New(out io.Writer) *Writer {
	styles := plainStyles()
	if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		styles = defaultStyles()
	}
	return &Writer{out: out, styles: styles}
}

// Results renders the ranked symbol results.
func (w *Writer) Results(results []*search.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w.out, w.styles.Dim.Render("no results"))
		return
	}

	for i, r := range results {
		fmt.Fprintf(w.out, "%s %s %s\n",
			w.styles.Dim.Render(fmt.Sprintf("%2d.", i+1)),
			w.styles.Header.Render(r.QualifiedName),
			w.styles.Score.Render(fmt.Sprintf("(%.5f)", r.Score)))
		fmt.Fprintf(w.out, "    %s %s\n",
			w.styles.Path.Render(fmt.Sprintf("%s:%d-%d", r.FilePath, r.StartLine, r.EndLine)),
			w.styles.Signal.Render("["+joinSignals(r.MatchSignals)+"]"))
		if len(r.Related) > 0 {
			names := make([]string, 0, len(r.Related))
			for _, rel := range r.Related {
				names = append(names, rel.Name)
			}
			fmt.Fprintf(w.out, "    %s\n",
				w.styles.Dim.Render("related: "+strings.Join(names, ", ")))
		}
	}
}

// Files renders the per-file aggregation as an outline.
func (w *Writer) Files(groups []*retrieve.FileGroup) {
	for _, g := range groups {
		fmt.Fprintf(w.out, "%s %s\n",
			w.styles.Header.Render(g.FilePath),
			w.styles.Score.Render(fmt.Sprintf("(%.5f)", g.Score())))
		for _, sym := range g.Symbols {
			fmt.Fprintf(w.out, "    %s %s\n",
				w.styles.Dim.Render(string(sym.Kind)),
				sym.QualifiedName)
		}
	}
}

// Errorf renders an error line.
func (w *Writer) Errorf(format string, args ...any) {
	fmt.Fprintln(w.out, w.styles.Error.Render(fmt.Sprintf(format, args...)))
}

func joinSignals(signals []search.Signal) string {
	parts := make([]string, len(signals))
	for i, s := range signals {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}
