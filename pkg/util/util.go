// Package util implements the diagnostic values and rendering shared by
// every compiler stage.
package util

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/AmirTallap/Salam/pkg/config"
	"github.com/AmirTallap/Salam/pkg/token"
)

type Severity int

const (
	SevWarning Severity = iota
	SevError
)

// Diagnostic is one located complaint from any stage. It implements
// error so parse failures can travel as plain errors.
type Diagnostic struct {
	Path     string
	Loc      token.Location
	Severity Severity
	Warning  config.Warning // meaningful only when Severity is SevWarning
	Msg      string
}

func Errorf(path string, loc token.Location, format string, args ...any) Diagnostic {
	return Diagnostic{
		Path:     path,
		Loc:      loc,
		Severity: SevError,
		Msg:      fmt.Sprintf(format, args...),
	}
}

func Warnf(wt config.Warning, path string, loc token.Location, format string, args ...any) Diagnostic {
	return Diagnostic{
		Path:     path,
		Loc:      loc,
		Severity: SevWarning,
		Warning:  wt,
		Msg:      fmt.Sprintf(format, args...),
	}
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", displayPath(d.Path), d.Loc.StartLine, d.Loc.StartColumn, d.Msg)
}

func displayPath(path string) string {
	if path == "" {
		return "<stdin>"
	}
	return path
}

// Reporter pretty-prints diagnostics with their source excerpt and keeps
// the error/warning tallies the driver exits on.
type Reporter struct {
	w        io.Writer
	cfg      *config.Config
	sources  map[string][]byte
	errors   int
	warnings int
}

func NewReporter(w io.Writer, cfg *config.Config) *Reporter {
	return &Reporter{w: w, cfg: cfg, sources: make(map[string][]byte)}
}

func (r *Reporter) AddSource(path string, src []byte) {
	r.sources[path] = src
}

func (r *Reporter) ErrorCount() int   { return r.errors }
func (r *Reporter) WarningCount() int { return r.warnings }

// Report renders one diagnostic. Warnings for disabled toggles are
// dropped; with Werror the rest are promoted to errors.
func (r *Reporter) Report(d Diagnostic) {
	label, paint := "error:", color.New(color.FgRed)
	suffix := ""
	if d.Severity == SevWarning {
		if !r.cfg.IsWarningEnabled(d.Warning) {
			return
		}
		suffix = fmt.Sprintf(" [-W%s]", r.cfg.WarningName(d.Warning))
		if r.cfg.Werror {
			suffix = fmt.Sprintf(" [-Werror=%s]", r.cfg.WarningName(d.Warning))
		} else {
			label, paint = "warning:", color.New(color.FgYellow)
		}
	}
	if d.Severity == SevError || r.cfg.Werror && d.Severity == SevWarning {
		r.errors++
	} else {
		r.warnings++
	}
	if r.cfg.NoColor {
		paint.DisableColor()
	}

	fmt.Fprintf(r.w, "%s:%d:%d: %s %s%s\n",
		displayPath(d.Path), d.Loc.StartLine, d.Loc.StartColumn, paint.Sprint(label), d.Msg, suffix)
	r.excerpt(d)
}

func (r *Reporter) ReportAll(ds []Diagnostic) {
	for _, d := range ds {
		r.Report(d)
	}
}

// ReportToken renders a lexer Error token, whose payload is its message.
func (r *Reporter) ReportToken(path string, t token.Token) {
	r.Report(Diagnostic{Path: path, Loc: t.Location, Severity: SevError, Msg: t.Lit.Str})
}

// excerpt prints the source line under the diagnostic and a caret row
// spanning the location, clipped at the end of the line.
func (r *Reporter) excerpt(d Diagnostic) {
	src, ok := r.sources[d.Path]
	if !ok || d.Loc.StartLine == 0 {
		return
	}

	lineStart := 0
	for line := d.Loc.StartLine; line > 1; {
		i := indexByte(src, lineStart, '\n')
		if i < 0 {
			return
		}
		lineStart = i + 1
		line--
	}
	lineEnd := indexByte(src, lineStart, '\n')
	if lineEnd < 0 {
		lineEnd = len(src)
	}
	lineText := string(src[lineStart:lineEnd])

	col := d.Loc.StartColumn
	if col < 1 || col > len(lineText)+1 {
		col = len(lineText) + 1
	}
	span := d.Loc.Length
	if avail := len(lineText) - (col - 1); span > avail {
		span = avail
	}
	if span < 1 {
		span = 1
	}

	paint := color.New(color.FgGreen)
	if r.cfg.NoColor {
		paint.DisableColor()
	}
	fmt.Fprintf(r.w, "  %s\n", lineText)
	fmt.Fprintf(r.w, "  %s%s\n", strings.Repeat(" ", col-1), paint.Sprint("^"+strings.Repeat("~", span-1)))
}

func indexByte(b []byte, from int, c byte) int {
	for i := from; i < len(b); i++ {
		if b[i] == c {
			return i
		}
	}
	return -1
}
