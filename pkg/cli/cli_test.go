package cli_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/AmirTallap/Salam/pkg/cli"
)

func TestParseLongFlags(t *testing.T) {
	fs := cli.NewFlagSet("salam")
	var out string
	fs.String(&out, "output", "o", "index.html", "Output file.", "file")

	if err := fs.Parse([]string{"--output", "page.html", "in.salam"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if out != "page.html" {
		t.Errorf("output = %q, want page.html", out)
	}
	if diff := cmp.Diff([]string{"in.salam"}, fs.Args()); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLongEquals(t *testing.T) {
	fs := cli.NewFlagSet("salam")
	var out string
	fs.String(&out, "output", "o", "index.html", "Output file.", "file")

	if err := fs.Parse([]string{"--output=page.html"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if out != "page.html" {
		t.Errorf("output = %q, want page.html", out)
	}
}

func TestParseShorthand(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{"separate", []string{"-o", "page.html"}},
		{"glued", []string{"-opage.html"}},
		{"equals", []string{"-o=page.html"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			fs := cli.NewFlagSet("salam")
			var out string
			fs.String(&out, "output", "o", "index.html", "Output file.", "file")
			if err := fs.Parse(c.args); err != nil {
				t.Fatalf("Parse(%v): %v", c.args, err)
			}
			if out != "page.html" {
				t.Errorf("output = %q, want page.html", out)
			}
		})
	}
}

func TestParseBoolFlags(t *testing.T) {
	fs := cli.NewFlagSet("salam")
	var dump, quiet bool
	fs.Bool(&dump, "dump-ast", "d", false, "Dump the tree.")
	fs.Bool(&quiet, "quiet", "", true, "Stay quiet.")

	if err := fs.Parse([]string{"--dump-ast", "--quiet=false"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !dump {
		t.Error("dump-ast not set")
	}
	if quiet {
		t.Error("quiet=false did not clear the default")
	}
}

func TestParseListAccumulates(t *testing.T) {
	fs := cli.NewFlagSet("salam")
	var dirs []string
	fs.List(&dirs, "include", "I", "Search path.", "path")

	if err := fs.Parse([]string{"-I", "a", "-I", "b", "--include", "c"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, dirs); diff != "" {
		t.Errorf("include mismatch (-want +got):\n%s", diff)
	}
}

// Group flags arrive as single-dash arguments whose whole name is
// registered, like -Wempty-layout. They must win over the shorthand
// table.
func TestParseGroupFlags(t *testing.T) {
	fs := cli.NewFlagSet("salam")
	enabled, disabled := false, false
	fs.AddFlagGroup("Warnings", "Diagnostic toggles.", "warning", "", []cli.FlagGroupEntry{
		{Name: "empty-layout", Prefix: "W", Usage: "Warn on empty layouts.", Enabled: &enabled, Disabled: &disabled},
	})

	if err := fs.Parse([]string{"-Wempty-layout"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !enabled {
		t.Error("-Wempty-layout did not set the enable toggle")
	}
	if err := fs.Parse([]string{"-Wno-empty-layout"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !disabled {
		t.Error("-Wno-empty-layout did not set the disable toggle")
	}
}

func TestParseDoubleDash(t *testing.T) {
	fs := cli.NewFlagSet("salam")
	var out string
	fs.String(&out, "output", "o", "index.html", "Output file.", "file")

	if err := fs.Parse([]string{"--", "--output", "x"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if out != "index.html" {
		t.Errorf("output = %q, want the default", out)
	}
	if diff := cmp.Diff([]string{"--output", "x"}, fs.Args()); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"unknown long", []string{"--nope"}, "unknown flag: --nope"},
		{"unknown short", []string{"-q"}, "unknown flag: -q"},
		{"missing value long", []string{"--output"}, "flag needs an argument: --output"},
		{"missing value short", []string{"-o"}, "flag needs an argument: -o"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			fs := cli.NewFlagSet("salam")
			var out string
			fs.String(&out, "output", "o", "index.html", "Output file.", "file")
			err := fs.Parse(c.args)
			if err == nil {
				t.Fatalf("Parse(%v) succeeded, want error", c.args)
			}
			if !strings.Contains(err.Error(), c.want) {
				t.Errorf("error = %q, want it to contain %q", err, c.want)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	fs := cli.NewFlagSet("salam")
	var out string
	fs.String(&out, "output", "o", "index.html", "Output file.", "file")

	fl := fs.Lookup("output")
	if fl == nil {
		t.Fatal("Lookup(output) = nil")
	}
	if fl.DefValue != "index.html" || fl.Shorthand != "o" {
		t.Errorf("flag = %+v, want default index.html with shorthand o", fl)
	}
	if fs.Lookup("missing") != nil {
		t.Error("Lookup(missing) found a flag")
	}
}

func TestIndentState(t *testing.T) {
	indent := cli.NewIndentState()
	if got := indent.Current(); got != "" {
		t.Errorf("Current() = %q, want empty", got)
	}
	indent.Push()
	if got := indent.Current(); got != "    " {
		t.Errorf("Current() after Push = %q, want four spaces", got)
	}
	indent.Push()
	if got := indent.Current(); got != "        " {
		t.Errorf("Current() after two Push = %q, want eight spaces", got)
	}
	indent.Pop()
	if got := indent.Current(); got != "    " {
		t.Errorf("Current() after Pop = %q, want four spaces", got)
	}
	if got := indent.AtLevel(2); got != "        " {
		t.Errorf("AtLevel(2) = %q, want eight spaces", got)
	}
}
