package parser

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/AmirTallap/Salam/pkg/ast"
	"github.com/AmirTallap/Salam/pkg/config"
	"github.com/AmirTallap/Salam/pkg/lexer"
)

func parseSource(t *testing.T, src string) (*ast.Node, *Parser, error) {
	t.Helper()
	lex := lexer.New("test.salam", []byte(src))
	lex.Lex()
	p := NewParser(lex, config.NewConfig())
	prog, err := p.Parse()
	return prog, p, err
}

func mustParse(t *testing.T, src string) (*ast.Node, *Parser) {
	t.Helper()
	prog, p, err := parseSource(t, src)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	return prog, p
}

func TestParseLayoutStructure(t *testing.T) {
	src := `
layout {
	title: "home"
	box {
		width: 100
		hover {
			color: "red"
		}
		text {
			content: "hi"
		}
	}
}`
	prog, p := mustParse(t, src)
	defer prog.Destroy()

	if got := len(p.Warnings()); got != 0 {
		t.Fatalf("warnings = %d, want 0: %v", got, p.Warnings())
	}

	d := prog.Data.(ast.ProgramNode)
	if d.Layout == nil {
		t.Fatal("layout missing")
	}
	layout := d.Layout.Data.(ast.LayoutNode)
	if title, ok := layout.Attrs.Get("title"); !ok {
		t.Error("layout attribute title missing")
	} else if got := ast.ExprString(title.Value); got != `"home"` {
		t.Errorf("title = %s, want %q", got, `"home"`)
	}
	if len(layout.Children) != 1 {
		t.Fatalf("layout children = %d, want 1", len(layout.Children))
	}

	box := layout.Children[0].Data.(ast.ElementNode)
	if box.Name != "box" {
		t.Errorf("element name = %q, want %q", box.Name, "box")
	}
	if !box.Attrs.Has("width") {
		t.Error("box attribute width missing")
	}
	hover, ok := box.States.Get("hover")
	if !ok {
		t.Fatal("hover state missing")
	}
	if !hover.Attrs.Has("color") {
		t.Error("hover attribute color missing")
	}
	if len(box.Children) != 1 || box.Children[0].Data.(ast.ElementNode).Name != "text" {
		t.Errorf("box children = %v, want one text element", box.Children)
	}
}

func TestParseExpressionGrouping(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"1 + 2 * 3", "(1 + (2 * 3))"},
		{"1 * 2 + 3", "((1 * 2) + 3)"},
		{"2 ^ 3 ^ 2", "(2 ^ (3 ^ 2))"},
		{"(1 + 2) * 3", "((1 + 2) * 3)"},
		{"1 << 2 + 3", "(1 << (2 + 3))"},
		{"a < b == c > d", "((a < b) == (c > d))"},
		{"a || b && c", "(a || (b && c))"},
		{"a & b | c", "((a & b) | c)"},
		{"!a || -b", "(!a || -b)"},
		{"1 <= 2 != 3 >= 4", "((1 <= 2) != (3 >= 4))"},
		{"[10, 20 + 5, \"x\"]", `[10, (20 + 5), "x"]`},
		{"3.5 + x", "(3.5 + x)"},
		{"true && false", "(true && false)"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			prog, _ := mustParse(t, "layout {\n\twidth: "+tt.expr+"\n}")
			defer prog.Destroy()

			layout := prog.Data.(ast.ProgramNode).Layout.Data.(ast.LayoutNode)
			attr, ok := layout.Attrs.Get("width")
			if !ok {
				t.Fatal("width attribute missing")
			}
			if got := ast.ExprString(attr.Value); got != tt.want {
				t.Errorf("ExprString = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseFunctionBody(t *testing.T) {
	src := `
fn card(title, count) {
	n = count * 2
	if n > 4 {
		n = 4
	} else {
		n++
	}
	for i: n {
		box {
			label: title
		}
	}
	print "built", n
	return n
}`
	prog, _ := mustParse(t, src)
	defer prog.Destroy()

	d := prog.Data.(ast.ProgramNode)
	fn, ok := d.Functions.Get("card")
	if !ok {
		t.Fatal("function card missing")
	}
	decl := fn.Data.(ast.FuncDeclNode)
	if diff := cmp.Diff([]string{"title", "count"}, decl.Params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}

	stmts := decl.Body.Data.(ast.BlockNode).Stmts
	wantTypes := []ast.NodeType{ast.Assign, ast.If, ast.For, ast.Print, ast.Return}
	var gotTypes []ast.NodeType
	for _, s := range stmts {
		gotTypes = append(gotTypes, s.Type)
	}
	if diff := cmp.Diff(wantTypes, gotTypes); diff != "" {
		t.Fatalf("statement types mismatch (-want +got):\n%s", diff)
	}

	ifNode := stmts[1].Data.(ast.IfNode)
	if got := ast.ExprString(ifNode.Cond); got != "(n > 4)" {
		t.Errorf("if condition = %s, want (n > 4)", got)
	}
	elseStmts := ifNode.Else.Data.(ast.BlockNode).Stmts
	if len(elseStmts) != 1 || elseStmts[0].Type != ast.PostfixOp {
		t.Errorf("else branch = %v, want one postfix step", elseStmts)
	}

	forNode := stmts[2].Data.(ast.ForNode)
	if forNode.Var != "i" {
		t.Errorf("loop variable = %q, want %q", forNode.Var, "i")
	}
	body := forNode.Body.Data.(ast.BlockNode).Stmts
	if len(body) != 1 || body[0].Type != ast.Element {
		t.Errorf("loop body = %v, want one element", body)
	}
}

func TestParseFunctionBodyKeepsItemOrder(t *testing.T) {
	src := `
fn rows() {
	n = 1
	box {
		width: n
	}
	n = 2
	box {
		width: n
	}
}`
	prog, _ := mustParse(t, src)
	defer prog.Destroy()

	fn, _ := prog.Data.(ast.ProgramNode).Functions.Get("rows")
	stmts := fn.Data.(ast.FuncDeclNode).Body.Data.(ast.BlockNode).Stmts
	wantTypes := []ast.NodeType{ast.Assign, ast.Element, ast.Assign, ast.Element}
	var gotTypes []ast.NodeType
	for _, s := range stmts {
		gotTypes = append(gotTypes, s.Type)
	}
	if diff := cmp.Diff(wantTypes, gotTypes); diff != "" {
		t.Errorf("body order mismatch (-want +got):\n%s", diff)
	}
}

func TestParseComponentUse(t *testing.T) {
	src := `
layout {
	card("hello", 2 + 1)
}`
	prog, _ := mustParse(t, src)
	defer prog.Destroy()

	layout := prog.Data.(ast.ProgramNode).Layout.Data.(ast.LayoutNode)
	if len(layout.Children) != 1 {
		t.Fatalf("children = %d, want 1", len(layout.Children))
	}
	use := layout.Children[0].Data.(ast.ComponentUseNode)
	if use.Name != "card" {
		t.Errorf("component name = %q, want %q", use.Name, "card")
	}
	if len(use.Args) != 2 {
		t.Fatalf("args = %d, want 2", len(use.Args))
	}
	if got := ast.ExprString(use.Args[1]); got != "(2 + 1)" {
		t.Errorf("second arg = %s, want (2 + 1)", got)
	}
}

func TestParseImports(t *testing.T) {
	src := `
import "widgets"
import "theme"

layout {
	title: "t"
}`
	prog, _ := mustParse(t, src)
	defer prog.Destroy()

	d := prog.Data.(ast.ProgramNode)
	var paths []string
	for _, imp := range d.Imports {
		paths = append(paths, imp.Data.(ast.ImportNode).Path)
	}
	if diff := cmp.Diff([]string{"widgets", "theme"}, paths); diff != "" {
		t.Errorf("import paths mismatch (-want +got):\n%s", diff)
	}
}

func TestDuplicateAttributeWarning(t *testing.T) {
	src := `
layout {
	box {
		width: 10
		width: 20
	}
}`
	prog, p := mustParse(t, src)
	defer prog.Destroy()

	warns := p.Warnings()
	if len(warns) != 1 {
		t.Fatalf("warnings = %d, want 1: %v", len(warns), warns)
	}
	if warns[0].Warning != config.WarnDuplicateAttribute {
		t.Errorf("warning kind = %v, want duplicate-attribute", warns[0].Warning)
	}
	if !strings.Contains(warns[0].Msg, `"width"`) {
		t.Errorf("warning message %q does not name the attribute", warns[0].Msg)
	}

	box := prog.Data.(ast.ProgramNode).Layout.Data.(ast.LayoutNode).Children[0].Data.(ast.ElementNode)
	attr, _ := box.Attrs.Get("width")
	if got := ast.ExprString(attr.Value); got != "20" {
		t.Errorf("surviving value = %s, want 20", got)
	}
}

func TestDisabledWarningIsNotCollected(t *testing.T) {
	src := `
layout {
	box {
		width: 10
		width: 20
	}
}`
	lex := lexer.New("test.salam", []byte(src))
	lex.Lex()
	cfg := config.NewConfig()
	cfg.SetWarning(config.WarnDuplicateAttribute, false)
	p := NewParser(lex, cfg)
	prog, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	defer prog.Destroy()

	if got := len(p.Warnings()); got != 0 {
		t.Errorf("warnings = %d, want 0 with duplicate-attribute disabled", got)
	}
}

func TestRedefinedFunctionWarning(t *testing.T) {
	src := `
fn card() {
	box {
		width: 1
	}
}
fn card() {
	box {
		width: 2
	}
}`
	prog, p := mustParse(t, src)
	defer prog.Destroy()

	warns := p.Warnings()
	if len(warns) != 1 || warns[0].Warning != config.WarnRedefinedFunction {
		t.Fatalf("warnings = %v, want one redefined-function warning", warns)
	}
	if got := prog.Data.(ast.ProgramNode).Functions.Len(); got != 1 {
		t.Errorf("function table length = %d, want 1", got)
	}
}

func TestEmptyLayoutWarning(t *testing.T) {
	prog, p := mustParse(t, "layout {\n}")
	defer prog.Destroy()

	warns := p.Warnings()
	if len(warns) != 1 || warns[0].Warning != config.WarnEmptyLayout {
		t.Fatalf("warnings = %v, want one empty-layout warning", warns)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "junk at top level",
			src:  "box { width: 1 }",
			want: "expected 'import', 'fn' or 'layout'",
		},
		{
			name: "unclosed block",
			src:  "layout {\n\tbox {\n\t\twidth: 1\n",
			want: "expected '}'",
		},
		{
			name: "statement outside function",
			src:  "layout {\n\tx = 1\n}",
			want: "statements are only allowed inside functions",
		},
		{
			name: "attribute inside function",
			src:  "fn f() {\n\twidth: 10\n}",
			want: "outside an element",
		},
		{
			name: "second layout block",
			src:  "layout {\n\ttitle: \"a\"\n}\nlayout {\n\ttitle: \"b\"\n}",
			want: "duplicate layout block",
		},
		{
			name: "call in expression",
			src:  "layout {\n\twidth: f(1) + 2\n}",
			want: "function calls are not allowed",
		},
		{
			name: "attribute in state block",
			src:  "layout {\n\tbox {\n\t\thover {\n\t\t\tinner {\n\t\t\t\twidth: 1\n\t\t\t}\n\t\t}\n\t}\n}",
			want: "style state blocks hold attributes only",
		},
		{
			name: "lexer error surfaces",
			src:  "layout {\n\twidth: 1 @ 2\n}",
			want: "unexpected character",
		},
		{
			name: "unterminated string surfaces",
			src:  "layout {\n\ttitle: \"home\n}",
			want: "unterminated string",
		},
		{
			name: "missing import path",
			src:  "import 42",
			want: "expected import path string",
		},
		{
			name: "postfix on literal",
			src:  "fn f() {\n\tx = 1++\n}",
			want: "requires a name",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseSource(t, tt.src)
			if err == nil {
				t.Fatal("Parse() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParseErrorCarriesLocation(t *testing.T) {
	_, _, err := parseSource(t, "layout {\n\tx = 1\n}")
	if err == nil {
		t.Fatal("Parse() succeeded, want error")
	}
	if !strings.Contains(err.Error(), "test.salam:2:2") {
		t.Errorf("error %q does not carry the source position", err.Error())
	}
}
