package ast_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/AmirTallap/Salam/pkg/ast"
	"github.com/AmirTallap/Salam/pkg/token"
)

func loc(line, col int) token.Location {
	return token.Location{StartLine: line, StartColumn: col, EndLine: line, EndColumn: col + 1}
}

func tok(typ token.Type) token.Token {
	return token.New(typ, loc(1, 1))
}

func TestElementDestroyCascades(t *testing.T) {
	attr := &ast.Attribute{Key: "color", Tok: tok(token.Ident), Value: ast.NewString(tok(token.String), "red")}
	attrs := ast.NewAttributeMap()
	attrs.Put("color", attr)

	stateAttr := &ast.Attribute{Key: "color", Tok: tok(token.Ident), Value: ast.NewString(tok(token.String), "blue")}
	stateAttrs := ast.NewAttributeMap()
	stateAttrs.Put("color", stateAttr)
	states := ast.NewStateMap()
	states.Put("hover", &ast.StyleState{Name: "hover", Attrs: stateAttrs})

	child := ast.NewElement(tok(token.Ident), "text", ast.NewAttributeMap(), ast.NewStateMap(), nil)
	el := ast.NewElement(tok(token.Ident), "box", attrs, states, []*ast.Node{child})

	el.Destroy()

	if el.Data != nil {
		t.Error("element payload still present after Destroy")
	}
	if child.Data != nil {
		t.Error("child payload still present after Destroy")
	}
	if attr.Value != nil {
		t.Error("attribute value not released by the table's destructor")
	}
	if stateAttr.Value != nil {
		t.Error("style state attribute not released through the cascade")
	}
	if attrs.Len() != 0 || states.Len() != 0 {
		t.Errorf("tables not emptied: attrs=%d states=%d", attrs.Len(), states.Len())
	}
}

func TestFunctionRedefinitionReleasesOldDecl(t *testing.T) {
	funcs := ast.NewFunctionMap()
	first := ast.NewFuncDecl(tok(token.Fn), "card", nil, ast.NewBlock(tok(token.LBrace), nil))
	second := ast.NewFuncDecl(tok(token.Fn), "card", []string{"title"}, ast.NewBlock(tok(token.LBrace), nil))

	funcs.Put("card", first)
	funcs.Put("card", second)

	if first.Data != nil {
		t.Error("overwritten declaration was not released")
	}
	if second.Data == nil {
		t.Error("surviving declaration was released")
	}
	got, _ := funcs.Get("card")
	if got != second {
		t.Error("last definition did not win")
	}
}

func TestExprString(t *testing.T) {
	add := ast.NewBinaryOp(tok(token.Plus), token.Plus,
		ast.NewNumber(tok(token.Int), 12),
		ast.NewFloat(tok(token.Float), 3.5))
	cases := []struct {
		n    *ast.Node
		want string
	}{
		{add, "(12 + 3.5)"},
		{ast.NewUnaryOp(tok(token.Not), token.Not, ast.NewBool(tok(token.Bool), true)), "!true"},
		{ast.NewPostfixOp(tok(token.Inc), token.Inc, ast.NewIdent(tok(token.Ident), "n")), "n++"},
		{ast.NewList(tok(token.LBracket), []*ast.Node{
			ast.NewNumber(tok(token.Int), 10),
			ast.NewNumber(tok(token.Int), 20),
		}), "[10, 20]"},
		{ast.NewString(tok(token.String), "hi"), `"hi"`},
		{ast.NewIdent(tok(token.Ident), "size"), "size"},
	}
	for _, c := range cases {
		if got := ast.ExprString(c.n); got != c.want {
			t.Errorf("ExprString = %q, want %q", got, c.want)
		}
	}
}

func TestDump(t *testing.T) {
	attrs := ast.NewAttributeMap()
	attrs.Put("title", &ast.Attribute{Key: "title", Value: ast.NewString(tok(token.String), "Home")})

	boxAttrs := ast.NewAttributeMap()
	boxAttrs.Put("width", &ast.Attribute{Key: "width", Value: ast.NewNumber(tok(token.Int), 100)})
	boxAttrs.Put("color", &ast.Attribute{Key: "color", Value: ast.NewString(tok(token.String), "red")})
	box := ast.NewElement(tok(token.Ident), "box", boxAttrs, ast.NewStateMap(), nil)

	layout := ast.NewLayout(tok(token.Layout), attrs, []*ast.Node{box})

	prog := ast.NewProgram(tok(token.Layout), "page.salam")
	d := prog.Data.(ast.ProgramNode)
	d.Layout = layout
	prog.Data = d

	var b strings.Builder
	prog.Dump(&b)

	want := strings.Join([]string{
		`program "page.salam"`,
		"  layout",
		`    title: "Home"`,
		"    element box",
		`      color: "red"`,
		"      width: 100",
		"",
	}, "\n")
	if diff := cmp.Diff(want, b.String()); diff != "" {
		t.Errorf("Dump mismatch (-want +got):\n%s", diff)
	}
}
