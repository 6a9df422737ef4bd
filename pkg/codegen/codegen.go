// Package codegen turns a checked layout tree into a standalone HTML
// document. Styling goes through shared CSS classes: every distinct
// declaration set is emitted once and named after its hash, so repeated
// elements share a rule instead of repeating inline styles.
package codegen

import (
	"fmt"
	"html"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/segmentio/fasthash/fnv1a"

	"github.com/AmirTallap/Salam/pkg/ast"
	"github.com/AmirTallap/Salam/pkg/config"
	"github.com/AmirTallap/Salam/pkg/hashmap"
	"github.com/AmirTallap/Salam/pkg/token"
	"github.com/AmirTallap/Salam/pkg/util"
)

type cssUnit int

const (
	unitNone cssUnit = iota
	unitPx
)

type cssProp struct {
	name string
	unit cssUnit
}

// styleProps maps attribute names to CSS declarations.
var styleProps = map[string]cssProp{
	"width":         {"width", unitPx},
	"height":        {"height", unitPx},
	"min_width":     {"min-width", unitPx},
	"min_height":    {"min-height", unitPx},
	"max_width":     {"max-width", unitPx},
	"max_height":    {"max-height", unitPx},
	"color":         {"color", unitNone},
	"background":    {"background-color", unitNone},
	"margin":        {"margin", unitPx},
	"padding":       {"padding", unitPx},
	"font_size":     {"font-size", unitPx},
	"font_family":   {"font-family", unitNone},
	"border":        {"border", unitNone},
	"border_radius": {"border-radius", unitPx},
	"gap":           {"gap", unitPx},
	"align":         {"text-align", unitNone},
	"opacity":       {"opacity", unitNone},
	"cursor":        {"cursor", unitNone},
	"display":       {"display", unitNone},
	"direction":     {"direction", unitNone},
}

// boolProps emit a fixed declaration when the attribute is true.
var boolProps = map[string]string{
	"bold":      "font-weight: bold",
	"italic":    "font-style: italic",
	"underline": "text-decoration: underline",
	"wrap":      "flex-wrap: wrap",
}

// htmlAttrs pass through onto the output tag.
var htmlAttrs = map[string]bool{
	"id":          true,
	"src":         true,
	"href":        true,
	"alt":         true,
	"placeholder": true,
	"type":        true,
	"value":       true,
	"name":        true,
}

// elementTags maps layout element names to HTML tags. Names outside the
// table are emitted verbatim.
var elementTags = map[string]string{
	"box":       "div",
	"row":       "div",
	"column":    "div",
	"text":      "span",
	"paragraph": "p",
	"heading":   "h1",
	"button":    "button",
	"input":     "input",
	"image":     "img",
	"link":      "a",
	"list":      "ul",
	"item":      "li",
	"divider":   "hr",
}

// implicitDecls are declarations an element name carries before its own
// attributes; user declarations come later, so the cascade favors them.
var implicitDecls = map[string][]string{
	"row":    {"display: flex", "flex-direction: row"},
	"column": {"display: flex", "flex-direction: column"},
}

var voidTags = map[string]bool{
	"img":   true,
	"input": true,
	"hr":    true,
	"br":    true,
}

type cssRule struct {
	selector string
	decls    []string
}

type stateRule struct {
	name  string
	decls []string
}

type Context struct {
	cfg       *config.Config
	path      string
	functions *hashmap.Map[*ast.Node]
	classes   *hashmap.Map[string]
	used      *hashmap.Map[bool]
	expanding *hashmap.Map[bool]
	rules     []cssRule
	warnings  []util.Diagnostic
	printW    io.Writer
}

func NewContext(cfg *config.Config) *Context {
	return &Context{
		cfg:       cfg,
		classes:   hashmap.New[string](hashmap.DefaultCapacity),
		used:      hashmap.New[bool](hashmap.DefaultCapacity),
		expanding: hashmap.New[bool](hashmap.DefaultCapacity),
		printW:    os.Stdout,
	}
}

// SetPrintWriter redirects print statement output away from stdout.
func (ctx *Context) SetPrintWriter(w io.Writer) { ctx.printW = w }

func (ctx *Context) Warnings() []util.Diagnostic { return ctx.warnings }

func (ctx *Context) errAt(tok token.Token, format string, args ...any) error {
	return util.Errorf(ctx.path, tok.Location, format, args...)
}

func (ctx *Context) warnf(wt config.Warning, tok token.Token, format string, args ...any) {
	if !ctx.cfg.IsWarningEnabled(wt) {
		return
	}
	ctx.warnings = append(ctx.warnings, util.Warnf(wt, ctx.path, tok.Location, format, args...))
}

// Generate renders the program's layout into a complete HTML document.
func (ctx *Context) Generate(prog *ast.Node) (string, error) {
	d := prog.Data.(ast.ProgramNode)
	ctx.path = d.Path
	ctx.functions = d.Functions

	if d.Layout == nil {
		return "", ctx.errAt(prog.Tok, "source has no layout block")
	}
	layout := d.Layout.Data.(ast.LayoutNode)
	root := newScope(nil)

	title, lang, err := ctx.pageAttrs(layout.Attrs, root)
	if err != nil {
		return "", err
	}

	var body strings.Builder
	for _, child := range layout.Children {
		if err := ctx.renderChild(child, root, &body, 0); err != nil {
			return "", err
		}
	}

	for _, name := range sortKeys(d.Functions.Keys()) {
		if ctx.used.Has(name) {
			continue
		}
		fn, _ := d.Functions.Get(name)
		ctx.warnf(config.WarnUnusedFunction, fn.Tok, "function %q is never used", name)
	}

	return ctx.document(title, lang, body.String()), nil
}

// Title and lang configure the document; everything else styles the
// body.
func (ctx *Context) pageAttrs(attrs *hashmap.Map[*ast.Attribute], env *scope) (title, lang string, err error) {
	var bodyDecls []string
	for _, key := range sortKeys(attrs.Keys()) {
		attr, _ := attrs.Get(key)
		v, err := ctx.evalExpr(attr.Value, env)
		if err != nil {
			return "", "", err
		}

		switch {
		case key == "title":
			title = v.Text()
		case key == "lang":
			if v.Kind != valString {
				return "", "", ctx.errAt(attr.Tok, "attribute \"lang\" must be a string, got %s", v.Kind)
			}
			lang = v.Str
		default:
			decl, ok, err := ctx.styleDecl(attr.Tok, key, v)
			if err != nil {
				return "", "", err
			}
			if !ok {
				ctx.warnf(config.WarnUnknownAttribute, attr.Tok, "unknown attribute %q on the layout block", key)
				continue
			}
			if decl != "" {
				bodyDecls = append(bodyDecls, decl)
			}
		}
	}
	if len(bodyDecls) > 0 {
		ctx.rules = append(ctx.rules, cssRule{"body", bodyDecls})
	}
	return title, lang, nil
}

// styleDecl renders one attribute as a CSS declaration. ok reports
// whether the attribute names a style property at all; a true bool
// property that is switched off comes back as an empty declaration.
func (ctx *Context) styleDecl(tok token.Token, key string, v Value) (string, bool, error) {
	if p, ok := styleProps[key]; ok {
		text, err := ctx.cssValue(tok, key, v, p.unit)
		if err != nil {
			return "", true, err
		}
		return p.name + ": " + text, true, nil
	}
	if decl, ok := boolProps[key]; ok {
		if v.Kind != valBool {
			return "", true, ctx.errAt(tok, "attribute %q must be a bool, got %s", key, v.Kind)
		}
		if !v.Bool {
			return "", true, nil
		}
		return decl, true, nil
	}
	return "", false, nil
}

func (ctx *Context) cssValue(tok token.Token, key string, v Value, unit cssUnit) (string, error) {
	switch v.Kind {
	case valInt:
		text := strconv.FormatInt(v.Int, 10)
		if unit == unitPx {
			text += "px"
		}
		return text, nil
	case valFloat:
		text := strconv.FormatFloat(v.Float, 'g', -1, 64)
		if unit == unitPx {
			text += "px"
		}
		return text, nil
	case valString:
		return v.Str, nil
	case valList:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			text, err := ctx.cssValue(tok, key, e, unit)
			if err != nil {
				return "", err
			}
			parts[i] = text
		}
		return strings.Join(parts, " "), nil
	}
	return "", ctx.errAt(tok, "attribute %q cannot take a %s value", key, v.Kind)
}

func (ctx *Context) renderChild(node *ast.Node, env *scope, sb *strings.Builder, depth int) error {
	if node.Type == ast.ComponentUse {
		return ctx.expandComponent(node, env, sb, depth)
	}
	return ctx.renderElement(node, env, sb, depth)
}

func (ctx *Context) renderElement(node *ast.Node, env *scope, sb *strings.Builder, depth int) error {
	d := node.Data.(ast.ElementNode)

	tag, known := elementTags[d.Name]
	if !known {
		tag = d.Name
		ctx.warnf(config.WarnExtra, node.Tok, "unknown element %q; emitting it as a raw tag", d.Name)
	}

	decls := append([]string{}, implicitDecls[d.Name]...)
	var attrPairs [][2]string
	var content, extraClass string
	hasContent := false

	for _, key := range sortKeys(d.Attrs.Keys()) {
		attr, _ := d.Attrs.Get(key)
		v, err := ctx.evalExpr(attr.Value, env)
		if err != nil {
			return err
		}

		switch {
		case key == "content":
			content = v.Text()
			hasContent = true
		case key == "class":
			if v.Kind != valString {
				return ctx.errAt(attr.Tok, "attribute \"class\" must be a string, got %s", v.Kind)
			}
			extraClass = v.Str
		case htmlAttrs[key]:
			attrPairs = append(attrPairs, [2]string{key, v.Text()})
		default:
			decl, ok, err := ctx.styleDecl(attr.Tok, key, v)
			if err != nil {
				return err
			}
			if !ok {
				ctx.warnf(config.WarnUnknownAttribute, attr.Tok, "unknown attribute %q on element %q", key, d.Name)
				continue
			}
			if decl != "" {
				decls = append(decls, decl)
			}
		}
	}

	states, err := ctx.stateRules(d.States, env)
	if err != nil {
		return err
	}

	class := ""
	if len(decls) > 0 || len(states) > 0 {
		class = ctx.classFor(decls, states)
	}
	if extraClass != "" {
		if class != "" {
			class += " " + extraClass
		} else {
			class = extraClass
		}
	}

	var open strings.Builder
	open.WriteByte('<')
	open.WriteString(tag)
	if class != "" {
		fmt.Fprintf(&open, " class=\"%s\"", html.EscapeString(class))
	}
	for _, pair := range attrPairs {
		fmt.Fprintf(&open, " %s=\"%s\"", pair[0], html.EscapeString(pair[1]))
	}
	open.WriteByte('>')

	indent := strings.Repeat("  ", depth)
	if voidTags[tag] {
		if hasContent || len(d.Children) > 0 {
			return ctx.errAt(node.Tok, "element %q cannot hold content or children", d.Name)
		}
		sb.WriteString(indent)
		sb.WriteString(open.String())
		sb.WriteByte('\n')
		return nil
	}

	if len(d.Children) == 0 {
		sb.WriteString(indent)
		sb.WriteString(open.String())
		if hasContent {
			sb.WriteString(html.EscapeString(content))
		}
		sb.WriteString("</" + tag + ">\n")
		return nil
	}

	sb.WriteString(indent)
	sb.WriteString(open.String())
	sb.WriteByte('\n')
	if hasContent {
		sb.WriteString(indent + "  " + html.EscapeString(content) + "\n")
	}
	for _, child := range d.Children {
		if err := ctx.renderChild(child, env, sb, depth+1); err != nil {
			return err
		}
	}
	sb.WriteString(indent + "</" + tag + ">\n")
	return nil
}

func (ctx *Context) stateRules(states *hashmap.Map[*ast.StyleState], env *scope) ([]stateRule, error) {
	var rules []stateRule
	for _, name := range sortKeys(states.Keys()) {
		state, _ := states.Get(name)
		var decls []string
		for _, key := range sortKeys(state.Attrs.Keys()) {
			attr, _ := state.Attrs.Get(key)
			v, err := ctx.evalExpr(attr.Value, env)
			if err != nil {
				return nil, err
			}
			decl, ok, err := ctx.styleDecl(attr.Tok, key, v)
			if err != nil {
				return nil, err
			}
			if !ok {
				ctx.warnf(config.WarnUnknownAttribute, attr.Tok, "attribute %q has no effect inside a style state", key)
				continue
			}
			if decl != "" {
				decls = append(decls, decl)
			}
		}
		if len(decls) > 0 {
			rules = append(rules, stateRule{name, decls})
		}
	}
	return rules, nil
}

// classFor returns the class name for a declaration set, registering
// its rules on first sight. Identical sets share one class.
func (ctx *Context) classFor(decls []string, states []stateRule) string {
	var canon strings.Builder
	canon.WriteString(strings.Join(decls, "; "))
	for _, s := range states {
		canon.WriteString("|" + s.name + ":" + strings.Join(s.decls, "; "))
	}

	class := "s-" + strconv.FormatUint(fnv1a.HashString64(canon.String()), 16)
	if ctx.classes.Has(class) {
		return class
	}
	ctx.classes.Put(class, canon.String())

	if len(decls) > 0 {
		ctx.rules = append(ctx.rules, cssRule{"." + class, decls})
	}
	for _, s := range states {
		ctx.rules = append(ctx.rules, cssRule{"." + class + ":" + s.name, s.decls})
	}
	return class
}

func (ctx *Context) expandComponent(node *ast.Node, env *scope, sb *strings.Builder, depth int) error {
	d := node.Data.(ast.ComponentUseNode)

	fn, ok := ctx.functions.Get(d.Name)
	if !ok {
		return ctx.errAt(node.Tok, "unknown component %q", d.Name)
	}
	decl := fn.Data.(ast.FuncDeclNode)
	if len(d.Args) != len(decl.Params) {
		return ctx.errAt(node.Tok, "wrong number of arguments for component %q: want %d, got %d", d.Name, len(decl.Params), len(d.Args))
	}
	if ctx.expanding.Has(d.Name) {
		return ctx.errAt(node.Tok, "component %q expands itself", d.Name)
	}

	// Arguments evaluate in the caller's scope; the body sees only its
	// parameters.
	frame := newScope(nil)
	for i, param := range decl.Params {
		v, err := ctx.evalExpr(d.Args[i], env)
		if err != nil {
			return err
		}
		frame.vars.Put(param, v)
	}

	ctx.used.Put(d.Name, true)
	ctx.expanding.Put(d.Name, true)
	c, err := ctx.execBlock(decl.Body, frame, sb, depth)
	ctx.expanding.Remove(d.Name)
	if err != nil {
		return err
	}
	if c == ctrlBreak || c == ctrlContinue {
		return ctx.errAt(node.Tok, "'break' and 'continue' only make sense inside loops")
	}
	return nil
}

func (ctx *Context) document(title, lang, body string) string {
	var doc strings.Builder
	doc.WriteString("<!DOCTYPE html>\n")
	if lang != "" {
		fmt.Fprintf(&doc, "<html lang=\"%s\">\n", html.EscapeString(lang))
	} else {
		doc.WriteString("<html>\n")
	}
	doc.WriteString("<head>\n")
	doc.WriteString("<meta charset=\"utf-8\">\n")
	if title != "" {
		fmt.Fprintf(&doc, "<title>%s</title>\n", html.EscapeString(title))
	}
	if len(ctx.rules) > 0 {
		doc.WriteString("<style>\n")
		for _, rule := range ctx.rules {
			doc.WriteString(rule.selector + " {\n")
			for _, decl := range rule.decls {
				doc.WriteString("  " + decl + ";\n")
			}
			doc.WriteString("}\n")
		}
		doc.WriteString("</style>\n")
	}
	doc.WriteString("</head>\n")
	doc.WriteString("<body>\n")
	doc.WriteString(body)
	doc.WriteString("</body>\n")
	doc.WriteString("</html>\n")
	return doc.String()
}

func sortKeys(keys []string) []string {
	sort.Strings(keys)
	return keys
}
