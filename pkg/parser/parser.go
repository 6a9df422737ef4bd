// Package parser builds the syntax tree from a lexed token sequence.
// The first hard error aborts the parse; style nits that do not prevent
// a tree are collected as warnings instead.
package parser

import (
	"fmt"

	"github.com/AmirTallap/Salam/pkg/ast"
	"github.com/AmirTallap/Salam/pkg/config"
	"github.com/AmirTallap/Salam/pkg/hashmap"
	"github.com/AmirTallap/Salam/pkg/lexer"
	"github.com/AmirTallap/Salam/pkg/token"
	"github.com/AmirTallap/Salam/pkg/util"
)

type (
	attrMap  = hashmap.Map[*ast.Attribute]
	stateMap = hashmap.Map[*ast.StyleState]
)

// blockKind selects which items a brace block accepts.
type blockKind int

const (
	layoutBlock blockKind = iota
	elementBlock
	stateBlock
	funcBlock
)

// stateNames open a style state rather than a child element.
var stateNames = map[string]bool{
	"hover":    true,
	"focus":    true,
	"active":   true,
	"visited":  true,
	"disabled": true,
}

type Parser struct {
	lex  *lexer.Lexer
	cfg  *config.Config
	path string
	cur  token.Token

	warnings []util.Diagnostic
}

func NewParser(lex *lexer.Lexer, cfg *config.Config) *Parser {
	lex.Reset()
	p := &Parser{lex: lex, cfg: cfg, path: lex.Path()}
	p.cur = lex.Next()
	return p
}

func (p *Parser) Warnings() []util.Diagnostic { return p.warnings }

func (p *Parser) Parse() (*ast.Node, error) {
	prog := ast.NewProgram(p.cur, p.path)
	d := prog.Data.(ast.ProgramNode)

	for !p.check(token.EOF) {
		switch {
		case p.check(token.Import):
			imp, err := p.parseImport()
			if err != nil {
				return nil, err
			}
			d.Imports = append(d.Imports, imp)
		case p.check(token.Fn):
			fn, err := p.parseFuncDecl()
			if err != nil {
				return nil, err
			}
			name := fn.Data.(ast.FuncDeclNode).Name
			if d.Functions.Has(name) {
				p.warnf(config.WarnRedefinedFunction, fn.Tok, "function %q redefined; the last definition wins", name)
			}
			d.Functions.Put(name, fn)
		case p.check(token.Layout):
			if d.Layout != nil {
				return nil, p.errAt(p.cur, "duplicate layout block; a file holds at most one")
			}
			layout, err := p.parseLayout()
			if err != nil {
				return nil, err
			}
			d.Layout = layout
		default:
			return nil, p.errUnexpected("'import', 'fn' or 'layout' at top level")
		}
	}

	prog.Data = d
	return prog, nil
}

func (p *Parser) advance() {
	p.cur = p.lex.Next()
}

func (p *Parser) peek() token.Token { return p.lex.Peek() }

func (p *Parser) check(typ token.Type) bool { return p.cur.Type == typ }

func (p *Parser) match(typ token.Type) bool {
	if !p.check(typ) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) expect(typ token.Type, context string) error {
	if p.match(typ) {
		return nil
	}
	return p.errUnexpected(fmt.Sprintf("'%s' %s", typ.Text(), context))
}

func (p *Parser) errAt(tok token.Token, format string, args ...any) error {
	return util.Errorf(p.path, tok.Location, format, args...)
}

// errUnexpected complains about the cursor token. A lexer Error token
// surfaces its own message; anything else names what was expected.
func (p *Parser) errUnexpected(expected string) error {
	if p.cur.Type == token.Error {
		return p.errAt(p.cur, "%s", p.cur.Lit.Str)
	}
	return p.errAt(p.cur, "expected %s, found %s", expected, describe(p.cur))
}

func (p *Parser) warnf(wt config.Warning, tok token.Token, format string, args ...any) {
	if !p.cfg.IsWarningEnabled(wt) {
		return
	}
	p.warnings = append(p.warnings, util.Warnf(wt, p.path, tok.Location, format, args...))
}

func describe(t token.Token) string {
	switch t.Type {
	case token.EOF:
		return "end of file"
	case token.Ident:
		return fmt.Sprintf("identifier %q", t.Lit.Str)
	case token.String:
		return fmt.Sprintf("string %q", t.Lit.Str)
	case token.Int, token.Float, token.Bool:
		return t.Value()
	}
	return "'" + t.Type.Text() + "'"
}

// --- Declarations ---

func (p *Parser) parseImport() (*ast.Node, error) {
	tok := p.cur
	p.advance()
	if !p.check(token.String) {
		return nil, p.errUnexpected("import path string")
	}
	path := p.cur.Lit.Str
	p.advance()
	return ast.NewImport(tok, path), nil
}

func (p *Parser) parseFuncDecl() (*ast.Node, error) {
	tok := p.cur
	p.advance()
	if !p.check(token.Ident) {
		return nil, p.errUnexpected("function name")
	}
	name := p.cur.Lit.Str
	p.advance()

	if err := p.expect(token.LParen, "after function name"); err != nil {
		return nil, err
	}
	var params []string
	for !p.check(token.RParen) {
		if !p.check(token.Ident) {
			return nil, p.errUnexpected("parameter name")
		}
		params = append(params, p.cur.Lit.Str)
		p.advance()
		if !p.match(token.Comma) {
			break
		}
	}
	if err := p.expect(token.RParen, "after parameters"); err != nil {
		return nil, err
	}

	body, err := p.parseFuncBlock()
	if err != nil {
		return nil, err
	}
	return ast.NewFuncDecl(tok, name, params, body), nil
}

func (p *Parser) parseLayout() (*ast.Node, error) {
	tok := p.cur
	p.advance()

	attrs := ast.NewAttributeMap()
	children, err := p.parseBraced(layoutBlock, attrs, nil, nil)
	if err != nil {
		return nil, err
	}
	if attrs.Len() == 0 && len(children) == 0 {
		p.warnf(config.WarnEmptyLayout, tok, "layout block is empty")
	}
	return ast.NewLayout(tok, attrs, children), nil
}

// --- Blocks ---

// parseBraced consumes a '{ ... }' run of block items. Attributes land
// in attrs, style states in states, renderables in the result slice;
// function bodies keep everything ordered in stmts instead.
func (p *Parser) parseBraced(kind blockKind, attrs *attrMap, states *stateMap, stmts *[]*ast.Node) ([]*ast.Node, error) {
	if err := p.expect(token.LBrace, "to open the block"); err != nil {
		return nil, err
	}
	var children []*ast.Node
	for !p.check(token.RBrace) {
		if p.check(token.EOF) {
			return nil, p.errUnexpected("'}' to close the block")
		}
		if err := p.parseBlockItem(kind, attrs, states, stmts, &children); err != nil {
			return nil, err
		}
	}
	p.advance()
	return children, nil
}

func (p *Parser) parseBlockItem(kind blockKind, attrs *attrMap, states *stateMap, stmts, children *[]*ast.Node) error {
	if p.check(token.Error) {
		return p.errAt(p.cur, "%s", p.cur.Lit.Str)
	}

	if kind == funcBlock {
		switch p.cur.Type {
		case token.If, token.While, token.For, token.Print, token.Return, token.Break, token.Continue:
			stmt, err := p.parseStmt()
			if err != nil {
				return err
			}
			*stmts = append(*stmts, stmt)
			return nil
		}
	}

	if !p.check(token.Ident) {
		return p.errUnexpected(p.itemHint(kind))
	}

	out := children
	if kind == funcBlock {
		out = stmts
	}

	next := p.peek().Type
	switch next {
	case token.Colon:
		if kind == funcBlock {
			return p.errAt(p.cur, "attribute %q outside an element; attributes belong to layout, element or state blocks", p.cur.Lit.Str)
		}
		return p.parseAttribute(attrs)

	case token.LBrace:
		if kind == stateBlock {
			return p.errAt(p.cur, "style state blocks hold attributes only")
		}
		if kind == elementBlock && stateNames[p.cur.Lit.Str] {
			return p.parseStyleState(states)
		}
		el, err := p.parseElement()
		if err != nil {
			return err
		}
		*out = append(*out, el)
		return nil

	case token.LParen:
		if kind == stateBlock {
			return p.errAt(p.cur, "style state blocks hold attributes only")
		}
		use, err := p.parseComponentUse()
		if err != nil {
			return err
		}
		*out = append(*out, use)
		return nil

	case token.Eq, token.ShlEq, token.ShrEq, token.Inc, token.Dec:
		if kind != funcBlock {
			return p.errAt(p.cur, "statements are only allowed inside functions")
		}
		stmt, err := p.parseSimpleStmt()
		if err != nil {
			return err
		}
		*stmts = append(*stmts, stmt)
		return nil
	}

	return p.errUnexpected(p.itemHint(kind))
}

func (p *Parser) itemHint(kind blockKind) string {
	switch kind {
	case layoutBlock:
		return "an attribute, element or component use"
	case elementBlock:
		return "an attribute, style state, element or component use"
	case stateBlock:
		return "an attribute"
	}
	return "a statement, element or component use"
}

func (p *Parser) parseAttribute(attrs *attrMap) error {
	keyTok := p.cur
	key := keyTok.Lit.Str
	p.advance()
	p.advance() // ':'

	value, err := p.parseExpr()
	if err != nil {
		return err
	}
	if attrs.Has(key) {
		p.warnf(config.WarnDuplicateAttribute, keyTok, "attribute %q assigned twice; the last value wins", key)
	}
	attrs.Put(key, &ast.Attribute{Key: key, Tok: keyTok, Value: value})
	return nil
}

func (p *Parser) parseElement() (*ast.Node, error) {
	tok := p.cur
	name := tok.Lit.Str
	p.advance()

	attrs := ast.NewAttributeMap()
	states := ast.NewStateMap()
	children, err := p.parseBraced(elementBlock, attrs, states, nil)
	if err != nil {
		return nil, err
	}
	if attrs.Len() == 0 && states.Len() == 0 && len(children) == 0 {
		p.warnf(config.WarnEmptyLayout, tok, "element %q is empty", name)
	}
	return ast.NewElement(tok, name, attrs, states, children), nil
}

func (p *Parser) parseStyleState(states *stateMap) error {
	tok := p.cur
	name := tok.Lit.Str
	p.advance()

	attrs := ast.NewAttributeMap()
	if _, err := p.parseBraced(stateBlock, attrs, nil, nil); err != nil {
		return err
	}
	if states.Has(name) {
		p.warnf(config.WarnDuplicateAttribute, tok, "style state %q declared twice; the last block wins", name)
	}
	states.Put(name, &ast.StyleState{Name: name, Tok: tok, Attrs: attrs})
	return nil
}

func (p *Parser) parseComponentUse() (*ast.Node, error) {
	tok := p.cur
	name := tok.Lit.Str
	p.advance()
	p.advance() // '('

	var args []*ast.Node
	for !p.check(token.RParen) {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.match(token.Comma) {
			break
		}
	}
	if err := p.expect(token.RParen, "after component arguments"); err != nil {
		return nil, err
	}
	return ast.NewComponentUse(tok, name, args), nil
}

// --- Statements ---

func (p *Parser) parseFuncBlock() (*ast.Node, error) {
	tok := p.cur
	var stmts []*ast.Node
	if _, err := p.parseBraced(funcBlock, nil, nil, &stmts); err != nil {
		return nil, err
	}
	return ast.NewBlock(tok, stmts), nil
}

func (p *Parser) parseStmt() (*ast.Node, error) {
	switch p.cur.Type {
	case token.If:
		return p.parseIf()
	case token.While:
		tok := p.cur
		p.advance()
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		body, err := p.parseFuncBlock()
		if err != nil {
			return nil, err
		}
		return ast.NewWhile(tok, cond, body), nil
	case token.For:
		return p.parseFor()
	case token.Print:
		tok := p.cur
		p.advance()
		var args []*ast.Node
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if !p.match(token.Comma) {
				break
			}
		}
		return ast.NewPrint(tok, args), nil
	case token.Return:
		tok := p.cur
		p.advance()
		if p.check(token.RBrace) {
			return ast.NewReturn(tok, nil), nil
		}
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return ast.NewReturn(tok, expr), nil
	case token.Break:
		tok := p.cur
		p.advance()
		return ast.NewBreak(tok), nil
	case token.Continue:
		tok := p.cur
		p.advance()
		return ast.NewContinue(tok), nil
	}
	return nil, p.errUnexpected("a statement")
}

func (p *Parser) parseIf() (*ast.Node, error) {
	tok := p.cur
	p.advance()
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	then, err := p.parseFuncBlock()
	if err != nil {
		return nil, err
	}
	var els *ast.Node
	if p.match(token.Else) {
		if p.check(token.If) {
			els, err = p.parseIf()
		} else {
			els, err = p.parseFuncBlock()
		}
		if err != nil {
			return nil, err
		}
	}
	return ast.NewIf(tok, cond, then, els), nil
}

// parseFor handles `for name: count { ... }`, binding name to
// 0..count-1.
func (p *Parser) parseFor() (*ast.Node, error) {
	tok := p.cur
	p.advance()
	if !p.check(token.Ident) {
		return nil, p.errUnexpected("loop variable name")
	}
	name := p.cur.Lit.Str
	p.advance()
	if err := p.expect(token.Colon, "after the loop variable"); err != nil {
		return nil, err
	}
	count, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseFuncBlock()
	if err != nil {
		return nil, err
	}
	return ast.NewFor(tok, name, count, body), nil
}

func (p *Parser) parseSimpleStmt() (*ast.Node, error) {
	nameTok := p.cur
	name := nameTok.Lit.Str
	p.advance()

	opTok := p.cur
	switch opTok.Type {
	case token.Inc, token.Dec:
		p.advance()
		return ast.NewPostfixOp(opTok, opTok.Type, ast.NewIdent(nameTok, name)), nil
	case token.Eq, token.ShlEq, token.ShrEq:
		p.advance()
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return ast.NewAssign(opTok, opTok.Type, name, value), nil
	}
	return nil, p.errUnexpected("an assignment operator")
}

// --- Expressions ---

// Binding powers, loosest first. Power is the only right-associative
// operator.
func precedence(op token.Type) int {
	switch op {
	case token.OrOr:
		return 1
	case token.AndAnd:
		return 2
	case token.BitOr:
		return 3
	case token.BitAnd:
		return 4
	case token.EqEq, token.Neq:
		return 5
	case token.Lt, token.Gt, token.Lte, token.Gte:
		return 6
	case token.Shl, token.Shr:
		return 7
	case token.Plus, token.Minus:
		return 8
	case token.Star, token.Slash, token.Rem:
		return 9
	case token.Pow:
		return 10
	}
	return 0
}

func (p *Parser) parseExpr() (*ast.Node, error) {
	return p.parseBinaryExpr(1)
}

func (p *Parser) parseBinaryExpr(minPrec int) (*ast.Node, error) {
	left, err := p.parseUnaryExpr()
	if err != nil {
		return nil, err
	}
	for {
		op := p.cur.Type
		prec := precedence(op)
		if prec < minPrec {
			return left, nil
		}
		opTok := p.cur
		p.advance()

		nextMin := prec + 1
		if op == token.Pow {
			nextMin = prec
		}
		right, err := p.parseBinaryExpr(nextMin)
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryOp(opTok, op, left, right)
	}
}

func (p *Parser) parseUnaryExpr() (*ast.Node, error) {
	switch p.cur.Type {
	case token.Not, token.Minus, token.Inc, token.Dec:
		opTok := p.cur
		p.advance()
		operand, err := p.parseUnaryExpr()
		if err != nil {
			return nil, err
		}
		if (opTok.Type == token.Inc || opTok.Type == token.Dec) && operand.Type != ast.Ident {
			return nil, p.errAt(opTok, "prefix '%s' requires a name", opTok.Type.Text())
		}
		return ast.NewUnaryOp(opTok, opTok.Type, operand), nil
	}
	return p.parsePostfixExpr()
}

func (p *Parser) parsePostfixExpr() (*ast.Node, error) {
	expr, err := p.parsePrimaryExpr()
	if err != nil {
		return nil, err
	}
	for p.check(token.Inc) || p.check(token.Dec) {
		opTok := p.cur
		p.advance()
		if expr.Type != ast.Ident {
			return nil, p.errAt(opTok, "postfix '%s' requires a name", opTok.Type.Text())
		}
		expr = ast.NewPostfixOp(opTok, opTok.Type, expr)
	}
	return expr, nil
}

func (p *Parser) parsePrimaryExpr() (*ast.Node, error) {
	tok := p.cur
	switch tok.Type {
	case token.Int:
		p.advance()
		return ast.NewNumber(tok, tok.Lit.Int), nil
	case token.Float:
		p.advance()
		return ast.NewFloat(tok, tok.Lit.Float), nil
	case token.String:
		p.advance()
		return ast.NewString(tok, tok.Lit.Str), nil
	case token.Bool:
		p.advance()
		return ast.NewBool(tok, tok.Lit.Bool), nil
	case token.Ident:
		p.advance()
		if p.check(token.LParen) {
			return nil, p.errAt(p.cur, "function calls are not allowed in attribute expressions")
		}
		return ast.NewIdent(tok, tok.Lit.Str), nil
	case token.LParen:
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(token.RParen, "after the expression"); err != nil {
			return nil, err
		}
		return expr, nil
	case token.LBracket:
		p.advance()
		var elems []*ast.Node
		for !p.check(token.RBracket) {
			elem, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			elems = append(elems, elem)
			if !p.match(token.Comma) {
				break
			}
		}
		if err := p.expect(token.RBracket, "after the list"); err != nil {
			return nil, err
		}
		return ast.NewList(tok, elems), nil
	}
	return nil, p.errUnexpected("an expression")
}
