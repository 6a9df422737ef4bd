// Package lexer turns Salam source text into a located token sequence.
// Lexical problems never abort the scan; they are recorded in-band as
// Error tokens carrying their message.
package lexer

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/AmirTallap/Salam/pkg/token"
)

type Lexer struct {
	path   string // empty when the source did not come from a file
	source []byte
	pos    int
	line   int
	column int

	tokens  []token.Token
	readPos int
}

// New returns a lexer over source. path is carried for diagnostics only.
func New(path string, source []byte) *Lexer {
	return &Lexer{path: path, source: source, line: 1, column: 1}
}

func (l *Lexer) Path() string          { return l.path }
func (l *Lexer) Source() []byte        { return l.source }
func (l *Lexer) Tokens() []token.Token { return l.tokens }

// Lex scans the whole source eagerly. The sequence always ends with
// exactly one EOF token at the final cursor position.
func (l *Lexer) Lex() {
	l.tokens = l.tokens[:0]
	l.pos, l.line, l.column = 0, 1, 1
	l.readPos = 0

	for {
		l.skipWhitespace()
		if l.isAtEnd() {
			break
		}
		start := l.mark()
		switch c := l.peek(); {
		case isAlpha(c):
			l.identifierOrKeyword(start)
		case isDigit(c):
			l.numberLiteral(start)
		case c == '"' || c == '\'':
			l.stringLiteral(start)
		default:
			l.operator(start)
		}
	}
	l.emit(token.EOF, l.mark(), token.Literal{})
}

type mark struct {
	pos, line, column int
}

func (l *Lexer) mark() mark { return mark{l.pos, l.line, l.column} }

func (l *Lexer) spanFrom(m mark) token.Location {
	return token.Location{
		Index:       m.pos,
		Length:      l.pos - m.pos,
		StartLine:   m.line,
		StartColumn: m.column,
		EndLine:     l.line,
		EndColumn:   l.column,
	}
}

func (l *Lexer) peek() byte {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) peekNext() byte {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	return l.source[l.pos+1]
}

func (l *Lexer) advance() byte {
	if l.isAtEnd() {
		return 0
	}
	c := l.source[l.pos]
	if c == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos++
	return c
}

func (l *Lexer) match(expected byte) bool {
	if l.isAtEnd() || l.source[l.pos] != expected {
		return false
	}
	l.advance()
	return true
}

func (l *Lexer) matchThen(expected byte, thenType, elseType token.Type) token.Type {
	if l.match(expected) {
		return thenType
	}
	return elseType
}

func (l *Lexer) isAtEnd() bool { return l.pos >= len(l.source) }

func (l *Lexer) skipWhitespace() {
	for !l.isAtEnd() && isSpace(l.source[l.pos]) {
		l.advance()
	}
}

func (l *Lexer) emit(typ token.Type, start mark, lit token.Literal) {
	l.tokens = append(l.tokens, token.Token{Type: typ, Location: l.spanFrom(start), Lit: lit})
}

func (l *Lexer) errorf(start mark, format string, args ...any) {
	l.tokens = append(l.tokens, token.Token{
		Type:     token.Error,
		Location: l.spanFrom(start),
		Lit:      token.StringLit(fmt.Sprintf(format, args...)),
	})
}

func (l *Lexer) identifierOrKeyword(start mark) {
	for !l.isAtEnd() && isAlnum(l.source[l.pos]) {
		l.advance()
	}
	word := string(l.source[start.pos:l.pos])
	if typ, ok := token.Lookup(word); ok {
		if typ == token.Bool {
			l.emit(typ, start, token.BoolLit(word == "true"))
		} else {
			l.emit(typ, start, token.Literal{})
		}
		return
	}
	l.emit(token.Ident, start, token.StringLit(word))
}

func (l *Lexer) numberLiteral(start mark) {
	for !l.isAtEnd() && isDigit(l.source[l.pos]) {
		l.advance()
	}
	isFloat := false
	if l.peek() == '.' && isDigit(l.peekNext()) {
		isFloat = true
		l.advance()
		for !l.isAtEnd() && isDigit(l.source[l.pos]) {
			l.advance()
		}
	}

	// A trailing dot or letter condemns the whole lexeme: "12." and
	// "12abc" each cost one Error token.
	if c := l.peek(); c == '.' || isAlpha(c) {
		for !l.isAtEnd() && (isAlnum(l.source[l.pos]) || l.source[l.pos] == '.') {
			l.advance()
		}
		l.errorf(start, "malformed number %q", string(l.source[start.pos:l.pos]))
		return
	}

	text := string(l.source[start.pos:l.pos])
	if isFloat {
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			l.errorf(start, "malformed number %q", text)
			return
		}
		l.emit(token.Float, start, token.FloatLit(v))
		return
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		l.errorf(start, "integer constant out of range: %s", text)
		return
	}
	l.emit(token.Int, start, token.IntLit(v))
}

// String content is taken verbatim, no escape processing.
func (l *Lexer) stringLiteral(start mark) {
	quote := l.advance()
	for !l.isAtEnd() && l.source[l.pos] != quote {
		l.advance()
	}
	if l.isAtEnd() {
		l.errorf(start, "unterminated string")
		return
	}
	l.advance()
	body := string(l.source[start.pos+1 : l.pos-1])
	l.emit(token.String, start, token.StringLit(body))
}

func (l *Lexer) operator(start mark) {
	c := l.advance()
	var typ token.Type
	switch c {
	case '{':
		typ = token.LBrace
	case '}':
		typ = token.RBrace
	case '[':
		typ = token.LBracket
	case ']':
		typ = token.RBracket
	case '(':
		typ = token.LParen
	case ')':
		typ = token.RParen
	case ':':
		typ = token.Colon
	case ',':
		typ = token.Comma
	case '*':
		typ = token.Star
	case '/':
		typ = token.Slash
	case '%':
		typ = token.Rem
	case '^':
		typ = token.Pow
	case '+':
		typ = l.matchThen('+', token.Inc, token.Plus)
	case '-':
		typ = l.matchThen('-', token.Dec, token.Minus)
	case '=':
		typ = l.matchThen('=', token.EqEq, token.Eq)
	case '!':
		typ = l.matchThen('=', token.Neq, token.Not)
	case '&':
		typ = l.matchThen('&', token.AndAnd, token.BitAnd)
	case '|':
		typ = l.matchThen('|', token.OrOr, token.BitOr)
	case '<':
		if l.match('<') {
			typ = l.matchThen('=', token.ShlEq, token.Shl)
		} else {
			typ = l.matchThen('=', token.Lte, token.Lt)
		}
	case '>':
		if l.match('>') {
			typ = l.matchThen('=', token.ShrEq, token.Shr)
		} else {
			typ = l.matchThen('=', token.Gte, token.Gt)
		}
	default:
		l.errorf(start, "unexpected character %q", rune(c))
		return
	}
	l.emit(typ, start, token.Literal{})
}

func isAlpha(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlnum(c byte) bool { return isAlpha(c) || isDigit(c) }

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

func (l *Lexer) Peek() token.Token {
	return l.at(l.readPos)
}

func (l *Lexer) PeekAt(n int) token.Token {
	return l.at(l.readPos + n)
}

// Next advances the read cursor, which stops at the terminating EOF.
func (l *Lexer) Next() token.Token {
	t := l.at(l.readPos)
	if l.readPos < len(l.tokens)-1 {
		l.readPos++
	}
	return t
}

func (l *Lexer) Reset() { l.readPos = 0 }

func (l *Lexer) at(i int) token.Token {
	if len(l.tokens) == 0 {
		return token.Token{Type: token.EOF}
	}
	if i >= len(l.tokens) {
		i = len(l.tokens) - 1
	}
	return l.tokens[i]
}

func (l *Lexer) Errors() []token.Token {
	var errs []token.Token
	for _, t := range l.tokens {
		if t.Type == token.Error {
			errs = append(errs, t)
		}
	}
	return errs
}

// WriteTokens dumps the scanned sequence, one token per line.
func (l *Lexer) WriteTokens(w io.Writer) error {
	for _, t := range l.tokens {
		if _, err := fmt.Fprintln(w, t.String()); err != nil {
			return err
		}
	}
	return nil
}

func (l *Lexer) SaveTokens(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := l.WriteTokens(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
