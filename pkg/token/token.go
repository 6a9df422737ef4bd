package token

import (
	"fmt"
	"strconv"
)

type Type int

const (
	EOF Type = iota
	Error

	Ident
	String
	Int
	Float
	Bool

	LBrace
	RBrace
	LBracket
	RBracket
	LParen
	RParen
	Colon
	Comma

	Plus
	Minus
	Star
	Slash
	Rem
	Pow
	Eq
	Lt
	Gt
	Not
	BitAnd
	BitOr

	Neq
	EqEq
	AndAnd
	OrOr
	Lte
	Gte
	Inc
	Dec
	Shl
	Shr
	ShlEq
	ShrEq

	Layout
	Import
	Fn
	Return
	Print
	If
	Else
	While
	For
	Break
	Continue
)

var names = [...]string{
	EOF:      "EOF",
	Error:    "ERROR",
	Ident:    "IDENTIFIER",
	String:   "STRING",
	Int:      "NUMBER_INT",
	Float:    "NUMBER_FLOAT",
	Bool:     "BOOLEAN",
	LBrace:   "LEFT_BRACE",
	RBrace:   "RIGHT_BRACE",
	LBracket: "LEFT_BRACKET",
	RBracket: "RIGHT_BRACKET",
	LParen:   "LEFT_PAREN",
	RParen:   "RIGHT_PAREN",
	Colon:    "COLON",
	Comma:    "COMMA",
	Plus:     "PLUS",
	Minus:    "MINUS",
	Star:     "MULTIPLY",
	Slash:    "DIVIDE",
	Rem:      "MOD",
	Pow:      "POWER",
	Eq:       "ASSIGN",
	Lt:       "LESS",
	Gt:       "GREATER",
	Not:      "NOT",
	BitAnd:   "AND_BIT",
	BitOr:    "OR_BIT",
	Neq:      "NOT_EQUAL",
	EqEq:     "EQUAL",
	AndAnd:   "AND_AND",
	OrOr:     "OR_OR",
	Lte:      "LESS_EQUAL",
	Gte:      "GREATER_EQUAL",
	Inc:      "INCREMENT",
	Dec:      "DECREMENT",
	Shl:      "SHIFT_LEFT",
	Shr:      "SHIFT_RIGHT",
	ShlEq:    "SHIFT_LEFT_ASSIGN",
	ShrEq:    "SHIFT_RIGHT_ASSIGN",
	Layout:   "LAYOUT",
	Import:   "IMPORT",
	Fn:       "FUNCTION",
	Return:   "RETURN",
	Print:    "PRINT",
	If:       "IF",
	Else:     "ELSE",
	While:    "WHILE",
	For:      "FOR",
	Break:    "BREAK",
	Continue: "CONTINUE",
}

// texts holds the fixed lexeme of every token type that has one. Types
// whose lexeme varies (identifiers, literals, errors) stay empty.
var texts = [...]string{
	LBrace:   "{",
	RBrace:   "}",
	LBracket: "[",
	RBracket: "]",
	LParen:   "(",
	RParen:   ")",
	Colon:    ":",
	Comma:    ",",
	Plus:     "+",
	Minus:    "-",
	Star:     "*",
	Slash:    "/",
	Rem:      "%",
	Pow:      "^",
	Eq:       "=",
	Lt:       "<",
	Gt:       ">",
	Not:      "!",
	BitAnd:   "&",
	BitOr:    "|",
	Neq:      "!=",
	EqEq:     "==",
	AndAnd:   "&&",
	OrOr:     "||",
	Lte:      "<=",
	Gte:      ">=",
	Inc:      "++",
	Dec:      "--",
	Shl:      "<<",
	Shr:      ">>",
	ShlEq:    "<<=",
	ShrEq:    ">>=",
	Layout:   "layout",
	Import:   "import",
	Fn:       "fn",
	Return:   "return",
	Print:    "print",
	If:       "if",
	Else:     "else",
	While:    "while",
	For:      "for",
	Break:    "break",
	Continue: "continue",
}

func (t Type) Name() string {
	if int(t) < len(names) && names[t] != "" {
		return names[t]
	}
	return fmt.Sprintf("TYPE(%d)", int(t))
}

func (t Type) Text() string {
	if int(t) < len(texts) {
		return texts[t]
	}
	return ""
}

type keyword struct {
	name string
	typ  Type
}

// keywords is scanned linearly by Lookup. true and false map to Bool; the
// lexer derives the payload from the spelling.
var keywords = []keyword{
	{"layout", Layout},
	{"import", Import},
	{"fn", Fn},
	{"return", Return},
	{"if", If},
	{"print", Print},
	{"else", Else},
	{"while", While},
	{"for", For},
	{"break", Break},
	{"continue", Continue},
	{"true", Bool},
	{"false", Bool},
}

func Lookup(word string) (Type, bool) {
	for _, kw := range keywords {
		if kw.name == word {
			return kw.typ, true
		}
	}
	return Ident, false
}

func IsKeyword(word string) bool {
	_, ok := Lookup(word)
	return ok
}

// Location is a half-open span over the source buffer plus the 1-based
// line/column pair of each endpoint. Index and Length are byte counts.
type Location struct {
	Index       int
	Length      int
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d..%d:%d @%d+%d",
		l.StartLine, l.StartColumn, l.EndLine, l.EndColumn, l.Index, l.Length)
}

type LitKind uint8

const (
	LitNone LitKind = iota
	LitInt
	LitFloat
	LitString
	LitBool
)

// Literal is the decoded payload of a literal token. Error tokens reuse
// the string slot for their message, identifiers for their spelling.
type Literal struct {
	Kind  LitKind
	Int   int64
	Float float64
	Str   string
	Bool  bool
}

func IntLit(v int64) Literal     { return Literal{Kind: LitInt, Int: v} }
func FloatLit(v float64) Literal { return Literal{Kind: LitFloat, Float: v} }
func StringLit(s string) Literal { return Literal{Kind: LitString, Str: s} }
func BoolLit(v bool) Literal     { return Literal{Kind: LitBool, Bool: v} }

type Token struct {
	Type     Type
	Location Location
	Lit      Literal
}

func New(typ Type, loc Location) Token {
	return Token{Type: typ, Location: loc}
}

// Value renders the token's text: the literal payload when one is carried,
// the fixed lexeme otherwise.
func (t Token) Value() string {
	switch t.Lit.Kind {
	case LitInt:
		return strconv.FormatInt(t.Lit.Int, 10)
	case LitFloat:
		return strconv.FormatFloat(t.Lit.Float, 'g', -1, 64)
	case LitString:
		return t.Lit.Str
	case LitBool:
		return strconv.FormatBool(t.Lit.Bool)
	}
	return t.Type.Text()
}

// String formats one line of a token dump: name, value, location. String
// payloads are quoted so dumps stay unambiguous.
func (t Token) String() string {
	switch {
	case t.Lit.Kind == LitString:
		return fmt.Sprintf("%s %q %s", t.Type.Name(), t.Lit.Str, t.Location)
	case t.Lit.Kind != LitNone:
		return fmt.Sprintf("%s %s %s", t.Type.Name(), t.Value(), t.Location)
	case t.Type.Text() != "":
		return fmt.Sprintf("%s %s %s", t.Type.Name(), t.Type.Text(), t.Location)
	}
	return fmt.Sprintf("%s %s", t.Type.Name(), t.Location)
}
