// Package ast defines the syntax tree for Salam programs. Tree nodes
// carry a NodeType tag and a typed Data payload; element attributes,
// style states and function symbols live in hashmap tables whose bound
// destructors cascade on Destroy.
package ast

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/AmirTallap/Salam/pkg/hashmap"
	"github.com/AmirTallap/Salam/pkg/token"
)

type NodeType int

const (
	// Expressions
	Number NodeType = iota
	FloatNumber
	String
	Bool
	Ident
	List
	BinaryOp
	UnaryOp
	PostfixOp

	// Statements
	Block
	If
	While
	For
	Print
	Return
	Break
	Continue
	Assign

	// Layout
	Element
	ComponentUse
	Layout

	// Top level
	Import
	FuncDecl
	Program
)

type Node struct {
	Type NodeType
	Tok  token.Token
	Data any
}

// Attribute is one `name: expr` binding inside a block.
type Attribute struct {
	Key   string
	Tok   token.Token
	Value *Node
}

// StyleState is a named interaction state such as hover.
type StyleState struct {
	Name  string
	Tok   token.Token
	Attrs *hashmap.Map[*Attribute]
}

// --- Node data structs ---

type NumberNode struct{ Value int64 }
type FloatNode struct{ Value float64 }
type StringNode struct{ Value string }
type BoolNode struct{ Value bool }
type IdentNode struct{ Name string }
type ListNode struct{ Elems []*Node }
type BinaryOpNode struct {
	Op          token.Type
	Left, Right *Node
}
type UnaryOpNode struct {
	Op   token.Type
	Expr *Node
}
type PostfixOpNode struct {
	Op   token.Type
	Expr *Node
}

type BlockNode struct{ Stmts []*Node }
type IfNode struct{ Cond, Then, Else *Node }
type WhileNode struct{ Cond, Body *Node }
type ForNode struct {
	Var   string
	Count *Node
	Body  *Node
}
type PrintNode struct{ Args []*Node }
type ReturnNode struct{ Expr *Node }
type BreakNode struct{}
type ContinueNode struct{}
type AssignNode struct {
	Op    token.Type
	Name  string
	Value *Node
}

type ElementNode struct {
	Name     string
	Attrs    *hashmap.Map[*Attribute]
	States   *hashmap.Map[*StyleState]
	Children []*Node
}

// ComponentUseNode instantiates a function in element position.
type ComponentUseNode struct {
	Name string
	Args []*Node
}

type LayoutNode struct {
	Attrs    *hashmap.Map[*Attribute]
	Children []*Node
}

type ImportNode struct{ Path string }

type FuncDeclNode struct {
	Name   string
	Params []string
	Body   *Node
}

// ProgramNode is one parsed source file. Function redefinition
// overwrites, releasing the earlier declaration.
type ProgramNode struct {
	Path      string
	Imports   []*Node
	Functions *hashmap.Map[*Node]
	Layout    *Node
}

// --- Table specializations ---

func NewAttributeMap() *hashmap.Map[*Attribute] {
	return hashmap.NewFunc(hashmap.DefaultCapacity, destroyAttribute, printAttribute)
}

func NewStateMap() *hashmap.Map[*StyleState] {
	return hashmap.NewFunc(hashmap.DefaultCapacity, destroyState, printState)
}

func NewFunctionMap() *hashmap.Map[*Node] {
	return hashmap.NewFunc(hashmap.DefaultCapacity, destroyNode, printFuncDecl)
}

func destroyAttribute(a *Attribute) { a.Destroy() }
func destroyState(s *StyleState)    { s.Destroy() }
func destroyNode(n *Node)           { n.Destroy() }

func printAttribute(w io.Writer, a *Attribute) { fmt.Fprint(w, ExprString(a.Value)) }

func printState(w io.Writer, s *StyleState) {
	fmt.Fprintf(w, "state %s (%d attributes)", s.Name, s.Attrs.Len())
}

func printFuncDecl(w io.Writer, n *Node) {
	d := n.Data.(FuncDeclNode)
	fmt.Fprintf(w, "fn %s(%s)", d.Name, strings.Join(d.Params, ", "))
}

// --- Constructors ---

func newNode(tok token.Token, nodeType NodeType, data any) *Node {
	return &Node{Type: nodeType, Tok: tok, Data: data}
}

func NewNumber(tok token.Token, value int64) *Node {
	return newNode(tok, Number, NumberNode{Value: value})
}
func NewFloat(tok token.Token, value float64) *Node {
	return newNode(tok, FloatNumber, FloatNode{Value: value})
}
func NewString(tok token.Token, value string) *Node {
	return newNode(tok, String, StringNode{Value: value})
}
func NewBool(tok token.Token, value bool) *Node {
	return newNode(tok, Bool, BoolNode{Value: value})
}
func NewIdent(tok token.Token, name string) *Node {
	return newNode(tok, Ident, IdentNode{Name: name})
}
func NewList(tok token.Token, elems []*Node) *Node {
	return newNode(tok, List, ListNode{Elems: elems})
}
func NewBinaryOp(tok token.Token, op token.Type, left, right *Node) *Node {
	return newNode(tok, BinaryOp, BinaryOpNode{Op: op, Left: left, Right: right})
}
func NewUnaryOp(tok token.Token, op token.Type, expr *Node) *Node {
	return newNode(tok, UnaryOp, UnaryOpNode{Op: op, Expr: expr})
}
func NewPostfixOp(tok token.Token, op token.Type, expr *Node) *Node {
	return newNode(tok, PostfixOp, PostfixOpNode{Op: op, Expr: expr})
}
func NewBlock(tok token.Token, stmts []*Node) *Node {
	return newNode(tok, Block, BlockNode{Stmts: stmts})
}
func NewIf(tok token.Token, cond, then, els *Node) *Node {
	return newNode(tok, If, IfNode{Cond: cond, Then: then, Else: els})
}
func NewWhile(tok token.Token, cond, body *Node) *Node {
	return newNode(tok, While, WhileNode{Cond: cond, Body: body})
}
func NewFor(tok token.Token, name string, count, body *Node) *Node {
	return newNode(tok, For, ForNode{Var: name, Count: count, Body: body})
}
func NewPrint(tok token.Token, args []*Node) *Node {
	return newNode(tok, Print, PrintNode{Args: args})
}
func NewReturn(tok token.Token, expr *Node) *Node {
	return newNode(tok, Return, ReturnNode{Expr: expr})
}
func NewBreak(tok token.Token) *Node {
	return newNode(tok, Break, BreakNode{})
}
func NewContinue(tok token.Token) *Node {
	return newNode(tok, Continue, ContinueNode{})
}
func NewAssign(tok token.Token, op token.Type, name string, value *Node) *Node {
	return newNode(tok, Assign, AssignNode{Op: op, Name: name, Value: value})
}
func NewElement(tok token.Token, name string, attrs *hashmap.Map[*Attribute], states *hashmap.Map[*StyleState], children []*Node) *Node {
	return newNode(tok, Element, ElementNode{Name: name, Attrs: attrs, States: states, Children: children})
}
func NewComponentUse(tok token.Token, name string, args []*Node) *Node {
	return newNode(tok, ComponentUse, ComponentUseNode{Name: name, Args: args})
}
func NewLayout(tok token.Token, attrs *hashmap.Map[*Attribute], children []*Node) *Node {
	return newNode(tok, Layout, LayoutNode{Attrs: attrs, Children: children})
}
func NewImport(tok token.Token, path string) *Node {
	return newNode(tok, Import, ImportNode{Path: path})
}
func NewFuncDecl(tok token.Token, name string, params []string, body *Node) *Node {
	return newNode(tok, FuncDecl, FuncDeclNode{Name: name, Params: params, Body: body})
}
func NewProgram(tok token.Token, path string) *Node {
	return newNode(tok, Program, ProgramNode{Path: path, Functions: NewFunctionMap()})
}

// Destroy releases the node and everything it owns.
func (n *Node) Destroy() {
	if n == nil || n.Data == nil {
		return
	}
	switch d := n.Data.(type) {
	case ListNode:
		destroyAll(d.Elems)
	case BinaryOpNode:
		d.Left.Destroy()
		d.Right.Destroy()
	case UnaryOpNode:
		d.Expr.Destroy()
	case PostfixOpNode:
		d.Expr.Destroy()
	case BlockNode:
		destroyAll(d.Stmts)
	case IfNode:
		d.Cond.Destroy()
		d.Then.Destroy()
		d.Else.Destroy()
	case WhileNode:
		d.Cond.Destroy()
		d.Body.Destroy()
	case ForNode:
		d.Count.Destroy()
		d.Body.Destroy()
	case PrintNode:
		destroyAll(d.Args)
	case ReturnNode:
		d.Expr.Destroy()
	case AssignNode:
		d.Value.Destroy()
	case ElementNode:
		d.Attrs.Destroy()
		d.States.Destroy()
		destroyAll(d.Children)
	case ComponentUseNode:
		destroyAll(d.Args)
	case LayoutNode:
		d.Attrs.Destroy()
		destroyAll(d.Children)
	case FuncDeclNode:
		d.Body.Destroy()
	case ProgramNode:
		destroyAll(d.Imports)
		d.Functions.Destroy()
		d.Layout.Destroy()
	}
	n.Data = nil
}

func destroyAll(nodes []*Node) {
	for _, n := range nodes {
		n.Destroy()
	}
}

func (a *Attribute) Destroy() {
	if a == nil {
		return
	}
	a.Value.Destroy()
	a.Value = nil
}

func (s *StyleState) Destroy() {
	if s == nil {
		return
	}
	s.Attrs.Destroy()
}

// ExprString renders an expression in compact source-like form.
func ExprString(n *Node) string {
	if n == nil || n.Data == nil {
		return "<nil>"
	}
	switch d := n.Data.(type) {
	case NumberNode:
		return strconv.FormatInt(d.Value, 10)
	case FloatNode:
		return strconv.FormatFloat(d.Value, 'g', -1, 64)
	case StringNode:
		return strconv.Quote(d.Value)
	case BoolNode:
		return strconv.FormatBool(d.Value)
	case IdentNode:
		return d.Name
	case ListNode:
		parts := make([]string, len(d.Elems))
		for i, e := range d.Elems {
			parts[i] = ExprString(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case BinaryOpNode:
		return fmt.Sprintf("(%s %s %s)", ExprString(d.Left), d.Op.Text(), ExprString(d.Right))
	case UnaryOpNode:
		return fmt.Sprintf("%s%s", d.Op.Text(), ExprString(d.Expr))
	case PostfixOpNode:
		return fmt.Sprintf("%s%s", ExprString(d.Expr), d.Op.Text())
	}
	return fmt.Sprintf("<node %d>", int(n.Type))
}

// Dump writes an indented outline of the tree.
func (n *Node) Dump(w io.Writer) {
	n.dump(w, 0)
}

func (n *Node) dump(w io.Writer, depth int) {
	if n == nil || n.Data == nil {
		return
	}
	pad := strings.Repeat("  ", depth)
	switch d := n.Data.(type) {
	case ProgramNode:
		fmt.Fprintf(w, "%sprogram %q\n", pad, d.Path)
		for _, imp := range d.Imports {
			imp.dump(w, depth+1)
		}
		dumpFunctions(w, d.Functions, depth+1)
		d.Layout.dump(w, depth+1)
	case ImportNode:
		fmt.Fprintf(w, "%simport %q\n", pad, d.Path)
	case FuncDeclNode:
		fmt.Fprintf(w, "%sfn %s(%s)\n", pad, d.Name, strings.Join(d.Params, ", "))
		d.Body.dump(w, depth+1)
	case LayoutNode:
		fmt.Fprintf(w, "%slayout\n", pad)
		dumpAttrs(w, d.Attrs, depth+1)
		for _, c := range d.Children {
			c.dump(w, depth+1)
		}
	case ElementNode:
		fmt.Fprintf(w, "%selement %s\n", pad, d.Name)
		dumpAttrs(w, d.Attrs, depth+1)
		dumpStates(w, d.States, depth+1)
		for _, c := range d.Children {
			c.dump(w, depth+1)
		}
	case ComponentUseNode:
		args := make([]string, len(d.Args))
		for i, a := range d.Args {
			args[i] = ExprString(a)
		}
		fmt.Fprintf(w, "%suse %s(%s)\n", pad, d.Name, strings.Join(args, ", "))
	case BlockNode:
		fmt.Fprintf(w, "%sblock\n", pad)
		for _, s := range d.Stmts {
			s.dump(w, depth+1)
		}
	case IfNode:
		fmt.Fprintf(w, "%sif %s\n", pad, ExprString(d.Cond))
		d.Then.dump(w, depth+1)
		if d.Else != nil {
			fmt.Fprintf(w, "%selse\n", pad)
			d.Else.dump(w, depth+1)
		}
	case WhileNode:
		fmt.Fprintf(w, "%swhile %s\n", pad, ExprString(d.Cond))
		d.Body.dump(w, depth+1)
	case ForNode:
		fmt.Fprintf(w, "%sfor %s: %s\n", pad, d.Var, ExprString(d.Count))
		d.Body.dump(w, depth+1)
	case PrintNode:
		args := make([]string, len(d.Args))
		for i, a := range d.Args {
			args[i] = ExprString(a)
		}
		fmt.Fprintf(w, "%sprint %s\n", pad, strings.Join(args, ", "))
	case ReturnNode:
		if d.Expr != nil {
			fmt.Fprintf(w, "%sreturn %s\n", pad, ExprString(d.Expr))
		} else {
			fmt.Fprintf(w, "%sreturn\n", pad)
		}
	case BreakNode:
		fmt.Fprintf(w, "%sbreak\n", pad)
	case ContinueNode:
		fmt.Fprintf(w, "%scontinue\n", pad)
	case AssignNode:
		fmt.Fprintf(w, "%s%s %s %s\n", pad, d.Name, d.Op.Text(), ExprString(d.Value))
	default:
		fmt.Fprintf(w, "%s%s\n", pad, ExprString(n))
	}
}

func dumpAttrs(w io.Writer, attrs *hashmap.Map[*Attribute], depth int) {
	if attrs == nil || attrs.Len() == 0 {
		return
	}
	pad := strings.Repeat("  ", depth)
	for _, key := range sortedKeys(attrs.Keys()) {
		a, _ := attrs.Get(key)
		fmt.Fprintf(w, "%s%s: ", pad, key)
		printAttribute(w, a)
		fmt.Fprintln(w)
	}
}

func dumpStates(w io.Writer, states *hashmap.Map[*StyleState], depth int) {
	if states == nil || states.Len() == 0 {
		return
	}
	pad := strings.Repeat("  ", depth)
	for _, key := range sortedKeys(states.Keys()) {
		s, _ := states.Get(key)
		fmt.Fprintf(w, "%sstate %s\n", pad, key)
		dumpAttrs(w, s.Attrs, depth+1)
	}
}

func dumpFunctions(w io.Writer, funcs *hashmap.Map[*Node], depth int) {
	if funcs == nil {
		return
	}
	for _, key := range sortedKeys(funcs.Keys()) {
		fn, _ := funcs.Get(key)
		fn.dump(w, depth)
	}
}

func sortedKeys(keys []string) []string {
	sort.Strings(keys)
	return keys
}
