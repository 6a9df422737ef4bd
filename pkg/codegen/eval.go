package codegen

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/AmirTallap/Salam/pkg/ast"
	"github.com/AmirTallap/Salam/pkg/hashmap"
	"github.com/AmirTallap/Salam/pkg/token"
)

type valueKind int

const (
	valInt valueKind = iota
	valFloat
	valString
	valBool
	valList
)

var kindNames = [...]string{"int", "float", "string", "bool", "list"}

func (k valueKind) String() string { return kindNames[k] }

// Value is the result of evaluating an attribute expression or a
// function-body statement at generation time.
type Value struct {
	Kind  valueKind
	Int   int64
	Float float64
	Str   string
	Bool  bool
	List  []Value
}

func intVal(v int64) Value     { return Value{Kind: valInt, Int: v} }
func floatVal(v float64) Value { return Value{Kind: valFloat, Float: v} }
func stringVal(v string) Value { return Value{Kind: valString, Str: v} }
func boolVal(v bool) Value     { return Value{Kind: valBool, Bool: v} }
func listVal(v []Value) Value  { return Value{Kind: valList, List: v} }

// Text renders the value the way print and text content show it.
func (v Value) Text() string {
	switch v.Kind {
	case valInt:
		return strconv.FormatInt(v.Int, 10)
	case valFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case valString:
		return v.Str
	case valBool:
		return strconv.FormatBool(v.Bool)
	case valList:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			parts[i] = e.Text()
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

func (v Value) isNumeric() bool { return v.Kind == valInt || v.Kind == valFloat }

func (v Value) asFloat() float64 {
	if v.Kind == valInt {
		return float64(v.Int)
	}
	return v.Float
}

// scope is one frame of the variable environment. Lookups walk outward;
// assignment updates the frame that defines the name and falls back to
// defining in the innermost one.
type scope struct {
	vars   *hashmap.Map[Value]
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: hashmap.New[Value](hashmap.DefaultCapacity), parent: parent}
}

func (s *scope) lookup(name string) (Value, bool) {
	for f := s; f != nil; f = f.parent {
		if v, ok := f.vars.Get(name); ok {
			return v, true
		}
	}
	return Value{}, false
}

func (s *scope) assign(name string, v Value) {
	for f := s; f != nil; f = f.parent {
		if f.vars.Has(name) {
			f.vars.Put(name, v)
			return
		}
	}
	s.vars.Put(name, v)
}

func (ctx *Context) evalExpr(node *ast.Node, env *scope) (Value, error) {
	switch d := node.Data.(type) {
	case ast.NumberNode:
		return intVal(d.Value), nil
	case ast.FloatNode:
		return floatVal(d.Value), nil
	case ast.StringNode:
		return stringVal(d.Value), nil
	case ast.BoolNode:
		return boolVal(d.Value), nil
	case ast.IdentNode:
		if v, ok := env.lookup(d.Name); ok {
			return v, nil
		}
		return Value{}, ctx.errAt(node.Tok, "undefined name %q", d.Name)
	case ast.ListNode:
		elems := make([]Value, len(d.Elems))
		for i, e := range d.Elems {
			v, err := ctx.evalExpr(e, env)
			if err != nil {
				return Value{}, err
			}
			elems[i] = v
		}
		return listVal(elems), nil
	case ast.BinaryOpNode:
		return ctx.evalBinary(node.Tok, d, env)
	case ast.UnaryOpNode:
		return ctx.evalUnary(node.Tok, d, env)
	case ast.PostfixOpNode:
		return ctx.evalStep(node.Tok, d.Op, d.Expr, env, false)
	}
	return Value{}, ctx.errAt(node.Tok, "expression cannot be evaluated")
}

func (ctx *Context) evalBinary(tok token.Token, d ast.BinaryOpNode, env *scope) (Value, error) {
	// The logical operators evaluate their right side lazily.
	if d.Op == token.AndAnd || d.Op == token.OrOr {
		left, err := ctx.evalExpr(d.Left, env)
		if err != nil {
			return Value{}, err
		}
		if left.Kind != valBool {
			return Value{}, ctx.errAt(tok, "operator '%s' needs bool operands, got %s", d.Op.Text(), left.Kind)
		}
		if d.Op == token.AndAnd && !left.Bool {
			return boolVal(false), nil
		}
		if d.Op == token.OrOr && left.Bool {
			return boolVal(true), nil
		}
		right, err := ctx.evalExpr(d.Right, env)
		if err != nil {
			return Value{}, err
		}
		if right.Kind != valBool {
			return Value{}, ctx.errAt(tok, "operator '%s' needs bool operands, got %s", d.Op.Text(), right.Kind)
		}
		return boolVal(right.Bool), nil
	}

	left, err := ctx.evalExpr(d.Left, env)
	if err != nil {
		return Value{}, err
	}
	right, err := ctx.evalExpr(d.Right, env)
	if err != nil {
		return Value{}, err
	}

	switch d.Op {
	case token.Plus:
		if left.Kind == valString && right.Kind == valString {
			return stringVal(left.Str + right.Str), nil
		}
		if left.Kind == valList && right.Kind == valList {
			return listVal(append(append([]Value{}, left.List...), right.List...)), nil
		}
		return ctx.arith(tok, d.Op, left, right)
	case token.Star:
		if left.Kind == valString || right.Kind == valString {
			return ctx.repeatString(tok, left, right)
		}
		return ctx.arith(tok, d.Op, left, right)
	case token.Minus, token.Slash, token.Rem, token.Pow:
		return ctx.arith(tok, d.Op, left, right)
	case token.Shl, token.Shr, token.BitAnd, token.BitOr:
		return ctx.intOp(tok, d.Op, left, right)
	case token.EqEq:
		eq, err := ctx.valuesEqual(tok, left, right)
		if err != nil {
			return Value{}, err
		}
		return boolVal(eq), nil
	case token.Neq:
		eq, err := ctx.valuesEqual(tok, left, right)
		if err != nil {
			return Value{}, err
		}
		return boolVal(!eq), nil
	case token.Lt, token.Gt, token.Lte, token.Gte:
		return ctx.compare(tok, d.Op, left, right)
	}
	return Value{}, ctx.errAt(tok, "operator '%s' cannot appear here", d.Op.Text())
}

func (ctx *Context) arith(tok token.Token, op token.Type, left, right Value) (Value, error) {
	if !left.isNumeric() || !right.isNumeric() {
		return Value{}, ctx.errAt(tok, "operator '%s' needs numeric operands, got %s and %s", op.Text(), left.Kind, right.Kind)
	}

	if left.Kind == valInt && right.Kind == valInt {
		a, b := left.Int, right.Int
		switch op {
		case token.Plus:
			return intVal(a + b), nil
		case token.Minus:
			return intVal(a - b), nil
		case token.Star:
			return intVal(a * b), nil
		case token.Slash:
			if b == 0 {
				return Value{}, ctx.errAt(tok, "division by zero")
			}
			return intVal(a / b), nil
		case token.Rem:
			if b == 0 {
				return Value{}, ctx.errAt(tok, "division by zero")
			}
			return intVal(a % b), nil
		case token.Pow:
			if b >= 0 {
				return intVal(intPow(a, b)), nil
			}
			return floatVal(math.Pow(float64(a), float64(b))), nil
		}
	}

	a, b := left.asFloat(), right.asFloat()
	switch op {
	case token.Plus:
		return floatVal(a + b), nil
	case token.Minus:
		return floatVal(a - b), nil
	case token.Star:
		return floatVal(a * b), nil
	case token.Slash:
		if b == 0 {
			return Value{}, ctx.errAt(tok, "division by zero")
		}
		return floatVal(a / b), nil
	case token.Rem:
		return Value{}, ctx.errAt(tok, "operator '%%' needs int operands")
	case token.Pow:
		return floatVal(math.Pow(a, b)), nil
	}
	return Value{}, ctx.errAt(tok, "operator '%s' cannot appear here", op.Text())
}

func (ctx *Context) repeatString(tok token.Token, left, right Value) (Value, error) {
	s, n := left, right
	if n.Kind == valString {
		s, n = right, left
	}
	if s.Kind != valString || n.Kind != valInt {
		return Value{}, ctx.errAt(tok, "operator '*' needs numeric operands or string and int, got %s and %s", left.Kind, right.Kind)
	}
	if n.Int < 0 {
		return Value{}, ctx.errAt(tok, "string repeat count %d is negative", n.Int)
	}
	return stringVal(strings.Repeat(s.Str, int(n.Int))), nil
}

func intPow(base, exp int64) int64 {
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}

func (ctx *Context) intOp(tok token.Token, op token.Type, left, right Value) (Value, error) {
	if left.Kind != valInt || right.Kind != valInt {
		return Value{}, ctx.errAt(tok, "operator '%s' needs int operands, got %s and %s", op.Text(), left.Kind, right.Kind)
	}
	a, b := left.Int, right.Int
	switch op {
	case token.Shl, token.Shr:
		if b < 0 {
			return Value{}, ctx.errAt(tok, "negative shift count %d", b)
		}
		if op == token.Shl {
			return intVal(a << uint(b)), nil
		}
		return intVal(a >> uint(b)), nil
	case token.BitAnd:
		return intVal(a & b), nil
	case token.BitOr:
		return intVal(a | b), nil
	}
	return Value{}, ctx.errAt(tok, "operator '%s' cannot appear here", op.Text())
}

func (ctx *Context) valuesEqual(tok token.Token, left, right Value) (bool, error) {
	if left.isNumeric() && right.isNumeric() {
		return left.asFloat() == right.asFloat(), nil
	}
	if left.Kind != right.Kind {
		return false, ctx.errAt(tok, "cannot compare %s and %s", left.Kind, right.Kind)
	}
	switch left.Kind {
	case valString:
		return left.Str == right.Str, nil
	case valBool:
		return left.Bool == right.Bool, nil
	case valList:
		if len(left.List) != len(right.List) {
			return false, nil
		}
		for i := range left.List {
			eq, err := ctx.valuesEqual(tok, left.List[i], right.List[i])
			if err != nil || !eq {
				return false, err
			}
		}
		return true, nil
	}
	return false, nil
}

func (ctx *Context) compare(tok token.Token, op token.Type, left, right Value) (Value, error) {
	var cmp int
	switch {
	case left.isNumeric() && right.isNumeric():
		a, b := left.asFloat(), right.asFloat()
		switch {
		case a < b:
			cmp = -1
		case a > b:
			cmp = 1
		}
	case left.Kind == valString && right.Kind == valString:
		cmp = strings.Compare(left.Str, right.Str)
	default:
		return Value{}, ctx.errAt(tok, "cannot order %s and %s", left.Kind, right.Kind)
	}

	switch op {
	case token.Lt:
		return boolVal(cmp < 0), nil
	case token.Gt:
		return boolVal(cmp > 0), nil
	case token.Lte:
		return boolVal(cmp <= 0), nil
	}
	return boolVal(cmp >= 0), nil
}

func (ctx *Context) evalUnary(tok token.Token, d ast.UnaryOpNode, env *scope) (Value, error) {
	if d.Op == token.Inc || d.Op == token.Dec {
		return ctx.evalStep(tok, d.Op, d.Expr, env, true)
	}

	v, err := ctx.evalExpr(d.Expr, env)
	if err != nil {
		return Value{}, err
	}
	switch d.Op {
	case token.Not:
		if v.Kind != valBool {
			return Value{}, ctx.errAt(tok, "operator '!' needs a bool operand, got %s", v.Kind)
		}
		return boolVal(!v.Bool), nil
	case token.Minus:
		switch v.Kind {
		case valInt:
			return intVal(-v.Int), nil
		case valFloat:
			return floatVal(-v.Float), nil
		}
		return Value{}, ctx.errAt(tok, "operator '-' needs a numeric operand, got %s", v.Kind)
	}
	return Value{}, ctx.errAt(tok, "operator '%s' cannot appear here", d.Op.Text())
}

// evalStep applies ++ or -- to a name. Prefix yields the stepped value,
// postfix the value before the step.
func (ctx *Context) evalStep(tok token.Token, op token.Type, target *ast.Node, env *scope, prefix bool) (Value, error) {
	name := target.Data.(ast.IdentNode).Name
	v, ok := env.lookup(name)
	if !ok {
		return Value{}, ctx.errAt(tok, "undefined name %q", name)
	}

	var stepped Value
	switch v.Kind {
	case valInt:
		if op == token.Inc {
			stepped = intVal(v.Int + 1)
		} else {
			stepped = intVal(v.Int - 1)
		}
	case valFloat:
		if op == token.Inc {
			stepped = floatVal(v.Float + 1)
		} else {
			stepped = floatVal(v.Float - 1)
		}
	default:
		return Value{}, ctx.errAt(tok, "operator '%s' needs a numeric name, got %s", op.Text(), v.Kind)
	}

	env.assign(name, stepped)
	if prefix {
		return stepped, nil
	}
	return v, nil
}

// control tells a statement runner how the block it just ran ended.
type control int

const (
	ctrlNone control = iota
	ctrlBreak
	ctrlContinue
	ctrlReturn
)

// maxLoopSteps bounds while and for bodies so a source-level infinite
// loop cannot hang the build.
const maxLoopSteps = 1 << 20

func (ctx *Context) execStmts(stmts []*ast.Node, env *scope, sb *strings.Builder, depth int) (control, error) {
	for _, stmt := range stmts {
		c, err := ctx.execStmt(stmt, env, sb, depth)
		if err != nil {
			return ctrlNone, err
		}
		if c != ctrlNone {
			return c, nil
		}
	}
	return ctrlNone, nil
}

func (ctx *Context) execStmt(stmt *ast.Node, env *scope, sb *strings.Builder, depth int) (control, error) {
	switch d := stmt.Data.(type) {
	case ast.AssignNode:
		return ctrlNone, ctx.execAssign(stmt.Tok, d, env)

	case ast.PostfixOpNode:
		_, err := ctx.evalStep(stmt.Tok, d.Op, d.Expr, env, false)
		return ctrlNone, err

	case ast.IfNode:
		cond, err := ctx.evalExpr(d.Cond, env)
		if err != nil {
			return ctrlNone, err
		}
		if cond.Kind != valBool {
			return ctrlNone, ctx.errAt(stmt.Tok, "if condition must be bool, got %s", cond.Kind)
		}
		if cond.Bool {
			return ctx.execBlock(d.Then, env, sb, depth)
		}
		if d.Else != nil {
			return ctx.execBlock(d.Else, env, sb, depth)
		}
		return ctrlNone, nil

	case ast.WhileNode:
		for steps := 0; ; steps++ {
			if steps >= maxLoopSteps {
				return ctrlNone, ctx.errAt(stmt.Tok, "while loop ran past %d iterations", maxLoopSteps)
			}
			cond, err := ctx.evalExpr(d.Cond, env)
			if err != nil {
				return ctrlNone, err
			}
			if cond.Kind != valBool {
				return ctrlNone, ctx.errAt(stmt.Tok, "while condition must be bool, got %s", cond.Kind)
			}
			if !cond.Bool {
				return ctrlNone, nil
			}
			c, err := ctx.execBlock(d.Body, env, sb, depth)
			if err != nil {
				return ctrlNone, err
			}
			if c == ctrlBreak {
				return ctrlNone, nil
			}
			if c == ctrlReturn {
				return c, nil
			}
		}

	case ast.ForNode:
		count, err := ctx.evalExpr(d.Count, env)
		if err != nil {
			return ctrlNone, err
		}
		if count.Kind != valInt {
			return ctrlNone, ctx.errAt(stmt.Tok, "for count must be int, got %s", count.Kind)
		}
		if count.Int > maxLoopSteps {
			return ctrlNone, ctx.errAt(stmt.Tok, "for count %d is past the %d iteration limit", count.Int, maxLoopSteps)
		}
		loop := newScope(env)
		for i := int64(0); i < count.Int; i++ {
			loop.vars.Put(d.Var, intVal(i))
			c, err := ctx.execBlock(d.Body, loop, sb, depth)
			if err != nil {
				return ctrlNone, err
			}
			if c == ctrlBreak {
				break
			}
			if c == ctrlReturn {
				return c, nil
			}
		}
		return ctrlNone, nil

	case ast.PrintNode:
		parts := make([]string, len(d.Args))
		for i, arg := range d.Args {
			v, err := ctx.evalExpr(arg, env)
			if err != nil {
				return ctrlNone, err
			}
			parts[i] = v.Text()
		}
		fmt.Fprintln(ctx.printW, strings.Join(parts, " "))
		return ctrlNone, nil

	case ast.ReturnNode:
		if d.Expr != nil {
			if _, err := ctx.evalExpr(d.Expr, env); err != nil {
				return ctrlNone, err
			}
		}
		return ctrlReturn, nil

	case ast.BreakNode:
		return ctrlBreak, nil

	case ast.ContinueNode:
		return ctrlContinue, nil

	case ast.ElementNode:
		return ctrlNone, ctx.renderElement(stmt, env, sb, depth)

	case ast.ComponentUseNode:
		return ctrlNone, ctx.expandComponent(stmt, env, sb, depth)
	}
	return ctrlNone, ctx.errAt(stmt.Tok, "statement cannot be executed")
}

func (ctx *Context) execBlock(block *ast.Node, env *scope, sb *strings.Builder, depth int) (control, error) {
	return ctx.execStmts(block.Data.(ast.BlockNode).Stmts, newScope(env), sb, depth)
}

func (ctx *Context) execAssign(tok token.Token, d ast.AssignNode, env *scope) error {
	value, err := ctx.evalExpr(d.Value, env)
	if err != nil {
		return err
	}

	if d.Op == token.Eq {
		env.assign(d.Name, value)
		return nil
	}

	// <<= and >>= shift the existing binding in place.
	old, ok := env.lookup(d.Name)
	if !ok {
		return ctx.errAt(tok, "undefined name %q", d.Name)
	}
	op := token.Shl
	if d.Op == token.ShrEq {
		op = token.Shr
	}
	shifted, err := ctx.intOp(tok, op, old, value)
	if err != nil {
		return err
	}
	env.assign(d.Name, shifted)
	return nil
}
