package jsmini

import (
	"errors"
	"fmt"
	"math"
)

// DefaultMaxSteps bounds the work a single Run may do.
const DefaultMaxSteps = 2_000_000

const maxCallDepth = 256

// ErrStepBudget is returned when a program exceeds its step budget.
var ErrStepBudget = errors.New("jsmini: step budget exhausted")

// ErrCallDepth is returned when calls nest deeper than the interpreter allows.
var ErrCallDepth = errors.New("jsmini: call depth exceeded")

// Exception is a value thrown by the program and not caught.
type Exception struct {
	Value Value
}

func (e *Exception) Error() string {
	return "jsmini: uncaught exception: " + ToString(e.Value)
}

func throwf(format string, args ...any) error {
	return &Exception{Value: fmt.Sprintf(format, args...)}
}

type scope struct {
	vars   map[string]Value
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: make(map[string]Value), parent: parent}
}

func (s *scope) lookup(name string) (*scope, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if _, ok := sc.vars[name]; ok {
			return sc, true
		}
	}
	return nil, false
}

// Interpreter runs programs written in the supported subset. It holds no
// state between Run calls other than its options.
type Interpreter struct {
	maxSteps int
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithMaxSteps sets the step budget for each Run.
func WithMaxSteps(n int) Option {
	return func(in *Interpreter) {
		if n > 0 {
			in.maxSteps = n
		}
	}
}

// New returns an Interpreter.
func New(opts ...Option) *Interpreter {
	in := &Interpreter{maxSteps: DefaultMaxSteps}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Run executes src with bindings predeclared in the global scope and
// returns the value of the last top-level expression statement.
func (in *Interpreter) Run(src string, bindings map[string]Value) (Value, error) {
	prog, err := parse(src)
	if err != nil {
		return nil, err
	}
	global := newScope(nil)
	installBuiltins(global)
	for k, v := range bindings {
		global.vars[k] = v
	}
	m := &machine{global: global, budget: in.maxSteps}
	return m.runProgram(prog)
}

type completion int

const (
	normal completion = iota
	returned
	broke
	continued
)

type machine struct {
	global *scope
	budget int
	depth  int
	ret    Value
}

func (m *machine) step() error {
	m.budget--
	if m.budget < 0 {
		return ErrStepBudget
	}
	return nil
}

func (m *machine) runProgram(prog []stmt) (Value, error) {
	hoist(prog, m.global)
	var last Value = Undefined
	for _, s := range prog {
		if es, ok := s.(*exprStmt); ok {
			v, err := m.eval(es.x, m.global)
			if err != nil {
				return nil, err
			}
			last = v
			continue
		}
		c, err := m.exec(s, m.global)
		if err != nil {
			return nil, err
		}
		if c != normal {
			return nil, throwf("illegal %s at top level", completionName(c))
		}
	}
	return last, nil
}

func completionName(c completion) string {
	switch c {
	case returned:
		return "return"
	case broke:
		return "break"
	case continued:
		return "continue"
	}
	return "completion"
}

// hoist declares var names and function declarations in sc before the
// body runs. It does not descend into nested functions.
func hoist(list []stmt, sc *scope) {
	for _, s := range list {
		switch s := s.(type) {
		case *varDecl:
			for _, name := range s.names {
				if _, ok := sc.vars[name]; !ok {
					sc.vars[name] = Undefined
				}
			}
		case *funcDecl:
			sc.vars[s.fn.name] = &closure{fn: s.fn, env: sc}
		case *blockStmt:
			hoist(s.list, sc)
		case *ifStmt:
			hoist(nonNil(s.then, s.alt), sc)
		case *forStmt:
			hoist(nonNil(s.init, s.body), sc)
		case *whileStmt:
			hoist([]stmt{s.body}, sc)
		case *tryStmt:
			for _, b := range []*blockStmt{s.body, s.catch, s.finally} {
				if b != nil {
					hoist(b.list, sc)
				}
			}
		case *switchStmt:
			for _, c := range s.cases {
				hoist(c.body, sc)
			}
		}
	}
}

func nonNil(list ...stmt) []stmt {
	out := list[:0:0]
	for _, s := range list {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m *machine) execList(list []stmt, sc *scope) (completion, error) {
	for _, s := range list {
		c, err := m.exec(s, sc)
		if err != nil || c != normal {
			return c, err
		}
	}
	return normal, nil
}

func (m *machine) exec(s stmt, sc *scope) (completion, error) {
	if err := m.step(); err != nil {
		return normal, err
	}
	switch s := s.(type) {
	case *emptyStmt, *funcDecl:
		return normal, nil
	case *exprStmt:
		_, err := m.eval(s.x, sc)
		return normal, err
	case *varDecl:
		for i, name := range s.names {
			if s.inits[i] == nil {
				continue
			}
			v, err := m.eval(s.inits[i], sc)
			if err != nil {
				return normal, err
			}
			m.assign(sc, name, v)
		}
		return normal, nil
	case *returnStmt:
		m.ret = Undefined
		if s.x != nil {
			v, err := m.eval(s.x, sc)
			if err != nil {
				return normal, err
			}
			m.ret = v
		}
		return returned, nil
	case *blockStmt:
		return m.execList(s.list, sc)
	case *ifStmt:
		cond, err := m.eval(s.cond, sc)
		if err != nil {
			return normal, err
		}
		if toBool(cond) {
			return m.exec(s.then, sc)
		}
		if s.alt != nil {
			return m.exec(s.alt, sc)
		}
		return normal, nil
	case *forStmt:
		return m.execFor(s, sc)
	case *whileStmt:
		return m.execWhile(s, sc)
	case *branchStmt:
		if s.brk {
			return broke, nil
		}
		return continued, nil
	case *throwStmt:
		v, err := m.eval(s.x, sc)
		if err != nil {
			return normal, err
		}
		return normal, &Exception{Value: v}
	case *tryStmt:
		return m.execTry(s, sc)
	case *switchStmt:
		return m.execSwitch(s, sc)
	}
	return normal, throwf("unsupported statement %T", s)
}

func (m *machine) execFor(s *forStmt, sc *scope) (completion, error) {
	if s.init != nil {
		if _, err := m.exec(s.init, sc); err != nil {
			return normal, err
		}
	}
	for {
		if s.cond != nil {
			cond, err := m.eval(s.cond, sc)
			if err != nil {
				return normal, err
			}
			if !toBool(cond) {
				return normal, nil
			}
		}
		c, err := m.exec(s.body, sc)
		if err != nil {
			return normal, err
		}
		switch c {
		case returned:
			return c, nil
		case broke:
			return normal, nil
		}
		if s.post != nil {
			if _, err := m.eval(s.post, sc); err != nil {
				return normal, err
			}
		}
	}
}

func (m *machine) execWhile(s *whileStmt, sc *scope) (completion, error) {
	first := s.do
	for {
		if !first {
			cond, err := m.eval(s.cond, sc)
			if err != nil {
				return normal, err
			}
			if !toBool(cond) {
				return normal, nil
			}
		}
		first = false
		c, err := m.exec(s.body, sc)
		if err != nil {
			return normal, err
		}
		switch c {
		case returned:
			return c, nil
		case broke:
			return normal, nil
		}
	}
}

// catchable reports whether err may be handled by a catch clause.
// Budget and depth limits always propagate.
func catchable(err error) (*Exception, bool) {
	var ex *Exception
	if errors.As(err, &ex) {
		return ex, true
	}
	return nil, false
}

func (m *machine) execTry(s *tryStmt, sc *scope) (completion, error) {
	c, err := m.exec(s.body, sc)
	if err != nil && s.catch != nil {
		if ex, ok := catchable(err); ok {
			catchScope := sc
			if s.param != "" {
				catchScope = newScope(sc)
				catchScope.vars[s.param] = ex.Value
			}
			c, err = m.exec(s.catch, catchScope)
		}
	}
	if s.finally != nil {
		savedRet := m.ret
		fc, ferr := m.exec(s.finally, sc)
		if ferr != nil || fc != normal {
			return fc, ferr
		}
		m.ret = savedRet
	}
	return c, err
}

func (m *machine) execSwitch(s *switchStmt, sc *scope) (completion, error) {
	tag, err := m.eval(s.tag, sc)
	if err != nil {
		return normal, err
	}
	match := -1
	for i, c := range s.cases {
		if c.test == nil {
			continue
		}
		v, err := m.eval(c.test, sc)
		if err != nil {
			return normal, err
		}
		if strictEquals(tag, v) {
			match = i
			break
		}
	}
	if match < 0 {
		for i, c := range s.cases {
			if c.test == nil {
				match = i
				break
			}
		}
	}
	if match < 0 {
		return normal, nil
	}
	for _, c := range s.cases[match:] {
		comp, err := m.execList(c.body, sc)
		if err != nil {
			return normal, err
		}
		switch comp {
		case broke:
			return normal, nil
		case returned, continued:
			return comp, nil
		}
	}
	return normal, nil
}

// assign writes to the nearest declaration of name, or the global scope.
func (m *machine) assign(sc *scope, name string, v Value) {
	if owner, ok := sc.lookup(name); ok {
		owner.vars[name] = v
		return
	}
	m.global.vars[name] = v
}

func (m *machine) eval(x expr, sc *scope) (Value, error) {
	if err := m.step(); err != nil {
		return nil, err
	}
	switch x := x.(type) {
	case *numLit:
		return x.v, nil
	case *strLit:
		return x.v, nil
	case *boolLit:
		return x.v, nil
	case *nullLit:
		return nil, nil
	case *ident:
		if owner, ok := sc.lookup(x.name); ok {
			return owner.vars[x.name], nil
		}
		if x.name == "undefined" {
			return Undefined, nil
		}
		return nil, throwf("ReferenceError: %s is not defined", x.name)
	case *arrayLit:
		arr := &Array{Elems: make([]Value, 0, len(x.elems))}
		for _, e := range x.elems {
			v, err := m.eval(e, sc)
			if err != nil {
				return nil, err
			}
			arr.Elems = append(arr.Elems, v)
		}
		return arr, nil
	case *objectLit:
		obj := NewObject()
		for i, k := range x.keys {
			v, err := m.eval(x.values[i], sc)
			if err != nil {
				return nil, err
			}
			obj.Set(k, v)
		}
		return obj, nil
	case *funcLit:
		return &closure{fn: x, env: sc}, nil
	case *memberExpr:
		obj, err := m.eval(x.x, sc)
		if err != nil {
			return nil, err
		}
		return getMember(obj, x.name)
	case *indexExpr:
		obj, err := m.eval(x.x, sc)
		if err != nil {
			return nil, err
		}
		key, err := m.eval(x.index, sc)
		if err != nil {
			return nil, err
		}
		return getIndex(obj, key)
	case *callExpr:
		return m.evalCall(x, sc)
	case *unaryExpr:
		return m.evalUnary(x, sc)
	case *updateExpr:
		return m.evalUpdate(x, sc)
	case *binaryExpr:
		l, err := m.eval(x.l, sc)
		if err != nil {
			return nil, err
		}
		r, err := m.eval(x.r, sc)
		if err != nil {
			return nil, err
		}
		return binaryOp(x.op, l, r)
	case *logicalExpr:
		l, err := m.eval(x.l, sc)
		if err != nil {
			return nil, err
		}
		if (x.op == "&&") != toBool(l) {
			return l, nil
		}
		return m.eval(x.r, sc)
	case *condExpr:
		test, err := m.eval(x.test, sc)
		if err != nil {
			return nil, err
		}
		if toBool(test) {
			return m.eval(x.then, sc)
		}
		return m.eval(x.alt, sc)
	case *assignExpr:
		return m.evalAssign(x, sc)
	case *seqExpr:
		var v Value = Undefined
		for _, e := range x.list {
			var err error
			if v, err = m.eval(e, sc); err != nil {
				return nil, err
			}
		}
		return v, nil
	}
	return nil, throwf("unsupported expression %T", x)
}

func (m *machine) evalCall(x *callExpr, sc *scope) (Value, error) {
	fn, err := m.eval(x.fn, sc)
	if err != nil {
		return nil, err
	}
	args := make([]Value, len(x.args))
	for i, a := range x.args {
		if args[i], err = m.eval(a, sc); err != nil {
			return nil, err
		}
	}
	return m.call(fn, args)
}

func (m *machine) call(fn Value, args []Value) (Value, error) {
	switch f := fn.(type) {
	case Native:
		return f(args)
	case *closure:
		if m.depth >= maxCallDepth {
			return nil, ErrCallDepth
		}
		m.depth++
		defer func() { m.depth-- }()

		sc := newScope(f.env)
		if f.fn.name != "" {
			sc.vars[f.fn.name] = f
		}
		for i, p := range f.fn.params {
			sc.vars[p] = arg(args, i)
		}
		hoist(f.fn.body, sc)
		c, err := m.execList(f.fn.body, sc)
		if err != nil {
			return nil, err
		}
		if c == returned {
			v := m.ret
			m.ret = Undefined
			return v, nil
		}
		return Undefined, nil
	}
	return nil, throwf("TypeError: %s is not a function", typeOf(fn))
}

func (m *machine) evalUnary(x *unaryExpr, sc *scope) (Value, error) {
	if x.op == "typeof" {
		if id, ok := x.x.(*ident); ok {
			if owner, ok := sc.lookup(id.name); ok {
				return typeOf(owner.vars[id.name]), nil
			}
			return "undefined", nil
		}
	}
	v, err := m.eval(x.x, sc)
	if err != nil {
		return nil, err
	}
	switch x.op {
	case "!":
		return !toBool(v), nil
	case "-":
		return -toNumber(v), nil
	case "+":
		return toNumber(v), nil
	case "~":
		return float64(^toInt32(v)), nil
	case "typeof":
		return typeOf(v), nil
	case "void":
		return Undefined, nil
	}
	return nil, throwf("unsupported unary operator %s", x.op)
}

func (m *machine) evalUpdate(x *updateExpr, sc *scope) (Value, error) {
	old, err := m.eval(x.x, sc)
	if err != nil {
		return nil, err
	}
	n := toNumber(old)
	next := n + 1
	if x.op == "--" {
		next = n - 1
	}
	if err := m.store(x.x, next, sc); err != nil {
		return nil, err
	}
	if x.prefix {
		return next, nil
	}
	return n, nil
}

func (m *machine) evalAssign(x *assignExpr, sc *scope) (Value, error) {
	var v Value
	var err error
	if x.op == "=" {
		if v, err = m.eval(x.value, sc); err != nil {
			return nil, err
		}
	} else {
		cur, err := m.eval(x.target, sc)
		if err != nil {
			return nil, err
		}
		rhs, err := m.eval(x.value, sc)
		if err != nil {
			return nil, err
		}
		if v, err = binaryOp(x.op[:len(x.op)-1], cur, rhs); err != nil {
			return nil, err
		}
	}
	if err := m.store(x.target, v, sc); err != nil {
		return nil, err
	}
	return v, nil
}

// store writes v to an identifier, member or index target.
func (m *machine) store(target expr, v Value, sc *scope) error {
	switch t := target.(type) {
	case *ident:
		m.assign(sc, t.name, v)
		return nil
	case *memberExpr:
		obj, err := m.eval(t.x, sc)
		if err != nil {
			return err
		}
		return setMember(obj, t.name, v)
	case *indexExpr:
		obj, err := m.eval(t.x, sc)
		if err != nil {
			return err
		}
		key, err := m.eval(t.index, sc)
		if err != nil {
			return err
		}
		if arr, ok := obj.(*Array); ok {
			if f, ok := key.(float64); ok {
				return setArrayIndex(arr, f, v)
			}
		}
		return setMember(obj, ToString(key), v)
	}
	return throwf("invalid assignment target")
}

func setArrayIndex(arr *Array, f float64, v Value) error {
	if f < 0 || f != math.Trunc(f) || f > 1<<24 {
		return throwf("RangeError: unsupported array index %s", numberToString(f))
	}
	i := int(f)
	for len(arr.Elems) <= i {
		arr.Elems = append(arr.Elems, Undefined)
	}
	arr.Elems[i] = v
	return nil
}

func binaryOp(op string, l, r Value) (Value, error) {
	switch op {
	case "+":
		switch l.(type) {
		case string, *Array, *Object:
			return ToString(l) + ToString(r), nil
		}
		switch r.(type) {
		case string, *Array, *Object:
			return ToString(l) + ToString(r), nil
		}
		return toNumber(l) + toNumber(r), nil
	case "-":
		return toNumber(l) - toNumber(r), nil
	case "*":
		return toNumber(l) * toNumber(r), nil
	case "/":
		return toNumber(l) / toNumber(r), nil
	case "%":
		return math.Mod(toNumber(l), toNumber(r)), nil
	case "&":
		return float64(toInt32(l) & toInt32(r)), nil
	case "|":
		return float64(toInt32(l) | toInt32(r)), nil
	case "^":
		return float64(toInt32(l) ^ toInt32(r)), nil
	case "<<":
		return float64(toInt32(l) << (toUint32(r) & 31)), nil
	case ">>":
		return float64(toInt32(l) >> (toUint32(r) & 31)), nil
	case ">>>":
		return float64(toUint32(l) >> (toUint32(r) & 31)), nil
	case "===":
		return strictEquals(l, r), nil
	case "!==":
		return !strictEquals(l, r), nil
	case "==":
		return looseEquals(l, r), nil
	case "!=":
		return !looseEquals(l, r), nil
	case "<", ">", "<=", ">=":
		return compare(op, l, r), nil
	}
	return nil, throwf("unsupported operator %s", op)
}

func compare(op string, l, r Value) bool {
	ls, lok := l.(string)
	rs, rok := r.(string)
	if lok && rok {
		switch op {
		case "<":
			return ls < rs
		case ">":
			return ls > rs
		case "<=":
			return ls <= rs
		}
		return ls >= rs
	}
	a, b := toNumber(l), toNumber(r)
	switch op {
	case "<":
		return a < b
	case ">":
		return a > b
	case "<=":
		return a <= b
	}
	return a >= b
}
