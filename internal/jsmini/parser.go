package jsmini

import (
	"fmt"
	"strconv"
)

// SyntaxError reports source the parser does not accept. Anything outside
// the supported subset ends up here.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Pos, e.Msg)
}

type parser struct {
	toks []token
	i    int
}

func parse(src string) ([]stmt, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	var list []stmt
	for !p.atEOF() {
		s, err := p.statement()
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, nil
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) advance() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) atEOF() bool { return p.peek().kind == tokEOF }

func (p *parser) is(punct string) bool {
	t := p.peek()
	return t.kind == tokPunct && t.text == punct
}

func (p *parser) isKeyword(word string) bool {
	t := p.peek()
	return t.kind == tokIdent && t.text == word
}

func (p *parser) accept(punct string) bool {
	if p.is(punct) {
		p.i++
		return true
	}
	return false
}

func (p *parser) expect(punct string) error {
	if !p.accept(punct) {
		return p.errorf("expected %q, found %s", punct, p.peek())
	}
	return nil
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Pos: p.peek().pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) identifier() (string, error) {
	t := p.peek()
	if t.kind != tokIdent || reserved[t.text] {
		return "", p.errorf("expected identifier, found %s", t)
	}
	p.i++
	return t.text, nil
}

var reserved = map[string]bool{
	"var": true, "let": true, "const": true, "function": true, "return": true,
	"if": true, "else": true, "for": true, "while": true, "do": true,
	"break": true, "continue": true, "throw": true, "try": true, "catch": true,
	"finally": true, "switch": true, "case": true, "default": true,
	"true": true, "false": true, "null": true, "typeof": true, "void": true,
	"new": true, "this": true, "in": true, "instanceof": true, "delete": true,
}

// Semicolons are optional; a missing one is not an error.
func (p *parser) semicolon() {
	p.accept(";")
}

func (p *parser) statement() (stmt, error) {
	t := p.peek()
	at := pos(t.pos)

	if t.kind == tokPunct {
		switch t.text {
		case "{":
			return p.block()
		case ";":
			p.advance()
			return &emptyStmt{pos: at}, nil
		}
	}

	if t.kind == tokIdent {
		switch t.text {
		case "var", "let", "const":
			d, err := p.varDecl()
			if err != nil {
				return nil, err
			}
			p.semicolon()
			return d, nil
		case "function":
			p.advance()
			fn, err := p.function(true)
			if err != nil {
				return nil, err
			}
			return &funcDecl{pos: at, fn: fn}, nil
		case "return":
			p.advance()
			r := &returnStmt{pos: at}
			if !p.is(";") && !p.is("}") && !p.atEOF() {
				x, err := p.expression()
				if err != nil {
					return nil, err
				}
				r.x = x
			}
			p.semicolon()
			return r, nil
		case "if":
			return p.ifStatement()
		case "for":
			return p.forStatement()
		case "while":
			p.advance()
			cond, err := p.parenExpr()
			if err != nil {
				return nil, err
			}
			body, err := p.statement()
			if err != nil {
				return nil, err
			}
			return &whileStmt{pos: at, cond: cond, body: body}, nil
		case "do":
			p.advance()
			body, err := p.statement()
			if err != nil {
				return nil, err
			}
			if !p.isKeyword("while") {
				return nil, p.errorf("expected while after do body")
			}
			p.advance()
			cond, err := p.parenExpr()
			if err != nil {
				return nil, err
			}
			p.semicolon()
			return &whileStmt{pos: at, cond: cond, body: body, do: true}, nil
		case "break", "continue":
			p.advance()
			p.semicolon()
			return &branchStmt{pos: at, brk: t.text == "break"}, nil
		case "throw":
			p.advance()
			x, err := p.expression()
			if err != nil {
				return nil, err
			}
			p.semicolon()
			return &throwStmt{pos: at, x: x}, nil
		case "try":
			return p.tryStatement()
		case "switch":
			return p.switchStatement()
		}
	}

	x, err := p.expression()
	if err != nil {
		return nil, err
	}
	p.semicolon()
	return &exprStmt{pos: at, x: x}, nil
}

func (p *parser) block() (*blockStmt, error) {
	b := &blockStmt{pos: pos(p.peek().pos)}
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	for !p.is("}") {
		if p.atEOF() {
			return nil, p.errorf("unterminated block")
		}
		s, err := p.statement()
		if err != nil {
			return nil, err
		}
		b.list = append(b.list, s)
	}
	p.advance()
	return b, nil
}

func (p *parser) varDecl() (*varDecl, error) {
	d := &varDecl{pos: pos(p.advance().pos)}
	for {
		name, err := p.identifier()
		if err != nil {
			return nil, err
		}
		var init expr
		if p.accept("=") {
			if init, err = p.assignment(); err != nil {
				return nil, err
			}
		}
		d.names = append(d.names, name)
		d.inits = append(d.inits, init)
		if !p.accept(",") {
			return d, nil
		}
	}
}

func (p *parser) parenExpr() (expr, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	x, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return x, nil
}

func (p *parser) ifStatement() (stmt, error) {
	at := pos(p.advance().pos)
	cond, err := p.parenExpr()
	if err != nil {
		return nil, err
	}
	then, err := p.statement()
	if err != nil {
		return nil, err
	}
	s := &ifStmt{pos: at, cond: cond, then: then}
	if p.isKeyword("else") {
		p.advance()
		if s.alt, err = p.statement(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (p *parser) forStatement() (stmt, error) {
	at := pos(p.advance().pos)
	if err := p.expect("("); err != nil {
		return nil, err
	}
	s := &forStmt{pos: at}
	var err error
	switch {
	case p.is(";"):
	case p.isKeyword("var") || p.isKeyword("let") || p.isKeyword("const"):
		if s.init, err = p.varDecl(); err != nil {
			return nil, err
		}
	default:
		x, err := p.expression()
		if err != nil {
			return nil, err
		}
		s.init = &exprStmt{pos: pos(x.position()), x: x}
	}
	if p.isKeyword("in") || p.isKeyword("of") {
		return nil, p.errorf("for-in and for-of loops are not supported")
	}
	if err := p.expect(";"); err != nil {
		return nil, err
	}
	if !p.is(";") {
		if s.cond, err = p.expression(); err != nil {
			return nil, err
		}
	}
	if err := p.expect(";"); err != nil {
		return nil, err
	}
	if !p.is(")") {
		if s.post, err = p.expression(); err != nil {
			return nil, err
		}
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	if s.body, err = p.statement(); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *parser) tryStatement() (stmt, error) {
	at := pos(p.advance().pos)
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	s := &tryStmt{pos: at, body: body}
	if p.isKeyword("catch") {
		p.advance()
		if p.accept("(") {
			if s.param, err = p.identifier(); err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
		}
		if s.catch, err = p.block(); err != nil {
			return nil, err
		}
	}
	if p.isKeyword("finally") {
		p.advance()
		if s.finally, err = p.block(); err != nil {
			return nil, err
		}
	}
	if s.catch == nil && s.finally == nil {
		return nil, p.errorf("try without catch or finally")
	}
	return s, nil
}

func (p *parser) switchStatement() (stmt, error) {
	at := pos(p.advance().pos)
	tag, err := p.parenExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	s := &switchStmt{pos: at, tag: tag}
	for !p.accept("}") {
		var c switchCase
		switch {
		case p.isKeyword("case"):
			p.advance()
			if c.test, err = p.expression(); err != nil {
				return nil, err
			}
		case p.isKeyword("default"):
			p.advance()
		default:
			return nil, p.errorf("expected case or default, found %s", p.peek())
		}
		if err := p.expect(":"); err != nil {
			return nil, err
		}
		for !p.isKeyword("case") && !p.isKeyword("default") && !p.is("}") {
			if p.atEOF() {
				return nil, p.errorf("unterminated switch")
			}
			st, err := p.statement()
			if err != nil {
				return nil, err
			}
			c.body = append(c.body, st)
		}
		s.cases = append(s.cases, c)
	}
	return s, nil
}

// function parses the rest of a function after the keyword.
func (p *parser) function(needName bool) (*funcLit, error) {
	fn := &funcLit{pos: pos(p.peek().pos)}
	if p.peek().kind == tokIdent {
		name, err := p.identifier()
		if err != nil {
			return nil, err
		}
		fn.name = name
	} else if needName {
		return nil, p.errorf("function declaration needs a name")
	}
	if err := p.expect("("); err != nil {
		return nil, err
	}
	for !p.accept(")") {
		name, err := p.identifier()
		if err != nil {
			return nil, err
		}
		fn.params = append(fn.params, name)
		if !p.is(")") {
			if err := p.expect(","); err != nil {
				return nil, err
			}
		}
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	fn.body = body.list
	return fn, nil
}

func (p *parser) expression() (expr, error) {
	x, err := p.assignment()
	if err != nil {
		return nil, err
	}
	if !p.is(",") {
		return x, nil
	}
	seq := &seqExpr{pos: pos(x.position()), list: []expr{x}}
	for p.accept(",") {
		y, err := p.assignment()
		if err != nil {
			return nil, err
		}
		seq.list = append(seq.list, y)
	}
	return seq, nil
}

var assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"&=": true, "|=": true, "^=": true, "<<=": true, ">>=": true, ">>>=": true,
}

func (p *parser) assignment() (expr, error) {
	left, err := p.conditional()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if t.kind == tokPunct && t.text == "=>" {
		return nil, p.errorf("arrow functions are not supported")
	}
	if t.kind != tokPunct || !assignOps[t.text] {
		return left, nil
	}
	switch left.(type) {
	case *ident, *memberExpr, *indexExpr:
	default:
		return nil, p.errorf("invalid assignment target")
	}
	p.advance()
	value, err := p.assignment()
	if err != nil {
		return nil, err
	}
	return &assignExpr{pos: pos(t.pos), op: t.text, target: left, value: value}, nil
}

func (p *parser) conditional() (expr, error) {
	test, err := p.binary(1)
	if err != nil {
		return nil, err
	}
	if !p.is("?") {
		return test, nil
	}
	at := pos(p.advance().pos)
	then, err := p.assignment()
	if err != nil {
		return nil, err
	}
	if err := p.expect(":"); err != nil {
		return nil, err
	}
	alt, err := p.assignment()
	if err != nil {
		return nil, err
	}
	return &condExpr{pos: at, test: test, then: then, alt: alt}, nil
}

var binaryPrec = map[string]int{
	"||": 1, "&&": 2, "|": 3, "^": 4, "&": 5,
	"==": 6, "!=": 6, "===": 6, "!==": 6,
	"<": 7, ">": 7, "<=": 7, ">=": 7,
	"<<": 8, ">>": 8, ">>>": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "%": 10,
}

func (p *parser) binary(minPrec int) (expr, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind == tokIdent && (t.text == "in" || t.text == "instanceof") {
			return nil, p.errorf("%s operator is not supported", t.text)
		}
		prec, ok := binaryPrec[t.text]
		if t.kind != tokPunct || !ok || prec < minPrec {
			return left, nil
		}
		p.advance()
		right, err := p.binary(prec + 1)
		if err != nil {
			return nil, err
		}
		if t.text == "&&" || t.text == "||" {
			left = &logicalExpr{pos: pos(t.pos), op: t.text, l: left, r: right}
		} else {
			left = &binaryExpr{pos: pos(t.pos), op: t.text, l: left, r: right}
		}
	}
}

func (p *parser) unary() (expr, error) {
	t := p.peek()
	at := pos(t.pos)
	switch {
	case t.kind == tokPunct && (t.text == "!" || t.text == "-" || t.text == "+" || t.text == "~"),
		t.kind == tokIdent && (t.text == "typeof" || t.text == "void"):
		p.advance()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &unaryExpr{pos: at, op: t.text, x: x}, nil
	case t.kind == tokPunct && (t.text == "++" || t.text == "--"):
		p.advance()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &updateExpr{pos: at, op: t.text, prefix: true, x: x}, nil
	case t.kind == tokIdent && (t.text == "new" || t.text == "delete"):
		return nil, p.errorf("%s is not supported", t.text)
	}
	x, err := p.postfix()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind == tokPunct && (t.text == "++" || t.text == "--") {
		p.advance()
		return &updateExpr{pos: pos(t.pos), op: t.text, x: x}, nil
	}
	return x, nil
}

func (p *parser) postfix() (expr, error) {
	x, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokPunct {
			return x, nil
		}
		switch t.text {
		case ".":
			p.advance()
			name := p.peek()
			if name.kind != tokIdent {
				return nil, p.errorf("expected property name, found %s", name)
			}
			p.advance()
			x = &memberExpr{pos: pos(t.pos), x: x, name: name.text}
		case "[":
			p.advance()
			index, err := p.expression()
			if err != nil {
				return nil, err
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			x = &indexExpr{pos: pos(t.pos), x: x, index: index}
		case "(":
			p.advance()
			call := &callExpr{pos: pos(t.pos), fn: x}
			for !p.accept(")") {
				arg, err := p.assignment()
				if err != nil {
					return nil, err
				}
				call.args = append(call.args, arg)
				if !p.is(")") {
					if err := p.expect(","); err != nil {
						return nil, err
					}
				}
			}
			x = call
		default:
			return x, nil
		}
	}
}

func (p *parser) primary() (expr, error) {
	t := p.peek()
	at := pos(t.pos)
	switch t.kind {
	case tokNumber:
		p.advance()
		return &numLit{pos: at, v: t.num}, nil
	case tokString:
		p.advance()
		return &strLit{pos: at, v: t.text}, nil
	case tokIdent:
		switch t.text {
		case "true", "false":
			p.advance()
			return &boolLit{pos: at, v: t.text == "true"}, nil
		case "null":
			p.advance()
			return &nullLit{pos: at}, nil
		case "function":
			p.advance()
			return p.function(false)
		case "this":
			return nil, p.errorf("this is not supported")
		}
		name, err := p.identifier()
		if err != nil {
			return nil, err
		}
		return &ident{pos: at, name: name}, nil
	case tokPunct:
		switch t.text {
		case "(":
			return p.parenExpr()
		case "[":
			return p.arrayLiteral()
		case "{":
			return p.objectLiteral()
		case "/", "/=":
			return nil, p.errorf("regular expression literals are not supported")
		}
	}
	return nil, p.errorf("unexpected %s", t)
}

func (p *parser) arrayLiteral() (expr, error) {
	a := &arrayLit{pos: pos(p.advance().pos)}
	for !p.accept("]") {
		if p.is(",") {
			return nil, p.errorf("array holes are not supported")
		}
		x, err := p.assignment()
		if err != nil {
			return nil, err
		}
		a.elems = append(a.elems, x)
		if !p.is("]") {
			if err := p.expect(","); err != nil {
				return nil, err
			}
		}
	}
	return a, nil
}

func (p *parser) objectLiteral() (expr, error) {
	o := &objectLit{pos: pos(p.advance().pos)}
	for !p.accept("}") {
		t := p.advance()
		var key string
		switch t.kind {
		case tokIdent, tokString:
			key = t.text
		case tokNumber:
			key = numberToString(t.num)
		default:
			return nil, &SyntaxError{Pos: t.pos, Msg: "expected property key, found " + strconv.Quote(t.text)}
		}
		if err := p.expect(":"); err != nil {
			return nil, err
		}
		v, err := p.assignment()
		if err != nil {
			return nil, err
		}
		o.keys = append(o.keys, key)
		o.values = append(o.values, v)
		if !p.is("}") {
			if err := p.expect(","); err != nil {
				return nil, err
			}
		}
	}
	return o, nil
}
