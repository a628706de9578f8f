package jsmini

type node interface {
	position() int
}

type stmt interface {
	node
	stmtNode()
}

type expr interface {
	node
	exprNode()
}

type pos int

func (p pos) position() int { return int(p) }

// Statements.
type (
	varDecl struct {
		pos
		names []string
		inits []expr // nil entries for declarations without an initializer
	}
	funcDecl struct {
		pos
		fn *funcLit
	}
	exprStmt struct {
		pos
		x expr
	}
	returnStmt struct {
		pos
		x expr
	}
	ifStmt struct {
		pos
		cond      expr
		then, alt stmt
	}
	forStmt struct {
		pos
		init stmt
		cond expr
		post expr
		body stmt
	}
	whileStmt struct {
		pos
		cond expr
		body stmt
		do   bool
	}
	blockStmt struct {
		pos
		list []stmt
	}
	branchStmt struct {
		pos
		brk bool
	}
	throwStmt struct {
		pos
		x expr
	}
	tryStmt struct {
		pos
		body    *blockStmt
		param   string
		catch   *blockStmt
		finally *blockStmt
	}
	switchStmt struct {
		pos
		tag   expr
		cases []switchCase
	}
	emptyStmt struct {
		pos
	}
)

type switchCase struct {
	test expr // nil for default
	body []stmt
}

func (*varDecl) stmtNode()    {}
func (*funcDecl) stmtNode()   {}
func (*exprStmt) stmtNode()   {}
func (*returnStmt) stmtNode() {}
func (*ifStmt) stmtNode()     {}
func (*forStmt) stmtNode()    {}
func (*whileStmt) stmtNode()  {}
func (*blockStmt) stmtNode()  {}
func (*branchStmt) stmtNode() {}
func (*throwStmt) stmtNode()  {}
func (*tryStmt) stmtNode()    {}
func (*switchStmt) stmtNode() {}
func (*emptyStmt) stmtNode()  {}

// Expressions.
type (
	ident struct {
		pos
		name string
	}
	numLit struct {
		pos
		v float64
	}
	strLit struct {
		pos
		v string
	}
	boolLit struct {
		pos
		v bool
	}
	nullLit struct {
		pos
	}
	arrayLit struct {
		pos
		elems []expr
	}
	objectLit struct {
		pos
		keys   []string
		values []expr
	}
	funcLit struct {
		pos
		name   string
		params []string
		body   []stmt
	}
	memberExpr struct {
		pos
		x    expr
		name string
	}
	indexExpr struct {
		pos
		x     expr
		index expr
	}
	callExpr struct {
		pos
		fn   expr
		args []expr
	}
	unaryExpr struct {
		pos
		op string
		x  expr
	}
	updateExpr struct {
		pos
		op     string
		prefix bool
		x      expr
	}
	binaryExpr struct {
		pos
		op   string
		l, r expr
	}
	logicalExpr struct {
		pos
		op   string
		l, r expr
	}
	condExpr struct {
		pos
		test, then, alt expr
	}
	assignExpr struct {
		pos
		op     string
		target expr
		value  expr
	}
	seqExpr struct {
		pos
		list []expr
	}
)

func (*ident) exprNode()       {}
func (*numLit) exprNode()      {}
func (*strLit) exprNode()      {}
func (*boolLit) exprNode()     {}
func (*nullLit) exprNode()     {}
func (*arrayLit) exprNode()    {}
func (*objectLit) exprNode()   {}
func (*funcLit) exprNode()     {}
func (*memberExpr) exprNode()  {}
func (*indexExpr) exprNode()   {}
func (*callExpr) exprNode()    {}
func (*unaryExpr) exprNode()   {}
func (*updateExpr) exprNode()  {}
func (*binaryExpr) exprNode()  {}
func (*logicalExpr) exprNode() {}
func (*condExpr) exprNode()    {}
func (*assignExpr) exprNode()  {}
func (*seqExpr) exprNode()     {}
