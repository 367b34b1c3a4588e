package ast

type (
	Node interface{}
	Stmt Node
	Expr Node

	// Base carries the node's byte range in the unit buffer.
	Base struct {
		Pos int
		End int
	}

	File struct {
		Name string

		Funcs []*Func
	}

	Func struct {
		Base `tlog:",embed"`

		Name string

		In  []Param
		Out []Param

		Body *Block
	}

	Param struct {
		Base `tlog:",embed"`

		Name string
	}

	Block struct {
		Base `tlog:",embed"`

		Stmts []Stmt
	}

	// Let declares a new variable in the current block scope.
	// Initialization is mandatory.
	Let struct {
		Base `tlog:",embed"`

		Name string
		Init Expr
	}

	Assign struct {
		Base `tlog:",embed"`

		Name string
		Rhs  Expr
	}

	// If holds an optional Else which is either *Block or *If
	// (the latter encodes else-if chains by right nesting).
	If struct {
		Base `tlog:",embed"`

		Cond Expr
		Then *Block
		Else Stmt
	}

	While struct {
		Base `tlog:",embed"`

		Cond Expr
		Body *Block
	}

	Return struct {
		Base `tlog:",embed"`

		Out []Expr
	}

	ExprStmt struct {
		Base `tlog:",embed"`

		X Expr
	}

	Num struct {
		Base `tlog:",embed"`

		Value float64
	}

	Ident struct {
		Base `tlog:",embed"`

		Name string
	}

	Op string

	// BinOp is one of + - * /.
	BinOp struct {
		Base `tlog:",embed"`

		Op   Op
		L, R Expr
	}

	// CmpOp is one of == != < <= > >=.
	CmpOp struct {
		Base `tlog:",embed"`

		Op   Op
		L, R Expr
	}

	Neg struct {
		Base `tlog:",embed"`

		E Expr
	}

	Call struct {
		Base `tlog:",embed"`

		Name string
		In   []Expr
	}
)
