package ir

import "tlog.app/go/tlog/tlwire"

type (
	// Expr is an SSA value id. It indexes Func.Exprs and is assigned
	// exactly once by exactly one instruction.
	Expr int

	// Block is a basic block id indexing Func.Blocks.
	Block int

	Cond string

	Imm float64

	// Param is the function input with the given position.
	Param struct {
		Index int
	}

	Add struct {
		L, R Expr
	}

	Sub struct {
		L, R Expr
	}

	Mul struct {
		L, R Expr
	}

	Div struct {
		L, R Expr
	}

	Neg struct {
		E Expr
	}

	// Cmp compares two values. The result is boolean-like and is only
	// consumed by BCond terminators.
	Cmp struct {
		Cond Cond
		L, R Expr
	}

	// Call invokes another function of the same unit by name.
	// The Call expr itself is the first result; further results are
	// extracted with Out.
	Call struct {
		Func string

		In []Expr
	}

	// Out is the Index-th result of a multi-result Call.
	Out struct {
		Call  Expr
		Index int
	}

	Phi []PhiBranch

	PhiBranch struct {
		Block Block
		Expr  Expr
	}

	// B is an unconditional jump terminator.
	B struct {
		To Block
	}

	// BCond branches to Then if Expr held, to Else otherwise.
	BCond struct {
		Expr Expr

		Then, Else Block
	}

	// Ret terminates the function carrying the values in slot order.
	Ret struct {
		Out []Expr
	}

	// BlockData is a basic block: phi merges, then straight-line code,
	// then exactly one terminator (B, BCond or Ret).
	BlockData struct {
		Phi  []Expr
		Code []Expr
		Term any

		Prev []Block
	}

	Func struct {
		Name string

		In  []Expr
		Out int

		Entry  Block
		Blocks []*BlockData

		Exprs []any
	}

	Package struct {
		Path string

		Funcs []*Func
	}
)

const Nil Expr = -1

// Alloc assigns the next SSA id to x.
func (f *Func) Alloc(x any) Expr {
	id := Expr(len(f.Exprs))
	f.Exprs = append(f.Exprs, x)

	return id
}

func (f *Func) Block(b Block) *BlockData {
	return f.Blocks[b]
}

func (p *Package) Func(name string) *Func {
	for _, f := range p.Funcs {
		if f.Name == name {
			return f
		}
	}

	return nil
}

func (p PhiBranch) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	b = e.AppendMap(b, 2)
	b = e.AppendKeyInt64(b, "b", int64(p.Block))
	b = e.AppendKeyInt64(b, "id", int64(p.Expr))

	return b
}
