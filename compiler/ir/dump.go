package ir

import (
	"github.com/nikandfor/hacked/hfmt"
)

// Dump renders the package as a readable listing.
func Dump(b []byte, p *Package) []byte {
	for i, f := range p.Funcs {
		if i != 0 {
			b = append(b, '\n')
		}

		b = DumpFunc(b, f)
	}

	return b
}

func DumpFunc(b []byte, f *Func) []byte {
	b = hfmt.Appendf(b, "func %v  in %d  out %d  entry b%d\n", f.Name, len(f.In), f.Out, f.Entry)

	for bid, blk := range f.Blocks {
		b = hfmt.Appendf(b, "b%d:", bid)

		for i, p := range blk.Prev {
			if i == 0 {
				b = append(b, "  <- "...)
			} else {
				b = append(b, ", "...)
			}

			b = hfmt.Appendf(b, "b%d", p)
		}

		b = append(b, '\n')

		for _, id := range blk.Phi {
			b = dumpExpr(b, f, id)
		}

		for _, id := range blk.Code {
			b = dumpExpr(b, f, id)
		}

		b = dumpTerm(b, blk.Term)
	}

	return b
}

func dumpExpr(b []byte, f *Func, id Expr) []byte {
	b = hfmt.Appendf(b, "	%4d = ", id)

	switch x := f.Exprs[id].(type) {
	case Imm:
		b = hfmt.Appendf(b, "imm %v", float64(x))
	case Param:
		b = hfmt.Appendf(b, "param %d", x.Index)
	case Add:
		b = hfmt.Appendf(b, "add %d %d", x.L, x.R)
	case Sub:
		b = hfmt.Appendf(b, "sub %d %d", x.L, x.R)
	case Mul:
		b = hfmt.Appendf(b, "mul %d %d", x.L, x.R)
	case Div:
		b = hfmt.Appendf(b, "div %d %d", x.L, x.R)
	case Neg:
		b = hfmt.Appendf(b, "neg %d", x.E)
	case Cmp:
		b = hfmt.Appendf(b, "cmp %v %d %d", x.Cond, x.L, x.R)
	case Call:
		b = hfmt.Appendf(b, "call %v", x.Func)

		for _, a := range x.In {
			b = hfmt.Appendf(b, " %d", a)
		}
	case Out:
		b = hfmt.Appendf(b, "out %d.%d", x.Call, x.Index)
	case Phi:
		b = append(b, "phi"...)

		for _, br := range x {
			b = hfmt.Appendf(b, " [b%d %d]", br.Block, br.Expr)
		}
	default:
		b = hfmt.Appendf(b, "%T %+v", x, x)
	}

	b = append(b, '\n')

	return b
}

func dumpTerm(b []byte, t any) []byte {
	switch t := t.(type) {
	case B:
		b = hfmt.Appendf(b, "	b	b%d\n", t.To)
	case BCond:
		b = hfmt.Appendf(b, "	bcond	%d -> b%d else b%d\n", t.Expr, t.Then, t.Else)
	case Ret:
		b = append(b, "	ret"...)

		for _, id := range t.Out {
			b = hfmt.Appendf(b, "	%d", id)
		}

		b = append(b, '\n')
	case nil:
		b = append(b, "	<no terminator>\n"...)
	default:
		b = hfmt.Appendf(b, "	%T %+v\n", t, t)
	}

	return b
}
