// Package exec is the execution backend boundary of the compiler.
//
// A Backend consumes a finished ir.Package and makes its functions
// callable. Machine is the bundled implementation: a direct evaluator
// of the block IR. A machine code generator would slot in behind the
// same interface.
package exec

import (
	"context"
	"fmt"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/joltlang/jolt/compiler/ir"
	"github.com/joltlang/jolt/compiler/set"
)

type (
	Backend interface {
		Load(ctx context.Context, p *ir.Package) error
		Call(ctx context.Context, name string, in ...float64) ([]float64, error)
	}

	Machine struct {
		p *ir.Package
	}
)

func New() *Machine {
	return &Machine{}
}

// Load verifies the structural invariants a code generator relies on
// and takes ownership of the package.
func (m *Machine) Load(ctx context.Context, p *ir.Package) error {
	for _, f := range p.Funcs {
		err := validate(f)
		if err != nil {
			return errors.Wrap(err, "func %v", f.Name)
		}
	}

	m.p = p

	return nil
}

func validate(f *ir.Func) error {
	preds := make([][]ir.Block, len(f.Blocks))

	addPred := func(to ir.Block, from int) error {
		if int(to) >= len(f.Blocks) {
			return errors.New("b%d: edge to missing b%d", from, to)
		}

		preds[to] = append(preds[to], ir.Block(from))

		return nil
	}

	for bid, blk := range f.Blocks {
		var err error

		switch t := blk.Term.(type) {
		case ir.B:
			err = addPred(t.To, bid)
		case ir.BCond:
			err = addPred(t.Then, bid)
			if err == nil {
				err = addPred(t.Else, bid)
			}
		case ir.Ret:
			if len(t.Out) != f.Out {
				err = errors.New("b%d: ret carries %d values, func declares %d", bid, len(t.Out), f.Out)
			}
		case nil:
			err = errors.New("b%d: no terminator", bid)
		default:
			err = errors.New("b%d: unknown terminator %T", bid, t)
		}

		if err != nil {
			return err
		}
	}

	reach := reachable(f)

	for bid, blk := range f.Blocks {
		if len(preds[bid]) != len(blk.Prev) {
			return errors.New("b%d: recorded %d predecessors, edges say %d", bid, len(blk.Prev), len(preds[bid]))
		}

		if !reach.IsSet(bid) {
			return errors.New("b%d: unreachable", bid)
		}

		for _, id := range blk.Phi {
			phi, ok := f.Exprs[id].(ir.Phi)
			if !ok {
				return errors.New("b%d: %d is not a phi", bid, id)
			}

			if len(phi) == 0 {
				return errors.New("b%d: phi %d has no inputs", bid, id)
			}
		}
	}

	return nil
}

// reachable walks the edges from the entry block.
func reachable(f *ir.Func) set.Bitmap {
	seen := set.MakeBitmap(len(f.Blocks))
	work := []ir.Block{f.Entry}

	push := func(b ir.Block) {
		if !seen.IsSet(int(b)) {
			seen.Set(int(b))
			work = append(work, b)
		}
	}

	seen.Set(int(f.Entry))

	for len(work) != 0 {
		b := work[len(work)-1]
		work = work[:len(work)-1]

		switch t := f.Blocks[b].Term.(type) {
		case ir.B:
			push(t.To)
		case ir.BCond:
			push(t.Then)
			push(t.Else)
		}
	}

	return seen
}

func (m *Machine) Call(ctx context.Context, name string, in ...float64) ([]float64, error) {
	if m.p == nil {
		return nil, errors.New("no package loaded")
	}

	f := m.p.Func(name)
	if f == nil {
		return nil, errors.New("function %q does not exist", name)
	}

	if len(in) != len(f.In) {
		return nil, errors.New("%v takes %d args, got %d", name, len(f.In), len(in))
	}

	tlog.V("exec").Printw("call", "name", name, "in", in)

	return m.run(ctx, f, in)
}

func (m *Machine) run(ctx context.Context, f *ir.Func, in []float64) ([]float64, error) {
	regs := make([]float64, len(f.Exprs))
	calls := map[ir.Expr][]float64{}

	prev := ir.Block(-1)
	cur := f.Entry

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		blk := f.Blocks[cur]

		// phis of a block read their inputs simultaneously
		if len(blk.Phi) != 0 {
			vals := make([]float64, len(blk.Phi))

			for i, id := range blk.Phi {
				phi := f.Exprs[id].(ir.Phi)

				br, ok := incoming(phi, prev)
				if !ok {
					return nil, errors.New("b%d: phi %d has no input for edge from b%d", cur, id, prev)
				}

				vals[i] = regs[br.Expr]
			}

			for i, id := range blk.Phi {
				regs[id] = vals[i]
			}
		}

		for _, id := range blk.Code {
			err := m.step(ctx, f, regs, calls, id, in)
			if err != nil {
				return nil, err
			}
		}

		switch t := blk.Term.(type) {
		case ir.B:
			prev, cur = cur, t.To
		case ir.BCond:
			if regs[t.Expr] != 0 {
				prev, cur = cur, t.Then
			} else {
				prev, cur = cur, t.Else
			}
		case ir.Ret:
			out := make([]float64, len(t.Out))

			for i, id := range t.Out {
				out[i] = regs[id]
			}

			return out, nil
		default:
			return nil, errors.New("b%d: unknown terminator %T", cur, t)
		}
	}
}

func (m *Machine) step(ctx context.Context, f *ir.Func, regs []float64, calls map[ir.Expr][]float64, id ir.Expr, in []float64) error {
	switch x := f.Exprs[id].(type) {
	case ir.Imm:
		regs[id] = float64(x)
	case ir.Param:
		regs[id] = in[x.Index]
	case ir.Add:
		regs[id] = regs[x.L] + regs[x.R]
	case ir.Sub:
		regs[id] = regs[x.L] - regs[x.R]
	case ir.Mul:
		regs[id] = regs[x.L] * regs[x.R]
	case ir.Div:
		regs[id] = regs[x.L] / regs[x.R]
	case ir.Neg:
		regs[id] = -regs[x.E]
	case ir.Cmp:
		regs[id] = b2f(compare(x.Cond, regs[x.L], regs[x.R]))
	case ir.Call:
		callee := m.p.Func(x.Func)
		if callee == nil {
			return errors.New("function %q does not exist", x.Func)
		}

		args := make([]float64, len(x.In))

		for i, a := range x.In {
			args[i] = regs[a]
		}

		out, err := m.run(ctx, callee, args)
		if err != nil {
			return errors.Wrap(err, "call %v", x.Func)
		}

		regs[id] = out[0]
		calls[id] = out
	case ir.Out:
		out, ok := calls[x.Call]
		if !ok {
			return errors.New("out %d.%d: no call results", x.Call, x.Index)
		}

		regs[id] = out[x.Index]
	default:
		return errors.New("unknown instruction %T: %[1]v", x)
	}

	return nil
}

func incoming(phi ir.Phi, prev ir.Block) (ir.PhiBranch, bool) {
	for _, br := range phi {
		if br.Block == prev {
			return br, true
		}
	}

	return ir.PhiBranch{}, false
}

func compare(c ir.Cond, l, r float64) bool {
	switch c {
	case "==":
		return l == r
	case "!=":
		return l != r
	case "<":
		return l < r
	case "<=":
		return l <= r
	case ">":
		return l > r
	case ">=":
		return l >= r
	default:
		panic(fmt.Sprintf("cond %q", c))
	}
}

func b2f(v bool) float64 {
	if v {
		return 1
	}

	return 0
}
