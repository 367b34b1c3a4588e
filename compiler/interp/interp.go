// Package interp executes the AST directly. It is the reference
// semantics the lowered IR is compared against.
package interp

import (
	"context"
	"fmt"

	"tlog.app/go/errors"

	"github.com/joltlang/jolt/compiler/ast"
)

type (
	Machine struct {
		funcs map[string]*ast.Func
	}

	env struct {
		par  *env
		vars map[string]float64
	}
)

func New(f *ast.File) *Machine {
	m := &Machine{
		funcs: make(map[string]*ast.Func),
	}

	for _, fn := range f.Funcs {
		m.funcs[fn.Name] = fn
	}

	return m
}

func (m *Machine) Call(ctx context.Context, name string, in ...float64) ([]float64, error) {
	fn, ok := m.funcs[name]
	if !ok {
		return nil, errors.New("function %q does not exist", name)
	}

	if len(in) != len(fn.In) {
		return nil, errors.New("%v takes %d args, got %d", name, len(fn.In), len(in))
	}

	return m.call(ctx, fn, in)
}

func (m *Machine) call(ctx context.Context, fn *ast.Func, in []float64) ([]float64, error) {
	e := &env{vars: make(map[string]float64)}

	for i, p := range fn.In {
		e.vars[p.Name] = in[i]
	}

	for _, p := range fn.Out {
		e.vars[p.Name] = 0
	}

	ret, out, err := m.execBlock(ctx, e, fn.Body, false)
	if err != nil {
		return nil, errors.Wrap(err, "%v", fn.Name)
	}

	if ret {
		return out, nil
	}

	out = make([]float64, len(fn.Out))

	for i, p := range fn.Out {
		out[i], _ = e.get(p.Name)
	}

	return out, nil
}

func (m *Machine) execBlock(ctx context.Context, e *env, b *ast.Block, scoped bool) (ret bool, out []float64, err error) {
	if scoped {
		e = &env{par: e, vars: make(map[string]float64)}
	}

	for _, x := range b.Stmts {
		ret, out, err = m.execStmt(ctx, e, x)
		if err != nil || ret {
			return ret, out, err
		}
	}

	return false, nil, nil
}

func (m *Machine) execStmt(ctx context.Context, e *env, x ast.Stmt) (ret bool, out []float64, err error) {
	switch x := x.(type) {
	case *ast.Let:
		v, err := m.eval(ctx, e, x.Init)
		if err != nil {
			return false, nil, err
		}

		e.vars[x.Name] = v
	case *ast.Assign:
		v, err := m.eval(ctx, e, x.Rhs)
		if err != nil {
			return false, nil, err
		}

		if !e.set(x.Name, v) {
			return false, nil, errors.New("undefined: %v", x.Name)
		}
	case *ast.If:
		c, err := m.evalCond(ctx, e, x.Cond)
		if err != nil {
			return false, nil, err
		}

		if c {
			return m.execBlock(ctx, e, x.Then, true)
		}

		switch q := x.Else.(type) {
		case nil:
		case *ast.Block:
			return m.execBlock(ctx, e, q, true)
		case *ast.If:
			sub := &env{par: e, vars: make(map[string]float64)}
			return m.execStmt(ctx, sub, q)
		default:
			panic(fmt.Sprintf("%T", q))
		}
	case *ast.While:
		for {
			if err := ctx.Err(); err != nil {
				return false, nil, err
			}

			c, err := m.evalCond(ctx, e, x.Cond)
			if err != nil {
				return false, nil, err
			}

			if !c {
				break
			}

			ret, out, err = m.execBlock(ctx, e, x.Body, true)
			if err != nil || ret {
				return ret, out, err
			}
		}
	case *ast.Return:
		out, err = m.evalReturn(ctx, e, x)
		return true, out, err
	case *ast.ExprStmt:
		_, err = m.evalMulti(ctx, e, x.X)
		return false, nil, err
	default:
		panic(fmt.Sprintf("%T", x))
	}

	return false, nil, nil
}

func (m *Machine) evalReturn(ctx context.Context, e *env, x *ast.Return) ([]float64, error) {
	if len(x.Out) == 1 {
		// a single call may forward all its results
		if call, ok := x.Out[0].(*ast.Call); ok {
			return m.evalCall(ctx, e, call)
		}
	}

	out := make([]float64, len(x.Out))

	for i, q := range x.Out {
		v, err := m.eval(ctx, e, q)
		if err != nil {
			return nil, err
		}

		out[i] = v
	}

	return out, nil
}

func (m *Machine) eval(ctx context.Context, e *env, x ast.Expr) (float64, error) {
	switch x := x.(type) {
	case *ast.Num:
		return x.Value, nil
	case *ast.Ident:
		v, ok := e.get(x.Name)
		if !ok {
			return 0, errors.New("undefined: %v", x.Name)
		}

		return v, nil
	case *ast.Neg:
		v, err := m.eval(ctx, e, x.E)
		return -v, err
	case *ast.BinOp:
		l, err := m.eval(ctx, e, x.L)
		if err != nil {
			return 0, err
		}

		r, err := m.eval(ctx, e, x.R)
		if err != nil {
			return 0, err
		}

		switch x.Op {
		case "+":
			return l + r, nil
		case "-":
			return l - r, nil
		case "*":
			return l * r, nil
		case "/":
			return l / r, nil
		default:
			panic(x.Op)
		}
	case *ast.Call:
		out, err := m.evalCall(ctx, e, x)
		if err != nil {
			return 0, err
		}

		if len(out) != 1 {
			return 0, errors.New("%v used as a single value returns %d", x.Name, len(out))
		}

		return out[0], nil
	default:
		return 0, errors.New("not a value: %T", x)
	}
}

func (m *Machine) evalMulti(ctx context.Context, e *env, x ast.Expr) ([]float64, error) {
	if call, ok := x.(*ast.Call); ok {
		return m.evalCall(ctx, e, call)
	}

	v, err := m.eval(ctx, e, x)

	return []float64{v}, err
}

func (m *Machine) evalCond(ctx context.Context, e *env, x ast.Expr) (bool, error) {
	cmp, ok := x.(*ast.CmpOp)
	if !ok {
		return false, errors.New("condition must be a comparison, got %T", x)
	}

	l, err := m.eval(ctx, e, cmp.L)
	if err != nil {
		return false, err
	}

	r, err := m.eval(ctx, e, cmp.R)
	if err != nil {
		return false, err
	}

	switch cmp.Op {
	case "==":
		return l == r, nil
	case "!=":
		return l != r, nil
	case "<":
		return l < r, nil
	case "<=":
		return l <= r, nil
	case ">":
		return l > r, nil
	case ">=":
		return l >= r, nil
	default:
		panic(cmp.Op)
	}
}

func (m *Machine) evalCall(ctx context.Context, e *env, x *ast.Call) ([]float64, error) {
	fn, ok := m.funcs[x.Name]
	if !ok {
		return nil, errors.New("function %q does not exist", x.Name)
	}

	if len(x.In) != len(fn.In) {
		return nil, errors.New("%v takes %d args, got %d", x.Name, len(fn.In), len(x.In))
	}

	in := make([]float64, len(x.In))

	for i, a := range x.In {
		v, err := m.eval(ctx, e, a)
		if err != nil {
			return nil, err
		}

		in[i] = v
	}

	return m.call(ctx, fn, in)
}

func (e *env) get(name string) (float64, bool) {
	for q := e; q != nil; q = q.par {
		if v, ok := q.vars[name]; ok {
			return v, true
		}
	}

	return 0, false
}

func (e *env) set(name string, v float64) bool {
	for q := e; q != nil; q = q.par {
		if _, ok := q.vars[name]; ok {
			q.vars[name] = v
			return true
		}
	}

	return false
}
