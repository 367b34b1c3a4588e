package front

import (
	"context"
	"fmt"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/joltlang/jolt/compiler/ast"
)

type (
	// funcScope is the resolved view of one function: every name
	// occurrence mapped to a stable variable slot.
	funcScope struct {
		fn *ast.Func

		nslots int

		ins  []int // slot per parameter, in order
		outs []int // slot per return slot, in order

		uses map[*ast.Ident]int
		lets map[*ast.Let]int
		asgn map[*ast.Assign]int
	}

	// scopes is an arena of frames linked by parent index.
	// Frame 0 is the function root holding parameters and return slots.
	scopes struct {
		frames []frame
		top    int
	}

	frame struct {
		par   int
		names map[string]int
	}

	UnresolvedError struct {
		At   int
		Name string
	}

	RedeclaredError struct {
		At   int
		Name string
	}

	ArityError struct {
		At   int
		Want int
		Got  int
	}
)

// Analyze resolves names to slots, collects function signatures
// and type checks the unit. It must run before Compile.
func (c *Front) Analyze(ctx context.Context) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "front: analyze unit")
	defer tr.Finish("err", &err)

	c.sigs = make(map[string]Sig)
	c.res = make(map[*ast.Func]*funcScope)

	for _, fn := range c.prog.Funcs {
		if _, ok := c.sigs[fn.Name]; ok {
			return c.wrapPos(RedeclaredError{At: fn.Pos, Name: fn.Name})
		}

		c.sigs[fn.Name] = Sig{
			In:  len(fn.In),
			Out: len(fn.Out),
		}
	}

	for _, fn := range c.prog.Funcs {
		fs, err := c.resolveFunc(ctx, fn)
		if err != nil {
			return c.wrapPos(errors.Wrap(err, "%v", fn.Name))
		}

		c.res[fn] = fs

		tr.Printw("resolved", "name", fn.Name, "slots", fs.nslots)
	}

	for _, fn := range c.prog.Funcs {
		err = c.checkFunc(ctx, fn)
		if err != nil {
			return c.wrapPos(errors.Wrap(err, "%v", fn.Name))
		}
	}

	return nil
}

func (c *Front) resolveFunc(ctx context.Context, fn *ast.Func) (fs *funcScope, err error) {
	fs = &funcScope{
		fn:   fn,
		uses: make(map[*ast.Ident]int),
		lets: make(map[*ast.Let]int),
		asgn: make(map[*ast.Assign]int),
	}

	sc := &scopes{
		frames: []frame{{par: -1, names: map[string]int{}}},
	}

	for _, p := range fn.In {
		slot, err := fs.declare(sc, p.Name, p.Pos)
		if err != nil {
			return nil, err
		}

		fs.ins = append(fs.ins, slot)
	}

	for _, p := range fn.Out {
		slot, err := fs.declare(sc, p.Name, p.Pos)
		if err != nil {
			return nil, err
		}

		fs.outs = append(fs.outs, slot)
	}

	// the function body shares the root frame with the signature,
	// so a let shadowing a parameter is a redeclaration
	for _, x := range fn.Body.Stmts {
		err = fs.resolveStmt(ctx, sc, x)
		if err != nil {
			return nil, err
		}
	}

	return fs, nil
}

func (fs *funcScope) resolveStmt(ctx context.Context, sc *scopes, x ast.Stmt) (err error) {
	switch x := x.(type) {
	case *ast.Let:
		err = fs.resolveExpr(ctx, sc, x.Init)
		if err != nil {
			return err
		}

		slot, err := fs.declare(sc, x.Name, x.Pos)
		if err != nil {
			return err
		}

		fs.lets[x] = slot
	case *ast.Assign:
		err = fs.resolveExpr(ctx, sc, x.Rhs)
		if err != nil {
			return err
		}

		slot, ok := sc.lookup(x.Name)
		if !ok {
			return UnresolvedError{At: x.Pos, Name: x.Name}
		}

		fs.asgn[x] = slot
	case *ast.If:
		err = fs.resolveExpr(ctx, sc, x.Cond)
		if err != nil {
			return err
		}

		err = fs.resolveBlock(ctx, sc, x.Then)
		if err != nil {
			return err
		}

		switch e := x.Else.(type) {
		case nil:
		case *ast.Block:
			err = fs.resolveBlock(ctx, sc, e)
		case *ast.If:
			err = fs.resolveStmt(ctx, sc, e)
		default:
			panic(fmt.Sprintf("%T", e))
		}

		if err != nil {
			return err
		}
	case *ast.While:
		err = fs.resolveExpr(ctx, sc, x.Cond)
		if err != nil {
			return err
		}

		err = fs.resolveBlock(ctx, sc, x.Body)
		if err != nil {
			return err
		}
	case *ast.Return:
		for _, e := range x.Out {
			err = fs.resolveExpr(ctx, sc, e)
			if err != nil {
				return err
			}
		}

		want := len(fs.fn.Out)

		if got := len(x.Out); got != want && !tupleReturn(x, want) {
			return ArityError{At: x.Pos, Want: want, Got: got}
		}
	case *ast.ExprStmt:
		err = fs.resolveExpr(ctx, sc, x.X)
		if err != nil {
			return err
		}
	default:
		panic(fmt.Sprintf("%T", x))
	}

	return nil
}

func (fs *funcScope) resolveBlock(ctx context.Context, sc *scopes, b *ast.Block) (err error) {
	sc.push()
	defer sc.pop()

	for _, x := range b.Stmts {
		err = fs.resolveStmt(ctx, sc, x)
		if err != nil {
			return err
		}
	}

	return nil
}

func (fs *funcScope) resolveExpr(ctx context.Context, sc *scopes, e ast.Expr) (err error) {
	switch e := e.(type) {
	case *ast.Num:
	case *ast.Ident:
		slot, ok := sc.lookup(e.Name)
		if !ok {
			return UnresolvedError{At: e.Pos, Name: e.Name}
		}

		fs.uses[e] = slot
	case *ast.BinOp:
		err = fs.resolveExpr(ctx, sc, e.L)
		if err != nil {
			return err
		}

		return fs.resolveExpr(ctx, sc, e.R)
	case *ast.CmpOp:
		err = fs.resolveExpr(ctx, sc, e.L)
		if err != nil {
			return err
		}

		return fs.resolveExpr(ctx, sc, e.R)
	case *ast.Neg:
		return fs.resolveExpr(ctx, sc, e.E)
	case *ast.Call:
		for _, a := range e.In {
			err = fs.resolveExpr(ctx, sc, a)
			if err != nil {
				return err
			}
		}
	default:
		panic(fmt.Sprintf("%T", e))
	}

	return nil
}

func (fs *funcScope) declare(sc *scopes, name string, pos int) (int, error) {
	f := &sc.frames[sc.top]

	if _, ok := f.names[name]; ok {
		return 0, RedeclaredError{At: pos, Name: name}
	}

	slot := fs.nslots
	fs.nslots++

	f.names[name] = slot

	return slot, nil
}

func (sc *scopes) push() {
	sc.frames = append(sc.frames, frame{
		par:   sc.top,
		names: map[string]int{},
	})
	sc.top = len(sc.frames) - 1
}

func (sc *scopes) pop() {
	sc.top = sc.frames[sc.top].par
}

func (sc *scopes) lookup(name string) (int, bool) {
	for i := sc.top; i >= 0; i = sc.frames[i].par {
		if slot, ok := sc.frames[i].names[name]; ok {
			return slot, true
		}
	}

	return 0, false
}

// tupleReturn reports whether x is `return f(...)` forwarding all
// want results of a single call. The checker verifies the arity.
func tupleReturn(x *ast.Return, want int) bool {
	if len(x.Out) != 1 || want == 1 {
		return false
	}

	_, ok := x.Out[0].(*ast.Call)

	return ok
}

func (e UnresolvedError) Error() string {
	return fmt.Sprintf("undefined: %v", e.Name)
}

func (e UnresolvedError) Pos() int { return e.At }

func (e RedeclaredError) Error() string {
	return fmt.Sprintf("%v redeclared in this block", e.Name)
}

func (e RedeclaredError) Pos() int { return e.At }

func (e ArityError) Error() string {
	return fmt.Sprintf("wrong number of return values: want %d, got %d", e.Want, e.Got)
}

func (e ArityError) Pos() int { return e.At }
