package front

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/joltlang/jolt/compiler/ast"
	"github.com/joltlang/jolt/compiler/ir"
)

type (
	// bb is a basic block under construction. vars binds variable
	// slots to their current SSA value in this block. While the block
	// is unsealed (predecessors still unknown, i.e. a loop header
	// before its back-edge) reads that miss vars produce placeholder
	// phis recorded in pending; seal resolves them once all
	// predecessors exist.
	bb struct {
		id   ir.Block
		data *ir.BlockData

		preds []*bb

		vars    map[int]ir.Expr
		pending map[int]ir.Expr

		sealed bool
	}

	funCtx struct {
		f    *ir.Func
		fs   *funcScope
		sigs map[string]Sig

		blocks []*bb
	}

	// BuildBug is panicked on builder invariant violations.
	// These are lowering defects, not user errors; earlier stages
	// guarantee the input is well formed.
	BuildBug struct {
		Msg string
	}
)

// Compile lowers every function of the unit to basic-block IR.
// Signatures are collected by Analyze before any body is lowered,
// so bodies are independent and lowered in parallel.
func (c *Front) Compile(ctx context.Context) (_ *ir.Package, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "front: compile unit", "name", c.prog.Name)
	defer tr.Finish("err", &err)

	p := &ir.Package{
		Path:  c.prog.Name,
		Funcs: make([]*ir.Func, len(c.prog.Funcs)),
	}

	g, ctx := errgroup.WithContext(ctx)

	for i, fn := range c.prog.Funcs {
		i, fn := i, fn

		g.Go(func() error {
			f, err := c.compileFunc(ctx, fn)
			if err != nil {
				return err
			}

			p.Funcs[i] = f

			return nil
		})
	}

	err = g.Wait()
	if err != nil {
		return nil, err
	}

	return p, nil
}

func (c *Front) compileFunc(ctx context.Context, fn *ast.Func) (_ *ir.Func, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compile function", "name", fn.Name)
	defer tr.Finish("err", &err)

	fs, ok := c.res[fn]
	if !ok {
		panic(BuildBug{Msg: "unresolved function: " + fn.Name})
	}

	f := &ir.Func{
		Name: fn.Name,
		Out:  len(fn.Out),
	}

	cc := &funCtx{
		f:    f,
		fs:   fs,
		sigs: c.sigs,
	}

	entry := cc.newSealed()
	f.Entry = entry.id

	for i := range fn.In {
		id := cc.add(entry, ir.Param{Index: i})
		f.In = append(f.In, id)

		cc.write(entry, fs.ins[i], id)
	}

	// return slots start out as zero and behave as ordinary variables
	zero := cc.add(entry, ir.Imm(0))

	for _, slot := range fs.outs {
		cc.write(entry, slot, zero)
	}

	end := cc.block(ctx, entry, fn.Body)

	if end != nil {
		// fell off the end: return the slots' current values
		out := make([]ir.Expr, len(fs.outs))

		for i, slot := range fs.outs {
			out[i] = cc.read(end, slot)
		}

		cc.term(end, ir.Ret{Out: out})
	}

	for _, b := range cc.blocks {
		if !b.sealed {
			panic(BuildBug{Msg: fmt.Sprintf("unsealed block b%d", b.id)})
		}

		if b.data.Term == nil {
			panic(BuildBug{Msg: fmt.Sprintf("block b%d has no terminator", b.id)})
		}
	}

	tr.Printw("compiled", "blocks", len(f.Blocks), "exprs", len(f.Exprs))

	return f, nil
}

func (c *funCtx) block(ctx context.Context, b *bb, blk *ast.Block) *bb {
	for _, x := range blk.Stmts {
		if b == nil {
			// the rest is dead by construction; nothing is emitted
			break
		}

		b = c.stmt(ctx, b, x)
	}

	return b
}

// stmt lowers one statement into b and returns the block where
// control continues, nil if it cannot.
func (c *funCtx) stmt(ctx context.Context, b *bb, x ast.Stmt) *bb {
	switch x := x.(type) {
	case *ast.Let:
		id := c.expr(ctx, b, x.Init)
		c.write(b, c.fs.lets[x], id)
	case *ast.Assign:
		id := c.expr(ctx, b, x.Rhs)
		c.write(b, c.fs.asgn[x], id)
	case *ast.If:
		return c.lowerIf(ctx, b, x)
	case *ast.While:
		return c.lowerWhile(ctx, b, x)
	case *ast.Return:
		c.lowerReturn(ctx, b, x)
		return nil
	case *ast.ExprStmt:
		c.expr(ctx, b, x.X)
	default:
		panic(BuildBug{Msg: fmt.Sprintf("statement %T", x)})
	}

	return b
}

func (c *funCtx) lowerIf(ctx context.Context, b *bb, x *ast.If) *bb {
	cond := c.expr(ctx, b, x.Cond)

	then := c.newSealed(b)

	if x.Else == nil {
		// no else: false edge goes straight to the join
		join := c.newBlock(b)

		c.term(b, ir.BCond{Expr: cond, Then: then.id, Else: join.id})

		tend := c.block(ctx, then, x.Then)
		if tend != nil {
			c.addEdge(tend, join, ir.B{To: join.id})
		}

		c.seal(join)

		return join
	}

	els := c.newSealed(b)

	c.term(b, ir.BCond{Expr: cond, Then: then.id, Else: els.id})

	tend := c.block(ctx, then, x.Then)

	var eend *bb

	switch e := x.Else.(type) {
	case *ast.Block:
		eend = c.block(ctx, els, e)
	case *ast.If:
		eend = c.lowerIf(ctx, els, e)
	default:
		panic(BuildBug{Msg: fmt.Sprintf("else %T", e)})
	}

	if tend == nil && eend == nil {
		// both arms returned; there is no join
		return nil
	}

	join := c.newBlock()

	for _, end := range []*bb{tend, eend} {
		if end != nil {
			c.addEdge(end, join, ir.B{To: join.id})
		}
	}

	c.seal(join)

	return join
}

func (c *funCtx) lowerWhile(ctx context.Context, b *bb, x *ast.While) *bb {
	// the header is left unsealed until the back-edge is known;
	// reads reaching it get placeholder merges resolved by seal
	head := c.newBlock(b)
	c.term(b, ir.B{To: head.id})

	cond := c.expr(ctx, head, x.Cond)

	body := c.newSealed(head)
	exit := c.newSealed(head)

	c.term(head, ir.BCond{Expr: cond, Then: body.id, Else: exit.id})

	end := c.block(ctx, body, x.Body)
	if end != nil {
		c.addEdge(end, head, ir.B{To: head.id})
	}

	c.seal(head)

	return exit
}

func (c *funCtx) lowerReturn(ctx context.Context, b *bb, x *ast.Return) {
	want := c.f.Out

	if tupleReturn(x, want) {
		call := c.expr(ctx, b, x.Out[0])

		out := make([]ir.Expr, want)
		out[0] = call

		for i := 1; i < want; i++ {
			out[i] = c.add(b, ir.Out{Call: call, Index: i})
		}

		c.term(b, ir.Ret{Out: out})

		return
	}

	if len(x.Out) != want {
		panic(BuildBug{Msg: fmt.Sprintf("return arity %d of %d", len(x.Out), want)})
	}

	out := make([]ir.Expr, len(x.Out))

	for i, e := range x.Out {
		out[i] = c.expr(ctx, b, e)
	}

	c.term(b, ir.Ret{Out: out})
}

func (c *funCtx) expr(ctx context.Context, b *bb, e ast.Expr) ir.Expr {
	switch e := e.(type) {
	case *ast.Num:
		return c.add(b, ir.Imm(e.Value))
	case *ast.Ident:
		slot, ok := c.fs.uses[e]
		if !ok {
			panic(BuildBug{Msg: "unresolved use: " + e.Name})
		}

		return c.read(b, slot)
	case *ast.Neg:
		return c.add(b, ir.Neg{E: c.expr(ctx, b, e.E)})
	case *ast.BinOp:
		l := c.expr(ctx, b, e.L)
		r := c.expr(ctx, b, e.R)

		switch e.Op {
		case "+":
			return c.add(b, ir.Add{L: l, R: r})
		case "-":
			return c.add(b, ir.Sub{L: l, R: r})
		case "*":
			return c.add(b, ir.Mul{L: l, R: r})
		case "/":
			return c.add(b, ir.Div{L: l, R: r})
		default:
			panic(BuildBug{Msg: "op " + string(e.Op)})
		}
	case *ast.CmpOp:
		l := c.expr(ctx, b, e.L)
		r := c.expr(ctx, b, e.R)

		return c.add(b, ir.Cmp{Cond: ir.Cond(e.Op), L: l, R: r})
	case *ast.Call:
		x := ir.Call{
			Func: e.Name,
			In:   make([]ir.Expr, len(e.In)),
		}

		for i, a := range e.In {
			x.In[i] = c.expr(ctx, b, a)
		}

		return c.add(b, x)
	default:
		panic(BuildBug{Msg: fmt.Sprintf("expression %T", e)})
	}
}

func (c *funCtx) newBlock(preds ...*bb) *bb {
	data := &ir.BlockData{}

	b := &bb{
		id:      ir.Block(len(c.f.Blocks)),
		data:    data,
		vars:    make(map[int]ir.Expr),
		pending: make(map[int]ir.Expr),
	}

	c.f.Blocks = append(c.f.Blocks, data)
	c.blocks = append(c.blocks, b)

	for _, p := range preds {
		b.preds = append(b.preds, p)
		data.Prev = append(data.Prev, p.id)
	}

	tlog.V("blocks").Printw("new block", "id", b.id, "prev", data.Prev, "from", loc.Callers(1, 3))

	return b
}

func (c *funCtx) newSealed(preds ...*bb) *bb {
	b := c.newBlock(preds...)
	b.sealed = true

	return b
}

// addEdge records from as a predecessor of to and terminates from.
func (c *funCtx) addEdge(from, to *bb, t any) {
	if to.sealed {
		panic(BuildBug{Msg: fmt.Sprintf("edge b%d -> sealed b%d", from.id, to.id)})
	}

	c.term(from, t)

	to.preds = append(to.preds, from)
	to.data.Prev = append(to.data.Prev, from.id)
}

// seal marks all predecessors of b known and resolves the
// placeholder merges created while it was open.
func (c *funCtx) seal(b *bb) {
	if b.sealed {
		panic(BuildBug{Msg: fmt.Sprintf("block b%d sealed twice", b.id)})
	}

	b.sealed = true

	for _, id := range b.data.Phi {
		slot, ok := b.pendingSlot(id)
		if !ok {
			continue
		}

		phi := make(ir.Phi, 0, len(b.preds))

		for _, p := range b.preds {
			phi = append(phi, ir.PhiBranch{
				Block: p.id,
				Expr:  c.read(p, slot),
			})
		}

		if len(phi) == 0 {
			panic(BuildBug{Msg: fmt.Sprintf("phi %d in b%d has no inputs", id, b.id)})
		}

		c.f.Exprs[id] = phi

		tlog.V("phi").Printw("fix phi", "block", b.id, "id", id, "slot", slot, "phi", phi)
	}

	b.pending = nil
}

func (b *bb) pendingSlot(id ir.Expr) (int, bool) {
	for slot, q := range b.pending {
		if q == id {
			return slot, true
		}
	}

	return 0, false
}

// read returns the current value of slot in b, inserting merges
// at join points as needed.
func (c *funCtx) read(b *bb, slot int) (id ir.Expr) {
	if id, ok := b.vars[slot]; ok {
		return id
	}

	switch {
	case !b.sealed:
		// placeholder; the back-edge value is not known yet
		id = c.addPhi(b, nil)
		b.pending[slot] = id
	case len(b.preds) == 1:
		id = c.read(b.preds[0], slot)
	case len(b.preds) == 0:
		panic(BuildBug{Msg: fmt.Sprintf("read of slot %d in entry b%d", slot, b.id)})
	default:
		// bind a placeholder first: a read over the back-edge of a
		// sealed loop header comes back around to this block and
		// must find the slot bound, or it would recurse forever
		id = c.addPhi(b, nil)
		c.write(b, slot, id)

		return c.readMerge(b, slot, id)
	}

	c.write(b, slot, id)

	return id
}

// readMerge fills the placeholder merge id with the values of slot
// arriving over each predecessor edge. If they all agree and none of
// them came back around to the placeholder itself, the placeholder
// is dropped and the common value is used directly.
func (c *funCtx) readMerge(b *bb, slot int, id ir.Expr) ir.Expr {
	phi := make(ir.Phi, 0, len(b.preds))

	same := ir.Nil
	uniform := true
	self := false

	for _, p := range b.preds {
		q := c.read(p, slot)

		switch {
		case q == id:
			self = true
		case same == ir.Nil:
			same = q
		case q != same:
			uniform = false
		}

		phi = append(phi, ir.PhiBranch{Block: p.id, Expr: q})
	}

	if uniform && !self && same != ir.Nil {
		n := len(b.data.Phi)

		if n == 0 || b.data.Phi[n-1] != id {
			panic(BuildBug{Msg: fmt.Sprintf("merge %d is not the last phi of b%d", id, b.id)})
		}

		b.data.Phi = b.data.Phi[:n-1]
		c.write(b, slot, same)

		return same
	}

	c.f.Exprs[id] = phi

	return id
}

func (c *funCtx) write(b *bb, slot int, id ir.Expr) {
	b.vars[slot] = id
}

func (c *funCtx) add(b *bb, x any) ir.Expr {
	if b.data.Term != nil {
		panic(BuildBug{Msg: fmt.Sprintf("append to terminated b%d", b.id)})
	}

	id := c.f.Alloc(x)
	b.data.Code = append(b.data.Code, id)

	return id
}

func (c *funCtx) addPhi(b *bb, x ir.Phi) ir.Expr {
	id := c.f.Alloc(x)
	b.data.Phi = append(b.data.Phi, id)

	return id
}

func (c *funCtx) term(b *bb, t any) {
	if b.data.Term != nil {
		panic(BuildBug{Msg: fmt.Sprintf("second terminator in b%d", b.id)})
	}

	b.data.Term = t
}

func (e BuildBug) Error() string {
	return "builder invariant: " + e.Msg
}
