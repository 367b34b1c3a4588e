package front

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joltlang/jolt/compiler/ir"
)

func compileText(t *testing.T, text string) *ir.Package {
	t.Helper()

	ctx := context.Background()

	c := New()
	c.AddFile(ctx, "compile_test", []byte(text))

	err := c.Parse(ctx)
	require.NoError(t, err)

	err = c.Analyze(ctx)
	require.NoError(t, err)

	p, err := c.Compile(ctx)
	require.NoError(t, err)

	return p
}

// checkFunc verifies the structural invariants of the produced IR:
// every block terminated, edges and recorded predecessors agree,
// phis are non-empty and reference predecessor blocks.
func checkIR(t *testing.T, f *ir.Func) {
	t.Helper()

	preds := make([][]ir.Block, len(f.Blocks))

	for bid, blk := range f.Blocks {
		switch x := blk.Term.(type) {
		case ir.B:
			preds[x.To] = append(preds[x.To], ir.Block(bid))
		case ir.BCond:
			preds[x.Then] = append(preds[x.Then], ir.Block(bid))
			preds[x.Else] = append(preds[x.Else], ir.Block(bid))
		case ir.Ret:
			assert.Len(t, x.Out, f.Out, "b%d: ret arity", bid)
		default:
			t.Errorf("b%d: bad terminator %T", bid, x)
		}
	}

	for bid, blk := range f.Blocks {
		assert.ElementsMatch(t, preds[bid], blk.Prev, "b%d: predecessors", bid)

		if bid != int(f.Entry) {
			assert.NotEmpty(t, preds[bid], "b%d: unreachable", bid)
		}

		for _, id := range blk.Phi {
			phi, ok := f.Exprs[id].(ir.Phi)
			require.True(t, ok, "b%d: %d is not a phi", bid, id)
			require.NotEmpty(t, phi, "b%d: phi %d", bid, id)

			for _, br := range phi {
				assert.Contains(t, blk.Prev, br.Block, "b%d: phi %d input from non-predecessor", bid, id)
				assert.Greater(t, int(br.Expr), int(ir.Nil), "b%d: phi %d input unset", bid, id)
			}
		}
	}
}

func TestCompileStraightLine(t *testing.T) {
	p := compileText(t, `
fn f(a, b) -> (r) {
	r = a * b + 1;
}
`)

	f := p.Func("f")
	require.NotNil(t, f)

	checkIR(t, f)

	assert.Len(t, f.Blocks, 1)
	assert.Len(t, f.In, 2)
	assert.Equal(t, 1, f.Out)

	ret, ok := f.Blocks[f.Entry].Term.(ir.Ret)
	require.True(t, ok)
	require.Len(t, ret.Out, 1)

	_, ok = f.Exprs[ret.Out[0]].(ir.Add)
	assert.True(t, ok)
}

func TestCompileImplicitReturn(t *testing.T) {
	// untouched slots return their initial zero
	p := compileText(t, `
fn f(a) -> (lo, hi) {
	hi = a;
}
`)

	f := p.Func("f")
	checkIR(t, f)

	ret := f.Blocks[f.Entry].Term.(ir.Ret)
	require.Len(t, ret.Out, 2)

	imm, ok := f.Exprs[ret.Out[0]].(ir.Imm)
	require.True(t, ok)
	assert.Equal(t, ir.Imm(0), imm)

	_, ok = f.Exprs[ret.Out[1]].(ir.Param)
	assert.True(t, ok)
}

func TestCompileIfJoin(t *testing.T) {
	p := compileText(t, `
fn f(a) -> (r) {
	if a < 0 {
		r = 0 - a;
	} else {
		r = a;
	}
}
`)

	f := p.Func("f")
	checkIR(t, f)

	// entry, then, else, join
	require.Len(t, f.Blocks, 4)

	ret, ok := f.Blocks[3].Term.(ir.Ret)
	require.True(t, ok)

	phi, ok := f.Exprs[ret.Out[0]].(ir.Phi)
	require.True(t, ok)
	assert.Len(t, phi, 2)
}

func TestCompileIfNoMerge(t *testing.T) {
	// a variable assigned the same value on both paths needs no phi
	p := compileText(t, `
fn f(a) -> (r) {
	r = a;

	if a < 0 {
		let unused = 1;
	}
}
`)

	f := p.Func("f")
	checkIR(t, f)

	for _, blk := range f.Blocks {
		assert.Empty(t, blk.Phi)
	}
}

func TestCompileBothArmsReturn(t *testing.T) {
	p := compileText(t, `
fn f(a) -> (r) {
	if a < 0 {
		return 0 - a;
	} else {
		return a;
	}
}
`)

	f := p.Func("f")
	checkIR(t, f)

	// no join block; both arms end in ret
	require.Len(t, f.Blocks, 3)

	rets := 0

	for _, blk := range f.Blocks {
		if _, ok := blk.Term.(ir.Ret); ok {
			rets++
		}
	}

	assert.Equal(t, 2, rets)
}

func TestCompileDeadCode(t *testing.T) {
	// statements after return produce no blocks or code
	p := compileText(t, `
fn f(a) -> (r) {
	return a;
	r = a + 1;
}
`)

	f := p.Func("f")
	checkIR(t, f)

	assert.Len(t, f.Blocks, 1)
}

func TestCompileLoopPhi(t *testing.T) {
	p := compileText(t, `
fn sum(n) -> (s) {
	let i = 0;

	while i < n {
		s = s + i;
		i = i + 1;
	}
}
`)

	f := p.Func("sum")
	checkIR(t, f)

	// entry, header, body, exit
	require.Len(t, f.Blocks, 4)

	head := f.Blocks[1]
	require.Len(t, head.Prev, 2)

	// i and s are loop-carried; n gets a header merge too,
	// referring to itself over the back-edge
	assert.Len(t, head.Phi, 3)

	for _, id := range head.Phi {
		phi := f.Exprs[id].(ir.Phi)
		assert.Len(t, phi, 2)
	}
}

func TestCompileLoopInvariant(t *testing.T) {
	// n is not modified in the loop; its header phi merges the same
	// value over both edges and refers to itself over the back-edge
	p := compileText(t, `
fn spin(n) -> (r) {
	let i = 0;

	while i < n {
		i = i + 1;
	}

	r = n;
}
`)

	f := p.Func("spin")
	checkIR(t, f)
}

func TestCompileLoopUntouched(t *testing.T) {
	// x is neither read nor written inside the loop; reading it
	// after the loop walks back through the sealed header, which
	// merges the entry value with itself over the back-edge
	p := compileText(t, `
fn hold(n) -> (r) {
	let x = 2;

	while n > 0 {
		n = n - 1;
	}

	r = x;
}
`)

	f := p.Func("hold")
	checkIR(t, f)

	// entry, header, body, exit
	require.Len(t, f.Blocks, 4)

	head := f.Blocks[1]
	require.Len(t, head.Prev, 2)

	// n is loop-carried; x gets a header merge too
	assert.Len(t, head.Phi, 2)

	self := 0

	for _, id := range head.Phi {
		phi := f.Exprs[id].(ir.Phi)
		require.Len(t, phi, 2)

		for _, br := range phi {
			if br.Expr == id {
				self++
			}
		}
	}

	assert.Equal(t, 1, self)
}

func TestCompileLoopUntouchedReturnSlot(t *testing.T) {
	// same shape with the implicit return reading the slot
	p := compileText(t, `
fn keep(n) -> (r) {
	r = 2;

	while n > 0 {
		n = n - 1;
	}
}
`)

	f := p.Func("keep")
	checkIR(t, f)
}

func TestCompileLoopNested(t *testing.T) {
	// i is not touched by the inner loop but is read right after it
	p := compileText(t, `
fn grid(n, m) -> (s) {
	let i = 0;

	while i < n {
		let j = 0;

		while j < m {
			s = s + 1;
			j = j + 1;
		}

		i = i + 1;
	}
}
`)

	f := p.Func("grid")
	checkIR(t, f)
}

func TestCompileTupleForward(t *testing.T) {
	p := compileText(t, `
fn pair(x) -> (lo, hi) {
	lo = x;
	hi = x + 1;
}

fn f(a) -> (lo, hi) {
	return pair(a);
}
`)

	f := p.Func("f")
	require.NotNil(t, f)

	checkIR(t, f)

	ret := f.Blocks[f.Entry].Term.(ir.Ret)
	require.Len(t, ret.Out, 2)

	_, ok := f.Exprs[ret.Out[0]].(ir.Call)
	assert.True(t, ok)

	out, ok := f.Exprs[ret.Out[1]].(ir.Out)
	require.True(t, ok)
	assert.Equal(t, ret.Out[0], out.Call)
	assert.Equal(t, 1, out.Index)
}

func TestCompileAllFuncs(t *testing.T) {
	// bodies compile independently; forward references are fine
	p := compileText(t, `
fn a(x) -> (r) { r = b(x); }
fn b(x) -> (r) { r = c(x); }
fn c(x) -> (r) { r = x; }
`)

	require.Len(t, p.Funcs, 3)

	for _, f := range p.Funcs {
		require.NotNil(t, f)
		checkIR(t, f)
	}
}
