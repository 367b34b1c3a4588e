package exec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joltlang/jolt/compiler"
	"github.com/joltlang/jolt/compiler/front"
	"github.com/joltlang/jolt/compiler/interp"
	"github.com/joltlang/jolt/compiler/ir"
)

const src = `
fn abs(x) -> (r) {
	if x < 0 {
		return -x;
	}

	return x;
}

fn sign(x) -> (s) {
	if x < 0 {
		s = -1;
	} else if x > 0 {
		s = 1;
	}
}

fn sum(n) -> (s) {
	let i = 0;

	while i < n {
		s = s + i;
		i = i + 1;
	}
}

fn fib(n) -> (r) {
	if n < 2 {
		return n;
	}

	return fib(n - 1) + fib(n - 2);
}

fn fibi(n) -> (r) {
	let a = 0.0;
	let b = 1.0;

	while n > 0.0 {
		let t = a + b;
		a = b;
		b = t;
		n = n - 1.0;
	}

	return a;
}

// order2 forwards to a function defined later in the unit
fn order2(a, b) -> (lo, hi) {
	return minmax(a, b);
}

fn minmax(a, b) -> (lo, hi) {
	if a < b {
		lo = a;
		hi = b;
	} else {
		lo = b;
		hi = a;
	}
}

fn swapn(a, b, n) -> (x, y) {
	x = a;
	y = b;

	let i = 0;

	while i < n {
		let t = x;
		x = y;
		y = t;
		i = i + 1;
	}
}

fn pow2(n) -> (r) {
	r = 1;

	let i = 0;

	while i < n {
		r = r * 2;
		i = i + 1;
	}
}

// hold and keep read a value the loop never touches
fn hold(n) -> (r) {
	let x = 2;

	while n > 0 {
		n = n - 1;
	}

	r = x;
}

fn keep(n) -> (r) {
	r = 2;

	while n > 0 {
		n = n - 1;
	}
}

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
`

func load(t *testing.T) (*Machine, *interp.Machine) {
	t.Helper()

	ctx := context.Background()

	p, err := compiler.Compile(ctx, "exec_test", []byte(src))
	require.NoError(t, err)

	m := New()

	err = m.Load(ctx, p)
	require.NoError(t, err)

	f := front.New()
	f.AddFile(ctx, "exec_test", []byte(src))

	err = f.Parse(ctx)
	require.NoError(t, err)

	return m, interp.New(f.Prog())
}

func TestMachine(t *testing.T) {
	ctx := context.Background()

	m, ref := load(t)

	for _, tc := range []struct {
		fn  string
		in  []float64
		out []float64
	}{
		{"abs", []float64{-3}, []float64{3}},
		{"abs", []float64{3}, []float64{3}},
		{"abs", []float64{0}, []float64{0}},
		{"sign", []float64{-7}, []float64{-1}},
		{"sign", []float64{0}, []float64{0}},
		{"sign", []float64{2.5}, []float64{1}},
		{"sum", []float64{0}, []float64{0}},
		{"sum", []float64{1}, []float64{0}},
		{"sum", []float64{5}, []float64{10}},
		{"fib", []float64{0}, []float64{0}},
		{"fib", []float64{1}, []float64{1}},
		{"fib", []float64{10}, []float64{55}},
		{"fibi", []float64{0}, []float64{0}},
		{"fibi", []float64{1}, []float64{1}},
		{"fibi", []float64{10}, []float64{55}},
		{"minmax", []float64{3, 7}, []float64{3, 7}},
		{"minmax", []float64{7, 3}, []float64{3, 7}},
		{"order2", []float64{7, 3}, []float64{3, 7}},
		// loop-carried swap: the header merges for x and y feed
		// each other and must be read simultaneously
		{"swapn", []float64{1, 2, 0}, []float64{1, 2}},
		{"swapn", []float64{1, 2, 1}, []float64{2, 1}},
		{"swapn", []float64{1, 2, 6}, []float64{1, 2}},
		{"pow2", []float64{0}, []float64{1}},
		{"pow2", []float64{10}, []float64{1024}},
		{"hold", []float64{0}, []float64{2}},
		{"hold", []float64{1}, []float64{2}},
		{"hold", []float64{5}, []float64{2}},
		{"keep", []float64{0}, []float64{2}},
		{"keep", []float64{5}, []float64{2}},
		{"grid", []float64{0, 3}, []float64{0}},
		{"grid", []float64{2, 3}, []float64{6}},
		{"grid", []float64{3, 0}, []float64{0}},
	} {
		out, err := m.Call(ctx, tc.fn, tc.in...)
		require.NoError(t, err, "%v(%v)", tc.fn, tc.in)
		assert.Equal(t, tc.out, out, "%v(%v)", tc.fn, tc.in)

		want, err := ref.Call(ctx, tc.fn, tc.in...)
		require.NoError(t, err, "%v(%v)", tc.fn, tc.in)
		assert.Equal(t, want, out, "%v(%v): lowered vs tree", tc.fn, tc.in)
	}
}

func TestMachineErrors(t *testing.T) {
	ctx := context.Background()

	m, _ := load(t)

	_, err := m.Call(ctx, "nope")
	assert.Error(t, err)

	_, err = m.Call(ctx, "abs", 1, 2)
	assert.Error(t, err)

	_, err = New().Call(ctx, "abs", 1)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	f := &ir.Func{Name: "broken", Out: 1}
	f.Blocks = append(f.Blocks, &ir.BlockData{})

	err := validate(f)
	assert.ErrorContains(t, err, "no terminator")

	f.Blocks[0].Term = ir.B{To: 5}
	err = validate(f)
	assert.ErrorContains(t, err, "missing")

	id := f.Alloc(ir.Imm(1))
	f.Blocks[0].Term = ir.Ret{Out: []ir.Expr{id, id}}
	err = validate(f)
	assert.ErrorContains(t, err, "ret carries")

	f.Blocks[0].Term = ir.Ret{Out: []ir.Expr{id}}
	err = validate(f)
	assert.NoError(t, err)
}
