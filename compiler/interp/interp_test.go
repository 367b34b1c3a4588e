package interp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joltlang/jolt/compiler/front"
)

func machine(t *testing.T, text string) *Machine {
	t.Helper()

	ctx := context.Background()

	c := front.New()
	c.AddFile(ctx, "interp_test", []byte(text))

	err := c.Parse(ctx)
	require.NoError(t, err)

	err = c.Analyze(ctx)
	require.NoError(t, err)

	return New(c.Prog())
}

func TestInterp(t *testing.T) {
	ctx := context.Background()

	m := machine(t, `
fn avg(a, b) -> (r) {
	r = (a + b) / 2;
}

fn dup(x) -> (a, b) {
	a = x;
	b = x;
}
`)

	out, err := m.Call(ctx, "avg", 3, 5)
	require.NoError(t, err)
	assert.Equal(t, []float64{4}, out)

	out, err = m.Call(ctx, "dup", 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2}, out)
}

func TestInterpScopes(t *testing.T) {
	ctx := context.Background()

	m := machine(t, `
fn f(a) -> (r) {
	let x = 1;

	if a > 0 {
		let x = 10;
		x = x + 1;
	}

	r = x;
}
`)

	// the inner x shadows; the outer one is untouched
	out, err := m.Call(ctx, "f", 5)
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, out)
}

func TestInterpLoopState(t *testing.T) {
	ctx := context.Background()

	m := machine(t, `
fn swap10(a, b) -> (x, y) {
	x = a;
	y = b;

	let i = 0;

	while i < 9 {
		let t = x;
		x = y;
		y = t;
		i = i + 1;
	}
}
`)

	// nine swaps leave the pair exchanged
	out, err := m.Call(ctx, "swap10", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 1}, out)
}

func TestInterpErrors(t *testing.T) {
	ctx := context.Background()

	m := machine(t, `fn f(a) -> (r) { r = a; }`)

	_, err := m.Call(ctx, "g")
	assert.ErrorContains(t, err, "does not exist")

	_, err = m.Call(ctx, "f")
	assert.ErrorContains(t, err, "takes 1 args")
}

func TestInterpCancel(t *testing.T) {
	m := machine(t, `
fn spin(n) -> (r) {
	while n > 0 {
		r = r + 1;
	}
}
`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Call(ctx, "spin", 1)
	assert.ErrorIs(t, err, context.Canceled)
}
