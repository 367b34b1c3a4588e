package front

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyzeText(t *testing.T, text string) (*Front, error) {
	t.Helper()

	ctx := context.Background()

	c := New()
	c.AddFile(ctx, "analyze_test", []byte(text))

	err := c.Parse(ctx)
	require.NoError(t, err)

	err = c.Analyze(ctx)

	return c, err
}

func TestAnalyzeSignatures(t *testing.T) {
	c, err := analyzeText(t, `
fn f(a, b) -> (r) {
	r = g(a) + b;
}

fn g(x) -> (lo, hi) {
	lo = x;
	hi = x + 1;
}
`)
	require.NoError(t, err)

	assert.Equal(t, Sig{In: 2, Out: 1}, c.sigs["f"])
	assert.Equal(t, Sig{In: 1, Out: 2}, c.sigs["g"])
}

func TestAnalyzeSlots(t *testing.T) {
	c, err := analyzeText(t, `
fn f(a, b) -> (r) {
	let t = a;
	a = b;
	b = t;
	r = a - b;
}
`)
	require.NoError(t, err)

	fn := c.prog.Funcs[0]
	fs := c.res[fn]

	require.NotNil(t, fs)
	assert.Equal(t, []int{0, 1}, fs.ins)
	assert.Equal(t, []int{2}, fs.outs)
	assert.Equal(t, 4, fs.nslots)
}

func TestAnalyzeShadowing(t *testing.T) {
	// a let in a nested block may reuse an outer name
	_, err := analyzeText(t, `
fn f(a) -> (r) {
	if a > 0 {
		let a = 1;
		r = a;
	}
}
`)
	assert.NoError(t, err)

	// but not in the frame that declared it
	_, err = analyzeText(t, `
fn f(a) -> (r) {
	let a = 1;
}
`)
	var re RedeclaredError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "a", re.Name)
}

func TestAnalyzeBlockScope(t *testing.T) {
	// names declared in a block do not escape it
	_, err := analyzeText(t, `
fn f(a) -> (r) {
	if a > 0 {
		let t = a;
	}

	r = t;
}
`)
	var ue UnresolvedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "t", ue.Name)
}

func TestAnalyzeErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		text string
		want error
	}{
		{"undefined use", `fn f(a) -> (r) { r = q; }`, UnresolvedError{}},
		{"undefined assign", `fn f(a) -> (r) { q = a; }`, UnresolvedError{}},
		{"redeclared param", `fn f(a, a) -> (r) { }`, RedeclaredError{}},
		{"redeclared func", "fn f(a) -> (r) { }\nfn f(b) -> (r) { }", RedeclaredError{}},
		{"return arity", `fn f(a) -> (lo, hi) { return a; }`, ArityError{}},
		{"return too many", `fn f(a) -> (r) { return a, a; }`, ArityError{}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := analyzeText(t, tc.text)
			require.Error(t, err)

			switch tc.want.(type) {
			case UnresolvedError:
				var e UnresolvedError
				assert.ErrorAs(t, err, &e)
			case RedeclaredError:
				var e RedeclaredError
				assert.ErrorAs(t, err, &e)
			case ArityError:
				var e ArityError
				assert.ErrorAs(t, err, &e)
			}

			t.Logf("err: %v", err)
		})
	}
}

func TestAnalyzeTupleReturn(t *testing.T) {
	// return f(...) forwards both results; not an arity error
	_, err := analyzeText(t, `
fn pair(x) -> (lo, hi) {
	lo = x;
	hi = x + 1;
}

fn f(x) -> (lo, hi) {
	return pair(x);
}
`)
	assert.NoError(t, err)
}

func TestAnalyzeErrorPosition(t *testing.T) {
	_, err := analyzeText(t, "fn f(a) -> (r) {\n\tr = q;\n}\n")
	require.Error(t, err)

	assert.Contains(t, err.Error(), "analyze_test:2:6")
}
