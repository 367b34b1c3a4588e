package ir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDump(t *testing.T) {
	f := &Func{Name: "double", Out: 1}

	b := &BlockData{}
	f.Blocks = append(f.Blocks, b)

	p := f.Alloc(Param{Index: 0})
	f.In = append(f.In, p)
	b.Code = append(b.Code, p)

	two := f.Alloc(Imm(2))
	b.Code = append(b.Code, two)

	r := f.Alloc(Mul{L: p, R: two})
	b.Code = append(b.Code, r)

	b.Term = Ret{Out: []Expr{r}}

	pkg := &Package{Path: "ir_test", Funcs: []*Func{f}}

	require.Same(t, f, pkg.Func("double"))
	assert.Nil(t, pkg.Func("triple"))

	listing := string(Dump(nil, pkg))
	t.Logf("listing:\n%s", listing)

	for _, want := range []string{
		"func double",
		"b0:",
		"param 0",
		"imm 2",
		"mul 0 1",
		"ret",
	} {
		assert.True(t, strings.Contains(listing, want), "missing %q", want)
	}
}
