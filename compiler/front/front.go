package front

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/joltlang/jolt/compiler/ast"
)

type (
	// Front carries one compilation unit through
	// lexing, parsing, resolution, checking and lowering.
	// It is not restartable; create a new Front per unit.
	Front struct {
		b []byte // all files concatenated

		files []*file

		prog *ast.File

		sigs map[string]Sig
		res  map[*ast.Func]*funcScope
	}

	// Sig is a function signature: parameter and return slot counts.
	// All values are f64, so counts are the whole signature.
	Sig struct {
		In  int
		Out int
	}

	file struct {
		name string
		base int
	}

	// PosError is implemented by all user-facing errors of the package.
	PosError interface {
		error
		Pos() int
	}
)

func New() *Front {
	return &Front{}
}

func (c *Front) AddFile(ctx context.Context, name string, text []byte) {
	f := &file{
		name: name,
		base: len(c.b),
	}

	c.b = append(c.b, text...)

	c.files = append(c.files, f)

	tlog.SpanFromContext(ctx).Printw("add file", "name", name, "base", f.base, "size", len(text))
}

// Prog returns the parsed unit. Valid after Parse.
func (c *Front) Prog() *ast.File {
	return c.prog
}

// Position maps a byte offset in the unit buffer to file, line and column.
// Lines and columns are 1-based.
func (c *Front) Position(pos int) (name string, line, col int) {
	var f *file

	for _, q := range c.files {
		if q.base > pos {
			break
		}

		f = q
	}

	if f == nil {
		return "", 0, 0
	}

	line, col = 1, 1

	for i := f.base; i < pos && i < len(c.b); i++ {
		if c.b[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}

	return f.name, line, col
}

// wrapPos adds human readable position context to typed errors.
func (c *Front) wrapPos(err error) error {
	var pe PosError
	if !errors.As(err, &pe) {
		return err
	}

	name, line, col := c.Position(pe.Pos())

	return errors.Wrap(err, "%v:%d:%d", name, line, col)
}
