package compiler

import (
	"context"
	"os"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/joltlang/jolt/compiler/front"
	"github.com/joltlang/jolt/compiler/ir"
)

func CompileFile(ctx context.Context, name string) (*ir.Package, error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	return Compile(ctx, name, text)
}

// Compile runs one unit through the whole front end and returns the
// finished IR ready for a code generation backend. The first error
// of any stage aborts the unit; no partial IR is produced.
func Compile(ctx context.Context, name string, text []byte) (*ir.Package, error) {
	st := front.New()

	st.AddFile(ctx, name, text)

	err := st.Parse(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "parse text")
	}

	err = st.Analyze(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "analyze")
	}

	p, err := st.Compile(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "compile")
	}

	return p, nil
}
