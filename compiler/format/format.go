// Package format renders the AST back to canonical source form.
package format

import (
	"context"
	"strconv"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"

	"github.com/joltlang/jolt/compiler/ast"
)

func Format(ctx context.Context, b []byte, x any) ([]byte, error) {
	switch x := x.(type) {
	case *ast.File:
		return formatFile(ctx, b, x, 0)
	case *ast.Func:
		return formatFunc(ctx, b, x, 0)
	default:
		return nil, errors.New("unsupported type: %T", x)
	}
}

func formatFile(ctx context.Context, b []byte, x *ast.File, d int) (_ []byte, err error) {
	for i, f := range x.Funcs {
		if i != 0 {
			b = append(b, '\n')
		}

		b, err = formatFunc(ctx, b, f, d)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", f.Name)
		}
	}

	return b, nil
}

func formatFunc(ctx context.Context, b []byte, x *ast.Func, d int) ([]byte, error) {
	b = app(b, d, "fn %v(", x.Name)

	for i, p := range x.In {
		if i != 0 {
			b = append(b, ", "...)
		}

		b = append(b, p.Name...)
	}

	b = append(b, ") -> ("...)

	for i, p := range x.Out {
		if i != 0 {
			b = append(b, ", "...)
		}

		b = append(b, p.Name...)
	}

	b = append(b, ") {\n"...)

	b, err := formatBlock(ctx, b, x.Body, d+1)
	if err != nil {
		return nil, errors.Wrap(err, "body")
	}

	b = app(b, d, "}\n")

	return b, nil
}

func formatBlock(ctx context.Context, b []byte, x *ast.Block, d int) (_ []byte, err error) {
	for _, s := range x.Stmts {
		b, err = formatStmt(ctx, b, s, d)
		if err != nil {
			return nil, err
		}
	}

	return b, nil
}

func formatStmt(ctx context.Context, b []byte, s ast.Stmt, d int) (_ []byte, err error) {
	switch s := s.(type) {
	case *ast.Let:
		b = app(b, d, "let %v = ", s.Name)

		b, err = formatExpr(ctx, b, s.Init)
		if err != nil {
			return nil, errors.Wrap(err, "initializer")
		}

		b = append(b, ";\n"...)
	case *ast.Assign:
		b = app(b, d, "%v = ", s.Name)

		b, err = formatExpr(ctx, b, s.Rhs)
		if err != nil {
			return nil, errors.Wrap(err, "rhs")
		}

		b = append(b, ";\n"...)
	case *ast.If:
		b = app(b, d, "if ")

		b, err = formatIf(ctx, b, s, d)
		if err != nil {
			return nil, err
		}

		b = append(b, '\n')
	case *ast.While:
		b = app(b, d, "while ")

		b, err = formatExpr(ctx, b, s.Cond)
		if err != nil {
			return nil, errors.Wrap(err, "cond")
		}

		b = append(b, " {\n"...)

		b, err = formatBlock(ctx, b, s.Body, d+1)
		if err != nil {
			return nil, errors.Wrap(err, "body")
		}

		b = app(b, d, "}\n")
	case *ast.Return:
		b = app(b, d, "return")

		for i, e := range s.Out {
			if i != 0 {
				b = append(b, ',')
			}

			b = append(b, ' ')

			b, err = formatExpr(ctx, b, e)
			if err != nil {
				return nil, errors.Wrap(err, "return value")
			}
		}

		b = append(b, ";\n"...)
	case *ast.ExprStmt:
		b = app(b, d, "")

		b, err = formatExpr(ctx, b, s.X)
		if err != nil {
			return nil, err
		}

		b = append(b, ";\n"...)
	default:
		return nil, errors.New("unsupported statement: %T", s)
	}

	return b, nil
}

func formatIf(ctx context.Context, b []byte, s *ast.If, d int) (_ []byte, err error) {
	b, err = formatExpr(ctx, b, s.Cond)
	if err != nil {
		return nil, errors.Wrap(err, "cond")
	}

	b = append(b, " {\n"...)

	b, err = formatBlock(ctx, b, s.Then, d+1)
	if err != nil {
		return nil, errors.Wrap(err, "then")
	}

	b = app(b, d, "}")

	switch e := s.Else.(type) {
	case nil:
	case *ast.Block:
		b = append(b, " else {\n"...)

		b, err = formatBlock(ctx, b, e, d+1)
		if err != nil {
			return nil, errors.Wrap(err, "else")
		}

		b = app(b, d, "}")
	case *ast.If:
		b = append(b, " else if "...)

		b, err = formatIf(ctx, b, e, d)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported else: %T", e)
	}

	return b, nil
}

func formatExpr(ctx context.Context, b []byte, e ast.Expr) (_ []byte, err error) {
	switch e := e.(type) {
	case *ast.Num:
		b = strconv.AppendFloat(b, e.Value, 'g', -1, 64)
	case *ast.Ident:
		b = append(b, e.Name...)
	case *ast.Neg:
		b = append(b, '-')

		b, err = formatArg(ctx, b, e.E)
		if err != nil {
			return nil, err
		}
	case *ast.BinOp:
		return formatBin(ctx, b, string(e.Op), e.L, e.R)
	case *ast.CmpOp:
		return formatBin(ctx, b, string(e.Op), e.L, e.R)
	case *ast.Call:
		b = hfmt.Appendf(b, "%v(", e.Name)

		for i, a := range e.In {
			if i != 0 {
				b = append(b, ", "...)
			}

			b, err = formatExpr(ctx, b, a)
			if err != nil {
				return nil, err
			}
		}

		b = append(b, ')')
	default:
		return nil, errors.New("unsupported expression: %T", e)
	}

	return b, nil
}

func formatBin(ctx context.Context, b []byte, op string, l, r ast.Expr) (_ []byte, err error) {
	b, err = formatArg(ctx, b, l)
	if err != nil {
		return nil, err
	}

	b = hfmt.Appendf(b, " %v ", op)

	return formatArg(ctx, b, r)
}

// formatArg parenthesizes compound operands instead of
// reconstructing precedence.
func formatArg(ctx context.Context, b []byte, e ast.Expr) (_ []byte, err error) {
	switch e.(type) {
	case *ast.BinOp, *ast.CmpOp, *ast.Neg:
		b = append(b, '(')

		b, err = formatExpr(ctx, b, e)
		if err != nil {
			return nil, err
		}

		b = append(b, ')')

		return b, nil
	default:
		return formatExpr(ctx, b, e)
	}
}

func app(b []byte, d int, fmt string, args ...any) []byte {
	for i := 0; i < d; i++ {
		b = append(b, '\t')
	}

	return hfmt.Appendf(b, fmt, args...)
}
