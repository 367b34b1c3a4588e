package front

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/joltlang/jolt/compiler/ast"
)

type (
	UnexpectedError struct {
		At    int
		Token Token
		Want  []Token
	}
)

// Parse consumes the unit buffer and produces the AST.
// The grammar needs one token of lookahead at each decision point,
// implemented by peeking at a saved offset and not advancing.
func (c *Front) Parse(ctx context.Context) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "front: parse unit")
	defer tr.Finish("err", &err)

	c.prog = &ast.File{}

	if len(c.files) != 0 {
		c.prog.Name = c.files[0].name
	}

	i := 0

	for {
		tk, tst, _, err := c.next(ctx, i)
		if err != nil {
			return c.wrapPos(err)
		}

		if _, ok := tk.(Eof); ok {
			break
		}

		var fn *ast.Func

		fn, i, err = c.parseFunc(ctx, tst)
		if err != nil {
			return c.wrapPos(errors.Wrap(err, "at pos 0x%x", tst))
		}

		c.prog.Funcs = append(c.prog.Funcs, fn)

		tr.Printw("func", "name", fn.Name, "in", len(fn.In), "out", len(fn.Out))
	}

	return nil
}

func (c *Front) parseFunc(ctx context.Context, st int) (fn *ast.Func, i int, err error) {
	i, err = c.expect(ctx, st, Keyword("fn"))
	if err != nil {
		return nil, i, err
	}

	tk, tst, i, err := c.next(ctx, i)
	if err != nil {
		return nil, i, err
	}

	name, ok := tk.(Ident)
	if !ok {
		return nil, i, NewUnexpected(tst, tk, Ident(""))
	}

	in, i, err := c.parseParams(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "params")
	}

	i, err = c.expect(ctx, i, Punct("->"))
	if err != nil {
		return nil, i, err
	}

	out, i, err := c.parseParams(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "return params")
	}

	if len(out) == 0 {
		return nil, i, errors.New("at least one named return slot required")
	}

	body, i, err := c.parseBlock(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "body")
	}

	fn = &ast.Func{
		Base: ast.Base{Pos: st, End: i},
		Name: string(name),
		In:   in,
		Out:  out,
		Body: body,
	}

	return fn, i, nil
}

func (c *Front) parseParams(ctx context.Context, st int) (ps []ast.Param, i int, err error) {
	i, err = c.expect(ctx, st, Punct("("))
	if err != nil {
		return nil, i, err
	}

	for {
		tk, tst, j, err := c.next(ctx, i)
		if err != nil {
			return nil, i, err
		}

		if tk == Punct(")") {
			return ps, j, nil
		}

		if len(ps) != 0 {
			if tk != Punct(",") {
				return nil, i, NewUnexpected(tst, tk, Punct(","), Punct(")"))
			}

			tk, tst, j, err = c.next(ctx, j)
			if err != nil {
				return nil, i, err
			}
		}

		name, ok := tk.(Ident)
		if !ok {
			return nil, i, NewUnexpected(tst, tk, Ident(""))
		}

		ps = append(ps, ast.Param{
			Base: ast.Base{Pos: tst, End: j},
			Name: string(name),
		})

		i = j
	}
}

func (c *Front) parseBlock(ctx context.Context, st int) (b *ast.Block, i int, err error) {
	i, err = c.expect(ctx, st, Punct("{"))
	if err != nil {
		return nil, i, err
	}

	b = &ast.Block{
		Base: ast.Base{Pos: st},
	}

	for {
		tk, tst, j, err := c.next(ctx, i)
		if err != nil {
			return nil, i, err
		}

		if tk == Punct("}") {
			b.End = j
			return b, j, nil
		}

		if _, ok := tk.(Eof); ok {
			return nil, i, NewUnexpected(tst, tk, Punct("}"))
		}

		var x ast.Stmt

		x, i, err = c.parseStmt(ctx, i)
		if err != nil {
			return nil, i, err
		}

		b.Stmts = append(b.Stmts, x)
	}
}

func (c *Front) parseStmt(ctx context.Context, st int) (x ast.Stmt, i int, err error) {
	tk, tst, i, err := c.next(ctx, st)
	if err != nil {
		return nil, i, err
	}

	switch tk := tk.(type) {
	case Keyword:
		switch tk {
		case "let":
			return c.parseLet(ctx, tst, i)
		case "if":
			return c.parseIf(ctx, tst, i)
		case "while":
			return c.parseWhile(ctx, tst, i)
		case "return":
			return c.parseReturn(ctx, tst, i)
		default:
			return nil, i, NewUnexpected(tst, tk, Keyword("let"), Keyword("if"), Keyword("while"), Keyword("return"))
		}
	case Ident:
		tk2, _, j, err := c.next(ctx, i)
		if err != nil {
			return nil, i, err
		}

		if tk2 == Punct("=") {
			rhs, i, err := c.parseExpr(ctx, j)
			if err != nil {
				return nil, i, errors.Wrap(err, "assignment rhs")
			}

			i, err = c.expect(ctx, i, Punct(";"))
			if err != nil {
				return nil, i, err
			}

			return &ast.Assign{
				Base: ast.Base{Pos: tst, End: i},
				Name: string(tk),
				Rhs:  rhs,
			}, i, nil
		}

		return c.parseExprStmt(ctx, tst)
	default:
		return c.parseExprStmt(ctx, tst)
	}
}

func (c *Front) parseLet(ctx context.Context, st, vst int) (x ast.Stmt, i int, err error) {
	tk, tst, i, err := c.next(ctx, vst)
	if err != nil {
		return nil, i, err
	}

	name, ok := tk.(Ident)
	if !ok {
		return nil, i, NewUnexpected(tst, tk, Ident(""))
	}

	i, err = c.expect(ctx, i, Punct("="))
	if err != nil {
		return nil, i, err
	}

	init, i, err := c.parseExpr(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "initializer")
	}

	i, err = c.expect(ctx, i, Punct(";"))
	if err != nil {
		return nil, i, err
	}

	return &ast.Let{
		Base: ast.Base{Pos: st, End: i},
		Name: string(name),
		Init: init,
	}, i, nil
}

func (c *Front) parseIf(ctx context.Context, st, vst int) (x ast.Stmt, i int, err error) {
	cond, i, err := c.parseExpr(ctx, vst)
	if err != nil {
		return nil, i, errors.Wrap(err, "if cond")
	}

	then, i, err := c.parseBlock(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "then")
	}

	f := &ast.If{
		Base: ast.Base{Pos: st},
		Cond: cond,
		Then: then,
	}

	tk, _, j, err := c.next(ctx, i)
	if err != nil {
		return nil, i, err
	}

	if tk != Keyword("else") {
		f.End = i
		return f, i, nil
	}

	tk, tst, k, err := c.next(ctx, j)
	if err != nil {
		return nil, i, err
	}

	switch {
	case tk == Keyword("if"):
		f.Else, i, err = c.parseIf(ctx, tst, k)
	case tk == Punct("{"):
		f.Else, i, err = c.parseBlock(ctx, tst)
	default:
		return nil, i, NewUnexpected(tst, tk, Keyword("if"), Punct("{"))
	}

	if err != nil {
		return nil, i, errors.Wrap(err, "else")
	}

	f.End = i

	return f, i, nil
}

func (c *Front) parseWhile(ctx context.Context, st, vst int) (x ast.Stmt, i int, err error) {
	cond, i, err := c.parseExpr(ctx, vst)
	if err != nil {
		return nil, i, errors.Wrap(err, "while cond")
	}

	body, i, err := c.parseBlock(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "body")
	}

	return &ast.While{
		Base: ast.Base{Pos: st, End: i},
		Cond: cond,
		Body: body,
	}, i, nil
}

func (c *Front) parseReturn(ctx context.Context, st, vst int) (x ast.Stmt, i int, err error) {
	r := &ast.Return{
		Base: ast.Base{Pos: st},
	}

	tk, _, j, err := c.next(ctx, vst)
	if err != nil {
		return nil, i, err
	}

	if tk == Punct(";") {
		r.End = j
		return r, j, nil
	}

	i = vst

	for {
		var e ast.Expr

		e, i, err = c.parseExpr(ctx, i)
		if err != nil {
			return nil, i, errors.Wrap(err, "return value")
		}

		r.Out = append(r.Out, e)

		tk, tst, j, err := c.next(ctx, i)
		if err != nil {
			return nil, i, err
		}

		switch tk {
		case Punct(","):
			i = j
			continue
		case Punct(";"):
			r.End = j
			return r, j, nil
		default:
			return nil, i, NewUnexpected(tst, tk, Punct(","), Punct(";"))
		}
	}
}

func (c *Front) parseExprStmt(ctx context.Context, st int) (x ast.Stmt, i int, err error) {
	e, i, err := c.parseExpr(ctx, st)
	if err != nil {
		return nil, i, err
	}

	i, err = c.expect(ctx, i, Punct(";"))
	if err != nil {
		return nil, i, err
	}

	return &ast.ExprStmt{
		Base: ast.Base{Pos: st, End: i},
		X:    e,
	}, i, nil
}

// Expressions use precedence climbing: comparisons bind loosest,
// then + -, then * /, unary minus tightest. Parens override.

func (c *Front) parseExpr(ctx context.Context, st int) (x ast.Expr, i int, err error) {
	return c.parseCmp(ctx, st)
}

func (c *Front) parseCmp(ctx context.Context, st int) (x ast.Expr, i int, err error) {
	x, i, err = c.parseSum(ctx, st)
	if err != nil {
		return nil, i, err
	}

	for {
		tk, tst, j, err := c.next(ctx, i)
		if err != nil {
			return nil, i, err
		}

		p, ok := tk.(Punct)
		if !ok {
			return x, i, nil
		}

		switch p {
		case "==", "!=", "<", "<=", ">", ">=":
		default:
			return x, i, nil
		}

		r, j, err := c.parseSum(ctx, j)
		if err != nil {
			return nil, j, errors.Wrap(err, "%v right", p)
		}

		x = &ast.CmpOp{
			Base: ast.Base{Pos: tst, End: j},
			Op:   ast.Op(p),
			L:    x,
			R:    r,
		}

		i = j
	}
}

func (c *Front) parseSum(ctx context.Context, st int) (x ast.Expr, i int, err error) {
	x, i, err = c.parseProd(ctx, st)
	if err != nil {
		return nil, i, err
	}

	for {
		tk, tst, j, err := c.next(ctx, i)
		if err != nil {
			return nil, i, err
		}

		if tk != Punct("+") && tk != Punct("-") {
			return x, i, nil
		}

		r, j, err := c.parseProd(ctx, j)
		if err != nil {
			return nil, j, errors.Wrap(err, "%v right", tk)
		}

		x = &ast.BinOp{
			Base: ast.Base{Pos: tst, End: j},
			Op:   ast.Op(tk.(Punct)),
			L:    x,
			R:    r,
		}

		i = j
	}
}

func (c *Front) parseProd(ctx context.Context, st int) (x ast.Expr, i int, err error) {
	x, i, err = c.parseUnary(ctx, st)
	if err != nil {
		return nil, i, err
	}

	for {
		tk, tst, j, err := c.next(ctx, i)
		if err != nil {
			return nil, i, err
		}

		if tk != Punct("*") && tk != Punct("/") {
			return x, i, nil
		}

		r, j, err := c.parseUnary(ctx, j)
		if err != nil {
			return nil, j, errors.Wrap(err, "%v right", tk)
		}

		x = &ast.BinOp{
			Base: ast.Base{Pos: tst, End: j},
			Op:   ast.Op(tk.(Punct)),
			L:    x,
			R:    r,
		}

		i = j
	}
}

func (c *Front) parseUnary(ctx context.Context, st int) (x ast.Expr, i int, err error) {
	tk, tst, j, err := c.next(ctx, st)
	if err != nil {
		return nil, j, err
	}

	if tk == Punct("-") {
		e, i, err := c.parseUnary(ctx, j)
		if err != nil {
			return nil, i, err
		}

		return &ast.Neg{
			Base: ast.Base{Pos: tst, End: i},
			E:    e,
		}, i, nil
	}

	return c.parsePrimary(ctx, st)
}

func (c *Front) parsePrimary(ctx context.Context, st int) (x ast.Expr, i int, err error) {
	tk, tst, i, err := c.next(ctx, st)
	if err != nil {
		return nil, i, err
	}

	switch tk := tk.(type) {
	case Number:
		v, err := strconv.ParseFloat(string(tk), 64)
		if err != nil {
			return nil, i, errors.Wrap(err, "parse number")
		}

		return &ast.Num{
			Base:  ast.Base{Pos: tst, End: i},
			Value: v,
		}, i, nil
	case Ident:
		tk2, _, j, err := c.next(ctx, i)
		if err != nil {
			return nil, i, err
		}

		if tk2 != Punct("(") {
			return &ast.Ident{
				Base: ast.Base{Pos: tst, End: i},
				Name: string(tk),
			}, i, nil
		}

		return c.parseCall(ctx, tst, string(tk), j)
	case Punct:
		if tk == "(" {
			x, i, err = c.parseExpr(ctx, i)
			if err != nil {
				return nil, i, err
			}

			i, err = c.expect(ctx, i, Punct(")"))
			if err != nil {
				return nil, i, err
			}

			return x, i, nil
		}
	}

	return nil, i, NewUnexpected(tst, tk, Number(""), Ident(""), Punct("("))
}

func (c *Front) parseCall(ctx context.Context, st int, name string, vst int) (x ast.Expr, i int, err error) {
	call := &ast.Call{
		Base: ast.Base{Pos: st},
		Name: name,
	}

	i = vst

	tk, _, j, err := c.next(ctx, i)
	if err != nil {
		return nil, i, err
	}

	if tk == Punct(")") {
		call.End = j
		return call, j, nil
	}

	for {
		var a ast.Expr

		a, i, err = c.parseExpr(ctx, i)
		if err != nil {
			return nil, i, errors.Wrap(err, "call arg")
		}

		call.In = append(call.In, a)

		tk, tst, j, err := c.next(ctx, i)
		if err != nil {
			return nil, i, err
		}

		switch tk {
		case Punct(","):
			i = j
			continue
		case Punct(")"):
			call.End = j
			return call, j, nil
		default:
			return nil, i, NewUnexpected(tst, tk, Punct(","), Punct(")"))
		}
	}
}

func (c *Front) expect(ctx context.Context, st int, want Token) (i int, err error) {
	tk, tst, i, err := c.next(ctx, st)
	if err != nil {
		return i, err
	}

	if tk != want {
		return i, NewUnexpected(tst, tk, want)
	}

	return i, nil
}

func NewUnexpected(at int, got Token, want ...Token) error {
	return UnexpectedError{
		At:    at,
		Token: got,
		Want:  want,
	}
}

func (e UnexpectedError) Error() string {
	l := make([]string, len(e.Want))

	for i, w := range e.Want {
		switch w := w.(type) {
		case Punct, Keyword:
			l[i] = fmt.Sprintf("%q", w)
		default:
			l[i] = fmt.Sprintf("%T", w)
		}
	}

	return fmt.Sprintf("unexpected token: %q (%[1]T) want: %v", e.Token, strings.Join(l, ", "))
}

func (e UnexpectedError) Pos() int { return e.At }
