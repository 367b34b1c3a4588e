package front

import (
	"context"
	"fmt"
	"strings"

	"tlog.app/go/errors"

	"github.com/joltlang/jolt/compiler/ast"
)

type (
	// Type of an expression. All data is f64; Bool only exists
	// between a comparison and the branch consuming it, and Tuple
	// only as the result of a multi-result call.
	Type struct {
		Kind Kind
		Len  int // tuple arity
	}

	Kind int

	TypeMismatchError struct {
		At       int
		Expected Type
		Actual   Type
	}

	TupleLengthMismatchError struct {
		At       int
		Expected int
		Actual   int
	}

	UnknownFunctionError struct {
		At   int
		Name string
	}
)

const (
	Void Kind = iota
	Bool
	Float
	Tuple
)

var (
	tVoid  = Type{Kind: Void}
	tBool  = Type{Kind: Bool}
	tFloat = Type{Kind: Float}
)

func (c *Front) checkFunc(ctx context.Context, fn *ast.Func) (err error) {
	for _, x := range fn.Body.Stmts {
		err = c.checkStmt(ctx, fn, x)
		if err != nil {
			return err
		}
	}

	return nil
}

func (c *Front) checkStmt(ctx context.Context, fn *ast.Func, x ast.Stmt) (err error) {
	switch x := x.(type) {
	case *ast.Let:
		return c.checkValue(ctx, x.Init)
	case *ast.Assign:
		return c.checkValue(ctx, x.Rhs)
	case *ast.If:
		err = c.checkCond(ctx, x.Cond)
		if err != nil {
			return err
		}

		err = c.checkBlock(ctx, fn, x.Then)
		if err != nil {
			return err
		}

		switch e := x.Else.(type) {
		case nil:
			return nil
		case *ast.Block:
			return c.checkBlock(ctx, fn, e)
		case *ast.If:
			return c.checkStmt(ctx, fn, e)
		default:
			panic(fmt.Sprintf("%T", e))
		}
	case *ast.While:
		err = c.checkCond(ctx, x.Cond)
		if err != nil {
			return err
		}

		return c.checkBlock(ctx, fn, x.Body)
	case *ast.Return:
		if tupleReturn(x, len(fn.Out)) {
			call := x.Out[0].(*ast.Call)

			tp, err := c.typeOf(ctx, call)
			if err != nil {
				return err
			}

			if tp.Kind != Tuple || tp.Len != len(fn.Out) {
				return TupleLengthMismatchError{At: call.Pos, Expected: len(fn.Out), Actual: tupleLen(tp)}
			}

			return nil
		}

		for _, e := range x.Out {
			err = c.checkValue(ctx, e)
			if err != nil {
				return err
			}
		}

		return nil
	case *ast.ExprStmt:
		_, err = c.typeOf(ctx, x.X)
		return err
	default:
		panic(fmt.Sprintf("%T", x))
	}
}

func (c *Front) checkBlock(ctx context.Context, fn *ast.Func, b *ast.Block) (err error) {
	for _, x := range b.Stmts {
		err = c.checkStmt(ctx, fn, x)
		if err != nil {
			return err
		}
	}

	return nil
}

// checkValue requires e to be a single float.
func (c *Front) checkValue(ctx context.Context, e ast.Expr) error {
	tp, err := c.typeOf(ctx, e)
	if err != nil {
		return err
	}

	if tp != tFloat {
		return TypeMismatchError{At: exprPos(e), Expected: tFloat, Actual: tp}
	}

	return nil
}

// checkCond requires e to be a comparison.
func (c *Front) checkCond(ctx context.Context, e ast.Expr) error {
	tp, err := c.typeOf(ctx, e)
	if err != nil {
		return err
	}

	if tp != tBool {
		return TypeMismatchError{At: exprPos(e), Expected: tBool, Actual: tp}
	}

	return nil
}

func (c *Front) typeOf(ctx context.Context, e ast.Expr) (Type, error) {
	switch e := e.(type) {
	case *ast.Num, *ast.Ident:
		return tFloat, nil
	case *ast.Neg:
		err := c.checkValue(ctx, e.E)
		if err != nil {
			return tVoid, err
		}

		return tFloat, nil
	case *ast.BinOp:
		err := c.checkValue(ctx, e.L)
		if err != nil {
			return tVoid, errors.Wrap(err, "%v left", e.Op)
		}

		err = c.checkValue(ctx, e.R)
		if err != nil {
			return tVoid, errors.Wrap(err, "%v right", e.Op)
		}

		return tFloat, nil
	case *ast.CmpOp:
		err := c.checkValue(ctx, e.L)
		if err != nil {
			return tVoid, errors.Wrap(err, "%v left", e.Op)
		}

		err = c.checkValue(ctx, e.R)
		if err != nil {
			return tVoid, errors.Wrap(err, "%v right", e.Op)
		}

		return tBool, nil
	case *ast.Call:
		sig, ok := c.sigs[e.Name]
		if !ok {
			return tVoid, UnknownFunctionError{At: e.Pos, Name: e.Name}
		}

		if len(e.In) != sig.In {
			return tVoid, TupleLengthMismatchError{At: e.Pos, Expected: sig.In, Actual: len(e.In)}
		}

		for _, a := range e.In {
			err := c.checkValue(ctx, a)
			if err != nil {
				return tVoid, errors.Wrap(err, "call arg")
			}
		}

		switch sig.Out {
		case 1:
			return tFloat, nil
		default:
			return Type{Kind: Tuple, Len: sig.Out}, nil
		}
	default:
		panic(fmt.Sprintf("%T", e))
	}
}

func exprPos(e ast.Expr) int {
	switch e := e.(type) {
	case *ast.Num:
		return e.Pos
	case *ast.Ident:
		return e.Pos
	case *ast.Neg:
		return e.Pos
	case *ast.BinOp:
		return e.Pos
	case *ast.CmpOp:
		return e.Pos
	case *ast.Call:
		return e.Pos
	default:
		panic(fmt.Sprintf("%T", e))
	}
}

func tupleLen(tp Type) int {
	if tp.Kind == Tuple {
		return tp.Len
	}

	return 1
}

func (t Type) String() string {
	switch t.Kind {
	case Void:
		return "void"
	case Bool:
		return "bool"
	case Float:
		return "float"
	case Tuple:
		return "(" + strings.Repeat("float, ", t.Len) + ")"
	default:
		panic(t.Kind)
	}
}

func (e TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch; expected %v, found %v", e.Expected, e.Actual)
}

func (e TypeMismatchError) Pos() int { return e.At }

func (e TupleLengthMismatchError) Error() string {
	return fmt.Sprintf("tuple length mismatch; expected %d found %d", e.Expected, e.Actual)
}

func (e TupleLengthMismatchError) Pos() int { return e.At }

func (e UnknownFunctionError) Error() string {
	return fmt.Sprintf("function %q does not exist", e.Name)
}

func (e UnknownFunctionError) Pos() int { return e.At }
