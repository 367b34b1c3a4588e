package front

import (
	"context"
	"fmt"

	"tlog.app/go/loc"
	"tlog.app/go/tlog"
)

type (
	Token any

	Keyword string
	Ident   string
	Number  string
	Punct   string

	Eof struct{}

	LexError struct {
		At  int
		Msg string
	}
)

// next returns the token starting at or after st, its start offset
// and the offset just past it. The io never fails; malformed input
// is a LexError. At the end of input the token is Eof.
//
// Lookahead is done by calling next at a saved offset and not
// advancing, so the lexer needs no buffering.
func (c *Front) next(ctx context.Context, st int) (tk Token, tst, i int, err error) {
	if tr := tlog.SpanFromContext(ctx); tr.If("next_token") {
		defer func(st int) {
			tr.Printw("next token", "st", st, "tk", tk, "tst", tst, "i", i, "from", loc.Callers(1, 3))
		}(st)
	}

	b := c.b
	i = st

	for i < len(b) {
		switch {
		case b[i] == ' ' || b[i] == '\t' || b[i] == '\r' || b[i] == '\n':
			i++
			continue
		case b[i] == '/' && i+1 < len(b) && b[i+1] == '/':
			i = skipLine(b, i)
			continue
		}

		break
	}

	tst = i

	if i == len(b) {
		return Eof{}, tst, i, nil
	}

	c0 := b[i]

	switch c0 {
	case '(', ')', '{', '}', ',', ';', '+', '*', '/':
		return Punct(b[i : i+1]), tst, i + 1, nil
	case '-':
		if i+1 < len(b) && b[i+1] == '>' {
			return Punct(b[i : i+2]), tst, i + 2, nil
		}

		return Punct(b[i : i+1]), tst, i + 1, nil
	case '=', '!', '<', '>':
		if i+1 < len(b) && b[i+1] == '=' {
			return Punct(b[i : i+2]), tst, i + 2, nil
		}

		if c0 == '!' {
			return nil, tst, i, LexError{At: tst, Msg: fmt.Sprintf("invalid character: %q", c0)}
		}

		return Punct(b[i : i+1]), tst, i + 1, nil
	}

	switch {
	case c0 == '_' || c0 >= 'a' && c0 <= 'z' || c0 >= 'A' && c0 <= 'Z':
		e := skipIdent(b, i)

		switch string(b[i:e]) {
		case "fn", "let", "if", "else", "while", "return":
			return Keyword(b[i:e]), tst, e, nil
		}

		return Ident(b[i:e]), tst, e, nil
	case c0 >= '0' && c0 <= '9':
		e := skipDigits(b, i)

		if e < len(b) && b[e] == '.' {
			e++

			if e == len(b) || !(b[e] >= '0' && b[e] <= '9') {
				return nil, tst, i, LexError{At: tst, Msg: "malformed number literal"}
			}

			e = skipDigits(b, e)
		}

		return Number(b[i:e]), tst, e, nil
	default:
		return nil, tst, i, LexError{At: tst, Msg: fmt.Sprintf("invalid character: %q", c0)}
	}
}

func (e LexError) Error() string {
	return e.Msg
}

func (e LexError) Pos() int { return e.At }

func skipDigits(b []byte, i int) int {
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		i++
	}

	return i
}

func skipIdent(b []byte, i int) int {
	for i < len(b) && (b[i] == '_' ||
		b[i] >= 'A' && b[i] <= 'Z' ||
		b[i] >= 'a' && b[i] <= 'z' ||
		b[i] >= '0' && b[i] <= '9') {
		i++
	}

	return i
}

func skipLine(b []byte, i int) int {
	for i < len(b) && b[i] != '\n' {
		i++
	}

	return i
}
