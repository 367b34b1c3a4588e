package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/joltlang/jolt/compiler"
	"github.com/joltlang/jolt/compiler/exec"
	"github.com/joltlang/jolt/compiler/format"
	"github.com/joltlang/jolt/compiler/front"
	"github.com/joltlang/jolt/compiler/interp"
	"github.com/joltlang/jolt/compiler/ir"
)

const historyFile = ".jolt_history"

func main() {
	parseCmd := &cli.Command{
		Name:   "parse",
		Action: parseAct,
		Args:   cli.Args{},
	}

	compileCmd := &cli.Command{
		Name:   "compile",
		Action: compileAct,
		Args:   cli.Args{},
	}

	runCmd := &cli.Command{
		Name:   "run",
		Action: runAct,
		Args:   cli.Args{},
	}

	interpCmd := &cli.Command{
		Name:   "interp",
		Action: interpAct,
		Args:   cli.Args{},
	}

	replCmd := &cli.Command{
		Name:   "repl",
		Action: replAct,
	}

	app := &cli.Command{
		Name:        "jolt",
		Description: "jolt is a tool for managing jolt source code",
		Commands: []*cli.Command{
			parseCmd,
			compileCmd,
			runCmd,
			interpCmd,
			replCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func parseAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	for _, a := range c.Args {
		text, err := os.ReadFile(a)
		if err != nil {
			return errors.Wrap(err, "read %v", a)
		}

		f := front.New()
		f.AddFile(ctx, a, text)

		err = f.Parse(ctx)
		if err != nil {
			return errors.Wrap(err, "parse %v", a)
		}

		b, err := format.Format(ctx, nil, f.Prog())
		if err != nil {
			return errors.Wrap(err, "format %v", a)
		}

		fmt.Printf("%s", b)
	}

	return nil
}

func compileAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	for _, a := range c.Args {
		p, err := compiler.CompileFile(ctx, a)
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		b := ir.Dump(nil, p)

		fmt.Printf("%s", b)
	}

	return nil
}

func runAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	if len(c.Args) < 2 {
		return errors.New("expected file and function name")
	}

	name := c.Args[0]
	fn := c.Args[1]

	in := make([]float64, len(c.Args)-2)

	for i, a := range c.Args[2:] {
		in[i], err = strconv.ParseFloat(a, 64)
		if err != nil {
			return errors.Wrap(err, "argument %v", a)
		}
	}

	p, err := compiler.CompileFile(ctx, name)
	if err != nil {
		return errors.Wrap(err, "compile %v", name)
	}

	m := exec.New()

	err = m.Load(ctx, p)
	if err != nil {
		return errors.Wrap(err, "load")
	}

	out, err := m.Call(ctx, fn, in...)
	if err != nil {
		return errors.Wrap(err, "call %v", fn)
	}

	printResult(out)

	return nil
}

// interpAct is run over the tree instead of the lowered blocks,
// useful when a miscompile is suspected.
func interpAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	if len(c.Args) < 2 {
		return errors.New("expected file and function name")
	}

	name := c.Args[0]
	fn := c.Args[1]

	in := make([]float64, len(c.Args)-2)

	for i, a := range c.Args[2:] {
		in[i], err = strconv.ParseFloat(a, 64)
		if err != nil {
			return errors.Wrap(err, "argument %v", a)
		}
	}

	text, err := os.ReadFile(name)
	if err != nil {
		return errors.Wrap(err, "read %v", name)
	}

	f := front.New()
	f.AddFile(ctx, name, text)

	err = f.Parse(ctx)
	if err != nil {
		return errors.Wrap(err, "parse %v", name)
	}

	err = f.Analyze(ctx)
	if err != nil {
		return errors.Wrap(err, "analyze %v", name)
	}

	out, err := interp.New(f.Prog()).Call(ctx, fn, in...)
	if err != nil {
		return errors.Wrap(err, "call %v", fn)
	}

	printResult(out)

	return nil
}

func replAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	var defs []string

	for {
		code, ok := readBalanced(ln, "> ", ". ")
		if !ok {
			fmt.Println()
			break
		}

		if strings.TrimSpace(code) == "" {
			continue
		}

		defs, err = replEval(ctx, defs, code)
		if err != nil {
			fmt.Println(err)
			continue
		}

		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))
	}

	if f, err := os.Create(histPath); err == nil {
		_, _ = ln.WriteHistory(f)
		_ = f.Close()
	}

	return nil
}

// replEval compiles accumulated definitions plus the new input and
// runs it. Function definitions are kept for later inputs, anything
// else is wrapped into a throwaway function and evaluated once.
func replEval(ctx context.Context, defs []string, code string) ([]string, error) {
	isDef := strings.HasPrefix(strings.TrimSpace(code), "fn ")

	var text strings.Builder

	for _, d := range defs {
		text.WriteString(d)
		text.WriteString("\n")
	}

	if isDef {
		text.WriteString(code)
		text.WriteString("\n")
	} else {
		expr := strings.TrimSuffix(strings.TrimSpace(code), ";")
		fmt.Fprintf(&text, "fn _repl() -> (r) { return %s; }\n", expr)
	}

	f := front.New()
	f.AddFile(ctx, "repl", []byte(text.String()))

	err := f.Parse(ctx)
	if err != nil {
		return defs, err
	}

	err = f.Analyze(ctx)
	if err != nil {
		return defs, err
	}

	if isDef {
		return append(defs, code), nil
	}

	m := interp.New(f.Prog())

	out, err := m.Call(ctx, "_repl")
	if err != nil {
		return defs, err
	}

	printResult(out)

	return defs, nil
}

// readBalanced accumulates lines until braces balance, so multiline
// function definitions can be typed directly.
func readBalanced(ln *liner.State, prompt, cont string) (string, bool) {
	var b strings.Builder

	p := prompt

	for {
		line, err := ln.Prompt(p)
		if err != nil {
			return "", false
		}

		if b.Len() != 0 {
			b.WriteString("\n")
		}

		b.WriteString(line)

		depth := 0

		for _, r := range b.String() {
			switch r {
			case '{':
				depth++
			case '}':
				depth--
			}
		}

		if depth <= 0 {
			return b.String(), true
		}

		p = cont
	}
}

func printResult(out []float64) {
	for i, v := range out {
		if i != 0 {
			fmt.Printf(" ")
		}

		fmt.Printf("%v", v)
	}

	fmt.Printf("\n")
}
