// Package xpath wires the four CORE stages (parser -> ir -> compiler -> vm)
// into the single entry point every embedder needs: compile an expression
// once against a StaticContext, then run it against any number of
// DynamicContexts. Grounded on internal/xslt's per-attribute compile+run
// pattern (compile through parser.Parse -> ir.Lower -> compiler.Compile,
// execute with vm.Run) generalized from "one XPath-bearing attribute" to
// "the whole CLI-facing expression".
package xpath

import (
	"github.com/oxhq/morfx/internal/compiler"
	"github.com/oxhq/morfx/internal/ir"
	"github.com/oxhq/morfx/internal/parser"
	"github.com/oxhq/morfx/internal/sequence"
	"github.com/oxhq/morfx/internal/statctx"
	"github.com/oxhq/morfx/internal/vm"
)

// Program is a compiled expression, reusable across many evaluations against
// different DynamicContexts (the same Program/StaticContext read-only-after-
// construction split spec §3's ownership table describes).
type Program struct {
	compiled *compiler.Program
	sc       *statctx.StaticContext
}

// Compile parses and lowers src into a Program ready to Run.
func Compile(src string, sc *statctx.StaticContext) (*Program, error) {
	astRoot, err := parser.Parse(src, sc)
	if err != nil {
		return nil, err
	}
	mod, err := ir.Lower(astRoot, sc)
	if err != nil {
		return nil, err
	}
	prog, err := compiler.Compile(mod, sc)
	if err != nil {
		return nil, err
	}
	return &Program{compiled: prog, sc: sc}, nil
}

// Run executes the compiled program against dyn using registry for static
// function dispatch, returning the resulting Sequence.
func (p *Program) Run(registry vm.Registry, dyn *vm.DynamicContext) (sequence.Sequence, error) {
	return vm.Run(p.compiled, registry, dyn)
}

// Eval is the one-shot convenience form: compile then run immediately,
// for callers (the CLI, the conformance driver) that don't reuse a Program
// across multiple documents.
func Eval(src string, sc *statctx.StaticContext, registry vm.Registry, dyn *vm.DynamicContext) (sequence.Sequence, error) {
	prog, err := Compile(src, sc)
	if err != nil {
		return sequence.Sequence{}, err
	}
	return prog.Run(registry, dyn)
}
