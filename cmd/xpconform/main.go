// Command xpconform is the conformance test driver named in spec.md §8: it
// runs the spec's concrete end-to-end scenarios through internal/xpath,
// records pass/fail history to internal/convdb, and exits nonzero if any
// scenario regresses. Per SPEC_FULL.md §5, independent scenarios run on a
// bounded worker pool of goroutines with their own DynamicContext and
// document-store handle each, grounded on the teacher's own concurrency
// texture (core/filewalker.go: a plain sync.WaitGroup + buffered channel,
// no third-party worker-pool library).
package main

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/pflag"

	"github.com/oxhq/morfx/internal/builtins"
	"github.com/oxhq/morfx/internal/config"
	"github.com/oxhq/morfx/internal/convdb"
	"github.com/oxhq/morfx/internal/docstore"
	"github.com/oxhq/morfx/internal/sequence"
	"github.com/oxhq/morfx/internal/vm"
	"github.com/oxhq/morfx/internal/xpath"
)

// scenario is one spec.md §8 concrete end-to-end case: an expression,
// optional context document, and the expected joined string-value of the
// result sequence.
type scenario struct {
	name     string
	contextD string // XML source for the context item, empty if none
	expr     string
	want     string
}

var scenarios = []scenario{
	{name: "arithmetic-precedence", expr: "1 + 2 * 3", want: "7"},
	{name: "filter-predicate", expr: "(1, 2, 3)[. > 1]", want: "2,3"},
	{name: "for-return-square", expr: "for $x in 1 to 3 return $x * $x", want: "1,4,9"},
	{name: "inline-function-closure", expr: "let $f := function($x) { $x + 1 } return $f(41)", want: "42"},
	{name: "document-count", contextD: "<a><b/><b/></a>", expr: "count(/a/b)", want: "2"},
	{name: "nan-general-comparison", expr: "xs:double(\"NaN\") = xs:double(\"NaN\")", want: "false"},
	{name: "nan-deep-equal", expr: "deep-equal((xs:double(\"NaN\")), (xs:double(\"NaN\")))", want: "true"},
}

func main() {
	fs := pflag.NewFlagSet("xpconform", pflag.ContinueOnError)
	workers := fs.IntP("workers", "w", 4, "bounded worker-pool size")
	debug := fs.Bool("debug", false, "verbose gorm logging for the conformance db")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	db, err := convdb.Connect(cfg.ConformanceDB, *debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer db.Close()

	started := time.Now()
	cases := runScenarios(scenarios, *workers)

	run, err := db.RecordRun(started, cases)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	for _, c := range cases {
		status := "PASS"
		if !c.Passed {
			status = "FAIL"
		}
		fmt.Printf("[%s] %s", status, c.Name)
		if !c.Passed {
			fmt.Printf(": %s", c.Message)
		}
		fmt.Println()
	}
	fmt.Printf("%d/%d passed (run #%d)\n", run.Passed, run.Total, run.ID)

	if run.Failed > 0 {
		os.Exit(1)
	}
}

// runScenarios evaluates every scenario on a bounded pool of workers pulling
// from a shared channel, each worker building its own DynamicContext and
// document-store handle so scenarios never share mutable state (SPEC_FULL
// §5's "each evaluation holds its own mutable handle" contract).
func runScenarios(scs []scenario, workers int) []convdb.Case {
	if workers < 1 {
		workers = 1
	}
	in := make(chan scenario)
	out := make(chan convdb.Case, len(scs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sc := range in {
				out <- runOne(sc)
			}
		}()
	}
	go func() {
		for _, sc := range scs {
			in <- sc
		}
		close(in)
	}()
	wg.Wait()
	close(out)

	byName := make(map[string]convdb.Case, len(scs))
	for c := range out {
		byName[c.Name] = c
	}
	ordered := make([]convdb.Case, 0, len(scs))
	for _, sc := range scs {
		ordered = append(ordered, byName[sc.name])
	}
	return ordered
}

func runOne(sc scenario) convdb.Case {
	start := time.Now()
	c := convdb.Case{Name: sc.name}

	sctx, reg, err := builtins.NewDefaultContext()
	if err != nil {
		c.Message = fmt.Sprintf("setup: %v", err)
		c.Duration = time.Since(start)
		return c
	}

	store := docstore.New()
	dyn := vm.NewDynamicContext(store)
	if sc.contextD != "" {
		root, err := store.ParseXML(sc.contextD)
		if err != nil {
			c.Message = fmt.Sprintf("parse context document: %v", err)
			c.Duration = time.Since(start)
			return c
		}
		dyn = dyn.WithContextItem(sequence.NewNodeItem(root))
	}

	seq, err := xpath.Eval(sc.expr, sctx, reg, dyn)
	c.Duration = time.Since(start)
	if err != nil {
		c.Message = fmt.Sprintf("eval: %v", err)
		return c
	}

	got := joinStringValues(seq)
	if got != sc.want {
		c.Message = fmt.Sprintf("want %q, got %q", sc.want, got)
		return c
	}
	c.Passed = true
	return c
}

func joinStringValues(seq sequence.Sequence) string {
	items := seq.Items()
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = it.StringValue()
	}
	return strings.Join(parts, ",")
}
