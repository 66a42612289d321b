// Command xpath is the CLI front end for the XPath/XSLT core (spec.md §6,
// SPEC_FULL.md §6): it evaluates one expression against an optional XML
// input file, a glob of XML files, or no context document at all, printing
// each result sequence's string value (or canonical representation) to
// standard output. Grounded end to end on cmd/morfx/main.go's shape: a
// pflag.FlagSet wrapped by cobra, a config.Load pass, a run step, then
// handleOutputAndExit.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/oxhq/morfx/internal/builtins"
	"github.com/oxhq/morfx/internal/config"
	"github.com/oxhq/morfx/internal/docstore"
	"github.com/oxhq/morfx/internal/sequence"
	"github.com/oxhq/morfx/internal/vm"
	"github.com/oxhq/morfx/internal/xatomic"
	"github.com/oxhq/morfx/internal/xpath"
)

var (
	exprFlag      string
	inputFlag     string
	globFlag      string
	canonicalFlag bool
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "xpath",
		Short:        "Evaluate an XPath 3.1 expression against zero or more XML documents.",
		SilenceUsage: true,
		RunE:         runRoot,
	}
	fs := cmd.Flags()
	fs.StringVarP(&exprFlag, "expr", "e", "", "XPath expression to evaluate (required)")
	fs.StringVarP(&inputFlag, "input", "i", "", "XML input file supplying the context item")
	fs.StringVarP(&globFlag, "glob", "g", "", "doublestar glob of XML files to evaluate the expression against in turn")
	fs.BoolVar(&canonicalFlag, "canonical", false, "print the canonical xpath_representation instead of string-value")
	_ = cmd.MarkFlagRequired("expr")
	return cmd
}

func runRoot(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return fmt.Errorf("xpath: %w", err)
	}

	sc, reg, err := builtins.NewDefaultContext()
	if err != nil {
		return fmt.Errorf("xpath: %w", err)
	}

	prog, err := xpath.Compile(exprFlag, sc)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "compile error: %v\n", err)
		return err
	}

	files, err := inputFiles()
	if err != nil {
		return fmt.Errorf("xpath: %w", err)
	}

	if len(files) == 0 {
		return runOne(cmd, prog, reg, cfg, "")
	}
	var failed bool
	for _, f := range files {
		if err := runOne(cmd, prog, reg, cfg, f); err != nil {
			failed = true
		}
	}
	if failed {
		return fmt.Errorf("one or more evaluations failed")
	}
	return nil
}

func inputFiles() ([]string, error) {
	if globFlag != "" {
		matches, err := doublestar.FilepathGlob(globFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid glob %q: %w", globFlag, err)
		}
		return matches, nil
	}
	if inputFlag != "" {
		return []string{inputFlag}, nil
	}
	return nil, nil
}

func runOne(cmd *cobra.Command, prog *xpath.Program, reg *builtins.Registry, cfg *config.Config, file string) error {
	store := docstore.New()
	dyn := vm.NewDynamicContext(store)
	dyn.DefaultCollation = cfg.DefaultCollation
	dyn.ImplicitTimezone = time.FixedZone("", int(cfg.ImplicitTZOffset.Seconds()))

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", file, err)
			return err
		}
		root, err := store.ParseXML(string(data))
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: parse: %v\n", file, err)
			return err
		}
		dyn = dyn.WithContextItem(sequence.NewNodeItem(root))
	}

	seq, err := prog.Run(reg, dyn)
	if err != nil {
		if file != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", file, err)
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
		}
		return err
	}

	printSequence(cmd, seq)
	return nil
}

func printSequence(cmd *cobra.Command, seq sequence.Sequence) {
	out := cmd.OutOrStdout()
	for _, item := range seq.Items() {
		if canonicalFlag && item.Kind == sequence.ItemAtomic {
			fmt.Fprintln(out, canonicalRepresentation(item.Atomic))
			continue
		}
		fmt.Fprintln(out, item.StringValue())
	}
}

// canonicalRepresentation renders an atomic value the way it would need to
// be typed back into the parser to reconstruct it (spec §4.5's
// xpath_representation round-trip property), e.g. xs:integer("7").
func canonicalRepresentation(v xatomic.Value) string {
	if v.Tag == xatomic.TagString || xatomic.IsStringFamily(v.Tag) {
		return fmt.Sprintf("%q", v.StringValue())
	}
	return fmt.Sprintf("%s(%q)", v.Tag.String(), v.StringValue())
}
