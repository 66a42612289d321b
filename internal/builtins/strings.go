package builtins

import (
	"regexp"
	"strings"

	"github.com/oxhq/morfx/internal/sequence"
	"github.com/oxhq/morfx/internal/statctx"
	"github.com/oxhq/morfx/internal/vm"
	"github.com/oxhq/morfx/internal/xatomic"
	"github.com/oxhq/morfx/internal/xerrors"
)

// registerStringFunctions wires the fn:string-family functions named in
// spec §4.7, including fn:matches/fn:replace/fn:tokenize, which use Go's
// stdlib regexp package directly — the "regex engine" spec §1 calls an
// external collaborator when used for lexical subtype validation
// (internal/xatomic's own regex-backed grammar checks), but which is
// squarely in-core when XPath exposes it as a callable function.
func registerStringFunctions(in *installer) error {
	reg := []struct {
		name  string
		arity int
		impl  NativeFunc
	}{
		{"string", 1, func(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
			return stringItem(args[0].StringValue()), nil
		}},
		{"concat", 2, fnConcat}, {"concat", 3, fnConcat}, {"concat", 4, fnConcat}, {"concat", 5, fnConcat},
		{"string-join", 1, func(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
			return stringJoin(args[0], "")
		}},
		{"string-join", 2, func(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
			sep, err := atomString(args[1])
			if err != nil {
				return sequence.Sequence{}, err
			}
			return stringJoin(args[0], sep)
		}},
		{"substring", 2, fnSubstring}, {"substring", 3, fnSubstring},
		{"string-length", 1, func(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
			s, err := atomString(args[0])
			if err != nil {
				return sequence.Sequence{}, err
			}
			return intItem(int64(len([]rune(s)))), nil
		}},
		{"upper-case", 1, stringMap(strings.ToUpper)},
		{"lower-case", 1, stringMap(strings.ToLower)},
		{"contains", 2, stringPredicate(strings.Contains)},
		{"starts-with", 2, stringPredicate(strings.HasPrefix)},
		{"ends-with", 2, stringPredicate(strings.HasSuffix)},
		{"normalize-space", 1, func(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
			s, err := atomString(args[0])
			if err != nil {
				return sequence.Sequence{}, err
			}
			return stringItem(strings.Join(strings.Fields(s), " ")), nil
		}},
		{"matches", 2, fnMatches},
		{"replace", 3, fnReplace},
		{"tokenize", 2, fnTokenize},
	}
	for _, r := range reg {
		if err := in.fn(r.name, r.arity, statctx.FuncPlain, r.impl); err != nil {
			return err
		}
	}
	return nil
}

func fnConcat(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
	var b strings.Builder
	for _, a := range args {
		b.WriteString(a.StringValue())
	}
	return stringItem(b.String()), nil
}

func stringJoin(s sequence.Sequence, sep string) (sequence.Sequence, error) {
	atomized, err := sequence.Atomize(s)
	if err != nil {
		return sequence.Sequence{}, err
	}
	parts := make([]string, 0, atomized.Len())
	for _, it := range atomized.Items() {
		parts = append(parts, it.Atomic.StringValue())
	}
	return stringItem(strings.Join(parts, sep)), nil
}

func stringMap(f func(string) string) NativeFunc {
	return func(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
		s, err := atomString(args[0])
		if err != nil {
			return sequence.Sequence{}, err
		}
		return stringItem(f(s)), nil
	}
}

func stringPredicate(f func(s, sub string) bool) NativeFunc {
	return func(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
		s, err := atomString(args[0])
		if err != nil {
			return sequence.Sequence{}, err
		}
		sub, err := atomString(args[1])
		if err != nil {
			return sequence.Sequence{}, err
		}
		return boolItem(f(s, sub)), nil
	}
}

// fnSubstring implements 1-based, double-precision-rounded fn:substring(s,
// start[, length]), matching XPath's "substring before start or after end
// is silently clipped" semantics.
func fnSubstring(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
	s, err := atomString(args[0])
	if err != nil {
		return sequence.Sequence{}, err
	}
	startAtom, err := atom(args[1])
	if err != nil {
		return sequence.Sequence{}, err
	}
	runes := []rune(s)
	start := int(roundHalfUp(toFloat64(startAtom)))
	end := len(runes) + 1
	if len(args) == 3 {
		lenAtom, err := atom(args[2])
		if err != nil {
			return sequence.Sequence{}, err
		}
		end = start + int(roundHalfUp(toFloat64(lenAtom)))
	}
	if start < 1 {
		start = 1
	}
	if end > len(runes)+1 {
		end = len(runes) + 1
	}
	if start >= end {
		return stringItem(""), nil
	}
	return stringItem(string(runes[start-1 : end-1])), nil
}

func fnMatches(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
	s, err := atomString(args[0])
	if err != nil {
		return sequence.Sequence{}, err
	}
	pat, err := atomString(args[1])
	if err != nil {
		return sequence.Sequence{}, err
	}
	re, err := regexp.Compile(pat)
	if err != nil {
		return sequence.Sequence{}, xerrors.Newf(xerrors.FORG0006, "fn:matches: invalid pattern: %v", err)
	}
	return boolItem(re.MatchString(s)), nil
}

func fnReplace(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
	s, err := atomString(args[0])
	if err != nil {
		return sequence.Sequence{}, err
	}
	pat, err := atomString(args[1])
	if err != nil {
		return sequence.Sequence{}, err
	}
	repl, err := atomString(args[2])
	if err != nil {
		return sequence.Sequence{}, err
	}
	re, err := regexp.Compile(pat)
	if err != nil {
		return sequence.Sequence{}, xerrors.Newf(xerrors.FORG0006, "fn:replace: invalid pattern: %v", err)
	}
	goRepl := regexp.MustCompile(`\$(\d+)`).ReplaceAllString(repl, "$$${1}")
	return stringItem(re.ReplaceAllString(s, goRepl)), nil
}

func fnTokenize(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
	s, err := atomString(args[0])
	if err != nil {
		return sequence.Sequence{}, err
	}
	pat, err := atomString(args[1])
	if err != nil {
		return sequence.Sequence{}, err
	}
	re, err := regexp.Compile(pat)
	if err != nil {
		return sequence.Sequence{}, xerrors.Newf(xerrors.FORG0006, "fn:tokenize: invalid pattern: %v", err)
	}
	parts := re.Split(s, -1)
	var items []sequence.Item
	for _, p := range parts {
		items = append(items, sequence.NewAtomicItem(xatomic.NewString(xatomic.TagString, p)))
	}
	return sequence.Many(items), nil
}
