package xslt

import (
	"strings"

	"github.com/oxhq/morfx/internal/compiler"
	"github.com/oxhq/morfx/internal/ir"
	"github.com/oxhq/morfx/internal/parser"
	"github.com/oxhq/morfx/internal/pattern"
	"github.com/oxhq/morfx/internal/sequence"
	"github.com/oxhq/morfx/internal/statctx"
	"github.com/oxhq/morfx/internal/vm"
	"github.com/oxhq/morfx/internal/xerrors"
	"github.com/oxhq/morfx/internal/xname"
	"github.com/oxhq/morfx/internal/xnode"
)

// compileMatchAlternatives splits a match pattern on top-level "|" (each
// alternative compiled independently, since an XSLT union pattern is
// exactly "match any of these") and compiles each into the
// Anchor/AncestorChain/Predicate triple pattern.Rule dispatches over.
//
// Supported step shapes: name tests, "*", "@name"/"@*", and the six kind
// tests (node()/text()/comment()/processing-instruction()/element()/
// attribute()); a chain of any length of parent ("a/b") or ancestor
// ("a//b") steps; an optional bracketed predicate on the final step only.
// The literal pattern "/" is special-cased to match the document node
// itself, covering the built-in initial template's usual match="/" entry
// point. Predicates on non-final steps are out of scope (see DESIGN.md's
// Open Question resolutions) — reported as a compile error rather than
// silently mismatched.
func compileMatchAlternatives(matchSrc string, sc *statctx.StaticContext, store xnode.DocumentStore, registry vm.Registry) ([]matchShape, error) {
	var out []matchShape
	for _, alt := range splitTopLevel(matchSrc, '|') {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			continue
		}
		shape, err := compileOneAlternative(alt, sc, store, registry)
		if err != nil {
			return nil, err
		}
		out = append(out, shape)
	}
	if len(out) == 0 {
		return nil, xerrors.Newf(xerrors.XPST0003, "xsl:template: empty match pattern")
	}
	return out, nil
}

type matchShape struct {
	anchor pattern.Anchor
	chain  []pattern.AncestorStep
	pred   pattern.PredicateFunc
}

func compileOneAlternative(alt string, sc *statctx.StaticContext, store xnode.DocumentStore, registry vm.Registry) (matchShape, error) {
	if alt == "/" {
		return matchShape{anchor: pattern.Anchor{Kind: pattern.AnchorKindTest, NodeKind: xnode.KindDocument}}, nil
	}
	segments, rels, err := splitPathSteps(alt)
	if err != nil {
		return matchShape{}, err
	}
	last := segments[len(segments)-1]
	nameOrTest, predicateSrc, err := splitPredicate(last)
	if err != nil {
		return matchShape{}, err
	}
	anchor, err := parseAnchor(nameOrTest)
	if err != nil {
		return matchShape{}, err
	}
	var chain []pattern.AncestorStep
	for i := len(segments) - 2; i >= 0; i-- {
		seg := segments[i]
		nameOrTest, pred, err := splitPredicate(seg)
		if err != nil {
			return matchShape{}, err
		}
		if pred != "" {
			return matchShape{}, xerrors.Newf(xerrors.XPST0003,
				"xsl:template: match pattern %q: predicates are only supported on the final step", alt)
		}
		stepAnchor, err := parseAnchor(nameOrTest)
		if err != nil {
			return matchShape{}, err
		}
		rel := pattern.RelParent
		if rels[i] {
			rel = pattern.RelAncestor
		}
		chain = append(chain, pattern.AncestorStep{Rel: rel, Anchor: stepAnchor})
	}
	var predFn pattern.PredicateFunc
	if predicateSrc != "" {
		predFn, err = compilePredicate(predicateSrc, sc, store, registry)
		if err != nil {
			return matchShape{}, err
		}
	}
	return matchShape{anchor: anchor, chain: chain, pred: predFn}, nil
}

// splitTopLevel splits s on sep, respecting "[...]" bracket nesting so a
// predicate's own "|" (e.g. "a[b|c]") is not mistaken for a union boundary.
func splitTopLevel(s string, sep byte) []string {
	var out []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
		default:
			if s[i] == sep && depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

// splitPathSteps splits a single union alternative into its "/"-separated
// steps, in document order (segments[0] is the outermost ancestor; the
// last element is the step tested against the candidate itself).
// rel[i] records whether the relation between segments[i] and
// segments[i+1] was "//" (descendant) rather than "/" (child); rel has one
// fewer entry than segments. A leading "/" or "//" (absolute pattern) is
// accepted and discarded — this engine always matches structurally from
// the candidate upward, never anchoring to the document root.
func splitPathSteps(alt string) (segments []string, rel []bool, err error) {
	alt = strings.TrimPrefix(strings.TrimPrefix(alt, "/"), "/")
	depth := 0
	start := 0
	pendingDescendant := false
	flush := func(end int) {
		seg := alt[start:end]
		if seg == "" {
			return
		}
		segments = append(segments, seg)
		if len(segments) > 1 {
			rel = append(rel, pendingDescendant)
		}
		pendingDescendant = false
	}
	i := 0
	for i < len(alt) {
		switch alt[i] {
		case '[':
			depth++
		case ']':
			depth--
		case '/':
			if depth == 0 {
				flush(i)
				if i+1 < len(alt) && alt[i+1] == '/' {
					pendingDescendant = true
					i++
				}
				start = i + 1
			}
		}
		i++
	}
	flush(len(alt))
	if len(segments) == 0 {
		return nil, nil, xerrors.Newf(xerrors.XPST0003, "xsl:template: empty match step in %q", alt)
	}
	return segments, rel, nil
}

// splitPredicate separates a step's node test from one trailing bracketed
// predicate, e.g. "item[@id='x']" -> ("item", "@id='x'").
func splitPredicate(step string) (test string, predicate string, err error) {
	i := strings.IndexByte(step, '[')
	if i < 0 {
		return strings.TrimSpace(step), "", nil
	}
	if step[len(step)-1] != ']' {
		return "", "", xerrors.Newf(xerrors.XPST0003, "xsl:template: malformed predicate in step %q", step)
	}
	return strings.TrimSpace(step[:i]), step[i+1 : len(step)-1], nil
}

func parseAnchor(test string) (pattern.Anchor, error) {
	switch {
	case test == "*":
		return pattern.Anchor{Kind: pattern.AnchorElementWildcard}, nil
	case test == "@*":
		return pattern.Anchor{Kind: pattern.AnchorAttributeWildcard}, nil
	case strings.HasPrefix(test, "@"):
		return pattern.Anchor{Kind: pattern.AnchorAttributeName, Name: xname.Name{Local: test[1:]}}, nil
	case test == "node()":
		return pattern.Anchor{Kind: pattern.AnchorAny}, nil
	case test == "text()":
		return pattern.Anchor{Kind: pattern.AnchorKindTest, NodeKind: xnode.KindText}, nil
	case test == "comment()":
		return pattern.Anchor{Kind: pattern.AnchorKindTest, NodeKind: xnode.KindComment}, nil
	case test == "processing-instruction()":
		return pattern.Anchor{Kind: pattern.AnchorKindTest, NodeKind: xnode.KindProcessingInstruction}, nil
	case test == "element()":
		return pattern.Anchor{Kind: pattern.AnchorElementWildcard}, nil
	case test == "attribute()":
		return pattern.Anchor{Kind: pattern.AnchorAttributeWildcard}, nil
	case test == "":
		return pattern.Anchor{}, xerrors.New(xerrors.XPST0003, "xsl:template: empty node test")
	default:
		if strings.ContainsAny(test, "()") {
			return pattern.Anchor{}, xerrors.Newf(xerrors.XPST0003, "xsl:template: unsupported node test %q", test)
		}
		return pattern.Anchor{Kind: pattern.AnchorElementName, Name: xname.Name{Local: test}}, nil
	}
}

// compilePredicate compiles a bracket predicate's source into a
// pattern.PredicateFunc, run with the candidate node bound as the sole,
// singleton dynamic context item.
func compilePredicate(src string, sc *statctx.StaticContext, store xnode.DocumentStore, registry vm.Registry) (pattern.PredicateFunc, error) {
	prog, err := compileXPath(src, sc)
	if err != nil {
		return nil, err
	}
	return func(candidate xnode.Node) (bool, error) {
		dyn := vm.NewDynamicContext(store).WithContextItem(sequence.NewNodeItem(candidate))
		result, err := vm.Run(prog, registry, dyn)
		if err != nil {
			return false, err
		}
		return result.EffectiveBooleanValue()
	}, nil
}

func compileXPath(src string, sc *statctx.StaticContext) (*compiler.Program, error) {
	astRoot, err := parser.Parse(src, sc)
	if err != nil {
		return nil, err
	}
	mod, err := ir.Lower(astRoot, sc)
	if err != nil {
		return nil, err
	}
	return compiler.Compile(mod, sc)
}
