package xslt

import (
	"strings"

	"github.com/oxhq/morfx/internal/compiler"
	"github.com/oxhq/morfx/internal/pattern"
	"github.com/oxhq/morfx/internal/sequence"
	"github.com/oxhq/morfx/internal/statctx"
	"github.com/oxhq/morfx/internal/vm"
	"github.com/oxhq/morfx/internal/xerrors"
	"github.com/oxhq/morfx/internal/xname"
	"github.com/oxhq/morfx/internal/xnode"
)

// allModesToken is the literal mode name spec §4.6/XSLT uses for "every
// mode", per pattern.Rule.AllModes.
const allModesToken = "#all"

// modeRegistry assigns a dense pattern.ModeId to each distinct mode name
// seen across a stylesheet's templates, per spec §4.6's "modes are
// identified by a dense 32-bit ModeId resolved statically".
type modeRegistry struct {
	byName map[string]pattern.ModeId
	next   pattern.ModeId
}

func newModeRegistry() *modeRegistry {
	return &modeRegistry{byName: map[string]pattern.ModeId{"": pattern.DefaultMode}, next: pattern.DefaultMode + 1}
}

func (mr *modeRegistry) resolve(name string) pattern.ModeId {
	if id, ok := mr.byName[name]; ok {
		return id
	}
	id := mr.next
	mr.next++
	mr.byName[name] = id
	return id
}

// Stylesheet is a compiled StylesheetAST: every template body instruction
// with an XPath-bearing attribute has already been compiled to its own
// compiler.Program, and template rules are grouped into a pattern.ModeTable
// for apply-templates dispatch.
type Stylesheet struct {
	modes    *modeRegistry
	table    *pattern.ModeTable
	byName   map[string]*compiledTemplate
	store    xnode.DocumentStore
	registry vm.Registry
}

type compiledTemplate struct {
	src  *Template
	body []compiledInstr
}

// Compile lowers ast into a runnable Stylesheet. sc is the static context
// every embedded XPath expression compiles against (normally the one
// returned by builtins.NewDefaultContext, so fn:/xs:/map:/array: built-ins
// resolve); store and registry are threaded through to Run for document
// construction and static-function dispatch.
func Compile(ast *StylesheetAST, sc *statctx.StaticContext, store xnode.DocumentStore, registry vm.Registry) (*Stylesheet, error) {
	ss := &Stylesheet{
		modes:    newModeRegistry(),
		byName:   make(map[string]*compiledTemplate),
		store:    store,
		registry: registry,
	}
	var rules []*pattern.Rule
	for declOrder, t := range ast.Templates {
		body, err := compileInstructions(t.Body, sc, ss.modes)
		if err != nil {
			return nil, err
		}
		ct := &compiledTemplate{src: t, body: body}
		if t.Name != "" {
			if _, exists := ss.byName[t.Name]; exists {
				return nil, xerrors.Newf(xerrors.XPST0003, "xsl:template: duplicate template name %q", t.Name)
			}
			ss.byName[t.Name] = ct
		}
		if t.Match == "" {
			continue
		}
		priority := 0.0
		if t.Priority != nil {
			priority = *t.Priority
		}
		allModes := t.Mode == allModesToken
		modeID := ss.modes.resolve(t.Mode)
		shapes, err := compileMatchAlternatives(t.Match, sc, store, registry)
		if err != nil {
			return nil, err
		}
		for _, shape := range shapes {
			rules = append(rules, &pattern.Rule{
				Mode:          modeID,
				AllModes:      allModes,
				Priority:      priority,
				DeclOrder:     declOrder,
				Anchor:        shape.anchor,
				AncestorChain: shape.chain,
				Predicate:     shape.pred,
				Payload:       ct,
			})
		}
	}
	ss.table = pattern.BuildModeTable(rules)
	return ss, nil
}

// compiledInstr is one compiled Instruction: its XPath-bearing attributes
// already turned into *compiler.Program values, its child instructions
// already compiled recursively.
type compiledInstr interface {
	exec(rt *runtime, dyn *vm.DynamicContext) (sequence.Sequence, error)
}

func compileInstructions(body []Instruction, sc *statctx.StaticContext, modes *modeRegistry) ([]compiledInstr, error) {
	out := make([]compiledInstr, 0, len(body))
	for _, instr := range body {
		c, err := compileOneInstruction(instr, sc, modes)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func compileOneInstruction(instr Instruction, sc *statctx.StaticContext, modes *modeRegistry) (compiledInstr, error) {
	switch v := instr.(type) {
	case ApplyTemplates:
		sel := v.Select
		if sel == "" {
			sel = "node()"
		}
		prog, err := compileXPath(sel, sc)
		if err != nil {
			return nil, err
		}
		return &cApplyTemplates{selectProg: prog, mode: modes.resolve(v.Mode)}, nil

	case CallTemplate:
		return &cCallTemplate{name: v.Name}, nil

	case ValueOf:
		prog, err := compileXPath(v.Select, sc)
		if err != nil {
			return nil, err
		}
		sep := v.Separator
		if sep == "" {
			sep = " "
		}
		return &cValueOf{selectProg: prog, separator: sep}, nil

	case ForEach:
		prog, err := compileXPath(v.Select, sc)
		if err != nil {
			return nil, err
		}
		body, err := compileInstructions(v.Body, sc, modes)
		if err != nil {
			return nil, err
		}
		return &cForEach{selectProg: prog, body: body}, nil

	case If:
		prog, err := compileXPath(v.Test, sc)
		if err != nil {
			return nil, err
		}
		body, err := compileInstructions(v.Body, sc, modes)
		if err != nil {
			return nil, err
		}
		return &cIf{testProg: prog, body: body}, nil

	case Choose:
		whens := make([]cWhen, 0, len(v.Whens))
		for _, w := range v.Whens {
			prog, err := compileXPath(w.Test, sc)
			if err != nil {
				return nil, err
			}
			body, err := compileInstructions(w.Body, sc, modes)
			if err != nil {
				return nil, err
			}
			whens = append(whens, cWhen{testProg: prog, body: body})
		}
		otherwise, err := compileInstructions(v.Otherwise, sc, modes)
		if err != nil {
			return nil, err
		}
		return &cChoose{whens: whens, otherwise: otherwise}, nil

	case Element:
		name, err := resolveName(v.Name, sc)
		if err != nil {
			return nil, err
		}
		body, err := compileInstructions(v.Body, sc, modes)
		if err != nil {
			return nil, err
		}
		return &cElement{name: name, body: body}, nil

	case Attribute:
		name, err := resolveName(v.Name, sc)
		if err != nil {
			return nil, err
		}
		var prog *compiler.Program
		if v.Select != "" {
			prog, err = compileXPath(v.Select, sc)
			if err != nil {
				return nil, err
			}
		}
		body, err := compileInstructions(v.Body, sc, modes)
		if err != nil {
			return nil, err
		}
		return &cAttribute{name: name, selectProg: prog, body: body}, nil

	case Text:
		return &cText{value: v.Value}, nil

	case Sequence:
		prog, err := compileXPath(v.Select, sc)
		if err != nil {
			return nil, err
		}
		return &cSequence{selectProg: prog}, nil

	default:
		return nil, xerrors.Newf(xerrors.XPST0003, "xsl: unsupported instruction %T", instr)
	}
}

// resolveName splits a possibly prefixed literal element/attribute name and
// resolves its prefix against sc's declared namespaces (no
// attribute-value-template support: the name must be a compile-time
// literal, per spec §4.8's scope).
func resolveName(lexical string, sc *statctx.StaticContext) (xname.Name, error) {
	prefix, local := "", lexical
	if i := strings.IndexByte(lexical, ':'); i >= 0 {
		prefix, local = lexical[:i], lexical[i+1:]
	}
	if prefix == "" {
		return xname.Name{Local: local}, nil
	}
	uri, ok := sc.Namespaces.Resolve(prefix)
	if !ok {
		return xname.Name{}, xerrors.Newf(xerrors.XPST0081, "xsl: unbound namespace prefix %q in name %q", prefix, lexical)
	}
	return xname.Name{Local: local, URI: uri, Prefix: prefix}, nil
}
