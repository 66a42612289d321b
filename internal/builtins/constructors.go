package builtins

import (
	"strings"

	"github.com/oxhq/morfx/internal/sequence"
	"github.com/oxhq/morfx/internal/statctx"
	"github.com/oxhq/morfx/internal/vm"
	"github.com/oxhq/morfx/internal/xatomic"
	"github.com/oxhq/morfx/internal/xerrors"
	"github.com/oxhq/morfx/internal/xname"
)

// registerConstructorFunctions wires fn:QName and one xs:<type> constructor
// function per atomic type tag xatomic knows about, each casting its single
// argument to that tag via xatomic.Cast (spec §4.7's "Constructors/casts
// surface").
func registerConstructorFunctions(in *installer) error {
	if err := in.fn("QName", 2, statctx.FuncPlain, fnQName); err != nil {
		return err
	}
	for _, local := range xsConstructorNames {
		tag, ok := xatomic.TagByName("xs:" + local)
		if !ok {
			return xerrors.Newf(xerrors.XPST0003, "internal/builtins: no tag named xs:%s", local)
		}
		if err := in.xs(local, 1, xsConstructor(tag)); err != nil {
			return err
		}
	}
	return nil
}

// xsConstructorNames lists the local names each get a one-argument xs:*
// constructor function, mirroring xatomic's tag table minus xs:untypedAtomic
// (never a cast target) and xs:QName (constructed via fn:QName, not a plain
// lexical cast, since it additionally needs namespace resolution).
var xsConstructorNames = []string{
	"string", "normalizedString", "token", "language", "Name", "NCName",
	"NMTOKEN", "ID", "IDREF", "ENTITY", "anyURI",
	"boolean", "decimal",
	"integer", "nonPositiveInteger", "negativeInteger", "long", "int",
	"short", "byte", "nonNegativeInteger", "unsignedLong", "unsignedInt",
	"unsignedShort", "unsignedByte", "positiveInteger",
	"float", "double",
	"date", "time", "dateTime",
	"yearMonthDuration", "dayTimeDuration",
	"hexBinary", "base64Binary",
}

func xsConstructor(target xatomic.Tag) NativeFunc {
	return func(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
		if args[0].IsEmpty() {
			return sequence.Empty(), nil
		}
		v, err := atom(args[0])
		if err != nil {
			return sequence.Sequence{}, err
		}
		out, err := xatomic.Cast(v, target)
		if err != nil {
			return sequence.Sequence{}, err
		}
		return sequence.One(sequence.NewAtomicItem(out)), nil
	}
}

// fnQName builds an xs:QName from an explicit namespace URI and a lexical
// QName string, splitting prefix:local without resolving the prefix against
// any in-scope namespace map (fn:QName's URI argument is authoritative),
// per spec §4.7's resolution note on QName-parse-error vs.
// namespace-lookup-error.
func fnQName(_ *vm.DynamicContext, _ *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
	uri, err := atomString(args[0])
	if err != nil {
		return sequence.Sequence{}, err
	}
	lexical, err := atomString(args[1])
	if err != nil {
		return sequence.Sequence{}, err
	}
	prefix, local := "", lexical
	if i := strings.IndexByte(lexical, ':'); i >= 0 {
		prefix, local = lexical[:i], lexical[i+1:]
	}
	if local == "" {
		return sequence.Sequence{}, xerrors.Newf(xerrors.FOCA0002, "fn:QName: %q is not a valid lexical QName", lexical)
	}
	return sequence.One(sequence.NewAtomicItem(xatomic.NewQName(xname.Name{Local: local, URI: uri, Prefix: prefix}))), nil
}
