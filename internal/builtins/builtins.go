// Package builtins implements the static function library surface (spec
// §4.7/§6): a fixed, representative set of fn:/xs:/map:/array: functions,
// each registered into a statctx.StaticContext with its (name, arity, kind)
// descriptor and a native implementation matching the ABI in spec §6:
// func(DynamicContext, Interpreter, []Sequence) (Sequence, error).
//
// internal/vm never imports this package — it only depends on the Registry
// interface it declares itself (vm.Registry) — so the dependency direction
// is strictly builtins -> vm, never the reverse, matching the teacher's
// provider-delegation layering (internal/provider defines the interface,
// concrete providers under internal/lang/* implement it).
package builtins

import (
	"github.com/oxhq/morfx/internal/sequence"
	"github.com/oxhq/morfx/internal/statctx"
	"github.com/oxhq/morfx/internal/vm"
	"github.com/oxhq/morfx/internal/xerrors"
	"github.com/oxhq/morfx/internal/xname"
)

// NativeFunc is the native implementation signature every built-in
// registers under, matching spec §6's static function library ABI.
type NativeFunc func(dyn *vm.DynamicContext, interp *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error)

// Registry implements vm.Registry by dispatching a FunctionID to the
// NativeFunc it was registered with.
type Registry struct {
	impls map[statctx.FunctionID]NativeFunc
}

func newRegistry() *Registry {
	return &Registry{impls: make(map[statctx.FunctionID]NativeFunc)}
}

func (r *Registry) CallStatic(id statctx.FunctionID, dyn *vm.DynamicContext, interp *vm.Interpreter, args []sequence.Sequence) (sequence.Sequence, error) {
	fn, ok := r.impls[id]
	if !ok {
		return sequence.Sequence{}, xerrors.Newf(xerrors.XPST0003, "internal/builtins: unregistered static function id %d", id)
	}
	return fn(dyn, interp, args)
}

// installer registers one function's descriptor into sc and its
// implementation into r under the freshly assigned FunctionID.
type installer struct {
	sc  *statctx.StaticContext
	reg *Registry
}

func (in *installer) add(local, uri string, arity int, kind statctx.FunctionKind, fn NativeFunc) error {
	id, err := in.sc.Functions.Register(statctx.FunctionDescriptor{
		Name:  xname.Name{Local: local, URI: uri},
		Arity: arity,
		Kind:  kind,
	})
	if err != nil {
		return err
	}
	in.reg.impls[id] = fn
	return nil
}

func (in *installer) fn(local string, arity int, kind statctx.FunctionKind, impl NativeFunc) error {
	return in.add(local, xname.XPathFunctionsNS, arity, kind, impl)
}

func (in *installer) xs(local string, arity int, impl NativeFunc) error {
	return in.add(local, xname.XMLSchemaNS, arity, statctx.FuncPlain, impl)
}

func (in *installer) mapFn(local string, arity int, impl NativeFunc) error {
	return in.add(local, xname.XPathMapNS, arity, statctx.FuncPlain, impl)
}

func (in *installer) arrayFn(local string, arity int, impl NativeFunc) error {
	return in.add(local, xname.XPathArrayNS, arity, statctx.FuncPlain, impl)
}

// NewDefaultContext builds a StaticContext with every built-in in this
// package registered, plus the Registry internal/vm dispatches calls
// through. This is the one place internal/builtins, internal/statctx, and
// internal/vm meet: a caller (internal/xslt, cmd/xpath, tests) wires the
// returned pair into vm.Run without any package importing in a cycle.
func NewDefaultContext() (*statctx.StaticContext, *Registry, error) {
	sc := statctx.NewStaticContext(statctx.NewFunctionTable())
	reg := newRegistry()
	in := &installer{sc: sc, reg: reg}

	for _, register := range []func(*installer) error{
		registerContextFunctions,
		registerStringFunctions,
		registerNumericFunctions,
		registerNodeFunctions,
		registerConstructorFunctions,
		registerMapArrayFunctions,
	} {
		if err := register(in); err != nil {
			return nil, nil, err
		}
	}
	return sc, reg, nil
}
