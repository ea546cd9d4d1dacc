package interp

import (
	"github.com/pytea-go/symexec/internal/env"
	"github.com/pytea-go/symexec/internal/pathctx"
	"github.com/pytea-go/symexec/internal/symexpr"
	"github.com/pytea-go/symexec/internal/value"
)

// importModule evaluates the lowered module at qualPath in a fresh
// child context carrying the importer's path condition, relocates the
// child heap past the importer's allocation frontier, merges, and
// binds a module object whose attributes mirror the module's globals.
// The merge path runs the reachability sweep the lifecycle contract
// requires.
func (it *Interpreter) importModule(ctx *pathctx.Context, qualPath string, sp *symexpr.Span) *pathctx.ContextSet {
	if it.loader == nil {
		return it.importUnavailable(ctx, qualPath, "no module loader configured", sp)
	}
	block, err := it.loader.LoadModule(qualPath)
	if err != nil {
		return it.importUnavailable(ctx, qualPath, err.Error(), sp)
	}

	child := it.NewContext(qualPath).
		WithConstraints(ctx.Constraints)
	childSet := it.execBlock(pathctx.Singleton(child, it.opts.PathCap), block)
	childSet = it.siphonErrors(childSet)

	out := pathctx.Empty(it.opts.PathCap)
	for _, cc := range childSet.Live {
		out = out.Join(it.mergeModule(ctx, cc, qualPath, sp))
	}
	return &pathctx.ContextSet{
		Live:    out.Live,
		Failed:  append(out.Failed, childSet.Failed...),
		PathCap: it.opts.PathCap,
	}
}

func (it *Interpreter) mergeModule(parent, child *pathctx.Context, qualPath string, sp *symexpr.Span) *pathctx.ContextSet {
	delta := parent.Heap.NextID()
	offHeap := child.Heap.AddOffset(delta)
	offEnv := child.Env.AddOffset(delta)

	heap := parent.Heap.Merge(offHeap)
	ctx := parent.WithHeap(heap)

	// The module object's attrs point at the relocated globals.
	modAddr, ctx2 := ctx.Malloc()
	mod := value.Object{
		ID:   it.ids.Next(),
		Addr: modAddr,
		Attrs: map[string]value.Value{
			value.AttrMRO: value.String{Sym: symexpr.ConstStr("module")},
			"__name__":    value.String{Sym: symexpr.ConstStr(qualPath)},
		},
		Indices:   map[int64]value.Value{},
		KeyValues: map[string]value.Value{},
	}
	offEnv.ForEach(func(name string, a env.Address) {
		if !a.IsBuiltin() {
			mod.Attrs[name] = value.Addr{A: a}
		}
	})
	ctx2 = ctx2.SetVal(modAddr, mod)

	// Wildcard merge into the import environment (addresses >= 0 only).
	imports := ctx2.ImportEnv.MergeAddr(offEnv)
	ctx2 = ctx2.WithImportEnv(imports)

	// Child diagnostics ride along in evaluation order.
	for _, d := range child.Log {
		ctx2 = ctx2.AddDiag(d)
	}
	ctx2 = ctx2.WithConstraints(child.Constraints)

	// Bound memory across the merge: sweep from the live roots.
	roots := ctx2.Env.MergeAddr(imports)
	ctx2 = ctx2.WithHeap(ctx2.Heap.RunGC(roots, value.Addr{A: modAddr}))

	return it.single(ctx2.SetRetVal(value.Addr{A: modAddr}))
}

// importUnavailable keeps the path alive with a warning and an empty
// module object, per the Unsupported error contract.
func (it *Interpreter) importUnavailable(ctx *pathctx.Context, qualPath, why string, sp *symexpr.Span) *pathctx.ContextSet {
	ctx = ctx.AddDiag(value.Error{
		Severity: value.SeverityWarning,
		Reason:   value.ReasonUnsupported,
		Message:  "cannot import " + qualPath + ": " + why,
		Source:   sp,
	})
	addr, c := ctx.Malloc()
	mod := value.Object{
		ID:   it.ids.Next(),
		Addr: addr,
		Attrs: map[string]value.Value{
			value.AttrMRO: value.String{Sym: symexpr.ConstStr("module")},
			"__name__":    value.String{Sym: symexpr.ConstStr(qualPath)},
		},
		Indices:   map[int64]value.Value{},
		KeyValues: map[string]value.Value{},
	}
	c = c.SetVal(addr, mod)
	return it.single(c.SetRetVal(value.Addr{A: addr}))
}
