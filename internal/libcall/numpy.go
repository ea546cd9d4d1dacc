package libcall

import (
	"github.com/pytea-go/symexec/internal/pathctx"
	"github.com/pytea-go/symexec/internal/symexpr"
)

// registerNumpy installs the numpy namespace. ndarray shape semantics
// coincide with the torch handlers for everything the lowered library
// exercises, so most entries share the torch implementations.
func registerNumpy(r *Registry) {
	r.Register("numpy.array", handleNumpyArray)
	for _, name := range []string{"numpy.zeros", "numpy.ones", "numpy.empty", "numpy.full"} {
		r.Register(name, handleCreate)
	}
	for _, name := range []string{"numpy.add", "numpy.subtract", "numpy.multiply", "numpy.divide"} {
		r.Register(name, handleElementwise)
	}
	r.Register("numpy.matmul", handleMatmul)
	r.Register("numpy.dot", handleMatmul)
	r.Register("numpy.reshape", handleView)
	r.Register("numpy.transpose", handleNumpyTranspose)
	r.Register("numpy.concatenate", handleCat)
	r.Register("numpy.stack", handleStack)
	for _, name := range []string{"numpy.sum", "numpy.mean", "numpy.prod", "numpy.argmax"} {
		r.Register(name, handleReduce)
	}
}

// handleNumpyArray builds an ndarray from nested list data (or copies an
// existing tensor's shape).
func handleNumpyArray(s *Session, inv *Invocation) *pathctx.ContextSet {
	v, ok := inv.Value("data")
	if !ok {
		return typeErr(s, inv, "missing data")
	}
	if sh, ok := shapeOf(inv.Ctx, v); ok {
		return returnSize(s, inv.Ctx, sh)
	}
	sh, ok := extractShape(inv.Ctx, v, 0)
	if !ok {
		return typeErr(s, inv, "cannot infer a shape from data")
	}
	return returnSize(s, inv.Ctx, sh)
}

// handleNumpyTranspose without an axes argument reverses every dim
// (numpy semantics, unlike torch.transpose's two-dim swap).
func handleNumpyTranspose(s *Session, inv *Invocation) *pathctx.ContextSet {
	if _, hasAxes := inv.Value("dims"); hasAxes {
		return handlePermute(s, inv)
	}
	sh, fail := inputShape(s, inv)
	if fail != nil {
		return fail
	}
	rank, ok := symexpr.AsConstInt(symexpr.Rank(sh))
	if !ok {
		return unsupported(s, inv, "transpose with a symbolic-rank input")
	}
	dims := make([]symexpr.Num, rank)
	for i := int64(0); i < rank; i++ {
		dims[i] = dim(sh, rank-1-i)
	}
	return returnSize(s, inv.Ctx, symexpr.ConstShape(dims...))
}
