// Package libcall implements the library-call dispatcher: a registry
// mapping qualified library names (torch.conv2d, shape.repeat, ...) to
// semantic handlers that consume typed parameters, emit obligations, and
// return a new path state. Structural handlers (imports, list/dict
// construction, raise) and tensor handlers (shape contracts) are just
// two groups of registrations sharing one Handler function type.
package libcall

import (
	"github.com/pytea-go/symexec/internal/config"
	"github.com/pytea-go/symexec/internal/pathctx"
	"github.com/pytea-go/symexec/internal/symexpr"
	"github.com/pytea-go/symexec/internal/value"
)

// ArgSource supplies command-line-derived values for the
// argparse.inject_argument handler. A missing value induces a fresh
// symbol of the declared sort.
type ArgSource interface {
	Get(name string) (any, bool)
}

// CallFn invokes a callable value (a user Func or a builtin) with
// positional and keyword arguments, returning the resulting path set.
// It is provided by the interpreter; handlers like callKV and
// __getattr__ fallbacks route user-code calls back through it.
type CallFn func(ctx *pathctx.Context, fn value.Value, args []value.Value, kwargs map[string]value.Value, sp *symexpr.Span) *pathctx.ContextSet

// ImportFn evaluates the lowered module at a dotted path and merges its
// bindings into the given context, leaving the module object as the
// RetVal. Provided by the interpreter.
type ImportFn func(ctx *pathctx.Context, qualPath string, sp *symexpr.Span) *pathctx.ContextSet

// Session carries the per-analysis mutable counters and collaborator
// callbacks every handler needs: the symbol factory, the object id
// allocator, the process options, the ArgSource, and the interpreter's
// call/import entry points. One Session per analysis run; handlers never
// reach for package-level state.
type Session struct {
	Syms   *symexpr.Factory
	IDs    *value.IDAllocator
	Opts   *config.Options
	Args   ArgSource
	Call   CallFn
	Import ImportFn

	// ExportLog records exportGlobal bindings during top-level module
	// evaluation so importers can re-expose them.
	ExportLog []string
}

// PathCap returns the configured live-path ceiling.
func (s *Session) PathCap() int {
	if s.Opts == nil {
		return config.DefaultPathCap
	}
	return s.Opts.PathCap
}

// Single wraps one context as a one-element set under the session's cap,
// with the eager-check policy from the immediateConstraintCheck option.
func (s *Session) Single(ctx *pathctx.Context) *pathctx.ContextSet {
	out := pathctx.Singleton(ctx, s.PathCap())
	if s.Opts != nil {
		out.KeepValid = !s.Opts.ImmediateConstraintCheck
	}
	return out
}

// Invocation is one evaluated LibCall: the context it runs in, the
// handler name, the named parameter values in declaration order, and the
// source span for diagnostics.
type Invocation struct {
	Ctx    *pathctx.Context
	Name   string
	Params []Param
	Span   *symexpr.Span
}

// Param is one evaluated (name, value) pair.
type Param struct {
	Name string
	Val  value.Value
}

// Value looks up a named parameter, reporting whether it was supplied.
func (inv *Invocation) Value(name string) (value.Value, bool) {
	for _, p := range inv.Params {
		if p.Name == name {
			return p.Val, true
		}
	}
	return nil, false
}

// Pos returns the i-th parameter positionally, for handlers whose
// parameter names are uninformative ("0", "1", ...).
func (inv *Invocation) Pos(i int) (value.Value, bool) {
	if i < 0 || i >= len(inv.Params) {
		return nil, false
	}
	return inv.Params[i].Val, true
}

// Handler implements the shape semantics of one library entry point. It
// may fork (via ContextSet.IfThenElse) to model rank- or dtype-dependent
// behaviour, and it introduces obligations only through Require.
type Handler func(s *Session, inv *Invocation) *pathctx.ContextSet

// Registry maps qualified handler names to Handlers.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry returns a Registry with every built-in handler installed:
// the structural handlers, then argparse, then the
// shape/torch/numpy/PIL/guard/math tensor namespaces.
func NewRegistry() *Registry {
	r := &Registry{handlers: map[string]Handler{}}
	registerStructural(r)
	registerArgparse(r)
	registerShape(r)
	registerTorch(r)
	registerTorchNN(r)
	registerNumpy(r)
	registerPIL(r)
	registerGuard(r)
	registerMath(r)
	return r
}

// Register installs (or overrides) a handler by qualified name.
func (r *Registry) Register(name string, h Handler) {
	r.handlers[name] = h
}

// Has reports whether name has a registered handler.
func (r *Registry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Dispatch routes one invocation to its handler. An absent handler is
// not fatal: the path continues with a warning and a fresh symbolic
// return value of the expected sort, per the Unsupported contract.
func (r *Registry) Dispatch(s *Session, inv *Invocation) *pathctx.ContextSet {
	if h, ok := r.handlers[inv.Name]; ok {
		return h(s, inv)
	}
	return unsupported(s, inv, "no handler registered for "+inv.Name)
}
