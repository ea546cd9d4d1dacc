// Package interp evaluates the intermediate language over Context and
// ContextSet: single-threaded, deterministic, and cooperative, with
// forking modelled in the set (never via goroutines). A single
// type-switch dispatch drives statement and expression evaluation;
// cancellation rides a context.Context polled between statements and
// between paths.
package interp

import (
	"context"

	"github.com/pytea-go/symexec/internal/config"
	"github.com/pytea-go/symexec/internal/ir"
	"github.com/pytea-go/symexec/internal/libcall"
	"github.com/pytea-go/symexec/internal/pathctx"
	"github.com/pytea-go/symexec/internal/symexpr"
	"github.com/pytea-go/symexec/internal/value"
)

// Parser lowers Python source into the intermediate tree. The core
// never reparses; this interface names what it consumes from that
// collaborator.
type Parser interface {
	ParseModule(text string, fileID string) (*ir.Block, error)
}

// ModuleLoader resolves a dotted import path to a lowered module tree,
// typically by locating the file under the configured library root and
// handing it to a Parser.
type ModuleLoader interface {
	LoadModule(qualPath string) (*ir.Block, error)
}

// Result is what one analysis run produces: the terminal ContextSet and
// whether the run was cancelled before reaching the program end.
type Result struct {
	Set       *pathctx.ContextSet
	Cancelled bool
}

// Interpreter drives one analysis session. It owns the session-scoped
// counters (symbol factory, object id allocator) and the library-call
// registry; construct a fresh Interpreter per analysis so concurrent
// sessions never share counters.
type Interpreter struct {
	opts   *config.Options
	syms   *symexpr.Factory
	ids    *value.IDAllocator
	reg    *libcall.Registry
	sess   *libcall.Session
	loader ModuleLoader

	goCtx     context.Context
	cancelled bool
}

// New builds an Interpreter over the given options, CLI-argument
// source, and module loader (both may be nil; argparse injection then
// falls back to fresh symbols and imports degrade to warnings).
func New(opts *config.Options, args libcall.ArgSource, loader ModuleLoader) *Interpreter {
	if opts == nil {
		opts = config.Default()
	}
	it := &Interpreter{
		opts:   opts,
		syms:   symexpr.NewFactory(),
		ids:    value.NewIDAllocator(),
		reg:    libcall.NewRegistry(),
		loader: loader,
	}
	it.sess = &libcall.Session{
		Syms:   it.syms,
		IDs:    it.ids,
		Opts:   opts,
		Args:   args,
		Call:   it.callValue,
		Import: it.importModule,
	}
	return it
}

// Symbols exposes the session symbol factory, letting callers seed
// symbolic inputs (test harnesses, the CLI's entry gluing) with the
// same id space the run uses.
func (it *Interpreter) Symbols() *symexpr.Factory { return it.syms }

// IDs exposes the session object id allocator for the same reason.
func (it *Interpreter) IDs() *value.IDAllocator { return it.ids }

// Registry exposes the library-call registry so embedders can add or
// override handlers before a run.
func (it *Interpreter) Registry() *libcall.Registry { return it.reg }

// Session exposes the libcall session for callers that construct
// initial heap values through the same helpers handlers use.
func (it *Interpreter) Session() *libcall.Session { return it.sess }

// Run evaluates program from a fresh initial context with the built-in
// environment pre-populated. goCtx is the cancellation handle; it is
// polled between statements and between paths, and on cancellation the
// set is returned as-is with the Cancelled flag.
func (it *Interpreter) Run(goCtx context.Context, program *ir.Block) *Result {
	ctx := it.NewContext("")
	return it.RunFrom(goCtx, ctx, program)
}

// RunFrom evaluates program from an existing initial context, for
// callers that pre-bind symbolic inputs before the run.
func (it *Interpreter) RunFrom(goCtx context.Context, ctx *pathctx.Context, program *ir.Block) *Result {
	it.goCtx = goCtx
	it.cancelled = false
	cs := pathctx.Singleton(ctx, it.opts.PathCap)
	cs.KeepValid = !it.opts.ImmediateConstraintCheck
	cs = it.execBlock(cs, program)
	cs = it.siphonErrors(cs)
	return &Result{Set: cs, Cancelled: it.cancelled}
}

// NewContext returns a fresh Context with the built-in environment
// seeded at negative addresses.
func (it *Interpreter) NewContext(relPath string) *pathctx.Context {
	ctx := pathctx.New().WithRelPath(relPath)
	return it.seedBuiltins(ctx)
}

// cancelledNow polls the cancellation handle, latching the result.
func (it *Interpreter) cancelledNow() bool {
	if it.cancelled {
		return true
	}
	if it.goCtx != nil && it.goCtx.Err() != nil {
		it.cancelled = true
	}
	return it.cancelled
}

// isFatal reports whether v is an Error that halts its path at the next
// join (everything except warnings and log traces).
func isFatal(v value.Value) bool {
	return value.IsError(v)
}

// siphonErrors moves every live context whose RetVal is a fatal Error
// into the failed bucket, attaching the error to the path log. This is
// the "next join" of the propagation table: expression errors ride the
// RetVal until a statement boundary and are then pruned here.
func (it *Interpreter) siphonErrors(cs *pathctx.ContextSet) *pathctx.ContextSet {
	var live, failed []*pathctx.Context
	for _, c := range cs.Live {
		if e, ok := c.RetVal.(value.Error); ok && e.Severity == value.SeverityError {
			failed = append(failed, c.AddDiag(e).MarkFailed())
			continue
		}
		live = append(live, c)
	}
	failed = append(failed, cs.Failed...)
	return &pathctx.ContextSet{Live: live, Failed: failed, PathCap: cs.PathCap}
}
