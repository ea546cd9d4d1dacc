package pathctx

import (
	"github.com/pytea-go/symexec/internal/constraints"
	"github.com/pytea-go/symexec/internal/symexpr"
	"github.com/pytea-go/symexec/internal/value"
)

// ContextSet is a collection of live Contexts plus a set of
// failed Contexts kept separately so their diagnostics survive pruning.
// A freshly forked branch may legitimately be empty (e.g. the
// else arm of an always-true condition); only the top-level run result
// is expected to have at least one of Live/Failed populated.
type ContextSet struct {
	Live    []*Context
	Failed  []*Context
	PathCap int // <= 0 means no cap

	// KeepValid retains trivially valid obligations in the conjunction
	// instead of discarding them eagerly (the immediateConstraintCheck
	// option turned off).
	KeepValid bool
}

// Singleton wraps one Context as a one-element set.
func Singleton(c *Context, pathCap int) *ContextSet {
	return &ContextSet{Live: []*Context{c}, PathCap: pathCap}
}

// Empty returns a ContextSet with no live and no failed contexts,
// inheriting pathCap so later Joins keep enforcing it.
func Empty(pathCap int) *ContextSet {
	return &ContextSet{PathCap: pathCap}
}

func (s *ContextSet) withLiveFailed(live, failed []*Context) *ContextSet {
	return (&ContextSet{Live: live, Failed: failed, PathCap: s.PathCap, KeepValid: s.KeepValid}).applyPathCap()
}

// Map applies f to every live Context, pointwise. Failed contexts pass
// through untouched; a failed path's diagnostics are already final.
func (s *ContextSet) Map(f func(*Context) *Context) *ContextSet {
	out := make([]*Context, len(s.Live))
	for i, c := range s.Live {
		out[i] = f(c)
	}
	return s.withLiveFailed(out, s.Failed)
}

// FlatMap runs f over every live Context and flattens the resulting
// sets, accumulating both live and failed contexts and re-applying the
// path cap to the combined live set.
func (s *ContextSet) FlatMap(f func(*Context) *ContextSet) *ContextSet {
	var live, failed []*Context
	for _, c := range s.Live {
		sub := f(c)
		live = append(live, sub.Live...)
		failed = append(failed, sub.Failed...)
	}
	failed = append(failed, s.Failed...)
	return s.withLiveFailed(live, failed)
}

// Return sets every live Context's RetVal to v, leaving Flag untouched
// (a plain value-producing expression, not a Return statement).
func (s *ContextSet) Return(v value.Value) *ContextSet {
	return s.Map(func(c *Context) *Context { return c.SetRetVal(v) })
}

// Join is set union preserving order, used at control-flow merge
// points (e.g. after an if/else, or after a loop's break/continue
// arms rejoin the fallthrough arm).
func (s *ContextSet) Join(other *ContextSet) *ContextSet {
	live := append(append([]*Context{}, s.Live...), other.Live...)
	failed := append(append([]*Context{}, s.Failed...), other.Failed...)
	return s.withLiveFailed(live, failed)
}

// IfThenElse splits every live Context on c: if isValid(c) holds only
// the then branch keeps it; if isValid(!c) holds only the else branch
// does; otherwise both branches get a clone, each carrying the
// respective literal added to its constraint set.
func (s *ContextSet) IfThenElse(c symexpr.Bool, src *symexpr.Span) (thenSet, elseSet *ContextSet) {
	var thenLive, elseLive []*Context
	for _, ctx := range s.Live {
		switch {
		case ctx.Constraints.IsValid(c):
			thenLive = append(thenLive, ctx)
		case ctx.Constraints.IsValid(symexpr.Not(c)):
			elseLive = append(elseLive, ctx)
		default:
			thenLive = append(thenLive, ctx.WithConstraints(ctx.Constraints.Add(c)))
			elseLive = append(elseLive, ctx.WithConstraints(ctx.Constraints.Add(symexpr.Not(c))))
		}
	}
	thenSet = (&ContextSet{Live: thenLive, PathCap: s.PathCap, KeepValid: s.KeepValid}).applyPathCap()
	elseSet = (&ContextSet{Live: elseLive, PathCap: s.PathCap, KeepValid: s.KeepValid}).applyPathCap()
	return thenSet, elseSet
}

// Require is the only place new path obligations are introduced. For
// every live Context and every c in cs: if isValid(c) holds, the
// Context continues untouched; if isValid(!c) holds, it moves to the
// failed bucket with an ObligationViolated diagnostic attached;
// otherwise c is folded into the Context's constraint set and
// evaluation continues (an oracle Unknown is logged as a warning but
// does not fail the path).
func (s *ContextSet) Require(cs []symexpr.Bool, msg string, src *symexpr.Span) *ContextSet {
	var live, failed []*Context
	for _, ctx := range s.Live {
		cur := ctx
		violated := false
		for _, c := range cs {
			if cur.Constraints.IsValid(c) {
				if s.KeepValid {
					if _, trivial := symexpr.NormalizeBool(c).(symexpr.BoolConst); !trivial {
						cur = cur.WithConstraints(cur.Constraints.Guarantee(c))
					}
				}
				continue
			}
			if cur.Constraints.IsValid(symexpr.Not(c)) {
				cur = cur.AddDiag(value.Error{
					Severity: value.SeverityError,
					Reason:   value.ReasonObligationViolated,
					Message:  msg,
					Source:   src,
				}).MarkFailed()
				violated = true
				break
			}
			cur = cur.WithConstraints(cur.Constraints.Add(c))
			cur = cur.AddDiag(value.Error{
				Severity: value.SeverityWarning,
				Reason:   value.ReasonObligationUnknown,
				Message:  msg,
				Source:   src,
			})
		}
		if violated {
			failed = append(failed, cur)
		} else {
			live = append(live, cur)
		}
	}
	failed = append(failed, s.Failed...)
	return s.withLiveFailed(live, failed)
}

// RequireOne is Require for a single obligation; a Require over a list
// is equivalent to chaining RequireOne per element.
func (s *ContextSet) RequireOne(c symexpr.Bool, msg string, src *symexpr.Span) *ContextSet {
	return s.Require([]symexpr.Bool{c}, msg, src)
}

// applyPathCap bounds path explosion: once the live
// set would exceed PathCap, the overflow contexts are merged into one
// structural-join Context whose constraint set is the disjunction of
// the merged contexts' conjunctions and whose heap/env is taken from
// the first merged context (the "weaker of the two heaps" arm of the
// policy). The merge is logged at warning level on the surviving
// context so the loss of precision is visible in diagnostics.
func (s *ContextSet) applyPathCap() *ContextSet {
	if s.PathCap <= 0 || len(s.Live) <= s.PathCap {
		return s
	}
	keep := s.Live[:s.PathCap-1]
	overflow := s.Live[s.PathCap-1:]

	merged := overflow[0]
	disj := conjunctionAsBool(merged.Constraints.Conj)
	for _, c := range overflow[1:] {
		disj = symexpr.Or(disj, conjunctionAsBool(c.Constraints.Conj))
	}
	joined := constraintsFromDisjunction(disj)
	merged = merged.WithConstraints(joined).AddDiag(value.Error{
		Severity: value.SeverityWarning,
		Reason:   value.ReasonUnsupported,
		Message:  "path cap exceeded: structurally joined overflow paths into one weaker context",
	})
	live := append(append([]*Context{}, keep...), merged)
	return &ContextSet{Live: live, Failed: s.Failed, PathCap: s.PathCap}
}

func conjunctionAsBool(conj []symexpr.Bool) symexpr.Bool {
	if len(conj) == 0 {
		return symexpr.ConstBool(true)
	}
	out := conj[0]
	for _, c := range conj[1:] {
		out = symexpr.And(out, c)
	}
	return out
}

func constraintsFromDisjunction(b symexpr.Bool) *constraints.Set {
	return constraints.New().Add(b)
}
