package pathctx

import (
	"testing"

	"github.com/pytea-go/symexec/internal/symexpr"
)

func symBool(name string) symexpr.Bool {
	f := symexpr.NewFactory()
	return symexpr.SymbolBool(f.FreshBool(name))
}

func TestIfThenElseSplitsOnUnknown(t *testing.T) {
	cs := Singleton(New(), 0)
	flag := symBool("flag")
	then, els := cs.IfThenElse(flag, nil)
	if len(then.Live) != 1 || len(els.Live) != 1 {
		t.Fatalf("expected both branches to keep one context, got then=%d else=%d", len(then.Live), len(els.Live))
	}
	if !then.Live[0].Constraints.Contains(flag) {
		t.Errorf("then branch should carry flag as a constraint")
	}
	if !els.Live[0].Constraints.Contains(symexpr.Not(flag)) {
		t.Errorf("else branch should carry !flag as a constraint")
	}
}

func TestIfThenElseConstantCondition(t *testing.T) {
	cs := Singleton(New(), 0)
	then, els := cs.IfThenElse(symexpr.ConstBool(true), nil)
	if len(then.Live) != 1 || len(els.Live) != 0 {
		t.Fatalf("constant-true condition should only populate then, got then=%d else=%d", len(then.Live), len(els.Live))
	}
}

func TestRequireMovesViolatedToFailed(t *testing.T) {
	cs := Singleton(New(), 0)
	out := cs.RequireOne(symexpr.ConstBool(false), "always false", nil)
	if len(out.Live) != 0 || len(out.Failed) != 1 {
		t.Fatalf("expected the context to move to failed, got live=%d failed=%d", len(out.Live), len(out.Failed))
	}
	if out.Failed[0].Log[0].Reason != "ObligationViolated" {
		t.Errorf("expected ObligationViolated reason, got %s", out.Failed[0].Log[0].Reason)
	}
}

func TestRequireAssociativity(t *testing.T) {
	a, b := symBool("a"), symBool("b")
	seq := Singleton(New(), 0).RequireOne(a, "a", nil).RequireOne(b, "b", nil)
	batch := Singleton(New(), 0).Require([]symexpr.Bool{a, b}, "ab", nil)
	if len(seq.Live) != len(batch.Live) {
		t.Fatalf("associativity mismatch: seq=%d batch=%d", len(seq.Live), len(batch.Live))
	}
}

func TestPathCapStructuralJoin(t *testing.T) {
	cs := &ContextSet{PathCap: 2}
	for i := 0; i < 5; i++ {
		cs.Live = append(cs.Live, New())
	}
	cs = cs.applyPathCap()
	if len(cs.Live) != 2 {
		t.Fatalf("expected path cap to bound live contexts to 2, got %d", len(cs.Live))
	}
}

func TestJoinPreservesOrder(t *testing.T) {
	a := Singleton(New().WithRelPath("a"), 0)
	b := Singleton(New().WithRelPath("b"), 0)
	joined := a.Join(b)
	if joined.Live[0].RelPath != "a" || joined.Live[1].RelPath != "b" {
		t.Errorf("join should preserve insertion order")
	}
}
