package interp

import (
	"context"
	"os"
	"strconv"
	"strings"
	"testing"

	"golang.org/x/tools/txtar"

	"github.com/pytea-go/symexec/internal/config"
	"github.com/pytea-go/symexec/internal/ir"
	"github.com/pytea-go/symexec/internal/symexpr"
	"github.com/pytea-go/symexec/internal/value"
)

func loadScenario(t *testing.T, name string) *ir.Block {
	t.Helper()
	archive, err := txtar.ParseFile("testdata/scenarios.txtar")
	if err != nil {
		t.Fatalf("reading scenario archive: %v", err)
	}
	for _, f := range archive.Files {
		if f.Name == name {
			var p ir.SExprParser
			block, err := p.ParseModule(string(f.Data), name)
			if err != nil {
				t.Fatalf("parsing %s: %v", name, err)
			}
			return block
		}
	}
	t.Fatalf("scenario %s not found in archive", name)
	return nil
}

type stubArgs map[string]any

func (a stubArgs) Get(name string) (any, bool) {
	v, ok := a[name]
	return v, ok
}

func runScenario(t *testing.T, name string, args stubArgs) *Result {
	t.Helper()
	it := New(config.Default(), args, nil)
	return it.Run(context.Background(), loadScenario(t, name))
}

func retSizeShape(t *testing.T, res *Result) symexpr.ShapeConst {
	t.Helper()
	if len(res.Set.Live) != 1 {
		t.Fatalf("live paths = %d, want 1 (failed = %d)", len(res.Set.Live), len(res.Set.Failed))
	}
	c := res.Set.Live[0]
	obj, ok := derefObject(c, c.RetVal)
	if !ok || !obj.IsSize() {
		t.Fatalf("return value is not a Size: %v", c.RetVal)
	}
	sc, ok := symexpr.NormalizeShape(obj.Shape).(symexpr.ShapeConst)
	if !ok {
		t.Fatalf("return shape is not constant-rank: %s", obj.Shape)
	}
	return sc
}

func TestScenarioConvThenView(t *testing.T) {
	res := runScenario(t, "conv_then_view.il", nil)
	sc := retSizeShape(t, res)
	if len(res.Set.Failed) != 0 {
		t.Fatalf("no path may fail, failed=%d", len(res.Set.Failed))
	}
	if sc.Rank != 2 {
		t.Fatalf("rank = %d, want 2", sc.Rank)
	}
	d0, _ := symexpr.AsConstInt(sc.Dims[0])
	d1, _ := symexpr.AsConstInt(sc.Dims[1])
	if d0 != 4 || d1 != 6*28*28 {
		t.Errorf("shape = (%d, %d), want (4, %d)", d0, d1, 6*28*28)
	}
	if len(res.Set.Live[0].Constraints.Conj) != 0 {
		t.Errorf("no obligations should be outstanding, got %v", res.Set.Live[0].Constraints.Conj)
	}
}

func TestScenarioBroadcastMismatch(t *testing.T) {
	res := runScenario(t, "broadcast_mismatch.il", nil)
	if len(res.Set.Failed) != 1 || len(res.Set.Live) != 0 {
		t.Fatalf("live=%d failed=%d, want 0/1", len(res.Set.Live), len(res.Set.Failed))
	}
	found := false
	for _, d := range res.Set.Failed[0].Log {
		if strings.Contains(d.Message, "broadcast") {
			found = true
		}
	}
	if !found {
		t.Errorf("obligation message should mention broadcastability: %v", res.Set.Failed[0].Log)
	}
}

func TestScenarioSymbolicBatch(t *testing.T) {
	res := runScenario(t, "symbolic_batch.il", nil)
	sc := retSizeShape(t, res)
	if sc.Rank != 2 {
		t.Fatalf("rank = %d, want 2", sc.Rank)
	}
	if _, isConst := symexpr.AsConstInt(sc.Dims[0]); isConst {
		t.Errorf("batch dim should stay symbolic, got %s", sc.Dims[0])
	}
	if d1, _ := symexpr.AsConstInt(sc.Dims[1]); d1 != 4 {
		t.Errorf("dim 1 = %s, want 4", sc.Dims[1])
	}
	// The matmul precondition batch >= 1 must be recorded.
	c := res.Set.Live[0]
	found := false
	for _, b := range c.Constraints.Conj {
		if strings.Contains(b.String(), "1 <=") || strings.Contains(b.String(), "<= arg_batch") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a recorded >= 1 precondition, conjunction: %v", c.Constraints.Conj)
	}
}

func TestScenarioLoopSum(t *testing.T) {
	res := runScenario(t, "loop_sum.il", nil)
	if len(res.Set.Live) != 1 || len(res.Set.Failed) != 0 {
		t.Fatalf("live=%d failed=%d, want 1/0", len(res.Set.Live), len(res.Set.Failed))
	}
	c := res.Set.Live[0]
	iv, ok := c.RetVal.(value.Int)
	if !ok {
		t.Fatalf("total is not an Int: %v", c.RetVal)
	}
	syms := symexpr.UsedSymbolsNum(iv.Sym)
	if len(syms) != 3 {
		t.Errorf("total should mention the three element symbols, got %d in %s", len(syms), iv.Sym)
	}
}

func TestScenarioConditionalShape(t *testing.T) {
	res := runScenario(t, "conditional_shape.il", nil)
	if len(res.Set.Live) != 2 || len(res.Set.Failed) != 0 {
		t.Fatalf("live=%d failed=%d, want 2/0", len(res.Set.Live), len(res.Set.Failed))
	}
	seen := map[string]bool{}
	for _, c := range res.Set.Live {
		obj, ok := derefObject(c, c.RetVal)
		if !ok || !obj.IsSize() {
			t.Fatalf("branch result is not a Size: %v", c.RetVal)
		}
		sc := symexpr.NormalizeShape(obj.Shape).(symexpr.ShapeConst)
		d0, _ := symexpr.AsConstInt(sc.Dims[0])
		d1, _ := symexpr.AsConstInt(sc.Dims[1])
		seen[strconv.FormatInt(d0, 10)+"x"+strconv.FormatInt(d1, 10)] = true
		if len(c.Constraints.Conj) == 0 {
			t.Errorf("each branch must carry its flag constraint")
		}
	}
	if !seen["2x3"] || !seen["3x2"] {
		t.Errorf("expected shapes 2x3 and 3x2 across branches, got %v", seen)
	}
}

func TestScenarioArgparseInjection(t *testing.T) {
	res := runScenario(t, "argparse_inject.il", stubArgs{"lr": "0.1"})
	c := res.Set.Live[0]
	fv, ok := c.RetVal.(value.Float)
	if !ok {
		t.Fatalf("lr is not a Float: %v", c.RetVal)
	}
	if _, isConst := symexpr.NormalizeNum(fv.Sym).(symexpr.NumConst); !isConst {
		t.Errorf("lr should be the concrete 0.1, got %s", fv.Sym)
	}

	res2 := runScenario(t, "argparse_inject.il", nil)
	fv2 := res2.Set.Live[0].RetVal.(value.Float)
	sym, ok := fv2.Sym.(symexpr.NumSymbol)
	if !ok || sym.Sym.Name != "arg_lr" {
		t.Errorf("missing lr should be a fresh symbol named arg_lr, got %s", fv2.Sym)
	}
}

const funcProgram = `(block
  (fundef add (a b) ((b (int 10))) _ _ 0
    (block
      (return (bin "+" (name a) (name b)))))
  (let r1 (call (name add) ((int 1) (int 2)) ()))
  (let r2 (call (name add) ((int 5)) ()))
  (return (bin "+" (name r1) (name r2))))`

func TestFunctionCallDefaults(t *testing.T) {
	var p ir.SExprParser
	block, err := p.ParseModule(funcProgram, "func.il")
	if err != nil {
		t.Fatal(err)
	}
	it := New(config.Default(), nil, nil)
	res := it.Run(context.Background(), block)
	if len(res.Set.Live) != 1 {
		t.Fatalf("live=%d failed=%d", len(res.Set.Live), len(res.Set.Failed))
	}
	iv := res.Set.Live[0].RetVal.(value.Int)
	if n, ok := symexpr.AsConstInt(iv.Sym); !ok || n != 18 {
		t.Errorf("add(1,2) + add(5) = %s, want 18", iv.Sym)
	}
}

const varargsProgram = `(block
  (fundef gather (first) () rest kw 0
    (block
      (return (name rest))))
  (let r (call (name gather) ((int 1) (int 2) (int 3)) ((extra (int 9)))))
  (return (name r)))`

func TestVarargsAndKwargs(t *testing.T) {
	var p ir.SExprParser
	block, err := p.ParseModule(varargsProgram, "varargs.il")
	if err != nil {
		t.Fatal(err)
	}
	it := New(config.Default(), nil, nil)
	res := it.Run(context.Background(), block)
	if len(res.Set.Live) != 1 {
		t.Fatalf("live=%d failed=%d", len(res.Set.Live), len(res.Set.Failed))
	}
	c := res.Set.Live[0]
	obj, ok := derefObject(c, c.RetVal)
	if !ok {
		t.Fatalf("varargs tuple missing: %v", c.RetVal)
	}
	if n, _ := concreteLen(obj); n != 2 {
		t.Errorf("rest should hold the 2 overflow positionals, got %d", n)
	}
}

const breakProgram = `(block
  (let hits (int 0))
  (for i (call (name range) ((int 5)) ())
    (block
      (if (bin "==" (name i) (int 2))
        (block (break)))
      (let hits (bin "+" (name hits) (int 1)))))
  (return (name hits)))`

func TestForLoopBreak(t *testing.T) {
	var p ir.SExprParser
	block, err := p.ParseModule(breakProgram, "break.il")
	if err != nil {
		t.Fatal(err)
	}
	it := New(config.Default(), nil, nil)
	res := it.Run(context.Background(), block)
	if len(res.Set.Live) != 1 {
		t.Fatalf("live=%d failed=%d", len(res.Set.Live), len(res.Set.Failed))
	}
	iv := res.Set.Live[0].RetVal.(value.Int)
	if n, ok := symexpr.AsConstInt(iv.Sym); !ok || n != 2 {
		t.Errorf("break at i==2 should leave hits=2, got %s", iv.Sym)
	}
}

const unboundProgram = `(block
  (let x (name nope))
  (return (name x)))`

func TestUnboundNameMovesToFailed(t *testing.T) {
	var p ir.SExprParser
	block, err := p.ParseModule(unboundProgram, "unbound.il")
	if err != nil {
		t.Fatal(err)
	}
	it := New(config.Default(), nil, nil)
	res := it.Run(context.Background(), block)
	if len(res.Set.Failed) != 1 {
		t.Fatalf("unbound name must fail the path, live=%d", len(res.Set.Live))
	}
	if res.Set.Failed[0].Log[0].Reason != value.ReasonUnboundName {
		t.Errorf("expected UnboundName, got %v", res.Set.Failed[0].Log[0].Reason)
	}
}

func TestAssertHonoursIgnoreOption(t *testing.T) {
	src := `(block (assert (bool false) "nope") (return (int 1)))`
	var p ir.SExprParser
	block, err := p.ParseModule(src, "assert.il")
	if err != nil {
		t.Fatal(err)
	}

	strict := New(config.Default(), nil, nil)
	res := strict.Run(context.Background(), block)
	if len(res.Set.Failed) != 1 {
		t.Fatalf("failing assert must fail the path")
	}

	opts := config.Default()
	opts.IgnoreAssert = true
	lax := New(opts, nil, nil)
	res2 := lax.Run(context.Background(), block)
	if len(res2.Set.Live) != 1 || len(res2.Set.Failed) != 0 {
		t.Fatalf("ignoreAssert must skip the assert, live=%d failed=%d", len(res2.Set.Live), len(res2.Set.Failed))
	}
}

func TestCancellationReturnsFlag(t *testing.T) {
	goCtx, cancel := context.WithCancel(context.Background())
	cancel()
	var p ir.SExprParser
	block, _ := p.ParseModule(`(block (let x (int 1)) (return (name x)))`, "c.il")
	it := New(config.Default(), nil, nil)
	res := it.Run(goCtx, block)
	if !res.Cancelled {
		t.Errorf("pre-cancelled context must set the Cancelled flag")
	}
}

func TestImportWithoutLoaderWarns(t *testing.T) {
	src := `(block (let m (libcall "import" ((qualPath (str "torch.nn"))))) (return (name m)))`
	var p ir.SExprParser
	block, err := p.ParseModule(src, "imp.il")
	if err != nil {
		t.Fatal(err)
	}
	it := New(config.Default(), nil, nil)
	res := it.Run(context.Background(), block)
	if len(res.Set.Live) != 1 {
		t.Fatalf("import without a loader must warn, not fail")
	}
	c := res.Set.Live[0]
	if len(c.Log) == 0 || c.Log[0].Severity != value.SeverityWarning {
		t.Errorf("expected a warning diagnostic, got %v", c.Log)
	}
}

type mapLoader map[string]string

func (m mapLoader) LoadModule(qualPath string) (*ir.Block, error) {
	src, ok := m[qualPath]
	if !ok {
		return nil, os.ErrNotExist
	}
	var p ir.SExprParser
	return p.ParseModule(src, qualPath)
}

func TestImportMergesModuleGlobals(t *testing.T) {
	loader := mapLoader{
		"mylib": `(block (let answer (int 42)))`,
	}
	src := `(block
	  (let m (libcall "import" ((qualPath (str "mylib")))))
	  (return (attr (name m) answer)))`
	var p ir.SExprParser
	block, err := p.ParseModule(src, "imp2.il")
	if err != nil {
		t.Fatal(err)
	}
	it := New(config.Default(), nil, loader)
	res := it.Run(context.Background(), block)
	if len(res.Set.Live) != 1 {
		t.Fatalf("live=%d failed=%d", len(res.Set.Live), len(res.Set.Failed))
	}
	iv, ok := res.Set.Live[0].RetVal.(value.Int)
	if !ok {
		t.Fatalf("module attribute is not an Int: %v", res.Set.Live[0].RetVal)
	}
	if n, ok := symexpr.AsConstInt(iv.Sym); !ok || n != 42 {
		t.Errorf("m.answer = %s, want 42", iv.Sym)
	}
}
