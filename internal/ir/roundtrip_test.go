package ir

import "testing"

const sample = `(block
  (let x (libcall "torch.zeros" ((size (tuple (int 4) (int 3))))))
  (fundef step (a b) ((b (int 2))) rest _ 0
    (block
      (return (bin "+" (name a) (name b)))))
  (if (bin "<" (name x) (int 10))
    (block
      (expr (call (name step) ((int 1)) ((b (int 3))))))
    (block
      (for i (name x)
        (block
          (let y (attr (name i) shape))
          (break)))))
  (assert (bin "==" (name x) (name x)) "x must equal itself")
  (expr (dict ((str "k") (int 1))))
  (expr (un "-" (float 1.5)))
  (expr (sub (list (int 1) (int 2)) (int 0)))
  (return (none)))`

func TestRoundTrip(t *testing.T) {
	var p SExprParser
	tree, err := p.ParseModule(sample, "sample.il")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	printed := Print(tree)
	again, err := p.ParseModule(printed, "sample.il")
	if err != nil {
		t.Fatalf("re-parse of printed form: %v\n%s", err, printed)
	}
	if !Equal(tree, again) {
		t.Fatalf("round trip not structurally equal:\n%s\n---\n%s", printed, Print(again))
	}
}

func TestParseErrors(t *testing.T) {
	var p SExprParser
	cases := []string{
		"",
		"(block",
		"(block (let))",
		"(block (expr (bogus)))",
		`(block (expr (int nope)))`,
	}
	for _, src := range cases {
		if _, err := p.ParseModule(src, "bad.il"); err == nil {
			t.Errorf("expected an error for %q", src)
		}
	}
}

func TestSpansAttached(t *testing.T) {
	var p SExprParser
	tree, err := p.ParseModule(`(block (let x (int 1)))`, "f.il")
	if err != nil {
		t.Fatal(err)
	}
	if tree.Span() == nil || tree.Span().FileID != "f.il" {
		t.Errorf("module block should carry a span with the file id")
	}
	let := tree.Stmts[0].(*Let)
	if let.Span() == nil || let.Span().Start == 0 {
		t.Errorf("inner statement should carry a non-zero offset span, got %+v", let.Span())
	}
}
