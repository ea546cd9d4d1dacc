package report

import (
	"encoding/json"
	"testing"

	"github.com/pytea-go/symexec/internal/config"
	"github.com/pytea-go/symexec/internal/pathctx"
	"github.com/pytea-go/symexec/internal/symexpr"
	"github.com/pytea-go/symexec/internal/value"
)

func TestBuildReport(t *testing.T) {
	ok := pathctx.New()
	bad := pathctx.New().AddDiag(value.Error{
		Severity: value.SeverityError,
		Reason:   value.ReasonObligationViolated,
		Message:  "shapes do not broadcast",
	}).MarkFailed()

	rep := Build("run-1", []*pathctx.Context{ok}, []*pathctx.Context{bad}, config.LogReduced)
	if rep.RunID != "run-1" {
		t.Errorf("run id not preserved: %s", rep.RunID)
	}
	if len(rep.Paths) != 2 {
		t.Fatalf("paths = %d, want 2", len(rep.Paths))
	}
	if rep.Paths[0].Verdict != "success" || rep.Paths[1].Verdict != "failure" {
		t.Errorf("verdicts = %s, %s", rep.Paths[0].Verdict, rep.Paths[1].Verdict)
	}

	data, err := rep.JSON()
	if err != nil {
		t.Fatal(err)
	}
	var back Report
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("report JSON does not round trip: %v", err)
	}
}

func TestBuildMintsRunID(t *testing.T) {
	rep := Build("", nil, nil, config.LogReduced)
	if rep.RunID == "" {
		t.Errorf("empty run id should be minted")
	}
}

func TestReportOrderingIsStable(t *testing.T) {
	f := symexpr.NewFactory()
	a := pathctx.New()
	a = a.WithConstraints(a.Constraints.Add(symexpr.SymbolBool(f.FreshBool("a"))))
	b := pathctx.New()
	b = b.WithConstraints(b.Constraints.Add(symexpr.SymbolBool(f.FreshBool("b"))))

	r1 := Build("x", []*pathctx.Context{a, b}, nil, config.LogReduced)
	r2 := Build("x", []*pathctx.Context{b, a}, nil, config.LogReduced)
	if r1.Paths[0].PathKey != r2.Paths[0].PathKey {
		t.Errorf("path order must not depend on exploration order")
	}
}
