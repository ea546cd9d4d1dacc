package diagnostics

import (
	"strings"
	"testing"

	"github.com/pytea-go/symexec/internal/config"
	"github.com/pytea-go/symexec/internal/pathctx"
	"github.com/pytea-go/symexec/internal/value"
)

func TestKeepByLevel(t *testing.T) {
	cases := []struct {
		sev   value.Severity
		level config.LogLevel
		want  bool
	}{
		{value.SeverityLog, config.LogFull, true},
		{value.SeverityLog, config.LogReduced, false},
		{value.SeverityWarning, config.LogReduced, true},
		{value.SeverityError, config.LogReduced, true},
		{value.SeverityError, config.LogNone, false},
		{value.SeverityError, config.LogResultOnly, false},
	}
	for _, c := range cases {
		if got := Keep(c.sev, c.level); got != c.want {
			t.Errorf("Keep(%s, %s) = %v, want %v", c.sev, c.level, got, c.want)
		}
	}
}

func TestClassifyVerdict(t *testing.T) {
	ok := pathctx.New()
	if ClassifyVerdict(ok) != VerdictSuccess {
		t.Errorf("clean context should be success")
	}
	warned := ok.AddDiag(value.Error{Severity: value.SeverityWarning, Reason: value.ReasonObligationUnknown})
	if ClassifyVerdict(warned) != VerdictWarning {
		t.Errorf("warned context should be warning")
	}
	failed := ok.MarkFailed()
	if ClassifyVerdict(failed) != VerdictFailure {
		t.Errorf("failed context should be failure")
	}
}

func TestRenderKeepsEvaluationOrder(t *testing.T) {
	c := pathctx.New().
		AddDiag(value.Error{Severity: value.SeverityWarning, Reason: value.ReasonObligationUnknown, Message: "first"}).
		AddDiag(value.Error{Severity: value.SeverityWarning, Reason: value.ReasonObligationUnknown, Message: "second"})
	out := RenderPath(c, config.LogReduced)
	if strings.Index(out, "first") > strings.Index(out, "second") {
		t.Errorf("diagnostics must render in evaluation order:\n%s", out)
	}
}

func TestRenderNoneLevelIsCountsOnly(t *testing.T) {
	out := Render([]*pathctx.Context{pathctx.New()}, nil, config.LogNone)
	if !strings.Contains(out, "1 ok, 0 failed") {
		t.Errorf("none level should print counts only, got %q", out)
	}
}
