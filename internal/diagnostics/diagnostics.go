// Package diagnostics turns the per-path Error/Warning/Log records
// accumulated in a pathctx.Context into ordered, filtered, rendered
// output: diagnostics within a path stay in evaluation order, but
// across paths exploration order is incidental, so paths are sorted by
// a stable constraint-hash key before anything is shown to a user.
package diagnostics

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/pytea-go/symexec/internal/config"
	"github.com/pytea-go/symexec/internal/pathctx"
	"github.com/pytea-go/symexec/internal/value"
)

// severityRank orders severities from least to most important so that
// "reduced" can keep "warning and above" with a simple threshold check.
var severityRank = map[value.Severity]int{
	value.SeverityLog:     0,
	value.SeverityWarning: 1,
	value.SeverityError:   2,
}

// Keep reports whether a record at the given severity survives the
// configured log level: "none" keeps nothing, "result-only" keeps
// nothing (the verdict alone is the output), "reduced" keeps warning
// and above, "full" keeps everything including log-level traces.
func Keep(sev value.Severity, level config.LogLevel) bool {
	switch level {
	case config.LogNone, config.LogResultOnly:
		return false
	case config.LogReduced:
		return severityRank[sev] >= severityRank[value.SeverityWarning]
	case config.LogFull:
		return true
	default:
		return severityRank[sev] >= severityRank[value.SeverityWarning]
	}
}

// Filter returns the subset of log that Keep admits at level.
func Filter(log []value.Error, level config.LogLevel) []value.Error {
	out := make([]value.Error, 0, len(log))
	for _, e := range log {
		if Keep(e.Severity, level) {
			out = append(out, e)
		}
	}
	return out
}

// PathKey is the stable sort key for a terminal Context: the hash of
// its constraint conjunction, printed in insertion order. Two paths
// with syntactically identical path conditions sort adjacently and
// deterministically regardless of exploration order.
func PathKey(c *pathctx.Context) string {
	h := sha256.New()
	for _, b := range c.Constraints.Conj {
		_, _ = h.Write([]byte(b.String()))
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SortPaths orders a path slice by PathKey, in place, giving
// reproducible output across runs that explored paths in a different
// order.
func SortPaths(ctxs []*pathctx.Context) {
	sort.SliceStable(ctxs, func(i, j int) bool { return PathKey(ctxs[i]) < PathKey(ctxs[j]) })
}

// Verdict classifies a terminal Context for the human-readable summary
// line: Success (no diagnostics at or above warning), Warning (some
// warnings but no violated obligation), or Failure (moved to a
// ContextSet's failed bucket).
type Verdict string

const (
	VerdictSuccess Verdict = "success"
	VerdictWarning Verdict = "warning"
	VerdictFailure Verdict = "failure"
)

// ClassifyVerdict derives a Verdict from a Context's Failed flag and log.
func ClassifyVerdict(c *pathctx.Context) Verdict {
	if c.Failed {
		return VerdictFailure
	}
	for _, e := range c.Log {
		if severityRank[e.Severity] >= severityRank[value.SeverityWarning] {
			return VerdictWarning
		}
	}
	return VerdictSuccess
}

// RenderPath renders one Context's diagnostics as a human-readable
// block: path key, verdict, then each kept record.
func RenderPath(c *pathctx.Context, level config.LogLevel) string {
	var b strings.Builder
	fmt.Fprintf(&b, "path %s: %s\n", PathKey(c)[:12], ClassifyVerdict(c))
	for _, e := range Filter(c.Log, level) {
		loc := ""
		if e.Source != nil {
			loc = fmt.Sprintf(" (%s:%d-%d)", e.Source.FileID, e.Source.Start, e.Source.End)
		}
		fmt.Fprintf(&b, "  [%s] %s: %s%s\n", e.Severity, e.Reason, e.Message, loc)
	}
	if level == config.LogFull {
		fmt.Fprintf(&b, "  retval: %s\n", c.RetVal)
	}
	return b.String()
}

// Render renders every terminal path (live then failed, each internally
// sorted by PathKey) into one report, suitable for direct printing by
// cmd/pytea-core.
func Render(live, failed []*pathctx.Context, level config.LogLevel) string {
	liveCopy := append([]*pathctx.Context{}, live...)
	failedCopy := append([]*pathctx.Context{}, failed...)
	SortPaths(liveCopy)
	SortPaths(failedCopy)

	var b strings.Builder
	if level == config.LogNone {
		fmt.Fprintf(&b, "%d ok, %d failed\n", len(liveCopy), len(failedCopy))
		return b.String()
	}
	for _, c := range liveCopy {
		b.WriteString(RenderPath(c, level))
	}
	for _, c := range failedCopy {
		b.WriteString(RenderPath(c, level))
	}
	fmt.Fprintf(&b, "summary: %d ok, %d failed\n", len(liveCopy), len(failedCopy))
	return b.String()
}
