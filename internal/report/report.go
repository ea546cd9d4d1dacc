// Package report renders the terminal ContextSet of an analysis run
// into its two emitted forms: a JSON report with one record per
// terminal symbolic-execution path, and (when config.ExtractIR is set)
// a sibling dump of the lowered intermediate tree. Run ids are minted
// with google/uuid so separate runs are distinguishable in collected
// output; summary counts go through go-humanize for human readers.
package report

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/pytea-go/symexec/internal/config"
	"github.com/pytea-go/symexec/internal/diagnostics"
	"github.com/pytea-go/symexec/internal/pathctx"
	"github.com/pytea-go/symexec/internal/value"
)

// DiagRecord is the JSON-safe projection of a value.Error.
type DiagRecord struct {
	Severity string `json:"severity"`
	Reason   string `json:"reason"`
	Message  string `json:"message"`
	FileID   string `json:"fileId,omitempty"`
	Start    int    `json:"start,omitempty"`
	End      int    `json:"end,omitempty"`
}

// TerminalContext is the JSON projection of one terminal pathctx.Context.
type TerminalContext struct {
	PathKey     string       `json:"pathKey"`
	Verdict     string       `json:"verdict"`
	RelPath     string       `json:"relPath"`
	Constraints []string     `json:"constraints"`
	Diagnostics []DiagRecord `json:"diagnostics"`
	RetVal      string       `json:"retVal"`
}

// Report is the top-level JSON document for one analysis run.
type Report struct {
	RunID   string            `json:"runId"`
	Summary string            `json:"summary"`
	Paths   []TerminalContext `json:"paths"`
}

func projectDiag(log []value.Error) []DiagRecord {
	out := make([]DiagRecord, 0, len(log))
	for _, e := range log {
		rec := DiagRecord{
			Severity: string(e.Severity),
			Reason:   string(e.Reason),
			Message:  e.Message,
		}
		if e.Source != nil {
			rec.FileID = e.Source.FileID
			rec.Start = e.Source.Start
			rec.End = e.Source.End
		}
		out = append(out, rec)
	}
	return out
}

func projectContext(c *pathctx.Context, level config.LogLevel) TerminalContext {
	conj := make([]string, len(c.Constraints.Conj))
	for i, b := range c.Constraints.Conj {
		conj[i] = b.String()
	}
	return TerminalContext{
		PathKey:     diagnostics.PathKey(c),
		Verdict:     string(diagnostics.ClassifyVerdict(c)),
		RelPath:     c.RelPath,
		Constraints: conj,
		Diagnostics: projectDiag(diagnostics.Filter(c.Log, level)),
		RetVal:      c.RetVal.String(),
	}
}

// Build assembles a Report from a ContextSet's terminal live and failed
// contexts. runID, when empty, is minted fresh.
func Build(runID string, live, failed []*pathctx.Context, level config.LogLevel) Report {
	if runID == "" {
		runID = uuid.NewString()
	}
	liveCopy := append([]*pathctx.Context{}, live...)
	failedCopy := append([]*pathctx.Context{}, failed...)
	diagnostics.SortPaths(liveCopy)
	diagnostics.SortPaths(failedCopy)

	paths := make([]TerminalContext, 0, len(liveCopy)+len(failedCopy))
	for _, c := range liveCopy {
		paths = append(paths, projectContext(c, level))
	}
	for _, c := range failedCopy {
		paths = append(paths, projectContext(c, level))
	}

	summary := fmt.Sprintf("%s paths explored (%s ok, %s failed)",
		humanize.Comma(int64(len(liveCopy)+len(failedCopy))),
		humanize.Comma(int64(len(liveCopy))),
		humanize.Comma(int64(len(failedCopy))),
	)
	return Report{RunID: runID, Summary: summary, Paths: paths}
}

// JSON renders r as indented JSON.
func (r Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// IRDump renders an intermediate-language tree back to its
// pretty-printed textual form, for the extractIR option. This is
// purely the tree -> text direction; re-parsing the dump is the
// parser collaborator's job.
func IRDump(root fmt.Stringer) string {
	return root.String()
}
