// Package report renders monitor snapshots as Markdown, JSON, or TOML and
// parses them back.
package report

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/fakeyudi/statemon/internal/monitor"
	"github.com/fakeyudi/statemon/internal/plan"
)

// Supported format names.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatTOML     = "toml"
)

const (
	versionSentinel = "<!-- statemon-report-version: 1 -->"
	dataPrefix      = "<!-- statemon-data: "
	dataSuffix      = " -->"
)

// Renderer serializes a Snapshot to bytes.
type Renderer interface {
	Render(snap *monitor.Snapshot) ([]byte, error)
}

// NewRenderer returns the renderer for format.
func NewRenderer(format string) (Renderer, error) {
	switch format {
	case FormatMarkdown, "md":
		return &MarkdownRenderer{}, nil
	case FormatJSON:
		return &JSONRenderer{}, nil
	case FormatTOML:
		return &TOMLRenderer{}, nil
	}
	return nil, fmt.Errorf("unknown report format %q (want markdown, json or toml)", format)
}

// JSONRenderer renders a Snapshot as indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(snap *monitor.Snapshot) ([]byte, error) {
	return json.MarshalIndent(snap, "", "  ")
}

// TOMLRenderer renders a Snapshot as a TOML document.
type TOMLRenderer struct{}

func (r *TOMLRenderer) Render(snap *monitor.Snapshot) ([]byte, error) {
	out, err := toml.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return out, nil
}

// MarkdownRenderer renders a Snapshot as human-readable Markdown with an
// embedded base64 JSON payload so that the file parses back losslessly.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Render(snap *monitor.Snapshot) ([]byte, error) {
	jsonBytes, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(jsonBytes)

	var sb strings.Builder
	sb.WriteString(versionSentinel + "\n")
	fmt.Fprintf(&sb, "%s%s%s\n\n", dataPrefix, encoded, dataSuffix)

	fmt.Fprintf(&sb, "# Project state: %s (%s)\n\n",
		snap.ProjectRoot,
		snap.TakenAt.Format("2006-01-02 15:04:05 MST"),
	)

	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "- Session: %s\n", snap.SessionID)
	fmt.Fprintf(&sb, "- Observations: %d\n", len(snap.Observations))
	if snap.Plan != nil {
		fmt.Fprintf(&sb, "- Plan: %s (%s)\n", snap.Plan.Status, PlanFraction(snap.Plan))
	} else {
		sb.WriteString("- Plan: none\n")
	}
	fmt.Fprintf(&sb, "- Changed files: %d\n", len(snap.Changes))
	sb.WriteString("\n")

	sb.WriteString("## Observations\n\n")
	if len(snap.Observations) == 0 {
		sb.WriteString("_No observations recorded._\n")
	} else {
		for _, o := range snap.Observations {
			fmt.Fprintf(&sb, "- [%s] (%s) %s\n", o.CreatedAt, o.Kind, o.Title)
		}
	}
	sb.WriteString("\n")

	sb.WriteString("## Plan\n\n")
	if snap.Plan == nil {
		sb.WriteString("_No active plan._\n")
	} else {
		fmt.Fprintf(&sb, "- File: %s\n", snap.Plan.SourcePath)
		fmt.Fprintf(&sb, "- Status: %s\n", snap.Plan.Status)
		fmt.Fprintf(&sb, "- Progress: %s\n", PlanFraction(snap.Plan))
	}
	sb.WriteString("\n")

	sb.WriteString("## Changes\n\n")
	if len(snap.Changes) == 0 {
		sb.WriteString("_No changes since the session started._\n")
	} else {
		for _, p := range snap.Changes {
			fmt.Fprintf(&sb, "- %s\n", p)
		}
	}
	sb.WriteString("\n")

	sb.WriteString("## Diff\n\n")
	if snap.Diff == "" {
		sb.WriteString("_No diff._\n")
	} else {
		sb.WriteString("```diff\n")
		sb.WriteString(snap.Diff)
		if !strings.HasSuffix(snap.Diff, "\n") {
			sb.WriteString("\n")
		}
		sb.WriteString("```\n")
	}
	sb.WriteString("\n")

	return []byte(sb.String()), nil
}

// PlanFraction formats plan progress as "completed/total".
func PlanFraction(p *plan.Progress) string {
	return fmt.Sprintf("%d/%d", p.Completed, p.Total)
}
