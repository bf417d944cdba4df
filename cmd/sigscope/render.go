package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/AnatoleLucet/sigscope/internal/patterns"
	"github.com/AnatoleLucet/sigscope/internal/recording"
	"github.com/AnatoleLucet/sigscope/internal/timetravel"
	"github.com/AnatoleLucet/sigscope/internal/tracker"
)

var (
	colorMuted  = lipgloss.Color("244")
	colorAccent = lipgloss.Color("39")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)
	idStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("111"))

	severityStyles = map[patterns.Severity]lipgloss.Style{
		patterns.SeverityHigh:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		patterns.SeverityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		patterns.SeverityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
	}
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderAnalysis(w io.Writer, result patterns.AnalysisResult) error {
	if flagFormat == "json" {
		return writeJSON(w, result)
	}

	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%d patterns", len(result.Patterns))),
		mutedStyle.Render(fmt.Sprintf("(%d nodes, %d edges, %s)",
			result.NodesAnalyzed, result.EdgesAnalyzed, result.Duration.Round(time.Microsecond))))

	for _, p := range result.Patterns {
		sev := severityStyles[p.Severity].Render(fmt.Sprintf("%-6s", p.Severity))
		line := fmt.Sprintf("%s %s %s", sev, p.Type, p.Description)
		if p.IsExpected {
			line = mutedStyle.Render(fmt.Sprintf("%-6s %s %s (expected)", p.Severity, p.Type, p.Description))
		}
		fmt.Fprintln(w, line)
		fmt.Fprintln(w, "      "+mutedStyle.Render(p.Remediation))
		fmt.Fprintln(w, "      "+idStyle.Render(p.ID))
	}
	return nil
}

func renderState(w io.Writer, state timetravel.GraphState) error {
	if flagFormat == "json" {
		return writeJSON(w, state)
	}

	fmt.Fprintln(w, titleStyle.Render("graph at "+state.Timestamp.Format(time.RFC3339Nano)))

	for _, id := range slices.Sorted(maps.Keys(state.ActiveNodes)) {
		n := state.ActiveNodes[id]
		name := ""
		if n.Name != "" {
			name = " " + n.Name
		}
		fmt.Fprintf(w, "%s%s %s\n", idStyle.Render(id), name, mutedStyle.Render(fmt.Sprintf("= %v", n.Value)))
	}
	for _, e := range state.Edges {
		fmt.Fprintf(w, "%s %s %s\n", e.From, mutedStyle.Render("-"+string(e.Type)+"->"), e.To)
	}
	if disposed := state.Disposed(); len(disposed) > 0 {
		fmt.Fprintln(w, mutedStyle.Render("disposed: "+strings.Join(disposed, ", ")))
	}
	return nil
}

func renderSummaries(w io.Writer, summaries []recording.Summary) error {
	if flagFormat == "json" {
		if summaries == nil {
			summaries = []recording.Summary{}
		}
		return writeJSON(w, summaries)
	}

	if len(summaries) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("no recordings"))
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(w, "%s %s %s\n",
			idStyle.Render(s.ID),
			s.Name,
			mutedStyle.Render(fmt.Sprintf("%d events, %s", s.EventCount, s.CreatedAt.Format(time.DateTime))))
	}
	return nil
}

func renderEvent(w io.Writer, e tracker.Event) error {
	if flagFormat == "json" {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	_, err := fmt.Fprintf(w, "%s %s %s %s\n",
		mutedStyle.Render(e.Timestamp.Format("15:04:05.000")),
		mutedStyle.Render(fmt.Sprintf("#%d", e.ID)),
		idStyle.Render(e.NodeID),
		e.Type)
	return err
}
