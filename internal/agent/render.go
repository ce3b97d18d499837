package agent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/armada-loadtest/coordinator/internal/aggregate"
	"github.com/armada-loadtest/coordinator/internal/model"
)

var (
	colorCyan   = lipgloss.Color("14")
	colorGreen  = lipgloss.Color("10")
	colorRed    = lipgloss.Color("9")
	styleTitle  = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleSubtle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleOK     = lipgloss.NewStyle().Foreground(colorGreen)
	styleFailed = lipgloss.NewStyle().Foreground(colorRed)
)

// Render formats an outcome as two bordered panes: this agent's result and the room aggregate.
func Render(out *Outcome) string {
	role := "member"
	if out.Host {
		role = "host"
	}
	header := styleSubtle.Render(fmt.Sprintf("room %s  client %s (%s)", out.RoomID, out.ClientID, role))

	local := pane("Local", []string{
		fmt.Sprintf("Requests:   %d", out.Local.TotalRequests),
		styleOK.Render(fmt.Sprintf("Success:    %d", out.Local.SuccessfulRequests)),
		styleFailed.Render(fmt.Sprintf("Failed:     %d", out.Local.FailedRequests)),
		fmt.Sprintf("Min:        %.1fms", out.Local.MinResponseTime),
		fmt.Sprintf("Avg:        %.1fms", out.Local.AvgResponseTime),
		fmt.Sprintf("Max:        %.1fms", out.Local.MaxResponseTime),
		fmt.Sprintf("Duration:   %.0fms", out.Local.Duration),
		fmt.Sprintf("Req/sec:    %.2f", out.Local.Throughput),
	}, out.Local.StatusCodes)

	agg := out.Aggregate
	fleet := pane(fmt.Sprintf("Aggregate (%d clients)", agg.ClientCount), []string{
		fmt.Sprintf("Requests:   %d", agg.TotalRequests),
		styleOK.Render(fmt.Sprintf("Success:    %d", agg.SuccessfulRequests)),
		styleFailed.Render(fmt.Sprintf("Failed:     %d", agg.FailedRequests)),
		formatMinimum(agg.MinResponseTime),
		fmt.Sprintf("Avg:        %.1fms", agg.AvgResponseTime),
		fmt.Sprintf("Max:        %.1fms", agg.MaxResponseTime),
		fmt.Sprintf("Duration:   %.0fms", agg.TotalDuration),
		fmt.Sprintf("Req/sec:    %.2f", agg.Throughput),
	}, agg.StatusCodes)

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		lipgloss.JoinHorizontal(lipgloss.Top, local, fleet),
	)
}

func pane(title string, lines []string, codes map[string]int) string {
	var content strings.Builder
	content.WriteString(styleTitle.Render(title) + "\n\n")
	for _, line := range lines {
		content.WriteString(line + "\n")
	}
	content.WriteString("\n" + formatStatusCodes(codes))

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorCyan).
		Padding(0, 1).
		Width(34).
		Render(content.String())
}

func formatStatusCodes(codes map[string]int) string {
	if len(codes) == 0 {
		return styleSubtle.Render("no responses")
	}
	keys := make([]string, 0, len(codes))
	for k := range codes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %d", k, codes[k])
	}
	return strings.Join(parts, "  ")
}

// StatusLine summarizes a room snapshot in one line.
func StatusLine(s model.RoomSnapshot) string {
	return fmt.Sprintf("%s  %-10s %d clients  host %s", s.ID, s.Status, s.ClientCount, s.Host)
}

func formatMinimum(ms float64) string {
	if ms == aggregate.UnreportedMinimum {
		return "Min:        -"
	}
	return fmt.Sprintf("Min:        %.1fms", ms)
}
