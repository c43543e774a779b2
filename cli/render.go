package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/richinex/bookforge/internal/telemetry"
	"github.com/richinex/bookforge/orchestration"
	"github.com/richinex/bookforge/storage"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Width(14)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

func heading(w io.Writer, text string) {
	fmt.Fprintln(w, headingStyle.Render(text))
}

func field(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "%s %v\n", labelStyle.Render(label), value)
}

func outcome(s string) string {
	switch s {
	case orchestration.OutcomeSuccess:
		return okStyle.Render(s)
	case orchestration.OutcomeError:
		return errStyle.Render(s)
	default:
		return s
	}
}

func usd(cost *float64) string {
	if cost == nil {
		return "-"
	}
	return fmt.Sprintf("$%.4f", *cost)
}

func cents(c int64) string {
	return fmt.Sprintf("$%d.%02d", c/100, c%100)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func printRunResponse(w io.Writer, resp *orchestration.RunResponse) {
	heading(w, "Run "+resp.RunID)
	field(w, "provider", resp.ProviderName)
	for _, r := range resp.Stages {
		printStageResult(w, r)
	}
}

func printStageResult(w io.Writer, r orchestration.StageRunResult) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s  %s\n", headingStyle.Render(string(r.Stage)), outcome(r.Outcome), r.Model)
	fmt.Fprintf(&b, "tokens %d/%d  cost %s  %.0fms\n", r.PromptTokens, r.CompletionTokens, usd(r.CostUSD), r.DurationMs)
	b.WriteString(truncate(r.Output, 400))
	fmt.Fprintln(w, boxStyle.Render(b.String()))
}

func printProject(w io.Writer, p *storage.Project) {
	heading(w, "Project "+p.ID)
	if p.Title != "" {
		field(w, "title", p.Title)
	}
	field(w, "idea", truncate(p.IdeaSummary, 120))
	if p.ResearchGuidelines != "" {
		field(w, "guidelines", truncate(p.ResearchGuidelines, 120))
	}
	printBudget(w, storage.Budget{SpendLimitCents: p.SpendLimitCents, TotalCostCents: p.TotalCostCents})
}

func printBudget(w io.Writer, b storage.Budget) {
	field(w, "spent", cents(b.TotalCostCents))
	if b.SpendLimitCents == nil {
		field(w, "limit", "none")
		return
	}
	field(w, "limit", cents(*b.SpendLimitCents))
	if err := orchestration.CheckBudget(orchestration.BudgetState(b)); err != nil {
		fmt.Fprintln(w, errStyle.Render(err.Error()))
	}
}

func printStageRuns(w io.Writer, runs []storage.StageRun) {
	if len(runs) == 0 {
		return
	}
	heading(w, "Stage runs")
	for _, r := range runs {
		line := fmt.Sprintf("%s  %-13s %-8s %s", r.CreatedAt.Format("2006-01-02 15:04:05"), r.Stage, outcome(r.Outcome), usd(r.CostUSD))
		if r.Error != "" {
			line += "  " + truncate(r.Error, 80)
		}
		fmt.Fprintln(w, line)
	}
}

func printTelemetry(w io.Writer, snap telemetry.Snapshot) {
	if len(snap.Providers) == 0 {
		return
	}
	heading(w, "Usage")
	for _, p := range snap.Providers {
		cost := p.CostUSD
		fmt.Fprintf(w, "%-13s %-10s calls %d (cached %d)  tokens %d/%d  cost %s\n",
			p.Stage, p.Provider, p.Calls, p.CachedCalls, p.PromptTokens, p.CompletionTokens, usd(&cost))
	}
}
