package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/wonny/aegis-risk/internal/attribution"
	"github.com/wonny/aegis-risk/internal/contracts"
	"github.com/wonny/aegis-risk/internal/stress"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

const (
	doubleRule = "═══════════════════════════════════════════════════════════"
	singleRule = "───────────────────────────────────────────────────────────"
)

// PrintHeader prints a formatted report header
func PrintHeader(w io.Writer, title string, meta [][2]string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, doubleRule)
	fmt.Fprintf(w, "  %s\n", title)
	fmt.Fprintln(w, singleRule)
	for _, kv := range meta {
		fmt.Fprintf(w, "  %-10s: %s\n", kv[0], kv[1])
	}
	fmt.Fprintln(w, singleRule)
}

// PrintSection prints a section title with its status badge
func PrintSection(w io.Writer, section contracts.Section, st contracts.Status) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s (%s)\n", statusIcon(st), section.Description(), section.ShortName())
	if !st.Available {
		fmt.Fprintf(w, "   ❌ %s\n", st.Error)
	}
	for _, warning := range st.Warnings {
		fmt.Fprintf(w, "   ⚠️  %s\n", warning)
	}
}

// PrintSuccess prints a success message
func PrintSuccess(w io.Writer, message string) {
	fmt.Fprintf(w, "✅ %s\n", message)
}

// PrintWarning prints a warning message
func PrintWarning(w io.Writer, message string) {
	fmt.Fprintf(w, "⚠️  %s\n", message)
}

// PrintError prints an error message
func PrintError(w io.Writer, message string) {
	fmt.Fprintf(w, "❌ %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(w io.Writer, columns []string, widths []int) {
	PrintTableRow(w, columns, widths)

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Fprintf(w, "   %s\n", strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(w io.Writer, values []string, widths []int) {
	fmt.Fprint(w, "   ")
	for i, val := range values {
		fmt.Fprintf(w, "%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Fprint(w, "  ")
		}
	}
	fmt.Fprintln(w)
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(w io.Writer, key string, value string, keyWidth int) {
	fmt.Fprintf(w, "   %-*s : %s\n", keyWidth, key, value)
}

// PrintJSON writes v as indented JSON
func PrintJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func statusIcon(st contracts.Status) string {
	switch {
	case !st.Available:
		return "❌"
	case st.Degraded:
		return "⚠️ "
	default:
		return "✅"
	}
}

func money(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s$%s", sign, groupThousands(fmt.Sprintf("%.0f", v)))
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	pre := len(digits) % 3
	if pre > 0 {
		b.WriteString(digits[:pre])
	}
	for i := pre; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

// ═══════════════════════════════════════════════════════════
// Analysis report
// ═══════════════════════════════════════════════════════════

// PrintReport renders an analysis result for the terminal
func PrintReport(w io.Writer, source string, r *contracts.AnalysisResult) {
	PrintHeader(w, "Aegis Risk Analysis", [][2]string{
		{"Run ID", r.RunID},
		{"Source", source},
		{"As of", r.AsOf.Format("2006-01-02")},
		{"State", string(r.State)},
		{"Duration", fmt.Sprintf("%dms", r.DurationMs)},
		{"Model", shortHash(r.ModelHash)},
	})

	if r.State == contracts.StateFailed {
		PrintError(w, r.Error)
		return
	}

	for _, section := range contracts.AllSections() {
		st := r.Sections[section]
		PrintSection(w, section, st)
		if !st.Available {
			continue
		}

		switch section {
		case contracts.SectionVaR:
			printVaR(w, r.VaRMetrics)
		case contracts.SectionCorrelation:
			printCorrelation(w, r.CorrelationMatrix)
		case contracts.SectionStress:
			printStress(w, r.StressScenarios)
		case contracts.SectionAttribution:
			printAttribution(w, r.RiskAttribution)
		case contracts.SectionLiquidity:
			printLiquidity(w, r.LiquidityRisk)
		case contracts.SectionCounterparty:
			printCounterparty(w, r.CounterpartyRisk)
		case contracts.SectionBacktest:
			printBacktest(w, r.BacktestResult)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, doubleRule)
	if r.Degraded() {
		PrintWarning(w, "Completed with degraded sections")
	} else {
		PrintSuccess(w, "All sections available")
	}
}

func printVaR(w io.Writer, v *contracts.VaRMetrics) {
	if v == nil {
		return
	}
	PrintKeyValue(w, "Portfolio value", money(v.PortfolioValue), 18)
	PrintKeyValue(w, "Net exposure", money(v.NetValue), 18)
	PrintKeyValue(w, "Daily σ", money(v.DailyVolatility), 18)
	PrintKeyValue(w, "Expected shortfall", money(v.ExpectedShortfall), 18)
	fmt.Fprintln(w)

	widths := []int{12, 14, 14, 14, 14}
	PrintTableHeader(w, []string{"Method", "VaR95 1d", "VaR99 1d", "VaR99 10d", "CVaR99 1d"}, widths)
	rows := []struct {
		name string
		est  contracts.VaREstimate
	}{
		{"Historical", v.Historical},
		{"Parametric", v.Parametric},
		{"Monte Carlo", v.MonteCarlo},
	}
	for _, row := range rows {
		if !row.est.Available {
			PrintTableRow(w, []string{row.name, "n/a", "n/a", "n/a", "n/a"}, widths)
			continue
		}
		PrintTableRow(w, []string{row.name, money(row.est.VaR95_1d), money(row.est.VaR99_1d), money(row.est.VaR99_10d), money(row.est.CVaR99_1d)}, widths)
	}
	if v.MonteCarlo.Available {
		PrintKeyValue(w, "MC simulations", fmt.Sprintf("%d (seed %d)", v.MonteCarlo.Simulations, v.MonteCarlo.Seed), 18)
	}
	for _, breach := range v.LimitBreaches {
		PrintWarning(w, "limit breach: "+breach)
	}
}

func printCorrelation(w io.Writer, c *contracts.CorrelationMatrix) {
	if c == nil {
		return
	}
	PrintKeyValue(w, "Concentration", fmt.Sprintf("%.3f (λmax / n)", c.ConcentrationRisk), 18)
	PrintKeyValue(w, "Herfindahl", fmt.Sprintf("%.4f", c.HerfindahlIndex), 18)
	PrintKeyValue(w, "Mean |ρ|", fmt.Sprintf("%.3f", c.DiversificationRatio), 18)
	if len(c.Eigenvalues) > 0 {
		PrintKeyValue(w, "λmax", fmt.Sprintf("%.3f", c.Eigenvalues[0]), 18)
	}
}

func printStress(w io.Writer, results []contracts.StressScenario) {
	widths := []int{26, 16, 10}
	PrintTableHeader(w, []string{"Scenario", "Impact", "% Gross"}, widths)
	for _, s := range results {
		name := s.Name
		if s.Custom {
			name += " *"
		}
		PrintTableRow(w, []string{name, money(s.Impact.Absolute), fmt.Sprintf("%.2f%%", s.Impact.Percentage)}, widths)
	}
	if worst := stress.WorstCase(results); worst != nil {
		PrintKeyValue(w, "Worst case", fmt.Sprintf("%s (%s)", worst.Name, money(worst.Impact.Absolute)), 18)
	}
	PrintKeyValue(w, "Prob-weighted loss", money(stress.ExpectedLoss(results)), 18)
}

func printAttribution(w io.Writer, a *contracts.RiskAttribution) {
	if a == nil {
		return
	}
	printBuckets(w, "Factor", a.Factor)
	printBuckets(w, "Sector", a.Sector)
	printBuckets(w, "Asset class", a.AssetClass)
}

func printBuckets(w io.Writer, title string, buckets map[string]contracts.Contribution) {
	widths := []int{18, 14, 10}
	fmt.Fprintln(w)
	PrintTableHeader(w, []string{title, "VaR", "Share"}, widths)
	for _, name := range attribution.Ranked(buckets) {
		b := buckets[name]
		PrintTableRow(w, []string{name, money(b.Contribution), fmt.Sprintf("%.1f%%", b.Percentage)}, widths)
	}
}

func printLiquidity(w io.Writer, l *contracts.LiquidityProfile) {
	if l == nil {
		return
	}
	agg := l.Aggregate
	PrintKeyValue(w, "Time to liquidate", fmt.Sprintf("%d days (%s)", agg.TimeToLiquidatePortfolio, agg.LiquidationPolicy), 18)
	PrintKeyValue(w, "Avg spread", fmt.Sprintf("%.2f bp", agg.AverageSpread*1e4), 18)
	PrintKeyValue(w, "Liquidity score", fmt.Sprintf("%.3f", agg.LiquidityRiskScore), 18)
	PrintKeyValue(w, "Exit cost", money(agg.LiquidationCost), 18)

	slow := append([]contracts.PositionLiquidity(nil), l.Positions...)
	sort.SliceStable(slow, func(i, j int) bool { return slow[i].TimeToLiquidate > slow[j].TimeToLiquidate })
	if len(slow) > 3 {
		slow = slow[:3]
	}
	for _, p := range slow {
		PrintKeyValue(w, "  "+p.Symbol, fmt.Sprintf("%d days, score %.2f", p.TimeToLiquidate, p.LiquidityScore), 18)
	}
}

func printCounterparty(w io.Writer, c *contracts.CounterpartyExposure) {
	if c == nil {
		return
	}
	widths := []int{12, 14, 8, 12}
	PrintTableHeader(w, []string{"Counterparty", "EAD", "Share", "EL"}, widths)
	for _, d := range c.Counterparties {
		PrintTableRow(w, []string{d.Counterparty, money(d.ExposureAtDefault), pct(d.ExposureShare), money(d.ExpectedLoss)}, widths)
	}
	PrintKeyValue(w, "Total EAD", money(c.TotalExposure), 18)
	PrintKeyValue(w, "Expected loss", money(c.PortfolioExpectedLoss), 18)
}

func printBacktest(w io.Writer, b *contracts.BacktestResult) {
	if b == nil {
		return
	}
	PrintKeyValue(w, "Strategy", b.Strategy, 18)
	PrintKeyValue(w, "Periods", fmt.Sprintf("%d", b.Periods), 18)
	PrintKeyValue(w, "Total return", pct(b.TotalReturn), 18)
	PrintKeyValue(w, "Annual return", pct(b.AnnualReturn), 18)
	PrintKeyValue(w, "Volatility", pct(b.Volatility), 18)
	PrintKeyValue(w, "Sharpe", fmt.Sprintf("%.2f", b.SharpeRatio), 18)
	PrintKeyValue(w, "Sortino", fmt.Sprintf("%.2f", b.SortinoRatio), 18)
	PrintKeyValue(w, "Max drawdown", pct(b.MaxDrawdown), 18)
	PrintKeyValue(w, "Calmar", fmt.Sprintf("%.2f", b.CalmarRatio), 18)
	PrintKeyValue(w, "Win rate", pct(b.WinRate), 18)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
