package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"StochSentinel/internal/model"

	"github.com/shopspring/decimal"
)

// ComposeAlert renders the oversold and overbought pairs of one cycle.
// It returns false when neither extreme set has entries. Neutral pairs are never listed.
func ComposeAlert(title string, c model.Classification) (string, bool) {
	if !c.HasExtremes() {
		return "", false
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔥 <b>%s</b>\n\n", html.EscapeString(title)))
	if len(c.Oversold) > 0 {
		b.WriteString("🟢 <b>OVERSOLD:</b>\n")
		writePairs(&b, c.Oversold)
	}
	if len(c.Overbought) > 0 {
		b.WriteString("🔴 <b>OVERBOUGHT:</b>\n")
		writePairs(&b, c.Overbought)
	}
	return b.String(), true
}

// AlertTitle names the exchange and timeframe in the alert header.
func AlertTitle(source string, tf model.Timeframe) string {
	name := source
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	return fmt.Sprintf("%s Futures Alert! (%s)", name, tf)
}

func writePairs(b *strings.Builder, snaps []model.Snapshot) {
	for _, s := range snaps {
		b.WriteString(html.EscapeString(s.Symbol))
		b.WriteString("\n")
	}
}

// FormatCycleSummary formats a cycle report for status replies.
func FormatCycleSummary(r *model.CycleReport) string {
	if r == nil {
		return "No screening cycle has run yet."
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>Screener status</b> | %s %s\n\n", html.EscapeString(r.Source), r.Timeframe))
	b.WriteString(fmt.Sprintf("Finished: %s (%s)\n", r.FinishedAt.Format("2006-01-02 15:04:05"), r.Duration().Round(time.Millisecond)))
	if r.Err != nil {
		b.WriteString(fmt.Sprintf("❌ Cycle failed: %s\n", html.EscapeString(r.Err.Error())))
		return b.String()
	}
	b.WriteString(fmt.Sprintf("Pairs: %d scanned / %d skipped / %d total\n", r.Scanned, r.Skipped, r.Universe))
	b.WriteString(fmt.Sprintf("Oversold: %d | Overbought: %d | Neutral: %d\n",
		len(r.Classification.Oversold), len(r.Classification.Overbought), len(r.Classification.Neutral)))
	for _, s := range r.Classification.Oversold {
		b.WriteString(fmt.Sprintf("  🟢 %s K=%s D=%s\n", html.EscapeString(s.Symbol), pct(s.K), pct(s.D)))
	}
	for _, s := range r.Classification.Overbought {
		b.WriteString(fmt.Sprintf("  🔴 %s K=%s D=%s\n", html.EscapeString(s.Symbol), pct(s.K), pct(s.D)))
	}
	switch {
	case r.DeliveryErr != nil:
		b.WriteString(fmt.Sprintf("⚠️ Alert delivery failed: %s\n", html.EscapeString(r.DeliveryErr.Error())))
	case r.AlertSent:
		b.WriteString("Alert sent ✅\n")
	}
	return b.String()
}

func pct(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
