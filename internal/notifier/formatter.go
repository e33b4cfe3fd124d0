package notifier

import (
	"fmt"
	"html"
	"strings"

	"BreakoutScanner/internal/model"
)

// MaxReportRows caps the ranked rows in a Telegram report.
const MaxReportRows = 10

// FormatScanReport formats a finished batch into a Telegram message. The batch must
// already be sorted by score.
func FormatScanReport(batch *model.ScanBatch) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>Breakout scan</b> | %s | horizon %s\n",
		batch.CompletedAt.Format("2006-01-02 15:04"), html.EscapeString(batch.Horizon)))
	b.WriteString(fmt.Sprintf("Scanned %d: %d scored, %d failed\n\n",
		len(batch.Requested), len(batch.Results), len(batch.Failures)))

	buys := batch.Buys()
	if len(buys) == 0 {
		b.WriteString("No BUY signals.\n")
	} else {
		b.WriteString("🔥 <b>BUY</b>\n")
		for _, r := range buys {
			b.WriteString(formatResultLine(r))
		}
	}

	var watch []model.ScanResult
	for _, r := range batch.Results {
		if r.Decision == model.ActionWatch {
			watch = append(watch, r)
		}
	}
	if len(watch) > 0 {
		b.WriteString("\n🧐 <b>WATCH</b>\n")
		for i, r := range watch {
			if i == MaxReportRows {
				b.WriteString(fmt.Sprintf("  … %d more\n", len(watch)-MaxReportRows))
				break
			}
			b.WriteString(formatResultLine(r))
		}
	}

	if len(batch.Failures) > 0 {
		b.WriteString("\n⚠️ <b>Failed</b>: ")
		names := make([]string, 0, len(batch.Failures))
		for _, f := range batch.Failures {
			names = append(names, fmt.Sprintf("%s (%s)", f.Ticker, strings.ToLower(string(f.Kind))))
		}
		b.WriteString(html.EscapeString(strings.Join(names, ", ")))
		b.WriteString("\n")
	}
	return b.String()
}

func formatResultLine(r model.ScanResult) string {
	return fmt.Sprintf("  <b>%s</b> %.2f | p=%.2f | RSI %.0f | vol×%.1f | target %.2f stop %.2f\n",
		html.EscapeString(r.Ticker), r.CurrentPrice, r.BreakoutScore, r.Indicators.RSI,
		r.Indicators.VolumeRatio, r.TargetPrice, r.StopLoss)
}

// FormatTop lists the n highest scores of a batch.
func FormatTop(batch *model.ScanBatch, n int) string {
	if batch == nil || len(batch.Results) == 0 {
		return "No scan results yet."
	}
	if n <= 0 || n > len(batch.Results) {
		n = len(batch.Results)
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🏆 <b>Top %d</b> | %s\n", n, batch.CompletedAt.Format("2006-01-02 15:04")))
	for i := 0; i < n; i++ {
		r := batch.Results[i]
		b.WriteString(fmt.Sprintf("%d. %s %s p=%.2f\n", i+1, html.EscapeString(r.Ticker), r.Decision, r.BreakoutScore))
	}
	return b.String()
}

// FormatHelp returns the command list.
func FormatHelp() string {
	return "<b>Commands</b>\n" +
		"/scan [T1,T2,...] - scan tickers (default universe when empty)\n" +
		"/top [n] - best scores of the last scan\n" +
		"/help - this message"
}
