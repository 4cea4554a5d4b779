package writer

import (
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"trustclaw/models"
)

var signalIcon = map[models.SignalKind]string{
	models.SignalBuy:    "🚀",
	models.SignalWatch:  "👀",
	models.SignalSkip:   "⏭️",
	models.SignalDanger: "☠️",
}

var riskIcon = map[models.RiskLevel]string{
	models.RiskLow:     "🟢",
	models.RiskMedium:  "🟡",
	models.RiskHigh:    "🟠",
	models.RiskExtreme: "🔴",
}

func esc(s string) string { return html.EscapeString(s) }

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func tokenLinks(address, dexURL string) string {
	if dexURL == "" {
		dexURL = "https://dexscreener.com/solana/" + address
	}
	a := esc(address)
	return fmt.Sprintf(`🔗 <a href="%s">DexScreener</a> | <a href="https://solscan.io/token/%s">Solscan</a> | <a href="https://birdeye.so/token/%s?chain=solana">Birdeye</a>`,
		esc(dexURL), a, a)
}

// usd renders whole dollars with thousands separators.
func usd(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "$0"
	}
	neg := v < 0
	s := fmt.Sprintf("%.0f", math.Abs(v))
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-$" + b.String()
	}
	return "$" + b.String()
}

// FormatNewToken renders a newly discovered token with its heuristic score
// and, when analysis succeeded, the verdict.
func FormatNewToken(c models.TokenCandidate, score int, sig *models.Signal) string {
	var b strings.Builder
	b.WriteString("🟢 <b>NEW TOKEN DETECTED</b>\n\n")
	fmt.Fprintf(&b, "<b>%s</b>\n<code>%s</code>\n\n", esc(c.Label()), esc(c.Address))
	fmt.Fprintf(&b, "Score: <b>%d/100</b> | Liq: %s | Vol 24h: %s\n", score, usd(c.LiquidityUSD), usd(c.Volume24h))
	if c.MarketCap > 0 {
		fmt.Fprintf(&b, "MCap: %s | 1H: %+.1f%%\n", usd(c.MarketCap), c.PriceChangeH1)
	}
	if age := c.Age(c.DiscoveredAt); age > 0 {
		fmt.Fprintf(&b, "Pair age: %s\n", age.Truncate(time.Minute))
	}
	b.WriteString("\n")
	b.WriteString(tokenLinks(c.Address, c.URL))
	if sig != nil {
		fmt.Fprintf(&b, "\n\n%s Verdict: <b>%s</b> (%d%%)", signalIcon[sig.Kind], esc(string(sig.Kind)), sig.ConfidencePct())
	}
	return b.String()
}

func FormatSignal(s models.Signal) string {
	icon, ok := signalIcon[s.Kind]
	if !ok {
		icon = "❓"
	}
	risk := string(s.Risk)
	if risk == "" {
		risk = "UNKNOWN"
	}
	rIcon, ok := riskIcon[s.Risk]
	if !ok {
		rIcon = "⚪"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>SIGNAL: %s</b> | Confidence: %d%%\n\n", icon, esc(string(s.Kind)), s.ConfidencePct())
	fmt.Fprintf(&b, "<b>%s</b>\n", esc(orNA(s.TokenName)))
	if s.TokenAddress != "" {
		fmt.Fprintf(&b, "<code>%s</code>\n", esc(s.TokenAddress))
	}
	fmt.Fprintf(&b, "%s Risk: %s\n\n", rIcon, esc(risk))
	fmt.Fprintf(&b, "<b>Analysis:</b> %s\n\n", esc(orNA(s.Reasoning)))
	if s.Entry != "" {
		fmt.Fprintf(&b, "💵 Entry: %s\n", esc(s.Entry))
	}
	fmt.Fprintf(&b, "🎯 Target: %s\n", esc(orNA(s.Target)))
	fmt.Fprintf(&b, "🛑 Stop: %s\n", esc(orNA(s.StopLoss)))
	fmt.Fprintf(&b, "⏰ Horizon: %s", esc(orNA(s.Horizon)))
	return b.String()
}

func FormatPump(c models.TokenCandidate) string {
	direction := "📈"
	title := "PUMP DETECTED"
	if c.PriceChangeH1 < 0 {
		direction = "📉"
		title = "DUMP DETECTED"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s</b>\n\n", direction, title)
	fmt.Fprintf(&b, "<b>%s</b>\n<code>%s</code>\n", esc(c.Label()), esc(c.Address))
	fmt.Fprintf(&b, "1H: %+.1f%% | 6H: %+.1f%% | 24H: %+.1f%%\n", c.PriceChangeH1, c.PriceChangeH6, c.PriceChangeH24)
	fmt.Fprintf(&b, "Volume: %s | Liq: %s\n\n", usd(c.Volume24h), usd(c.LiquidityUSD))
	b.WriteString(tokenLinks(c.Address, c.URL))
	return b.String()
}

func FormatWhale(e models.WhaleEvent) string {
	var b strings.Builder
	b.WriteString("🐋 <b>WHALE ALERT</b>\n\n")
	fmt.Fprintf(&b, "Wallet: <code>%s</code>\n", esc(e.Wallet))
	if e.Type != "" {
		fmt.Fprintf(&b, "Action: <b>%s</b>", esc(e.Type))
		if e.Token != "" {
			fmt.Fprintf(&b, " <code>%s</code>", esc(e.ShortToken()))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Amount: ~%.2f SOL (%s)\n", e.AmountSOL, usd(e.AmountUSD))
	if e.Source != "" {
		fmt.Fprintf(&b, "Via: %s\n", esc(e.Source))
	}
	fmt.Fprintf(&b, "\n🔗 <a href=\"https://solscan.io/tx/%s\">View Transaction</a>", esc(e.Signature))
	if e.Token != "" {
		fmt.Fprintf(&b, " | <a href=\"https://dexscreener.com/solana/%s\">Chart</a>", esc(e.Token))
	}
	return b.String()
}

func FormatSocial(p models.SocialPost) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💬 <b>SOCIAL BUZZ</b> | %s\n\n", esc(p.Source))
	fmt.Fprintf(&b, "<b>%s</b>\n", esc(p.Title))
	if p.Score > 0 || p.Comments > 0 {
		fmt.Fprintf(&b, "⬆️ %d | 💬 %d\n", p.Score, p.Comments)
	}
	if len(p.Keywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", esc(strings.Join(p.Keywords, ", ")))
	}
	if p.URL != "" {
		fmt.Fprintf(&b, "\n🔗 <a href=\"%s\">Open</a>", esc(p.URL))
	}
	return strings.TrimRight(b.String(), "\n")
}

func FormatBrief(text string, at time.Time) string {
	return fmt.Sprintf("🐺 <b>TRUSTCLAW MARKET BRIEF</b>\n<i>%s</i>\n\n%s",
		at.UTC().Format("2006-01-02 15:04 UTC"), esc(text))
}

// FormatStartup lists the scanners that were scheduled.
func FormatStartup(version string, scanners []string, llm bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🐺 <b>TrustClaw v%s ONLINE</b>\n\n", esc(version))
	for _, name := range scanners {
		fmt.Fprintf(&b, "✅ %s: Active\n", esc(name))
	}
	if llm {
		b.WriteString("✅ AI Brain: Active\n")
	} else {
		b.WriteString("⚪ AI Brain: Disabled\n")
	}
	b.WriteString("\nScanning Solana for alpha... 🚀")
	return b.String()
}
