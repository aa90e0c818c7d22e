package notification

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/raykavin/tradesharer/pkg/core"
)

const (
	referralBaseURL = "https://app.based.one/r/"

	// DefaultReferralCode is used when no referral code was configured
	DefaultReferralCode = "GODSEYE"

	// TestMessage is sent by the /test command to verify the credentials
	TestMessage = "🧪 Test from Trade Sharer - Setup OK!"

	timeLayout = "2006-01-02 15:04:05"
)

// hashtag tokens must not carry instrument separators
var hashtagSeparators = strings.NewReplacer("-", "", "_", "", "/", "", ".", "")

// FormatTrade renders the outbound Telegram message for a trade record.
// Pure: identical inputs yield identical text.
func FormatTrade(record core.TradeRecord, referralCode string) string {
	code := strings.TrimSpace(referralCode)
	if code == "" {
		code = DefaultReferralCode
	}

	side := "🔴 SELL"
	if record.Side == core.SideTypeBuy {
		side = "🟢 BUY"
	}

	pnl := "N/A"
	if record.RealizedPnl != nil {
		pnl = fmt.Sprintf("$%.2f", *record.RealizedPnl)
	}

	var sb strings.Builder
	sb.WriteString("🚀 *New Trade Alert!*\n\n")
	fmt.Fprintf(&sb, "📊 *Symbol:* `%s`\n", record.Symbol)
	fmt.Fprintf(&sb, "📈 *Side:* %s\n", side)
	fmt.Fprintf(&sb, "💰 *Size:* %s\n", formatNumber(record.Size))
	fmt.Fprintf(&sb, "💵 *Price:* $%s\n", formatNumber(record.Price))
	fmt.Fprintf(&sb, "📊 *PnL:* %s\n", pnl)
	fmt.Fprintf(&sb, "⏰ *Time:* %s\n\n", record.Time.Local().Format(timeLayout))
	fmt.Fprintf(&sb, "🔗 *Join my referrals:* %s%s\n", referralBaseURL, code)
	fmt.Fprintf(&sb, "#BasedTrades #%s", hashtagSeparators.Replace(record.Symbol))

	return sb.String()
}

// formatNumber renders a quantity without trailing zeros
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
