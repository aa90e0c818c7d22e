package notification

import (
	"testing"
	"time"

	"github.com/raykavin/tradesharer/pkg/core"
	"github.com/stretchr/testify/assert"
)

func float(v float64) *float64 { return &v }

func testRecord() core.TradeRecord {
	return core.TradeRecord{
		Symbol:      "ETH-PERP",
		Side:        core.SideTypeBuy,
		Size:        0.1,
		Price:       2500,
		Time:        time.Date(2025, 10, 18, 12, 30, 0, 0, time.UTC),
		RealizedPnl: float(12.5),
		OrderID:     "ord-1",
	}
}

func TestFormatTrade(t *testing.T) {
	text := FormatTrade(testRecord(), "MYCODE")

	assert.Contains(t, text, "🚀 *New Trade Alert!*")
	assert.Contains(t, text, "`ETH-PERP`")
	assert.Contains(t, text, "🟢 BUY")
	assert.Contains(t, text, "*Size:* 0.1")
	assert.Contains(t, text, "*Price:* $2500")
	assert.Contains(t, text, "*PnL:* $12.50")
	assert.Contains(t, text, "https://app.based.one/r/MYCODE")
	assert.Contains(t, text, "#BasedTrades #ETHPERP")
}

func TestFormatTrade_Sell(t *testing.T) {
	record := testRecord()
	record.Side = core.SideTypeSell

	text := FormatTrade(record, "MYCODE")
	assert.Contains(t, text, "🔴 SELL")
	assert.NotContains(t, text, "🟢 BUY")
}

func TestFormatTrade_MissingPnl(t *testing.T) {
	record := testRecord()
	record.RealizedPnl = nil

	text := FormatTrade(record, "MYCODE")
	assert.Contains(t, text, "*PnL:* N/A")
}

func TestFormatTrade_NegativePnl(t *testing.T) {
	record := testRecord()
	record.RealizedPnl = float(-3.456)

	text := FormatTrade(record, "MYCODE")
	assert.Contains(t, text, "*PnL:* $-3.46")
}

func TestFormatTrade_DefaultReferral(t *testing.T) {
	for _, code := range []string{"", "   "} {
		text := FormatTrade(testRecord(), code)
		assert.Contains(t, text, "https://app.based.one/r/GODSEYE")
	}
}

func TestFormatTrade_Deterministic(t *testing.T) {
	record := testRecord()
	assert.Equal(t, FormatTrade(record, "MYCODE"), FormatTrade(record, "MYCODE"))
}

func TestFormatTrade_HashtagStripsSeparators(t *testing.T) {
	record := testRecord()
	record.Symbol = "BTC-USD_PERP"

	text := FormatTrade(record, "MYCODE")
	assert.Contains(t, text, "#BTCUSDPERP")
}
