package reporting

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tradeforge/riskcore/internal/risk"
	"github.com/tradeforge/riskcore/internal/session"
)

// TestPrintSessionSummary_RendersTotals tests the session header table
func TestPrintSessionSummary_RendersTotals(t *testing.T) {
	sess := session.New(10000)
	var buf bytes.Buffer

	PrintSessionSummary(&buf, sess, 250, -50, 2)

	out := buf.String()
	assert.Contains(t, out, sess.ID)
	assert.Contains(t, out, "10000.00")
	assert.Contains(t, out, "10200.00")
	assert.Contains(t, out, "+250.00")
	assert.Contains(t, out, "-50.00")
}

// TestPrintSnapshots_RendersRows tests the audit trail table
func TestPrintSnapshots_RendersRows(t *testing.T) {
	snaps := []risk.MetricsSnapshot{
		{
			Timestamp:        time.Date(2026, 8, 31, 9, 30, 0, 0, time.UTC),
			AccountBalance:   9800,
			DailyPnL:         -200,
			CurrentDrawdown:  0.02,
			CorrelationRisk:  0.35,
			OpenPositions:    3,
			DailyTradesCount: 4,
		},
	}
	var buf bytes.Buffer

	PrintSnapshots(&buf, snaps)

	out := buf.String()
	assert.Contains(t, out, "08-31 09:30:00")
	assert.Contains(t, out, "9800.00")
	assert.Contains(t, out, "-200.00")
	assert.Contains(t, out, "2.00%")
	assert.Contains(t, out, "0.35")
}

// TestPrintPositions_RendersBook tests the position table
func TestPrintPositions_RendersBook(t *testing.T) {
	positions := []risk.Position{
		{
			DealID: "d1", Symbol: "EURUSD", Direction: risk.DirectionBuy,
			Size: 0.25, EntryPrice: 1.1000, StopLoss: 1.0900,
			TakeProfit: 1.1300, PnL: 125,
		},
	}
	var buf bytes.Buffer

	PrintPositions(&buf, "Open positions", positions)

	out := buf.String()
	assert.Contains(t, out, "Open positions")
	assert.Contains(t, out, "d1")
	assert.Contains(t, out, "EURUSD")
	assert.Contains(t, out, "1.10000")
	assert.Contains(t, out, "+125.00")
}
