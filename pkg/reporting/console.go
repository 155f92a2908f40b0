package reporting

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/tradeforge/riskcore/internal/risk"
	"github.com/tradeforge/riskcore/internal/session"
)

// PrintSessionSummary renders the session header and trade totals.
func PrintSessionSummary(w io.Writer, sess *session.Session, closedPnL, openPnL float64, openCount int) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Session %s", sess.ID)

	balance := sess.CurrentBalance(closedPnL, openPnL)
	t.AppendRows([]table.Row{
		{"Status", string(sess.Status)},
		{"Started", sess.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Initial balance", fmt.Sprintf("%.2f", sess.InitialBalance)},
		{"Current balance", fmt.Sprintf("%.2f", balance)},
		{"Realized P&L", fmt.Sprintf("%+.2f", closedPnL)},
		{"Floating P&L", fmt.Sprintf("%+.2f", openPnL)},
		{"Open positions", openCount},
		{"Drawdown", fmt.Sprintf("%.2f%%", session.Drawdown(sess.InitialBalance, balance)*100)},
	})
	t.Render()
}

// PrintSnapshots renders the audit trail as a table, newest rows last.
func PrintSnapshots(w io.Writer, snaps []risk.MetricsSnapshot) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Time", "Balance", "Daily P&L", "Drawdown", "Corr Risk", "Open", "Trades"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Balance", Align: text.AlignRight},
		{Name: "Daily P&L", Align: text.AlignRight},
		{Name: "Drawdown", Align: text.AlignRight},
		{Name: "Corr Risk", Align: text.AlignRight},
	})

	for _, s := range snaps {
		t.AppendRow(table.Row{
			s.Timestamp.Format("01-02 15:04:05"),
			fmt.Sprintf("%.2f", s.AccountBalance),
			fmt.Sprintf("%+.2f", s.DailyPnL),
			fmt.Sprintf("%.2f%%", s.CurrentDrawdown*100),
			fmt.Sprintf("%.2f", s.CorrelationRisk),
			s.OpenPositions,
			s.DailyTradesCount,
		})
	}
	t.Render()
}

// PrintPositions renders open or closed positions.
func PrintPositions(w io.Writer, title string, positions []risk.Position) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Deal", "Symbol", "Side", "Size", "Entry", "Stop", "Target", "P&L"})

	for _, p := range positions {
		t.AppendRow(table.Row{
			p.DealID,
			p.Symbol,
			string(p.Direction),
			fmt.Sprintf("%.2f", p.Size),
			fmt.Sprintf("%.5f", p.EntryPrice),
			fmt.Sprintf("%.5f", p.StopLoss),
			fmt.Sprintf("%.5f", p.TakeProfit),
			fmt.Sprintf("%+.2f", p.PnL),
		})
	}
	t.Render()
}
