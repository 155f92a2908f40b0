package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/tradeforge/riskcore/internal/risk"
	"github.com/tradeforge/riskcore/internal/session"
)

// AuditReport bundles everything the Excel export needs.
type AuditReport struct {
	Session   *session.Session
	Snapshots []risk.MetricsSnapshot
	Closed    []risk.Position
}

// WriteAuditXLSX writes the session audit trail and closed trades to an
// Excel workbook.
func WriteAuditXLSX(report AuditReport, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const metricsSheet = "Risk Metrics"
	const tradesSheet = "Closed Trades"
	fx.SetSheetName(fx.GetSheetName(0), metricsSheet)
	fx.NewSheet(tradesSheet)

	headerStyle, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"1F4E78"}},
	})
	if err != nil {
		return err
	}

	if err := writeMetricsSheet(fx, metricsSheet, report, headerStyle); err != nil {
		return err
	}
	if err := writeTradesSheet(fx, tradesSheet, report.Closed, headerStyle); err != nil {
		return err
	}
	return fx.SaveAs(path)
}

func writeMetricsSheet(fx *excelize.File, sheet string, report AuditReport, headerStyle int) error {
	headers := []string{"Timestamp", "Balance", "Daily P&L", "Drawdown %", "Correlation Risk", "Open Positions", "Daily Trades"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		fx.SetCellValue(sheet, cell, h)
	}
	endCell, _ := excelize.CoordinatesToCellName(len(headers), 1)
	fx.SetCellStyle(sheet, "A1", endCell, headerStyle)

	for row, s := range report.Snapshots {
		values := []interface{}{
			s.Timestamp.Format("2006-01-02 15:04:05"),
			s.AccountBalance,
			s.DailyPnL,
			s.CurrentDrawdown * 100,
			s.CorrelationRisk,
			s.OpenPositions,
			s.DailyTradesCount,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			fx.SetCellValue(sheet, cell, v)
		}
	}
	return fx.SetColWidth(sheet, "A", "A", 20)
}

func writeTradesSheet(fx *excelize.File, sheet string, closed []risk.Position, headerStyle int) error {
	headers := []string{"Deal ID", "Symbol", "Direction", "Size", "Entry", "Stop Loss", "Take Profit", "P&L", "Opened", "Closed"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		fx.SetCellValue(sheet, cell, h)
	}
	endCell, _ := excelize.CoordinatesToCellName(len(headers), 1)
	fx.SetCellStyle(sheet, "A1", endCell, headerStyle)

	for row, p := range closed {
		closedAt := ""
		if p.ClosedAt != nil {
			closedAt = p.ClosedAt.Format("2006-01-02 15:04:05")
		}
		values := []interface{}{
			p.DealID,
			p.Symbol,
			string(p.Direction),
			p.Size,
			p.EntryPrice,
			p.StopLoss,
			p.TakeProfit,
			p.PnL,
			p.OpenedAt.Format("2006-01-02 15:04:05"),
			closedAt,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			fx.SetCellValue(sheet, cell, v)
		}
	}
	return fx.SetColWidth(sheet, "A", "A", 38)
}
