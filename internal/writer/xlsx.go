package writer

import (
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/insightdelivered/statement-normalizer/internal/models"
)

const (
	SummarySheet   = "Resumen"
	MovementsSheet = "Movimientos"
)

// XLSXWriter writes a statement to an Excel workbook with a summary sheet
// and a movements sheet.
type XLSXWriter struct{}

// WriteToFile creates path and writes the workbook to it.
func (w *XLSXWriter) WriteToFile(path string, rec *models.StatementRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	defer f.Close()

	return w.Write(f, rec)
}

// Write renders rec as a workbook with a summary sheet and a movements sheet.
func (w *XLSXWriter) Write(out io.Writer, rec *models.StatementRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("failed to name summary sheet: %w", err)
	}
	totals := rec.Totals()
	rows := append(metadata(rec),
		[2]string{"Total abonos", totals.Credits.StringFixed(2)},
		[2]string{"Total cargos", totals.Debits.StringFixed(2)},
		[2]string{"Movimientos", fmt.Sprint(totals.Count)},
	)
	for i, kv := range rows {
		if err := f.SetSheetRow(SummarySheet, cellName(1, i+1), &[]any{kv[0], kv[1]}); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
	}

	if _, err := f.NewSheet(MovementsSheet); err != nil {
		return fmt.Errorf("failed to add movements sheet: %w", err)
	}
	header := make([]any, len(MovementHeader))
	for i, h := range MovementHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(MovementsSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write movements header: %w", err)
	}

	money, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return fmt.Errorf("failed to create money style: %w", err)
	}
	for i, m := range rec.Movements {
		row := []any{
			m.Date.String(),
			m.Description,
			m.Amount.InexactFloat64(),
			m.Balance.InexactFloat64(),
		}
		if err := f.SetSheetRow(MovementsSheet, cellName(1, i+2), &row); err != nil {
			return fmt.Errorf("failed to write movement row: %w", err)
		}
	}
	if n := len(rec.Movements); n > 0 {
		if err := f.SetCellStyle(MovementsSheet, "C2", cellName(4, n+1), money); err != nil {
			return fmt.Errorf("failed to style amounts: %w", err)
		}
	}
	_ = f.SetColWidth(SummarySheet, "A", "B", 24)
	_ = f.SetColWidth(MovementsSheet, "B", "B", 48)

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
