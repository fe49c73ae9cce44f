package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/insightdelivered/statement-normalizer/internal/models"
)

// MovementHeader is the column header row of exported movements.
var MovementHeader = []string{"Fecha", "Descripcion", "Monto", "Saldo"}

// CSVWriter writes a statement's movements to CSV format.
type CSVWriter struct {
	IncludeHeader bool
}

// WriteToFile writes the statement to a CSV file at the given path.
func (w *CSVWriter) WriteToFile(path string, rec *models.StatementRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	defer f.Close()

	return w.Write(f, rec)
}

// Write writes the statement in CSV format to the given writer.
func (w *CSVWriter) Write(out io.Writer, rec *models.StatementRecord) error {
	writer := csv.NewWriter(out)

	// Account metadata as "# key,value" rows
	if w.IncludeHeader {
		for _, kv := range metadata(rec) {
			if kv[1] == "" {
				continue
			}
			if err := writer.Write([]string{"# " + kv[0], kv[1]}); err != nil {
				return fmt.Errorf("failed to write CSV metadata: %w", err)
			}
		}
	}

	if err := writer.Write(MovementHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, m := range rec.Movements {
		row := []string{
			m.Date.String(),
			m.Description,
			m.Amount.StringFixed(2),
			m.Balance.StringFixed(2),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// metadata lists the account fields in export order.
func metadata(rec *models.StatementRecord) [][2]string {
	return [][2]string{
		{"Banco", rec.Bank},
		{"Titular", rec.AccountHolder},
		{"Numero de cuenta", rec.AccountNumber},
		{"CLABE", rec.CLABE},
		{"Periodo", rec.Period},
		{"Saldo inicial", rec.OpeningBalance.StringFixed(2)},
		{"Saldo final", rec.ClosingBalance.StringFixed(2)},
	}
}
