package normalizer

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/insightdelivered/statement-normalizer/internal/models"
)

// Default prompt budgets, in characters.
const (
	DefaultTextChars  = 20000
	DefaultTableChars = 10000
)

// Budget caps, in characters, how much of the document goes into the
// prompt.
type Budget struct {
	TextChars  int
	TableChars int
}

// DefaultBudget returns the budget used when none is configured.
func DefaultBudget() Budget {
	return Budget{TextChars: DefaultTextChars, TableChars: DefaultTableChars}
}

// Truncate returns the first n characters of s. Inputs of n characters or
// fewer are returned unchanged.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Schema is the literal output contract embedded in every prompt.
const Schema = `{
  "banco": "string",
  "numero_cuenta": "string",
  "clabe": "string (opcional)",
  "titular": "string",
  "periodo": "string",
  "saldo_inicial": number,
  "saldo_final": number,
  "movimientos": [
    {
      "fecha": "DD/MM/YYYY",
      "descripcion": "string",
      "monto": number,
      "saldo": number
    }
  ]
}`

const instructions = `Eres un asistente que normaliza estados de cuenta bancarios.
Analiza el texto y las tablas extraídas del PDF y devuelve ÚNICAMENTE un objeto JSON válido, sin texto adicional, con exactamente esta estructura:

` + Schema + `

Reglas:
1. "monto" es POSITIVO para depósitos o abonos y NEGATIVO para retiros o cargos.
2. "saldo" es el saldo de la cuenta después del movimiento.
3. Las fechas usan el formato DD/MM/YYYY con año de cuatro dígitos.
4. Los números van sin símbolo de moneda ni separadores de miles, con punto decimal.
5. Si un dato de texto no aparece usa "" (cadena vacía); nunca uses null.
6. Conserva el orden de los movimientos tal como aparecen en el estado de cuenta.
`

// BuildPrompt renders the instruction, the capped document text and the
// capped JSON-serialized tables.
func BuildPrompt(doc models.Document, budget Budget) string {
	tables := doc.Tables
	if tables == nil {
		tables = []models.Table{}
	}
	// Marshalling [][]string cannot fail.
	tablesJSON, _ := json.Marshal(tables)

	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\nTEXTO DEL ESTADO DE CUENTA:\n")
	b.WriteString(Truncate(doc.Text, budget.TextChars))
	b.WriteString("\n\nTABLAS DETECTADAS (JSON):\n")
	b.WriteString(Truncate(string(tablesJSON), budget.TableChars))
	b.WriteString("\n")
	return b.String()
}
