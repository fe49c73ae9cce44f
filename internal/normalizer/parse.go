package normalizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/insightdelivered/statement-normalizer/internal/models"
)

var (
	requiredRecordKeys   = []string{"banco", "numero_cuenta", "titular", "periodo", "saldo_inicial", "saldo_final", "movimientos"}
	requiredMovementKeys = []string{"fecha", "descripcion", "monto", "saldo"}

	recordNumberKeys   = []string{"saldo_inicial", "saldo_final"}
	movementNumberKeys = []string{"monto", "saldo"}
)

// Parse decodes a model response into a StatementRecord. The response must
// be exactly one JSON object, optionally fenced, with every required key
// present and non-null. Values are taken verbatim; nothing is inferred.
// Every failure is a NormalizationError carrying raw.
func Parse(raw string) (*models.StatementRecord, error) {
	payload := []byte(StripFences(raw))

	var fields map[string]json.RawMessage
	if err := decodeSingle(payload, &fields); err != nil {
		return nil, models.NewNormalizationError("response is not a JSON object", raw, err)
	}
	if err := checkKeys(fields, requiredRecordKeys); err != nil {
		return nil, models.NewNormalizationError("response does not match the statement schema", raw, err)
	}
	if err := checkNumbers(fields, recordNumberKeys); err != nil {
		return nil, models.NewNormalizationError("response has invalid field values", raw, err)
	}

	var movements []map[string]json.RawMessage
	if err := json.Unmarshal(fields["movimientos"], &movements); err != nil {
		return nil, models.NewNormalizationError("movimientos is not a list of objects", raw, err)
	}
	for i, m := range movements {
		if err := checkKeys(m, requiredMovementKeys); err != nil {
			return nil, models.NewNormalizationError(
				fmt.Sprintf("movement %d does not match the schema", i), raw, err)
		}
		if err := checkNumbers(m, movementNumberKeys); err != nil {
			return nil, models.NewNormalizationError(
				fmt.Sprintf("movement %d has invalid field values", i), raw, err)
		}
	}

	var rec models.StatementRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, models.NewNormalizationError("response has invalid field values", raw, err)
	}
	if rec.Movements == nil {
		rec.Movements = []models.Movement{}
	}
	return &rec, nil
}

func decodeSingle(payload []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON object")
	}
	return nil
}

func checkKeys(fields map[string]json.RawMessage, keys []string) error {
	if fields == nil {
		return errors.New("null object")
	}
	var missing []string
	for _, k := range keys {
		v, ok := fields[k]
		if !ok || strings.TrimSpace(string(v)) == "null" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing or null fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// checkNumbers requires bare JSON numbers. decimal.Decimal would also accept
// a quoted string, which is a schema violation rather than an amount.
func checkNumbers(fields map[string]json.RawMessage, keys []string) error {
	var bad []string
	for _, k := range keys {
		v := bytes.TrimSpace(fields[k])
		if len(v) == 0 || (v[0] != '-' && (v[0] < '0' || v[0] > '9')) {
			bad = append(bad, k)
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("fields must be JSON numbers: %s", strings.Join(bad, ", "))
	}
	return nil
}
