package normalizer

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/statement-normalizer/internal/models"
)

const validResponse = `{
  "banco": "X",
  "numero_cuenta": "0123456789",
  "clabe": "012180001234567891",
  "titular": "JUAN PEREZ",
  "periodo": "01/01/2024 al 31/01/2024",
  "saldo_inicial": 1000.00,
  "saldo_final": 1095.50,
  "movimientos": [
    {"fecha": "01/01/2024", "descripcion": "Pago", "monto": -100.00, "saldo": 900.00},
    {"fecha": "02/01/2024", "descripcion": "Depósito", "monto": 195.50, "saldo": 1095.50}
  ]
}`

func TestParse_Valid(t *testing.T) {
	rec, err := Parse(validResponse)
	require.NoError(t, err)

	assert.Equal(t, "X", rec.Bank)
	assert.Equal(t, "0123456789", rec.AccountNumber)
	assert.Equal(t, "012180001234567891", rec.CLABE)
	assert.Equal(t, "JUAN PEREZ", rec.AccountHolder)
	assert.True(t, rec.OpeningBalance.Equal(decimal.RequireFromString("1000")))
	assert.True(t, rec.ClosingBalance.Equal(decimal.RequireFromString("1095.50")))
	require.Len(t, rec.Movements, 2)
	assert.Equal(t, "01/01/2024", rec.Movements[0].Date.String())
	assert.True(t, rec.Movements[0].Amount.Equal(decimal.RequireFromString("-100")))
	assert.Equal(t, "Depósito", rec.Movements[1].Description)
}

func TestParse_FencedEqualsUnfenced(t *testing.T) {
	plain, err := Parse(validResponse)
	require.NoError(t, err)

	fenced, err := Parse("```json\n" + validResponse + "\n```")
	require.NoError(t, err)

	assert.Equal(t, plain, fenced)
}

func TestParse_OptionalClabeAndEmptyMovements(t *testing.T) {
	rec, err := Parse(`{"banco":"X","numero_cuenta":"1","titular":"T","periodo":"P","saldo_inicial":0,"saldo_final":0,"movimientos":[]}`)
	require.NoError(t, err)
	assert.Empty(t, rec.CLABE)
	assert.NotNil(t, rec.Movements)
	assert.Empty(t, rec.Movements)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "Lo siento, no puedo ayudar con eso."},
		{"truncated json", `{"banco":"X","numero_cuenta":`},
		{"array", `[{"banco":"X"}]`},
		{"null", "null"},
		{"trailing data", validResponse + ` {"otro":1}`},
		{"missing field", `{"banco":"X","numero_cuenta":"1","titular":"T","periodo":"P","saldo_inicial":0,"movimientos":[]}`},
		{"null balance", `{"banco":"X","numero_cuenta":"1","titular":"T","periodo":"P","saldo_inicial":null,"saldo_final":0,"movimientos":[]}`},
		{"movement missing amount", `{"banco":"X","numero_cuenta":"1","titular":"T","periodo":"P","saldo_inicial":0,"saldo_final":0,"movimientos":[{"fecha":"01/01/2024","descripcion":"d","saldo":1}]}`},
		{"amount with thousands separator", `{"banco":"X","numero_cuenta":"1","titular":"T","periodo":"P","saldo_inicial":0,"saldo_final":0,"movimientos":[{"fecha":"01/01/2024","descripcion":"d","monto":"1,000.00","saldo":1}]}`},
		{"quoted amount", `{"banco":"X","numero_cuenta":"1","titular":"T","periodo":"P","saldo_inicial":0,"saldo_final":0,"movimientos":[{"fecha":"01/01/2024","descripcion":"d","monto":"-100.00","saldo":1}]}`},
		{"quoted movement balance", `{"banco":"X","numero_cuenta":"1","titular":"T","periodo":"P","saldo_inicial":0,"saldo_final":0,"movimientos":[{"fecha":"01/01/2024","descripcion":"d","monto":-100,"saldo":"900"}]}`},
		{"quoted opening balance", `{"banco":"X","numero_cuenta":"1","titular":"T","periodo":"P","saldo_inicial":"1000","saldo_final":0,"movimientos":[]}`},
		{"boolean balance", `{"banco":"X","numero_cuenta":"1","titular":"T","periodo":"P","saldo_inicial":0,"saldo_final":true,"movimientos":[]}`},
		{"bad date", `{"banco":"X","numero_cuenta":"1","titular":"T","periodo":"P","saldo_inicial":0,"saldo_final":0,"movimientos":[{"fecha":"2024-01-01","descripcion":"d","monto":1,"saldo":1}]}`},
		{"number as account", `{"banco":"X","numero_cuenta":1,"titular":"T","periodo":"P","saldo_inicial":0,"saldo_final":0,"movimientos":[]}`},
		{"fenced garbage", "```json\n{banco: X}\n```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Parse(tt.raw)
			require.Error(t, err)
			assert.Nil(t, rec)

			var nerr *models.Error
			require.ErrorAs(t, err, &nerr)
			assert.Equal(t, models.KindNormalization, nerr.Kind)
			assert.Equal(t, tt.raw, nerr.Raw)
		})
	}
}

func TestParse_DepositWithNegativeAmountKeepsSign(t *testing.T) {
	raw := `{"banco":"X","numero_cuenta":"1","titular":"T","periodo":"P","saldo_inicial":0,"saldo_final":0,
	"movimientos":[{"fecha":"03/01/2024","descripcion":"DEPÓSITO EN EFECTIVO","monto":-250.00,"saldo":-250.00}]}`

	rec, err := Parse(raw)
	require.NoError(t, err)
	assert.True(t, rec.Movements[0].Amount.IsNegative())
	assert.False(t, rec.Movements[0].IsCredit())
}

func TestParse_SignMatchesRawOutput(t *testing.T) {
	descriptions := []string{"depósito", "DEPOSITO SPEI", "retiro cajero", "abono nómina", "cargo comisión", "pago"}
	rng := rand.New(rand.NewSource(42))

	for iter := 0; iter < 50; iter++ {
		var movs []string
		var want []int
		n := 1 + rng.Intn(8)
		for i := 0; i < n; i++ {
			cents := rng.Int63n(10_000_000) + 1
			if rng.Intn(2) == 0 {
				cents = -cents
			}
			amount := decimal.New(cents, -2)
			want = append(want, amount.Sign())
			desc, _ := json.Marshal(descriptions[rng.Intn(len(descriptions))])
			movs = append(movs, fmt.Sprintf(`{"fecha":"%02d/01/2024","descripcion":%s,"monto":%s,"saldo":0}`,
				i+1, desc, amount.StringFixed(2)))
		}
		raw := `{"banco":"X","numero_cuenta":"1","titular":"T","periodo":"P","saldo_inicial":0,"saldo_final":0,"movimientos":[` +
			strings.Join(movs, ",") + `]}`

		rec, err := Parse(raw)
		require.NoError(t, err)
		require.Len(t, rec.Movements, len(want))
		for i, m := range rec.Movements {
			assert.Equal(t, want[i], m.Amount.Sign(), "movement %d of %s", i, raw)
		}
	}
}
