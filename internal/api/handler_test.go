package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/statement-normalizer/internal/extractor"
	"github.com/insightdelivered/statement-normalizer/internal/llm"
	"github.com/insightdelivered/statement-normalizer/internal/metrics"
	"github.com/insightdelivered/statement-normalizer/internal/models"
	"github.com/insightdelivered/statement-normalizer/internal/normalizer"
	"github.com/insightdelivered/statement-normalizer/internal/pdftest"
	"github.com/insightdelivered/statement-normalizer/internal/pipeline"
	"github.com/insightdelivered/statement-normalizer/internal/reconstruct"
)

const statementJSON = `{"banco":"BANCO EJEMPLO","numero_cuenta":"0123456789","titular":"JUAN PEREZ",
"periodo":"ENERO 2024","saldo_inicial":1000,"saldo_final":900,
"movimientos":[{"fecha":"01/01/2024","descripcion":"Pago","monto":-100.00,"saldo":900.00}]}`

func setupTestApp(completer llm.Completer) *fiber.App {
	logger := zerolog.Nop()
	svc := pipeline.New(
		extractor.New(logger),
		reconstruct.New(reconstruct.ScopeDocument, logger),
		normalizer.New(completer, normalizer.DefaultBudget(), logger),
		logger,
	)
	return NewApp(&Handler{Service: svc, Logger: logger}, Options{Version: "test"})
}

func replyWith(raw string, err error) llm.Completer {
	return llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		return raw, err
	})
}

func samplePDF() []byte {
	doc := &pdftest.Document{}
	doc.NewPage().
		Text(50, 740, "BANCO EJEMPLO").
		Grid(50, 700, []float64{90, 150, 90}, 16, [][]string{
			{"Fecha", "Concepto", "Importe"},
			{"01/01/2024", "Pago", "-100.00"},
		})
	return doc.Bytes()
}

func uploadRequest(t *testing.T, target, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, resp *http.Response) ErrorResponse {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out ErrorResponse
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

func TestHealthEndpoint(t *testing.T) {
	app := setupTestApp(nil)

	for _, path := range []string{"/", "/api/health"} {
		t.Run(path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", path, nil))
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusOK, resp.StatusCode)
			assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))

			body, _ := io.ReadAll(resp.Body)
			var result map[string]string
			require.NoError(t, json.Unmarshal(body, &result))
			assert.Equal(t, "ok", result["status"])
		})
	}
}

func TestUploadValidation(t *testing.T) {
	app := setupTestApp(nil)

	tests := []struct {
		name     string
		filename string
		data     []byte
	}{
		{"missing file", "", nil},
		{"not a pdf", "statement.txt", []byte("hello")},
		{"empty pdf", "statement.pdf", nil},
	}

	for _, tt := range tests {
		for _, target := range []string{"/extract-pdf", "/process-pdf"} {
			t.Run(tt.name+" "+target, func(t *testing.T) {
				resp, err := app.Test(uploadRequest(t, target, tt.filename, tt.data), -1)
				require.NoError(t, err)
				assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

				out := decodeError(t, resp)
				assert.False(t, out.Success)
				assert.Equal(t, kindInvalidRequest, out.Error.Kind)
			})
		}
	}
}

func TestExtractEndpoint(t *testing.T) {
	app := setupTestApp(nil)

	resp, err := app.Test(uploadRequest(t, "/extract-pdf", "estado.PDF", samplePDF()), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var res models.ExtractResult
	require.NoError(t, json.Unmarshal(body, &res))
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.PageCount)
	require.Len(t, res.Tables, 1)
	assert.Equal(t, []string{"01/01/2024", "Pago", "-100.00"}, res.Tables[0][1])
	assert.Contains(t, res.Text, "--- Página 1 ---")
}

func TestProcessEndpoint(t *testing.T) {
	app := setupTestApp(replyWith(statementJSON, nil))

	resp, err := app.Test(uploadRequest(t, "/process-pdf", "estado.pdf", samplePDF()), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(body, &rec))
	assert.Equal(t, "BANCO EJEMPLO", rec["banco"])
	movs, ok := rec["movimientos"].([]any)
	require.True(t, ok)
	require.Len(t, movs, 1)
	assert.Equal(t, "01/01/2024", movs[0].(map[string]any)["fecha"])
	assert.Equal(t, -100.0, movs[0].(map[string]any)["monto"], "amounts are JSON numbers")
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		completer llm.Completer
		data      []byte
		status    int
		kind      string
	}{
		{"unparsable document", replyWith(statementJSON, nil), []byte("%PDF-garbage"), fiber.StatusUnprocessableEntity, string(models.KindDocumentParse)},
		{"malformed model output", replyWith("lo siento", nil), samplePDF(), fiber.StatusBadGateway, string(models.KindNormalization)},
		{"upstream failure", replyWith("", llm.ErrRateLimited), samplePDF(), fiber.StatusBadGateway, string(models.KindUpstreamService)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setupTestApp(tt.completer)
			resp, err := app.Test(uploadRequest(t, "/process-pdf", "estado.pdf", tt.data), -1)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			out := decodeError(t, resp)
			assert.False(t, out.Success)
			assert.Equal(t, tt.kind, out.Error.Kind)
			assert.NotEmpty(t, out.Error.Message)
		})
	}
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, fiber.StatusRequestTimeout, statusOf(context.Canceled))
	assert.Equal(t, fiber.StatusInternalServerError, statusOf(io.ErrUnexpectedEOF))
	assert.Equal(t, fiber.StatusNotFound, statusOf(fiber.ErrNotFound))
	assert.Equal(t, fiber.StatusBadGateway, statusOf(models.NewNormalizationError("x", "raw", nil)))
	assert.Equal(t, fiber.StatusServiceUnavailable, statusOf(pipeline.ErrNoNormalizer))
}

func TestProcessWithoutNormalizer(t *testing.T) {
	logger := zerolog.Nop()
	svc := pipeline.New(extractor.New(logger), reconstruct.New(reconstruct.ScopeDocument, logger), nil, logger)
	app := NewApp(&Handler{Service: svc, Logger: logger}, Options{})

	resp, err := app.Test(uploadRequest(t, "/process-pdf", "estado.pdf", samplePDF()), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, kindUnavailable, decodeError(t, resp).Error.Kind)
}

func TestUnknownRoute(t *testing.T) {
	resp, err := setupTestApp(nil).Test(httptest.NewRequest("GET", "/nope", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.False(t, decodeError(t, resp).Success)
}

func TestMetricsEndpoint(t *testing.T) {
	logger := zerolog.Nop()
	svc := pipeline.New(extractor.New(logger), reconstruct.New(reconstruct.ScopeDocument, logger), nil, logger)
	svc.Metrics = metrics.New()
	app := NewApp(&Handler{Service: svc, Logger: logger}, Options{Metrics: svc.Metrics.Handler()})

	resp, err := app.Test(uploadRequest(t, "/extract-pdf", "estado.pdf", samplePDF()), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `statement_requests_total{operation="extract",outcome="ok"} 1`)
}

func TestMetricsEndpointDisabled(t *testing.T) {
	resp, err := setupTestApp(nil).Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestProcessEndpoint_RequestTimeout(t *testing.T) {
	logger := zerolog.Nop()
	blocking := llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	svc := pipeline.New(
		extractor.New(logger),
		reconstruct.New(reconstruct.ScopeDocument, logger),
		normalizer.New(blocking, normalizer.DefaultBudget(), logger),
		logger,
	)
	app := NewApp(&Handler{Service: svc, Logger: logger}, Options{RequestTimeout: 50 * time.Millisecond})

	resp, err := app.Test(uploadRequest(t, "/process-pdf", "statement.pdf", samplePDF()), -1)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusRequestTimeout, resp.StatusCode)
	out := decodeError(t, resp)
	assert.False(t, out.Success)
	assert.Equal(t, "RequestTimeout", out.Error.Kind)
}
