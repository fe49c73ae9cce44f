package api

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/insightdelivered/statement-normalizer/internal/models"
	"github.com/insightdelivered/statement-normalizer/internal/pipeline"
)

// Error kinds for failures that happen before the pipeline runs.
const (
	kindInvalidRequest = "InvalidRequest"
	kindTimeout        = "RequestTimeout"
	kindUnavailable    = "ServiceUnavailable"
	kindInternal       = "InternalError"
)

// Handler holds the HTTP handlers for the API.
type Handler struct {
	Service *pipeline.Service
	Logger  zerolog.Logger

	version string
}

// ErrorBody is the error payload of every failed request.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ErrorResponse is the JSON response of a failed request.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": h.version,
	})
}

// HandleExtract runs extraction, reconstruction and aggregation only.
func (h *Handler) HandleExtract(c *fiber.Ctx) error {
	data, err := readUpload(c)
	if err != nil {
		return err
	}
	res, err := h.Service.Extract(c.UserContext(), data)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// HandleProcess runs the full pipeline and returns the StatementRecord.
func (h *Handler) HandleProcess(c *fiber.Ctx) error {
	data, err := readUpload(c)
	if err != nil {
		return err
	}
	rec, err := h.Service.Process(c.UserContext(), data)
	if err != nil {
		return err
	}
	return c.JSON(rec)
}

// readUpload returns the bytes of the multipart "file" field.
func readUpload(c *fiber.Ctx) ([]byte, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "No file uploaded. Use form field 'file'.")
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".pdf") {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Only PDF files are supported.")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Uploaded file cannot be read.")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Uploaded file cannot be read.")
	}
	if len(data) == 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Uploaded file is empty.")
	}
	return data, nil
}

// statusOf maps an error to its HTTP status.
func statusOf(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	switch models.KindOf(err) {
	case models.KindDocumentParse:
		return fiber.StatusUnprocessableEntity
	case models.KindUpstreamService, models.KindNormalization:
		return fiber.StatusBadGateway
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fiber.StatusRequestTimeout
	}
	if errors.Is(err, pipeline.ErrNoNormalizer) {
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

// handleError is the app's error handler. Internal details never reach
// the client.
func (h *Handler) handleError(c *fiber.Ctx, err error) error {
	status := statusOf(err)
	body := ErrorBody{Kind: kindInternal, Message: "Internal server error."}

	var fe *fiber.Error
	var me *models.Error
	switch {
	case errors.As(err, &fe):
		body = ErrorBody{Kind: kindInvalidRequest, Message: fe.Message}
		if fe.Code >= fiber.StatusInternalServerError {
			body = ErrorBody{Kind: kindInternal, Message: fe.Message}
		}
	case errors.As(err, &me):
		body = ErrorBody{Kind: string(me.Kind), Message: me.Message}
	case status == fiber.StatusRequestTimeout:
		body = ErrorBody{Kind: kindTimeout, Message: "Request was cancelled."}
	case status == fiber.StatusServiceUnavailable:
		body = ErrorBody{Kind: kindUnavailable, Message: "Statement normalization is not configured."}
	default:
		zerolog.Ctx(c.UserContext()).Error().Err(err).Msg("unhandled error")
	}

	return c.Status(status).JSON(ErrorResponse{Success: false, Error: body})
}
