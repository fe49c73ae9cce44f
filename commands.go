package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/insightdelivered/statement-normalizer/internal/api"
	"github.com/insightdelivered/statement-normalizer/internal/config"
	"github.com/insightdelivered/statement-normalizer/internal/extractor"
	"github.com/insightdelivered/statement-normalizer/internal/llm"
	"github.com/insightdelivered/statement-normalizer/internal/metrics"
	"github.com/insightdelivered/statement-normalizer/internal/models"
	"github.com/insightdelivered/statement-normalizer/internal/normalizer"
	"github.com/insightdelivered/statement-normalizer/internal/pipeline"
	"github.com/insightdelivered/statement-normalizer/internal/reconstruct"
	"github.com/insightdelivered/statement-normalizer/internal/writer"
)

// app carries what every subcommand needs after the root has loaded config.
type app struct {
	cfgPath string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "statement-normalizer",
		Short: "Convert bank statement PDFs into normalized JSON",
		Long: `Reads a digital bank statement PDF, recovers its text and movement
tables, and asks a language model to normalize them into one JSON record
with account metadata and signed movements.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.cfgPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "Path to a YAML/TOML/JSON config file")

	cmd.AddCommand(a.newServeCmd(), a.newExtractCmd(), a.newProcessCmd(), newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		// Skip config loading.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "statement-normalizer v%s\n", version)
		},
	}
}

// cliLogger writes human-readable logs to stderr so stdout stays clean
// for command output.
func (a *app) cliLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(a.cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()
}

// service builds the pipeline. Without withLLM the normalizer is omitted
// and only extraction is available.
func (a *app) service(logger zerolog.Logger, withLLM bool) (*pipeline.Service, error) {
	var norm *normalizer.Normalizer
	if withLLM {
		if err := a.cfg.RequireLLM(); err != nil {
			return nil, err
		}
		completer, err := llm.New(a.cfg.LLMOptions())
		if err != nil {
			return nil, fmt.Errorf("failed to create llm client: %w", err)
		}
		norm = normalizer.New(completer, a.cfg.Budget(), logger.With().Str("stage", "normalize").Logger())
	}
	return pipeline.New(
		extractor.New(logger.With().Str("stage", "extract").Logger()),
		reconstruct.New(a.cfg.FallbackScope(), logger.With().Str("stage", "reconstruct").Logger()),
		norm,
		logger,
	), nil
}

func (a *app) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := a.cfg.Logger(os.Stdout)

			withLLM := a.cfg.RequireLLM() == nil
			if !withLLM {
				logger.Warn().Msg("no llm api key configured, /process-pdf is disabled")
			}
			svc, err := a.service(logger, withLLM)
			if err != nil {
				return err
			}

			opts := api.Options{
				BodyLimit:      a.cfg.Server.BodyLimit,
				RequestTimeout: a.cfg.Server.RequestTimeout,
				Version:        version,
			}
			if a.cfg.Server.Metrics {
				svc.Metrics = metrics.New()
				opts.Metrics = svc.Metrics.Handler()
			}
			srv := api.NewApp(&api.Handler{Service: svc, Logger: logger}, opts)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info().
					Str("addr", a.cfg.Addr()).
					Str("provider", a.cfg.LLM.Provider).
					Str("fallback_scope", string(a.cfg.FallbackScope())).
					Msg("starting server")
				errCh <- srv.Listen(a.cfg.Addr())
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.ShutdownWithContext(shutdownCtx)
		},
	}
}

func (a *app) newExtractCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "extract <input.pdf>",
		Short: "Extract text and tables without calling the language model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := a.cliLogger()
			data, err := readPDF(args[0])
			if err != nil {
				return err
			}
			svc, err := a.service(logger, false)
			if err != nil {
				return err
			}

			res, err := svc.Extract(logger.WithContext(cmd.Context()), data)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), output, func(w io.Writer) error {
				return writeJSON(w, res)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (defaults to stdout)")
	return cmd
}

func (a *app) newProcessCmd() *cobra.Command {
	var (
		output string
		format string
		header bool
	)
	cmd := &cobra.Command{
		Use:   "process <input.pdf>",
		Short: "Normalize a statement into a StatementRecord",
		Example: `  # JSON to stdout
  statement-normalizer process estado.pdf

  # Movements as CSV with account metadata rows
  statement-normalizer process --format csv --output movimientos.csv estado.pdf

  # Excel workbook next to the input
  statement-normalizer process --format xlsx estado.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(format)
			if format != "json" && format != "csv" && format != "xlsx" {
				return fmt.Errorf("unknown format %q: use json, csv or xlsx", format)
			}
			if format == "xlsx" && output == "" {
				output = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".xlsx"
			}

			logger := a.cliLogger()
			data, err := readPDF(args[0])
			if err != nil {
				return err
			}
			svc, err := a.service(logger, true)
			if err != nil {
				return err
			}

			rec, err := svc.Process(logger.WithContext(cmd.Context()), data)
			if err != nil {
				var me *models.Error
				if errors.As(err, &me) && me.Raw != "" {
					logger.Debug().Str("raw", me.Raw).Msg("model response")
				}
				return err
			}

			if err := exportRecord(cmd.OutOrStdout(), rec, format, output, header); err != nil {
				return err
			}

			totals := rec.Totals()
			logger.Info().
				Str("bank", rec.Bank).
				Str("account", rec.AccountNumber).
				Str("period", rec.Period).
				Int("movements", totals.Count).
				Str("credits", totals.Credits.StringFixed(2)).
				Str("debits", totals.Debits.StringFixed(2)).
				Msg("done")
			if totals.Count == 0 {
				logger.Warn().Msg("no movements found, the statement may be image-only or use an unusual layout")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (defaults to stdout; xlsx defaults to <input>.xlsx)")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json, csv, xlsx")
	cmd.Flags().BoolVar(&header, "header", true, "Include account metadata rows in CSV output")
	return cmd
}

// exportRecord renders rec in format to path, or to stdout when path is
// empty.
func exportRecord(stdout io.Writer, rec *models.StatementRecord, format, path string, header bool) error {
	switch {
	case format == "csv" && path != "":
		return (&writer.CSVWriter{IncludeHeader: header}).WriteToFile(path, rec)
	case format == "csv":
		return (&writer.CSVWriter{IncludeHeader: header}).Write(stdout, rec)
	case format == "xlsx":
		return (&writer.XLSXWriter{}).WriteToFile(path, rec)
	default:
		return writeOutput(stdout, path, func(w io.Writer) error {
			return writeJSON(w, rec)
		})
	}
}

func readPDF(path string) ([]byte, error) {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return nil, fmt.Errorf("expected .pdf file, got %q", filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return data, nil
}

// writeOutput sends the rendered output to path, or to stdout when path
// is empty.
func writeOutput(stdout io.Writer, path string, render func(io.Writer) error) error {
	if path == "" {
		return render(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	if err := render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
