// Harpia - Document anti-fraud analysis for Brazilian paperwork.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/opensource-finance/harpia/internal/analyzer"
	"github.com/opensource-finance/harpia/internal/classify"
	"github.com/opensource-finance/harpia/internal/domain"
	"github.com/opensource-finance/harpia/internal/repository"
)

// DefaultReportFile is where the JSON report is written unless --output is given.
const DefaultReportFile = "relatorio_antifraude.json"

var supportedExtensions = []string{".pdf", ".png", ".jpg", ".jpeg", ".tiff"}

type options struct {
	output    string
	tenantID  string
	noExport  bool
	showData  bool
	verbose   bool
	withRules bool
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(os.Getenv)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Erro na analise: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "harpia-analyze <document>",
		Short: "Analyze a scanned document for fraud signals",
		Long: `Extracts the fields of a scanned document, validates CPF, CNPJ and dates,
asks the text generation service for a fraud narrative and prints the risk score.
The full report is exported as JSON.

Collaborators are configured from the environment (or a .env file):
AZURE_DOCUMENT_INTELLIGENCE_KEY, AZURE_DOCUMENT_INTELLIGENCE_ENDPOINT,
AZURE_OPENAI_KEY, AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_DEPLOYMENT,
or HARPIA_TEXT_PROVIDER=gemini with GEMINI_API_KEY.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := domain.DefaultConfig()
			cfg.ApplyEnv(getenv)

			level := slog.LevelWarn
			if opts.verbose || cfg.Logging.Level == "debug" {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

			return run(cmd.Context(), cfg, args[0], opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", DefaultReportFile, "path of the exported JSON report")
	cmd.Flags().StringVar(&opts.tenantID, "tenant", domain.GlobalTenantID, "tenant whose field rules apply")
	cmd.Flags().BoolVar(&opts.withRules, "with-rules", false, "load stored field rules from the configured repository")
	cmd.Flags().BoolVar(&opts.noExport, "no-export", false, "do not write the JSON report")
	cmd.Flags().BoolVar(&opts.showData, "show-data", false, "print the extracted data")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}

func run(ctx context.Context, cfg *domain.Config, path string, opts *options, out io.Writer) error {
	ext := strings.ToLower(filepath.Ext(path))
	supported := false
	for _, s := range supportedExtensions {
		if ext == s {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("unsupported document type %q, expected one of %s", ext, strings.Join(supportedExtensions, ", "))
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	var classifier *classify.Classifier
	if opts.withRules {
		classifier, err = loadClassifier(ctx, cfg, opts.tenantID)
		if err != nil {
			return err
		}
	}

	a, err := analyzer.NewFromConfig(ctx, cfg, classifier)
	if err != nil {
		return err
	}

	report, err := a.Analyze(ctx, opts.tenantID, domain.Document{
		Name:    path,
		Content: content,
	})
	if err != nil {
		return err
	}

	if err := printSummary(out, report, opts.showData); err != nil {
		return err
	}

	if opts.noExport {
		return nil
	}
	if err := exportReport(opts.output, report); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nRelatorio exportado: %s\n", opts.output)
	return nil
}

// loadClassifier compiles the stored field rules that apply to tenantID.
func loadClassifier(ctx context.Context, cfg *domain.Config, tenantID string) (*classify.Classifier, error) {
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	defer repo.Close()

	compiler, err := classify.NewCompiler()
	if err != nil {
		return nil, err
	}

	classifier := classify.NewClassifier(nil)
	count, err := classifier.Reload(ctx, compiler, repo, tenantID)
	if err != nil {
		return nil, err
	}
	slog.Debug("field rules loaded", "tenant_id", tenantID, "count", count)
	return classifier, nil
}

func exportReport(path string, report *domain.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := domain.EncodeReport(f, report); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}
