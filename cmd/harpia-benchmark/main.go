// Harpia - Document anti-fraud analysis for Brazilian paperwork.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

// Benchmark tool for measuring Harpia's field validation against labelled samples.
//
// Usage:
//
//	harpia-benchmark samples.csv --url http://localhost:8080
//
// The CSV needs an is_fraud column (1 or true for fraudulent documents). An
// optional id column names the sample; every other column is sent as an
// extracted key/value pair, in header order, to POST /validate. Empty cells
// are skipped. A sample is predicted fraudulent when its risk level is ALTO
// or CRITICO.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type options struct {
	baseURL    string
	tenantID   string
	limit      int
	workers    int
	fraudOnly  bool
	sampleRate float64
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "harpia-benchmark <samples.csv>",
		Short:         "Replay labelled field samples against a running Harpia server",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "Harpia base URL")
	cmd.Flags().StringVar(&opts.tenantID, "tenant", "benchmark-test", "tenant ID for requests")
	cmd.Flags().IntVar(&opts.limit, "limit", 10000, "maximum samples to process (0 = all)")
	cmd.Flags().IntVar(&opts.workers, "workers", 10, "number of concurrent workers")
	cmd.Flags().BoolVar(&opts.fraudOnly, "fraud-only", false, "only replay fraudulent samples")
	cmd.Flags().Float64Var(&opts.sampleRate, "sample", 1.0, "sample rate for legitimate samples (0.0-1.0)")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "print each sample result")

	return cmd
}

func run(path string, opts *options) error {
	fmt.Println("+---------------------------------------------------------------+")
	fmt.Println("|        HARPIA BENCHMARK - Labelled Document Samples           |")
	fmt.Println("+---------------------------------------------------------------+")
	fmt.Printf("\nCSV File:    %s\n", path)
	fmt.Printf("Harpia URL:  %s\n", opts.baseURL)
	fmt.Printf("Tenant ID:   %s\n", opts.tenantID)
	fmt.Printf("Workers:     %d\n", opts.workers)
	fmt.Printf("Limit:       %d\n", opts.limit)
	fmt.Printf("Fraud Only:  %v\n", opts.fraudOnly)
	fmt.Printf("Sample Rate: %.2f\n", opts.sampleRate)
	fmt.Println()

	if err := checkHealth(opts.baseURL); err != nil {
		return fmt.Errorf("harpia not reachable at %s: %w", opts.baseURL, err)
	}
	fmt.Println("Harpia is healthy")

	samples, err := readSamples(path, opts.limit, opts.fraudOnly, opts.sampleRate)
	if err != nil {
		return fmt.Errorf("failed to read samples: %w", err)
	}
	if len(samples) == 0 {
		return fmt.Errorf("no samples in %s", path)
	}
	fmt.Printf("Loaded %d samples\n", len(samples))

	fraudCount := 0
	for _, s := range samples {
		if s.IsFraud {
			fraudCount++
		}
	}
	fmt.Printf("  - Fraud:      %d (%.2f%%)\n", fraudCount, 100*float64(fraudCount)/float64(len(samples)))
	fmt.Printf("  - Legitimate: %d (%.2f%%)\n", len(samples)-fraudCount, 100*float64(len(samples)-fraudCount)/float64(len(samples)))

	fmt.Printf("\nRunning benchmark with %d workers...\n", opts.workers)
	start := time.Now()
	m := runBenchmark(samples, opts.baseURL, opts.tenantID, opts.workers, opts.verbose)
	printResults(m, time.Since(start))
	return nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n+---------------------------------------------------------------+")
	fmt.Println("|                      BENCHMARK RESULTS                        |")
	fmt.Println("+---------------------------------------------------------------+")

	fmt.Printf("\nDATASET\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Fraud:      %d\n", m.TotalFraud)
	fmt.Printf("   Total Legitimate: %d\n", m.TotalLegitimate)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\nCONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                   ALERT     NO ALERT")
	fmt.Println("              +----------+----------+")
	fmt.Printf("   Actual  F  | %8d | %8d |  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              +----------+----------+")
	fmt.Printf("           L  | %8d | %8d |  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              +----------+----------+")

	s := m.Summary()
	fmt.Printf("\nDETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of alerts, how many were actual fraud)\n", s.Precision)
	fmt.Printf("   Recall:     %.4f  (of fraud, how many were caught)\n", s.Recall)
	fmt.Printf("   F1-Score:   %.4f\n", s.F1)
	fmt.Printf("   Accuracy:   %.4f\n", s.Accuracy)

	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f docs/sec\n", float64(m.TotalProcessed)/duration.Seconds())
	}

	fmt.Printf("\nINTERPRETATION\n")
	switch {
	case s.Recall >= 0.9:
		fmt.Println("   Excellent recall: most fraudulent documents are flagged")
	case s.Recall >= 0.7:
		fmt.Println("   Good recall, but some fraudulent documents pass")
	case s.Recall >= 0.5:
		fmt.Println("   Moderate recall: significant fraud is missed")
	default:
		fmt.Println("   Poor recall: most fraudulent documents pass")
	}
	switch {
	case s.Precision >= 0.5:
		fmt.Println("   Good precision: alerts are meaningful")
	case s.Precision >= 0.2:
		fmt.Println("   Low precision: many false alarms")
	default:
		fmt.Println("   Very low precision: mostly false alarms")
	}
	fmt.Println()
}
