package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rbpscan/adapters/excel"
	"rbpscan/app"
	"rbpscan/domain/sanger"
	"rbpscan/internal/analysis"
	"rbpscan/internal/config"
	"rbpscan/internal/container"
	"rbpscan/ports"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "rbpscan-cli",
		Short: "Run Sanger editing analyses and export results from the command line",
	}

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newResolveCmd(),
		newExportCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newAnalyzeCmd() *cobra.Command {
	var groups []string
	var guideSeq string
	var format string
	var out string

	cmd := &cobra.Command{
		Use:   "analyze [trace.ab1...]",
		Short: "Analyze trace files with the configured engine",
		Long: `Stage the given .ab1 traces, run the analysis engine and print the result.

Groups are given once per file, in file order; omit them to label every file "default".
The engine is configured through the same environment variables as the server
(ENGINE_MODE, ENGINE_COMMAND, ENGINE_ARGS, ENGINE_TIMEOUT, ...).

Example: rbpscan-cli analyze wt_1.ab1 wt_2.ab1 ko_1.ab1 --group WT --group WT --group KO --format csv --out results.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), args, groups, guideSeq, format, out)
		},
	}

	cmd.Flags().StringArrayVar(&groups, "group", nil, "Group label for each file, in order")
	cmd.Flags().StringVar(&guideSeq, "guide-seq", "", "Guide sequence passed to the engine")
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json, csv or xlsx")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")

	return cmd
}

func newResolveCmd() *cobra.Command {
	var groups []string

	cmd := &cobra.Command{
		Use:   "resolve [file...]",
		Short: "Show the group and replicate each file would be analyzed under",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw []string
			if len(groups) > 0 {
				raw = groups
			}
			_, labels, err := app.ResolveLabels(args, raw)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-40s %-20s %s\n", "FILE", "GROUP", "REPLICATE")
			for i, l := range labels {
				fmt.Fprintf(w, "%-40s %-20s %d\n", args[i], l.Group, l.Replicate)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&groups, "group", nil, "Group label for each file, in order")
	return cmd
}

func newExportCmd() *cobra.Command {
	var format string
	var out string

	cmd := &cobra.Command{
		Use:   "export [result.json|result.csv|result.xlsx]",
		Short: "Convert a saved analysis into CSV or XLSX",
		Long: `Convert a saved JSON response (from the server or "analyze --format json") or a
previous CSV/XLSX export into another download format without rerunning the engine.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(args[0], format, out)
		},
	}

	cmd.Flags().StringVar(&format, "format", "csv", "Output format: csv or xlsx")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	return cmd
}

func runAnalyze(ctx context.Context, paths, groups []string, guideSeq, format, out string) error {
	appConfig, err := config.Load()
	if err != nil {
		return err
	}
	c, err := container.New(appConfig)
	if err != nil {
		return err
	}

	exporter, err := exporterFor(c, format)
	if err != nil {
		return err
	}

	req := app.AnalysisRequest{GuideSequence: guideSeq}
	if len(groups) > 0 {
		req.Groups = groups
	}
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		req.Files = append(req.Files, sanger.UploadedFile{Name: filepath.Base(p), Content: content})
	}

	stop := spin(fmt.Sprintf("analyzing %d traces", len(req.Files)))
	result, err := c.AnalysisService.Analyze(ctx, req)
	stop()
	if err != nil {
		return err
	}

	return writeOutput(out, func(w io.Writer) error {
		if exporter == nil {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		return exporter.Export(w, result.ExportData())
	})
}

// savedResponse is the subset of a JSON analysis response needed to re-export it
type savedResponse struct {
	Results []sanger.ResultRecord `json:"results"`
	Rows    []analysis.SampleRow  `json:"rows"`
}

func runExport(path, format, out string) error {
	exporter, ok := exportersByFormat()[strings.ToLower(format)]
	if !ok {
		return fmt.Errorf("unsupported format %q", format)
	}

	var data ports.ExportData
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx":
		rows, err := excel.NewDataReader(path).ReadExportRows()
		if err != nil {
			return err
		}
		data.Rows = rows
	default:
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var saved savedResponse
		if err := json.Unmarshal(raw, &saved); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		samples := make([]sanger.SampleMetadata, len(saved.Rows))
		for i, r := range saved.Rows {
			samples[i] = sanger.SampleMetadata{FileName: r.File, RawGroupLabel: r.Group}
		}
		data = analysis.NewAnalysis(samples, sanger.Resolve(samples), nil, saved.Results).ExportData()
	}

	return writeOutput(out, func(w io.Writer) error {
		return exporter.Export(w, data)
	})
}

func exportersByFormat() map[string]ports.Exporter {
	cfg := excel.DefaultExportConfig()
	return map[string]ports.Exporter{
		excel.FormatCSV:  excel.NewCSVExporter(cfg),
		excel.FormatXLSX: excel.NewXLSXExporter(cfg),
	}
}

// exporterFor returns nil for JSON output
func exporterFor(c *container.Container, format string) (ports.Exporter, error) {
	if strings.EqualFold(format, "json") {
		return nil, nil
	}
	exporter, ok := c.Exporter(format)
	if !ok {
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	return exporter, nil
}

// writeOutput renders into memory first so a failed render never truncates an existing file
func writeOutput(out string, render func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return err
	}
	if out == "" || out == "-" {
		_, err := os.Stdout.Write(buf.Bytes())
		return err
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%d bytes)\n", out, buf.Len())
	return nil
}

// spin shows an indeterminate spinner on stderr until the returned func is called
func spin(description string) func() {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
	)
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()
	return func() {
		close(done)
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
}
