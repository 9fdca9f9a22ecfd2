package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cocoaplant/cocoaplant/pkg/compute"
	"github.com/cocoaplant/cocoaplant/pkg/ingest"
	"github.com/cocoaplant/cocoaplant/pkg/rules"
	"github.com/cocoaplant/cocoaplant/pkg/types"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "plantctl",
		Short:         "Offline cocoa batch analytics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newAnalyzeCmd(),
		newExportCmd(),
		newTemplateCmd(),
		newAnomaliesCmd(),
		newPredictCmd(),
		newScoreCmd(),
		newComplianceCmd(),
	)
	return root
}

// =============================================================================
// BATCH FILES
// =============================================================================

func newAnalyzeCmd() *cobra.Command {
	var (
		format  string
		csvOut  bool
		demo    bool
		maxRows int
	)
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Score a CSV, JSON or XLSX batch file",
		Long: `Parses a batch file, normalizes every row and prints the scored records
with a summary. The format comes from the file extension unless --format is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			f := ingest.FormatFromName(args[0])
			if format != "" {
				f = ingest.ParseFormat(format)
			}

			p := ingest.New(ingest.Options{DemoMode: demo, MaxRows: maxRows})
			records, err := p.Run(cmd.Context(), content, f)
			if err != nil {
				return err
			}
			if csvOut {
				return ingest.WriteCSV(cmd.OutOrStdout(), records)
			}
			return printJSON(cmd.OutOrStdout(), struct {
				Records []types.BatchRecord `json:"records"`
				Summary compute.Summary     `json:"summary"`
			}{records, compute.Summarize(records)})
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "override the file format (csv|json|xlsx)")
	cmd.Flags().BoolVar(&csvOut, "csv", false, "print the records as export CSV")
	cmd.Flags().BoolVar(&demo, "demo", false, "generate a demo dataset for unknown formats")
	cmd.Flags().IntVar(&maxRows, "max-rows", 0, "reject files with more data rows (0 = no limit)")
	return cmd
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [records.json]",
		Short: "Convert scored records JSON to export CSV",
		Long:  `Reads a JSON array of scored records from the file, or stdin when omitted, and writes CSV.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			var records []types.BatchRecord
			if err := json.Unmarshal(raw, &records); err != nil {
				return fmt.Errorf("decode records: %w", err)
			}
			return ingest.WriteCSV(cmd.OutOrStdout(), records)
		},
	}
}

func newTemplateCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "template <csv|json>",
		Short: "Print or save an example batch file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, filename, _, err := ingest.Template(ingest.ParseFormat(args[0]))
			if err != nil {
				return err
			}
			if outDir == "" {
				_, err := cmd.OutOrStdout().Write(content)
				return err
			}
			path := filepath.Join(outDir, filename)
			if err := os.WriteFile(path, content, 0o644); err != nil {
				return fmt.Errorf("write template: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "write the template into this directory")
	return cmd
}

// =============================================================================
// QUALITY
// =============================================================================

func newAnomaliesCmd() *cobra.Command {
	var sigma float64
	cmd := &cobra.Command{
		Use:   "anomalies [reading...]",
		Short: "Flag outlier readings by z-score",
		Long:  `Reads numbers from the arguments, or whitespace-separated from stdin when none are given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := args
			if len(fields) == 0 {
				sc := bufio.NewScanner(cmd.InOrStdin())
				sc.Split(bufio.ScanWords)
				for sc.Scan() {
					fields = append(fields, sc.Text())
				}
				if err := sc.Err(); err != nil {
					return fmt.Errorf("read readings: %w", err)
				}
			}
			readings := make([]float64, 0, len(fields))
			for _, f := range fields {
				v, err := strconv.ParseFloat(strings.TrimSuffix(f, ","), 64)
				if err != nil {
					return fmt.Errorf("reading %q is not a number", f)
				}
				readings = append(readings, v)
			}
			found := compute.DetectAnomalies(readings, sigma)
			if found == nil {
				found = []compute.Anomaly{}
			}
			return printJSON(cmd.OutOrStdout(), found)
		},
	}
	cmd.Flags().Float64Var(&sigma, "sigma", compute.DefaultSigma, "z-score threshold")
	return cmd
}

func newPredictCmd() *cobra.Command {
	var fermHours, temp, moisture, defectRate float64
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict the final quality of an in-process batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			score := compute.PredictedQualityScore(fermHours, temp, moisture, defectRate)
			return printJSON(cmd.OutOrStdout(), map[string]float64{"predictedScore": score})
		},
	}
	cmd.Flags().Float64Var(&fermHours, "ferm-hours", compute.IdealFermentationHours, "fermentation hours")
	cmd.Flags().Float64Var(&temp, "temp", 45, "average fermentation temperature (°C)")
	cmd.Flags().Float64Var(&moisture, "moisture", 7, "current moisture (%)")
	cmd.Flags().Float64Var(&defectRate, "defect-rate", 0, "visual defect rate (%)")
	return cmd
}

func newScoreCmd() *cobra.Command {
	var moisture, ffa, mold float64
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Grade a batch from its lab values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, risk := compute.HistoricalQualityScore(moisture, ffa, mold)
			return printJSON(cmd.OutOrStdout(), struct {
				QualityScore int             `json:"qualityScore"`
				RiskLevel    types.RiskLevel `json:"riskLevel"`
			}{q, risk})
		},
	}
	cmd.Flags().Float64Var(&moisture, "moisture", 0, "moisture content (%)")
	cmd.Flags().Float64Var(&ffa, "ffa", 0, "free fatty acids (%)")
	cmd.Flags().Float64Var(&mold, "mold", 0, "fermented mold (%)")
	return cmd
}

// =============================================================================
// COMPLIANCE
// =============================================================================

// ruleFile is the shape of a --rules file, matching the server's
// compliance section.
type ruleFile struct {
	Rules []rules.ExportRule `yaml:"rules"`
}

func newComplianceCmd() *cobra.Command {
	var (
		rulesPath string
		candidate rules.ExportCandidate
	)
	cmd := &cobra.Command{
		Use:   "compliance",
		Short: "Check a batch against export rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := os.ReadFile(rulesPath)
			if err != nil {
				return fmt.Errorf("read rules: %w", err)
			}
			var rf ruleFile
			if err := yaml.Unmarshal(raw, &rf); err != nil {
				return fmt.Errorf("parse rules %s: %w", rulesPath, err)
			}
			res := rules.EvaluateCompliance(candidate, rf.Rules)
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Compliant {
				return fmt.Errorf("batch %s is not compliant: %d violation(s)", candidate.BatchID, len(res.Violations))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&rulesPath, "rules", "", "YAML file with a top-level rules list")
	cmd.Flags().StringVar(&candidate.BatchID, "batch", "", "batch ID")
	cmd.Flags().Float64Var(&candidate.QualityScore, "quality", 0, "batch quality score")
	cmd.Flags().StringVar(&candidate.Destination, "destination", "", "destination country code")
	cmd.MarkFlagRequired("rules") //nolint:errcheck
	return cmd
}

// =============================================================================
// HELPERS
// =============================================================================

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", args[0], err)
	}
	return raw, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
