package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/cocoaplant/cocoaplant/pkg/types"
)

// ExportHeader is the column order of an exported analysis.
var ExportHeader = []string{
	"BatchID", "Bags", "Qty", "BW", "TM-E", "SL", "MC", "Admixture",
	"Sieve", "Cluster", "Residue", "F/M", "FFA", "QualityScore", "Risk",
}

// WriteCSV writes records with ExportHeader. Numbers are written in their
// shortest exact decimal form, so re-ingesting the output reproduces every
// numeric field and therefore every score and risk tier.
func WriteCSV(w io.Writer, records []types.BatchRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return fmt.Errorf("ingest: write header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.BatchID,
			num(r.Bags), num(r.Qty), num(r.BeanWeight), num(r.TimeDuration),
			num(r.ShellLevel), num(r.Moisture), num(r.Admixture), num(r.Sieve),
			num(r.Cluster), num(r.Residue), num(r.FermentedMold), num(r.FreeFattyAcids),
			strconv.Itoa(r.QualityScore),
			string(r.RiskLevel),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("ingest: write %s: %w", r.BatchID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("ingest: flush: %w", err)
	}
	return nil
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Risk scores assigned to imported batches by tier.
const (
	riskScoreHigh   = 85
	riskScoreMedium = 50
	riskScoreLow    = 10
)

// ToBatchData converts analyzed records into the live dataset's display
// shape. Every converted batch is stamped with now and placed in the
// Analysis stage.
func ToBatchData(records []types.BatchRecord, now time.Time) []types.BatchData {
	ts := now.UTC().Format(time.RFC3339)
	out := make([]types.BatchData, 0, len(records))
	for _, r := range records {
		out = append(out, types.BatchData{
			ID:             r.BatchID,
			Product:        "Cocoa Beans",
			Timestamp:      ts,
			QualityScore:   float64(r.QualityScore),
			Stage:          "Analysis",
			RiskScore:      riskScore(r.RiskLevel),
			Moisture:       r.Moisture,
			Weight:         r.Qty,
			Bags:           r.Bags,
			BeanWeight:     r.BeanWeight,
			TimeDuration:   r.TimeDuration,
			ShellLevel:     r.ShellLevel,
			Admixture:      r.Admixture,
			Sieve:          r.Sieve,
			Cluster:        r.Cluster,
			Residue:        r.Residue,
			FermentedMold:  r.FermentedMold,
			FreeFattyAcids: r.FreeFattyAcids,
		})
	}
	return out
}

func riskScore(l types.RiskLevel) float64 {
	switch l {
	case types.RiskHigh:
		return riskScoreHigh
	case types.RiskMedium:
		return riskScoreMedium
	default:
		return riskScoreLow
	}
}
