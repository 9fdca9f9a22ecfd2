package ingest

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/cocoaplant/cocoaplant/pkg/compute"
	"github.com/cocoaplant/cocoaplant/pkg/types"
)

// RawRow is one parsed row keyed by normalized column name. Values are
// float64 when the source cell was numeric and string otherwise.
type RawRow map[string]any

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

// NormalizeKey lower-cases a header and strips everything that is not a
// letter or digit, so "TM-E" becomes "tme" and "F/M" becomes "fm".
func NormalizeKey(k string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(strings.TrimSpace(k)), "")
}

// Synonyms accepted for each canonical field, in priority order.
var (
	keysBatchID      = []string{"batchid", "id"}
	keysBags         = []string{"bags"}
	keysQty          = []string{"qty", "weight"}
	keysBeanWeight   = []string{"bw", "beanweight"}
	keysTimeDuration = []string{"tme", "time", "timeduration"}
	keysShellLevel   = []string{"sl", "shell", "shelllevel"}
	keysMoisture     = []string{"mc", "moisture"}
	keysAdmixture    = []string{"admixture"}
	keysSieve        = []string{"sieve"}
	keysCluster      = []string{"cluster"}
	keysResidue      = []string{"residue"}
	keysMold         = []string{"fm", "fermentedmold"}
	keysFFA          = []string{"ffa", "freefattyacids"}
)

// Normalize maps a RawRow onto a scored BatchRecord. index is the row's
// position in its file and names the record when no batch id is present.
//
// For each field the first synonym holding a non-empty, non-zero value wins.
// Missing or non-numeric values read as 0.
func Normalize(row RawRow, index int) types.BatchRecord {
	rec := types.BatchRecord{
		BatchID:        batchID(row, index),
		Bags:           number(row, keysBags),
		Qty:            number(row, keysQty),
		BeanWeight:     number(row, keysBeanWeight),
		TimeDuration:   number(row, keysTimeDuration),
		ShellLevel:     number(row, keysShellLevel),
		Moisture:       number(row, keysMoisture),
		Admixture:      number(row, keysAdmixture),
		Sieve:          number(row, keysSieve),
		Cluster:        number(row, keysCluster),
		Residue:        number(row, keysResidue),
		FermentedMold:  number(row, keysMold),
		FreeFattyAcids: number(row, keysFFA),
	}
	rec.QualityScore, rec.RiskLevel = compute.HistoricalQualityScore(
		rec.Moisture, rec.FreeFattyAcids, rec.FermentedMold)
	return rec
}

func batchID(row RawRow, index int) string {
	v, ok := first(row, keysBatchID)
	if !ok {
		return fmt.Sprintf("UNK-%d", index)
	}
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func number(row RawRow, keys []string) float64 {
	v, ok := first(row, keys)
	if !ok {
		return 0
	}
	return toFloat(v)
}

// first returns the first value among keys that is set and not empty.
func first(row RawRow, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := row[k]; ok && present(v) {
			return v, true
		}
	}
	return nil, false
}

// present reports whether v carries a usable value: nil, "", 0, NaN and
// false do not.
func present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case float64:
		return x != 0 && !math.IsNaN(x)
	case bool:
		return x
	default:
		return true
	}
}

func toFloat(v any) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case bool:
		if x {
			f = 1
		}
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		f = p
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// cellValue converts a raw text cell to its RawRow value: a number when the
// text parses as one, 0 when it is blank, and the trimmed text otherwise.
func cellValue(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0.0
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f
	}
	return s
}
