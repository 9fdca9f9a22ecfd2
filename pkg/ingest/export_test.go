package ingest

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/cocoaplant/cocoaplant/pkg/types"
)

func TestWriteCSV_Header(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	want := "BatchID,Bags,Qty,BW,TM-E,SL,MC,Admixture,Sieve,Cluster,Residue,F/M,FFA,QualityScore,Risk\n"
	if buf.String() != want {
		t.Errorf("header: got %q, want %q", buf.String(), want)
	}
}

func TestWriteCSV_Row(t *testing.T) {
	rec := Normalize(RawRow{"batchid": "B-1", "bags": 50.0, "qty": 3200.0, "mc": 10.0, "ffa": 1.2}, 0)
	var buf bytes.Buffer
	if err := WriteCSV(&buf, []types.BatchRecord{rec}); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if want := "B-1,50,3200,0,0,0,10,0,0,0,0,0,1.2,90,High"; lines[1] != want {
		t.Errorf("row: got %q, want %q", lines[1], want)
	}
}

func TestExport_RoundTrip(t *testing.T) {
	p := New(Options{DemoMode: true, DemoSeed: 7})
	orig, err := p.Run(context.Background(), nil, FormatUnknown)
	if err != nil {
		t.Fatalf("Run demo: %v", err)
	}
	orig = append(orig, Normalize(RawRow{"batchid": "Lot, 9", "mc": 9.123456789, "ffa": 3.0000001}, 20))

	var buf bytes.Buffer
	if err := WriteCSV(&buf, orig); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	back, err := p.Run(context.Background(), buf.Bytes(), FormatCSV)
	if err != nil {
		t.Fatalf("Run csv: %v", err)
	}
	if diff := cmp.Diff(orig, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestToBatchData(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	recs := []types.BatchRecord{
		{BatchID: "A", Qty: 1000, Moisture: 7, QualityScore: 100, RiskLevel: types.RiskLow},
		{BatchID: "B", Qty: 2000, QualityScore: 70, RiskLevel: types.RiskMedium},
		{BatchID: "C", Qty: 3000, QualityScore: 40, RiskLevel: types.RiskHigh},
	}
	got := ToBatchData(recs, now)

	if len(got) != 3 {
		t.Fatalf("len: got %d, want 3", len(got))
	}
	if got[0].Product != "Cocoa Beans" || got[0].Stage != "Analysis" {
		t.Errorf("display fields: got %+v", got[0])
	}
	if got[0].Weight != 1000 || got[0].Timestamp != "2024-03-01T10:00:00Z" {
		t.Errorf("weight/timestamp: got %v / %q", got[0].Weight, got[0].Timestamp)
	}
	for i, want := range []float64{10, 50, 85} {
		if got[i].RiskScore != want {
			t.Errorf("riskScore[%d]: got %v, want %v", i, got[i].RiskScore, want)
		}
	}
}

func TestTemplate_Unknown(t *testing.T) {
	if _, _, _, err := Template(FormatXLSX); err == nil {
		t.Fatal("Template(xlsx): expected error")
	}
}
