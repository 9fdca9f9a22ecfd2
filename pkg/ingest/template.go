package ingest

import "fmt"

const csvTemplate = `BatchID,Bags,Qty,BW,TM-E,SL,MC,Admixture,Sieve,Cluster,Residue,F/M,FFA
BATCH-2023-001,50,3200,1.2,45,12.5,7.2,0.5,98,2.1,0.3,1.5,1.2
BATCH-2023-002,45,2800,1.15,48,13.0,7.8,0.8,96,2.5,0.4,2.0,1.5
BATCH-2023-003,60,3800,1.22,42,11.8,6.9,0.4,99,1.8,0.2,0.5,0.9
`

const jsonTemplate = `[
  {
    "BatchID": "BATCH-2023-001",
    "Bags": 50,
    "Qty": 3200,
    "BW": 1.2,
    "TM-E": 45,
    "SL": 12.5,
    "MC": 7.2,
    "Admixture": 0.5,
    "Sieve": 98,
    "Cluster": 2.1,
    "Residue": 0.3,
    "F/M": 1.5,
    "FFA": 1.2
  },
  {
    "BatchID": "BATCH-2023-002",
    "Bags": 45,
    "Qty": 2800,
    "BW": 1.15,
    "TM-E": 48,
    "SL": 13.0,
    "MC": 7.8,
    "Admixture": 0.8,
    "Sieve": 96,
    "Cluster": 2.5,
    "Residue": 0.4,
    "F/M": 2.0,
    "FFA": 1.5
  }
]
`

// Template returns a downloadable example file for format together with
// its file name and MIME type.
func Template(format Format) (content []byte, filename, mime string, err error) {
	switch format {
	case FormatCSV:
		return []byte(csvTemplate), "template_batch_analysis.csv", "text/csv", nil
	case FormatJSON:
		return []byte(jsonTemplate), "template_batch_analysis.json", "application/json", nil
	default:
		return nil, "", "", fmt.Errorf("%w: no template for %q", ErrUnsupportedFormat, format)
	}
}
