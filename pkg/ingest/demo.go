package ingest

import (
	"fmt"

	"github.com/brianvoe/gofakeit/v6"
)

// DefaultDemoRows is the size of a generated demo dataset.
const DefaultDemoRows = 20

// DemoRows generates n synthetic rows with plausible lab values. seed 0
// picks a random seed; any other value makes the dataset reproducible.
func DemoRows(n int, seed int64) []RawRow {
	fake := gofakeit.New(seed)
	rows := make([]RawRow, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, RawRow{
			"batchid":   fmt.Sprintf("BATCH-IMP-%d", 202300+i),
			"bags":      float64(fake.Number(40, 79)),
			"qty":       float64(fake.Number(2500, 4499)),
			"bw":        fake.Float64Range(1.1, 1.3),
			"tme":       fake.Float64Range(40, 50),
			"sl":        fake.Float64Range(10, 15),
			"mc":        fake.Float64Range(6.5, 9),
			"admixture": fake.Float64Range(0, 2),
			"sieve":     fake.Float64Range(90, 100),
			"cluster":   fake.Float64Range(0, 3),
			"residue":   fake.Float64Range(0, 1),
			"fm":        fake.Float64Range(0, 4),
			"ffa":       fake.Float64Range(0.5, 2.5),
		})
	}
	return rows
}
