package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocoaplant/cocoaplant/pkg/types"
)

func TestNew_Seeded(t *testing.T) {
	l := New()
	entries := l.List()
	require.Len(t, entries, 1)
	assert.Equal(t, "SYSTEM_INIT", entries[0].Action)
	assert.Equal(t, types.RolePlantManager, entries[0].Role)
	assert.Equal(t, StatusSuccess, entries[0].Status)
}

func TestRecord_NewestFirst(t *testing.T) {
	l := New()
	fixed := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	l.Record(Event{User: "John O.", Role: types.RoleOperator, Action: "DATA_UPLOAD", Resource: "Import", Details: "Uploaded daily.csv"})
	e := l.Record(Event{User: "Sarah M.", Role: types.RolePlantManager, Action: "REPORT_GENERATE", Resource: "Reports", Status: StatusFailed})

	entries := l.List()
	require.Len(t, entries, 3)
	assert.Equal(t, e, entries[0])
	assert.Equal(t, "DATA_UPLOAD", entries[1].Action)
	assert.Equal(t, "SYSTEM_INIT", entries[2].Action)
	assert.Equal(t, "2024-05-06T07:08:09Z", e.Timestamp)
	assert.Equal(t, StatusFailed, e.Status)
	assert.Regexp(t, `^LOG-[0-9a-f]{8}$`, e.ID)
}

func TestRecord_HashesAddress(t *testing.T) {
	l := New()
	e := l.Record(Event{User: "u", Action: "A", Addr: "10.0.0.7:52311"})

	sum := sha256.Sum256([]byte("10.0.0.7"))
	assert.Equal(t, hex.EncodeToString(sum[:])[:ipHashLen], e.IPHash)
	assert.NotContains(t, e.IPHash, "10.0.0.7")

	same := l.Record(Event{User: "u", Action: "A", Addr: "10.0.0.7:40000"})
	assert.Equal(t, e.IPHash, same.IPHash, "port must not affect the hash")

	v6 := l.Record(Event{User: "u", Action: "A", Addr: "[::1]:8080"})
	sum6 := sha256.Sum256([]byte("::1"))
	assert.Equal(t, hex.EncodeToString(sum6[:])[:ipHashLen], v6.IPHash)

	assert.Empty(t, l.Record(Event{User: "u", Action: "A"}).IPHash)
}

func TestFilter(t *testing.T) {
	l := New()
	l.Record(Event{User: "John O.", Action: "DATA_UPLOAD", Details: "Uploaded daily_production.csv"})
	l.Record(Event{User: "Sarah M.", Action: "BATCH_CREATE", Details: "Created batch INT-2023-001"})

	cases := []struct {
		q    string
		want []string
	}{
		{"john", []string{"DATA_UPLOAD"}},
		{"batch_create", []string{"BATCH_CREATE"}},
		{"PRODUCTION", []string{"DATA_UPLOAD"}},
		{"initialized", []string{"SYSTEM_INIT"}},
		{"nothing matches", []string{}},
		{"", []string{"BATCH_CREATE", "DATA_UPLOAD", "SYSTEM_INIT"}},
	}
	for _, tc := range cases {
		t.Run(tc.q, func(t *testing.T) {
			got := []string{}
			for _, e := range l.Filter(tc.q) {
				got = append(got, e.Action)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFilter_IgnoresResource(t *testing.T) {
	l := New()
	l.Record(Event{User: "a", Action: "X", Resource: "Secret"})
	assert.Empty(t, l.Filter("secret"))
}
