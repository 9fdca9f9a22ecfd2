package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cocoaplant/cocoaplant/pkg/types"
)

// Status is the outcome of an audited action.
type Status string

const (
	StatusSuccess Status = "Success"
	StatusFailed  Status = "Failed"
	StatusDenied  Status = "Denied"
)

// ipHashLen is the number of hex characters kept of the address digest.
const ipHashLen = 12

// Entry is one audit record.
type Entry struct {
	ID        string     `json:"id"`
	Timestamp string     `json:"timestamp"`
	User      string     `json:"user"`
	Role      types.Role `json:"role"`
	Action    string     `json:"action"`
	Resource  string     `json:"resource"`
	Details   string     `json:"details"`
	Status    Status     `json:"status"`
	IPHash    string     `json:"ipHash"`
}

// Log is an append-only audit trail, newest first.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	now     func() time.Time
}

// New returns a Log seeded with the service start-up record.
func New() *Log {
	l := &Log{now: time.Now}
	l.Record(Event{
		User:     "System",
		Role:     types.RolePlantManager,
		Action:   "SYSTEM_INIT",
		Resource: "Core",
		Details:  "Dashboard services initialized.",
	})
	return l
}

// Event is the input to Record. An empty Status records Success.
type Event struct {
	User     string
	Role     types.Role
	Action   string
	Resource string
	Details  string
	Status   Status
	Addr     string // caller address, stored only as a hash
}

// Record appends an entry for ev and returns it.
func (l *Log) Record(ev Event) Entry {
	if ev.Status == "" {
		ev.Status = StatusSuccess
	}
	e := Entry{
		ID:        "LOG-" + uuid.NewString()[:8],
		Timestamp: l.now().UTC().Format(time.RFC3339),
		User:      ev.User,
		Role:      ev.Role,
		Action:    ev.Action,
		Resource:  ev.Resource,
		Details:   ev.Details,
		Status:    ev.Status,
		IPHash:    hashAddr(ev.Addr),
	}

	l.mu.Lock()
	l.entries = append([]Entry{e}, l.entries...)
	l.mu.Unlock()

	slog.Debug("audit: recorded",
		"action", e.Action,
		"user", e.User,
		"role", e.Role,
		"status", e.Status,
	)
	return e
}

// List returns a copy of every entry, newest first.
func (l *Log) List() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Entry{}, l.entries...)
}

// Filter returns the entries whose user, action or details contain q,
// ignoring case. An empty q returns everything.
func (l *Log) Filter(q string) []Entry {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return l.List()
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := []Entry{}
	for _, e := range l.entries {
		if strings.Contains(strings.ToLower(e.User), q) ||
			strings.Contains(strings.ToLower(e.Action), q) ||
			strings.Contains(strings.ToLower(e.Details), q) {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// hashAddr returns a truncated SHA-256 of the host part of addr.
func hashAddr(addr string) string {
	if addr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	sum := sha256.Sum256([]byte(host))
	return hex.EncodeToString(sum[:])[:ipHashLen]
}
