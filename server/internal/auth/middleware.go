package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/cocoaplant/cocoaplant/pkg/types"
)

// Resource names a dashboard view or API area.
type Resource string

const (
	ResourceDashboard  Resource = "dashboard"
	ResourceBatches    Resource = "batches"
	ResourceQuality    Resource = "quality"
	ResourceAlerts     Resource = "alerts"
	ResourceCompliance Resource = "compliance"
	ResourceReports    Resource = "reports"
	ResourceJobs       Resource = "jobs"
	ResourceStream     Resource = "stream"
	ResourceAudit      Resource = "audit"
)

// restricted lists the resources limited to specific roles. Every other
// resource is open to every known role.
var restricted = map[Resource][]types.Role{
	ResourceAudit: {types.RolePlantManager},
}

// Allowed reports whether role may use resource.
func Allowed(role types.Role, resource Resource) bool {
	if _, err := types.ParseRole(string(role)); err != nil {
		return false
	}
	roles, ok := restricted[resource]
	if !ok {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

type ctxKey struct{}

// WithRole returns a copy of ctx carrying role.
func WithRole(ctx context.Context, role types.Role) context.Context {
	return context.WithValue(ctx, ctxKey{}, role)
}

// RoleFrom returns the role stored by the middleware.
func RoleFrom(ctx context.Context) (types.Role, bool) {
	r, ok := ctx.Value(ctxKey{}).(types.Role)
	return r, ok
}

// Options configures Middleware.
type Options struct {
	// Mode is "apikey" to require Key in KeyHeader; anything else skips the check.
	Mode      string
	KeyHeader string
	Key       string

	RoleHeader string
}

// Middleware returns HTTP middleware enforcing the API key and role header.
//
// Behaviour:
//   - If Mode == "apikey" and Key != "", the KeyHeader value must equal Key.
//   - The RoleHeader value must name a known role.
//   - Either failure returns 401 with a JSON error body.
func Middleware(opts Options) func(http.Handler) http.Handler {
	if opts.KeyHeader == "" {
		opts.KeyHeader = "x-api-key"
	}
	if opts.RoleHeader == "" {
		opts.RoleHeader = "X-Plant-Role"
	}
	checkKey := opts.Mode == "apikey" && opts.Key != ""

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if checkKey {
				got := r.Header.Get(opts.KeyHeader)
				if subtle.ConstantTimeCompare([]byte(got), []byte(opts.Key)) != 1 {
					unauthorized(w, "invalid api key")
					return
				}
			}

			role, err := types.ParseRole(r.Header.Get(opts.RoleHeader))
			if err != nil {
				unauthorized(w, "missing or unknown role")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithRole(r.Context(), role)))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg}) //nolint:errcheck
}
