// Package auth provides the HTTP middleware that gates the REST API.
//
// Middleware(opts) first checks the API key when mode is "apikey" and a key
// is configured, then resolves the caller's dashboard role from the role
// header. A missing or unknown role is rejected with 401. Handlers read the
// role with RoleFrom and check view permissions with Allowed.
//
// The role header identifies the caller; it authenticates nothing.
package auth
