// Package audit keeps the in-memory audit trail of user actions shown in the
// compliance view.
package audit
