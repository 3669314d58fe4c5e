// Package session carries the acting staff member through a context.Context.
// Operations that audit who did something read the staff ID from the context
// instead of a process-wide "current user".
package session

import "context"

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// StaffIDKey is the context key for the acting staff member's ID.
	StaffIDKey contextKey = "staff_id"
	// StationKey is the context key for the workstation the call came from.
	StationKey contextKey = "station"
)

// WithStaff returns a context that records the acting staff member and station.
func WithStaff(ctx context.Context, staffID, station string) context.Context {
	ctx = context.WithValue(ctx, StaffIDKey, staffID)
	if station != "" {
		ctx = context.WithValue(ctx, StationKey, station)
	}
	return ctx
}

// StaffID extracts the staff ID from the context.
// Returns empty string if not found.
func StaffID(ctx context.Context) string {
	id, _ := ctx.Value(StaffIDKey).(string)
	return id
}

// Station extracts the workstation from the context.
// Returns empty string if not found.
func Station(ctx context.Context) string {
	station, _ := ctx.Value(StationKey).(string)
	return station
}
