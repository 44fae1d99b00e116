package contextkeys

import "context"

// contextKey is an unexported type to prevent collisions with context keys defined in
// other packages.
type contextKey string

// String makes contextKey satisfy the Stringer interface to assist with debugging.
func (c contextKey) String() string {
	return "transit-console context key " + string(c)
}

const (
	// OperatorIDKey carries the authenticated operator (subject claim).
	OperatorIDKey = contextKey("operatorID")
	// OperatorRoleKey carries the operator role claim.
	OperatorRoleKey = contextKey("operatorRole")
	// RequestIDKey carries the per-request correlation id.
	RequestIDKey = contextKey("requestID")
	// RestoreIDKey carries the id of the restore run being executed.
	RestoreIDKey = contextKey("restoreID")
	// ComponentKey names the component that owns the current operation.
	ComponentKey = contextKey("component")
	// OperationKey names the operation in progress, e.g. "backup.create".
	OperationKey = contextKey("operation")
)

// OperatorID returns the operator id stored in ctx, or "" when absent.
func OperatorID(ctx context.Context) string {
	if v, ok := ctx.Value(OperatorIDKey).(string); ok {
		return v
	}
	return ""
}

// RestoreID returns the restore run id stored in ctx, or "" when absent.
func RestoreID(ctx context.Context) string {
	if v, ok := ctx.Value(RestoreIDKey).(string); ok {
		return v
	}
	return ""
}
