package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// ErrAuthRejected means the handshake could not resolve an identity.
	// The connection is closed immediately, no retry.
	ErrAuthRejected = fmt.Errorf("auth rejected")

	// ErrValidation marks an invalid domain payload. Surfaced privately to the
	// originating connection; the session stays active.
	ErrValidation = fmt.Errorf("validation error")

	// ErrStaleConnection is raised during fan-out when a registered member is
	// no longer reachable. Never surfaced to clients.
	ErrStaleConnection = fmt.Errorf("stale connection")

	// ErrRegistryUnavailable wraps failures of the shared presence/topic store.
	// Fatal for the affected operation.
	ErrRegistryUnavailable = fmt.Errorf("registry unavailable")

	// ErrConnectionNotFound is returned by a heartbeat on an unknown connection.
	ErrConnectionNotFound = fmt.Errorf("connection not found")

	ErrUnknownEventType = fmt.Errorf("unknown event type")
)
