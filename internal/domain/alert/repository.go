package alert

import "context"

// Repository persists alert events and device tokens.
type Repository interface {
	// InsertEvent records an event unless one with the same kind and
	// context already exists. created reports whether the row is new.
	InsertEvent(ctx context.Context, e *Event) (created bool, err error)

	// ListEvents returns events newest first, optionally filtered by
	// kind (empty means all).
	ListEvents(ctx context.Context, kind Kind, limit, offset int) ([]*Event, error)

	// UpsertDevice registers a token or reactivates a known one.
	UpsertDevice(ctx context.Context, d *Device) error

	// ActiveDeviceTokens returns every active token.
	ActiveDeviceTokens(ctx context.Context) ([]string, error)

	// DeactivateToken marks a token inactive.
	DeactivateToken(ctx context.Context, token string) error
}
